package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"murmur/app/repositories"
)

// Lookup misses wrap repositories.ErrNotFound.
var (
	ErrUserNotFound = fmt.Errorf("user %w", repositories.ErrNotFound)
	ErrPostNotFound = fmt.Errorf("post %w", repositories.ErrNotFound)
)

var (
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrAttachmentInUse    = errors.New("attachment already belongs to a post")
	ErrForbidden          = errors.New("not allowed")
	ErrBadCredentials     = errors.New("bad credentials")
	ErrSweepInProgress    = errors.New("attachment sweep already running")
)

// ValidationError reports request fields that failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "validation failed: " + strings.Join(names, ", ")
}

func fieldError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}
