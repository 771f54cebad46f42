package services

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// FileService owns the two upload roots: post attachments and profile
// images. Files are named by a random token.
type FileService struct {
	uploadPath     string
	attachmentsDir string
	profileDir     string
}

// NewFileService roots attachments and profile images under uploadPath.
func NewFileService(uploadPath, attachmentsFolder, profileFolder string) *FileService {
	return &FileService{
		uploadPath:     uploadPath,
		attachmentsDir: filepath.Join(uploadPath, attachmentsFolder),
		profileDir:     filepath.Join(uploadPath, profileFolder),
	}
}

// EnsureFolders creates the upload roots if they are missing.
func (s *FileService) EnsureFolders() error {
	for _, dir := range []string{s.uploadPath, s.attachmentsDir, s.profileDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create upload folder %s: %w", dir, err)
		}
	}
	return nil
}

// UploadPath is the directory served under /images/.
func (s *FileService) UploadPath() string {
	return s.uploadPath
}

// AttachmentPath returns where the attachment named name is stored.
func (s *FileService) AttachmentPath(name string) string {
	return filepath.Join(s.attachmentsDir, name)
}

// SaveAttachment writes the content of r under a fresh token and returns
// the token and the detected MIME type.
func (s *FileService) SaveAttachment(r io.Reader) (string, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", "", fmt.Errorf("read upload: %w", err)
	}
	name := RandomName()
	if err := os.WriteFile(s.AttachmentPath(name), data, 0644); err != nil {
		return "", "", fmt.Errorf("write attachment: %w", err)
	}
	return name, DetectType(data), nil
}

// DeleteAttachment removes the file for name. A file that is already gone
// counts as removed.
func (s *FileService) DeleteAttachment(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	err := os.Remove(s.AttachmentPath(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete attachment %s: %w", name, err)
	}
	return nil
}

// ProfileImagePath returns where the profile image named name is stored.
func (s *FileService) ProfileImagePath(name string) string {
	return filepath.Join(s.profileDir, name)
}

// SaveProfileImage writes data under a fresh token and returns the token.
func (s *FileService) SaveProfileImage(data []byte) (string, error) {
	name := RandomName()
	if err := os.WriteFile(s.ProfileImagePath(name), data, 0644); err != nil {
		return "", fmt.Errorf("write profile image: %w", err)
	}
	return name, nil
}

// DeleteProfileImage removes a profile image. An empty name or a file that
// is already gone is not an error.
func (s *FileService) DeleteProfileImage(name string) error {
	if name == "" {
		return nil
	}
	if err := checkName(name); err != nil {
		return err
	}
	err := os.Remove(s.ProfileImagePath(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete profile image %s: %w", name, err)
	}
	return nil
}

// DetectType sniffs the MIME type of data.
func DetectType(data []byte) string {
	return mimetype.Detect(data).String()
}

// RandomName returns a new 32 character hex token.
func RandomName() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func checkName(name string) error {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return fmt.Errorf("invalid file name %q", name)
	}
	return nil
}
