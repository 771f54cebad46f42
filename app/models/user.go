package models

import (
	"encoding/base64"
	"time"
)

// BeforeCreate sets up any necessary fields before creation
func (u *User) BeforeCreate() {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
}

// Validate checks the registration payload.
func (nu *NewUser) Validate() error {
	return validate.Struct(nu)
}

// Validate checks the profile update payload.
func (uu *UserUpdate) Validate() error {
	return validate.Struct(uu)
}

// ImageData decodes the new profile image, or returns nil if none was sent.
func (uu *UserUpdate) ImageData() ([]byte, error) {
	if uu.Image == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(uu.Image)
}
