package models

import (
	"time"

	"github.com/google/uuid"
)

type Hasher interface {
	Hash(password string) (string, error)
	Compare(hashedPassword string, password string) error
}

// Account of the platform
// Refresh token is not a part of the account: it lives in the session state (see Session)
type User struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Username       string
	Email          string
	FullName       string
	Avatar         Media
	CoverImage     Optional[Media]
	HashedPassword string
}

func (u *User) SetPassword(raw string, h Hasher) error {
	hash, err := h.Hash(raw)
	if err != nil {
		return err
	}
	u.HashedPassword = hash
	return nil
}

// Check raw password against stored hash
// Mismatch is a normal negative result
func (u *User) CheckPassword(raw string, h Hasher) bool {
	return h.Compare(u.HashedPassword, raw) == nil
}

// Object stored at the media host
type Media struct {
	URL      string `json:"url"`
	PublicID string `json:"-"`
}
