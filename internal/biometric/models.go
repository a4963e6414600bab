package biometric

import (
	"time"

	"rollcall/pkg/domain"
)

// Template is an enrolled face template. The embedding is stored only in
// encrypted form; the plaintext vector exists in memory during registration
// and verification and is never persisted.
type Template struct {
	UserID     domain.UserID
	Ciphertext []byte
	UpdatedAt  time.Time
}
