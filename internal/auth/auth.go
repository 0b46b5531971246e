// Package auth holds the role policy and credential handling for the board.
package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"taskboard/internal/models"
)

// ErrInvalidCredentials is returned for an unknown username and for a wrong
// password alike, so a login response never reveals which usernames exist.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Operation names a permission-gated store action.
type Operation int

const (
	OpList Operation = iota
	OpCreate
	OpUpdate
	OpDelete
)

// Allowed reports whether a role may perform an operation. Listing is open to
// every identified caller including the invited guest; creation and deletion
// need a member role; updating an existing task is reserved for the product
// owner.
func Allowed(role string, op Operation) bool {
	switch op {
	case OpList:
		return role == models.RoleProductOwner || role == models.RoleNormal || role == models.RoleInvited
	case OpCreate, OpDelete:
		return role == models.RoleProductOwner || role == models.RoleNormal
	case OpUpdate:
		return role == models.RoleProductOwner
	default:
		return false
	}
}

// HashPassword produces a bcrypt digest of the plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword verifies a plaintext password against a stored digest.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Authenticate resolves a login attempt against a stored user record.
func Authenticate(user models.User, found bool, password string) error {
	if !found || !CheckPassword(password, user.PasswordHash) {
		return ErrInvalidCredentials
	}
	return nil
}
