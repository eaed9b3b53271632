package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/secure/precis"
)

const (
	passwordHashSaltLength = 16
	passwordHashKeyLength  = 32
	passwordHashIterations = 120000

	// DefaultUsername and DefaultPassword form the credential used when no
	// override is configured.
	DefaultUsername = "admin"
	DefaultPassword = "admin"
)

// ErrInvalidCredentials indicates the supplied username or password did not match.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Credentials holds the single configured login identity.
type Credentials struct {
	username     string
	passwordHash string
}

// NewCredentials hashes the plaintext password and returns the credential pair.
func NewCredentials(username, password string) (*Credentials, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return NewCredentialsFromHash(username, hash)
}

// NewCredentialsFromHash builds a credential from a hash produced by HashPassword.
func NewCredentialsFromHash(username, passwordHash string) (*Credentials, error) {
	normalized, err := normalizeUsername(username)
	if err != nil {
		return nil, err
	}
	if normalized == "" {
		return nil, fmt.Errorf("username is required")
	}
	if _, _, _, err := parsePasswordHash(passwordHash); err != nil {
		return nil, err
	}
	return &Credentials{username: normalized, passwordHash: passwordHash}, nil
}

// DefaultCredentials returns the admin/admin credential.
func DefaultCredentials() (*Credentials, error) {
	return NewCredentials(DefaultUsername, DefaultPassword)
}

// Username reports the normalised configured username.
func (c *Credentials) Username() string {
	return c.username
}

// Verify checks the candidate pair. Both comparisons always run so a wrong
// username costs the same as a wrong password.
func (c *Credentials) Verify(username, password string) error {
	candidate, err := normalizeUsername(username)
	if err != nil {
		candidate = username
	}
	usernameOK := subtle.ConstantTimeCompare([]byte(candidate), []byte(c.username)) == 1
	passwordErr := VerifyPassword(c.passwordHash, password)
	if !usernameOK || passwordErr != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// HashPassword derives a PBKDF2-SHA256 hash in the form
// pbkdf2$sha256$<iterations>$<salt>$<key>.
func HashPassword(password string) (string, error) {
	salt := make([]byte, passwordHashSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	derived := pbkdf2.Key([]byte(password), salt, passwordHashIterations, passwordHashKeyLength, sha256.New)
	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedKey := base64.RawStdEncoding.EncodeToString(derived)
	return fmt.Sprintf("pbkdf2$sha256$%d$%s$%s", passwordHashIterations, encodedSalt, encodedKey), nil
}

// VerifyPassword compares the candidate against an encoded hash.
func VerifyPassword(encodedHash, candidate string) error {
	iterations, salt, storedKey, err := parsePasswordHash(encodedHash)
	if err != nil {
		return err
	}
	derived := pbkdf2.Key([]byte(candidate), salt, iterations, len(storedKey), sha256.New)
	if len(derived) != len(storedKey) || subtle.ConstantTimeCompare(derived, storedKey) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

func parsePasswordHash(encodedHash string) (int, []byte, []byte, error) {
	parts := strings.Split(strings.TrimSpace(encodedHash), "$")
	if len(parts) != 5 {
		return 0, nil, nil, fmt.Errorf("verify password: invalid hash format")
	}
	if parts[0] != "pbkdf2" || parts[1] != "sha256" {
		return 0, nil, nil, fmt.Errorf("verify password: unsupported hash identifier")
	}
	iterations, err := strconv.Atoi(parts[2])
	if err != nil || iterations <= 0 {
		return 0, nil, nil, fmt.Errorf("verify password: invalid iteration count")
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return 0, nil, nil, fmt.Errorf("verify password: decode salt: %w", err)
	}
	storedKey, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return 0, nil, nil, fmt.Errorf("verify password: decode hash: %w", err)
	}
	if len(storedKey) == 0 {
		return 0, nil, nil, fmt.Errorf("verify password: empty hash")
	}
	return iterations, salt, storedKey, nil
}

func normalizeUsername(username string) (string, error) {
	trimmed := strings.TrimSpace(username)
	if trimmed == "" {
		return "", nil
	}
	normalized, err := precis.UsernameCasePreserved.String(trimmed)
	if err != nil {
		return "", fmt.Errorf("normalize username: %w", err)
	}
	return normalized, nil
}
