package errors

import (
	"errors"
	"fmt"
)

// Error taxonomy for the federated login and delegated access core.
// The HTTP layer maps these onto status codes; everything else wraps them
// with context and lets errors.Is do the classification.
var (
	// Configuration errors - recoverable by admin action, surfaced as a
	// generic 503 to the browser
	ErrServiceUnavailable = errors.New("identity provider unavailable")
	ErrProviderInactive   = errors.New("identity provider not active")

	// Protocol errors - state/nonce/signature/issuer mismatch, always fail closed
	ErrProtocol       = errors.New("protocol violation")
	ErrInvalidRequest = errors.New("invalid request")

	// Crypto errors - tag verification or malformed ciphertext
	ErrCrypto = errors.New("crypto failure")

	// Provisioning errors - account creation conflict
	ErrProvisioning = errors.New("account provisioning failed")

	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPasswordLoginOff   = errors.New("password login disabled")
	ErrSessionNotFound    = errors.New("session not found")
	ErrUserNotFound       = errors.New("user not found")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
