// Package auth is the identity provider side of Split-it: it turns
// credentials into users and users into bearer tokens.
package auth

import (
	"context"

	"github.com/mmynk/splitit/internal/models"
)

// Authenticator verifies credentials. Implementations may use passwords,
// passkeys or an external provider; the services only see users.
type Authenticator interface {
	// Register creates a new user account with the given email and credential.
	Register(ctx context.Context, email, displayName, credential string) (*models.User, error)

	// Authenticate verifies the user's credentials and returns the user.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// Lookup returns a registered user by ID.
	Lookup(ctx context.Context, userID string) (*models.User, error)

	// ValidateCredential checks if the credential meets the implementation's requirements.
	ValidateCredential(credential string) error
}

var _ Authenticator = (*PasswordAuthenticator)(nil)
