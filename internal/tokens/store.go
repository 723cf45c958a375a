package tokens

import "context"

// Store is the contract for reading and writing a user's device tokens.
type Store interface {
	// GetTokens retrieves all tokens registered for a user, oldest first.
	// A user with no tokens returns an empty slice, not an error.
	GetTokens(ctx context.Context, userID string) ([]DeviceToken, error)

	// Register adds or updates a device token for a user (upsert on token).
	Register(ctx context.Context, userID string, token DeviceToken) error

	// Unregister removes a device token. Removing an unknown token is a no-op.
	Unregister(ctx context.Context, userID, token string) error
}
