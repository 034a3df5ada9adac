// Package identity wraps the hosted identity provider. The provider owns
// sessions, user records and the per-user public-metadata blob that this
// application treats as its source of truth for role, plan and quota state.
package identity

import (
	"context"
	"errors"
	"time"
)

// Metadata is the typed view of the provider's public-metadata blob.
// Writes go through PatchMetadata as loose maps so that partial updates
// stay partial; this struct is read-side only.
type Metadata struct {
	Role               string `json:"role,omitempty"`
	Plan               string `json:"plan,omitempty"`
	StorageUsed        int64  `json:"storageUsed,omitempty"`
	StorageLimit       int64  `json:"storageLimit,omitempty"`
	Status             string `json:"status,omitempty"`
	StripeCustomerID   string `json:"stripeCustomerId,omitempty"`
	SubscriptionID     string `json:"subscriptionId,omitempty"`
	SubscriptionStatus string `json:"subscriptionStatus,omitempty"`
	CreatedBy          string `json:"createdBy,omitempty"`
	CreatedAt          string `json:"createdAt,omitempty"`
	UpdatedAt          string `json:"updatedAt,omitempty"`
	LastUpdated        string `json:"lastUpdated,omitempty"`
}

// User is the provider's user record mirrored into this app's view.
type User struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	CreatedAt time.Time
	Meta      Metadata
}

// CreateUserParams carries the fields an admin supplies when provisioning
// a user directly in the provider.
type CreateUserParams struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Meta      map[string]any
}

// UpdateUserParams carries an admin edit. Nil fields are left untouched.
// Meta, when set, replaces the whole metadata blob (provider semantics for
// a full user update) - callers accept the clobber, matching the
// last-write-wins model used everywhere else.
type UpdateUserParams struct {
	FirstName *string
	LastName  *string
	Email     *string
	Password  *string
	Meta      map[string]any
}

var (
	// ErrNotConnected reports that the user never linked a Google account,
	// or that the provider holds no usable OAuth token for them.
	ErrNotConnected = errors.New("identity: google account not connected")

	// ErrEmailExists reports a duplicate email on user creation.
	ErrEmailExists = errors.New("identity: email already exists")
)

// Client is the repository-style surface over the provider. Metadata writes
// are shallow merges with no compare-and-swap; concurrent writers clobber
// each other and the last write wins.
type Client interface {
	User(ctx context.Context, id string) (*User, error)
	Users(ctx context.Context, limit int64) ([]*User, error)
	PatchMetadata(ctx context.Context, id string, patch map[string]any) error
	CreateUser(ctx context.Context, p CreateUserParams) (*User, error)
	UpdateUser(ctx context.Context, id string, p UpdateUserParams) (*User, error)
	DeleteUser(ctx context.Context, id string) error

	// GoogleAccessToken exchanges the stored OAuth grant for a live Drive
	// access token. Returns ErrNotConnected when no grant exists.
	GoogleAccessToken(ctx context.Context, id string) (string, error)
}
