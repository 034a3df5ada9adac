package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/clerk/clerk-sdk-go/v2/emailaddress"
	clerkuser "github.com/clerk/clerk-sdk-go/v2/user"
)

const (
	backendAPIBase = "https://api.clerk.com/v1"

	// Provider identifier for the Google OAuth connection.
	googleProvider = "oauth_google"
)

// ClerkClient implements Client against the Clerk Backend API.
type ClerkClient struct {
	secretKey string
	http      *http.Client

	// tokenEndpoint is overridable in tests.
	tokenEndpoint string
}

func NewClerkClient(secretKey string) *ClerkClient {
	clerk.SetKey(secretKey)
	return &ClerkClient{
		secretKey:     secretKey,
		http:          &http.Client{Timeout: 10 * time.Second},
		tokenEndpoint: backendAPIBase + "/users/%s/oauth_access_tokens/" + googleProvider,
	}
}

func (c *ClerkClient) User(ctx context.Context, id string) (*User, error) {
	u, err := clerkuser.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return fromClerkUser(u), nil
}

func (c *ClerkClient) Users(ctx context.Context, limit int64) ([]*User, error) {
	params := &clerkuser.ListParams{}
	params.Limit = clerk.Int64(limit)
	list, err := clerkuser.List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]*User, 0, len(list.Users))
	for _, u := range list.Users {
		users = append(users, fromClerkUser(u))
	}
	return users, nil
}

func (c *ClerkClient) PatchMetadata(ctx context.Context, id string, patch map[string]any) error {
	raw, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("marshal metadata patch: %w", err)
	}
	meta := json.RawMessage(raw)
	if _, err := clerkuser.UpdateMetadata(ctx, id, &clerkuser.UpdateMetadataParams{
		PublicMetadata: &meta,
	}); err != nil {
		return fmt.Errorf("patch metadata for %s: %w", id, err)
	}
	return nil
}

func (c *ClerkClient) CreateUser(ctx context.Context, p CreateUserParams) (*User, error) {
	raw, err := json.Marshal(p.Meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	meta := json.RawMessage(raw)

	params := &clerkuser.CreateParams{
		EmailAddresses: &[]string{p.Email},
		Password:       clerk.String(p.Password),
		FirstName:      clerk.String(p.FirstName),
		PublicMetadata: &meta,
	}
	if p.LastName != "" {
		params.LastName = clerk.String(p.LastName)
	}

	u, err := clerkuser.Create(ctx, params)
	if err != nil {
		if isDuplicateEmail(err) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return fromClerkUser(u), nil
}

func (c *ClerkClient) UpdateUser(ctx context.Context, id string, p UpdateUserParams) (*User, error) {
	params := &clerkuser.UpdateParams{
		FirstName: p.FirstName,
		LastName:  p.LastName,
	}
	if p.Password != nil {
		params.Password = p.Password
	}
	if p.Meta != nil {
		raw, err := json.Marshal(p.Meta)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
		meta := json.RawMessage(raw)
		params.PublicMetadata = &meta
	}

	u, err := clerkuser.Update(ctx, id, params)
	if err != nil {
		return nil, fmt.Errorf("update user %s: %w", id, err)
	}

	// Email changes go through the email-address resource: the new address
	// is created verified and promoted to primary.
	if p.Email != nil && *p.Email != "" && *p.Email != primaryEmail(u) {
		if _, err := emailaddress.Create(ctx, &emailaddress.CreateParams{
			UserID:       clerk.String(id),
			EmailAddress: clerk.String(*p.Email),
			Verified:     clerk.Bool(true),
			Primary:      clerk.Bool(true),
		}); err != nil {
			return nil, fmt.Errorf("update email for %s: %w", id, err)
		}
	}

	return fromClerkUser(u), nil
}

func (c *ClerkClient) DeleteUser(ctx context.Context, id string) error {
	if _, err := clerkuser.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	return nil
}

// GoogleAccessToken calls the Backend API token-exchange endpoint directly:
// the SDK does not cover it. The endpoint has returned both a bare array and
// a paginated object across API versions, so both shapes are accepted.
func (c *ClerkClient) GoogleAccessToken(ctx context.Context, id string) (string, error) {
	url := fmt.Sprintf(c.tokenEndpoint, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange status %d: %w", resp.StatusCode, ErrNotConnected)
	}

	type oauthToken struct {
		Token string `json:"token"`
	}
	var tokens []oauthToken
	if err := json.Unmarshal(body, &tokens); err != nil {
		var paged struct {
			Data []oauthToken `json:"data"`
		}
		if err := json.Unmarshal(body, &paged); err != nil {
			return "", fmt.Errorf("decode token response: %w", err)
		}
		tokens = paged.Data
	}
	if len(tokens) == 0 || tokens[0].Token == "" {
		return "", ErrNotConnected
	}
	return tokens[0].Token, nil
}

func fromClerkUser(u *clerk.User) *User {
	out := &User{
		ID:        u.ID,
		Email:     primaryEmail(u),
		CreatedAt: time.UnixMilli(u.CreatedAt).UTC(),
	}
	if u.FirstName != nil {
		out.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		out.LastName = *u.LastName
	}
	if len(u.PublicMetadata) > 0 {
		// A malformed blob degrades to zero values, mirroring the lenient
		// reads the dashboard performs.
		_ = json.Unmarshal(u.PublicMetadata, &out.Meta)
	}
	return out
}

func primaryEmail(u *clerk.User) string {
	if u.PrimaryEmailAddressID != nil {
		for _, e := range u.EmailAddresses {
			if e.ID == *u.PrimaryEmailAddressID {
				return e.EmailAddress
			}
		}
	}
	if len(u.EmailAddresses) > 0 {
		return u.EmailAddresses[0].EmailAddress
	}
	return ""
}

func isDuplicateEmail(err error) bool {
	var apiErr *clerk.APIErrorResponse
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, e := range apiErr.Errors {
		if e.Code == "form_identifier_exists" {
			return true
		}
	}
	return false
}
