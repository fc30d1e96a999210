// ABOUTME: Client for the external identity provider's user API
// ABOUTME: Resolves emails to user ids and batch-resolves ids to display profiles

package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Identity errors
var (
	// ErrNotFound is returned when no account matches the given email.
	ErrNotFound = errors.New("no account for email")
	// ErrUpstream is returned when the provider is unreachable or fails.
	ErrUpstream = errors.New("identity provider error")
)

// Profile is a user's display profile as issued by the provider. Never
// mutated here; tether only reads identity state.
type Profile struct {
	ID       string
	Name     string
	Email    string
	PhotoURL string
}

// Resolver defines what the friend-graph layer needs from identity.
type Resolver interface {
	// LookupByEmail resolves an email address to a stable user id.
	LookupByEmail(ctx context.Context, email string) (string, error)
	// Profiles batch-resolves user ids to display profiles. Ids the
	// provider cannot resolve are omitted from the result; callers detect
	// partial results by comparing lengths.
	Profiles(ctx context.Context, ids []string) (map[string]Profile, error)
}

// Client talks to a Clerk-style user API over HTTPS with a bearer API key.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates an identity client. Pass nil httpClient for a default
// with a 10s timeout, and nil logger for slog.Default.
func NewClient(baseURL, apiKey string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    httpClient,
		logger:  logger.With("component", "identity"),
	}
}

// providerUser is the provider's wire shape for a user object.
type providerUser struct {
	ID             string `json:"id"`
	FullName       string `json:"full_name"`
	ImageURL       string `json:"image_url"`
	EmailAddresses []struct {
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
}

func (u *providerUser) profile() Profile {
	p := Profile{
		ID:       u.ID,
		Name:     u.FullName,
		PhotoURL: u.ImageURL,
	}
	if len(u.EmailAddresses) > 0 {
		p.Email = u.EmailAddresses[0].EmailAddress
	}
	return p
}

// LookupByEmail resolves an email to the provider's stable user id.
func (c *Client) LookupByEmail(ctx context.Context, email string) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/users?email_address=%s", c.baseURL, url.QueryEscape(email))

	var users []providerUser
	if err := c.getJSON(ctx, endpoint, &users); err != nil {
		return "", err
	}
	if len(users) == 0 {
		return "", ErrNotFound
	}
	return users[0].ID, nil
}

// Profiles resolves each id to a profile. Unresolvable ids are logged and
// omitted; a transport or provider failure aborts the whole batch.
func (c *Client) Profiles(ctx context.Context, ids []string) (map[string]Profile, error) {
	profiles := make(map[string]Profile, len(ids))
	for _, id := range ids {
		endpoint := fmt.Sprintf("%s/v1/users/%s", c.baseURL, url.PathEscape(id))

		var user providerUser
		err := c.getJSON(ctx, endpoint, &user)
		if errors.Is(err, ErrNotFound) {
			c.logger.Warn("unresolvable user id omitted from profile batch", "user_id", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		profiles[id] = user.profile()
	}
	return profiles, nil
}

// getJSON performs an authenticated GET and decodes the JSON response.
// 404 maps to ErrNotFound; any other non-2xx or transport failure maps to
// ErrUpstream with the cause attached.
func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrUpstream, err)
	}
	return nil
}
