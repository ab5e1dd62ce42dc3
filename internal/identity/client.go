// internal/identity/client.go
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Client looks up user records at the RegistryAccord identity service.
// The HTTP shell uses it to confirm that a token subject is a known user
// before signing a session in.
type Client struct {
	base string       // Base URL of the identity service
	hc   *http.Client // HTTP client with custom configuration
}

// Record is a user record returned by the identity service.
type Record struct {
	UserID      string `json:"userId"`      // Stable user identifier, used as the token subject
	DisplayName string `json:"displayName"` // Name shown next to comments and chat messages
	CreatedAt   string `json:"createdAt"`   // When the user was registered
}

// ErrNotFound is returned when a user record is not found.
var ErrNotFound = errors.New("identity not found")

// New creates a new identity client with the specified base URL.
// Parameters:
//   - baseURL: Base URL of the identity service
//
// Returns:
//   - *Client: Initialized identity client
func New(baseURL string) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{Timeout: 2 * time.Second}).DialContext,
	}
	return &Client{
		base: baseURL,
		hc:   &http.Client{Transport: transport, Timeout: 3 * time.Second},
	}
}

// Get retrieves the record for userID.
// Returns ErrNotFound if the service does not know the user.
func (c *Client) Get(ctx context.Context, userID string) (Record, error) {
	u, err := url.Parse(c.base)
	if err != nil {
		return Record{}, fmt.Errorf("invalid identity base URL: %w", err)
	}
	u.Path = "/xrpc/com.registryaccord.identity.getUser"
	q := u.Query()
	q.Set("userId", userID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Record{}, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return Record{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var rec Record
		if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
			return Record{}, err
		}
		if rec.UserID == "" {
			rec.UserID = userID
		}
		return rec, nil
	case http.StatusNotFound:
		return Record{}, ErrNotFound
	default:
		return Record{}, fmt.Errorf("identity get failed: %s", resp.Status)
	}
}
