// Package client is the Go consumer of the visit API: a thin HTTP
// client plus the cached active-visit view mobile screens render from.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// APIError is a non-2xx answer from the server.  It distinguishes the
// expected business outcomes (conflict, not found) from transport
// failures, which surface as ordinary errors from Do.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Visit is the wire shape of a visit as the API returns it.
type Visit struct {
	ID          uint64   `json:"id"`
	UserID      uint64   `json:"user_id"`
	GardenID    uint64   `json:"garden_id"`
	Garden      *Garden  `json:"garden,omitempty"`
	DogIDs      []uint64 `json:"dog_ids"`
	Status      string   `json:"status"`
	CheckInAt   string   `json:"check_in_at"`
	CheckOutAt  *string  `json:"check_out_at,omitempty"`
	DurationMin *uint32  `json:"duration_min,omitempty"`
	Notes       *string  `json:"notes,omitempty"`
}

// Garden is the wire shape of a garden as the API returns it.
type Garden struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Address     string  `json:"address"`
	Type        string  `json:"type"`
	MaxDogs     *uint32 `json:"max_dogs,omitempty"`
	CurrentDogs uint32  `json:"current_dogs"`
	IsActive    bool    `json:"is_active"`
}

// CheckInRequest is the body of POST /v1/visits.  Exactly one of
// QRText and GardenCode should be set.
type CheckInRequest struct {
	QRText     string   `json:"qr_text,omitempty"`
	GardenCode string   `json:"garden_code,omitempty"`
	DogIDs     []uint64 `json:"dog_ids"`
	Notes      *string  `json:"notes,omitempty"`
}

// Client talks to the visit API on behalf of one signed-in member.
type Client struct {
	baseURL     string
	accessToken string
	httpc       *http.Client
}

// New returns a Client for the given base URL and bearer token.
func New(baseURL, accessToken string) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		httpc:       &http.Client{Timeout: 15 * time.Second},
	}
}

// itemEnvelope matches the {"item": ...} wrapper the API uses for
// single resources.  A null item decodes to a nil Visit.
type itemEnvelope struct {
	Item *Visit `json:"item"`
}

type errEnvelope struct {
	Error       string `json:"error"`
	ActiveVisit *Visit `json:"active_visit"`
}

// ActiveVisit returns the caller's current active visit, or nil when
// there is none.
func (c *Client) ActiveVisit(ctx context.Context) (*Visit, error) {
	var env itemEnvelope
	if err := c.do(ctx, http.MethodGet, "/v1/visits/active", nil, &env); err != nil {
		return nil, err
	}
	return env.Item, nil
}

// CheckIn starts a visit.  A 409 "already checked in" answer comes
// back as a *ConflictError carrying the existing visit when the server
// included it.
func (c *Client) CheckIn(ctx context.Context, req CheckInRequest) (*Visit, error) {
	var env itemEnvelope
	if err := c.do(ctx, http.MethodPost, "/v1/visits", req, &env); err != nil {
		return nil, err
	}
	return env.Item, nil
}

// CheckOut ends the given visit.
func (c *Client) CheckOut(ctx context.Context, visitID uint64) (*Visit, error) {
	var env itemEnvelope
	path := fmt.Sprintf("/v1/visits/%d/checkout", visitID)
	if err := c.do(ctx, http.MethodPost, path, nil, &env); err != nil {
		return nil, err
	}
	return env.Item, nil
}

// ConflictError is a 409 answer.  For check-in conflicts the server
// embeds the visit that is already active.
type ConflictError struct {
	Message  string
	Existing *Visit
}

func (e *ConflictError) Error() string { return e.Message }

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpc.Do(req)
	if err != nil {
		// Transport failure: the caller must not interpret this as
		// success or failure of the mutation, only re-query.
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		return json.Unmarshal(raw, out)
	}

	var apiErr errEnvelope
	_ = json.Unmarshal(raw, &apiErr)
	if apiErr.Error == "" {
		apiErr.Error = http.StatusText(resp.StatusCode)
	}
	if resp.StatusCode == http.StatusConflict {
		return &ConflictError{Message: apiErr.Error, Existing: apiErr.ActiveVisit}
	}
	return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
}
