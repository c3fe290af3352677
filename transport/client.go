// Package transport talks to the chat server: a REST client for requests
// and a websocket subscriber for push events. It owns the credential
// plumbing, the mapping from HTTP statuses to the error taxonomy, and the
// reconnect policy; nothing above it ever sees a raw HTTP response or a
// raw websocket frame.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/parleychat/parley"
	"github.com/parleychat/parley/session"
)

const requestTimeout = 10 * time.Second

// Client performs the REST half of the server contract. It attaches the
// session's bearer token to every authenticated call and never retries;
// the caller decides what a failure means.
type Client struct {
	baseURL string
	http    *http.Client
	session *session.Session
}

// NewClient builds a REST client for the server at baseURL, reading the
// credential from sess.
func NewClient(baseURL string, sess *session.Session) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
		session: sess,
	}
}

// errorBody is the shape the server uses for error responses.
type errorBody struct {
	Message string `json:"message"`
}

// classify maps an HTTP response status to the error taxonomy.
func classify(status int, body []byte) error {
	msg := http.StatusText(status)
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Message != "" {
		msg = eb.Message
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return parley.NewUnauthorizedError(msg)
	case status == http.StatusNotFound:
		return parley.NewNotFoundError(msg)
	case status == http.StatusConflict:
		return parley.NewConflictError(msg)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return parley.NewValidationError(msg)
	default:
		return errors.Errorf("unexpected status %d: %s", status, msg)
	}
}

// do runs one request and decodes the response into out when out is
// non-nil and the server replied 2xx.
func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, "encoding request payload")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	if tok := c.session.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return parley.NewNetworkError(fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return parley.NewNetworkError(fmt.Sprintf("reading response: %v", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classify(resp.StatusCode, raw)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return errors.Wrap(err, "decoding response")
		}
	}
	return nil
}

// Login exchanges credentials for a token and stores it in the session.
func (c *Client) Login(ctx context.Context, creds parley.Credentials) (*parley.AuthResponse, error) {
	var auth parley.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/login", creds, &auth); err != nil {
		return nil, err
	}
	if auth.Username == "" {
		auth.Username = creds.Username
	}
	c.session.Set(auth.Token, auth.Username)
	return &auth, nil
}

// Signup registers a new user and stores the returned token. A taken
// username comes back as a Conflict.
func (c *Client) Signup(ctx context.Context, creds parley.Credentials) (*parley.AuthResponse, error) {
	var auth parley.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/signup", creds, &auth); err != nil {
		return nil, err
	}
	if auth.Username == "" {
		auth.Username = creds.Username
	}
	c.session.Set(auth.Token, auth.Username)
	return &auth, nil
}

// BulkFetch loads channels and messages in parallel, the way the chat
// screen boots. Requires a credential.
func (c *Client) BulkFetch(ctx context.Context) (*parley.BulkData, error) {
	if c.session.Token() == "" {
		return nil, parley.NewUnauthorizedError("not logged in")
	}

	var data parley.BulkData
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.do(ctx, http.MethodGet, "/api/v1/channels", nil, &data.Channels)
	})
	g.Go(func() error {
		return c.do(ctx, http.MethodGet, "/api/v1/messages", nil, &data.Messages)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &data, nil
}

// CreateChannel asks the server for a new channel. The server validates
// name length and uniqueness; duplicates come back as a Conflict.
func (c *Client) CreateChannel(ctx context.Context, name string) (*parley.Channel, error) {
	var ch parley.Channel
	payload := struct {
		Name string `json:"name"`
	}{Name: name}
	if err := c.do(ctx, http.MethodPost, "/api/v1/channels", payload, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// RenameChannel renames an existing channel.
func (c *Client) RenameChannel(ctx context.Context, id, name string) error {
	payload := struct {
		Name string `json:"name"`
	}{Name: name}
	return c.do(ctx, http.MethodPatch, "/api/v1/channels/"+id, payload, nil)
}

// DeleteChannel removes a channel and its messages.
func (c *Client) DeleteChannel(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/channels/"+id, nil, nil)
}

// SendMessage posts a message. On failure the caller keeps the draft;
// there is no idempotency key, so a blind retry may duplicate.
func (c *Client) SendMessage(ctx context.Context, msg parley.OutgoingMessage) error {
	return c.do(ctx, http.MethodPost, "/api/v1/messages", msg, nil)
}
