// Package remote implements the goals service over the REST API, making
// a network backend interchangeable with the local one.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"goalboard.org/internal/auth"
	"goalboard.org/internal/goals"
)

// ErrTransport wraps failures that are neither a response from the API
// nor a recognized API error.
var ErrTransport = errors.New("remote: transport error")

const defaultTimeout = 10 * time.Second

// Client speaks the /v1 JSON contract with a bearer token.
type Client struct {
	baseURL string
	http    *http.Client

	tokenSource    func() string
	onUnauthorized func()
}

var _ goals.Service = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTokenSource supplies the bearer token for each request, typically
// from the session manager.
func WithTokenSource(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.tokenSource = fn
		}
	}
}

// WithUnauthorizedHook runs whenever the API rejects the token, so the
// caller can clear its persisted session.
func WithUnauthorizedHook(fn func()) Option {
	return func(c *Client) {
		if fn != nil {
			c.onUnauthorized = fn
		}
	}
}

// New builds a client for the API at baseURL (scheme://host[:port]).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        &http.Client{Timeout: defaultTimeout},
		tokenSource: func() string { return "" },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/v1"+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokenSource(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrTransport, err)
		}
		return nil
	}

	msg := decodeErrorMessage(resp.Body)
	if resp.StatusCode == http.StatusUnauthorized {
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return auth.ErrUnauthorized
	}
	return &apiError{Status: resp.StatusCode, Message: msg}
}

// decodeErrorMessage reads the API error payload; both "error" and
// "message" keys appear depending on the endpoint.
func decodeErrorMessage(r io.Reader) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return ""
	}
	if payload.Error != "" {
		return payload.Error
	}
	return payload.Message
}

// mapStatus converts an apiError into the domain error the status code
// stands for. The conflict error differs per operation, so callers pass
// their own.
func mapStatus(err error, conflict error) error {
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Status {
	case http.StatusBadRequest:
		if apiErr.Message != "" {
			return fmt.Errorf("%w: %s", goals.ErrValidation, apiErr.Message)
		}
		return goals.ErrValidation
	case http.StatusForbidden:
		return goals.ErrNotOwner
	case http.StatusNotFound:
		return goals.ErrNotFound
	case http.StatusConflict:
		if conflict != nil {
			return conflict
		}
	}
	return fmt.Errorf("%w: status %d", ErrTransport, apiErr.Status)
}

type authResponse struct {
	User  *goals.User `json:"user"`
	Token string      `json:"token"`
}

// Auth ---------------------------------------------------------------------

func (c *Client) Register(ctx context.Context, name, email, password string) (*goals.User, string, error) {
	var resp authResponse
	err := c.do(ctx, http.MethodPost, "/auth/register", map[string]string{
		"nome":     name,
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return nil, "", mapStatus(err, goals.ErrEmailTaken)
	}
	return resp.User, resp.Token, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*goals.User, string, error) {
	var resp authResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return nil, "", mapStatus(err, nil)
	}
	return resp.User, resp.Token, nil
}

func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/logout", map[string]string{}, nil)
	if err != nil && !errors.Is(err, auth.ErrUnauthorized) {
		return mapStatus(err, nil)
	}
	return nil
}

func (c *Client) Me(ctx context.Context) (*goals.User, error) {
	var resp struct {
		User *goals.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &resp); err != nil {
		return nil, mapStatus(err, nil)
	}
	return resp.User, nil
}

// Groups -------------------------------------------------------------------

func (c *Client) CreateGroup(ctx context.Context, name, description string) (*goals.Group, error) {
	var group goals.Group
	err := c.do(ctx, http.MethodPost, "/groups", map[string]string{
		"nome":      name,
		"descricao": description,
	}, &group)
	if err != nil {
		return nil, mapStatus(err, nil)
	}
	return &group, nil
}

func (c *Client) ListGroups(ctx context.Context) ([]*goals.Group, error) {
	var list []*goals.Group
	if err := c.do(ctx, http.MethodGet, "/groups", nil, &list); err != nil {
		return nil, mapStatus(err, nil)
	}
	return list, nil
}

func (c *Client) GetGroup(ctx context.Context, id string) (*goals.Group, error) {
	var group goals.Group
	if err := c.do(ctx, http.MethodGet, "/groups/"+url.PathEscape(id), nil, &group); err != nil {
		return nil, mapStatus(err, nil)
	}
	return &group, nil
}

func (c *Client) JoinGroup(ctx context.Context, inviteCode string) (*goals.Group, error) {
	var group goals.Group
	err := c.do(ctx, http.MethodPost, "/groups/join", map[string]string{
		"codigoConvite": inviteCode,
	}, &group)
	if err != nil {
		err = mapStatus(err, goals.ErrAlreadyMember)
		if errors.Is(err, goals.ErrNotFound) {
			return nil, goals.ErrInvalidCode
		}
		return nil, err
	}
	return &group, nil
}

// Goals --------------------------------------------------------------------

func (c *Client) CreateGoal(ctx context.Context, in goals.GoalInput) (*goals.BigGoal, error) {
	var goal goals.BigGoal
	if err := c.do(ctx, http.MethodPost, "/metas", in, &goal); err != nil {
		return nil, mapStatus(err, nil)
	}
	return &goal, nil
}

func (c *Client) GetGoal(ctx context.Context, id string) (*goals.BigGoal, error) {
	var goal goals.BigGoal
	if err := c.do(ctx, http.MethodGet, "/metas/"+url.PathEscape(id), nil, &goal); err != nil {
		return nil, mapStatus(err, nil)
	}
	return &goal, nil
}

func (c *Client) UpdateGoal(ctx context.Context, id string, in goals.GoalInput) (*goals.BigGoal, error) {
	var goal goals.BigGoal
	if err := c.do(ctx, http.MethodPut, "/metas/"+url.PathEscape(id), in, &goal); err != nil {
		return nil, mapStatus(err, goals.ErrLastSmallGoal)
	}
	return &goal, nil
}

func (c *Client) DeleteGoal(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/metas/"+url.PathEscape(id), nil, nil); err != nil {
		return mapStatus(err, nil)
	}
	return nil
}

func (c *Client) ListGroupGoals(ctx context.Context, groupID string) ([]*goals.BigGoal, error) {
	var list []*goals.BigGoal
	path := "/metas?grupoId=" + url.QueryEscape(groupID)
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, mapStatus(err, nil)
	}
	return list, nil
}

// Small goals --------------------------------------------------------------

func (c *Client) AddSmallGoal(ctx context.Context, goalID, title string) (*goals.SmallGoal, error) {
	var sg goals.SmallGoal
	err := c.do(ctx, http.MethodPost, "/metas/"+url.PathEscape(goalID)+"/metas-pequenas",
		map[string]string{"titulo": title}, &sg)
	if err != nil {
		return nil, mapStatus(err, nil)
	}
	return &sg, nil
}

func (c *Client) UpdateSmallGoal(ctx context.Context, goalID, smallID string, patch goals.SmallGoalPatch) (*goals.SmallGoal, error) {
	var sg goals.SmallGoal
	err := c.do(ctx, http.MethodPut,
		"/metas/"+url.PathEscape(goalID)+"/metas-pequenas/"+url.PathEscape(smallID), patch, &sg)
	if err != nil {
		return nil, mapStatus(err, nil)
	}
	return &sg, nil
}

func (c *Client) DeleteSmallGoal(ctx context.Context, goalID, smallID string) error {
	err := c.do(ctx, http.MethodDelete,
		"/metas/"+url.PathEscape(goalID)+"/metas-pequenas/"+url.PathEscape(smallID), nil, nil)
	if err != nil {
		return mapStatus(err, goals.ErrLastSmallGoal)
	}
	return nil
}
