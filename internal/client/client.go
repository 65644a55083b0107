// Package client talks to a cinerank server over HTTP. It implements
// [ranking.Loader] and [ranking.Persister], so a [ranking.Session] can edit a
// remote list the same way the server edits a local one.
package client

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

	"github.com/meur/cinerank/internal/auth"
	"github.com/meur/cinerank/internal/models"
	"github.com/meur/cinerank/internal/shared"
)

// Client is a JSON client for the list API. Writes address lists by their
// private token, which the server requires for owner access.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a client for the server at baseURL. token is the bearer token
// sent with every request; it may be empty for anonymous reads.
func New(baseURL, token string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

// apiError is the body the server sends with every non-2xx response.
type apiError struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// Fetch implements [ranking.Loader]. The caller's identity is whatever the
// bearer token says, so identity is not sent.
func (c *Client) Fetch(ctx context.Context, ref string, _ auth.Identity) (*models.ListView, error) {
	var view models.ListView
	if err := c.do(ctx, http.MethodGet, "/api/lists/"+url.PathEscape(ref), nil, &view); err != nil {
		return nil, err
	}
	if view.Items == nil {
		view.Items = []models.Item{}
	}
	return &view, nil
}

// MyLists returns the lists owned by the token's user.
func (c *Client) MyLists(ctx context.Context) ([]models.ListSummary, error) {
	var lists []models.ListSummary
	if err := c.do(ctx, http.MethodGet, "/api/lists/mine", nil, &lists); err != nil {
		return nil, err
	}
	return lists, nil
}

// CreateList creates an empty list.
func (c *Client) CreateList(ctx context.Context, name string) (*models.List, error) {
	var list models.List
	if err := c.do(ctx, http.MethodPost, "/api/lists", models.ListCreate{Name: name}, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Movie looks up a catalog entry.
func (c *Client) Movie(ctx context.Context, id int64) (*models.Movie, error) {
	var movie models.Movie
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/movies/%d", id), nil, &movie); err != nil {
		return nil, err
	}
	return &movie, nil
}

func (c *Client) RenameList(ctx context.Context, list models.List, name string) error {
	return c.do(ctx, http.MethodPut, listPath(list), models.ListUpdate{Name: &name}, nil)
}

func (c *Client) DeleteList(ctx context.Context, list models.List) error {
	return c.do(ctx, http.MethodDelete, listPath(list), nil, nil)
}

func (c *Client) AddItem(ctx context.Context, list models.List, item models.Item) error {
	req := models.ItemCreate{
		ID:         item.ID,
		MovieID:    item.Movie.ID,
		Title:      item.Movie.Title,
		PosterPath: item.Movie.PosterPath,
	}
	return c.do(ctx, http.MethodPost, listPath(list)+"/items", req, nil)
}

func (c *Client) RemoveItem(ctx context.Context, list models.List, itemID string) error {
	return c.do(ctx, http.MethodDelete, listPath(list)+"/items/"+url.PathEscape(itemID), nil, nil)
}

func (c *Client) UpdateItemComment(ctx context.Context, list models.List, itemID, comment string) error {
	req := models.ItemUpdate{Comment: &comment}
	return c.do(ctx, http.MethodPut, listPath(list)+"/items/"+url.PathEscape(itemID), req, nil)
}

func (c *Client) ReorderItems(ctx context.Context, list models.List, mapping []models.RankUpdate) error {
	return c.do(ctx, http.MethodPut, listPath(list)+"/reorder", models.ReorderRequest{Items: mapping}, nil)
}

func listPath(list models.List) string {
	return "/api/lists/" + url.PathEscape(list.PrivateID)
}

// do sends one JSON request and decodes a 2xx body into out when out is
// non-nil. Error statuses are turned back into the shared error types.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return shared.Persistence(method+" "+path, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return shared.Persistence(method+" "+path, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(method, path, resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func statusError(method, path string, status int, body []byte) error {
	var payload apiError
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error == "" {
		payload.Error = strings.TrimSpace(string(body))
	}
	op := method + " " + path

	switch status {
	case http.StatusBadRequest:
		return &shared.ValidationError{Reason: payload.Error}
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", shared.ErrUnauthenticated, payload.Error)
	case http.StatusForbidden:
		return &shared.AuthorizationError{Op: op}
	case http.StatusNotFound:
		return &shared.NotFoundError{Resource: strings.TrimSuffix(payload.Error, " not found")}
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return &shared.PersistenceError{Op: op, Err: errors.New(payload.Error)}
	default:
		if payload.Retryable || status >= 500 {
			return &shared.PersistenceError{Op: op, Err: fmt.Errorf("status %d: %s", status, payload.Error)}
		}
		return fmt.Errorf("%s: status %d: %s", op, status, payload.Error)
	}
}
