package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrDaemonUnavailable is returned when the daemon cannot be reached at all.
var ErrDaemonUnavailable = errors.New("daemon unavailable")

// Client talks to a running bobbind over its HTTP API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewClient builds a client for the daemon bound at bind. An empty token
// disables authentication headers.
func NewClient(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, errors.New("api bind address required")
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse api bind: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		http:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Submit enqueues one content item.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (SubmitResponse, error) {
	var resp SubmitResponse
	err := c.do(ctx, http.MethodPost, "/api/items", nil, req, &resp)
	return resp, err
}

// Status fetches the daemon-wide status view.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var resp DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &resp)
	return resp, err
}

// Queue lists queue items, optionally filtered by status.
func (c *Client) Queue(ctx context.Context, statuses ...string) ([]Item, error) {
	values := url.Values{}
	for _, status := range statuses {
		if trimmed := strings.TrimSpace(status); trimmed != "" {
			values.Add("status", trimmed)
		}
	}
	var resp []Item
	err := c.do(ctx, http.MethodGet, "/api/queue", values, nil, &resp)
	return resp, err
}

// RetryFailed moves failed items back to pending. With no IDs every failed
// item is retried.
func (c *Client) RetryFailed(ctx context.Context, ids ...int64) (RetryResponse, error) {
	values := url.Values{}
	for _, id := range ids {
		values.Add("id", strconv.FormatInt(id, 10))
	}
	var resp RetryResponse
	err := c.do(ctx, http.MethodPost, "/api/queue/retry", values, nil, &resp)
	return resp, err
}

// ClearQueue removes items, optionally restricted to the given statuses.
func (c *Client) ClearQueue(ctx context.Context, statuses ...string) (ClearResponse, error) {
	values := url.Values{}
	for _, status := range statuses {
		if trimmed := strings.TrimSpace(status); trimmed != "" {
			values.Add("status", trimmed)
		}
	}
	var resp ClearResponse
	err := c.do(ctx, http.MethodDelete, "/api/queue", values, nil, &resp)
	return resp, err
}

// Collections lists collections, optionally restricted to one group.
func (c *Client) Collections(ctx context.Context, groupID string) ([]Collection, error) {
	values := url.Values{}
	if trimmed := strings.TrimSpace(groupID); trimmed != "" {
		values.Set("group", trimmed)
	}
	var resp []Collection
	err := c.do(ctx, http.MethodGet, "/api/collections", values, nil, &resp)
	return resp, err
}

// CollectionItems lists the members of one collection.
func (c *Client) CollectionItems(ctx context.Context, collectionID string) ([]Item, error) {
	var resp []Item
	err := c.do(ctx, http.MethodGet, "/api/collections/"+url.PathEscape(collectionID)+"/items", nil, nil, &resp)
	return resp, err
}

// Snapshot freezes the building collection for a group on behalf of episodeID.
func (c *Client) Snapshot(ctx context.Context, groupID, episodeID string) (SnapshotResponse, error) {
	var resp SnapshotResponse
	path := "/api/groups/" + url.PathEscape(groupID) + "/snapshot"
	err := c.do(ctx, http.MethodPost, path, nil, SnapshotRequest{EpisodeID: episodeID}, &resp)
	return resp, err
}

// Release frees the group lock held under token.
func (c *Client) Release(ctx context.Context, groupID, token string) error {
	path := "/api/groups/" + url.PathEscape(groupID) + "/release"
	return c.do(ctx, http.MethodPost, path, nil, ReleaseRequest{Token: token}, nil)
}

// Settings fetches the runtime settings map.
func (c *Client) Settings(ctx context.Context) (SettingsPayload, error) {
	var resp SettingsPayload
	err := c.do(ctx, http.MethodGet, "/api/settings", nil, nil, &resp)
	return resp, err
}

// UpdateSetting changes one runtime setting.
func (c *Client) UpdateSetting(ctx context.Context, key, value string) error {
	return c.do(ctx, http.MethodPut, "/api/settings", nil, UpdateSettingRequest{Key: key, Value: value}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.base.ResolveReference(&url.URL{Path: path})
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var payload ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.Error == "" {
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}
	if payload.Kind != "" && payload.Kind != KindInternal {
		return fmt.Errorf("%s: %w", payload.Error, ErrorForKind(payload.Kind))
	}
	return errors.New(payload.Error)
}

// IsDaemonUnavailable reports whether err means no daemon is listening.
func IsDaemonUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrDaemonUnavailable) || errors.As(err, &opErr)
}
