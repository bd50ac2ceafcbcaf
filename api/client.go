package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"wikichat/model"
)

const defaultBaseURL = "http://localhost:3000"

// Client talks to the wiki backend's chat and admin endpoints.
type Client struct {
	http       *http.Client
	baseURL    *url.URL
	adminToken string
}

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// EnvelopeError is returned when an admin response carries a non-zero code.
type EnvelopeError struct {
	Code int
	Msg  string
}

func (e *EnvelopeError) Error() string {
	return fmt.Sprintf("backend error %d: %s", e.Code, e.Msg)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client. Streaming requests rely
// on ctx for cancellation, so the client should not set a global timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithAdminToken sets the bearer token sent on admin endpoints.
func WithAdminToken(token string) Option {
	return func(c *Client) { c.adminToken = token }
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	parsedURL, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid API URL %q: scheme and host are required", baseURL)
	}

	c := &Client{
		http:    &http.Client{},
		baseURL: parsedURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// ChatFilter narrows retrieval to one site.
type ChatFilter struct {
	SiteID int64 `json:"site_id"`
}

// ChatRequest is the body of a chat completions call. Stream is always set.
type ChatRequest struct {
	ThreadID string      `json:"thread_id"`
	Message  string      `json:"message"`
	Stream   bool        `json:"stream"`
	User     string      `json:"user"`
	Filter   *ChatFilter `json:"filter,omitempty"`
}

// StreamChat posts a chat message and returns the event stream body. The
// caller must close it. Cancelling ctx aborts the request and any pending
// read on the body.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	req.Stream = true
	resp, err := c.do(ctx, http.MethodPost, "/v1/chat/completions", nil, req, false)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// History is the stored transcript of one thread.
type History struct {
	Messages  []model.RawMessage `json:"messages"`
	Citations []model.Source     `json:"citations,omitempty"`
}

// GetMessages fetches the stored history of a thread.
func (c *Client) GetMessages(ctx context.Context, threadID string) (*History, error) {
	var h History
	path := "/v1/chat/sessions/" + url.PathEscape(threadID) + "/messages"
	if err := c.getJSON(ctx, path, nil, false, &h); err != nil {
		return nil, fmt.Errorf("failed to get messages for thread %s: %w", threadID, err)
	}
	return &h, nil
}

// Session is the metadata of one stored conversation.
type Session struct {
	ID              int64     `json:"id"`
	ThreadID        string    `json:"thread_id"`
	SiteID          int64     `json:"site_id"`
	MemberID        *int64    `json:"member_id,omitempty"`
	Title           string    `json:"title,omitempty"`
	LastMessage     string    `json:"last_message,omitempty"`
	LastMessageRole string    `json:"last_message_role,omitempty"`
	MessageCount    int       `json:"message_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SessionPage is one page of ListSessions, newest first.
type SessionPage struct {
	Items []Session `json:"items"`
	Total int       `json:"total"`
	Page  int       `json:"page"`
	Size  int       `json:"size"`
}

// SessionFilter selects which sessions ListSessions returns. Zero values
// are omitted from the query.
type SessionFilter struct {
	SiteID   int64
	MemberID int64
	Page     int
	Size     int
}

func (f SessionFilter) query() url.Values {
	q := url.Values{}
	if f.SiteID != 0 {
		q.Set("site_id", strconv.FormatInt(f.SiteID, 10))
	}
	if f.MemberID != 0 {
		q.Set("member_id", strconv.FormatInt(f.MemberID, 10))
	}
	page, size := f.Page, f.Size
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	return q
}

func (c *Client) ListSessions(ctx context.Context, filter SessionFilter) (*SessionPage, error) {
	var page SessionPage
	if err := c.getJSON(ctx, "/v1/chat/sessions", filter.query(), false, &page); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return &page, nil
}

func (c *Client) GetSession(ctx context.Context, threadID string) (*Session, error) {
	var s Session
	if err := c.getJSON(ctx, "/v1/chat/sessions/"+url.PathEscape(threadID), nil, false, &s); err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", threadID, err)
	}
	return &s, nil
}

// DeleteSession removes the session record. The backend keeps the message
// checkpoints.
func (c *Client) DeleteSession(ctx context.Context, threadID string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/v1/chat/sessions/"+url.PathEscape(threadID), nil, nil, false)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", threadID, err)
	}
	drain(resp.Body)
	return nil
}

// CollectionNode is one node of the admin collection tree. Document nodes
// only appear when the tree is requested with documents.
type CollectionNode struct {
	ID           int64            `json:"id"`
	Title        string           `json:"title"`
	Type         string           `json:"type"`
	Children     []CollectionNode `json:"children,omitempty"`
	Status       string           `json:"status,omitempty"`
	Views        int              `json:"views,omitempty"`
	Tags         []string         `json:"tags,omitempty"`
	CollectionID *int64           `json:"collection_id,omitempty"`
}

// Collection is the flat record returned by admin collection endpoints.
type Collection struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	ParentID *int64 `json:"parent_id"`
	Order    int    `json:"order"`
	SiteID   int64  `json:"site_id"`
}

type envelope[T any] struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data T      `json:"data"`
}

func (c *Client) CollectionTree(ctx context.Context, siteID int64, collectionsOnly bool) ([]CollectionNode, error) {
	q := url.Values{}
	q.Set("site_id", strconv.FormatInt(siteID, 10))
	if collectionsOnly {
		q.Set("type", "collection")
	}

	var env envelope[[]CollectionNode]
	if err := c.getJSON(ctx, "/admin/v1/collections:tree", q, true, &env); err != nil {
		return nil, fmt.Errorf("failed to get collection tree: %w", err)
	}
	if env.Code != 0 {
		return nil, fmt.Errorf("failed to get collection tree: %w", &EnvelopeError{Code: env.Code, Msg: env.Msg})
	}
	return env.Data, nil
}

type moveRequest struct {
	TargetParentID *int64 `json:"target_parent_id"`
	TargetPosition int    `json:"target_position"`
}

// MoveCollection reparents a collection and places it at position among
// its new siblings. A nil parent moves it to the root.
func (c *Client) MoveCollection(ctx context.Context, siteID, collectionID int64, parentID *int64, position int) (*Collection, error) {
	q := url.Values{}
	q.Set("site_id", strconv.FormatInt(siteID, 10))
	path := "/admin/v1/collections/" + strconv.FormatInt(collectionID, 10) + ":move"

	resp, err := c.do(ctx, http.MethodPost, path, q, moveRequest{TargetParentID: parentID, TargetPosition: position}, true)
	if err != nil {
		return nil, fmt.Errorf("failed to move collection %d: %w", collectionID, err)
	}
	defer resp.Body.Close()

	var env envelope[*Collection]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode move response: %w", err)
	}
	if env.Code != 0 {
		return nil, fmt.Errorf("failed to move collection %d: %w", collectionID, &EnvelopeError{Code: env.Code, Msg: env.Msg})
	}
	return env.Data, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, admin bool, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, q, nil, admin)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// do sends the request and returns the response only for 2xx statuses.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, body any, admin bool) (*http.Response, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawPath = ""
	if q != nil {
		u.RawQuery = q.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json, text/event-stream")
	if admin && c.adminToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.adminToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	return resp, nil
}

func drain(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, rc)
	_ = rc.Close()
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Ping checks that the backend is reachable.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, "/health", nil, nil, false)
	if err != nil {
		return err
	}
	drain(resp.Body)
	return nil
}
