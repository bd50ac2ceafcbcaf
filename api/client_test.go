package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, opts...)
	require.NoError(t, err)
	return c
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("not a url")
	assert.Error(t, err)

	c, err := NewClient("")
	require.NoError(t, err)
	assert.Equal(t, defaultBaseURL, c.BaseURL())
}

func TestStreamChat(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Empty(t, r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\ndata: [DONE]\n\n")
	}, WithAdminToken("secret"))

	body, err := c.StreamChat(context.Background(), ChatRequest{
		ThreadID: "t1",
		Message:  "hello",
		User:     "visitor-1",
		Filter:   &ChatFilter{SiteID: 3},
	})
	require.NoError(t, err)
	defer body.Close()

	var payloads []string
	require.NoError(t, ReadEvents(context.Background(), body, func(p []byte) error {
		payloads = append(payloads, string(p))
		return nil
	}))
	assert.Equal(t, []string{`{"choices":[{"delta":{"content":"hi"}}]}`}, payloads)

	assert.Equal(t, "t1", got["thread_id"])
	assert.Equal(t, "hello", got["message"])
	assert.Equal(t, true, got["stream"])
	assert.Equal(t, "visitor-1", got["user"])
	assert.Equal(t, map[string]any{"site_id": float64(3)}, got["filter"])
}

func TestStreamChatOmitsEmptyFilter(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	})

	body, err := c.StreamChat(context.Background(), ChatRequest{ThreadID: "t1", Message: "x"})
	require.NoError(t, err)
	body.Close()

	_, ok := got["filter"]
	assert.False(t, ok)
}

func TestStreamChatStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	})

	_, err := c.StreamChat(context.Background(), ChatRequest{ThreadID: "t1", Message: "x"})
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.Equal(t, "upstream unavailable", se.Body)
	assert.True(t, IsStatus(err, http.StatusBadGateway))
}

func TestGetMessages(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/sessions/thread-9/messages", r.URL.Path)
		_, _ = io.WriteString(w, `{
			"messages": [
				{"role":"user","content":"q"},
				{"role":"assistant","content":"","tool_calls":[{"id":"tc1","type":"function","function":{"name":"search","arguments":"{}"}}]},
				{"role":"tool","content":"[]","tool_call_id":"tc1"},
				{"role":"assistant","content":"a"}
			],
			"citations": [{"id":"5","title":"Guide","documentId":5}]
		}`)
	})

	h, err := c.GetMessages(context.Background(), "thread-9")
	require.NoError(t, err)
	require.Len(t, h.Messages, 4)
	assert.Equal(t, "tc1", h.Messages[1].ToolCalls[0].ID)
	assert.Equal(t, "search", h.Messages[1].ToolCalls[0].Function.Name)
	assert.Equal(t, "tc1", h.Messages[2].ToolCallID)
	require.Len(t, h.Citations, 1)
	assert.Equal(t, "Guide", h.Citations[0].Title)
}

func TestGetMessagesNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := c.GetMessages(context.Background(), "missing")
	assert.True(t, IsStatus(err, http.StatusNotFound))
}

func TestListSessions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/sessions", r.URL.Path)
		assert.Equal(t, "4", r.URL.Query().Get("site_id"))
		assert.Equal(t, "", r.URL.Query().Get("member_id"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "20", r.URL.Query().Get("size"))
		_, _ = io.WriteString(w, `{"items":[{"id":1,"thread_id":"t1","site_id":4,"title":"Install","message_count":3,
			"created_at":"2025-01-02T03:04:05Z","updated_at":"2025-01-02T03:04:05Z"}],"total":1,"page":1,"size":20}`)
	})

	page, err := c.ListSessions(context.Background(), SessionFilter{SiteID: 4})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "t1", page.Items[0].ThreadID)
	assert.Equal(t, 3, page.Items[0].MessageCount)
	assert.Equal(t, 1, page.Total)
}

func TestGetAndDeleteSession(t *testing.T) {
	var methods []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		assert.Equal(t, "/v1/chat/sessions/t1", r.URL.Path)
		if r.Method == http.MethodGet {
			_, _ = io.WriteString(w, `{"id":1,"thread_id":"t1","site_id":2,"message_count":0,
				"created_at":"2025-01-02T03:04:05Z","updated_at":"2025-01-02T03:04:05Z"}`)
			return
		}
		_, _ = io.WriteString(w, `{}`)
	})

	s, err := c.GetSession(context.Background(), "t1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, s.SiteID)

	require.NoError(t, c.DeleteSession(context.Background(), "t1"))
	assert.Equal(t, []string{http.MethodGet, http.MethodDelete}, methods)
}

func TestCollectionTree(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/v1/collections:tree", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("site_id"))
		assert.Equal(t, "collection", r.URL.Query().Get("type"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"code":0,"msg":"ok","data":[
			{"id":1,"title":"Guides","type":"collection","children":[
				{"id":2,"title":"Setup","type":"collection","children":[]}
			]}
		]}`)
	}, WithAdminToken("secret"))

	nodes, err := c.CollectionTree(context.Background(), 7, true)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "Guides", nodes[0].Title)
	require.Len(t, nodes[0].Children, 1)
	assert.EqualValues(t, 2, nodes[0].Children[0].ID)
}

func TestCollectionTreeEnvelopeError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"code":1,"msg":"site not found","data":null}`)
	})

	_, err := c.CollectionTree(context.Background(), 7, false)
	var ee *EnvelopeError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "site not found", ee.Msg)
}

func TestMoveCollection(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/admin/v1/collections/12:move", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = io.WriteString(w, `{"code":0,"msg":"ok","data":{"id":12,"title":"Setup","parent_id":3,"order":1,"site_id":7}}`)
	})

	parent := int64(3)
	col, err := c.MoveCollection(context.Background(), 7, 12, &parent, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 12, col.ID)
	require.NotNil(t, col.ParentID)
	assert.EqualValues(t, 3, *col.ParentID)
	assert.Equal(t, map[string]any{"target_parent_id": float64(3), "target_position": float64(1)}, body)
}

func TestMoveCollectionToRoot(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = io.WriteString(w, `{"code":0,"msg":"ok","data":{"id":12,"title":"Setup","parent_id":null,"order":0,"site_id":7}}`)
	})

	_, err := c.MoveCollection(context.Background(), 7, 12, nil, 0)
	require.NoError(t, err)
	v, ok := body["target_parent_id"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestStreamChatCancelled(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n")
		w.(http.Flusher).Flush()
		close(started)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	body, err := c.StreamChat(ctx, ChatRequest{ThreadID: "t", Message: "m"})
	require.NoError(t, err)
	defer body.Close()

	err = ReadEvents(ctx, body, func([]byte) error {
		<-started
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
