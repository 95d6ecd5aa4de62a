package docstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/go-github/v66/github"
	"github.com/stretchr/testify/require"
)

// fakeContentsAPI emulates the subset of the GitHub contents API used by
// GitHubStore, including the sha check on update.
type fakeContentsAPI struct {
	mu      sync.Mutex
	content []byte
	sha     string
	exists  bool
	gets    int
	puts    int
	fail    bool
}

func (f *fakeContentsAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/centrodecompra/dados/contents/produtos.json", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.fail {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"message":"upstream down"}`))
			return
		}
		switch r.Method {
		case http.MethodGet:
			f.gets++
			require.Equal(t, "main", r.URL.Query().Get("ref"))
			if !f.exists {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"message":"Not Found"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"type":     "file",
				"name":     "produtos.json",
				"path":     "produtos.json",
				"encoding": "base64",
				"size":     len(f.content),
				"sha":      f.sha,
				"content":  base64.StdEncoding.EncodeToString(f.content),
			})
		case http.MethodPut:
			f.puts++
			var body struct {
				Message string `json:"message"`
				Content []byte `json:"content"`
				SHA     string `json:"sha"`
				Branch  string `json:"branch"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "main", body.Branch)
			require.NotEmpty(t, body.Message)
			if f.exists && body.SHA == "" {
				w.WriteHeader(http.StatusUnprocessableEntity)
				_, _ = w.Write([]byte(`{"message":"Invalid request. \"sha\" wasn't supplied."}`))
				return
			}
			if f.exists && body.SHA != f.sha {
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"message":"produtos.json does not match ` + body.SHA + `"}`))
				return
			}
			f.content = body.Content
			f.sha = ContentVersion(body.Content)
			f.exists = true
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"content": map[string]interface{}{"path": "produtos.json", "sha": f.sha},
				"commit":  map[string]interface{}{"sha": "c0ffee"},
			})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	return mux
}

func newTestGitHubStore(t *testing.T, api *fakeContentsAPI) *GitHubStore {
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	client := github.NewClient(srv.Client())
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	client.BaseURL = base
	return NewGitHubStore(client, "centrodecompra", "dados", "main")
}

func TestGitHubStore_FetchNotFound(t *testing.T) {
	s := newTestGitHubStore(t, &fakeContentsAPI{})
	_, err := s.Fetch(context.Background(), "produtos.json")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGitHubStore_CreateThenUpdate(t *testing.T) {
	api := &fakeContentsAPI{}
	s := newTestGitHubStore(t, api)
	ctx := context.Background()

	v1, err := s.Write(ctx, "produtos.json", []byte("[]"), "")
	require.NoError(t, err)
	require.Equal(t, ContentVersion([]byte("[]")), v1)

	doc, err := s.Fetch(ctx, "produtos.json")
	require.NoError(t, err)
	require.Equal(t, "[]", string(doc.Content))
	require.Equal(t, v1, doc.Version)

	v2, err := s.Write(ctx, "produtos.json", []byte(`[{"id":"1"}]`), v1)
	require.NoError(t, err)
	require.NotEqual(t, v1, v2)
	require.Equal(t, 2, api.puts)
}

func TestGitHubStore_StaleShaIsConflict(t *testing.T) {
	api := &fakeContentsAPI{content: []byte("[]"), sha: ContentVersion([]byte("[]")), exists: true}
	s := newTestGitHubStore(t, api)

	_, err := s.Write(context.Background(), "produtos.json", []byte("[1]"), "0000000000000000000000000000000000000000")
	require.ErrorIs(t, err, ErrVersionConflict)

	// create over an existing file is also a conflict
	_, err = s.Write(context.Background(), "produtos.json", []byte("[1]"), "")
	require.ErrorIs(t, err, ErrVersionConflict)
	require.Equal(t, "[]", string(api.content))
}

func TestGitHubStore_ServiceFailureIsTransportError(t *testing.T) {
	s := newTestGitHubStore(t, &fakeContentsAPI{fail: true})

	_, err := s.Fetch(context.Background(), "produtos.json")
	var te *TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, "fetch", te.Op)

	_, err = s.Write(context.Background(), "produtos.json", []byte("[]"), "abc")
	require.ErrorAs(t, err, &te)
	require.NotErrorIs(t, err, ErrVersionConflict)
}

func TestNewGitHubClient_RequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	client, err := NewGitHubClient("token", srv.URL+"/", 50*time.Millisecond)
	require.NoError(t, err)
	s := NewGitHubStore(client, "centrodecompra", "dados", "main")

	// no deadline on the context: the client timeout alone ends the call
	start := time.Now()
	_, err = s.Write(context.Background(), "produtos.json", []byte("[]"), "abc")
	var te *TransportError
	require.ErrorAs(t, err, &te)
	require.Less(t, time.Since(start), 3*time.Second)
}
