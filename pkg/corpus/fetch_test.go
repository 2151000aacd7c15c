package corpus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawContentURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "blob URL converts to raw",
			input:    "https://github.com/org/repo/blob/main/docs/k8s.md",
			expected: "https://raw.githubusercontent.com/org/repo/refs/heads/main/docs/k8s.md",
		},
		{
			name:     "tree URL converts to raw",
			input:    "https://github.com/org/repo/tree/main/docs/k8s.md",
			expected: "https://raw.githubusercontent.com/org/repo/refs/heads/main/docs/k8s.md",
		},
		{
			name:     "nested path converts correctly",
			input:    "https://github.com/myorg/docs/blob/develop/sre/network.md",
			expected: "https://raw.githubusercontent.com/myorg/docs/refs/heads/develop/sre/network.md",
		},
		{
			name:     "already raw URL passes through",
			input:    "https://raw.githubusercontent.com/org/repo/refs/heads/main/k8s.md",
			expected: "https://raw.githubusercontent.com/org/repo/refs/heads/main/k8s.md",
		},
		{
			name:     "non-GitHub URL passes through",
			input:    "https://example.com/some/path",
			expected: "https://example.com/some/path",
		},
		{
			name:     "github.com without blob/tree passes through",
			input:    "https://github.com/org/repo",
			expected: "https://github.com/org/repo",
		},
		{
			name:     "www.github.com blob URL converts",
			input:    "https://www.github.com/org/repo/blob/main/doc.md",
			expected: "https://raw.githubusercontent.com/org/repo/refs/heads/main/doc.md",
		},
		{
			name:     "invalid URL passes through",
			input:    "://not-a-url",
			expected: "://not-a-url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, rawContentURL(tt.input))
		})
	}
}

func TestParseRepoRef(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    repoRef
		wantErr bool
		errMsg  string
	}{
		{
			name:  "tree URL with path",
			input: "https://github.com/org/repo/tree/main/docs",
			want:  repoRef{owner: "org", repo: "repo", ref: "main", path: "docs"},
		},
		{
			name:  "blob URL with nested path",
			input: "https://github.com/myorg/docs/blob/develop/sre/network.md",
			want:  repoRef{owner: "myorg", repo: "docs", ref: "develop", path: "sre/network.md"},
		},
		{
			name:  "tree URL without trailing path",
			input: "https://github.com/org/repo/tree/main",
			want:  repoRef{owner: "org", repo: "repo", ref: "main", path: ""},
		},
		{
			name:    "not a GitHub URL",
			input:   "https://gitlab.com/org/repo/tree/main/docs",
			wantErr: true,
			errMsg:  "not a GitHub URL",
		},
		{
			name:    "GitHub URL without blob or tree",
			input:   "https://github.com/org/repo",
			wantErr: true,
			errMsg:  "does not match",
		},
		{
			name:    "malformed URL",
			input:   "://broken",
			wantErr: true,
			errMsg:  "malformed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRepoRef(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequireGitHubSource(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
		errMsg  string
	}{
		{name: "valid github.com URL", url: "https://github.com/org/repo/blob/main/doc.md"},
		{name: "valid raw.githubusercontent.com URL", url: "https://raw.githubusercontent.com/org/repo/refs/heads/main/doc.md"},
		{name: "www prefix accepted", url: "https://www.github.com/org/repo/blob/main/doc.md"},
		{
			name:    "http scheme rejected",
			url:     "http://github.com/org/repo/blob/main/doc.md",
			wantErr: true,
			errMsg:  "invalid scheme",
		},
		{
			name:    "disallowed host",
			url:     "https://evil.com/malicious",
			wantErr: true,
			errMsg:  "not a trusted GitHub source",
		},
		{
			name:    "malformed URL",
			url:     "://broken",
			wantErr: true,
			errMsg:  "malformed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := requireGitHubSource(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSourceFetcher_FetchDocument(t *testing.T) {
	t.Run("successful download", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("# Doc\n\nStep 1: Check pods"))
		}))
		defer server.Close()

		f := newTestSourceFetcher("", server)
		content, err := f.fetchDocument(context.Background(), server.URL+"/org/repo/blob/main/doc.md")
		require.NoError(t, err)
		assert.Equal(t, "# Doc\n\nStep 1: Check pods", content)
	})

	t.Run("authentication header sent when token present", func(t *testing.T) {
		var gotAuth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("content"))
		}))
		defer server.Close()

		f := newTestSourceFetcher("test-token-123", server)
		_, err := f.fetchDocument(context.Background(), server.URL+"/file.md")
		require.NoError(t, err)
		assert.Equal(t, "Bearer test-token-123", gotAuth)
	})

	t.Run("HTTP 404 returns error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		f := newTestSourceFetcher("", server)
		_, err := f.fetchDocument(context.Background(), server.URL+"/missing.md")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
	})

	t.Run("context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("content"))
		}))
		defer server.Close()

		f := newTestSourceFetcher("", server)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := f.fetchDocument(ctx, server.URL+"/file.md")
		require.Error(t, err)
	})
}

func TestSourceFetcher_ListDocuments(t *testing.T) {
	t.Run("lists md files from flat directory", func(t *testing.T) {
		items := []contentsAPIEntry{
			{Name: "k8s.md", Path: "docs/k8s.md", Type: "file", HTMLURL: "https://github.com/org/repo/blob/main/docs/k8s.md"},
			{Name: "network.md", Path: "docs/network.md", Type: "file", HTMLURL: "https://github.com/org/repo/blob/main/docs/network.md"},
			{Name: "README.txt", Path: "docs/README.txt", Type: "file", HTMLURL: "https://github.com/org/repo/blob/main/docs/README.txt"},
		}

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(items)
		}))
		defer server.Close()

		f := newTestSourceFetcherWithAPIBase("", server)
		docs, err := f.listDocuments(context.Background(), "https://github.com/org/repo/tree/main/docs")
		require.NoError(t, err)
		assert.Equal(t, []string{
			"https://github.com/org/repo/blob/main/docs/k8s.md",
			"https://github.com/org/repo/blob/main/docs/network.md",
		}, docs)
	})

	t.Run("recurses into subdirectories", func(t *testing.T) {
		callCount := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			callCount++
			w.Header().Set("Content-Type", "application/json")

			if callCount == 1 {
				items := []contentsAPIEntry{
					{Name: "root.md", Path: "docs/root.md", Type: "file", HTMLURL: "https://github.com/org/repo/blob/main/docs/root.md"},
					{Name: "subdir", Path: "docs/subdir", Type: "dir"},
				}
				_ = json.NewEncoder(w).Encode(items)
			} else {
				items := []contentsAPIEntry{
					{Name: "nested.md", Path: "docs/subdir/nested.md", Type: "file", HTMLURL: "https://github.com/org/repo/blob/main/docs/subdir/nested.md"},
				}
				_ = json.NewEncoder(w).Encode(items)
			}
		}))
		defer server.Close()

		f := newTestSourceFetcherWithAPIBase("", server)
		docs, err := f.listDocuments(context.Background(), "https://github.com/org/repo/tree/main/docs")
		require.NoError(t, err)
		assert.Equal(t, []string{
			"https://github.com/org/repo/blob/main/docs/root.md",
			"https://github.com/org/repo/blob/main/docs/subdir/nested.md",
		}, docs)
		assert.Equal(t, 2, callCount)
	})

	t.Run("empty directory returns empty slice", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode([]contentsAPIEntry{})
		}))
		defer server.Close()

		f := newTestSourceFetcherWithAPIBase("", server)
		docs, err := f.listDocuments(context.Background(), "https://github.com/org/repo/tree/main/docs")
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("API error returns error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		f := newTestSourceFetcherWithAPIBase("", server)
		_, err := f.listDocuments(context.Background(), "https://github.com/org/repo/tree/main/docs")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
	})

	t.Run("invalid repo URL returns error", func(t *testing.T) {
		f := newSourceFetcher("")
		_, err := f.listDocuments(context.Background(), "https://not-github.com/repo")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse corpus repo URL")
	})

	t.Run("case insensitive md extension", func(t *testing.T) {
		items := []contentsAPIEntry{
			{Name: "upper.MD", Path: "docs/upper.MD", Type: "file", HTMLURL: "https://github.com/org/repo/blob/main/docs/upper.MD"},
			{Name: "mixed.Md", Path: "docs/mixed.Md", Type: "file", HTMLURL: "https://github.com/org/repo/blob/main/docs/mixed.Md"},
		}

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(items)
		}))
		defer server.Close()

		f := newTestSourceFetcherWithAPIBase("", server)
		docs, err := f.listDocuments(context.Background(), "https://github.com/org/repo/tree/main/docs")
		require.NoError(t, err)
		assert.Len(t, docs, 2)
	})
}

// newTestSourceFetcher builds a sourceFetcher whose HTTP client talks to
// server directly, for fetchDocument tests where the URL is used as-is.
func newTestSourceFetcher(token string, server *httptest.Server) *sourceFetcher {
	f := newSourceFetcher(token)
	f.httpClient = server.Client()
	return f
}

// newTestSourceFetcherWithAPIBase builds a sourceFetcher that redirects
// api.github.com and raw.githubusercontent.com calls to server.
func newTestSourceFetcherWithAPIBase(token string, server *httptest.Server) *sourceFetcher {
	f := newSourceFetcher(token)
	f.httpClient = &http.Client{
		Transport: &testTransport{server: server, delegate: http.DefaultTransport},
	}
	return f
}

// testTransport redirects GitHub API requests to the test server.
type testTransport struct {
	server   *httptest.Server
	delegate http.RoundTripper
}

func (t *testTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Host == "api.github.com" || req.URL.Host == "raw.githubusercontent.com" {
		parsed, _ := url.Parse(t.server.URL)
		req.URL.Scheme = parsed.Scheme
		req.URL.Host = parsed.Host
	}
	return t.delegate.RoundTrip(req)
}
