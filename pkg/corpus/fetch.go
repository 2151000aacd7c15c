package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// repoRef identifies a GitHub tree URL's owner/repo/ref/subdirectory.
type repoRef struct {
	owner string
	repo  string
	ref   string
	path  string
}

// treeURLPattern matches GitHub blob or tree URLs:
// https://github.com/{owner}/{repo}/{blob|tree}/{ref}/{path...}
var treeURLPattern = regexp.MustCompile(`^/([^/]+)/([^/]+)/(blob|tree)/([^/]+)(?:/(.*))?$`)

// parseRepoRef parses a GitHub tree/blob URL into its components.
func parseRepoRef(rawURL string) (repoRef, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return repoRef{}, fmt.Errorf("malformed corpus repo URL: %w", err)
	}
	if parsed.Host != "github.com" && parsed.Host != "www.github.com" {
		return repoRef{}, fmt.Errorf("not a GitHub URL: %s", parsed.Host)
	}
	matches := treeURLPattern.FindStringSubmatch(parsed.Path)
	if matches == nil {
		return repoRef{}, fmt.Errorf("URL does not match GitHub blob/tree pattern: %s", parsed.Path)
	}
	return repoRef{owner: matches[1], repo: matches[2], ref: matches[4], path: matches[5]}, nil
}

// rawContentURL rewrites a GitHub blob/tree URL to its
// raw.githubusercontent.com equivalent. A URL already pointing at
// raw.githubusercontent.com, or one this package doesn't recognize as
// GitHub, is returned unchanged.
func rawContentURL(docURL string) string {
	parsed, err := url.Parse(docURL)
	if err != nil {
		return docURL
	}
	if parsed.Host == "raw.githubusercontent.com" {
		return docURL
	}
	if parsed.Host != "github.com" && parsed.Host != "www.github.com" {
		return docURL
	}
	matches := treeURLPattern.FindStringSubmatch(parsed.Path)
	if matches == nil {
		return docURL
	}
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/refs/heads/%s/%s",
		matches[1], matches[2], matches[4], matches[5])
}

// requireGitHubSource rejects any document URL that isn't hosted on
// GitHub or its raw-content mirror, so a corrupted listing response
// can't smuggle the fetcher into downloading from an arbitrary host.
func requireGitHubSource(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed document URL: %w", err)
	}
	if parsed.Scheme != "https" {
		return fmt.Errorf("invalid scheme %q: only https allowed", parsed.Scheme)
	}
	host := strings.ToLower(parsed.Hostname())
	switch host {
	case "github.com", "www.github.com", "raw.githubusercontent.com":
		return nil
	default:
		return fmt.Errorf("document host %q is not a trusted GitHub source", host)
	}
}

// sourceFetcher lists and downloads the markdown documents making up a
// corpus's backing GitHub repository.
type sourceFetcher struct {
	httpClient *http.Client
	token      string
}

func newSourceFetcher(token string) *sourceFetcher {
	return &sourceFetcher{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		token:      token,
	}
}

// fetchDocument downloads one document's raw markdown content. Callers
// that need to confine fetches to trusted hosts should validate docURL
// with requireGitHubSource first; fetchDocument itself trusts its input
// so it stays usable against arbitrary test servers.
func (f *sourceFetcher) fetchDocument(ctx context.Context, docURL string) (string, error) {
	downloadURL := rawContentURL(docURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	f.setAuthHeader(req)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch document from %s: %w", downloadURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GitHub returned HTTP %d for %s", resp.StatusCode, downloadURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}
	return string(body), nil
}

// contentsAPIEntry is one item from the GitHub Contents API response.
type contentsAPIEntry struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Type    string `json:"type"` // "file" or "dir"
	HTMLURL string `json:"html_url"`
}

// listDocuments walks repoURL's directory tree recursively and returns
// every *.md file's blob URL.
func (f *sourceFetcher) listDocuments(ctx context.Context, repoURL string) ([]string, error) {
	ref, err := parseRepoRef(repoURL)
	if err != nil {
		return nil, fmt.Errorf("parse corpus repo URL: %w", err)
	}
	return f.listDocumentsAt(ctx, ref.owner, ref.repo, ref.ref, ref.path)
}

func (f *sourceFetcher) listDocumentsAt(ctx context.Context, owner, repo, ref, path string) ([]string, error) {
	apiURL := fmt.Sprintf("https://api.github.com/repos/%s/%s/contents/%s?ref=%s", owner, repo, path, ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	f.setAuthHeader(req)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list contents at %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub API returned HTTP %d for path %q", resp.StatusCode, path)
	}

	var entries []contentsAPIEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode contents response: %w", err)
	}

	var docs []string
	for _, entry := range entries {
		switch entry.Type {
		case "file":
			if strings.HasSuffix(strings.ToLower(entry.Name), ".md") {
				docs = append(docs, entry.HTMLURL)
			}
		case "dir":
			children, err := f.listDocumentsAt(ctx, owner, repo, ref, entry.Path)
			if err != nil {
				slog.Warn("corpus: failed to list subdirectory, skipping", "path", entry.Path, "error", err)
				continue
			}
			docs = append(docs, children...)
		}
	}
	return docs, nil
}

func (f *sourceFetcher) setAuthHeader(req *http.Request) {
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
}
