// Package corpus fetches and indexes a markdown document corpus from a
// GitHub repository and serves naive keyword-overlap retrieval over it,
// backing the RAG backend adapter's "vector store" collaborator
// (spec.md §4.4). The teacher fetched a single alert runbook per lookup
// with no ranking; here a whole repository tree is walked, every
// document is fetched (subject to a per-document TTL cache) and held
// in memory, and retrieval ranks all of them against a question instead
// of resolving one URL.
package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Chunk is a scored fragment of a corpus document returned by Retrieve.
type Chunk struct {
	Source  string
	Content string
	Score   float64
}

// cachedDocument is a fetched document's content plus the time it was
// fetched, for TTL-based re-fetching.
type cachedDocument struct {
	content   string
	fetchedAt time.Time
}

// Store indexes a GitHub-hosted document corpus and answers top-k
// keyword-overlap retrieval queries. It is the concrete, in-repo
// stand-in for the real embedding-backed vector store the spec treats
// as an external collaborator (spec.md §1 Out of scope) — swap it for
// one satisfying the same Retrieve signature without touching the RAG
// adapter.
type Store struct {
	fetcher  *sourceFetcher
	repoURL  string
	cacheTTL time.Duration

	mu    sync.RWMutex
	cache map[string]cachedDocument
	docs  []document

	// indexMu serializes (re-)indexing attempts; indexedAt/indexErr
	// record the last attempt so a stale or failed index is retried
	// after cacheTTL rather than being cached for the process lifetime.
	indexMu   sync.Mutex
	indexedAt time.Time
	indexErr  error
}

type document struct {
	source string
	terms  map[string]int
	raw    string
}

// NewStore creates a Store over the markdown documents found under
// repoURL (a GitHub tree URL). githubToken may be empty for public
// repositories. cacheTTL bounds how long a fetched document is reused
// before being re-fetched.
func NewStore(repoURL, githubToken string, cacheTTL time.Duration) *Store {
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &Store{
		fetcher:  newSourceFetcher(githubToken),
		repoURL:  repoURL,
		cacheTTL: cacheTTL,
		cache:    make(map[string]cachedDocument),
	}
}

// Retrieve returns the top-k documents by keyword overlap with question.
// The corpus is indexed lazily on first call and re-indexed whenever
// cacheTTL has elapsed since the last attempt, so a transient listing
// failure or a repo that's gained/lost documents isn't stuck for the
// rest of the process's life.
func (s *Store) Retrieve(ctx context.Context, question string, k int) ([]Chunk, error) {
	if k <= 0 {
		k = 5
	}

	if err := s.ensureIndexed(ctx); err != nil {
		return nil, fmt.Errorf("index corpus: %w", err)
	}

	queryTerms := tokenize(question)
	if len(queryTerms) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	docs := s.docs
	s.mu.RUnlock()

	scored := make([]Chunk, 0, len(docs))
	for _, doc := range docs {
		score := overlapScore(queryTerms, doc.terms)
		if score <= 0 {
			continue
		}
		scored = append(scored, Chunk{Source: doc.source, Content: doc.raw, Score: score})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func (s *Store) ensureIndexed(ctx context.Context) error {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	if !s.indexedAt.IsZero() && time.Since(s.indexedAt) < s.cacheTTL {
		return s.indexErr
	}

	s.indexErr = s.load(ctx)
	s.indexedAt = time.Now()
	return s.indexErr
}

func (s *Store) load(ctx context.Context) error {
	if s.repoURL == "" {
		return nil
	}

	urls, err := s.fetcher.listDocuments(ctx, s.repoURL)
	if err != nil {
		return fmt.Errorf("list corpus documents: %w", err)
	}

	docs := make([]document, 0, len(urls))
	for _, docURL := range urls {
		// listDocuments only ever returns URLs it built from GitHub API
		// responses, but a forged or mirrored API response could still
		// smuggle in a foreign host — confine every fetch to GitHub before
		// it's trusted with an outbound request.
		if err := requireGitHubSource(docURL); err != nil {
			slog.Warn("corpus: rejecting untrusted document URL, skipping", "url", docURL, "error", err)
			continue
		}

		content, ok := s.cachedContent(docURL)
		if !ok {
			content, err = s.fetcher.fetchDocument(ctx, docURL)
			if err != nil {
				slog.Warn("corpus: failed to fetch document, skipping", "url", docURL, "error", err)
				continue
			}
			s.setCachedContent(docURL, content)
		}
		docs = append(docs, document{source: docURL, terms: termFrequencies(content), raw: content})
	}

	s.mu.Lock()
	s.docs = docs
	s.mu.Unlock()

	slog.Info("corpus indexed", "documents", len(docs), "repo", s.repoURL)
	return nil
}

// cachedContent returns docURL's cached content if present and not past
// cacheTTL. Expired entries are dropped lazily rather than swept by a
// background goroutine.
func (s *Store) cachedContent(docURL string) (string, bool) {
	s.mu.RLock()
	entry, ok := s.cache[docURL]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if time.Since(entry.fetchedAt) > s.cacheTTL {
		s.mu.Lock()
		if current, ok := s.cache[docURL]; ok && time.Since(current.fetchedAt) > s.cacheTTL {
			delete(s.cache, docURL)
		}
		s.mu.Unlock()
		return "", false
	}
	return entry.content, true
}

func (s *Store) setCachedContent(docURL, content string) {
	s.mu.Lock()
	s.cache[docURL] = cachedDocument{content: content, fetchedAt: time.Now()}
	s.mu.Unlock()
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	return fields
}

func termFrequencies(text string) map[string]int {
	freq := make(map[string]int)
	for _, term := range tokenize(text) {
		freq[term]++
	}
	return freq
}

func overlapScore(queryTerms []string, docTerms map[string]int) float64 {
	var score float64
	for _, term := range queryTerms {
		if count, ok := docTerms[term]; ok {
			score += float64(count)
		}
	}
	return score
}
