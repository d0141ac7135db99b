package service

import (
	"errors"
	"html"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mir00r/recommendation-gateway/internal/domain"
	"github.com/mir00r/recommendation-gateway/pkg/logger"
	"golang.org/x/sync/singleflight"
)

// ErrDedupServiceClosed is returned by every operation except
// ClearHistory after Close.
var ErrDedupServiceClosed = errors.New("duplication prevention service is closed")

// DedupService prevents duplicate work at two levels: concurrent
// identical fetches are coalesced into a single execution per key, and
// recommendation batches are deduplicated against each other and against
// the session history.
type DedupService struct {
	group   singleflight.Group
	history map[string]struct{}
	mu      sync.RWMutex
	closed  atomic.Bool
	logger  *logger.Logger
}

// NewDedupService creates a new duplication prevention service.
func NewDedupService(log *logger.Logger) *DedupService {
	return &DedupService{
		history: make(map[string]struct{}),
		logger:  log.WithField("component", "dedup"),
	}
}

// PreventConcurrentFetch coalesces concurrent calls that share a key:
// the first caller's factory runs exactly once per overlapping window,
// and every waiter observes the identical result or error. Different
// keys run fully concurrently.
func (s *DedupService) PreventConcurrentFetch(key string, factory func() (interface{}, error)) (interface{}, error) {
	if s.closed.Load() {
		return nil, ErrDedupServiceClosed
	}

	result, err, shared := s.group.Do(key, func() (interface{}, error) {
		return factory()
	})
	if shared {
		s.logger.WithField("key", key).Debug("Coalesced concurrent fetch")
	}
	return result, err
}

// DeduplicateRecommendations keeps the first occurrence of each
// artist/album pair, preserving order, and records every kept key into
// the session history.
func (s *DedupService) DeduplicateRecommendations(items []domain.Recommendation) ([]domain.Recommendation, error) {
	if s.closed.Load() {
		return nil, ErrDedupServiceClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(items))
	result := make([]domain.Recommendation, 0, len(items))

	for _, item := range items {
		key := recommendationKey(item.Artist, item.Album)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		s.history[key] = struct{}{}
		result = append(result, item)
	}

	if dropped := len(items) - len(result); dropped > 0 {
		s.logger.WithField("dropped", dropped).Debug("Removed duplicate recommendations")
	}
	return result, nil
}

// FilterPreviouslyRecommended drops items whose key is already in the
// session history. Keys present in the optional case-insensitive
// allow-list are re-included for this session even when seen before.
func (s *DedupService) FilterPreviouslyRecommended(items []domain.Recommendation, sessionAllowList ...string) ([]domain.Recommendation, error) {
	if s.closed.Load() {
		return nil, ErrDedupServiceClosed
	}

	allowed := make(map[string]struct{}, len(sessionAllowList))
	for _, key := range sessionAllowList {
		allowed[strings.ToLower(key)] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Recommendation, 0, len(items))
	for _, item := range items {
		key := recommendationKey(item.Artist, item.Album)
		if _, override := allowed[key]; override {
			result = append(result, item)
			continue
		}
		if _, known := s.history[key]; known {
			continue
		}
		result = append(result, item)
	}
	return result, nil
}

// ClearHistory wipes recorded keys. Works regardless of Close.
func (s *DedupService) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = make(map[string]struct{})
}

// HistorySize returns the number of recorded keys.
func (s *DedupService) HistorySize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// Close marks the service unusable. Idempotent.
func (s *DedupService) Close() error {
	s.closed.Store(true)
	return nil
}

// recommendationKey builds the composite dedup key for one item.
// Empty fields stay empty so distinct empty combinations stay distinct.
func recommendationKey(artist, album string) string {
	return normalizeField(artist) + "|" + normalizeField(album)
}

// normalizeField trims, collapses internal whitespace, decodes HTML
// entities and case-folds one key component.
func normalizeField(s string) string {
	s = html.UnescapeString(s)
	s = strings.Join(strings.Fields(s), " ")
	return strings.ToLower(s)
}
