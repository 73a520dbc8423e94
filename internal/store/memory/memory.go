// Package memory provides process-local implementations of the domain
// stores. They back single-instance deployments and tests; state is lost on
// restart.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/whalebounty/whalebounty/internal/domain"
)

// DefaultNonceTTL bounds how long an issued nonce may wait for its signature.
const DefaultNonceTTL = 10 * time.Minute

// NonceStore keeps issued and consumed nonces per session.
type NonceStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	issued map[string]map[string]time.Time // expiry
	used   map[string]map[string]struct{}
}

// NewNonceStore returns an empty NonceStore with DefaultNonceTTL.
func NewNonceStore() *NonceStore {
	return NewNonceStoreTTL(DefaultNonceTTL)
}

// NewNonceStoreTTL returns an empty NonceStore whose issued nonces expire
// after ttl.
func NewNonceStoreTTL(ttl time.Duration) *NonceStore {
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	return &NonceStore{
		ttl:    ttl,
		now:    time.Now,
		issued: make(map[string]map[string]time.Time),
		used:   make(map[string]map[string]struct{}),
	}
}

func (s *NonceStore) Issue(_ context.Context, session, nonce string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	set, ok := s.issued[session]
	if !ok {
		set = make(map[string]time.Time)
		s.issued[session] = set
	}
	for n, exp := range set {
		if !now.Before(exp) {
			delete(set, n)
		}
	}
	set[nonce] = now.Add(s.ttl)
	return nil
}

func (s *NonceStore) IsIssued(_ context.Context, session, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.issued[session][nonce]
	return ok && s.now().Before(exp), nil
}

func (s *NonceStore) IsUsed(_ context.Context, session, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.used[session][nonce]
	return ok, nil
}

func (s *NonceStore) MarkUsed(_ context.Context, session, nonce string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.used[session]
	if !ok {
		set = make(map[string]struct{})
		s.used[session] = set
	}
	set[nonce] = struct{}{}
	delete(s.issued[session], nonce)
	return nil
}

// SessionStore maps sessions to verified addresses.
type SessionStore struct {
	mu    sync.RWMutex
	addrs map[string]string
}

// NewSessionStore returns an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{addrs: make(map[string]string)}
}

func (s *SessionStore) SetAddress(_ context.Context, session, address string) error {
	s.mu.Lock()
	s.addrs[session] = address
	s.mu.Unlock()
	return nil
}

// GetAddress returns domain.ErrNotFound for an unknown session.
func (s *SessionStore) GetAddress(_ context.Context, session string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	addr, ok := s.addrs[session]
	if !ok {
		return "", domain.ErrNotFound
	}
	return addr, nil
}

func (s *SessionStore) Clear(_ context.Context, session string) error {
	s.mu.Lock()
	delete(s.addrs, session)
	s.mu.Unlock()
	return nil
}

// PreferenceStore keeps the tutorial flag per address.
type PreferenceStore struct {
	mu   sync.RWMutex
	seen map[string]bool
}

// NewPreferenceStore returns an empty PreferenceStore.
func NewPreferenceStore() *PreferenceStore {
	return &PreferenceStore{seen: make(map[string]bool)}
}

func (s *PreferenceStore) TutorialSeen(_ context.Context, address string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seen[address], nil
}

func (s *PreferenceStore) MarkTutorialSeen(_ context.Context, address string) error {
	s.mu.Lock()
	s.seen[address] = true
	s.mu.Unlock()
	return nil
}

// AuditStore is an append-only in-memory log.
type AuditStore struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	now     func() time.Time
}

// NewAuditStore returns an empty AuditStore.
func NewAuditStore() *AuditStore {
	return &AuditStore{now: time.Now}
}

func (s *AuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, domain.AuditEntry{
		ID:        int64(len(s.entries) + 1),
		Event:     event,
		Detail:    detail,
		CreatedAt: s.now().UTC(),
	})
	return nil
}

// List returns entries newest first.
func (s *AuditStore) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AuditEntry, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if opts.Since != nil && e.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && e.CreatedAt.After(*opts.Until) {
			continue
		}
		out = append(out, e)
	}
	return page(out, opts), nil
}

// ResultStore keeps finished games and derives the leaderboard from them.
type ResultStore struct {
	mu      sync.Mutex
	results []domain.GameResult
}

// NewResultStore returns an empty ResultStore.
func NewResultStore() *ResultStore {
	return &ResultStore{}
}

// Insert rejects a duplicate game id with domain.ErrAlreadyExists.
func (s *ResultStore) Insert(_ context.Context, r domain.GameResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.results {
		if existing.GameID == r.GameID {
			return domain.ErrAlreadyExists
		}
	}
	r.History = append([]string(nil), r.History...)
	s.results = append(s.results, r)
	return nil
}

// Leaderboard ranks signed-in addresses by wins, then by fewest losses.
func (s *ResultStore) Leaderboard(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.Lock()
	byAddr := make(map[string]*domain.LeaderboardEntry)
	for _, r := range s.results {
		if r.Address == "" {
			continue
		}
		e, ok := byAddr[r.Address]
		if !ok {
			e = &domain.LeaderboardEntry{Address: r.Address}
			byAddr[r.Address] = e
		}
		if r.Winner == domain.SidePlayer {
			e.Wins++
		} else {
			e.Losses++
		}
	}
	s.mu.Unlock()

	out := make([]domain.LeaderboardEntry, 0, len(byAddr))
	for _, e := range byAddr {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		if out[i].Losses != out[j].Losses {
			return out[i].Losses < out[j].Losses
		}
		return out[i].Address < out[j].Address
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func page[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	return items
}

// BlobStore keeps objects in memory. It satisfies domain.BlobWriter and
// domain.BlobReader.
type BlobStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewBlobStore returns an empty BlobStore.
func NewBlobStore() *BlobStore {
	return &BlobStore{objects: make(map[string][]byte)}
}

func (s *BlobStore) Put(_ context.Context, path string, data io.Reader, _ string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("memory: put %s: %w", path, err)
	}
	s.mu.Lock()
	s.objects[path] = b
	s.mu.Unlock()
	return nil
}

// Get returns domain.ErrNotFound (wrapped) for a missing path.
func (s *BlobStore) Get(_ context.Context, path string) (io.ReadCloser, error) {
	s.mu.RLock()
	b, ok := s.objects[path]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("memory: get %s: %w", path, domain.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *BlobStore) Exists(_ context.Context, path string) (bool, error) {
	s.mu.RLock()
	_, ok := s.objects[path]
	s.mu.RUnlock()
	return ok, nil
}

// RateLimiter is a sliding-window limiter over request timestamps.
type RateLimiter struct {
	mu   sync.Mutex
	hits map[string][]time.Time
	now  func() time.Time
}

// NewRateLimiter returns an empty RateLimiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{hits: make(map[string][]time.Time), now: time.Now}
}

// Allow records a hit for key unless limit hits already fall inside window.
func (l *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-window)
	kept := l.hits[key][:0]
	for _, t := range l.hits[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= limit {
		l.hits[key] = kept
		return false, nil
	}
	l.hits[key] = append(kept, now)
	return true, nil
}

var (
	_ domain.NonceStore      = (*NonceStore)(nil)
	_ domain.SessionStore    = (*SessionStore)(nil)
	_ domain.PreferenceStore = (*PreferenceStore)(nil)
	_ domain.AuditStore      = (*AuditStore)(nil)
	_ domain.ResultStore     = (*ResultStore)(nil)
	_ domain.BlobWriter      = (*BlobStore)(nil)
	_ domain.BlobReader      = (*BlobStore)(nil)
	_ domain.RateLimiter     = (*RateLimiter)(nil)
)
