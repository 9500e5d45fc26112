package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sampleflow/sampleflow/internal/samples/entity"
	"github.com/sampleflow/sampleflow/internal/samples/feed"
	"github.com/sampleflow/sampleflow/internal/samples/repository"
	"go.uber.org/zap"
)

// defaultOverlayTTL bounds how long an optimistic local write may shadow the
// confirmed snapshot before it is dropped, so a lost notification cannot
// leave the mirror drifted indefinitely.
const defaultOverlayTTL = 5 * time.Second

// Snapshot is the full, ordered request collection delivered to subscribers.
type Snapshot []entity.SampleRequest

// SubscribeFunc receives every new snapshot. Callbacks run on the store's
// notification path and must not block.
type SubscribeFunc func(Snapshot)

// RequestSource is the persistence surface the store writes through and
// reloads snapshots from. *repository.RequestRepository satisfies it.
type RequestSource interface {
	Create(ctx context.Context, input repository.CreateRequestInput) (*entity.SampleRequest, error)
	SetDecision(ctx context.Context, id string, status entity.RequestStatus) error
	AdvanceShipping(ctx context.Context, id string, status entity.ShippingStatus) error
	List(ctx context.Context) ([]entity.SampleRequest, error)
	SeedIfEmpty(ctx context.Context) error
}

type overlayEntry struct {
	req     entity.SampleRequest
	isNew   bool // created locally, not yet seen in a confirmed snapshot
	expires time.Time
}

// RequestStore mirrors the authoritative request collection in memory. It is
// fed by the change feed: every notification replaces local state wholesale
// with a fresh repository snapshot (last snapshot wins). Mutations write
// through the repository and apply an optimistic overlay so callers observe
// their own writes before the next snapshot lands.
//
// When the feed cannot be subscribed the store degrades to the fixed default
// dataset instead of failing, keeping the read surface usable.
type RequestStore struct {
	repo   RequestSource
	feed   feed.Feed
	logger *zap.Logger

	// overlayTTL is how long an optimistic overlay entry may live without a
	// confirming snapshot. Tests shorten it.
	overlayTTL time.Duration

	mu        sync.RWMutex
	confirmed []entity.SampleRequest
	overlay   map[string]overlayEntry
	degraded  bool

	subMu  sync.Mutex
	subs   map[int]SubscribeFunc
	nextID int

	cancelFeed func()
	done       chan struct{}
}

func NewRequestStore(repo RequestSource, changeFeed feed.Feed, logger *zap.Logger) *RequestStore {
	return &RequestStore{
		repo:       repo,
		feed:       changeFeed,
		logger:     logger,
		overlayTTL: defaultOverlayTTL,
		overlay:    make(map[string]overlayEntry),
		subs:       make(map[int]SubscribeFunc),
	}
}

// Start seeds an empty collection, loads the initial snapshot and begins
// consuming the change feed. On feed failure the store enters degraded mode
// with the built-in default dataset; this is logged, not fatal.
func (s *RequestStore) Start(ctx context.Context) error {
	if err := s.repo.SeedIfEmpty(ctx); err != nil {
		s.logger.Warn("Seed check failed", zap.Error(err))
	}

	if err := s.reload(ctx); err != nil {
		s.logger.Error("Initial snapshot load failed, falling back to defaults", zap.Error(err))
		s.fallback()
	}

	events, cancel, err := s.feed.Subscribe(ctx)
	if err != nil {
		s.logger.Error("Change feed unavailable, store is degraded", zap.Error(err))
		s.fallback()
		return nil
	}
	s.cancelFeed = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		for ev := range events {
			if err := s.reload(ctx); err != nil {
				s.logger.Warn("Snapshot reload failed",
					zap.String("request_id", ev.RequestID),
					zap.String("action", ev.Action),
					zap.Error(err),
				)
			}
		}
	}()
	return nil
}

// Stop tears the feed subscription down and waits for the consumer to exit.
func (s *RequestStore) Stop() {
	if s.cancelFeed != nil {
		s.cancelFeed()
		<-s.done
	}
}

// Subscribe registers fn for snapshot updates and delivers the current state
// immediately. The returned func unregisters it.
func (s *RequestStore) Subscribe(fn SubscribeFunc) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	fn(s.List())

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// List returns the merged view: the last confirmed snapshot with optimistic
// overlay entries applied, newest first.
func (s *RequestStore) List() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mergedLocked()
}

// FindByID is a synchronous lookup against current in-memory state. It never
// touches the network: before the relevant snapshot arrives the id is simply
// absent.
func (s *RequestStore) FindByID(id string) (entity.SampleRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, req := range s.mergedLocked() {
		if req.ID == id {
			return req, true
		}
	}
	return entity.SampleRequest{}, false
}

// Degraded reports whether the store is serving the fallback dataset.
func (s *RequestStore) Degraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}

// Add writes a new request through the repository, then unions it into local
// state ahead of the next snapshot so the caller's immediate follow-up lookup
// (the status-page redirect) sees it synchronously.
func (s *RequestStore) Add(ctx context.Context, input repository.CreateRequestInput) (*entity.SampleRequest, error) {
	req, err := s.repo.Create(ctx, input)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sweepExpiredLocked(time.Now())
	s.overlay[req.ID] = overlayEntry{req: req.Clone(), isNew: true, expires: time.Now().Add(s.overlayTTL)}
	s.mu.Unlock()

	s.notify()
	return req, nil
}

// Decide writes an approve/reject decision through the repository and
// optimistically patches the matching local entity with the same derived
// tracking fields the repository persisted.
func (s *RequestStore) Decide(ctx context.Context, id string, status entity.RequestStatus) error {
	if err := s.repo.SetDecision(ctx, id, status); err != nil {
		return err
	}

	s.mu.Lock()
	s.sweepExpiredLocked(time.Now())
	if cur, ok := s.findLocked(id); ok {
		patched := cur.Clone()
		patched.Status = status
		patched.TrackingLink = nil
		patched.TrackingNumber = nil
		patched.Carrier = nil
		patched.ShippingStatus = nil
		if status == entity.RequestStatusApproved {
			link := repository.DeriveTrackingLink(id)
			num := repository.DeriveTrackingNumber(id)
			carrier := repository.DefaultCarrier
			shipping := entity.ShippingLabelCreated
			patched.TrackingLink = &link
			patched.TrackingNumber = &num
			patched.Carrier = &carrier
			patched.ShippingStatus = &shipping
		}
		s.overlay[id] = overlayEntry{req: patched, expires: time.Now().Add(s.overlayTTL)}
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// AdvanceShippingStatus moves a request exactly one step forward through the
// shipping sequence. A nil current is treated as index 0, so it advances to
// preparing_shipment. When the computed next state equals current (already
// delivered) the call is a no-op: no write, no state change.
func (s *RequestStore) AdvanceShippingStatus(ctx context.Context, id string, current *entity.ShippingStatus) error {
	next := entity.NextShippingStatus(current)
	if current != nil && next == *current {
		return nil
	}

	if err := s.repo.AdvanceShipping(ctx, id, next); err != nil {
		return err
	}

	s.mu.Lock()
	s.sweepExpiredLocked(time.Now())
	if cur, ok := s.findLocked(id); ok {
		patched := cur.Clone()
		shipping := next
		patched.ShippingStatus = &shipping
		s.overlay[id] = overlayEntry{req: patched, expires: time.Now().Add(s.overlayTTL)}
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// reload replaces confirmed state with a fresh repository snapshot and clears
// every overlay entry the snapshot already reflects.
func (s *RequestStore) reload(ctx context.Context) error {
	items, err := s.repo.List(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.confirmed = items
	s.degraded = false
	s.sweepExpiredLocked(time.Now())
	for id, ov := range s.overlay {
		if s.snapshotReflectsLocked(ov) {
			delete(s.overlay, id)
		}
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *RequestStore) fallback() {
	s.mu.Lock()
	s.confirmed = entity.DefaultRequests()
	s.degraded = true
	s.mu.Unlock()
	s.notify()
}

// sweepExpiredLocked drops expired overlay entries. mergedLocked already skips
// them when reading, but without a sweep the map grows without bound in
// degraded mode, where no reload ever reconciles it.
func (s *RequestStore) sweepExpiredLocked(now time.Time) {
	for id, ov := range s.overlay {
		if !now.Before(ov.expires) {
			delete(s.overlay, id)
		}
	}
}

// snapshotReflectsLocked reports whether the confirmed snapshot has caught up
// with an optimistic overlay entry.
func (s *RequestStore) snapshotReflectsLocked(ov overlayEntry) bool {
	for _, req := range s.confirmed {
		if req.ID != ov.req.ID {
			continue
		}
		if ov.isNew {
			return true
		}
		return req.Status == ov.req.Status && shippingEqual(req.ShippingStatus, ov.req.ShippingStatus)
	}
	return false
}

func (s *RequestStore) findLocked(id string) (entity.SampleRequest, bool) {
	for _, req := range s.mergedLocked() {
		if req.ID == id {
			return req, true
		}
	}
	return entity.SampleRequest{}, false
}

func (s *RequestStore) mergedLocked() Snapshot {
	now := time.Now()
	merged := make(Snapshot, 0, len(s.confirmed)+len(s.overlay))
	seen := make(map[string]bool, len(s.confirmed))

	for _, req := range s.confirmed {
		seen[req.ID] = true
		if ov, ok := s.overlay[req.ID]; ok && now.Before(ov.expires) {
			merged = append(merged, ov.req.Clone())
			continue
		}
		merged = append(merged, req.Clone())
	}

	// Locally created requests not yet present in the confirmed snapshot.
	var added Snapshot
	for id, ov := range s.overlay {
		if !seen[id] && ov.isNew && now.Before(ov.expires) {
			added = append(added, ov.req.Clone())
		}
	}
	sort.Slice(added, func(i, j int) bool { return added[i].CreatedAt.After(added[j].CreatedAt) })

	return append(added, merged...)
}

func (s *RequestStore) notify() {
	snap := s.List()
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, fn := range s.subs {
		fn(snap)
	}
}

func shippingEqual(a, b *entity.ShippingStatus) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
