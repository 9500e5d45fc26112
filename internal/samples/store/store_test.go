package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sampleflow/sampleflow/internal/samples/entity"
	"github.com/sampleflow/sampleflow/internal/samples/feed"
	"github.com/sampleflow/sampleflow/internal/samples/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSource is an in-memory RequestSource mirroring the repository's write
// semantics, including the derived decision fields and change-feed publishes.
type fakeSource struct {
	mu           sync.Mutex
	items        map[string]entity.SampleRequest
	feed         feed.Feed
	nextID       int
	listErr      error
	advanceCalls int
}

func newFakeSource(f feed.Feed) *fakeSource {
	return &fakeSource{items: make(map[string]entity.SampleRequest), feed: f, nextID: 9001}
}

func (s *fakeSource) publish(ctx context.Context, ev feed.Event) {
	if s.feed != nil {
		s.feed.Publish(ctx, ev)
	}
}

func (s *fakeSource) Create(ctx context.Context, input repository.CreateRequestInput) (*entity.SampleRequest, error) {
	s.mu.Lock()
	req := entity.SampleRequest{
		ID:          fmt.Sprintf("REQ-%d", s.nextID),
		CreatorName: input.CreatorName,
		Email:       input.Email,
		ChannelLink: input.ChannelLink,
		ProductID:   input.ProductID,
		Status:      entity.RequestStatusPending,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	s.nextID++
	s.items[req.ID] = req.Clone()
	s.mu.Unlock()

	s.publish(ctx, feed.Event{RequestID: req.ID, Action: "created"})
	return &req, nil
}

func (s *fakeSource) SetDecision(ctx context.Context, id string, status entity.RequestStatus) error {
	s.mu.Lock()
	req, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return repository.ErrNotFound
	}
	req.Status = status
	req.TrackingLink = nil
	req.TrackingNumber = nil
	req.Carrier = nil
	req.ShippingStatus = nil
	if status == entity.RequestStatusApproved {
		link := repository.DeriveTrackingLink(id)
		num := repository.DeriveTrackingNumber(id)
		carrier := repository.DefaultCarrier
		shipping := entity.ShippingLabelCreated
		req.TrackingLink = &link
		req.TrackingNumber = &num
		req.Carrier = &carrier
		req.ShippingStatus = &shipping
	}
	s.items[id] = req
	s.mu.Unlock()

	s.publish(ctx, feed.Event{RequestID: id, Action: "decided"})
	return nil
}

func (s *fakeSource) AdvanceShipping(ctx context.Context, id string, status entity.ShippingStatus) error {
	s.mu.Lock()
	s.advanceCalls++
	req, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return repository.ErrNotFound
	}
	req.ShippingStatus = &status
	s.items[id] = req
	s.mu.Unlock()

	s.publish(ctx, feed.Event{RequestID: id, Action: "shipping_advanced"})
	return nil
}

func (s *fakeSource) List(ctx context.Context) ([]entity.SampleRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]entity.SampleRequest, 0, len(s.items))
	for _, req := range s.items {
		out = append(out, req.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeSource) SeedIfEmpty(ctx context.Context) error {
	s.mu.Lock()
	if len(s.items) == 0 {
		for _, req := range entity.DefaultRequests() {
			s.items[req.ID] = req
		}
	}
	s.mu.Unlock()
	return nil
}

// erroringFeed always fails to subscribe, forcing degraded mode.
type erroringFeed struct{}

func (erroringFeed) Publish(ctx context.Context, event feed.Event) error { return nil }
func (erroringFeed) Subscribe(ctx context.Context) (<-chan feed.Event, func(), error) {
	return nil, nil, errors.New("feed unavailable")
}

func newTestStore(t *testing.T) (*RequestStore, *fakeSource) {
	t.Helper()
	f := feed.NewMemoryFeed()
	src := newFakeSource(f)
	s := NewRequestStore(src, f, zap.NewNop())
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Stop)
	return s, src
}

// waitForSnapshot blocks until cond holds for a delivered snapshot, or fails.
func waitForSnapshot(t *testing.T, s *RequestStore, cond func(Snapshot) bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if cond(s.List()) {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for snapshot, last: %d items", len(s.List()))
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestStoreStartSeedsDefaults(t *testing.T) {
	s, _ := newTestStore(t)

	snap := s.List()
	require.Len(t, snap, 2)

	first, ok := s.FindByID("REQ-1001")
	require.True(t, ok)
	assert.Equal(t, entity.RequestStatusPending, first.Status)
	assert.Nil(t, first.TrackingLink)

	second, ok := s.FindByID("REQ-1002")
	require.True(t, ok)
	assert.Equal(t, entity.RequestStatusApproved, second.Status)
	assert.NotNil(t, second.TrackingLink)
	assert.False(t, s.Degraded())
}

func TestStoreAddIsVisibleSynchronously(t *testing.T) {
	s, _ := newTestStore(t)

	req, err := s.Add(context.Background(), repository.CreateRequestInput{
		CreatorName: "Ana",
		Email:       "ana@x.com",
		ChannelLink: "https://y.com/ana",
		ProductID:   "PROD-001",
	})
	require.NoError(t, err)
	assert.Regexp(t, `^REQ-\d{4}$`, req.ID)
	assert.Equal(t, entity.RequestStatusPending, req.Status)
	assert.Nil(t, req.TrackingLink)

	// The optimistic union makes the new entity visible before any snapshot
	// arrives, and newest-first ordering puts it at the head.
	got, ok := s.FindByID(req.ID)
	require.True(t, ok)
	assert.Equal(t, "Ana", got.CreatorName)
	assert.Equal(t, req.ID, s.List()[0].ID)

	// Eventually the confirmed snapshot takes over and the entity persists.
	waitForSnapshot(t, s, func(snap Snapshot) bool {
		return len(snap) == 3
	})

	got, ok = s.FindByID(req.ID)
	require.True(t, ok)
	assert.Equal(t, entity.RequestStatusPending, got.Status)
}

func TestStoreDecideApprovedDerivesTracking(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Decide(context.Background(), "REQ-1001", entity.RequestStatusApproved))

	got, ok := s.FindByID("REQ-1001")
	require.True(t, ok)
	assert.Equal(t, entity.RequestStatusApproved, got.Status)
	require.NotNil(t, got.TrackingLink)
	assert.Equal(t, "/status/REQ-1001", *got.TrackingLink)
	require.NotNil(t, got.TrackingNumber)
	assert.Regexp(t, `^TRK-REQ-1001-\d{4}$`, *got.TrackingNumber)
	require.NotNil(t, got.Carrier)
	assert.Equal(t, "SampleCarrier", *got.Carrier)
	require.NotNil(t, got.ShippingStatus)
	assert.Equal(t, entity.ShippingLabelCreated, *got.ShippingStatus)
}

func TestStoreDecideRejectedClearsTracking(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Decide(context.Background(), "REQ-1002", entity.RequestStatusRejected))

	got, ok := s.FindByID("REQ-1002")
	require.True(t, ok)
	assert.Equal(t, entity.RequestStatusRejected, got.Status)
	assert.Nil(t, got.TrackingLink)
	assert.Nil(t, got.TrackingNumber)
	assert.Nil(t, got.Carrier)
	assert.Nil(t, got.ShippingStatus)
}

func TestStoreDecideRepeatIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Decide(ctx, "REQ-1001", entity.RequestStatusRejected))
	first, _ := s.FindByID("REQ-1001")

	require.NoError(t, s.Decide(ctx, "REQ-1001", entity.RequestStatusRejected))
	second, _ := s.FindByID("REQ-1001")

	assert.Equal(t, first.Status, second.Status)
	assert.Nil(t, second.TrackingLink)
	assert.Nil(t, second.ShippingStatus)
}

func TestStoreAdvanceShippingWalksSequence(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Decide(ctx, "REQ-1001", entity.RequestStatusApproved))

	expected := []entity.ShippingStatus{
		entity.ShippingPreparingShipment,
		entity.ShippingInTransit,
		entity.ShippingOutForDelivery,
		entity.ShippingDelivered,
	}
	for _, want := range expected {
		cur, ok := s.FindByID("REQ-1001")
		require.True(t, ok)
		require.NoError(t, s.AdvanceShippingStatus(ctx, "REQ-1001", cur.ShippingStatus))

		got, _ := s.FindByID("REQ-1001")
		require.NotNil(t, got.ShippingStatus)
		assert.Equal(t, want, *got.ShippingStatus)
	}
}

func TestStoreAdvanceShippingNoOpAtDelivered(t *testing.T) {
	s, src := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Decide(ctx, "REQ-1001", entity.RequestStatusApproved))
	for i := 0; i < 4; i++ {
		cur, _ := s.FindByID("REQ-1001")
		require.NoError(t, s.AdvanceShippingStatus(ctx, "REQ-1001", cur.ShippingStatus))
	}

	src.mu.Lock()
	callsBefore := src.advanceCalls
	src.mu.Unlock()

	delivered := entity.ShippingDelivered
	require.NoError(t, s.AdvanceShippingStatus(ctx, "REQ-1001", &delivered))

	src.mu.Lock()
	callsAfter := src.advanceCalls
	src.mu.Unlock()
	assert.Equal(t, callsBefore, callsAfter, "terminal advance must not write")

	got, _ := s.FindByID("REQ-1001")
	assert.Equal(t, entity.ShippingDelivered, *got.ShippingStatus)
}

func TestStoreAdvanceShippingNilStartsOneStepIn(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Decide(ctx, "REQ-1001", entity.RequestStatusApproved))

	// A nil current is treated as index 0, so the computed next state is
	// preparing_shipment, not label_created.
	require.NoError(t, s.AdvanceShippingStatus(ctx, "REQ-1001", nil))

	got, _ := s.FindByID("REQ-1001")
	require.NotNil(t, got.ShippingStatus)
	assert.Equal(t, entity.ShippingPreparingShipment, *got.ShippingStatus)
}

func TestStoreFindByIDAbsent(t *testing.T) {
	s, _ := newTestStore(t)

	_, ok := s.FindByID("REQ-0000")
	assert.False(t, ok)
}

func TestStoreDegradesOnFeedError(t *testing.T) {
	src := newFakeSource(nil)
	s := NewRequestStore(src, erroringFeed{}, zap.NewNop())
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Stop)

	assert.True(t, s.Degraded())
	snap := s.List()
	require.Len(t, snap, 2)
	assert.Equal(t, "REQ-1001", snap[0].ID)
}

// newDegradedStore builds a store whose feed never connects, so no reload
// ever runs and overlay clearing relies on the TTL alone.
func newDegradedStore(t *testing.T, ttl time.Duration) (*RequestStore, *fakeSource) {
	t.Helper()
	src := newFakeSource(nil)
	s := NewRequestStore(src, erroringFeed{}, zap.NewNop())
	s.overlayTTL = ttl
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Stop)
	require.True(t, s.Degraded())
	return s, src
}

func TestStoreOverlayExpiresWithoutSnapshot(t *testing.T) {
	s, _ := newDegradedStore(t, 20*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, s.Decide(ctx, "REQ-1001", entity.RequestStatusApproved))
	got, ok := s.FindByID("REQ-1001")
	require.True(t, ok)
	assert.Equal(t, entity.RequestStatusApproved, got.Status)

	time.Sleep(40 * time.Millisecond)

	// With no snapshot to confirm the write, the expired overlay stops
	// shadowing state and the fallback entity shows through again.
	got, ok = s.FindByID("REQ-1001")
	require.True(t, ok)
	assert.Equal(t, entity.RequestStatusPending, got.Status)
	assert.Nil(t, got.TrackingLink)
}

func TestStoreLocalAddExpiresWithoutSnapshot(t *testing.T) {
	s, _ := newDegradedStore(t, 20*time.Millisecond)

	req, err := s.Add(context.Background(), repository.CreateRequestInput{
		CreatorName: "Ana",
		Email:       "ana@x.com",
		ChannelLink: "https://y.com/ana",
		ProductID:   "PROD-001",
	})
	require.NoError(t, err)
	_, ok := s.FindByID(req.ID)
	require.True(t, ok)

	time.Sleep(40 * time.Millisecond)

	// A locally created entity has no confirmed counterpart in degraded mode,
	// so it drops out of the view once its overlay expires.
	_, ok = s.FindByID(req.ID)
	assert.False(t, ok)
}

func TestStoreMutationSweepsExpiredOverlays(t *testing.T) {
	s, _ := newDegradedStore(t, 20*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, s.Decide(ctx, "REQ-1001", entity.RequestStatusApproved))
	time.Sleep(40 * time.Millisecond)

	// The next write removes the expired entry instead of leaving it to
	// accumulate; only the fresh overlay remains.
	require.NoError(t, s.Decide(ctx, "REQ-1002", entity.RequestStatusRejected))

	s.mu.RLock()
	_, stale := s.overlay["REQ-1001"]
	total := len(s.overlay)
	s.mu.RUnlock()
	assert.False(t, stale)
	assert.Equal(t, 1, total)
}

func TestStoreSubscribeDeliversSnapshots(t *testing.T) {
	s, _ := newTestStore(t)

	updates := make(chan int, 16)
	unsubscribe := s.Subscribe(func(snap Snapshot) {
		select {
		case updates <- len(snap):
		default:
		}
	})

	// Immediate delivery of current state.
	select {
	case n := <-updates:
		assert.Equal(t, 2, n)
	case <-time.After(time.Second):
		t.Fatal("no initial snapshot delivered")
	}

	_, err := s.Add(context.Background(), repository.CreateRequestInput{
		CreatorName: "Ana",
		Email:       "ana@x.com",
		ChannelLink: "https://y.com/ana",
		ProductID:   "PROD-001",
	})
	require.NoError(t, err)

	select {
	case n := <-updates:
		assert.Equal(t, 3, n)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered after mutation")
	}

	unsubscribe()
}
