package waitlist

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"ticketflow/internal/inventory"
	"ticketflow/internal/shared/apperrors"
	"ticketflow/internal/shared/config"
	"ticketflow/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWaitlistRepo keeps entries in memory and mirrors the repository's
// guarded transitions and position assignment.
type fakeWaitlistRepo struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*WaitlistEntry
}

func newFakeWaitlistRepo() *fakeWaitlistRepo {
	return &fakeWaitlistRepo{entries: make(map[uuid.UUID]*WaitlistEntry)}
}

func (f *fakeWaitlistRepo) Join(ctx context.Context, entry *WaitlistEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	maxPosition := 0
	for _, existing := range f.entries {
		if existing.TicketTypeID != entry.TicketTypeID {
			continue
		}
		if existing.UserID == entry.UserID && existing.IsLive() {
			return apperrors.NewValidationError("already on the waitlist for this ticket type")
		}
		if existing.Position > maxPosition {
			maxPosition = existing.Position
		}
	}

	entry.ID = uuid.New()
	entry.Position = maxPosition + 1
	copied := *entry
	f.entries[entry.ID] = &copied
	return nil
}

func (f *fakeWaitlistRepo) GetByID(ctx context.Context, id uuid.UUID) (*WaitlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[id]
	if !ok {
		return nil, &apperrors.NotFoundError{Resource: "waitlist entry", ID: id.String()}
	}
	copied := *entry
	return &copied, nil
}

func (f *fakeWaitlistRepo) GetLiveEntry(ctx context.Context, userID, ticketTypeID uuid.UUID) (*WaitlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, entry := range f.entries {
		if entry.UserID == userID && entry.TicketTypeID == ticketTypeID && entry.IsLive() {
			copied := *entry
			return &copied, nil
		}
	}
	return nil, &apperrors.NotFoundError{Resource: "waitlist entry", ID: ticketTypeID.String()}
}

func (f *fakeWaitlistRepo) CountAhead(ctx context.Context, entry *WaitlistEntry) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, other := range f.entries {
		if other.TicketTypeID == entry.TicketTypeID && other.Position < entry.Position && other.IsLive() {
			count++
		}
	}
	return count, nil
}

func (f *fakeWaitlistRepo) CountWaiting(ctx context.Context, ticketTypeID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, entry := range f.entries {
		if entry.TicketTypeID == ticketTypeID && entry.Status == StatusWaiting {
			count++
		}
	}
	return count, nil
}

func (f *fakeWaitlistRepo) Transition(ctx context.Context, id uuid.UUID, from, to Status, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[id]
	if !ok {
		return &apperrors.NotFoundError{Resource: "waitlist entry", ID: id.String()}
	}
	if entry.Status != from {
		return &apperrors.InvalidStateTransitionError{
			Entity: "waitlist entry",
			From:   entry.Status.String(),
			To:     to.String(),
		}
	}

	entry.Status = to
	for key, value := range updates {
		switch key {
		case "notified_at":
			at := value.(time.Time)
			entry.NotifiedAt = &at
		case "response_deadline":
			at := value.(time.Time)
			entry.ResponseDeadline = &at
		}
	}
	return nil
}

func (f *fakeWaitlistRepo) ListNotifiableBatch(ctx context.Context, ticketTypeID uuid.UUID, freed, limit int) ([]WaitlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matches []WaitlistEntry
	for _, entry := range f.entries {
		if entry.TicketTypeID == ticketTypeID && entry.Status == StatusWaiting && entry.QuantityRequested <= freed {
			matches = append(matches, *entry)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Position < matches[j].Position })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (f *fakeWaitlistRepo) ListStaleNotified(ctx context.Context, cutoff time.Time, limit int) ([]WaitlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matches []WaitlistEntry
	for _, entry := range f.entries {
		if entry.Status == StatusNotified && entry.ResponseDeadline != nil && entry.ResponseDeadline.Before(cutoff) {
			matches = append(matches, *entry)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ResponseDeadline.Before(*matches[j].ResponseDeadline) })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// fakeTicketTypeSource serves ticket types from a map.
type fakeTicketTypeSource struct {
	mu          sync.Mutex
	ticketTypes map[uuid.UUID]*inventory.TicketType
}

func newFakeTicketTypeSource() *fakeTicketTypeSource {
	return &fakeTicketTypeSource{ticketTypes: make(map[uuid.UUID]*inventory.TicketType)}
}

func (f *fakeTicketTypeSource) GetTicketType(ctx context.Context, id uuid.UUID) (*inventory.TicketType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticketType, ok := f.ticketTypes[id]
	if !ok {
		return nil, &apperrors.NotFoundError{Resource: "ticket type", ID: id.String()}
	}
	copied := *ticketType
	return &copied, nil
}

func (f *fakeTicketTypeSource) add(ticketType *inventory.TicketType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticketTypes[ticketType.ID] = ticketType
}

// passthroughCache satisfies cache.Service without a Redis connection.
type passthroughCache struct {
	mu      sync.Mutex
	deleted []string
}

func (p *passthroughCache) Get(ctx context.Context, key string, dest interface{}) error {
	return errors.New("cache miss")
}

func (p *passthroughCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (p *passthroughCache) Delete(ctx context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, key)
	return nil
}

func (p *passthroughCache) DeletePattern(ctx context.Context, pattern string) error {
	return nil
}

func (p *passthroughCache) Exists(ctx context.Context, key string) bool {
	return false
}

func (p *passthroughCache) GetOrSet(ctx context.Context, key string, ttl time.Duration, fetcher func() (interface{}, error), dest interface{}) error {
	data, err := fetcher()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (p *passthroughCache) Ping(ctx context.Context) error {
	return nil
}

func waitlistTestConfig() *config.Config {
	return &config.Config{
		Waitlist: config.WaitlistConfig{
			NotificationBatchSize: 5,
			ResponseWindow:        2 * time.Hour,
		},
		Sweep: config.SweepConfig{
			BatchSize: 100,
		},
	}
}

func setupWaitlistService(t *testing.T) (Service, *fakeWaitlistRepo, *fakeTicketTypeSource) {
	t.Helper()
	repo := newFakeWaitlistRepo()
	source := newFakeTicketTypeSource()
	svc := NewService(repo, source, nil, &passthroughCache{}, waitlistTestConfig(), logger.New())
	return svc, repo, source
}

func soldOutTicketType(eventID uuid.UUID) *inventory.TicketType {
	now := time.Now()
	return &inventory.TicketType{
		ID:        uuid.New(),
		EventID:   eventID,
		Name:      "General Admission",
		Quantity:  100,
		SoldCount: 100,
		SaleStart: now.Add(-24 * time.Hour),
		SaleEnd:   now.Add(24 * time.Hour),
	}
}

func join(t *testing.T, svc Service, eventID, ticketTypeID uuid.UUID, quantity int) *WaitlistEntry {
	t.Helper()
	entry, err := svc.Join(context.Background(), uuid.New(), eventID, JoinWaitlistRequest{
		TicketTypeID: ticketTypeID,
		Quantity:     quantity,
		ContactEmail: "attendee@example.com",
	})
	require.NoError(t, err)
	return entry
}

func TestJoinAssignsSequentialPositions(t *testing.T) {
	svc, _, source := setupWaitlistService(t)
	eventID := uuid.New()
	ticketType := soldOutTicketType(eventID)
	source.add(ticketType)

	first := join(t, svc, eventID, ticketType.ID, 2)
	second := join(t, svc, eventID, ticketType.ID, 1)

	assert.Equal(t, 1, first.Position)
	assert.Equal(t, 2, second.Position)
	assert.Equal(t, StatusWaiting, first.Status)
}

func TestJoinRejectedWhileTicketsAvailable(t *testing.T) {
	svc, _, source := setupWaitlistService(t)
	eventID := uuid.New()
	ticketType := soldOutTicketType(eventID)
	ticketType.SoldCount = 50
	source.add(ticketType)

	_, err := svc.Join(context.Background(), uuid.New(), eventID, JoinWaitlistRequest{
		TicketTypeID: ticketType.ID,
		Quantity:     1,
		ContactEmail: "attendee@example.com",
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestJoinRejectedForForeignTicketType(t *testing.T) {
	svc, _, source := setupWaitlistService(t)
	ticketType := soldOutTicketType(uuid.New())
	source.add(ticketType)

	_, err := svc.Join(context.Background(), uuid.New(), uuid.New(), JoinWaitlistRequest{
		TicketTypeID: ticketType.ID,
		Quantity:     1,
		ContactEmail: "attendee@example.com",
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestJoinRejectsSecondLiveEntry(t *testing.T) {
	svc, _, source := setupWaitlistService(t)
	eventID := uuid.New()
	ticketType := soldOutTicketType(eventID)
	source.add(ticketType)

	userID := uuid.New()
	_, err := svc.Join(context.Background(), userID, eventID, JoinWaitlistRequest{
		TicketTypeID: ticketType.ID,
		Quantity:     1,
		ContactEmail: "attendee@example.com",
	})
	require.NoError(t, err)

	_, err = svc.Join(context.Background(), userID, eventID, JoinWaitlistRequest{
		TicketTypeID: ticketType.ID,
		Quantity:     2,
		ContactEmail: "attendee@example.com",
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestNotifyOnCapacitySpendsBudgetInQueueOrder(t *testing.T) {
	svc, repo, source := setupWaitlistService(t)
	eventID := uuid.New()
	ticketType := soldOutTicketType(eventID)
	source.add(ticketType)

	first := join(t, svc, eventID, ticketType.ID, 2)
	second := join(t, svc, eventID, ticketType.ID, 3)
	third := join(t, svc, eventID, ticketType.ID, 1)

	err := svc.NotifyOnCapacity(context.Background(), ticketType.ID, 3)
	require.NoError(t, err)

	firstAfter, _ := repo.GetByID(context.Background(), first.ID)
	secondAfter, _ := repo.GetByID(context.Background(), second.ID)
	thirdAfter, _ := repo.GetByID(context.Background(), third.ID)

	// First entry takes 2 of the 3 freed units; the second wants 3 and no
	// longer fits, so the remaining unit goes to the third.
	assert.Equal(t, StatusNotified, firstAfter.Status)
	assert.Equal(t, StatusWaiting, secondAfter.Status)
	assert.Equal(t, StatusNotified, thirdAfter.Status)

	require.NotNil(t, firstAfter.ResponseDeadline)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), *firstAfter.ResponseDeadline, time.Minute)
}

func TestNotifyOnCapacityIgnoresEntriesLargerThanFreed(t *testing.T) {
	svc, repo, source := setupWaitlistService(t)
	eventID := uuid.New()
	ticketType := soldOutTicketType(eventID)
	source.add(ticketType)

	big := join(t, svc, eventID, ticketType.ID, 4)
	small := join(t, svc, eventID, ticketType.ID, 1)

	err := svc.NotifyOnCapacity(context.Background(), ticketType.ID, 1)
	require.NoError(t, err)

	bigAfter, _ := repo.GetByID(context.Background(), big.ID)
	smallAfter, _ := repo.GetByID(context.Background(), small.ID)

	assert.Equal(t, StatusWaiting, bigAfter.Status)
	assert.Equal(t, StatusNotified, smallAfter.Status)
}

func TestNotifyOnCapacityWithEmptyQueueIsNoOp(t *testing.T) {
	svc, _, source := setupWaitlistService(t)
	ticketType := soldOutTicketType(uuid.New())
	source.add(ticketType)

	err := svc.NotifyOnCapacity(context.Background(), ticketType.ID, 5)
	require.NoError(t, err)
}

func TestLeaveCancelsLiveEntry(t *testing.T) {
	svc, repo, source := setupWaitlistService(t)
	eventID := uuid.New()
	ticketType := soldOutTicketType(eventID)
	source.add(ticketType)

	userID := uuid.New()
	entry, err := svc.Join(context.Background(), userID, eventID, JoinWaitlistRequest{
		TicketTypeID: ticketType.ID,
		Quantity:     1,
		ContactEmail: "attendee@example.com",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Leave(context.Background(), userID, ticketType.ID))

	after, _ := repo.GetByID(context.Background(), entry.ID)
	assert.Equal(t, StatusCancelled, after.Status)

	err = svc.Leave(context.Background(), userID, ticketType.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestGetPositionCountsOnlyLiveEntriesAhead(t *testing.T) {
	svc, _, source := setupWaitlistService(t)
	eventID := uuid.New()
	ticketType := soldOutTicketType(eventID)
	source.add(ticketType)

	frontUser := uuid.New()
	_, err := svc.Join(context.Background(), frontUser, eventID, JoinWaitlistRequest{
		TicketTypeID: ticketType.ID,
		Quantity:     1,
		ContactEmail: "front@example.com",
	})
	require.NoError(t, err)

	join(t, svc, eventID, ticketType.ID, 1)

	backUser := uuid.New()
	_, err = svc.Join(context.Background(), backUser, eventID, JoinWaitlistRequest{
		TicketTypeID: ticketType.ID,
		Quantity:     1,
		ContactEmail: "back@example.com",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Leave(context.Background(), frontUser, ticketType.ID))

	position, err := svc.GetPosition(context.Background(), backUser, ticketType.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), position.Position)
	assert.Equal(t, int64(1), position.PeopleAhead)
}

func TestExpireStaleNotificationsClosesLapsedWindows(t *testing.T) {
	svc, repo, source := setupWaitlistService(t)
	eventID := uuid.New()
	ticketType := soldOutTicketType(eventID)
	source.add(ticketType)

	lapsed := join(t, svc, eventID, ticketType.ID, 1)
	fresh := join(t, svc, eventID, ticketType.ID, 1)

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)
	require.NoError(t, repo.Transition(context.Background(), lapsed.ID, StatusWaiting, StatusNotified, map[string]interface{}{
		"notified_at":       past.Add(-2 * time.Hour),
		"response_deadline": past,
	}))
	require.NoError(t, repo.Transition(context.Background(), fresh.ID, StatusWaiting, StatusNotified, map[string]interface{}{
		"notified_at":       time.Now(),
		"response_deadline": future,
	}))

	expired, err := svc.ExpireStaleNotifications(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	lapsedAfter, _ := repo.GetByID(context.Background(), lapsed.ID)
	freshAfter, _ := repo.GetByID(context.Background(), fresh.ID)
	assert.Equal(t, StatusExpired, lapsedAfter.Status)
	assert.Equal(t, StatusNotified, freshAfter.Status)
}
