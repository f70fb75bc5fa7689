package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xivmarket/market-calculator/marketboard/database/dbtest"
	"github.com/xivmarket/market-calculator/marketboard/database/models"
	"github.com/xivmarket/market-calculator/marketboard/database/repositories"
	"github.com/xivmarket/market-calculator/marketboard/services/universalis"
)

var scope = models.Scope{Type: models.MarketboardWorld, Location: "Zalera"}

type call struct {
	itemID  int64
	entries int
}

type fakeHistory struct {
	mu        sync.Mutex
	responses map[int64]map[int]*universalis.History
	errs      map[int64]error
	calls     []call
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{
		responses: map[int64]map[int]*universalis.History{},
		errs:      map[int64]error{},
	}
}

func (f *fakeHistory) set(itemID int64, entries int, h *universalis.History) {
	if f.responses[itemID] == nil {
		f.responses[itemID] = map[int]*universalis.History{}
	}
	f.responses[itemID][entries] = h
}

func (f *fakeHistory) History(_ context.Context, location string, itemID int64, entries int) (*universalis.History, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{itemID: itemID, entries: entries})

	if err, ok := f.errs[itemID]; ok {
		return nil, err
	}
	if h, ok := f.responses[itemID][entries]; ok {
		return h, nil
	}
	return nil, universalis.ErrNotFound
}

func history(velocity float64, entries ...universalis.Entry) *universalis.History {
	return &universalis.History{RegularSaleVelocity: velocity, NQSaleVelocity: velocity, Entries: entries}
}

type fixture struct {
	items   repositories.ItemRepository
	states  repositories.StateRepository
	history *fakeHistory
	ctrl    *Controller
}

func newFixture(t *testing.T, ids ...int64) *fixture {
	t.Helper()
	db := dbtest.New(t)
	for _, id := range ids {
		dbtest.SeedItems(t, db, &models.Item{ID: id, Name: "item"})
	}

	f := &fixture{
		items:   repositories.NewItemRepository(db.BunDB()),
		states:  repositories.NewStateRepository(db.BunDB()),
		history: newFakeHistory(),
	}
	f.ctrl = NewController(f.items, f.states, f.history, Options{
		RequestDelay: time.Millisecond,
		Logger:       dbtest.Logger(),
		Now:          func() time.Time { return now },
	})
	return f
}

func (f *fixture) state(t *testing.T) *models.State {
	t.Helper()
	s, err := f.states.Get(context.Background(), scope)
	require.NoError(t, err)
	return s
}

func TestRefresh_FullRun(t *testing.T) {
	f := newFixture(t, 1, 2, 3)
	f.history.set(1, 5000, history(10, entry(time.Hour, 100, 2, false)))
	f.history.set(3, 5000, history(5, entry(time.Hour, 40, 1, true)))

	stats, err := f.ctrl.Refresh(context.Background(), scope, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Processed)
	assert.Equal(t, 2, stats.Updated)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, int64(3), stats.LastID)

	one, err := f.items.GetByID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, one.AveCost)
	assert.Equal(t, int64(100), *one.AveCost)
	assert.InDelta(t, 10.0, *one.RegularSaleVelocity, 1e-9)

	two, err := f.items.GetByID(context.Background(), 2)
	require.NoError(t, err)
	assert.Nil(t, two.AveCost)
	assert.Nil(t, two.RegularSaleVelocity)

	three, err := f.items.GetByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(40), *three.AveHQCost)
	assert.Nil(t, three.AveNQCost)

	// The max id was processed last, so the next run starts a fresh cycle.
	assert.Equal(t, int64(0), f.state(t).LastID)
	assert.Equal(t, int64(0), f.state(t).ResumeFrom(3))
}

func TestRefresh_CheckpointWrapsAtMaxID(t *testing.T) {
	f := newFixture(t, 8998, 8999, 9000)
	for _, id := range []int64{8998, 8999, 9000} {
		f.history.set(id, 5000, history(3, entry(time.Hour, 10, 1, false)))
	}

	_, err := f.ctrl.Refresh(context.Background(), scope, 8998, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(8999), f.state(t).LastID)

	_, err = f.ctrl.Refresh(context.Background(), scope, f.state(t).ResumeFrom(9000), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.state(t).LastID)
}

func TestRefresh_BoundedCount(t *testing.T) {
	f := newFixture(t, 1, 2, 3, 4, 5)
	for id := int64(1); id <= 5; id++ {
		f.history.set(id, 5000, history(3, entry(time.Hour, 10, 1, false)))
	}

	stats, err := f.ctrl.Refresh(context.Background(), scope, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, []call{{2, 5000}, {3, 5000}}, f.history.calls)
	assert.Equal(t, int64(3), f.state(t).LastID)
}

func TestRefresh_SkippedItemDoesNotAdvanceCheckpoint(t *testing.T) {
	f := newFixture(t, 1, 2, 3, 4)
	f.history.set(1, 5000, history(3, entry(time.Hour, 10, 1, false)))
	f.history.errs[2] = errors.New("connection reset")

	_, err := f.ctrl.Refresh(context.Background(), scope, 1, 2)
	require.NoError(t, err)

	state := f.state(t)
	assert.Equal(t, int64(1), state.LastID)
	assert.Equal(t, int64(2), state.LastAttemptedID)
	// The next bounded run moves past the failing item instead of stalling on it.
	assert.Equal(t, int64(3), state.ResumeFrom(4))
}

func TestRefresh_OpenBreakerEndsRun(t *testing.T) {
	f := newFixture(t, 1, 2, 3, 4)
	f.history.set(1, 5000, history(3, entry(time.Hour, 10, 1, false)))
	f.history.errs[2] = fmt.Errorf("%w: %w", universalis.ErrUnavailable, gobreaker.ErrOpenState)

	stats, err := f.ctrl.Refresh(context.Background(), scope, 0, 0)
	assert.ErrorIs(t, err, universalis.ErrUnavailable)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 0, stats.Skipped)
	assert.Equal(t, 1, stats.Updated, "stats gathered before the outage are kept")
	assert.Equal(t, []call{{1, 5000}, {2, 5000}}, f.history.calls)

	// Item 2 was never recorded, so the next run resumes in front of it.
	state := f.state(t)
	assert.Equal(t, int64(1), state.LastID)
	assert.Equal(t, int64(1), state.LastAttemptedID)
	assert.Equal(t, int64(1), state.ResumeFrom(4))

	one, err := f.items.GetByID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, one.AveCost)
}

func TestRefresh_EmptyPayloadIsSuccess(t *testing.T) {
	f := newFixture(t, 1)
	f.history.set(1, 5000, history(3))

	stats, err := f.ctrl.Refresh(context.Background(), scope, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)

	item, err := f.items.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, item.AveCost)
	require.NotNil(t, item.RegularSaleVelocity)
	assert.InDelta(t, 3.0, *item.RegularSaleVelocity, 1e-9)
}

func TestRefresh_Refetch(t *testing.T) {
	tests := []struct {
		name      string
		first     *universalis.History
		second    *universalis.History
		wantCalls []call
		wantCost  int64
	}{
		{
			name:      "fast seller uses larger window",
			first:     history(150, entry(time.Hour, 100, 1, false)),
			second:    history(150, entry(time.Hour, 100, 1, false), entry(20*24*time.Hour, 400, 1, false)),
			wantCalls: []call{{1, 5000}, {1, 10000}},
			wantCost:  250,
		},
		{
			name:      "zero velocity uses larger window",
			first:     history(0, entry(time.Hour, 100, 1, false)),
			second:    history(0, entry(time.Hour, 100, 1, false), entry(2*time.Hour, 300, 1, false)),
			wantCalls: []call{{1, 5000}, {1, 10000}},
			wantCost:  200,
		},
		{
			name:      "failed refetch keeps first response",
			first:     history(200, entry(time.Hour, 100, 1, false)),
			wantCalls: []call{{1, 5000}, {1, 10000}},
			wantCost:  100,
		},
		{
			name:      "normal velocity fetches once",
			first:     history(20, entry(time.Hour, 70, 1, false)),
			wantCalls: []call{{1, 5000}},
			wantCost:  70,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 1)
			f.history.set(1, 5000, tt.first)
			if tt.second != nil {
				f.history.set(1, 10000, tt.second)
			}

			stats, err := f.ctrl.Refresh(context.Background(), scope, 0, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCalls, f.history.calls)
			assert.Equal(t, len(tt.wantCalls) == 2, stats.Refetched == 1)

			item, err := f.items.GetByID(context.Background(), 1)
			require.NoError(t, err)
			require.NotNil(t, item.AveCost)
			assert.Equal(t, tt.wantCost, *item.AveCost)
		})
	}
}

func TestRefresh_PacesRequests(t *testing.T) {
	db := dbtest.New(t)
	for id := int64(1); id <= 4; id++ {
		dbtest.SeedItems(t, db, &models.Item{ID: id, Name: "item"})
	}
	ctrl := NewController(
		repositories.NewItemRepository(db.BunDB()),
		repositories.NewStateRepository(db.BunDB()),
		newFakeHistory(),
		Options{RequestDelay: 20 * time.Millisecond, Logger: dbtest.Logger()},
	)

	start := time.Now()
	_, err := ctrl.Refresh(context.Background(), scope, 0, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond)
}

func TestRefresh_CancelledContext(t *testing.T) {
	f := newFixture(t, 1, 2)
	f.history.set(1, 5000, history(3, entry(time.Hour, 10, 1, false)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.ctrl.Refresh(ctx, scope, 0, 0)
	assert.ErrorIs(t, err, context.Canceled)
}
