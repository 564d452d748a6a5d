package syncctl

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uppership/opsboard/internal/broker/messages"
	"github.com/uppership/opsboard/internal/integrations/uppership"
	"github.com/uppership/opsboard/internal/models"
)

type fakeBackend struct {
	mu           sync.Mutex
	syncNowCalls int
	syncNowMsg   string
	syncNowErr   error

	statusCalls int
	statuses    []models.SyncStatus // выдаются по очереди, последний повторяется
	statusErr   error
}

func (f *fakeBackend) SyncNow(ctx context.Context, shop string, opts uppership.SyncOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncNowCalls++
	return f.syncNowMsg, f.syncNowErr
}

func (f *fakeBackend) SyncStatus(ctx context.Context, shop string) (models.SyncStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.statusErr != nil {
		return models.SyncStatus{}, f.statusErr
	}
	if len(f.statuses) == 0 {
		return models.SyncStatus{}, nil
	}
	st := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return st, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	topic  string
	key    []byte
	value  []byte
	calls  int
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, topic string, key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.topic, p.key, p.value = topic, key, value
	return p.err
}

func TestController_Trigger_StartsCooldown(t *testing.T) {
	fb := &fakeBackend{syncNowMsg: "Sync started"}
	c := New(fb, nil, "").WithSettings(time.Minute, 0, 0)

	msg, err := c.Trigger(context.Background(), "demo.myshopify.com", uppership.SyncOptions{})
	require.NoError(t, err)
	require.Equal(t, "Sync started", msg)
	require.Equal(t, 1, fb.syncNowCalls)

	// Второй триггер отклоняется локально: бэкенд второй раз не дёргаем.
	_, err = c.Trigger(context.Background(), "demo.myshopify.com", uppership.SyncOptions{})
	var re *RejectedError
	require.ErrorAs(t, err, &re)
	require.Greater(t, re.MsLeft, int64(0))
	require.Equal(t, 1, fb.syncNowCalls)

	st := c.Stats()
	require.Equal(t, int64(1), st.TotalTriggered)
	require.Equal(t, int64(1), st.TotalRejected)
}

func TestController_Trigger_ForceBypassesLocalCooldown(t *testing.T) {
	fb := &fakeBackend{syncNowMsg: "ok"}
	c := New(fb, nil, "").WithSettings(time.Hour, 0, 0)

	_, err := c.Trigger(context.Background(), "demo", uppership.SyncOptions{})
	require.NoError(t, err)

	_, err = c.Trigger(context.Background(), "demo", uppership.SyncOptions{Force: true})
	require.NoError(t, err)
	require.Equal(t, 2, fb.syncNowCalls)
}

func TestController_Trigger_InFlightRejected(t *testing.T) {
	fb := &fakeBackend{syncNowMsg: "ok"}
	c := New(fb, nil, "")

	c.mu.Lock()
	c.state("demo").inFlight = true
	c.mu.Unlock()

	_, err := c.Trigger(context.Background(), "demo", uppership.SyncOptions{})
	require.ErrorIs(t, err, ErrSyncInFlight)
	require.Equal(t, 0, fb.syncNowCalls)
}

func TestController_Trigger_AdoptsServerCooldown(t *testing.T) {
	fb := &fakeBackend{
		syncNowErr: &uppership.CooldownError{MsLeft: 90_000, Message: "cooldown"},
		statuses:   []models.SyncStatus{{MsLeft: 90_000}},
	}
	c := New(fb, nil, "")

	_, err := c.Trigger(context.Background(), "demo", uppership.SyncOptions{})
	var ce *uppership.CooldownError
	require.ErrorAs(t, err, &ce)

	snap, serr := c.Status(context.Background(), "demo")
	require.NoError(t, serr)
	require.Equal(t, StateCooldown, snap.State)
	require.Greater(t, snap.MsLeft, int64(0))
}

func TestController_Trigger_RejectionWithoutMsLeftReconciles(t *testing.T) {
	// Отказ без msLeft в теле: отсчёт берём из статуса.
	fb := &fakeBackend{
		syncNowErr: &uppership.CooldownError{Message: "please wait"},
		statuses:   []models.SyncStatus{{MsLeft: 60_000}},
	}
	c := New(fb, nil, "")

	_, err := c.Trigger(context.Background(), "demo", uppership.SyncOptions{})
	var ce *uppership.CooldownError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, 1, fb.statusCalls)

	// Повторный триггер отбивается локально, без второго похода в сеть.
	_, err = c.Trigger(context.Background(), "demo", uppership.SyncOptions{})
	var re *RejectedError
	require.ErrorAs(t, err, &re)
	require.Greater(t, re.MsLeft, int64(0))
	require.Equal(t, 1, fb.syncNowCalls)
}

func TestController_Watch_FiresCompletionOnce(t *testing.T) {
	fb := &fakeBackend{
		syncNowMsg: "Sync started",
		statuses: []models.SyncStatus{
			{LastSyncAt: 1700000000000, MsLeft: 120_000},
			{LastSyncAt: 1700000000000, MsLeft: 30_000},
			{LastSyncAt: 1700000000000, MsLeft: 0},
		},
	}
	fp := &fakePublisher{}
	c := New(fb, fp, "board.sync.completed").
		WithSettings(time.Minute, time.Minute, time.Millisecond)

	var completed atomic.Int64
	c.AddListener(func(shop string) { completed.Add(1) })

	_, err := c.Trigger(context.Background(), "demo.myshopify.com", uppership.SyncOptions{})
	require.NoError(t, err)

	c.watch(context.Background(), "demo.myshopify.com")

	require.Equal(t, int64(1), completed.Load())
	require.Equal(t, 1, fp.calls)
	require.Equal(t, "board.sync.completed", fp.topic)
	require.Equal(t, []byte("demo.myshopify.com"), fp.key)

	var ev messages.SyncCompleted
	require.NoError(t, json.Unmarshal(fp.value, &ev))
	require.Equal(t, "demo.myshopify.com", ev.Shop)
	require.Equal(t, int64(1700000000000), ev.LastSyncAt)

	// Повторный вызов для того же триггера ничего не отправляет.
	fired := c.fireCompleted(context.Background(), "demo.myshopify.com", models.SyncStatus{})
	require.False(t, fired)
	require.Equal(t, int64(1), completed.Load())
	require.Equal(t, 1, fp.calls)
	require.Equal(t, int64(1), c.Stats().TotalCompleted)
}

func TestController_Status_ReflectsServer(t *testing.T) {
	fb := &fakeBackend{statuses: []models.SyncStatus{{LastSyncAt: 42_000, MsLeft: 5_000}}}
	c := New(fb, nil, "")

	snap, err := c.Status(context.Background(), "demo")
	require.NoError(t, err)
	require.Equal(t, StateCooldown, snap.State)
	require.Equal(t, int64(42_000), snap.LastSyncAt)
	require.Greater(t, snap.MsLeft, int64(0))
	require.LessOrEqual(t, snap.MsLeft, int64(5_000))
}

func TestController_Status_BackendDownKeepsLocal(t *testing.T) {
	fb := &fakeBackend{syncNowMsg: "ok"}
	c := New(fb, nil, "").WithSettings(time.Minute, 0, 0)

	_, err := c.Trigger(context.Background(), "demo", uppership.SyncOptions{})
	require.NoError(t, err)

	fb.mu.Lock()
	fb.statusErr = context.DeadlineExceeded
	fb.mu.Unlock()

	snap, err := c.Status(context.Background(), "demo")
	require.Error(t, err)
	require.Equal(t, StateCooldown, snap.State)
	require.Greater(t, snap.MsLeft, int64(0))
}

func TestController_WithSettings(t *testing.T) {
	c := New(&fakeBackend{}, nil, "t").
		WithSettings(7*time.Minute, 11*time.Second, 3*time.Second)
	require.Equal(t, 7*time.Minute, c.cooldown)
	require.Equal(t, 11*time.Second, c.reconcileInterval)
	require.Equal(t, 3*time.Second, c.watchInterval)
}
