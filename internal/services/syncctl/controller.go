package syncctl

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/uppership/opsboard/internal/broker/messages"
	"github.com/uppership/opsboard/internal/integrations/uppership"
	"github.com/uppership/opsboard/internal/models"
)

// Backend — минимальный срез бэкенда, нужный контроллеру синхронизации.
type Backend interface {
	SyncNow(ctx context.Context, shop string, opts uppership.SyncOptions) (string, error)
	SyncStatus(ctx context.Context, shop string) (models.SyncStatus, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Listener вызывается после завершения синхронизации магазина.
type Listener func(shop string)

var ErrSyncInFlight = errors.New("sync already in flight")

// RejectedError возвращается, когда триггер отклонён локально из-за
// ещё не истёкшего кулдауна. Сетевой запрос при этом не делается.
type RejectedError struct {
	MsLeft int64
}

func (e *RejectedError) Error() string {
	return "please wait " + FormatLeft(e.MsLeft) + " before syncing again"
}

type State string

const (
	StateIdle     State = "idle"
	StateInFlight State = "in_flight"
	StateCooldown State = "cooldown"
)

type shopState struct {
	inFlight bool
	// Момент, когда сервер последний раз подтвердил msLeft.
	msLeft      time.Duration
	observedAt  time.Time
	triggeredAt time.Time
	lastSyncAt  int64 // unix ms, 0 = никогда
	fired       bool  // уведомление о завершении текущего триггера уже отправлено
	lastMessage string
}

// Controller держит по каждому магазину машину состояний
// idle -> in_flight -> cooldown и следит за её сходимостью с сервером.
type Controller struct {
	backend  Backend
	producer Producer
	topic    string

	cooldown          time.Duration
	reconcileInterval time.Duration
	watchInterval     time.Duration

	now func() time.Time

	mu        sync.Mutex
	shops     map[string]*shopState
	listeners []Listener

	triggerCh chan string

	startedAtUnixNano     int64
	lastCycleUnixNano     atomic.Int64
	lastTriggerUnixNano   atomic.Int64
	lastCompletedUnixNano atomic.Int64
	totalTriggered        atomic.Int64
	totalRejected         atomic.Int64
	totalCompleted        atomic.Int64
	totalErrors           atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(backend Backend, producer Producer, topic string) *Controller {
	return &Controller{
		backend:  backend,
		producer: producer,
		topic:    topic,

		cooldown:          15 * time.Minute,
		reconcileInterval: 30 * time.Second,
		watchInterval:     5 * time.Second,

		now:   func() time.Time { return time.Now().UTC() },
		shops: map[string]*shopState{},

		triggerCh:         make(chan string, 8),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (c *Controller) WithSettings(cooldown, reconcileInterval, watchInterval time.Duration) *Controller {
	if cooldown > 0 {
		c.cooldown = cooldown
	}
	if reconcileInterval > 0 {
		c.reconcileInterval = reconcileInterval
	}
	if watchInterval > 0 {
		c.watchInterval = watchInterval
	}
	return c
}

// AddListener регистрирует обработчик завершения синхронизации.
// Вызывать до Run.
func (c *Controller) AddListener(fn Listener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

func (c *Controller) state(shop string) *shopState {
	st, ok := c.shops[shop]
	if !ok {
		st = &shopState{fired: true}
		c.shops[shop] = st
	}
	return st
}

func (st *shopState) leftAt(now time.Time) int64 {
	if st.msLeft <= 0 {
		return 0
	}
	left := st.msLeft - now.Sub(st.observedAt)
	if left < 0 {
		return 0
	}
	return left.Milliseconds()
}

// Trigger запускает синхронизацию магазина. Если по локальным данным
// кулдаун ещё не истёк или синхронизация уже идёт, отклоняет запрос
// без обращения к бэкенду.
func (c *Controller) Trigger(ctx context.Context, shop string, opts uppership.SyncOptions) (string, error) {
	now := c.now()

	c.mu.Lock()
	st := c.state(shop)
	if st.inFlight {
		c.mu.Unlock()
		c.totalRejected.Add(1)
		return "", ErrSyncInFlight
	}
	if left := st.leftAt(now); left > 0 && !opts.Force {
		c.mu.Unlock()
		c.totalRejected.Add(1)
		return "", &RejectedError{MsLeft: left}
	}
	st.inFlight = true
	st.fired = false
	st.triggeredAt = now
	c.mu.Unlock()

	c.lastTriggerUnixNano.Store(now.UnixNano())

	msg, err := c.backend.SyncNow(ctx, shop, opts)

	c.mu.Lock()
	st.inFlight = false
	if err != nil {
		st.fired = true
		st.lastMessage = err.Error()
		// Сервер мог отклонить по своему кулдауну: верим его msLeft.
		var ce *uppership.CooldownError
		if errors.As(err, &ce) {
			st.msLeft = time.Duration(ce.MsLeft) * time.Millisecond
			st.observedAt = c.now()
		}
		c.mu.Unlock()

		// Тело отказа может прийти и без msLeft. Сверяем отсчёт со
		// статусом, чтобы повторные триггеры отбивались локально.
		if ss, serr := c.backend.SyncStatus(ctx, shop); serr == nil {
			c.apply(shop, ss)
		}

		c.totalErrors.Add(1)
		c.lastErrorMu.Lock()
		c.lastError = err.Error()
		c.lastErrorMu.Unlock()
		if errors.As(err, &ce) {
			return "", err
		}
		return "", errors.Wrap(err, "sync now")
	}

	st.lastMessage = msg
	st.lastSyncAt = now.UnixMilli()
	// До первой сверки со статусом считаем, что действует полный кулдаун.
	st.msLeft = c.cooldown
	st.observedAt = c.now()
	c.mu.Unlock()

	c.totalTriggered.Add(1)

	// Просим Run поставить магазин на ускоренное наблюдение.
	select {
	case c.triggerCh <- shop:
	default:
	}
	return msg, nil
}

// Status возвращает снимок состояния магазина с серверным статусом поверх
// локального, если сервер доступен.
type Snapshot struct {
	State       State  `json:"state"`
	LastSyncAt  int64  `json:"lastSyncAt"`
	MsLeft      int64  `json:"msLeft"`
	LastMessage string `json:"lastMessage,omitempty"`
}

func (c *Controller) Status(ctx context.Context, shop string) (Snapshot, error) {
	ss, err := c.backend.SyncStatus(ctx, shop)
	if err == nil {
		c.apply(shop, ss)
	}

	now := c.now()
	c.mu.Lock()
	st := c.state(shop)
	snap := Snapshot{
		State:       StateIdle,
		LastSyncAt:  st.lastSyncAt,
		MsLeft:      st.leftAt(now),
		LastMessage: st.lastMessage,
	}
	if st.inFlight {
		snap.State = StateInFlight
	} else if snap.MsLeft > 0 {
		snap.State = StateCooldown
	}
	c.mu.Unlock()

	if err != nil {
		// Локальный снимок всё равно полезен: отдадим его вместе с ошибкой.
		return snap, errors.Wrap(err, "sync status")
	}
	return snap, nil
}

// apply фиксирует серверный статус как источник истины.
func (c *Controller) apply(shop string, ss models.SyncStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state(shop)
	if ss.LastSyncAt > 0 {
		st.lastSyncAt = ss.LastSyncAt
	}
	st.msLeft = time.Duration(ss.MsLeft) * time.Millisecond
	st.observedAt = c.now()
}

func (c *Controller) Run(ctx context.Context) error {
	t := time.NewTicker(c.reconcileInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			c.reconcileAll(ctx)
		case shop := <-c.triggerCh:
			go c.watch(ctx, shop)
		}
	}
}

func (c *Controller) reconcileAll(ctx context.Context) {
	c.lastCycleUnixNano.Store(c.now().UnixNano())

	c.mu.Lock()
	shops := make([]string, 0, len(c.shops))
	for shop := range c.shops {
		shops = append(shops, shop)
	}
	c.mu.Unlock()

	for _, shop := range shops {
		ss, err := c.backend.SyncStatus(ctx, shop)
		if err != nil {
			slog.Error("reconcile sync status", "shop", shop, "error", err.Error())
			c.totalErrors.Add(1)
			c.lastErrorMu.Lock()
			c.lastError = err.Error()
			c.lastErrorMu.Unlock()
			continue
		}
		c.apply(shop, ss)
	}
}

// watch ускоренно опрашивает статус после успешного триггера, пока сервер
// не отдаст msLeft == 0, и ровно один раз объявляет о завершении.
func (c *Controller) watch(ctx context.Context, shop string) {
	t := time.NewTicker(c.watchInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		ss, err := c.backend.SyncStatus(ctx, shop)
		if err != nil {
			slog.Warn("watch sync status", "shop", shop, "error", err.Error())
			continue
		}
		c.apply(shop, ss)

		if ss.MsLeft > 0 {
			continue
		}
		c.fireCompleted(ctx, shop, ss)
		return
	}
}

// fireCompleted отправляет уведомления подписчикам и в Kafka.
// Возвращает false, если для текущего триггера уже отправляли.
func (c *Controller) fireCompleted(ctx context.Context, shop string, ss models.SyncStatus) bool {
	c.mu.Lock()
	st := c.state(shop)
	if st.fired {
		c.mu.Unlock()
		return false
	}
	st.fired = true
	triggeredAt := st.triggeredAt
	msg := st.lastMessage
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	c.totalCompleted.Add(1)
	c.lastCompletedUnixNano.Store(c.now().UnixNano())

	for _, fn := range listeners {
		fn(shop)
	}

	if c.producer == nil || c.topic == "" {
		return true
	}
	ev := messages.SyncCompleted{
		Shop:        shop,
		TriggeredAt: triggeredAt,
		CompletedAt: c.now(),
		LastSyncAt:  ss.LastSyncAt,
		Message:     msg,
	}
	b, err := json.Marshal(ev)
	if err != nil {
		slog.Error("marshal sync completed", "error", err.Error())
		return true
	}
	// Kafka не обязана быть доступной: событие — best effort.
	if err := c.producer.Publish(ctx, c.topic, []byte(shop), b); err != nil {
		slog.Error("publish sync completed", "shop", shop, "error", err.Error())
	}
	return true
}

type Stats struct {
	StartedAt       time.Time  `json:"startedAt"`
	LastCycleAt     *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt   *time.Time `json:"lastTriggerAt,omitempty"`
	LastCompletedAt *time.Time `json:"lastCompletedAt,omitempty"`
	TotalTriggered  int64      `json:"totalTriggered"`
	TotalRejected   int64      `json:"totalRejected"`
	TotalCompleted  int64      `json:"totalCompleted"`
	TotalErrors     int64      `json:"totalErrors"`
	LastError       string     `json:"lastError,omitempty"`
}

func (c *Controller) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, c.startedAtUnixNano).UTC(),
		TotalTriggered: c.totalTriggered.Load(),
		TotalRejected:  c.totalRejected.Load(),
		TotalCompleted: c.totalCompleted.Load(),
		TotalErrors:    c.totalErrors.Load(),
	}
	if n := c.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := c.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	if n := c.lastCompletedUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCompletedAt = &t
	}
	c.lastErrorMu.Lock()
	st.LastError = c.lastError
	c.lastErrorMu.Unlock()
	return st
}
