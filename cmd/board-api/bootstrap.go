package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/uppership/opsboard/config"
	"github.com/uppership/opsboard/internal/broker/kafka"
	"github.com/uppership/opsboard/internal/cache/rediscache"
	"github.com/uppership/opsboard/internal/integrations/uppership"
	"github.com/uppership/opsboard/internal/integrations/uppership/fake"
	"github.com/uppership/opsboard/internal/integrations/uppership/httpapi"
	"github.com/uppership/opsboard/internal/services/chat"
	"github.com/uppership/opsboard/internal/services/columns"
	"github.com/uppership/opsboard/internal/services/syncctl"
	"github.com/uppership/opsboard/internal/storage/pgchat"
)

type boardAPIApp struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   boardAPIOpts

	columns  *columns.Service
	chat     *chat.Service
	sync     *syncctl.Controller
	backend  uppership.Client
	consumer *kafka.Consumer
	closeDB  func()
}

func mustBootstrapBoardAPI() *boardAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.Board.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.Board.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "board-api"
	}
	topic := cfg.Kafka.SyncCompletedTopicName
	if topic == "" {
		topic = "board.sync.completed"
	}
	proxyPrefix := cfg.Board.ProxyPrefix
	if proxyPrefix == "" {
		proxyPrefix = "/api"
	}

	cacheTTL := time.Duration(cfg.Board.ColumnCacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 15 * time.Second
	}
	cooldown := time.Duration(cfg.Board.SyncCooldownSeconds) * time.Second
	reconcile := time.Duration(cfg.Board.SyncReconcileSeconds) * time.Second
	watch := time.Duration(cfg.Board.SyncWatchSeconds) * time.Second
	debounce := time.Duration(cfg.Board.ChatDebounceMillis) * time.Millisecond

	// Без ключа работаем на встроенной заглушке: удобно для локальной
	// разработки и демо.
	var backend uppership.Client
	if cfg.Board.UppershipAPIKey == "" {
		slog.Warn("uppership api key is empty, using built-in fake backend")
		backend = fake.New()
	} else {
		backend = httpapi.New(cfg.Board.UppershipBaseURL, cfg.Board.UppershipAPIKey)
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)
	rl := rediscache.NewRateLimiter(redisAddr)

	cols := columns.New(backend, rc, cacheTTL).WithLimit(cfg.Board.ColumnLimit)
	chatSvc := chat.New(backend, st, rl).WithDebounce(debounce)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)
	consumer := kafka.NewConsumer(brokers, topic, consumerGroup)

	ctrl := syncctl.New(backend, producer, topic).WithSettings(cooldown, reconcile, watch)
	// Завершение синхронизации делает кэш колонок устаревшим.
	ctrl.AddListener(func(shop string) {
		cols.Bump(shop)
		slog.Info("sync completed, board cache bumped", "shop", shop)
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &boardAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: boardAPIOpts{
			httpAddr:      httpAddr,
			proxyTarget:   cfg.Board.UppershipBaseURL,
			proxyPrefix:   proxyPrefix,
			proxyAPIKey:   cfg.Board.UppershipAPIKey,
			staticDir:     cfg.Board.StaticDir,
			swaggerPath:   cfg.Board.SwaggerPath,
			topic:         topic,
			consumerGroup: consumerGroup,
		},
		columns:  cols,
		chat:     chatSvc,
		sync:     ctrl,
		backend:  backend,
		consumer: consumer,
		closeDB:  st.Close,
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgchat.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgchat.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *boardAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *boardAPIApp) Run() error {
	return runBoardAPI(a.ctx, a.opts, boardAPIDeps{
		columns:  a.columns,
		chat:     a.chat,
		sync:     a.sync,
		backend:  a.backend,
		consumer: a.consumer,
	})
}
