package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/uppership/opsboard/internal/api/boardapi"
	"github.com/uppership/opsboard/internal/broker/messages"
	"github.com/uppership/opsboard/internal/integrations/uppership"
	"github.com/uppership/opsboard/internal/proxy"
	"github.com/uppership/opsboard/internal/services/chat"
	"github.com/uppership/opsboard/internal/services/columns"
	"github.com/uppership/opsboard/internal/services/syncctl"
)

type boardAPIOpts struct {
	httpAddr string

	proxyTarget string
	proxyPrefix string
	proxyAPIKey string

	staticDir   string
	swaggerPath string

	topic         string
	consumerGroup string

	onListen func(httpAddr string)
}

type boardAPIDeps struct {
	columns  *columns.Service
	chat     *chat.Service
	sync     *syncctl.Controller
	backend  uppership.Client
	consumer kafkaConsumer
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

func runBoardAPI(ctx context.Context, opts boardAPIOpts, deps boardAPIDeps) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8080"
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	api := boardapi.New(deps.columns, deps.chat, deps.sync, deps.backend)
	r.Route("/board", api.Routes)

	// Проксируем публичный API только когда есть чем подписывать запросы.
	if opts.proxyAPIKey != "" {
		p, err := proxy.New(opts.proxyTarget, opts.proxyPrefix, opts.proxyAPIKey)
		if err != nil {
			_ = lis.Close()
			return err
		}
		r.Handle(opts.proxyPrefix+"/*", p)
	}

	if opts.swaggerPath != "" {
		if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
			_ = lis.Close()
			return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
		}
		r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			http.ServeFile(w, r, opts.swaggerPath)
		})
		swaggerURL := "/swagger.json"
		if fi, err := os.Stat(opts.swaggerPath); err == nil {
			swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
		}
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))
	}

	if opts.staticDir != "" {
		r.NotFound(spaHandler(opts.staticDir))
	}

	// Слушаем завершения синхронизаций от других реплик, чтобы их
	// жильцы тоже увидели свежую доску.
	go func() {
		slog.Info("kafka consumer started", "topic", opts.topic, "group", opts.consumerGroup)
		_ = deps.consumer.Consume(ctx, func(_key, value []byte) error {
			var m messages.SyncCompleted
			if err := json.Unmarshal(value, &m); err != nil {
				return err
			}
			deps.columns.Bump(m.Shop)
			slog.Info("sync completed event", "shop", m.Shop)
			return nil
		})
	}()

	go func() {
		if err := deps.sync.Run(ctx); err != nil && err != context.Canceled {
			slog.Error("sync controller stopped", "error", err.Error())
		}
	}()

	srv := &http.Server{Handler: r}
	srvErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", lis.Addr().String())
		srvErr <- srv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-srvErr:
		return err
	}
}

// spaHandler отдаёт файлы фронтенда, а всё неизвестное сводит к
// index.html: роутинг у SPA клиентский.
func spaHandler(dir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			http.ServeFile(w, r, p)
			return
		}
		http.ServeFile(w, r, filepath.Join(dir, "index.html"))
	}
}
