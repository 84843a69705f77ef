package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"motorgestor-api/internal/cache"
	"motorgestor-api/internal/client"
	"motorgestor-api/internal/config"
	"motorgestor-api/internal/database"
	"motorgestor-api/internal/fipe"
	"motorgestor-api/internal/handler"
	"motorgestor-api/internal/metrics"
	"motorgestor-api/internal/repository"
)

func main() {
	// Carregar config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuracao invalida", "error", err)
		os.Exit(1)
	}

	// Logger estruturado
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	slog.Info("iniciando motorgestor-api", "fipe_base_url", cfg.Fipe.BaseURL, "cache_backend", cfg.Cache.Backend)

	ctx := context.Background()
	m := metrics.New(cfg.Metrics)

	// Cliente FIPE
	fipeClient := client.NewFipeClient(cfg.Fipe.ClientConfig(), m)
	defer fipeClient.Close()

	// Cache
	var store cache.Store
	var cachePinger handler.Pinger
	switch cfg.Cache.Backend {
	case "redis":
		redisStore, err := cache.NewRedisStore(ctx, cfg.Cache.Redis.StoreConfig(), cache.SystemClock{})
		if err != nil {
			slog.Error("falha ao conectar redis", "addr", cfg.Cache.Redis.Addr, "error", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		store = redisStore
		cachePinger = redisStore
	default:
		memStore, err := cache.NewMemoryStore(cache.SystemClock{}, cfg.Cache.MaxEntries)
		if err != nil {
			slog.Error("falha ao criar cache", "error", err)
			os.Exit(1)
		}
		store = memStore
	}

	// Service
	fipeSvc := fipe.NewService(fipeClient, store, fipe.Options{
		TTL:     cfg.Cache.TTL,
		Logger:  logger,
		Metrics: m,
	})

	// Banco (opcional, so para o snapshot FIPE no veiculo)
	var veiculoHandler *handler.VeiculoHandler
	var dbPinger handler.Pinger
	if cfg.Database.Enabled() {
		slog.Info("conectando ao banco de dados", "host", cfg.Database.Host, "database", cfg.Database.Name)
		db, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			slog.Error("falha ao conectar banco", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		slog.Info("conexao com banco estabelecida")
		dbPinger = db

		enabled, err := prepareVeiculos(ctx, db)
		if err != nil {
			slog.Error("falha nas migracoes", "error", err)
			os.Exit(1)
		}
		if enabled {
			veiculoHandler = handler.NewVeiculoHandler(repository.NewVeiculoRepo(db), fipeSvc, fipeClient.BaseURL(), logger)
		} else {
			slog.Warn("tabela vehicles ausente, rotas de veiculos desabilitadas")
		}
	}

	// Handlers
	healthHandler := handler.NewHealthHandler(dbPinger, cachePinger)
	fipeHandler := handler.NewFipeHandler(fipeSvc, fipeClient.BaseURL(), logger)

	// Router
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+handler.CompanyHeader)

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// Routes
	r.Get("/health", healthHandler.Check)
	if cfg.Metrics {
		r.Handle("/metrics", m.Handler())
	}

	r.Post("/api/fipe", fipeHandler.Consultar)

	if veiculoHandler != nil {
		r.Route("/api/v1", func(r chi.Router) {
			r.Put("/veiculos/{id}/fipe", veiculoHandler.AtualizarFipe)
		})
	}

	// Server
	srv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		slog.Info("servidor iniciado", "port", cfg.APIPort)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("erro no servidor", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("encerrando servidor...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("erro ao encerrar servidor", "error", err)
	}

	slog.Info("servidor encerrado")
}

// prepareVeiculos runs the schema step. A missing vehicles table only
// disables the vehicle routes; any other failure is fatal.
func prepareVeiculos(ctx context.Context, db database.Migrator) (bool, error) {
	err := database.RunMigrations(ctx, db)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, database.ErrVehiclesTableMissing):
		return false, nil
	default:
		return false, err
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
