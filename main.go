package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	_ "google.golang.org/grpc/encoding/gzip"

	"hordeforge/engine/internal/auth"
	configpkg "hordeforge/engine/internal/config"
	grpcapi "hordeforge/engine/internal/grpc"
	httpapi "hordeforge/engine/internal/http"
	"hordeforge/engine/internal/journal"
	"hordeforge/engine/internal/logging"
	"hordeforge/engine/internal/session"
	"hordeforge/engine/internal/upgrades"
)

const (
	journalSweepInterval = 15 * time.Minute
	shutdownGrace        = 10 * time.Second
)

// engineState tracks startup health for the readiness probe.
type engineState struct {
	mu         sync.RWMutex
	startedAt  time.Time
	startupErr error
}

func newEngineState() *engineState {
	return &engineState{startedAt: time.Now()}
}

func (s *engineState) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startupErr == nil {
		s.startupErr = err
	}
}

func (s *engineState) StartupError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startupErr
}

func (s *engineState) Uptime() time.Duration {
	return time.Since(s.startedAt)
}

// engine bundles the assembled components so main and tests share one wiring path.
type engine struct {
	cfg      *configpkg.Config
	logger   *logging.Logger
	state    *engineState
	runs     *session.Registry
	tokens   *auth.TokenIssuer
	cleaner  *journal.Cleaner
	router   http.Handler
	grpcOpts []grpc.ServerOption
}

func buildEngine(cfg *configpkg.Config, logger *logging.Logger) (*engine, error) {
	//1.- Resolve the upgrade table first; a broken override file is fatal.
	catalog, err := upgrades.Load(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if malformed := catalog.Malformed(); len(malformed) > 0 {
		for key, problem := range malformed {
			logger.Warn("catalog entry excluded from offers", logging.String("entry", key), logging.Error(problem))
		}
	}

	//2.- Assemble the run registry with the configured tunables.
	runs := session.NewRegistry(
		session.WithCatalog(catalog),
		session.WithMaxRuns(cfg.MaxRuns),
		session.WithOfferCount(cfg.OfferCount),
		session.WithDebug(cfg.Debug),
		session.WithCooldownFloor(cfg.CooldownFloor),
		session.WithJournalDir(cfg.JournalDir),
		session.WithLogger(logger),
	)

	eng := &engine{cfg: cfg, logger: logger, state: newEngineState(), runs: runs}

	//3.- Run tokens are optional; without a secret the run endpoints stay open.
	var tokens httpapi.TokenService
	if cfg.TokenSecret != "" {
		issuer, err := auth.NewTokenIssuer(cfg.TokenSecret, cfg.TokenTTL, 0)
		if err != nil {
			return nil, fmt.Errorf("token issuer: %w", err)
		}
		eng.tokens = issuer
		tokens = issuer
	} else {
		logger.Warn("run tokens disabled; set HORDE_TOKEN_SECRET to require them")
	}

	var journalStats func() journal.StorageStats
	if cfg.JournalDir != "" {
		eng.cleaner = journal.NewCleaner(cfg.JournalDir, journal.RetentionPolicy{MaxRuns: cfg.JournalMaxRuns, MaxAge: cfg.JournalMaxAge}, logger)
		journalStats = eng.cleaner.Stats
	}

	handlers := httpapi.NewHandlerSet(httpapi.Options{
		Logger:         logger,
		Readiness:      eng.state,
		Runs:           runs,
		Tokens:         tokens,
		RateLimiter:    httpapi.NewClientLimiter(cfg.RunCreateWindow, cfg.RunCreateBurst, nil),
		AllowedOrigins: cfg.AllowedOrigins,
		PingInterval:   cfg.PingInterval,
		JournalStats:   journalStats,
	})
	router := handlers.Router()
	registerRouteDocEndpoint(router)
	eng.router = router

	if cfg.GRPCAddress != "" {
		opts, err := configureGRPCSecurity(cfg, logger)
		if err != nil {
			return nil, err
		}
		eng.grpcOpts = append(opts, grpc.ChainUnaryInterceptor(grpcapi.UnaryLoggingInterceptor(logger)))
	}
	return eng, nil
}

// newGRPCServer builds the progression gRPC server. Tokens are only enforced
// when an issuer is configured.
func (e *engine) newGRPCServer() *grpc.Server {
	server := grpc.NewServer(e.grpcOpts...)
	opts := []grpcapi.Option{grpcapi.WithLogger(e.logger)}
	if e.tokens != nil {
		opts = append(opts, grpcapi.WithTokens(e.tokens))
	}
	grpcapi.RegisterProgressionServer(server, grpcapi.NewService(e.runs, opts...))
	return server
}

func main() {
	cfg, err := configpkg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	eng, err := buildEngine(cfg, logger)
	if err != nil {
		logger.Fatal("engine setup failed", logging.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              cfg.Address,
		Handler:           eng.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	var grpcServer *grpc.Server
	var grpcListener net.Listener
	if cfg.GRPCAddress != "" {
		grpcListener, err = net.Listen("tcp", cfg.GRPCAddress)
		if err != nil {
			logger.Fatal("grpc listen failed", logging.String("address", cfg.GRPCAddress), logging.Error(err))
		}
		grpcServer = eng.newGRPCServer()
	}

	g, gctx := errgroup.WithContext(ctx)
	if eng.cleaner != nil {
		g.Go(func() error {
			eng.cleaner.Run(gctx, journalSweepInterval)
			return nil
		})
	}
	g.Go(func() error {
		logger.Info("http listening", logging.String("url", listenerURL(cfg.Address, false)))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			eng.state.fail(err)
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	if grpcServer != nil {
		g.Go(func() error {
			logger.Info("grpc listening", logging.String("target", grpcTarget(cfg.GRPCAddress)), logging.String("auth_mode", string(cfg.GRPCAuthMode)))
			if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				eng.state.fail(err)
				return fmt.Errorf("grpc: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", logging.Error(err))
		}
		if grpcServer != nil {
			grpcServer.GracefulStop()
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Error("listener failed", logging.Error(err))
	}

	//1.- Close remaining runs last so their journals flush after traffic stops.
	if err := eng.runs.Shutdown(); err != nil {
		logger.Warn("closing runs", logging.Error(err))
	}
	stats := eng.runs.Stats()
	logger.Info("engine stopped", logging.Int("runs_started", stats.Started), logging.Int("choices", stats.Choices))
}
