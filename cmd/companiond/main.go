// companiond runs one principal's companion: the peer-facing negotiation
// endpoint plus the owner-side coordination surface. Two principals are two
// processes with different environments.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/justQrius/companion-network-sub000/internal/audit"
	"github.com/justQrius/companion-network-sub000/internal/companion"
	"github.com/justQrius/companion-network-sub000/internal/platform/config"
	"github.com/justQrius/companion-network-sub000/internal/platform/httpserver"
	"github.com/justQrius/companion-network-sub000/internal/platform/logger"
	"github.com/justQrius/companion-network-sub000/internal/platform/metrics"
	platformredis "github.com/justQrius/companion-network-sub000/internal/platform/redis"
	"github.com/justQrius/companion-network-sub000/internal/proposal"
	"github.com/justQrius/companion-network-sub000/internal/rpc"
	"github.com/justQrius/companion-network-sub000/internal/session"
	httptransport "github.com/justQrius/companion-network-sub000/internal/transport/http"
	"github.com/justQrius/companion-network-sub000/internal/trust"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.PrincipalID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := newStore(ctx, cfg)
	if err != nil {
		log.Error("session store init failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	if cfg.SeedDemoData {
		if err := companion.Seed(ctx, store, cfg.PrincipalID, log); err != nil {
			log.Error("demo seed failed", "error", err)
			os.Exit(1)
		}
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	auditStore := audit.NewSessionStore(store, companion.SessionKey(cfg.PrincipalID))
	auditOpts := []audit.Option{audit.WithLogger(log)}
	if len(cfg.KafkaBrokers) > 0 {
		sink, err := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.AuditTopic, log)
		if err != nil {
			log.Error("kafka sink init failed", "error", err)
			os.Exit(1)
		}
		defer sink.Close()
		auditOpts = append(auditOpts, audit.WithSink(sink))
	}
	auditLog := audit.New(auditStore, m, auditOpts...)

	gate := trust.New(log)
	ledger := proposal.New(store, gate, m, proposal.WithLogger(log))
	svc := companion.New(cfg.PrincipalID, store, gate, ledger, m, companion.WithLogger(log))

	dispatcher := rpc.New(m,
		rpc.WithLogger(log),
		rpc.WithTimeout(cfg.DispatchTimeout),
		rpc.WithBackoff(cfg.RetryBackoff),
	)
	peer := companion.Peer{
		ID:          cfg.PeerID,
		DisplayName: cfg.PeerDisplayName(),
		Endpoint:    cfg.PeerEndpoint,
	}
	coordinator := companion.NewCoordinator(cfg.PrincipalID, cfg.DisplayName, peer, svc, dispatcher, auditLog, log)

	handler := httptransport.NewHandler(svc, coordinator, auditLog, log)
	router := httptransport.NewRouter(handler, reg)
	srv := httpserver.New(cfg.Addr, router)

	log.Info("companion starting", "addr", cfg.Addr, "peer", cfg.PeerID)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// newStore picks the session backend from configuration: Postgres when a
// database URL is set, Redis when only a Redis URL is set, in-memory
// otherwise.
func newStore(ctx context.Context, cfg config.Companion) (session.Store, func(), error) {
	switch {
	case cfg.DatabaseURL != "":
		store, err := session.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case cfg.RedisURL != "":
		client, err := platformredis.New(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return session.NewRedis(client.Client), func() { client.Close() }, nil
	default:
		return session.NewInMemoryStore(), func() {}, nil
	}
}
