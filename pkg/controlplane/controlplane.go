// Package controlplane assembles a fileserv server from its configuration.
//
// The control plane owns:
//   - Store: users, pools, zones, permissions and share links (SQLite/PostgreSQL)
//   - Registry: the in-memory snapshot of pools, zones and grants
//   - Tracker: per-user quota accounting backed by a durable ledger
//   - Links: share link issuance and anonymous access
//   - Pipeline: the access checks every file operation goes through
//   - API and metrics HTTP servers
//
// Usage:
//
//	cp, err := controlplane.New(ctx, cfg, metricsResult)
//	if err != nil {
//	    return err
//	}
//	defer cp.Close()
//	return cp.Serve(ctx)
package controlplane

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/fileserv/internal/controlplane/api/handlers"
	"github.com/marmos91/fileserv/internal/logger"
	"github.com/marmos91/fileserv/pkg/access/pipeline"
	"github.com/marmos91/fileserv/pkg/access/quota"
	quotabadger "github.com/marmos91/fileserv/pkg/access/quota/badger"
	"github.com/marmos91/fileserv/pkg/access/sharelink"
	"github.com/marmos91/fileserv/pkg/config"
	"github.com/marmos91/fileserv/pkg/controlplane/api"
	"github.com/marmos91/fileserv/pkg/controlplane/models"
	"github.com/marmos91/fileserv/pkg/controlplane/store"
	"github.com/marmos91/fileserv/pkg/diskstats"
	"github.com/marmos91/fileserv/pkg/identity"
	"github.com/marmos91/fileserv/pkg/registry"
)

// DefaultShutdownTimeout is used when the configuration sets none.
const DefaultShutdownTimeout = 30 * time.Second

// generatedPasswordBytes is the entropy of a bootstrap admin password.
const generatedPasswordBytes = 18

// AuxiliaryServer is an HTTP server run alongside the API (metrics).
type AuxiliaryServer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Port() int
}

// ControlPlane is a fully wired fileserv server.
type ControlPlane struct {
	store     *store.GORMStore
	registry  *registry.Registry
	ledger    quota.Ledger
	tracker   *quota.Tracker
	links     *sharelink.Manager
	pipeline  *pipeline.Pipeline
	refresher *diskstats.Refresher

	apiServer     *api.Server
	metricsServer AuxiliaryServer

	shutdownTimeout time.Duration
	reapInterval    time.Duration

	serveOnce sync.Once
	closeOnce sync.Once
}

// New builds every component from cfg. Metric collectors in m may be nil.
//
// On error, everything opened so far is closed again.
func New(ctx context.Context, cfg *config.Config, m config.MetricsResult) (_ *ControlPlane, err error) {
	if cfg == nil {
		return nil, errors.New("configuration cannot be nil")
	}

	cp := &ControlPlane{
		shutdownTimeout: cfg.ShutdownTimeout,
		reapInterval:    cfg.Links.ReapInterval,
	}
	if cp.shutdownTimeout <= 0 {
		cp.shutdownTimeout = DefaultShutdownTimeout
	}
	defer func() {
		if err != nil {
			_ = cp.Close()
		}
	}()

	cp.store, err = store.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize control plane store: %w", err)
	}

	cp.registry, err = registry.New(ctx, cp.store)
	if err != nil {
		return nil, fmt.Errorf("failed to load zone registry: %w", err)
	}

	cp.ledger, err = openLedger(cfg.Quota, m)
	if err != nil {
		return nil, err
	}

	cp.tracker, err = quota.NewTracker(ctx, quota.RegistryLimits(cp.registry),
		quota.WithLedger(cp.ledger),
		quota.WithMetrics(m.Quota),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize quota tracker: %w", err)
	}

	cp.links = sharelink.NewManager(cp.store, cp.registry, sharelink.Config{
		TokenBytes:    cfg.Links.TokenBytes,
		DefaultExpiry: cfg.Links.DefaultExpiry,
		Hasher:        models.BcryptHasher{Cost: cfg.Links.BcryptCost},
		Metrics:       m.Links,
	})

	cp.pipeline = pipeline.New(cp.registry, cp.tracker,
		pipeline.WithLinks(cp.links),
		pipeline.WithMetrics(m.Access),
	)

	cp.refresher = diskstats.NewRefresher(cp.registry, diskstats.Statfs{}, cfg.DiskStats.RefreshInterval, m.Capacity)

	checks := map[string]handlers.HealthChecker{"database": cp.store}
	if hc, ok := cp.ledger.(handlers.HealthChecker); ok {
		checks["quota_ledger"] = hc
	}

	cp.apiServer, err = api.NewServer(cfg.ControlPlane, api.Deps{
		Store:     cp.store,
		Registry:  cp.registry,
		Tracker:   cp.tracker,
		Links:     cp.links,
		Pipeline:  cp.pipeline,
		Passwords: identity.NewStoreProvider(cp.store),
		Checks:    checks,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create API server: %w", err)
	}

	if m.Server != nil {
		cp.metricsServer = m.Server
	}

	snap := cp.registry.Snapshot()
	logger.Info("Control plane initialized",
		"database", cfg.Database.Type,
		"pools", len(snap.Pools()),
		"zones", len(snap.Zones()),
		"ledger", ledgerDescription(cfg.Quota.LedgerPath))
	return cp, nil
}

func openLedger(cfg config.QuotaConfig, m config.MetricsResult) (quota.Ledger, error) {
	if cfg.LedgerPath == "" {
		logger.Warn("Quota ledger path not set; usage is kept in memory and lost on restart")
		return quota.NewMemoryLedger(), nil
	}
	ledger, err := quotabadger.Open(quotabadger.Config{
		Path:           cfg.LedgerPath,
		GCInterval:     cfg.GCInterval,
		BlockCacheSize: int64(cfg.BlockCacheSize),
		Metrics:        m.Ledger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open quota ledger: %w", err)
	}
	return ledger, nil
}

func ledgerDescription(path string) string {
	if path == "" {
		return "memory"
	}
	return path
}

// Store returns the persistent store.
func (cp *ControlPlane) Store() *store.GORMStore { return cp.store }

// Registry returns the zone registry.
func (cp *ControlPlane) Registry() *registry.Registry { return cp.registry }

// Tracker returns the quota tracker.
func (cp *ControlPlane) Tracker() *quota.Tracker { return cp.tracker }

// Links returns the share link manager.
func (cp *ControlPlane) Links() *sharelink.Manager { return cp.links }

// Pipeline returns the access pipeline.
func (cp *ControlPlane) Pipeline() *pipeline.Pipeline { return cp.pipeline }

// APIServer returns the REST API server.
func (cp *ControlPlane) APIServer() *api.Server { return cp.apiServer }

// EnsureAdminUser creates the administrator account if it does not exist.
// With an empty passwordHash a random password is generated and returned;
// the returned password is empty when the account already existed or a
// hash was supplied.
func (cp *ControlPlane) EnsureAdminUser(ctx context.Context, username, passwordHash string) (string, error) {
	var generated string
	if passwordHash == "" {
		pw, err := generatePassword()
		if err != nil {
			return "", err
		}
		hash, err := models.HashPassword(pw)
		if err != nil {
			return "", fmt.Errorf("failed to hash admin password: %w", err)
		}
		generated, passwordHash = pw, hash
	}

	created, err := cp.store.EnsureAdminUser(ctx, username, passwordHash)
	if err != nil {
		return "", fmt.Errorf("failed to ensure admin user: %w", err)
	}
	if !created {
		return "", nil
	}
	logger.SecurityEvent(ctx, "admin_bootstrap", logger.KeyUsername, username)
	return generated, nil
}

func generatePassword() (string, error) {
	b := make([]byte, generatedPasswordBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate admin password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Serve starts the background workers and HTTP servers and blocks until
// ctx is cancelled or the API server fails. Serve may only be called once.
func (cp *ControlPlane) Serve(ctx context.Context) error {
	err := errors.New("control plane already served")
	cp.serveOnce.Do(func() {
		err = cp.serve(ctx)
	})
	return err
}

func (cp *ControlPlane) serve(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var workers sync.WaitGroup

	cp.refresher.Start(ctx)

	if cp.reapInterval > 0 {
		workers.Add(1)
		go func() {
			defer workers.Done()
			cp.links.RunReaper(ctx, cp.reapInterval)
		}()
		logger.Info("Share link reaper enabled", "interval", cp.reapInterval)
	}

	if cp.metricsServer != nil {
		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := cp.metricsServer.Start(ctx); err != nil {
				logger.Error("Metrics server error", logger.KeyError, err)
			}
		}()
	}

	apiErr := make(chan error, 1)
	go func() {
		apiErr <- cp.apiServer.Start(ctx)
	}()

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received", "reason", ctx.Err())
	case err := <-apiErr:
		if err != nil {
			logger.Error("API server failed - initiating shutdown", logger.KeyError, err)
			shutdownErr = fmt.Errorf("API server error: %w", err)
		}
	}

	cancel()
	cp.shutdown()
	workers.Wait()

	logger.Info("Control plane stopped")
	return shutdownErr
}

func (cp *ControlPlane) shutdown() {
	cp.refresher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cp.shutdownTimeout)
	defer cancel()

	if err := cp.apiServer.Stop(ctx); err != nil {
		logger.Error("API server shutdown error", logger.KeyError, err)
	}
	if cp.metricsServer != nil {
		if err := cp.metricsServer.Stop(ctx); err != nil {
			logger.Error("Metrics server shutdown error", logger.KeyError, err)
		}
	}

	if pending := cp.tracker.Pending(); pending > 0 {
		logger.Warn("Discarding in-flight quota reservations", "count", pending)
	}
}

// Close releases the ledger and the database. It is safe to call more than
// once and after a failed New.
func (cp *ControlPlane) Close() error {
	var errs []error
	cp.closeOnce.Do(func() {
		switch {
		case cp.tracker != nil:
			errs = append(errs, cp.tracker.Close())
		case cp.ledger != nil:
			errs = append(errs, cp.ledger.Close())
		}
		if cp.store != nil {
			errs = append(errs, cp.store.Close())
		}
	})
	return errors.Join(errs...)
}
