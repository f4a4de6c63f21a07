package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/beartec-jpg/Ai-Peer-review/internal/api"
	"github.com/beartec-jpg/Ai-Peer-review/internal/common/config"
	"github.com/beartec-jpg/Ai-Peer-review/internal/common/database"
	"github.com/beartec-jpg/Ai-Peer-review/internal/common/logger"
	"github.com/beartec-jpg/Ai-Peer-review/internal/common/metrics"
	"github.com/beartec-jpg/Ai-Peer-review/internal/common/observability"
	"github.com/beartec-jpg/Ai-Peer-review/internal/providers"
	"github.com/beartec-jpg/Ai-Peer-review/internal/providers/roster"
	"github.com/beartec-jpg/Ai-Peer-review/internal/review/followup"
	peerreview "github.com/beartec-jpg/Ai-Peer-review/internal/review/peer-review"
	historyledger "github.com/beartec-jpg/Ai-Peer-review/internal/storage/history-ledger"
	resultcache "github.com/beartec-jpg/Ai-Peer-review/internal/storage/result-cache"
)

// App holds every wired component for one process.
type App struct {
	Config    *config.Config
	Logger    logger.Logger
	Roster    *roster.Roster
	Reviews   *peerreview.Service
	Followups *followup.Engine
	Cache     *resultcache.Cache
	History   *historyledger.Ledger
	Checks    map[string]api.ReadinessCheck

	closers []func() error
}

// NewApp connects the configured backends and builds the service graph.
// A partial failure closes whatever was already opened.
func NewApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: log,
		Checks: map[string]api.ReadinessCheck{},
	}
	if err := app.wire(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}

	log.Info("application wired", map[string]interface{}{
		"providers":      app.Roster.Keys(),
		"cacheBackend":   cfg.Cache.Backend,
		"historyBackend": cfg.History.Backend,
	})
	return app, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.Config

	r, err := providers.BuildRoster(cfg.Providers, a.Logger)
	if err != nil {
		return err
	}
	a.Roster = r

	backend, err := a.cacheBackend(ctx)
	if err != nil {
		return err
	}
	a.Cache = resultcache.New(backend, resultcache.Config{
		Prefix: cfg.Cache.Prefix,
		TTL:    cfg.Cache.TTL(),
	}, a.Logger)

	store, err := a.historyStore(ctx)
	if err != nil {
		return err
	}
	a.History = historyledger.New(store, cfg.History.MaxPerUser, a.Logger)

	pipeline := peerreview.NewPipeline(peerreview.LoadConfig(cfg), a.Roster, a.observer())
	a.Reviews = peerreview.NewService(pipeline, a.Cache, a.History, cfg.Cache.TTL(), a.Logger)
	a.Followups = followup.NewEngine(followup.LoadConfig(cfg), a.Roster, a.Logger)
	return nil
}

func (a *App) cacheBackend(ctx context.Context) (resultcache.Backend, error) {
	if a.Config.Cache.Backend != "redis" {
		return resultcache.NewMemoryBackend(), nil
	}

	client, err := database.NewRedis(a.Config.Database.Redis)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	if err := client.Ping(ctx); err != nil {
		return nil, err
	}
	a.Checks["redis"] = client.Ping
	return resultcache.NewRedisBackend(client.GetClient()), nil
}

func (a *App) historyStore(ctx context.Context) (historyledger.Store, error) {
	switch a.Config.History.Backend {
	case "file":
		return historyledger.NewFileStore(a.Config.History.FilePath), nil
	case "postgres":
		pg, err := database.NewPostgres(a.Config.Database.Postgres)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pg.Close)
		if err := pg.Ping(ctx); err != nil {
			return nil, fmt.Errorf("postgres ping failed: %w", err)
		}
		if err := pg.Migrate(ctx, historyledger.Schema...); err != nil {
			return nil, err
		}
		a.Checks["postgres"] = pg.Ping
		return historyledger.NewPostgresStore(pg.GetDB()), nil
	default:
		return historyledger.NewMemoryStore(), nil
	}
}

func (a *App) observer() peerreview.Observer {
	observers := peerreview.Observers{peerreview.NewLogObserver(a.Logger)}
	if a.Config.Observability.MetricsEnabled {
		observers = append(observers, metrics.StageObserver{})
	}
	if a.Config.Observability.TracingEnabled {
		obs := observability.New(a.Config.Observability.ServiceName)
		a.closers = append(a.closers, func() error {
			obs.Shutdown()
			return nil
		})
		observers = append(observers, obs)
	}
	return observers
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
