package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/serverlist/internal/command"
	"github.com/MrSnakeDoc/serverlist/internal/config"
	"github.com/MrSnakeDoc/serverlist/internal/httpserver"
	"github.com/MrSnakeDoc/serverlist/internal/httpserver/deps"
	"github.com/MrSnakeDoc/serverlist/internal/logger"
	"github.com/MrSnakeDoc/serverlist/internal/metrics"
	"github.com/MrSnakeDoc/serverlist/internal/perms"
	"github.com/MrSnakeDoc/serverlist/internal/redis"
	"github.com/MrSnakeDoc/serverlist/internal/registry"
	"github.com/MrSnakeDoc/serverlist/internal/scheduler"
	filestore "github.com/MrSnakeDoc/serverlist/internal/store/file"
	redisstore "github.com/MrSnakeDoc/serverlist/internal/store/redis"
	"github.com/MrSnakeDoc/serverlist/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	redisClient *goredis.Client
	ping        func(ctx context.Context) error
	promReg     *prometheus.Registry
	registry    *registry.Registry
	perms       *perms.Enforcer
	command     *command.Servers
}

// New wires the backend, permissions, registry and command. The persisted
// server list is loaded before New returns.
func New(ctx context.Context, cfg *config.Config, loggerClient logger.Logger) (*App, error) {
	a := &App{
		cfg:     cfg,
		logger:  loggerClient,
		promReg: prometheus.NewRegistry(),
	}
	a.promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	persister, err := a.openBackend(ctx)
	if err != nil {
		return nil, err
	}

	a.perms, err = perms.New(cfg.PolicyFile, loggerClient)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load permissions: %w", err)
	}

	a.registry = registry.New(registry.Options{
		Persister: persister,
		Logger:    loggerClient,
		Metrics:   metrics.New(a.promReg),
	})
	if err := a.registry.Load(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("load server list: %w", err)
	}

	a.command = command.NewServers(a.registry, a.perms, loggerClient, cfg.PageSize)
	return a, nil
}

func (a *App) openBackend(ctx context.Context) (registry.Persister, error) {
	switch a.cfg.Backend {
	case config.BackendRedis:
		a.logger.Infof("Connecting to Redis at %s", a.cfg.RedisAddr)
		client, err := redis.New(ctx, redis.ConnectOptions{
			Addr:           a.cfg.RedisAddr,
			User:           a.cfg.RedisUser,
			Password:       a.cfg.RedisPassword,
			DB:             a.cfg.RedisDB,
			DialTimeout:    a.cfg.RedisDT,
			ReadTimeout:    a.cfg.RedisRT,
			WriteTimeout:   a.cfg.RedisWT,
			PoolSize:       a.cfg.RedisPoolSize,
			ConnectTimeout: a.cfg.RedisConnectTimeout,
			RetryInterval:  a.cfg.RedisRetryInterval,
			MaxWait:        a.cfg.RedisMaxWait,
			PingTimeout:    a.cfg.RedisPingTimeout,
			WarnThreshold:  a.cfg.RedisWarnThreshold,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.redisClient = client
		a.ping = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		return redisstore.NewStore(client), nil

	default:
		store := filestore.NewStore(a.cfg.DataFile)
		a.logger.Info("using file backend", logger.String("path", store.Path()))
		a.ping = func(context.Context) error {
			_, err := os.Stat(filepath.Dir(store.Path()))
			return err
		}
		return store, nil
	}
}

// Registry exposes the loaded registry.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Exec runs one "servers" invocation as s, outside of the HTTP surface.
func (a *App) Exec(ctx context.Context, s command.Sender, args []string) bool {
	return a.command.Execute(ctx, s, args)
}

// Run serves HTTP and runs the status poller until ctx is done or one of
// them fails, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("🚀 Starting serverlist %s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("serverlist %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	var (
		poller      *scheduler.StatusPoller
		pollTrigger chan struct{}
	)
	if a.cfg.PollInterval > 0 {
		pollTrigger = make(chan struct{}, 1)
		poller = scheduler.NewStatusPoller(a.registry, a.logger, a.cfg.PollInterval, a.cfg.PollTimeout, pollTrigger)
	} else {
		a.logger.Info("status poller disabled")
	}

	server := httpserver.New(a.cfg, a.logger, deps.Deps{
		Logger:       a.logger,
		StartTime:    time.Now(),
		Version:      version.Version,
		Commit:       version.Commit,
		BuildDate:    version.BuildDate,
		GoVersion:    version.GoVersion,
		AllowedHosts: a.cfg.AllowedHosts,
		AllowedCIDRS: a.cfg.AllowedCIDRS,
		TrustProxy:   a.cfg.TrustProxy,
		RateBurst:    a.cfg.RateBurst,
		RatePerMin:   a.cfg.RatePerMin,
		Backend:      a.cfg.Backend,
		Ping:         a.ping,
		Registry:     a.registry,
		Command:      a.command,
		Perms:        a.perms,
		Gatherer:     a.promReg,
		PollTrigger:  pollTrigger,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(gctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	if poller != nil {
		g.Go(func() error {
			if err := poller.Start(gctx); err != nil {
				return fmt.Errorf("failed to start status poller: %w", err)
			}
			a.logger.Info("status poller started",
				logger.Duration("interval", a.cfg.PollInterval))
			<-gctx.Done()
			poller.Stop()
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("⏳ Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}
		return nil
	})

	err := g.Wait()
	a.Close()
	if err != nil {
		return err
	}
	a.logger.Info("✅ serverlist stopped cleanly")
	return nil
}

// Close releases the backend connection.
func (a *App) Close() {
	if a.redisClient == nil {
		return
	}
	if err := a.redisClient.Close(); err != nil {
		a.logger.Warnf("failed to close redis: %v", err)
	} else {
		a.logger.Info("✅ Redis closed cleanly")
	}
	a.redisClient = nil
}
