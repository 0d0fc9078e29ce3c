package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/campusgate/access-core/internal/api"
	"github.com/campusgate/access-core/internal/api/handler"
	"github.com/campusgate/access-core/internal/bootstrap"
	"github.com/campusgate/access-core/internal/core/domain"
	"github.com/campusgate/access-core/internal/core/ports"
	"github.com/campusgate/access-core/internal/core/service"
	"github.com/campusgate/access-core/internal/core/usecase"
	"github.com/campusgate/access-core/internal/dispatch"
	"github.com/campusgate/access-core/internal/infrastructure/cache"
	"github.com/campusgate/access-core/internal/infrastructure/config"
	"github.com/campusgate/access-core/internal/infrastructure/db/memory"
	mongostore "github.com/campusgate/access-core/internal/infrastructure/db/mongo"
	redisstore "github.com/campusgate/access-core/internal/infrastructure/db/redis"
	"github.com/campusgate/access-core/internal/infrastructure/jwt"
	"github.com/campusgate/access-core/internal/infrastructure/messaging/rabbitmq"
	"github.com/campusgate/access-core/internal/infrastructure/queue"
	"github.com/campusgate/access-core/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "access-core",
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}

// stores groups the persistence adapters selected by STORE_DRIVER.
type stores struct {
	rbac   ports.RBACRepository
	users  ports.UserRepository
	menu   ports.MenuSource
	health map[string]handler.HealthCheck
	close  func(context.Context) error
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := st.close(closeCtx); err != nil {
			log.Warn().Err(err).Msg("close stores")
		}
	}()

	// Optional Redis: decision cache and billing deduplication.
	var dedup queue.Deduper
	rbac := st.rbac
	if cfg.Redis.Addr != "" {
		rdb, err := redisstore.Connect(ctx, redisstore.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			return err
		}
		defer rdb.Close()
		st.health["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }

		dedup = redisstore.NewDeduper(rdb, cfg.Cache.DedupTTL)
		if cfg.Cache.AuthzTTL > 0 {
			rbac = redisstore.NewCachedRBAC(st.rbac, rdb, cfg.Cache.AuthzTTL, log)
			log.Info().Dur("ttl", cfg.Cache.AuthzTTL).Msg("decision cache enabled")
		}
	}

	menuSource := st.menu
	if cfg.Cache.MenuTTL > 0 {
		menuSource = cache.NewMenuSource(st.menu, cfg.Cache.MenuTTL)
	}

	secret := cfg.JWT.Secret
	if secret == "" {
		secret = "development-only-secret"
		log.Warn().Msg("JWT_SECRET not set, using an insecure development secret")
	}
	signer, err := jwt.NewSigner(jwt.Config{
		Secret:   secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		Leeway:   30 * time.Second,
	})
	if err != nil {
		return err
	}

	authz := service.NewAuthzService(rbac, log)
	credentials := service.NewCredentialService(rbac, signer, cfg.JWT.TokenTTL, log)
	menu := service.NewMenuService(menuSource, authz, log)
	auth := service.NewAuthService(st.users, rbac, domain.SystemRoleStudent, log)

	reg := dispatch.NewRegistry(dispatch.WithObserver(dispatch.NewMetricsObserver(log)))
	usecase.NewHandlers(rbac, authz, credentials, menu, log).Register(reg)
	d, err := reg.Build()
	if err != nil {
		return fmt.Errorf("build dispatcher: %w", err)
	}

	if cfg.SeedCatalog {
		if err := bootstrap.Seed(ctx, rbac, d, log); err != nil {
			return err
		}
	}
	if cfg.BootstrapAdmin != "" {
		if err := bootstrap.PromoteSuperAdmin(ctx, rbac, d, cfg.BootstrapAdmin); err != nil {
			return fmt.Errorf("promote bootstrap admin: %w", err)
		}
		log.Info().Str("user_id", cfg.BootstrapAdmin).Msg("bootstrap admin promoted")
	}

	g, gctx := errgroup.WithContext(ctx)

	commands := queue.NewDispatcher(cfg.Queue.Workers, d, dedup, log)
	commands.Start(gctx)

	if cfg.AMQP.URI != "" {
		consumer, err := rabbitmq.NewConsumer(cfg.AMQP.URI, rabbitmq.QueueEnqueuer(commands), log)
		if err != nil {
			return err
		}
		g.Go(func() error {
			defer consumer.Close()
			return consumer.Run(gctx)
		})
	} else {
		log.Info().Msg("AMQP_URI not set, billing consumer disabled")
	}

	e := api.NewRouter(api.Deps{
		Log:         log,
		Dispatcher:  d,
		Auth:        auth,
		Credentials: credentials,
		Authorizer:  authz,
		Health:      st.health,
	})

	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*stores, error) {
	if cfg.StoreDriver == config.DriverMemory {
		log.Warn().Msg("using in-memory store, data is lost on restart")
		return &stores{
			rbac:   memory.NewStore(),
			users:  memory.NewUserStore(),
			menu:   memory.NewMenuSource(bootstrap.DefaultMenu()),
			health: map[string]handler.HealthCheck{},
			close:  func(context.Context) error { return nil },
		}, nil
	}

	client, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return nil, err
	}
	rbac := mongostore.NewRBACRepository(db)
	users := mongostore.NewUserRepository(db)
	if err := mongostore.EnsureSchema(ctx, rbac, users); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	menu := mongostore.NewMenuSource(db)
	if err := seedMenu(ctx, menu); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return &stores{
		rbac:  rbac,
		users: users,
		menu:  menu,
		health: map[string]handler.HealthCheck{
			"mongodb": func(ctx context.Context) error { return client.Ping(ctx, nil) },
		},
		close: client.Disconnect,
	}, nil
}

// seedMenu installs the default navigation when the collection is empty.
func seedMenu(ctx context.Context, menu *mongostore.MenuSource) error {
	rows, err := menu.LoadMenu(ctx)
	if err != nil {
		return fmt.Errorf("load menu: %w", err)
	}
	if len(rows) > 0 {
		return nil
	}
	return menu.Upsert(ctx, bootstrap.DefaultMenu())
}
