// Package bootstrap wires configuration, storage, the ledger client and application
// services into a runnable App. Both the long-running server and the serverless
// handler build through here.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	accountsvc "ventry-backend/internal/application/accounts"
	companysvc "ventry-backend/internal/application/companies"
	holdsvc "ventry-backend/internal/application/holdings"
	jobsvc "ventry-backend/internal/application/jobs"
	settlesvc "ventry-backend/internal/application/settlement"
	"ventry-backend/internal/config"
	"ventry-backend/internal/infrastructure/database"
	"ventry-backend/internal/interfaces/router"
	"ventry-backend/internal/ledger"
	"ventry-backend/internal/pricecache"
	"ventry-backend/internal/scheduler"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// PriceJobID identifies the periodic price refresh in the scheduler.
const PriceJobID = "price_updater"

const devDatabaseURL = "sqlite:ventry.db"

// App is a fully wired service.
type App struct {
	Config    *config.Config
	Fiber     *fiber.App
	DB        *gorm.DB
	Rdb       *redis.Client
	Ledger    ledger.Client
	Services  router.Services
	Scheduler *scheduler.Runner
}

// Build opens every dependency and registers the price refresh job. The scheduler is
// not started.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	client, faucet, err := openLedger(cfg)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		rdb = redis.NewClient(opt)
	} else {
		log.Warn().Msg("REDIS_URL not set: price cache and request stats disabled")
	}

	dsn := cfg.DatabaseURL
	if dsn == "" {
		if cfg.Env == "production" {
			return nil, errors.New("DATABASE_URL is required in production")
		}
		dsn = devDatabaseURL
	}
	db, err := database.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		if sqlDB, derr := db.DB(); derr == nil {
			_ = sqlDB.Close()
		}
		return nil, fmt.Errorf("migrate: %w", err)
	}

	cache := &pricecache.Cache{Rdb: rdb, Ledger: client, TTL: cfg.PriceCacheTTL}
	services := router.Services{
		Accounts:  &accountsvc.Service{DB: db, Faucet: faucet, FundAmount: cfg.FaucetFundAmount},
		Companies: &companysvc.Service{DB: db, Ledger: client, Prices: cache},
		Jobs:      &jobsvc.Service{DB: db},
		Holdings:  &holdsvc.Service{DB: db, Prices: cache},
		Settlement: &settlesvc.Service{
			DB:     db,
			Ledger: client,
			Cache:  cache,
			Upfront: settlesvc.UpfrontPolicy{
				Fixed:  cfg.UpfrontPolicy == config.UpfrontFixed,
				Amount: cfg.FixedUpfront,
			},
		},
	}

	out := &App{Config: cfg, DB: db, Rdb: rdb, Ledger: client, Services: services}
	runner := scheduler.New(ctx)
	refresh := services.Settlement
	timeout := cfg.PriceRefreshTimeout
	if err := runner.Register(PriceJobID, cfg.PriceRefreshSpec, func(ctx context.Context) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		if report := refresh.RefreshAllPrices(ctx); report.Err != nil {
			log.Error().Err(report.Err).Dur("took", report.FinishedAt.Sub(report.StartedAt)).
				Msg("scheduled price refresh incomplete")
		}
	}); err != nil {
		_ = out.Close()
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	out.Scheduler = runner
	out.Fiber = router.CreateApp(cfg, router.Deps{DB: db, Rdb: rdb, Ledger: client, Services: services})
	return out, nil
}

// openLedger selects the ledger backend. Without a treasury mnemonic the algod client
// runs with no faucet and new accounts are left unfunded.
func openLedger(cfg *config.Config) (ledger.Client, ledger.Faucet, error) {
	switch cfg.LedgerMode {
	case config.LedgerMemory:
		if cfg.Env == "production" {
			return nil, nil, errors.New("memory ledger is not allowed in production")
		}
		log.Warn().Msg("using in-memory ledger")
		mem := ledger.NewMemory()
		return mem, mem, nil
	case config.LedgerAlgod, "":
		var treasury *ledger.Wallet
		if cfg.FaucetMnemonic != "" {
			w, err := ledger.WalletFromMnemonic(cfg.FaucetMnemonic)
			if err != nil {
				return nil, nil, fmt.Errorf("faucet mnemonic: %w", err)
			}
			treasury = &w
		} else {
			log.Warn().Msg("FAUCET_MNEMONIC not set: account funding disabled")
		}
		client, err := ledger.NewAlgod(ledger.AlgodConfig{
			Address:       cfg.AlgodAddress,
			Token:         cfg.AlgodToken,
			ConfirmRounds: cfg.ConfirmRounds,
			AssetURL:      cfg.AssetURL,
		}, treasury)
		if err != nil {
			return nil, nil, fmt.Errorf("algod: %w", err)
		}
		if treasury == nil {
			return client, nil, nil
		}
		return client, client, nil
	default:
		return nil, nil, fmt.Errorf("unknown LEDGER_MODE %q", cfg.LedgerMode)
	}
}

// Close releases the database and redis connections.
func (a *App) Close() error {
	var errs []error
	if a.Rdb != nil {
		errs = append(errs, a.Rdb.Close())
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}

// New creates the Fiber app for Vercel serverless (api handler imports this package, not internal).
// Scheduled jobs do not run there; POST /api/v1/prices/refresh drives refreshes instead.
func New() (*fiber.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	app, err := Build(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	return app.Fiber, nil
}
