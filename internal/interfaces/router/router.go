package router

import (
	"net/http"

	accountsvc "ventry-backend/internal/application/accounts"
	companysvc "ventry-backend/internal/application/companies"
	holdsvc "ventry-backend/internal/application/holdings"
	jobsvc "ventry-backend/internal/application/jobs"
	settlesvc "ventry-backend/internal/application/settlement"
	"ventry-backend/internal/config"
	accounthandler "ventry-backend/internal/interfaces/handlers/accounts"
	companyhandler "ventry-backend/internal/interfaces/handlers/companies"
	devhandler "ventry-backend/internal/interfaces/handlers/developers"
	healthhandler "ventry-backend/internal/interfaces/handlers/health"
	jobhandler "ventry-backend/internal/interfaces/handlers/jobs"
	pricehandler "ventry-backend/internal/interfaces/handlers/prices"
	"ventry-backend/internal/ledger"
	"ventry-backend/internal/middleware"
	"ventry-backend/internal/pkg/constants"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type gormDBPinger struct {
	db *gorm.DB
}

func (g *gormDBPinger) Ping() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Services are the application services exposed over HTTP.
type Services struct {
	Accounts   *accountsvc.Service
	Companies  *companysvc.Service
	Jobs       *jobsvc.Service
	Holdings   *holdsvc.Service
	Settlement *settlesvc.Service
}

// Deps carries everything CreateApp wires into routes. Rdb may be nil.
type Deps struct {
	DB       *gorm.DB
	Rdb      *redis.Client
	Ledger   ledger.Client
	Services Services
}

func CreateApp(cfg *config.Config, deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler(deps.Rdb),
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix:  cfg.FrontendURLEndsWith,
		DevPassword:    cfg.DevPassword,
		AllowLocalhost: cfg.Env != "production",
	}))
	app.Use(middleware.HealthMarker(deps.Rdb))
	app.Use(middleware.Tracing())
	app.Use(middleware.Actor(deps.DB))
	app.Use(middleware.RouteLogger())

	hh := &healthhandler.Handlers{
		Rdb:            deps.Rdb,
		DB:             &gormDBPinger{db: deps.DB},
		Ledger:         deps.Ledger,
		HealthAdminKey: cfg.HealthAdminKey,
	}
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)

	svc := deps.Services
	api := app.Group("/api/v1")

	// Accounts: creation is public (registration)
	ah := &accounthandler.Handlers{Service: svc.Accounts}
	api.Post("/accounts", ah.Create)
	api.Get("/accounts/:id", ah.Get)

	// Companies
	ch := &companyhandler.Handlers{Companies: svc.Companies, Jobs: svc.Jobs, Settlement: svc.Settlement}
	cg := api.Group("/companies")
	cg.Get("/:id", ch.Get)
	cg.Get("/:id/price", ch.Price)
	cg.Get("/:id/jobs", ch.ListJobs)
	owner := middleware.RequireRole(constants.Company)
	cg.Post("/:id/setup", owner, ch.Setup)
	cg.Post("/:id/jobs", owner, ch.CreateJob)
	cg.Post("/:id/jobs/:jobId/verify", owner, ch.Verify)

	// Jobs
	jh := &jobhandler.Handlers{Service: svc.Jobs}
	jg := api.Group("/jobs")
	jg.Get("/", jh.ListOpen)
	jg.Get("/:id", jh.Get)
	developer := middleware.RequireRole(constants.Developer)
	jg.Post("/:id/pickup", developer, jh.Pickup)
	jg.Post("/:id/complete", developer, jh.Complete)

	// Developers: own portfolio only
	dh := &devhandler.Handlers{Holdings: svc.Holdings, Jobs: svc.Jobs}
	dg := api.Group("/developers", developer)
	dg.Get("/:id/holdings", dh.ViewHoldings)
	dg.Get("/:id/jobs", dh.CurrentJobs)

	// Prices
	ph := &pricehandler.Handlers{Service: svc.Settlement, AdminKey: cfg.HealthAdminKey}
	api.Post("/prices/refresh", ph.Refresh)

	return app
}

func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}
