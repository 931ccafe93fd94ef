package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/flota-api/internal/application/assignment"
	"github.com/jhoicas/flota-api/internal/domain/entity"
	infracatalog "github.com/jhoicas/flota-api/internal/infrastructure/catalog"
	"github.com/jhoicas/flota-api/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/flota-api/internal/interfaces/http"
	"github.com/jhoicas/flota-api/pkg/config"
	"github.com/jhoicas/flota-api/pkg/logger"

	_ "go.uber.org/automaxprocs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:        cfg.App.Env,
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	// Adaptadores de los dos almacenes remotos y del catálogo
	directoryRepo := postgres.NewUserDirectoryRepository(pool, log,
		time.Duration(cfg.Assignment.PollSeconds)*time.Second)
	exclusionStore := postgres.NewExclusionStoreRepository(pool)
	catalogClient := infracatalog.NewHTTPClient(cfg.Catalog.BaseURL,
		time.Duration(cfg.Catalog.TimeoutSeconds)*time.Second)

	// Registro de exclusiones: una lectura al arranque, con siembra por defecto
	registry := assignment.NewExclusionRegistry(exclusionStore)
	if err := registry.Load(ctx, cfg.Assignment.DefaultExcludedID); err != nil {
		log.Fatal().Err(err).Msg("cargar registro de exclusiones")
	}

	cache := assignment.NewCatalogCache(catalogClient)
	syncAdapter := assignment.NewSyncAdapter(directoryRepo, exclusionStore, log)
	engine := assignment.NewEngine(cache, registry, syncAdapter, log)

	// Carga inicial: catálogo completo + snapshot del directorio
	if err := engine.RefreshCatalog(ctx); err != nil {
		log.Fatal().Err(err).Msg("carga inicial del catálogo")
	}
	users, err := directoryRepo.List(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("carga inicial del directorio")
	}
	engine.Reconcile(ctx, users)
	log.Info().Int("warehouses", cache.Len()).Int("users", len(users)).
		Msg("proyección inicial construida")

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Flota API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{Engine: engine})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.Listen(cfg.HTTP.Addr())
	})

	// Suscripción viva al directorio: cada snapshot reconcilia la proyección
	g.Go(func() error {
		return directoryRepo.Subscribe(gctx, func(snapshot []*entity.User) {
			engine.Reconcile(gctx, snapshot)
		})
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("señal de apagado recibida, cerrando servidor...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("la aplicación terminó con error")
	}
	log.Info().Msg("aplicación detenida")
}
