package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"rocket-transfer/internal/admin"
	"rocket-transfer/internal/auth"
	"rocket-transfer/internal/config"
	"rocket-transfer/internal/engine"
	"rocket-transfer/internal/media"
	"rocket-transfer/internal/schema"
	"rocket-transfer/internal/store"
)

func main() {
	ctx := context.Background()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Config loaded (port: %d, db driver: %s)", cfg.Server.Port, cfg.Database.Driver)

	// 2. Connect to database
	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	// 3. Bootstrap system tables
	if err := db.Bootstrap(ctx); err != nil {
		log.Fatalf("Failed to bootstrap system tables: %v", err)
	}
	log.Println("System tables ready")

	// 4. Load schemas
	reg := schema.NewRegistry()
	if err := schema.LoadAll(ctx, db.DB, reg); err != nil {
		log.Printf("WARN: Failed to load schemas: %v", err)
	}

	// 5. Media resolver
	storage := media.NewLocalStorage(cfg.Media.LocalPath)
	resolver := media.NewFileResolver(db, storage, cfg.Media.PublicHost, cfg.Media.MaxFileSize)

	// 6. Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	// 7. Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// 8. Auth routes (before middleware, no auth required)
	authHandler := auth.NewHandler(db, cfg.JWTSecret)
	auth.RegisterRoutes(app, authHandler)

	// 9. Transfer routes (auth + admin required)
	exporter := engine.NewExporter(db, reg, cfg.Media.PublicHost)
	importer := engine.NewImporter(db, reg, resolver, &engine.RunGuard{})

	for _, sc := range cfg.Transfer.Strategies {
		importer.SetStrategy(sc.ContentType, &engine.SearchStrategy{
			SearchFields: sc.SearchFields,
			Match:        sc.Match,
			AutoCreate:   sc.AutoCreate,
			Defaults:     sc.Defaults,
		})
		log.Printf("Search strategy registered for %s", sc.ContentType)
	}

	defaults := engine.DefaultImportOptions()
	if cfg.Transfer.ExistingAction != "" {
		defaults.ExistingAction = cfg.Transfer.ExistingAction
	}

	authMW := auth.Middleware(cfg.JWTSecret)
	adminMW := auth.RequireAdmin()

	handler := engine.NewHandler(exporter, importer, defaults)
	engine.RegisterRoutes(app, handler, authMW, adminMW)

	// 10. Schema management routes (auth + admin required)
	adminHandler := admin.NewHandler(db, reg)
	admin.RegisterRoutes(app, adminHandler, authMW, adminMW)

	// 11. Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	log.Fatal(app.Listen(addr))
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}

	var appErr *engine.AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.Status).JSON(engine.ErrorResponse{Error: appErr})
	}

	log.Printf("ERROR: %v", err)
	return c.Status(code).JSON(engine.ErrorResponse{
		Error: &engine.AppError{
			Code:    "INTERNAL_ERROR",
			Message: "Internal server error",
		},
	})
}
