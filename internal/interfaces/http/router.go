package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jhoicas/flota-api/internal/application/assignment"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Engine *assignment.Engine
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Use(MetricsMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	handler := NewAssignmentHandler(deps.Engine)

	// Tablero de asignación
	assignGroup := api.Group("/assignment")
	assignGroup.Get("/board", handler.Board)
	assignGroup.Post("/assign", handler.Assign)
	assignGroup.Post("/unassign", handler.Unassign)
	assignGroup.Post("/move", handler.Move)
	assignGroup.Post("/reset", handler.Reset)

	// Exclusión por camioneta
	api.Post("/warehouses/:id/exclusion", handler.ToggleExclusion)

	// Refresco manual del catálogo
	api.Post("/catalog/refresh", handler.RefreshCatalog)
}
