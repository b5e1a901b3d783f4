package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Pinger checks a backend's connectivity
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

// PingContext calls f
func (f PingFunc) PingContext(ctx context.Context) error {
	return f(ctx)
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	postgres      Pinger
	vector        Pinger
	vectorBackend string
}

// NewHealthHandler creates a new health handler. A nil pinger reports not_configured.
func NewHealthHandler(postgres, vector Pinger, vectorBackend string) *HealthHandler {
	return &HealthHandler{postgres: postgres, vector: vector, vectorBackend: vectorBackend}
}

// HealthResponse is the response for basic health check
type HealthResponse struct {
	Status string `json:"status"`
}

// BackendHealthResponse is the response for a backend health check
type BackendHealthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
	Error   string `json:"error,omitempty"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status: "healthy",
	})
}

// PostgresHealth handles GET /health/postgres
func (h *HealthHandler) PostgresHealth(c echo.Context) error {
	return check(c, h.postgres, "postgres")
}

// VectorHealth handles GET /health/vector
func (h *HealthHandler) VectorHealth(c echo.Context) error {
	return check(c, h.vector, h.vectorBackend)
}

func check(c echo.Context, p Pinger, backend string) error {
	if p == nil {
		return c.JSON(http.StatusServiceUnavailable, BackendHealthResponse{
			Status:  "not_configured",
			Backend: backend,
		})
	}
	if err := p.PingContext(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, BackendHealthResponse{
			Status:  "error",
			Backend: backend,
			Error:   err.Error(),
		})
	}
	return c.JSON(http.StatusOK, BackendHealthResponse{
		Status:  "connected",
		Backend: backend,
	})
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/health", h.Health)
	g.GET("/health/postgres", h.PostgresHealth)
	g.GET("/health/vector", h.VectorHealth)
}
