package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/kunskapsportal-search-api/internal/models"
	"github.com/kunskapsportal-search-api/internal/services"
	"github.com/kunskapsportal-search-api/internal/sources"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Searcher is the search capability behind the search endpoints
type Searcher interface {
	HybridSearch(ctx context.Context, req models.HybridSearchRequest) (*models.HybridSearchResponse, error)
	SemanticSearch(ctx context.Context, q services.SemanticQuery) ([]models.SearchHit, error)
	DepartmentArticles(ctx context.Context, req services.DepartmentArticlesRequest) (*models.DepartmentArticlesResponse, error)
}

const (
	defaultLimit = 10
	maxLimit     = 100
)

// SearchHandler handles search endpoints
type SearchHandler struct {
	search   Searcher
	registry *sources.Registry
	logger   *zap.Logger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(search Searcher, registry *sources.Registry, logger *zap.Logger) *SearchHandler {
	if registry == nil {
		registry = sources.NewRegistry(nil, logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchHandler{search: search, registry: registry, logger: logger.Named("search")}
}

// Search handles GET /search - hybrid article search plus optional external sources
func (h *SearchHandler) Search(c echo.Context) error {
	ctx := c.Request().Context()

	query := strings.TrimSpace(c.QueryParam("q"))
	if utf8.RuneCountInString(query) < services.MinQueryLength {
		return echo.NewHTTPError(http.StatusBadRequest, "Sökfrågan måste innehålla minst två tecken")
	}

	limit, err := intParam(c, "limit", defaultLimit, maxLimit)
	if err != nil {
		return err
	}
	if limit == 0 {
		limit = defaultLimit
	}
	offset, err := intParam(c, "offset", 0, 0)
	if err != nil {
		return err
	}
	departmentIDs, err := parseIDs(c.QueryParam("departmentIds"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Ogiltigt värde för departmentIds")
	}
	externalIDs := h.registry.ValidateIDs(parseList(c.QueryParam("externalSourceIds")))
	mode := models.ParseSearchMode(c.QueryParam("mode"))

	if h.search == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Sökningen är inte konfigurerad")
	}

	resp := models.SearchResponse{Results: []models.HybridResult{}, Mode: mode}
	result, err := h.search.HybridSearch(ctx, models.HybridSearchRequest{
		Query:         query,
		Mode:          mode,
		DepartmentIDs: departmentIDs,
		Limit:         limit,
		Offset:        offset,
	})
	switch {
	case errors.Is(err, services.ErrQueryTooShort):
		return echo.NewHTTPError(http.StatusBadRequest, "Sökfrågan måste innehålla minst två tecken")
	case errors.Is(err, services.ErrNotConfigured):
		h.logger.Error("search is not configured", zap.String("mode", string(mode)), zap.Error(err))
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Semantisk sökning är inte konfigurerad. Kontakta administratören.")
	case err != nil:
		h.logger.Error("search failed, returning empty result", zap.String("query", query), zap.Error(err))
	default:
		resp.Results = result.Results
		resp.Total = result.Total
		resp.Timings = result.Timings
	}

	if len(externalIDs) > 0 {
		hits, err := h.search.SemanticSearch(ctx, services.SemanticQuery{
			Query:             query,
			ExternalSourceIDs: externalIDs,
			LimitPerSource:    limit,
		})
		if err != nil {
			h.logger.Warn("external search failed", zap.Strings("sources", externalIDs), zap.Error(err))
		}
		resp.ExternalResults = hits
	}

	return c.JSON(http.StatusOK, resp)
}

// DepartmentArticles handles GET /departments/articles - one department subtree, searched or paged
func (h *SearchHandler) DepartmentArticles(c echo.Context) error {
	ctx := c.Request().Context()

	var departmentID int64
	if raw := c.QueryParam("departmentId"); raw != "" {
		ids, err := parseIDs(raw)
		if err != nil || len(ids) != 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "Ogiltigt värde för departmentId")
		}
		departmentID = ids[0]
	}
	page, err := intParam(c, "page", 1, 0)
	if err != nil {
		return err
	}
	limit, err := intParam(c, "limit", defaultLimit, maxLimit)
	if err != nil {
		return err
	}
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = defaultLimit
	}

	search := strings.TrimSpace(c.QueryParam("search"))
	if search != "" && utf8.RuneCountInString(search) < services.MinQueryLength {
		return echo.NewHTTPError(http.StatusBadRequest, "Sökfrågan måste innehålla minst två tecken")
	}
	var mode models.SearchMode
	if search != "" {
		mode = models.ParseSearchMode(c.QueryParam("mode"))
	}

	if h.search == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Sökningen är inte konfigurerad")
	}

	resp, err := h.search.DepartmentArticles(ctx, services.DepartmentArticlesRequest{
		DepartmentID: departmentID,
		Search:       search,
		Mode:         mode,
		Sort:         c.QueryParam("sort"),
		Page:         page,
		Limit:        limit,
	})
	if err != nil {
		h.logger.Error("department articles failed, returning empty page",
			zap.Int64("department_id", departmentID), zap.Error(err))
		return c.JSON(http.StatusOK, models.DepartmentArticlesResponse{
			Docs:  []models.HybridResult{},
			Page:  page,
			Limit: limit,
			Mode:  mode,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

// RegisterRoutes registers search routes
func (h *SearchHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/search", h.Search)
	g.GET("/departments/articles", h.DepartmentArticles)
}
