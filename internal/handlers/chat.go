package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/kunskapsportal-search-api/internal/departments"
	"github.com/kunskapsportal-search-api/internal/models"
	"github.com/kunskapsportal-search-api/internal/sources"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ChatService answers chat requests
type ChatService interface {
	Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error)
}

// DepartmentSource loads the department tree for the chat catalog
type DepartmentSource interface {
	DepartmentTree(ctx context.Context) (*departments.Tree, error)
}

// ChatOptions configure the chat endpoints
type ChatOptions struct {
	// Enabled is the knowledge base feature flag
	Enabled            bool
	GroundingEnabled   bool
	HistoryLimit       int
	// MissingCredentials names configuration the chat cannot run without
	MissingCredentials []string
}

// ChatHandler handles chat endpoints
type ChatHandler struct {
	chat        ChatService
	departments DepartmentSource
	registry    *sources.Registry
	opts        ChatOptions
	logger      *zap.Logger
}

// NewChatHandler creates a new chat handler. chat may be nil when the model is not configured.
func NewChatHandler(chat ChatService, depts DepartmentSource, registry *sources.Registry, opts ChatOptions, logger *zap.Logger) *ChatHandler {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 20
	}
	if registry == nil {
		registry = sources.NewRegistry(nil, logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{chat: chat, departments: depts, registry: registry, opts: opts, logger: logger.Named("chat")}
}

// Chat handles POST /chat
func (h *ChatHandler) Chat(c echo.Context) error {
	var req models.ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Ogiltig förfrågan")
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Meddelande saknas")
	}

	if !h.opts.Enabled {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Kunskapsbanken är inte aktiverad")
	}
	if len(h.opts.MissingCredentials) > 0 || h.chat == nil {
		h.logger.Error("chat is not configured", zap.Strings("missing", h.opts.MissingCredentials))
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Chatten är inte konfigurerad. Kontakta administratören.")
	}

	req.ExternalSourceIDs = h.registry.ValidateIDs(req.ExternalSourceIDs)
	req.History = filterHistory(req.History, h.opts.HistoryLimit)
	if req.ArticleContext != nil && strings.TrimSpace(req.ArticleContext.Content) == "" && req.ArticleContext.Title == "" {
		req.ArticleContext = nil
	}

	resp, err := h.chat.Chat(c.Request().Context(), req)
	if err != nil {
		return chatError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Catalog handles GET /chat - what the user can select as sources
func (h *ChatHandler) Catalog(c echo.Context) error {
	resp := models.ChatCatalogResponse{
		Departments:            []models.DepartmentNode{},
		ExternalSources:        h.registry.Catalog(),
		GoogleGroundingEnabled: h.opts.GroundingEnabled,
	}
	if h.departments != nil {
		tree, err := h.departments.DepartmentTree(c.Request().Context())
		if err != nil {
			h.logger.Error("load department tree", zap.Error(err))
			return echo.NewHTTPError(http.StatusServiceUnavailable, "Förvaltningarna kunde inte hämtas")
		}
		resp.Departments = tree.Hierarchy()
	}
	if resp.ExternalSources == nil {
		resp.ExternalSources = []models.ExternalSourceCatalogEntry{}
	}
	return c.JSON(http.StatusOK, resp)
}

// filterHistory keeps well-formed user/assistant turns, at most limit of the most recent
func filterHistory(history []models.ChatMessage, limit int) []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(history))
	for _, m := range history {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		if m.Role != models.RoleUser && m.Role != models.RoleAssistant {
			continue
		}
		out = append(out, models.ChatMessage{Role: m.Role, Content: content})
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// RegisterRoutes registers chat routes
func (h *ChatHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/chat", h.Catalog)
	g.POST("/chat", h.Chat)
}
