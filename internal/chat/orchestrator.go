package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kunskapsportal-search-api/internal/metrics"
	"github.com/kunskapsportal-search-api/internal/models"
	"github.com/kunskapsportal-search-api/internal/services"
)

// KnowledgeSearcher is the search capability exposed to the model as a tool
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string, departmentIDs []int64, externalSourceIDs []string) (*services.KnowledgeResult, error)
	SourcesFromHits(hits []models.SearchHit) []models.SourceMetadata
}

// State is a step of one orchestration
type State string

const (
	StateInit      State = "INIT"
	StateSearch    State = "SEARCH_PHASE"
	StateGrounding State = "GROUNDING_PHASE"
	StateDone      State = "DONE"
	StateFailed    State = "FAILED"
)

// Config tunes the orchestrator
type Config struct {
	MaxTurns         int
	GroundingEnabled bool
	LLMTimeout       time.Duration
	SearchTimeout    time.Duration
}

// Orchestrator answers chat requests
type Orchestrator struct {
	model  Model
	tool   KnowledgeSearcher
	cfg    Config
	logger *zap.Logger
}

// NewOrchestrator creates an orchestrator. MaxTurns defaults to 2.
func NewOrchestrator(model Model, tool KnowledgeSearcher, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{model: model, tool: tool, cfg: cfg, logger: logger.Named("chat")}
}

// GroundingEnabled reports whether web grounding is globally enabled
func (o *Orchestrator) GroundingEnabled() bool {
	return o.cfg.GroundingEnabled
}

// run is the mutable state of one request
type run struct {
	req       models.ChatRequest
	requestID string
	log       *zap.Logger
	state     State
	searches  int
	surfaced  urlSet
	sources   []models.SourceMetadata
	seen      map[string]struct{}
	searchErr error
}

func (r *run) transition(to State) {
	r.log.Debug("chat state", zap.String("from", string(r.state)), zap.String("to", string(to)))
	r.state = to
}

func (r *run) addSources(srcs []models.SourceMetadata) {
	for _, s := range srcs {
		if s.URL == "" {
			continue
		}
		r.surfaced.add(s.URL)
		if _, dup := r.seen[s.URL]; dup {
			continue
		}
		r.seen[s.URL] = struct{}{}
		r.sources = append(r.sources, s)
	}
}

// Chat runs one request through INIT, SEARCH_PHASE and GROUNDING_PHASE.
// Any failure, including a panic, is returned as a single *Error.
func (o *Orchestrator) Chat(ctx context.Context, req models.ChatRequest) (resp *models.ChatResponse, err error) {
	r := &run{
		req:       req,
		requestID: uuid.NewString(),
		state:     StateInit,
		surfaced:  urlSet{},
		seen:      map[string]struct{}{},
	}
	r.log = o.logger.With(zap.String("request_id", r.requestID))

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
		if err != nil {
			resp = nil
			err = o.fail(r, err)
		}
	}()

	r.log.Debug("chat state", zap.String("to", string(StateInit)))

	hasKnowledgeBase := len(req.DepartmentIDs) > 0 || len(req.ExternalSourceIDs) > 0 || req.ArticleContext != nil
	grounding := req.UseGoogleGrounding && o.cfg.GroundingEnabled

	if !hasKnowledgeBase && !grounding {
		r.log.Info("chat has no sources, returning fallback")
		metrics.ChatRequests.WithLabelValues("fallback").Inc()
		r.transition(StateDone)
		return o.response(r, NoSourcesMessage), nil
	}

	if ac := req.ArticleContext; ac != nil && ac.URL != "" {
		r.addSources([]models.SourceMetadata{{
			Type:       models.SourceTypeInternal,
			Title:      ac.Title,
			URL:        ac.URL,
			Source:     models.SourceInternal,
			Department: ac.Department,
		}})
	}

	var answer string
	if hasKnowledgeBase {
		r.transition(StateSearch)
		answer, err = o.searchPhase(ctx, r)
		metrics.ChatSearchTurns.Observe(float64(r.searches))
		if err != nil {
			return nil, err
		}
		answer = SanitizeCitations(answer, r.surfaced)
	}

	if grounding {
		r.transition(StateGrounding)
		answer, err = o.groundingPhase(ctx, r, answer)
		if err != nil {
			return nil, err
		}
	}

	outcome := "answered"
	if strings.TrimSpace(answer) == "" {
		answer = EmptyAnswerMessage
		outcome = "empty"
	}
	metrics.ChatRequests.WithLabelValues(outcome).Inc()
	r.transition(StateDone)
	r.log.Info("chat answered",
		zap.Int("searches", r.searches),
		zap.Int("sources", len(r.sources)),
		zap.Int("answer_len", len([]rune(answer))))
	return o.response(r, answer), nil
}

func (o *Orchestrator) response(r *run, answer string) *models.ChatResponse {
	sources := r.sources
	if sources == nil {
		sources = []models.SourceMetadata{}
	}
	return &models.ChatResponse{
		Response:          answer,
		Sources:           sources,
		DepartmentIDs:     nonNilInts(r.req.DepartmentIDs),
		ExternalSourceIDs: nonNilStrings(r.req.ExternalSourceIDs),
	}
}

// fail logs the diagnostic context once and wraps err in *Error
func (o *Orchestrator) fail(r *run, err error) error {
	r.transition(StateFailed)
	kind := Classify(err)
	metrics.ChatRequests.WithLabelValues("failed").Inc()
	r.log.Error("chat failed",
		zap.Error(err),
		zap.String("kind", string(kind)),
		zap.Int("message_len", len([]rune(r.req.Message))),
		zap.Int("history_len", len(r.req.History)),
		zap.Int("department_filters", len(r.req.DepartmentIDs)),
		zap.Int("external_filters", len(r.req.ExternalSourceIDs)),
		zap.Bool("article_scoped", r.req.ArticleContext != nil),
		zap.Int("searches", r.searches))
	return &Error{Kind: kind, RequestID: r.requestID, Err: err}
}

// searchPhase alternates model calls and knowledge searches until the model answers
// in text or MaxTurns searches have run, then forces one tool-less answer.
func (o *Orchestrator) searchPhase(ctx context.Context, r *run) (string, error) {
	system := generalInstruction(o.cfg.MaxTurns)
	if r.req.ArticleContext != nil {
		system = articleInstruction(r.req.ArticleContext, o.cfg.MaxTurns)
	}
	tr := NewTranscript(r.req.History)
	tr.Append(Entry{Kind: EntryUser, Content: r.req.Message})

	var answer string
	nudged := false
	for r.searches < o.cfg.MaxTurns {
		gen, err := o.generate(ctx, GenerateRequest{
			System:     system,
			Transcript: tr.Entries(),
			Tool:       &knowledgeTool,
			ToolMode:   ToolModeAuto,
		})
		if err != nil {
			return "", err
		}

		if gen.ToolCall != nil {
			r.searches++
			o.executeTool(ctx, r, tr, gen.ToolCall)
			continue
		}
		if text := strings.TrimSpace(gen.Text); text != "" {
			answer = text
			break
		}
		if r.searches == 0 && !nudged {
			nudged = true
			r.log.Warn("empty first model response, nudging once")
			tr.Append(Entry{Kind: EntryUser, Content: nudgePrompt})
			continue
		}
		break
	}

	if answer == "" && r.searches > 0 {
		r.log.Debug("search turns exhausted, forcing an answer", zap.Int("searches", r.searches))
		tr.Append(Entry{Kind: EntryUser, Content: forceAnswerPrompt})
		gen, err := o.generate(ctx, GenerateRequest{
			System:     system,
			Transcript: tr.Entries(),
			Tool:       &knowledgeTool,
			ToolMode:   ToolModeNone,
		})
		if err != nil {
			return "", err
		}
		answer = strings.TrimSpace(gen.Text)
	}

	if answer == "" && r.searchErr != nil {
		return "", r.searchErr
	}
	return answer, nil
}

// executeTool runs one tool call and appends its outcome to the transcript.
// Search failures become in-context markers instead of aborting the request.
func (o *Orchestrator) executeTool(ctx context.Context, r *run, tr *Transcript, call *ToolCall) {
	tr.Append(Entry{Kind: EntryToolCall, ToolName: call.Name, Query: call.Query})

	if call.Name != ToolName {
		r.log.Warn("model called unknown tool", zap.String("tool", call.Name))
		metrics.ToolCalls.WithLabelValues("rejected").Inc()
		tr.Append(Entry{Kind: EntryToolError, ToolName: call.Name, Content: unknownToolContent(call.Name)})
		return
	}
	if call.Query == "" {
		metrics.ToolCalls.WithLabelValues("rejected").Inc()
		tr.Append(Entry{Kind: EntryToolError, ToolName: call.Name, Content: missingQueryContent()})
		return
	}

	searchCtx, cancel := withTimeout(ctx, o.cfg.SearchTimeout)
	defer cancel()

	start := time.Now()
	result, err := o.tool.Search(searchCtx, call.Query, r.req.DepartmentIDs, r.req.ExternalSourceIDs)
	log := r.log.With(zap.String("query", call.Query), zap.Int("turn", r.searches), zap.Duration("took", time.Since(start)))

	switch {
	case err != nil:
		log.Warn("knowledge search failed", zap.Error(err))
		metrics.ToolCalls.WithLabelValues("error").Inc()
		r.searchErr = err
		tr.Append(Entry{Kind: EntryToolError, ToolName: call.Name, Query: call.Query, Content: failedSearchContent(call.Query)})
	case result.Empty():
		log.Debug("knowledge search returned nothing")
		metrics.ToolCalls.WithLabelValues("empty").Inc()
		tr.Append(Entry{Kind: EntryToolError, ToolName: call.Name, Query: call.Query, Content: emptySearchContent(call.Query)})
	default:
		log.Debug("knowledge search",
			zap.Int("internal", result.InternalCount),
			zap.Int("external", result.ExternalCount))
		metrics.ToolCalls.WithLabelValues("ok").Inc()
		r.addSources(o.tool.SourcesFromHits(result.Hits))
		for _, h := range result.Hits {
			r.surfaced.add(h.URL)
		}
		tr.Append(Entry{
			Kind:     EntryToolResult,
			ToolName: call.Name,
			Query:    call.Query,
			Content:  toolResultContent(call.Query, result.Formatted, result.InternalCount, result.ExternalCount),
		})
	}
}

// groundingPhase runs the separate web-search call. An existing answer is kept
// when grounding fails or returns nothing.
func (o *Orchestrator) groundingPhase(ctx context.Context, r *run, answer string) (string, error) {
	tr := NewTranscript(r.req.History)
	tr.Append(Entry{Kind: EntryUser, Content: groundingPrompt(r.req.Message, answer)})

	gen, err := o.generate(ctx, GenerateRequest{
		System:     groundingInstruction,
		Transcript: tr.Entries(),
		WebSearch:  true,
	})
	if err != nil {
		metrics.GroundingCalls.WithLabelValues("error").Inc()
		if answer == "" {
			return "", err
		}
		r.log.Warn("grounding failed, keeping knowledge base answer", zap.Error(err))
		return answer, nil
	}

	text := strings.TrimSpace(gen.Text)
	if text == "" {
		metrics.GroundingCalls.WithLabelValues("unchanged").Inc()
		return answer, nil
	}

	grounded := make([]models.SourceMetadata, 0, len(gen.Grounding))
	for _, g := range gen.Grounding {
		grounded = append(grounded, models.SourceMetadata{Type: models.SourceTypeGoogle, Title: g.Title, URL: g.URL})
	}
	r.addSources(grounded)

	if text == answer {
		metrics.GroundingCalls.WithLabelValues("unchanged").Inc()
	} else {
		metrics.GroundingCalls.WithLabelValues("enhanced").Inc()
	}
	r.log.Debug("grounding", zap.Int("web_sources", len(grounded)))
	return SanitizeCitations(text, r.surfaced), nil
}

func (o *Orchestrator) generate(ctx context.Context, req GenerateRequest) (*Generation, error) {
	ctx, cancel := withTimeout(ctx, o.cfg.LLMTimeout)
	defer cancel()
	gen, err := o.model.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if gen == nil {
		return nil, errors.New("model returned no generation")
	}
	return gen, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func nonNilInts(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

func nonNilStrings(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
