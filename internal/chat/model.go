// Package chat runs the knowledge-base chat loop: tool-calling search turns
// against the knowledge tool, an optional web grounding pass and citation
// enforcement on the final answer.
package chat

import "context"

// ToolName is the single function exposed to the model during the search phase
const ToolName = "searchKnowledge"

// ToolMode controls whether the model may call the declared tool
type ToolMode int

const (
	// ToolModeAuto lets the model choose between calling the tool and answering
	ToolModeAuto ToolMode = iota
	// ToolModeNone keeps the tool declared but forbids calling it
	ToolModeNone
)

// ToolDeclaration describes a function taking one string parameter
type ToolDeclaration struct {
	Name             string
	Description      string
	ParamName        string
	ParamDescription string
}

// GenerateRequest is one model call
type GenerateRequest struct {
	System     string
	Transcript []Entry
	Tool       *ToolDeclaration
	ToolMode   ToolMode
	// WebSearch enables the provider's web grounding tool. It is never combined with Tool.
	WebSearch bool
}

// ToolCall is a function call requested by the model
type ToolCall struct {
	Name  string
	Query string
}

// GroundingSource is one web page the provider grounded an answer on
type GroundingSource struct {
	Title string
	URL   string
}

// Generation is the outcome of one model call
type Generation struct {
	Text      string
	ToolCall  *ToolCall
	Grounding []GroundingSource
}

// Model is the LLM provider behind the orchestrator
type Model interface {
	Generate(ctx context.Context, req GenerateRequest) (*Generation, error)
}

var knowledgeTool = ToolDeclaration{
	Name: ToolName,
	Description: "Söker i kunskapsbanken bland de förvaltningar och externa källor som användaren har valt. " +
		"Returnerar numrerade träffar med titel, URL, källa, relevans och utdrag.",
	ParamName:        "query",
	ParamDescription: "Sökfrågan på naturligt språk, till exempel \"regler för distansarbete\"",
}
