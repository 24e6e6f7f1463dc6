package nodes

import (
	"github.com/library-assistant/server/internal/agent/model"
	"github.com/library-assistant/server/internal/agent/persona"
)

// Graph node keys.
const (
	NodeInputConverter = "InputConverter"
	NodeBookModel      = "BookLibrarianModel"
	NodePaperModel     = "PaperLibrarianModel"
	NodeGeneralModel   = "GeneralAssistantModel"
	NodeBookTools      = "BookTools"
	NodePaperTools     = "PaperTools"
	NodeEnvelopeParser = "EnvelopeParser"
)

// ModelNodeFor maps a persona to the chat model node that speaks for it.
func ModelNodeFor(id persona.ID) string {
	switch id {
	case persona.BookLibrarian:
		return NodeBookModel
	case persona.PaperLibrarian:
		return NodePaperModel
	default:
		return NodeGeneralModel
	}
}

const DefaultMaxToolCalls = 5

// normalizeMaxToolCalls returns a sane default when the provided value is invalid.
func normalizeMaxToolCalls(n int) int {
	if n <= 0 {
		return DefaultMaxToolCalls
	}
	return n
}

// checkAndMarkToolLimit evaluates whether another tool call would exceed the
// limit and, if so, marks the state accordingly. Returns true when marked now.
func checkAndMarkToolLimit(state *model.AppState, max int) bool {
	max = normalizeMaxToolCalls(max)
	if !state.ToolCallLimitReached && state.ToolCallCount >= max {
		state.ToolCallLimitReached = true
		return true
	}
	return false
}

// incrementToolCallAndCheck increments the count and marks the state if it
// exceeds the limit after incrementing. Returns true when exceeded.
func incrementToolCallAndCheck(state *model.AppState, max int) bool {
	max = normalizeMaxToolCalls(max)
	state.ToolCallCount++
	if state.ToolCallCount > max {
		state.ToolCallLimitReached = true
		return true
	}
	return false
}
