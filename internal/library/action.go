package library

import "encoding/json"

// StateKey names a client-held collection.
type StateKey string

const (
	StateBooks          StateKey = "books"
	StateResearchPapers StateKey = "researchPapers"
	StateNodes          StateKey = "nodes"
	StateEdges          StateKey = "edges"
)

// ActionType is the only accepted value of Action.Type.
const ActionType = "action"

// Setter keys registered by the default collections.
const (
	SetAddBook                = "addBook"
	SetAddBookWithAI          = "addBookWithAI"
	SetRemoveBook             = "removeBook"
	SetUpdateBook             = "updateBook"
	SetAddResearchPaper       = "addResearchPaper"
	SetAddResearchPaperWithAI = "addResearchPaperWithAI"
	SetRemoveResearchPaper    = "removeResearchPaper"
	SetUpdateResearchPaper    = "updateResearchPaper"
	SetAddNode                = "addNode"
	SetRemoveNode             = "removeNode"
	SetChangeNode             = "changeNode"
	SetAddEdge                = "addEdge"
	SetRemoveEdge             = "removeEdge"
)

// Action is a structured mutation against a named collection.
// Args stay raw on the wire; the registry decodes them per setter.
type Action struct {
	Type      string            `json:"type"`
	StateKey  StateKey          `json:"stateKey"`
	SetterKey string            `json:"setterKey"`
	Args      []json.RawMessage `json:"args"`
}

// Envelope is the reply contract of a persona: text plus an optional action.
type Envelope struct {
	Content string  `json:"content"`
	Action  *Action `json:"action,omitempty"`
}
