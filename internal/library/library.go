package library

import (
	"slices"

	errx "github.com/library-assistant/server/internal/core/error"
)

// Library is a snapshot of every client-held collection.
type Library struct {
	Books          []Book          `json:"books" yaml:"books"`
	ResearchPapers []ResearchPaper `json:"researchPapers" yaml:"researchPapers"`
	Nodes          []FeatureNode   `json:"nodes" yaml:"nodes"`
	Edges          []Edge          `json:"edges" yaml:"edges"`
}

// Apply runs one action against lib and returns the next snapshot plus the
// setter result. lib is left untouched; on error the input is returned.
func (r *Registry) Apply(lib Library, a Action) (Library, any, error) {
	if err := r.ValidateAction(&a, "action"); err != nil {
		return lib, nil, err
	}

	next := lib
	var (
		result any
		err    error
	)
	switch a.StateKey {
	case StateBooks:
		next.Books, result, err = r.Books.Apply(lib.Books, a.SetterKey, a.Args)
	case StateResearchPapers:
		next.ResearchPapers, result, err = r.Papers.Apply(lib.ResearchPapers, a.SetterKey, a.Args)
	case StateNodes:
		next.Nodes, result, err = r.Nodes.Apply(lib.Nodes, a.SetterKey, a.Args)
		if err == nil && a.SetterKey == SetRemoveNode {
			id, _ := decodeID(a.Args[0], "")
			next.Edges = dropEdgesOf(lib.Edges, id)
		}
	case StateEdges:
		next.Edges, result, err = r.Edges.Apply(lib.Edges, a.SetterKey, a.Args)
	default:
		return lib, nil, errx.Violation("action.stateKey", "unknown collection %q", a.StateKey)
	}
	if err != nil {
		return lib, nil, err
	}
	return next, result, nil
}

func dropEdgesOf(edges []Edge, nodeID string) []Edge {
	touches := func(e Edge) bool { return e.Source == nodeID || e.Target == nodeID }
	if !slices.ContainsFunc(edges, touches) {
		return edges
	}
	return slices.DeleteFunc(slices.Clone(edges), touches)
}
