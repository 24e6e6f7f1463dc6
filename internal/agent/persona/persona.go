package persona

import (
	"regexp"
	"strings"

	"github.com/library-assistant/server/internal/library"
)

// ID names one of the fixed personas.
type ID string

const (
	PaperLibrarian   ID = "paperLibrarian"
	BookLibrarian    ID = "bookLibrarian"
	GeneralAssistant ID = "generalAssistant"
)

// Persona describes what a persona manages.
type Persona struct {
	ID          ID
	Name        string
	Role        string
	Collections []library.StateKey
}

var catalog = map[ID]Persona{
	PaperLibrarian: {
		ID:          PaperLibrarian,
		Name:        "Research Paper Librarian",
		Role:        "manages the user's collection of academic research papers",
		Collections: []library.StateKey{library.StateResearchPapers},
	},
	BookLibrarian: {
		ID:          BookLibrarian,
		Name:        "Book Librarian",
		Role:        "manages the user's personal book library",
		Collections: []library.StateKey{library.StateBooks},
	},
	GeneralAssistant: {
		ID:          GeneralAssistant,
		Name:        "Product Roadmap Assistant",
		Role:        "answers general questions and manages the product roadmap",
		Collections: []library.StateKey{library.StateNodes, library.StateEdges},
	},
}

// Get returns the catalog entry for id.
func Get(id ID) (Persona, bool) {
	p, ok := catalog[id]
	return p, ok
}

// All lists the personas in routing priority order.
func All() []Persona {
	return []Persona{catalog[PaperLibrarian], catalog[BookLibrarian], catalog[GeneralAssistant]}
}

var (
	paperSignals = []string{"research paper", "arxiv", "doi", "journal", "abstract", "academic"}
	// new-style (2310.11453, optional version) and old-style (hep-th/9901001) ids
	arxivIDPattern = regexp.MustCompile(`\b\d{4}\.\d{4,5}(v\d+)?\b|\b[a-z][a-z\-]+(\.[a-z]{2})?/\d{7}\b`)
)

// Select routes an utterance to a persona with priority-ordered substring
// tests. Paper signals win over book signals.
func Select(utterance string) ID {
	s := strings.ToLower(utterance)

	if containsAny(s, paperSignals...) || arxivIDPattern.MatchString(s) {
		return PaperLibrarian
	}

	paperish := containsAny(s, "paper", "research", "arxiv")
	switch {
	case strings.Contains(s, "book") && !containsAny(s, "research paper", "arxiv"):
		return BookLibrarian
	case strings.Contains(s, "add") && !paperish:
		return BookLibrarian
	case strings.Contains(s, "library") && !paperish:
		return BookLibrarian
	case containsAny(s, "read", "author", "genre"):
		return BookLibrarian
	}
	return GeneralAssistant
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
