package library

import (
	"encoding/json"
)

type bookRef struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Author *string  `json:"author,omitempty"`
	Rating *float64 `json:"rating,omitempty"`
}

type paperRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type nodeRef struct {
	ID     string     `json:"id"`
	Title  string     `json:"title"`
	Status NodeStatus `json:"status"`
}

type libraryRef struct {
	Books          []bookRef  `json:"books"`
	ResearchPapers []paperRef `json:"researchPapers"`
	Nodes          []nodeRef  `json:"nodes"`
	Edges          []Edge     `json:"edges"`
}

// Context renders the compact client state a persona needs to address
// existing items: ids and identifying fields, no long text.
func (l Library) Context() (string, error) {
	ref := libraryRef{
		Books:          make([]bookRef, 0, len(l.Books)),
		ResearchPapers: make([]paperRef, 0, len(l.ResearchPapers)),
		Nodes:          make([]nodeRef, 0, len(l.Nodes)),
		Edges:          append([]Edge{}, l.Edges...),
	}
	for _, b := range l.Books {
		ref.Books = append(ref.Books, bookRef{ID: b.ID, Title: b.Title, Author: b.Author, Rating: b.Rating})
	}
	for _, p := range l.ResearchPapers {
		ref.ResearchPapers = append(ref.ResearchPapers, paperRef{ID: p.ID, Title: p.Title})
	}
	for _, n := range l.Nodes {
		ref.Nodes = append(ref.Nodes, nodeRef{ID: n.ID, Title: n.Data.Title, Status: n.Data.Status})
	}
	b, err := json.Marshal(ref)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
