package library

import (
	"encoding/json"
	"math/rand/v2"
	"slices"
)

// Placeholder sentinels for records inserted before enrichment completes.
const (
	LoadingText          = "Loading..."
	PlaceholderImageURL  = "https://via.placeholder.com/300x400/374151/FFFFFF?text=Loading..."
	PlaceholderBookLink  = "https://www.goodreads.com/book/show/placeholder"
	PlaceholderBookTLDR  = "AI is gathering information about this book..."
	PlaceholderPaperLink = "https://arxiv.org/abs/placeholder"
	PlaceholderAbstract  = "AI is gathering information about this paper..."
)

func param[T any](name, typ, description string, fn func(json.RawMessage, string) (T, error)) Param {
	return Param{
		Name:        name,
		Type:        typ,
		Description: description,
		decode: func(raw json.RawMessage, path string) (any, error) {
			return fn(raw, path)
		},
	}
}

func randomPosition() Position {
	return Position{X: 100 + rand.Float64()*400, Y: 100 + rand.Float64()*300}
}

// add appends item, keeping its id when it is free and assigning a new one otherwise.
func add[T identified](r *Registry, current []T, item T, setID func(*T, string)) ([]T, T) {
	setID(&item, uniqueID(r, current, item.ItemID()))
	next := make([]T, 0, len(current)+1)
	next = append(next, current...)
	return append(next, item), item
}

func remove[T identified](current []T, id string) []T {
	if !slices.ContainsFunc(current, func(item T) bool { return item.ItemID() == id }) {
		return current
	}
	next := make([]T, 0, len(current))
	for _, item := range current {
		if item.ItemID() != id {
			next = append(next, item)
		}
	}
	return next
}

func update[T identified](current []T, id string, merge func(T) T) []T {
	i := slices.IndexFunc(current, func(item T) bool { return item.ItemID() == id })
	if i < 0 {
		return current
	}
	next := slices.Clone(current)
	next[i] = merge(next[i])
	return next
}

func (r *Registry) bookStore() *Store[Book] {
	s := newStore[Book](StateBooks, "The user's personal book library, in insertion order.")
	setBookID := func(b *Book, id string) { b.ID = id; b.Type = TypeBook }
	bookArg := param("book", "Book", "title, imageUrl, bookLink and tldr are required; author, genre, rating optional", decodeBook)

	s.register(&Setter[Book]{
		SetterInfo: SetterInfo{Name: SetAddBook, Description: "Append a fully described book.", Params: []Param{bookArg}},
		apply: func(cur []Book, args []any) ([]Book, any) {
			next, _ := add(r, cur, args[0].(Book), setBookID)
			return next, nil
		},
	})
	s.register(&Setter[Book]{
		SetterInfo: SetterInfo{
			Name:        SetAddBookWithAI,
			Description: "Insert a placeholder book from a title only; enrichment follows as updateBook on the returned id.",
			Params:      []Param{param("bookInfo", "{title}", "only title is read", decodeTitle)},
		},
		apply: func(cur []Book, args []any) ([]Book, any) {
			return add(r, cur, r.placeholderBook(args[0].(string)), setBookID)
		},
	})
	s.register(&Setter[Book]{
		SetterInfo: SetterInfo{Name: SetRemoveBook, Description: "Remove the book with this id; missing ids are ignored.", Params: []Param{param("id", "string", "book id", decodeID)}},
		apply: func(cur []Book, args []any) ([]Book, any) {
			return remove(cur, args[0].(string)), nil
		},
	})
	s.register(&Setter[Book]{
		SetterInfo: SetterInfo{Name: SetUpdateBook, Description: "Merge the provided fields onto the book with this id.", Params: []Param{param("book", "Partial<Book>", "id required; other fields optional", decodeBookPatch)}},
		apply: func(cur []Book, args []any) ([]Book, any) {
			p := args[0].(BookPatch)
			return update(cur, p.ID, p.Merge), nil
		},
	})
	return s
}

func (r *Registry) placeholderBook(title string) Book {
	return Book{
		Type:     TypeBook,
		Title:    title,
		ImageURL: PlaceholderImageURL,
		BookLink: PlaceholderBookLink,
		TLDR:     PlaceholderBookTLDR,
		Author:   Ptr(LoadingText),
		Genre:    Ptr(LoadingText),
	}
}

func (r *Registry) paperStore() *Store[ResearchPaper] {
	s := newStore[ResearchPaper](StateResearchPapers, "The user's research paper library, in insertion order.")
	setPaperID := func(p *ResearchPaper, id string) { p.ID = id; p.Type = TypePaper }
	paperArg := param("paper", "ResearchPaper", "title, paperLink and abstract are required; authors, journal, year, doi optional", decodePaper)

	s.register(&Setter[ResearchPaper]{
		SetterInfo: SetterInfo{Name: SetAddResearchPaper, Description: "Append a fully described research paper.", Params: []Param{paperArg}},
		apply: func(cur []ResearchPaper, args []any) ([]ResearchPaper, any) {
			next, _ := add(r, cur, args[0].(ResearchPaper), setPaperID)
			return next, nil
		},
	})
	s.register(&Setter[ResearchPaper]{
		SetterInfo: SetterInfo{
			Name:        SetAddResearchPaperWithAI,
			Description: "Insert a placeholder paper from a title only; enrichment follows as updateResearchPaper on the returned id.",
			Params:      []Param{param("paperInfo", "{title}", "only title is read", decodeTitle)},
		},
		apply: func(cur []ResearchPaper, args []any) ([]ResearchPaper, any) {
			return add(r, cur, r.placeholderPaper(args[0].(string)), setPaperID)
		},
	})
	s.register(&Setter[ResearchPaper]{
		SetterInfo: SetterInfo{Name: SetRemoveResearchPaper, Description: "Remove the paper with this id; missing ids are ignored.", Params: []Param{param("id", "string", "paper id", decodeID)}},
		apply: func(cur []ResearchPaper, args []any) ([]ResearchPaper, any) {
			return remove(cur, args[0].(string)), nil
		},
	})
	s.register(&Setter[ResearchPaper]{
		SetterInfo: SetterInfo{Name: SetUpdateResearchPaper, Description: "Merge the provided fields onto the paper with this id.", Params: []Param{param("paper", "Partial<ResearchPaper>", "id required; other fields optional", decodePaperPatch)}},
		apply: func(cur []ResearchPaper, args []any) ([]ResearchPaper, any) {
			p := args[0].(PaperPatch)
			return update(cur, p.ID, p.Merge), nil
		},
	})
	return s
}

func (r *Registry) placeholderPaper(title string) ResearchPaper {
	return ResearchPaper{
		Type:      TypePaper,
		Title:     title,
		Authors:   []string{LoadingText},
		PaperLink: PlaceholderPaperLink,
		Abstract:  PlaceholderAbstract,
		Journal:   Ptr(LoadingText),
		Year:      Ptr(r.now().Year()),
		DOI:       Ptr(LoadingText),
	}
}

func (r *Registry) nodeStore() *Store[FeatureNode] {
	s := newStore[FeatureNode](StateNodes, "Product roadmap feature nodes.")
	setNodeID := func(n *FeatureNode, id string) { n.ID = id }

	s.register(&Setter[FeatureNode]{
		SetterInfo: SetterInfo{Name: SetAddNode, Description: "Add a roadmap feature; status defaults to planned.", Params: []Param{param("node", "FeatureNode", "data.title and data.description required", decodeNode)}},
		apply: func(cur []FeatureNode, args []any) ([]FeatureNode, any) {
			n := args[0].(FeatureNode)
			n.Kind = FeatureNodeKind
			if n.Position == nil {
				pos := r.place()
				n.Position = &pos
			}
			next, _ := add(r, cur, n, setNodeID)
			return next, nil
		},
	})
	s.register(&Setter[FeatureNode]{
		SetterInfo: SetterInfo{Name: SetRemoveNode, Description: "Remove the node with this id and every edge touching it.", Params: []Param{param("id", "string", "node id", decodeID)}},
		apply: func(cur []FeatureNode, args []any) ([]FeatureNode, any) {
			return remove(cur, args[0].(string)), nil
		},
	})
	s.register(&Setter[FeatureNode]{
		SetterInfo: SetterInfo{Name: SetChangeNode, Description: "Merge position and data fields onto the node with this id.", Params: []Param{param("node", "Partial<FeatureNode>", "id required", decodeNodePatch)}},
		apply: func(cur []FeatureNode, args []any) ([]FeatureNode, any) {
			p := args[0].(NodePatch)
			return update(cur, p.ID, p.Merge), nil
		},
	})
	return s
}

func (r *Registry) edgeStore() *Store[Edge] {
	s := newStore[Edge](StateEdges, "Dependencies between roadmap nodes.")
	setEdgeID := func(e *Edge, id string) { e.ID = id }

	s.register(&Setter[Edge]{
		SetterInfo: SetterInfo{Name: SetAddEdge, Description: "Connect two roadmap nodes.", Params: []Param{param("edge", "Edge", "source and target node ids required", decodeEdge)}},
		apply: func(cur []Edge, args []any) ([]Edge, any) {
			next, _ := add(r, cur, args[0].(Edge), setEdgeID)
			return next, nil
		},
	})
	s.register(&Setter[Edge]{
		SetterInfo: SetterInfo{Name: SetRemoveEdge, Description: "Remove the edge with this id.", Params: []Param{param("id", "string", "edge id", decodeID)}},
		apply: func(cur []Edge, args []any) ([]Edge, any) {
			return remove(cur, args[0].(string)), nil
		},
	})
	return s
}
