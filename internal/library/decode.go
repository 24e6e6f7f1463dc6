package library

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	errx "github.com/library-assistant/server/internal/core/error"
)

// Wire shapes use pointers so that required-but-missing fields can be told
// apart from zero values. Unknown keys are ignored.

type bookWire struct {
	ID       *string  `json:"id"`
	Type     *string  `json:"type"`
	Title    *string  `json:"title"`
	ImageURL *string  `json:"imageUrl"`
	BookLink *string  `json:"bookLink"`
	TLDR     *string  `json:"tldr"`
	Author   *string  `json:"author"`
	Genre    *string  `json:"genre"`
	Rating   *float64 `json:"rating"`
}

type paperWire struct {
	ID        *string   `json:"id"`
	Type      *string   `json:"type"`
	Title     *string   `json:"title"`
	Authors   *[]string `json:"authors"`
	PaperLink *string   `json:"paperLink"`
	Abstract  *string   `json:"abstract"`
	Journal   *string   `json:"journal"`
	Year      *int      `json:"year"`
	DOI       *string   `json:"doi"`
}

type positionWire struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

type commentWire struct {
	ID     *string `json:"id"`
	Author *string `json:"author"`
	Text   *string `json:"text"`
}

type featureDataWire struct {
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	Status      *string        `json:"status"`
	NodeType    *string        `json:"nodeType"`
	Upvotes     *int           `json:"upvotes"`
	Comments    *[]commentWire `json:"comments"`
}

type nodeWire struct {
	ID       *string          `json:"id"`
	Position *positionWire    `json:"position"`
	Data     *featureDataWire `json:"data"`
}

type edgeWire struct {
	ID     *string `json:"id"`
	Source *string `json:"source"`
	Target *string `json:"target"`
}

type titleWire struct {
	Title *string `json:"title"`
}

func jsonKind(raw []byte) string {
	if len(raw) == 0 {
		return "nothing"
	}
	switch raw[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 'n':
		return "null"
	case 't', 'f':
		return "boolean"
	}
	return "number"
}

// decodeObject unmarshals raw into v, translating failures into violations
// that carry the field path.
func decodeObject(raw json.RawMessage, path string, v any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return errx.Violation(path, "expected object, got %s", jsonKind(trimmed))
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return violationFromJSON(path, err)
	}
	return nil
}

func violationFromJSON(path string, err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := path
		if typeErr.Field != "" {
			field = joinPath(path, typeErr.Field)
		}
		return errx.Violation(field, "expected %s, got %s", typeErr.Type, typeErr.Value)
	}
	return errx.Violation(path, "malformed json: %v", err)
}

func joinPath(base, field string) string {
	if base == "" {
		return field
	}
	return base + "." + field
}

func required(v *string, path string) (string, error) {
	if v == nil {
		return "", errx.Violation(path, "required field missing")
	}
	return *v, nil
}

func requiredNonEmpty(v *string, path string) (string, error) {
	s, err := required(v, path)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(s) == "" {
		return "", errx.Violation(path, "must not be empty")
	}
	return s, nil
}

func checkType(t *string, want ItemType, path string) error {
	if t != nil && ItemType(*t) != want {
		return errx.Violation(joinPath(path, "type"), "expected %q, got %q", want, *t)
	}
	return nil
}

// normalizeRating treats 0 as "not rated" and rejects anything else
// outside 1..5.
func normalizeRating(r *float64, path string) (*float64, error) {
	if r == nil || *r == 0 {
		return nil, nil
	}
	if *r < 1 || *r > 5 {
		return nil, errx.Violation(path, "rating must be between 1 and 5, got %v", *r)
	}
	return r, nil
}

func optionalID(id *string) string {
	if id == nil {
		return ""
	}
	return strings.TrimSpace(*id)
}

func decodeBook(raw json.RawMessage, path string) (Book, error) {
	var w bookWire
	if err := decodeObject(raw, path, &w); err != nil {
		return Book{}, err
	}
	if err := checkType(w.Type, TypeBook, path); err != nil {
		return Book{}, err
	}
	rating, err := normalizeRating(w.Rating, joinPath(path, "rating"))
	if err != nil {
		return Book{}, err
	}
	b := Book{ID: optionalID(w.ID), Type: TypeBook, Author: w.Author, Genre: w.Genre, Rating: rating}
	if b.Title, err = requiredNonEmpty(w.Title, joinPath(path, "title")); err != nil {
		return Book{}, err
	}
	if b.ImageURL, err = required(w.ImageURL, joinPath(path, "imageUrl")); err != nil {
		return Book{}, err
	}
	if b.BookLink, err = required(w.BookLink, joinPath(path, "bookLink")); err != nil {
		return Book{}, err
	}
	if b.TLDR, err = required(w.TLDR, joinPath(path, "tldr")); err != nil {
		return Book{}, err
	}
	return b, nil
}

func decodeBookPatch(raw json.RawMessage, path string) (BookPatch, error) {
	var w bookWire
	if err := decodeObject(raw, path, &w); err != nil {
		return BookPatch{}, err
	}
	if err := checkType(w.Type, TypeBook, path); err != nil {
		return BookPatch{}, err
	}
	id, err := requiredNonEmpty(w.ID, joinPath(path, "id"))
	if err != nil {
		return BookPatch{}, err
	}
	rating, err := normalizeRating(w.Rating, joinPath(path, "rating"))
	if err != nil {
		return BookPatch{}, err
	}
	return BookPatch{
		ID:       id,
		Title:    w.Title,
		ImageURL: w.ImageURL,
		BookLink: w.BookLink,
		TLDR:     w.TLDR,
		Author:   w.Author,
		Genre:    w.Genre,
		Rating:   rating,
	}, nil
}

func decodePaper(raw json.RawMessage, path string) (ResearchPaper, error) {
	var w paperWire
	if err := decodeObject(raw, path, &w); err != nil {
		return ResearchPaper{}, err
	}
	if err := checkType(w.Type, TypePaper, path); err != nil {
		return ResearchPaper{}, err
	}
	p := ResearchPaper{
		ID:      optionalID(w.ID),
		Type:    TypePaper,
		Authors: []string{},
		Journal: w.Journal,
		Year:    w.Year,
		DOI:     w.DOI,
	}
	if w.Authors != nil {
		p.Authors = append(p.Authors, (*w.Authors)...)
	}
	var err error
	if p.Title, err = requiredNonEmpty(w.Title, joinPath(path, "title")); err != nil {
		return ResearchPaper{}, err
	}
	if p.PaperLink, err = required(w.PaperLink, joinPath(path, "paperLink")); err != nil {
		return ResearchPaper{}, err
	}
	if p.Abstract, err = required(w.Abstract, joinPath(path, "abstract")); err != nil {
		return ResearchPaper{}, err
	}
	return p, nil
}

func decodePaperPatch(raw json.RawMessage, path string) (PaperPatch, error) {
	var w paperWire
	if err := decodeObject(raw, path, &w); err != nil {
		return PaperPatch{}, err
	}
	if err := checkType(w.Type, TypePaper, path); err != nil {
		return PaperPatch{}, err
	}
	id, err := requiredNonEmpty(w.ID, joinPath(path, "id"))
	if err != nil {
		return PaperPatch{}, err
	}
	pp := PaperPatch{
		ID:        id,
		Title:     w.Title,
		PaperLink: w.PaperLink,
		Abstract:  w.Abstract,
		Journal:   w.Journal,
		Year:      w.Year,
		DOI:       w.DOI,
	}
	if w.Authors != nil {
		pp.Authors = append([]string{}, (*w.Authors)...)
	}
	return pp, nil
}

func decodeTitle(raw json.RawMessage, path string) (string, error) {
	var w titleWire
	if err := decodeObject(raw, path, &w); err != nil {
		return "", err
	}
	title, err := requiredNonEmpty(w.Title, joinPath(path, "title"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(title), nil
}

func decodeID(raw json.RawMessage, path string) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return "", errx.Violation(path, "expected string, got %s", jsonKind(trimmed))
	}
	var id string
	if err := json.Unmarshal(trimmed, &id); err != nil {
		return "", violationFromJSON(path, err)
	}
	return id, nil
}

func decodePosition(w *positionWire, path string) (*Position, error) {
	if w == nil {
		return nil, nil
	}
	if w.X == nil {
		return nil, errx.Violation(joinPath(path, "x"), "required field missing")
	}
	if w.Y == nil {
		return nil, errx.Violation(joinPath(path, "y"), "required field missing")
	}
	return &Position{X: *w.X, Y: *w.Y}, nil
}

func decodeComments(ws []commentWire, path string) ([]Comment, error) {
	out := make([]Comment, 0, len(ws))
	for i, w := range ws {
		p := path + "[" + strconv.Itoa(i) + "]"
		var c Comment
		var err error
		if c.ID, err = required(w.ID, joinPath(p, "id")); err != nil {
			return nil, err
		}
		if c.Author, err = required(w.Author, joinPath(p, "author")); err != nil {
			return nil, err
		}
		if c.Text, err = required(w.Text, joinPath(p, "text")); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func decodeNodeType(v *string, path string) (string, error) {
	if v == nil {
		return NodeTypeFeature, nil
	}
	if *v != NodeTypeFeature {
		return "", errx.Violation(path, "expected %q, got %q", NodeTypeFeature, *v)
	}
	return *v, nil
}

// decodeNode decodes an addNode argument, applying the documented defaults:
// status planned, nodeType feature, upvotes 0, comments empty.
func decodeNode(raw json.RawMessage, path string) (FeatureNode, error) {
	var w nodeWire
	if err := decodeObject(raw, path, &w); err != nil {
		return FeatureNode{}, err
	}
	dataPath := joinPath(path, "data")
	if w.Data == nil {
		return FeatureNode{}, errx.Violation(dataPath, "required field missing")
	}
	pos, err := decodePosition(w.Position, joinPath(path, "position"))
	if err != nil {
		return FeatureNode{}, err
	}
	n := FeatureNode{ID: optionalID(w.ID), Position: pos}
	d := w.Data
	if n.Data.Title, err = required(d.Title, joinPath(dataPath, "title")); err != nil {
		return FeatureNode{}, err
	}
	if n.Data.Description, err = required(d.Description, joinPath(dataPath, "description")); err != nil {
		return FeatureNode{}, err
	}
	n.Data.Status = StatusPlanned
	if d.Status != nil {
		if n.Data.Status, err = parseStatus(*d.Status); err != nil {
			return FeatureNode{}, errx.Violation(joinPath(dataPath, "status"), "%v", err)
		}
	}
	if n.Data.NodeType, err = decodeNodeType(d.NodeType, joinPath(dataPath, "nodeType")); err != nil {
		return FeatureNode{}, err
	}
	if d.Upvotes != nil {
		n.Data.Upvotes = *d.Upvotes
	}
	n.Data.Comments = []Comment{}
	if d.Comments != nil {
		if n.Data.Comments, err = decodeComments(*d.Comments, joinPath(dataPath, "comments")); err != nil {
			return FeatureNode{}, err
		}
	}
	return n, nil
}

func decodeNodePatch(raw json.RawMessage, path string) (NodePatch, error) {
	var w nodeWire
	if err := decodeObject(raw, path, &w); err != nil {
		return NodePatch{}, err
	}
	id, err := requiredNonEmpty(w.ID, joinPath(path, "id"))
	if err != nil {
		return NodePatch{}, err
	}
	p := NodePatch{ID: id}
	if p.Position, err = decodePosition(w.Position, joinPath(path, "position")); err != nil {
		return NodePatch{}, err
	}
	d := w.Data
	if d == nil {
		return p, nil
	}
	dataPath := joinPath(path, "data")
	p.Data.Title = d.Title
	p.Data.Description = d.Description
	p.Data.Upvotes = d.Upvotes
	if d.Status != nil {
		st, err := parseStatus(*d.Status)
		if err != nil {
			return NodePatch{}, errx.Violation(joinPath(dataPath, "status"), "%v", err)
		}
		p.Data.Status = &st
	}
	if d.NodeType != nil {
		nt, err := decodeNodeType(d.NodeType, joinPath(dataPath, "nodeType"))
		if err != nil {
			return NodePatch{}, err
		}
		p.Data.NodeType = &nt
	}
	if d.Comments != nil {
		if p.Data.Comments, err = decodeComments(*d.Comments, joinPath(dataPath, "comments")); err != nil {
			return NodePatch{}, err
		}
	}
	return p, nil
}

func decodeEdge(raw json.RawMessage, path string) (Edge, error) {
	var w edgeWire
	if err := decodeObject(raw, path, &w); err != nil {
		return Edge{}, err
	}
	e := Edge{ID: optionalID(w.ID)}
	var err error
	if e.Source, err = requiredNonEmpty(w.Source, joinPath(path, "source")); err != nil {
		return Edge{}, err
	}
	if e.Target, err = requiredNonEmpty(w.Target, joinPath(path, "target")); err != nil {
		return Edge{}, err
	}
	return e, nil
}
