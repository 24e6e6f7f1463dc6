package library

import (
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errx "github.com/library-assistant/server/internal/core/error"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return "gen-" + strconv.Itoa(n)
	}
}

func newTestRegistry() *Registry {
	return NewRegistry(
		WithIDGenerator(sequentialIDs()),
		WithClock(func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }),
		WithPlacer(func() Position { return Position{X: 200, Y: 150} }),
	)
}

func seeded(t *testing.T) Library {
	t.Helper()
	lib, err := Seed()
	require.NoError(t, err)
	require.Len(t, lib.Books, 3)
	return lib
}

func action(stateKey StateKey, setterKey string, args ...string) Action {
	raw := make([]json.RawMessage, len(args))
	for i, a := range args {
		raw[i] = json.RawMessage(a)
	}
	return Action{Type: ActionType, StateKey: stateKey, SetterKey: setterKey, Args: raw}
}

func ids[T identified](items []T) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ItemID()
	}
	return out
}

func requireViolation(t *testing.T, err error, path string) {
	t.Helper()
	var v *errx.SchemaViolation
	require.True(t, errors.As(err, &v), "expected schema violation, got %v", err)
	assert.Equal(t, path, v.Path)
}

func TestAddBookAppendsWithFreshID(t *testing.T) {
	reg := newTestRegistry()
	lib := seeded(t)
	before := append([]Book(nil), lib.Books...)

	next, result, err := reg.Apply(lib, action(StateBooks, SetAddBook, `{"title":"X","imageUrl":"u","bookLink":"l","tldr":"t"}`))
	require.NoError(t, err)
	assert.Nil(t, result)

	require.Len(t, next.Books, len(before)+1)
	if diff := cmp.Diff(before, next.Books[:len(before)]); diff != "" {
		t.Errorf("existing books changed (-want +got):\n%s", diff)
	}
	added := next.Books[len(before)]
	assert.NotEmpty(t, added.ID)
	assert.NotContains(t, ids(before), added.ID)
	assert.Equal(t, "X", added.Title)
	assert.Equal(t, TypeBook, added.Type)
	assert.Nil(t, added.Rating, "missing rating stays absent")

	// input snapshot untouched
	assert.Equal(t, before, lib.Books)
}

func TestAddBookNeverOverwritesExistingID(t *testing.T) {
	reg := newTestRegistry()
	lib := seeded(t)

	next, _, err := reg.Apply(lib, action(StateBooks, SetAddBook, `{"id":"1","title":"Dup","imageUrl":"u","bookLink":"l","tldr":"t"}`))
	require.NoError(t, err)

	require.Len(t, next.Books, 4)
	assert.Equal(t, "The Pragmatic Programmer", next.Books[0].Title)
	assert.Equal(t, "gen-1", next.Books[3].ID)
}

func TestAddThenRemoveRoundTrip(t *testing.T) {
	reg := newTestRegistry()
	lib := seeded(t)

	added, _, err := reg.Apply(lib, action(StateBooks, SetAddBook, `{"title":"X","imageUrl":"u","bookLink":"l","tldr":"t"}`))
	require.NoError(t, err)
	newID := added.Books[len(added.Books)-1].ID

	removed, _, err := reg.Apply(added, action(StateBooks, SetRemoveBook, strconv.Quote(newID)))
	require.NoError(t, err)
	assert.ElementsMatch(t, ids(lib.Books), ids(removed.Books))
}

func TestUpdateBookChangesOnlyProvidedFields(t *testing.T) {
	reg := newTestRegistry()
	lib := seeded(t)
	original := lib.Books[1]

	next, _, err := reg.Apply(lib, action(StateBooks, SetUpdateBook, `{"id":"2","rating":5}`))
	require.NoError(t, err)

	want := original
	want.Rating = Ptr(5.0)
	if diff := cmp.Diff(want, next.Books[1]); diff != "" {
		t.Errorf("updated book mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, lib.Books[0], next.Books[0])
	assert.Equal(t, lib.Books[2], next.Books[2])
	assert.Equal(t, 4.4, *lib.Books[1].Rating, "input snapshot untouched")
}

func TestZeroRatingMeansUnrated(t *testing.T) {
	reg := newTestRegistry()
	lib := seeded(t)

	added, _, err := reg.Apply(lib, action(StateBooks, SetAddBook, `{"title":"X","imageUrl":"u","bookLink":"l","tldr":"t","rating":0}`))
	require.NoError(t, err)
	assert.Nil(t, added.Books[len(added.Books)-1].Rating)

	updated, _, err := reg.Apply(lib, action(StateBooks, SetUpdateBook, `{"id":"2","rating":0,"genre":"Craft"}`))
	require.NoError(t, err)
	assert.Equal(t, 4.4, *updated.Books[1].Rating, "zero rating leaves the existing one in place")
	require.NotNil(t, updated.Books[1].Genre)
	assert.Equal(t, "Craft", *updated.Books[1].Genre)
}

func TestLibraryContext(t *testing.T) {
	lib := seeded(t)

	raw, err := lib.Context()
	require.NoError(t, err)
	assert.Contains(t, raw, `{"id":"2","title":"Clean Code"`)
	assert.NotContains(t, raw, "tldr")
	assert.NotContains(t, raw, "imageUrl")

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	assert.Contains(t, decoded, "researchPapers")

	empty, err := Library{}.Context()
	require.NoError(t, err)
	assert.Equal(t, `{"books":[],"researchPapers":[],"nodes":[],"edges":[]}`, empty)
}

func TestRemoveAndUpdateMissingIDAreNoOps(t *testing.T) {
	reg := newTestRegistry()
	lib := seeded(t)

	for _, a := range []Action{
		action(StateBooks, SetRemoveBook, `"nonexistent-id"`),
		action(StateBooks, SetUpdateBook, `{"id":"nonexistent-id","title":"Nope"}`),
		action(StateResearchPapers, SetRemoveResearchPaper, `"nonexistent-id"`),
		action(StateNodes, SetChangeNode, `{"id":"nonexistent-id","data":{"status":"done"}}`),
	} {
		next, _, err := reg.Apply(lib, a)
		require.NoError(t, err, a.SetterKey)
		if diff := cmp.Diff(lib, next); diff != "" {
			t.Errorf("%s changed library (-want +got):\n%s", a.SetterKey, diff)
		}
	}
}

func TestAddWithAIInsertsPlaceholder(t *testing.T) {
	reg := newTestRegistry()
	lib := seeded(t)

	next, result, err := reg.Apply(lib, action(StateBooks, SetAddBookWithAI, `{"title":"Dune"}`))
	require.NoError(t, err)
	placeholder, ok := result.(Book)
	require.True(t, ok)
	assert.Equal(t, "Dune", placeholder.Title)
	assert.Equal(t, LoadingText, *placeholder.Author)
	assert.Nil(t, placeholder.Rating)
	assert.Equal(t, placeholder, next.Books[len(next.Books)-1])

	// enrichment arrives later keyed by the placeholder id
	enriched, _, err := reg.Apply(next, action(StateBooks, SetUpdateBook,
		`{"id":"`+placeholder.ID+`","author":"Frank Herbert","genre":"Science Fiction"}`))
	require.NoError(t, err)
	got := enriched.Books[len(enriched.Books)-1]
	assert.Equal(t, "Frank Herbert", *got.Author)
	assert.Equal(t, "Dune", got.Title)
	assert.Equal(t, placeholder.ID, got.ID)

	next, result, err = reg.Apply(lib, action(StateResearchPapers, SetAddResearchPaperWithAI, `{"title":"Attention Is All You Need"}`))
	require.NoError(t, err)
	paper := result.(ResearchPaper)
	assert.Equal(t, []string{LoadingText}, paper.Authors)
	assert.Equal(t, 2025, *paper.Year)
	assert.Equal(t, PlaceholderPaperLink, paper.PaperLink)
	require.Len(t, next.ResearchPapers, 1)
}

func TestAddResearchPaperDefaultsAuthors(t *testing.T) {
	reg := newTestRegistry()
	next, _, err := reg.Apply(Library{}, action(StateResearchPapers, SetAddResearchPaper,
		`{"title":"T","paperLink":"https://arxiv.org/abs/1","abstract":"A"}`))
	require.NoError(t, err)
	require.Len(t, next.ResearchPapers, 1)
	assert.Equal(t, []string{}, next.ResearchPapers[0].Authors)
	assert.Equal(t, TypePaper, next.ResearchPapers[0].Type)
}

func TestRoadmapSetters(t *testing.T) {
	reg := newTestRegistry()
	lib := Library{}

	lib, _, err := reg.Apply(lib, action(StateNodes, SetAddNode, `{"data":{"title":"Search","description":"Full text search"}}`))
	require.NoError(t, err)
	lib, _, err = reg.Apply(lib, action(StateNodes, SetAddNode, `{"id":"n2","position":{"x":1,"y":2},"data":{"title":"Tags","description":"Tagging","status":"in progress"}}`))
	require.NoError(t, err)
	require.Len(t, lib.Nodes, 2)

	first := lib.Nodes[0]
	assert.Equal(t, "gen-1", first.ID)
	assert.Equal(t, FeatureNodeKind, first.Kind)
	assert.Equal(t, &Position{X: 200, Y: 150}, first.Position)
	assert.Equal(t, StatusPlanned, first.Data.Status)
	assert.Equal(t, NodeTypeFeature, first.Data.NodeType)
	assert.Equal(t, []Comment{}, first.Data.Comments)
	assert.Equal(t, StatusInProgress, lib.Nodes[1].Data.Status)

	lib, _, err = reg.Apply(lib, action(StateEdges, SetAddEdge, `{"source":"gen-1","target":"n2"}`))
	require.NoError(t, err)
	require.Len(t, lib.Edges, 1)

	lib, _, err = reg.Apply(lib, action(StateNodes, SetChangeNode, `{"id":"n2","data":{"status":"done","upvotes":3}}`))
	require.NoError(t, err)
	assert.Equal(t, StatusDone, lib.Nodes[1].Data.Status)
	assert.Equal(t, 3, lib.Nodes[1].Data.Upvotes)
	assert.Equal(t, "Tags", lib.Nodes[1].Data.Title)

	lib, _, err = reg.Apply(lib, action(StateNodes, SetRemoveNode, `"n2"`))
	require.NoError(t, err)
	assert.Equal(t, []string{"gen-1"}, ids(lib.Nodes))
	assert.Empty(t, lib.Edges, "edges touching a removed node are dropped")
}

func TestApplyRejectsInvalidActions(t *testing.T) {
	reg := newTestRegistry()
	lib := seeded(t)

	tests := []struct {
		name   string
		action Action
		path   string
	}{
		{"unknown collection", action("movies", SetAddBook, `{}`), "action.stateKey"},
		{"unknown setter", action(StateBooks, "burnBook", `"1"`), "action.setterKey"},
		{"setter of another collection", action(StateBooks, SetAddResearchPaper, `{}`), "action.setterKey"},
		{"wrong arity", action(StateBooks, SetRemoveBook, `"1"`, `"2"`), "action.args"},
		{"missing title", action(StateBooks, SetAddBook, `{"imageUrl":"u","bookLink":"l","tldr":"t"}`), "action.args[0].title"},
		{"wrong field type", action(StateBooks, SetAddBook, `{"title":"X","imageUrl":"u","bookLink":"l","tldr":"t","rating":"high"}`), "action.args[0].rating"},
		{"id not a string", action(StateBooks, SetRemoveBook, `7`), "action.args[0]"},
		{"type mismatch", action(StateBooks, SetAddBook, `{"type":"paper","title":"X","imageUrl":"u","bookLink":"l","tldr":"t"}`), "action.args[0].type"},
		{"bad status", action(StateNodes, SetAddNode, `{"data":{"title":"a","description":"b","status":"someday"}}`), "action.args[0].data.status"},
		{"rating out of range", action(StateBooks, SetUpdateBook, `{"id":"1","rating":6}`), "action.args[0].rating"},
		{"update without id", action(StateBooks, SetUpdateBook, `{"rating":5}`), "action.args[0].id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, _, err := reg.Apply(lib, tt.action)
			requireViolation(t, err, tt.path)
			assert.Equal(t, lib, next)
		})
	}

	bad := action(StateBooks, SetRemoveBook, `"1"`)
	bad.Type = "mutation"
	_, _, err := reg.Apply(lib, bad)
	requireViolation(t, err, "action.type")
}

func TestRegistryCatalog(t *testing.T) {
	reg := newTestRegistry()

	var keys []StateKey
	for _, c := range reg.Collections() {
		keys = append(keys, c.Key())
	}
	assert.Equal(t, []StateKey{StateBooks, StateResearchPapers, StateNodes, StateEdges}, keys)

	books, ok := reg.Lookup(StateBooks)
	require.True(t, ok)
	var names []string
	for _, s := range books.Setters() {
		names = append(names, s.Name)
		if s.Name == SetRemoveBook {
			require.Len(t, s.Params, 1)
			assert.Equal(t, "string", s.Params[0].Type)
		}
	}
	assert.Equal(t, []string{SetAddBook, SetAddBookWithAI, SetRemoveBook, SetUpdateBook}, names)

	_, ok = reg.Lookup("movies")
	assert.False(t, ok)
}

func TestDuplicateSetterRegistrationPanics(t *testing.T) {
	s := newStore[Book](StateBooks, "")
	s.register(&Setter[Book]{SetterInfo: SetterInfo{Name: SetAddBook}})
	assert.Panics(t, func() {
		s.register(&Setter[Book]{SetterInfo: SetterInfo{Name: SetAddBook}})
	})
}

func TestParseLibraryFillsEmptyCollections(t *testing.T) {
	lib, err := ParseLibrary([]byte("books: []\n"))
	require.NoError(t, err)
	assert.NotNil(t, lib.ResearchPapers)
	assert.NotNil(t, lib.Nodes)
	assert.NotNil(t, lib.Edges)

	_, err = ParseLibrary([]byte("books: {"))
	assert.Error(t, err)
}
