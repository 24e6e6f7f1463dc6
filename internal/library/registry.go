package library

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"

	errx "github.com/library-assistant/server/internal/core/error"
)

type identified interface {
	ItemID() string
}

// Param describes one positional setter argument.
type Param struct {
	Name        string
	Type        string
	Description string

	decode func(raw json.RawMessage, path string) (any, error)
}

// SetterInfo is the read-only description of a registered setter.
type SetterInfo struct {
	Name        string
	Description string
	Params      []Param
}

// Setter is a named, fixed-arity mutation over a collection of T.
type Setter[T identified] struct {
	SetterInfo

	apply func(current []T, args []any) ([]T, any)
}

// Collection is the type-erased view of a Store used for validation and prompts.
type Collection interface {
	Key() StateKey
	Description() string
	Setters() []SetterInfo
	HasSetter(name string) bool
	// Validate decodes raw args for setterKey without applying them.
	Validate(setterKey string, args []json.RawMessage, path string) error
}

// Store binds a typed collection to its setter table.
type Store[T identified] struct {
	key         StateKey
	description string
	setters     map[string]*Setter[T]
	order       []string
}

func newStore[T identified](key StateKey, description string) *Store[T] {
	return &Store[T]{key: key, description: description, setters: map[string]*Setter[T]{}}
}

// register adds a setter. Registering the same name twice is a programming error.
func (s *Store[T]) register(st *Setter[T]) {
	if _, dup := s.setters[st.Name]; dup {
		panic(fmt.Sprintf("library: setter %q already registered on %q", st.Name, s.key))
	}
	s.setters[st.Name] = st
	s.order = append(s.order, st.Name)
}

func (s *Store[T]) Key() StateKey       { return s.key }
func (s *Store[T]) Description() string { return s.description }

func (s *Store[T]) Setters() []SetterInfo {
	out := make([]SetterInfo, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.setters[name].SetterInfo)
	}
	return out
}

func (s *Store[T]) HasSetter(name string) bool {
	_, ok := s.setters[name]
	return ok
}

func (s *Store[T]) decodeArgs(setterKey string, raw []json.RawMessage, path string) (*Setter[T], []any, error) {
	st, ok := s.setters[setterKey]
	if !ok {
		return nil, nil, errx.Violation(joinPath(path, "setterKey"), "unknown setter %q for %q", setterKey, s.key)
	}
	argsPath := joinPath(path, "args")
	if len(raw) != len(st.Params) {
		return nil, nil, errx.Violation(argsPath, "%s expects %d argument(s), got %d", setterKey, len(st.Params), len(raw))
	}
	args := make([]any, len(raw))
	for i, p := range st.Params {
		v, err := p.decode(raw[i], argsPath+"["+strconv.Itoa(i)+"]")
		if err != nil {
			return nil, nil, err
		}
		args[i] = v
	}
	return st, args, nil
}

func (s *Store[T]) Validate(setterKey string, args []json.RawMessage, path string) error {
	_, _, err := s.decodeArgs(setterKey, args, path)
	return err
}

// Apply decodes args for setterKey and returns the next collection value
// together with the setter's result (the placeholder for the *WithAI setters,
// nil otherwise). current is never mutated.
func (s *Store[T]) Apply(current []T, setterKey string, args []json.RawMessage) ([]T, any, error) {
	st, decoded, err := s.decodeArgs(setterKey, args, "")
	if err != nil {
		return current, nil, err
	}
	next, result := st.apply(current, decoded)
	return next, result, nil
}

// Registry holds every collection's setters. It is read-only once built and
// safe for concurrent use.
type Registry struct {
	Books  *Store[Book]
	Papers *Store[ResearchPaper]
	Nodes  *Store[FeatureNode]
	Edges  *Store[Edge]

	byKey map[StateKey]Collection
	order []StateKey

	newID func() string
	now   func() time.Time
	place func() Position
}

// Option customises a Registry.
type Option func(*Registry)

// WithIDGenerator overrides the id source (uuid v4 by default).
func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) { r.newID = fn }
}

// WithClock overrides the time source used for placeholder years.
func WithClock(fn func() time.Time) Option {
	return func(r *Registry) { r.now = fn }
}

// WithPlacer overrides how positions are chosen for nodes added without one.
func WithPlacer(fn func() Position) Option {
	return func(r *Registry) { r.place = fn }
}

// NewRegistry builds the registry with the books, researchPapers, nodes and
// edges collections.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		byKey: map[StateKey]Collection{},
		newID: uuid.NewString,
		now:   time.Now,
		place: randomPosition,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.Books = r.bookStore()
	r.Papers = r.paperStore()
	r.Nodes = r.nodeStore()
	r.Edges = r.edgeStore()

	for _, c := range []Collection{r.Books, r.Papers, r.Nodes, r.Edges} {
		if err := r.add(c); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) add(c Collection) error {
	if _, dup := r.byKey[c.Key()]; dup {
		return fmt.Errorf("collection %q already registered", c.Key())
	}
	r.byKey[c.Key()] = c
	r.order = append(r.order, c.Key())
	return nil
}

// Lookup returns the collection registered under key.
func (r *Registry) Lookup(key StateKey) (Collection, bool) {
	c, ok := r.byKey[key]
	return c, ok
}

// Collections lists the registered collections in registration order.
func (r *Registry) Collections() []Collection {
	out := make([]Collection, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.byKey[k])
	}
	return out
}

// ValidateAction checks that a references a registered collection and
// setter and that its args match the setter's arity and shapes.
func (r *Registry) ValidateAction(a *Action, path string) error {
	if a.Type != ActionType {
		return errx.Violation(joinPath(path, "type"), "expected %q, got %q", ActionType, a.Type)
	}
	c, ok := r.byKey[a.StateKey]
	if !ok {
		return errx.Violation(joinPath(path, "stateKey"), "unknown collection %q", a.StateKey)
	}
	return c.Validate(a.SetterKey, a.Args, path)
}

// uniqueID returns want when it is non-empty and unused, otherwise a fresh id.
func uniqueID[T identified](r *Registry, current []T, want string) string {
	taken := func(id string) bool {
		return slices.ContainsFunc(current, func(item T) bool { return item.ItemID() == id })
	}
	if want != "" && !taken(want) {
		return want
	}
	for {
		id := r.newID()
		if id != "" && !taken(id) {
			return id
		}
	}
}
