package library

import (
	"bytes"
	"encoding/json"
	"strconv"

	errx "github.com/library-assistant/server/internal/core/error"
)

type envelopeWire struct {
	Content *string          `json:"content"`
	Action  *json.RawMessage `json:"action"`
}

type actionWire struct {
	Type      *string            `json:"type"`
	StateKey  *string            `json:"stateKey"`
	SetterKey *string            `json:"setterKey"`
	Args      *[]json.RawMessage `json:"args"`
}

// DecodeEnvelope parses a persona reply and validates any action against the
// registry. Nothing that fails here is ever handed to Apply.
func (r *Registry) DecodeEnvelope(data []byte) (*Envelope, error) {
	var w envelopeWire
	if err := decodeObject(data, "", &w); err != nil {
		return nil, err
	}
	if w.Content == nil {
		return nil, errx.Violation("content", "required field missing")
	}
	env := &Envelope{Content: *w.Content}
	if w.Action == nil || bytes.Equal(bytes.TrimSpace(*w.Action), []byte("null")) {
		return env, nil
	}

	var aw actionWire
	if err := decodeObject(*w.Action, "action", &aw); err != nil {
		return nil, err
	}
	typ, err := required(aw.Type, "action.type")
	if err != nil {
		return nil, err
	}
	stateKey, err := required(aw.StateKey, "action.stateKey")
	if err != nil {
		return nil, err
	}
	setterKey, err := required(aw.SetterKey, "action.setterKey")
	if err != nil {
		return nil, err
	}
	if aw.Args == nil {
		return nil, errx.Violation("action.args", "required field missing")
	}
	a := &Action{Type: typ, StateKey: StateKey(stateKey), SetterKey: setterKey, Args: *aw.Args}
	for i, arg := range a.Args {
		if len(bytes.TrimSpace(arg)) == 0 {
			return nil, errx.Violation("action.args["+strconv.Itoa(i)+"]", "empty argument")
		}
	}
	if err := r.ValidateAction(a, "action"); err != nil {
		return nil, err
	}
	env.Action = a
	return env, nil
}
