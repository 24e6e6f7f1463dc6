package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/library-assistant/server/internal/agent/graph/tools"
	"github.com/library-assistant/server/internal/agent/persona"
	"github.com/library-assistant/server/internal/library"
)

var (
	//go:embed template/book_librarian.txt
	bookLibrarianPrompt string
	//go:embed template/paper_librarian.txt
	paperLibrarianPrompt string
	//go:embed template/general_assistant.txt
	generalAssistantPrompt string
	//go:embed template/output_contract.txt
	outputContractPrompt string
)

var personaPrompts = map[persona.ID]string{
	persona.BookLibrarian:    bookLibrarianPrompt,
	persona.PaperLibrarian:   paperLibrarianPrompt,
	persona.GeneralAssistant: generalAssistantPrompt,
}

// RenderPersonaSystem renders the persona instructions plus the JSON output
// contract for the collections it manages. A non-empty override replaces the
// persona instructions; the contract is always kept.
func RenderPersonaSystem(ctx context.Context, id persona.ID, reg *library.Registry, override string) (string, error) {
	p, ok := persona.Get(id)
	if !ok {
		return "", fmt.Errorf("unknown persona %q", id)
	}
	if reg == nil {
		return "", fmt.Errorf("setter registry is nil")
	}

	var collections []library.Collection
	for _, key := range p.Collections {
		if c, ok := reg.Lookup(key); ok {
			collections = append(collections, c)
		}
	}

	instructions := personaPrompts[id]
	if strings.TrimSpace(override) != "" {
		// user-supplied text is never parsed as a template
		instructions = strings.NewReplacer("{{", "{ {", "}}", "} }").Replace(override)
	}

	// Render via Eino prompt component (Go template) to both format and emit callbacks
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(instructions+"\n\n"+outputContractPrompt),
	)
	vars := map[string]any{
		"Name":        p.Name,
		"Role":        p.Role,
		"Collections": collections,
		"CoverTool":   tools.ToolFindBookCover,
		"InfoTool":    tools.ToolGetBookInfo,
		"FindTool":    tools.ToolFindArxivPaper,
		"GetTool":     tools.ToolGetArxivPaper,
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("persona prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("persona prompt render: empty result")
	}
	return msgs[0].Content, nil
}

// AppendClientContext adds the client's current library state to a rendered
// system prompt. The state is appended verbatim, never templated.
func AppendClientContext(system, state string) string {
	state = strings.TrimSpace(state)
	if state == "" {
		return system
	}
	return system + "\n\n## Current client state\n" +
		"Use these ids when updating or removing existing items. Never invent ids.\n" +
		state
}
