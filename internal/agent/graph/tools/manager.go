package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// BookTools returns the tools bound to the book librarian.
func BookTools() []tool.BaseTool {
	return []tool.BaseTool{
		createFindBookCoverTool(),
		createGetBookInfoTool(),
	}
}

// PaperTools returns the tools bound to the paper librarian.
func PaperTools(lookup PaperLookup) []tool.BaseTool {
	return []tool.BaseTool{
		createFindArxivPaperTool(lookup),
		createGetArxivPaperTool(lookup),
	}
}

// GetToolInfos collects the schema of every tool for model binding.
func GetToolInfos(ctx context.Context, tools []tool.BaseTool) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool info: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// stringArgs lists the string arguments per tool.
var stringArgs = map[string][]string{
	ToolFindBookCover:  {"title", "author"},
	ToolGetBookInfo:    {"title"},
	ToolFindArxivPaper: {"title", "author"},
	ToolGetArxivPaper:  {"id"},
}

// SanitizeArguments trims string arguments, coerces scalars to strings and
// drops empty optional ones. Input that is not a JSON object is returned as is.
func SanitizeArguments(name, arguments string) string {
	keys, ok := stringArgs[name]
	if !ok {
		return arguments
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(arguments), &m); err != nil || m == nil {
		return arguments
	}
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		var s string
		switch vv := v.(type) {
		case string:
			s = strings.TrimSpace(vv)
		case float64, bool:
			s = strings.TrimSpace(fmt.Sprint(vv))
		default:
			delete(m, k)
			continue
		}
		if s == "" && k != "title" && k != "id" {
			delete(m, k)
			continue
		}
		m[k] = s
	}
	b, err := json.Marshal(m)
	if err != nil {
		return arguments
	}
	return string(b)
}

// UnknownToolResult is handed back to the model for calls to tools it does not have.
func UnknownToolResult(name string) string {
	b, _ := json.Marshal(map[string]string{"error": "unknown_tool", "name": name, "note": "ignored"})
	return string(b)
}
