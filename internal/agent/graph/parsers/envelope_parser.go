package parsers

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	errx "github.com/library-assistant/server/internal/core/error"
	"github.com/library-assistant/server/internal/library"
	logx "github.com/library-assistant/server/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 128 * 1024 // 128KB
	maxErrSnippet = 200        // limit logged snippet size
)

// ParseEnvelope validates raw model output against the reply contract. A
// surrounding markdown code fence is tolerated; anything else that is not the
// contract is a SchemaViolation.
func ParseEnvelope(reg *library.Registry, content string) (env *library.Envelope, err error) {
	// panic safety
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "envelope_parser").Msgf("panic recovered: %v", r)
			err = errx.New(fmt.Errorf("envelope parser panic: %v", r), http.StatusInternalServerError, errx.SystemErrorMessage)
			env = nil
		}
	}()

	if len(content) > maxContentLen {
		return nil, errx.Violation("", "response exceeds %d bytes", maxContentLen)
	}
	if !utf8.ValidString(content) {
		return nil, errx.Violation("", "response is not valid utf-8")
	}

	body := stripFence(strings.TrimSpace(content))
	if body == "" {
		return nil, errx.Violation("", "empty response")
	}

	env, err = reg.DecodeEnvelope([]byte(body))
	if err != nil {
		logx.Warn().
			Str("component", "envelope_parser").
			Err(err).
			Str("snippet", snippet(body)).
			Msg("model output rejected")
		return nil, err
	}
	return env, nil
}

// stripFence removes a single ```json ... ``` wrapper.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	inner := s[3 : len(s)-3]
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 {
		lang := strings.TrimSpace(inner[:nl])
		if lang == "" || strings.EqualFold(lang, "json") {
			inner = inner[nl+1:]
		}
	}
	return strings.TrimSpace(inner)
}

func snippet(s string) string {
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet] + "..."
}
