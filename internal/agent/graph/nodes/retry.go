package nodes

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	errx "github.com/library-assistant/server/internal/core/error"
	logx "github.com/library-assistant/server/pkg/logger"
)

// RetryingChatModel bounds every provider attempt with a timeout and retries
// transient failures. Exhaustion surfaces as *errx.ProviderError.
type RetryingChatModel struct {
	inner   einomodel.BaseChatModel
	name    string
	timeout time.Duration
	retries int
}

func NewRetryingChatModel(inner einomodel.BaseChatModel, name string, timeout time.Duration, retries int) *RetryingChatModel {
	if retries < 0 {
		retries = 0
	}
	return &RetryingChatModel{inner: inner, name: name, timeout: timeout, retries: retries}
}

func (m *RetryingChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	var lastErr error
	for attempt := 0; attempt <= m.retries; attempt++ {
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if m.timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, m.timeout)
		}
		out, err := m.inner.Generate(attemptCtx, input, opts...)
		cancel()
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil || !transient(err) {
			break
		}
		logx.Warn().Err(err).Str("model", m.name).Int("attempt", attempt+1).Msg("transient provider failure; retrying")
	}
	return nil, &errx.ProviderError{Model: m.name, Err: lastErr}
}

// Stream retries only while establishing the stream. The attempt timeout is
// not applied since it would cut the stream short.
func (m *RetryingChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	var lastErr error
	for attempt := 0; attempt <= m.retries; attempt++ {
		sr, err := m.inner.Stream(ctx, input, opts...)
		if err == nil {
			return sr, nil
		}
		lastErr = err
		if ctx.Err() != nil || !transient(err) {
			break
		}
	}
	return nil, &errx.ProviderError{Model: m.name, Err: lastErr}
}

// IsCallbacksEnabled defers callback reporting to the wrapped model when it
// reports its own.
func (m *RetryingChatModel) IsCallbacksEnabled() bool {
	c, ok := m.inner.(components.Checker)
	return ok && c.IsCallbacksEnabled()
}

// transient reports failures worth one more attempt: an attempt deadline or a
// network-level error.
func transient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
