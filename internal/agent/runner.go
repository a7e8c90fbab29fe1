// Package agent executes single conversational turns against a model
// provider and exposes their output as an ordered event stream.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino/schema"

	"github.com/apollo-chat/apollo/internal/auth"
	"github.com/apollo-chat/apollo/internal/logging"
	"github.com/apollo-chat/apollo/internal/provider"
	"github.com/apollo-chat/apollo/internal/toolcache"
	"github.com/apollo-chat/apollo/pkg/types"
)

const (
	// defaultMaxSteps bounds the tool-call loop within one turn.
	defaultMaxSteps = 8
	// maxRetries is the invocation retry budget per step.
	maxRetries           = 3
	retryInitialInterval = time.Second
	retryMaxInterval     = 30 * time.Second
)

// ToolDispatcher executes a tool invocation issued by the model and returns
// its textual result. The connection manager implements this.
type ToolDispatcher interface {
	Execute(ctx context.Context, name string, args json.RawMessage) (string, error)
}

// Options tune a Runner.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
	MaxSteps    int
}

// Runner constructs and executes agent invocations.
type Runner struct {
	provider   provider.Provider
	dispatcher ToolDispatcher
	opts       Options
}

// NewRunner creates a runner bound to one provider. dispatcher may be nil
// when no tool providers are attached.
func NewRunner(p provider.Provider, dispatcher ToolDispatcher, opts Options) *Runner {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = defaultMaxSteps
	}
	return &Runner{provider: p, dispatcher: dispatcher, opts: opts}
}

// Run starts one streamed turn over the full message history and the tool
// snapshot taken at turn start. Setup failures are returned synchronously,
// before any event is emitted. The returned stream is finite and cannot be
// replayed; re-invoke to recompute.
func (r *Runner) Run(ctx context.Context, history []types.Message, tools map[string][]toolcache.ToolDescriptor) (*EventStream, error) {
	if r.provider == nil {
		return nil, &InvocationSetupError{Err: errors.New("no model provider configured")}
	}
	if len(history) == 0 {
		return nil, &InvocationSetupError{Err: errors.New("empty message history")}
	}

	req := &provider.CompletionRequest{
		Model:       r.opts.Model,
		Messages:    toSchemaMessages(history),
		Tools:       toolInfos(tools),
		MaxTokens:   r.opts.MaxTokens,
		Temperature: r.opts.Temperature,
	}

	// The initial completion runs under the same cancellable context as the
	// rest of the turn, so closing the stream releases it too.
	runCtx, cancel := context.WithCancel(ctx)
	stream, err := r.createWithRetry(runCtx, req)
	if err != nil {
		cancel()
		return nil, &InvocationSetupError{Err: err}
	}

	es := newEventStream(cancel)
	go r.pump(runCtx, es, stream, req)
	return es, nil
}

// pump drives the tool-call loop, translating provider chunks into events
// until the model signals turn completion.
func (r *Runner) pump(ctx context.Context, es *EventStream, stream *provider.CompletionStream, req *provider.CompletionRequest) {
	for step := 0; ; step++ {
		text, calls, err := r.consume(ctx, es, stream)
		stream.Close()

		if err != nil {
			if ctx.Err() != nil {
				es.finish(ctx.Err())
			} else {
				es.finish(&StreamInterruptedError{Err: err})
			}
			return
		}

		if len(calls) == 0 {
			es.finish(nil)
			return
		}

		if !es.emit(ctx, ToolCall{Calls: calls}) {
			es.finish(ctx.Err())
			return
		}

		req.Messages = append(req.Messages, &schema.Message{
			Role:      schema.Assistant,
			Content:   text,
			ToolCalls: toSchemaToolCalls(calls),
		})

		for _, call := range calls {
			result := r.dispatch(ctx, call)
			if !es.emit(ctx, ToolResult{Result: result}) {
				es.finish(ctx.Err())
				return
			}
			req.Messages = append(req.Messages, &schema.Message{
				Role:       schema.Tool,
				ToolCallID: call.ID,
				Content:    result,
			})
		}

		if step+1 >= r.opts.MaxSteps {
			es.finish(&StreamInterruptedError{Err: fmt.Errorf("tool loop exceeded %d steps", r.opts.MaxSteps)})
			return
		}

		stream, err = r.createWithRetry(ctx, req)
		if err != nil {
			es.finish(&StreamInterruptedError{Err: err})
			return
		}
	}
}

// pendingCall accumulates a tool call whose arguments arrive across chunks.
type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

// consume drains one completion stream, emitting token deltas as they arrive
// and collecting the step's tool calls.
func (r *Runner) consume(ctx context.Context, es *EventStream, stream *provider.CompletionStream) (string, []CallDescriptor, error) {
	var text strings.Builder
	pending := make(map[string]*pendingCall)
	var order []string

	for {
		select {
		case <-ctx.Done():
			return text.String(), nil, ctx.Err()
		default:
		}

		msg, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return text.String(), nil, err
		}

		if msg.Content != "" {
			text.WriteString(msg.Content)
			if !es.emit(ctx, TokenDelta{Text: msg.Content}) {
				return text.String(), nil, ctx.Err()
			}
		}

		for _, tc := range msg.ToolCalls {
			key := tc.ID
			if key == "" && tc.Index != nil {
				key = fmt.Sprintf("#%d", *tc.Index)
			}
			pc, ok := pending[key]
			if !ok {
				pc = &pendingCall{}
				pending[key] = pc
				order = append(order, key)
			}
			if tc.ID != "" {
				pc.id = tc.ID
			}
			if tc.Function.Name != "" {
				pc.name = tc.Function.Name
			}
			pc.args.WriteString(tc.Function.Arguments)
		}
	}

	calls := make([]CallDescriptor, 0, len(order))
	for _, key := range order {
		pc := pending[key]
		var args json.RawMessage
		if pc.args.Len() > 0 {
			args = json.RawMessage(pc.args.String())
		}
		calls = append(calls, CallDescriptor{ID: pc.id, Name: pc.name, Arguments: args})
	}
	return text.String(), calls, nil
}

// dispatch executes one tool call. Tool failures do not abort the turn; the
// error text becomes the result the model sees.
func (r *Runner) dispatch(ctx context.Context, call CallDescriptor) string {
	if r.dispatcher == nil {
		return "Error: no tool dispatcher attached"
	}
	out, err := r.dispatcher.Execute(ctx, call.Name, call.Arguments)
	if err != nil {
		logging.Warn().Str("tool", call.Name).Err(err).Msg("tool execution failed")
		return "Error: " + err.Error()
	}
	return out
}

// createWithRetry starts a completion with exponential backoff and jitter.
// Credential-backend failures are permanent: retrying cannot help until the
// backend recovers, and a stale token must not be reused.
func (r *Runner) createWithRetry(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionStream, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval
	b.RandomizationFactor = 0.5

	var stream *provider.CompletionStream
	op := func() error {
		s, err := r.provider.CreateCompletion(ctx, req)
		if err != nil {
			if errors.Is(err, auth.ErrAuthUnavailable) {
				return backoff.Permanent(err)
			}
			return err
		}
		stream = s
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx)); err != nil {
		return nil, err
	}
	return stream, nil
}

func toSchemaMessages(history []types.Message) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		role := schema.Assistant
		switch m.Role {
		case types.RoleUser:
			role = schema.User
		case types.RoleSystem:
			role = schema.System
		}
		msgs = append(msgs, &schema.Message{Role: role, Content: m.Content})
	}
	return msgs
}

func toSchemaToolCalls(calls []CallDescriptor) []schema.ToolCall {
	out := make([]schema.ToolCall, 0, len(calls))
	for _, c := range calls {
		out = append(out, schema.ToolCall{
			ID: c.ID,
			Function: schema.FunctionCall{
				Name:      c.Name,
				Arguments: string(c.Arguments),
			},
		})
	}
	return out
}
