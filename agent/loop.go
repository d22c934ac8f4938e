// Package agent drives the agentic step loop: repeated calls to a
// provider.LanguageModel, tool dispatch against a tools.Registry, transcript
// accumulation, and stop-reason computation. Both the non-streaming Run and
// the streaming RunStreaming variant share the same termination rules.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/cortexflow/llmkit/message"
	"github.com/cortexflow/llmkit/provider"
	"github.com/cortexflow/llmkit/ratelimit"
	"github.com/cortexflow/llmkit/stream"
	"github.com/cortexflow/llmkit/telemetry"
	"github.com/cortexflow/llmkit/tools"
)

// StopKind classifies why a run ended.
type StopKind string

const (
	// StopFinish means the model produced a final turn with no trailing
	// tool call and no stop hook intervened.
	StopFinish StopKind = "finish"

	// StopHook means options.StopWhen returned true.
	StopHook StopKind = "hook"

	// StopError means the adapter failed, or the model returned zero
	// content for a step.
	StopError StopKind = "error"
)

// StopReason is the terminal state of one Run/RunStreaming call.
type StopReason struct {
	Kind StopKind
	Err  error
}

// Options configures one agentic run. Messages and Prompt are mutually
// exclusive initializers; when Messages is empty, step 0 synthesizes
// User(Prompt), preceded by System(System) when System is set.
type Options struct {
	Model    string
	System   string
	Prompt   string
	Messages []message.Message

	Tools      []tools.Tool
	ToolChoice *provider.ToolChoice

	MaxOutputTokens int
	Temperature     int
	TopP            int
	TopK            int
	Reasoning       provider.ReasoningEffort
	StopSequences   []string

	// StopWhen is evaluated after each step; returning true ends the run
	// with StopReason{Kind: StopHook} regardless of what the model just
	// produced.
	StopWhen func(tr *message.Transcript) bool

	// RetryPolicy governs the bounded exponential backoff RunStreaming
	// applies to a 429 when opening each step's stream, per spec §7's
	// "only HTTP 429 on streaming adapters" retry rule. The zero value
	// selects ratelimit's defaults (1s base delay, 5 attempts).
	RetryPolicy ratelimit.Policy

	// OnStepStart / OnStepFinish are invoked once per loop iteration, before
	// and after the adapter call respectively.
	OnStepStart  func(step int)
	OnStepFinish func(step int)

	Logger  telemetry.Logger
	Tracer  telemetry.Tracer
	Metrics telemetry.Metrics
}

// Result is returned by Run and by RunStreaming once the background task
// exits.
type Result struct {
	Transcript *message.Transcript
	Stop       StopReason
}

// Loop drives the agentic step loop against one provider.LanguageModel and
// one tools.Registry.
type Loop struct {
	model    provider.LanguageModel
	registry *tools.Registry
}

// New constructs a Loop bound to the given model and tool registry.
func New(model provider.LanguageModel, registry *tools.Registry) *Loop {
	return &Loop{model: model, registry: registry}
}

// resolveTelemetry defaults each of Logger/Tracer/Metrics to its no-op
// implementation when the caller did not supply one, so Run and
// runStreamingLoop never need a nil check at each call site.
func resolveTelemetry(opts Options) (telemetry.Logger, telemetry.Tracer, telemetry.Metrics) {
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return logger, tracer, metrics
}

// Run drives the non-streaming variant of the loop to completion.
func (l *Loop) Run(ctx context.Context, opts Options) Result {
	logger, tracer, metrics := resolveTelemetry(opts)
	tr := initTranscript(opts)
	step := 0

	for {
		step++
		if opts.OnStepStart != nil {
			opts.OnStepStart(step)
		}

		spanCtx, span := tracer.Start(ctx, "agent.step")
		req := l.buildRequest(opts, tr)
		resp, err := l.model.Generate(spanCtx, req)
		metrics.IncCounter("agent.step.generate", 1, "model", opts.Model)
		if err != nil {
			span.RecordError(err)
			span.End()
			logger.Error(ctx, "agent: adapter generate failed", "step", step, "error", err)
			return Result{Transcript: tr, Stop: StopReason{Kind: StopError, Err: err}}
		}
		span.End()

		if len(resp.Contents) == 0 {
			return Result{Transcript: tr, Stop: StopReason{Kind: StopError, Err: errors.New("empty response")}}
		}

		var usage *message.Usage
		if resp.HasUsage {
			u := resp.Usage
			usage = &u
		}
		lastWasToolCall := l.appendStep(ctx, tr, step, resp.Contents, usage)

		if opts.OnStepFinish != nil {
			opts.OnStepFinish(step)
		}

		if opts.StopWhen != nil && opts.StopWhen(tr) {
			return Result{Transcript: tr, Stop: StopReason{Kind: StopHook}}
		}
		if lastWasToolCall {
			continue
		}
		return Result{Transcript: tr, Stop: StopReason{Kind: StopFinish}}
	}
}

// appendStep appends the assistant content produced this step (and any tool
// dispatch it triggers) to tr, returning whether the step's last content item
// was a ToolCall — the signal to continue the loop per the termination
// rules.
func (l *Loop) appendStep(ctx context.Context, tr *message.Transcript, step int, contents []message.Content, usage *message.Usage) bool {
	lastWasToolCall := false
	for _, c := range contents {
		switch v := c.(type) {
		case message.ToolCall:
			assistantMsg := message.AssistantToolCall(v)
			assistantMsg.Usage = usage
			tr.Append(step, assistantMsg)
			result := l.registry.Execute(ctx, tools.Call{ID: v.ID, Name: v.Name, Input: v.Input})
			ref := message.ToolRef{ID: v.ID, Name: v.Name}
			if result.Err != "" {
				tr.Append(step, message.ToolError(ref, result.Err))
			} else {
				tr.Append(step, message.ToolResult(ref, wrapToolOutput(result.Output)))
			}
			lastWasToolCall = true
		default:
			tr.Append(step, message.Message{Role: message.RoleAssistant, Content: c, Usage: usage})
			lastWasToolCall = false
		}
	}
	return lastWasToolCall
}

// wrapToolOutput encodes a raw executor string result as canonical JSON,
// wrapping it as {"result": value} when it is not already a JSON value, per
// the loop's tool-result appending rule.
func wrapToolOutput(raw string) json.RawMessage {
	if raw == "" {
		return json.RawMessage(`{"result":null}`)
	}
	var probe any
	if json.Unmarshal([]byte(raw), &probe) == nil {
		return json.RawMessage(raw)
	}
	wrapped, err := json.Marshal(map[string]any{"result": raw})
	if err != nil {
		return json.RawMessage(fmt.Sprintf("{%q:%q}", "result", raw))
	}
	return wrapped
}

func (l *Loop) buildRequest(opts Options, tr *message.Transcript) provider.Request {
	return provider.Request{
		Model:           opts.Model,
		Messages:        tr.Messages(),
		Tools:           opts.Tools,
		ToolChoice:      opts.ToolChoice,
		MaxOutputTokens: opts.MaxOutputTokens,
		Temperature:     opts.Temperature,
		TopP:            opts.TopP,
		TopK:            opts.TopK,
		Reasoning:       opts.Reasoning,
		StopSequences:   opts.StopSequences,
	}
}

// initTranscript synthesizes the step-0 messages (System + User) when the
// caller supplied a raw prompt, or uses the caller's message list unchanged,
// prefixing a System message built from Options.System when that list does
// not already start with one — mirroring request/builder.go's
// initialMessages so both entry points resolve step 0 the same way.
func initTranscript(opts Options) *message.Transcript {
	if len(opts.Messages) > 0 {
		if opts.System == "" || hasLeadingSystem(opts.Messages) {
			return message.NewTranscript(opts.Messages...)
		}
		seed := make([]message.Message, 0, len(opts.Messages)+1)
		seed = append(seed, message.System(opts.System))
		seed = append(seed, opts.Messages...)
		return message.NewTranscript(seed...)
	}
	var seed []message.Message
	if opts.System != "" {
		seed = append(seed, message.System(opts.System))
	}
	seed = append(seed, message.User(opts.Prompt))
	return message.NewTranscript(seed...)
}

func hasLeadingSystem(msgs []message.Message) bool {
	return len(msgs) > 0 && msgs[0].Role == message.RoleSystem
}

// StreamHandle delivers events from a RunStreaming call on a background
// goroutine that owns the transcript behind a mutex; callers observe
// progress only through Events, which closes when the loop exits.
type StreamHandle struct {
	events chan stream.Event
	result chan Result
	cancel context.CancelFunc
}

// Events returns the channel of uniform streaming events. The channel closes
// exactly once, after the terminal End/Failed event has been sent.
func (h *StreamHandle) Events() <-chan stream.Event { return h.events }

// Wait blocks until the background loop exits and returns the final Result.
// Wait may be called only once.
func (h *StreamHandle) Wait() Result { return <-h.result }

// Cancel requests the background loop stop at its next suspension point.
// The partial transcript accumulated so far is discarded per the
// cancellation contract; callers that want a partial transcript should drain
// Events until natural completion instead.
func (h *StreamHandle) Cancel() { h.cancel() }

// RunStreaming starts the streaming variant of the loop as a background
// goroutine and returns immediately with a StreamHandle.
func (l *Loop) RunStreaming(ctx context.Context, opts Options) *StreamHandle {
	ctx, cancel := context.WithCancel(ctx)
	h := &StreamHandle{
		events: make(chan stream.Event, 32),
		result: make(chan Result, 1),
		cancel: cancel,
	}
	go l.runStreamingLoop(ctx, opts, h)
	return h
}

func (l *Loop) runStreamingLoop(ctx context.Context, opts Options, h *StreamHandle) {
	logger, tracer, metrics := resolveTelemetry(opts)
	defer close(h.events)

	tr := initTranscript(opts)
	step := 0
	emit := func(e stream.Event) {
		select {
		case h.events <- e:
		case <-ctx.Done():
		}
	}
	emit(stream.Event{Kind: stream.Start})

	for {
		select {
		case <-ctx.Done():
			h.result <- Result{Transcript: nil, Stop: StopReason{Kind: StopError, Err: ctx.Err()}}
			return
		default:
		}

		step++
		if opts.OnStepStart != nil {
			opts.OnStepStart(step)
		}

		spanCtx, span := tracer.Start(ctx, "agent.step")
		req := l.buildRequest(opts, tr)
		var streamer provider.Streamer
		err := ratelimit.Retry(spanCtx, opts.RetryPolicy, func() error {
			var streamErr error
			streamer, streamErr = l.model.Stream(spanCtx, req)
			return streamErr
		})
		metrics.IncCounter("agent.step.stream", 1, "model", opts.Model)
		if err != nil {
			span.RecordError(err)
			span.End()
			logger.Error(ctx, "agent: adapter stream failed", "step", step, "error", err)
			emit(stream.Event{Kind: stream.Failed, Reason: err.Error()})
			h.result <- Result{Transcript: tr, Stop: StopReason{Kind: StopError, Err: err}}
			return
		}

		contents, usage, err := drainStreamer(spanCtx, streamer, emit)
		if err != nil {
			span.RecordError(err)
			span.End()
			logger.Error(ctx, "agent: stream drain failed", "step", step, "error", err)
			emit(stream.Event{Kind: stream.Failed, Reason: err.Error()})
			h.result <- Result{Transcript: tr, Stop: StopReason{Kind: StopError, Err: err}}
			return
		}
		span.End()

		if len(contents) == 0 {
			err := errors.New("empty response")
			emit(stream.Event{Kind: stream.Failed, Reason: err.Error()})
			h.result <- Result{Transcript: tr, Stop: StopReason{Kind: StopError, Err: err}}
			return
		}

		lastWasToolCall := l.appendStep(ctx, tr, step, contents, usage)

		if opts.OnStepFinish != nil {
			opts.OnStepFinish(step)
		}

		if opts.StopWhen != nil && opts.StopWhen(tr) {
			emit(stream.Event{Kind: stream.End})
			h.result <- Result{Transcript: tr, Stop: StopReason{Kind: StopHook}}
			return
		}
		if lastWasToolCall {
			continue
		}
		emit(stream.Event{Kind: stream.End})
		h.result <- Result{Transcript: tr, Stop: StopReason{Kind: StopFinish}}
		return
	}
}

// drainStreamer reads every chunk from streamer via Recv until io.EOF,
// forwarding every event through emit except the adapter's own Start, End
// and Failed (the loop emits one Start per run and one terminal End or
// Failed itself), then collects the assistant content
// the adapter's reassembler materialized meanwhile via ContentProvider. The
// returned usage is whatever the adapter's terminal End event carried, so
// the caller can attach it to the step's assistant message(s) the same way
// the non-streaming path attaches provider.Response.Usage.
func drainStreamer(_ context.Context, s provider.Streamer, emit func(stream.Event)) ([]message.Content, *message.Usage, error) {
	defer s.Close()
	var usage *message.Usage
	for {
		ev, err := s.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, nil, err
		}
		switch ev.Kind {
		case stream.End:
			u := ev.Usage
			usage = &u
			continue
		case stream.Start, stream.Failed:
			continue
		}
		emit(ev)
	}
	if cp, ok := s.(provider.ContentProvider); ok {
		return cp.Contents(), usage, nil
	}
	return nil, usage, nil
}
