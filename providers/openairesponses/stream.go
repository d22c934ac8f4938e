package openairesponses

import (
	"context"
	"io"
	"sync"

	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/responses"

	"github.com/cortexflow/llmkit/llmerr"
	"github.com/cortexflow/llmkit/message"
	"github.com/cortexflow/llmkit/stream"
)

// responseStream wraps the SDK's raw SSE stream behind this package's own
// type so ResponsesClient stays fakeable in tests without depending on the
// SDK's concrete stream type.
type responseStream struct {
	raw *ssestream.Stream[responses.ResponseStreamEventUnion]
}

// streamer adapts a Responses API event stream to provider.Streamer /
// provider.ContentProvider. Unlike Chat Completions, every output item
// (message, function call, reasoning) carries its own explicit output_index,
// which is used directly as the stream.Reassembler block index.
type streamer struct {
	ctx    context.Context
	cancel context.CancelFunc
	raw    *responseStream

	events chan stream.Event
	reasm  *stream.Reassembler

	errMu    sync.Mutex
	finalErr error
}

func newStreamer(ctx context.Context, raw *responseStream) *streamer {
	cctx, cancel := context.WithCancel(ctx)
	s := &streamer{
		ctx:    cctx,
		cancel: cancel,
		raw:    raw,
		events: make(chan stream.Event, 32),
	}
	s.reasm = stream.NewReassembler(func(ev stream.Event) { s.push(ev) })
	s.push(stream.Event{Kind: stream.Start})
	go s.run()
	return s
}

func (s *streamer) push(ev stream.Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

func (s *streamer) Recv() (stream.Event, error) {
	select {
	case ev, ok := <-s.events:
		if ok {
			return ev, nil
		}
		if err := s.err(); err != nil {
			return stream.Event{}, err
		}
		return stream.Event{}, io.EOF
	case <-s.ctx.Done():
		return stream.Event{}, s.ctx.Err()
	}
}

func (s *streamer) Contents() []message.Content {
	msgs := s.reasm.Messages()
	out := make([]message.Content, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Content)
	}
	return out
}

func (s *streamer) Close() error {
	s.cancel()
	if s.raw == nil || s.raw.raw == nil {
		return nil
	}
	return s.raw.raw.Close()
}

func (s *streamer) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.finalErr == nil {
		s.finalErr = err
	}
}

func (s *streamer) err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.finalErr
}

func (s *streamer) run() {
	defer close(s.events)
	defer func() {
		if s.raw != nil && s.raw.raw != nil {
			_ = s.raw.raw.Close()
		}
	}()

	for {
		select {
		case <-s.ctx.Done():
			s.setErr(s.ctx.Err())
			return
		default:
		}
		if !s.raw.raw.Next() {
			if err := s.raw.raw.Err(); err != nil {
				s.setErr(llmerr.Wrap(llmerr.ApiError, "openai responses stream transport error", err))
			}
			return
		}
		s.handle(s.raw.raw.Current())
	}
}

func (s *streamer) handle(event responses.ResponseStreamEventUnion) {
	switch ev := event.AsAny().(type) {
	case responses.ResponseOutputItemAddedEvent:
		idx := int(ev.OutputIndex)
		switch v := ev.Item.AsAny().(type) {
		case responses.ResponseFunctionToolCall:
			s.reasm.StartBlock(idx, stream.BlockToolCall, v.CallID, v.Name)
		case responses.ResponseReasoningItem:
			s.reasm.StartBlock(idx, stream.BlockReasoning, "", "")
		default:
			s.reasm.StartBlock(idx, stream.BlockText, "", "")
		}
	case responses.ResponseTextDeltaEvent:
		s.reasm.AppendText(int(ev.OutputIndex), ev.Delta)
	case responses.ResponseReasoningSummaryTextDeltaEvent:
		s.reasm.AppendReasoning(int(ev.OutputIndex), ev.Delta)
	case responses.ResponseFunctionCallArgumentsDeltaEvent:
		s.reasm.AppendToolCallFragment(int(ev.OutputIndex), "", "", ev.Delta)
	case responses.ResponseOutputItemDoneEvent:
		s.reasm.StopBlock(int(ev.OutputIndex))
	case responses.ResponseCompletedEvent:
		usage := message.Usage{
			InputTokens:  int(ev.Response.Usage.InputTokens),
			OutputTokens: int(ev.Response.Usage.OutputTokens),
			CachedTokens: int(ev.Response.Usage.InputTokensDetails.CachedTokens),
		}
		s.reasm.RecordUsage(usage)
		s.push(stream.Event{Kind: stream.End, Usage: usage})
	case responses.ResponseIncompleteEvent:
		reason := ""
		if ev.Response.IncompleteDetails.Reason != "" {
			reason = ev.Response.IncompleteDetails.Reason
		}
		s.push(stream.Event{Kind: stream.Incomplete, Reason: reason})
	case responses.ResponseErrorEvent:
		s.setErr(llmerr.Newf(llmerr.ProviderError, "openai responses stream error: %s", ev.Message))
		s.push(stream.Event{Kind: stream.Failed, Reason: ev.Message})
	}
}
