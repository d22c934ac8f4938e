package anthropic

import (
	"context"
	"io"
	"sync"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/cortexflow/llmkit/llmerr"
	"github.com/cortexflow/llmkit/message"
	"github.com/cortexflow/llmkit/stream"
)

// streamer adapts an Anthropic Messages SSE stream to provider.Streamer and
// provider.ContentProvider, reassembling block-indexed deltas with
// stream.Reassembler the same way every other adapter in this module does.
type streamer struct {
	ctx    context.Context
	cancel context.CancelFunc
	raw    *ssestream.Stream[sdk.MessageStreamEventUnion]

	events chan stream.Event
	reasm  *stream.Reassembler

	errMu    sync.Mutex
	finalErr error
}

func newStreamer(ctx context.Context, raw *ssestream.Stream[sdk.MessageStreamEventUnion]) *streamer {
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

// Contents returns the assistant content materialized by the reassembler so
// far. Safe to call once Recv has returned io.EOF.
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
	if s.raw == nil {
		return nil
	}
	return s.raw.Close()
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
		if s.raw != nil {
			_ = s.raw.Close()
		}
	}()

	for {
		select {
		case <-s.ctx.Done():
			s.setErr(s.ctx.Err())
			return
		default:
		}
		if !s.raw.Next() {
			if err := s.raw.Err(); err != nil {
				s.setErr(llmerr.Wrap(llmerr.ApiError, "anthropic stream transport error", err))
			}
			return
		}
		s.handle(s.raw.Current())
	}
}

func (s *streamer) handle(event sdk.MessageStreamEventUnion) {
	switch ev := event.AsAny().(type) {
	case sdk.MessageStartEvent:
		return
	case sdk.ContentBlockStartEvent:
		idx := int(ev.Index)
		switch block := ev.ContentBlock.AsAny().(type) {
		case sdk.ToolUseBlock:
			s.reasm.StartBlock(idx, stream.BlockToolCall, block.ID, block.Name)
		case sdk.TextBlock:
			s.reasm.StartBlock(idx, stream.BlockText, "", "")
		case sdk.ThinkingBlock:
			s.reasm.StartBlock(idx, stream.BlockReasoning, "", "")
		case sdk.RedactedThinkingBlock:
			s.reasm.StartBlock(idx, stream.BlockRedacted, "", "")
		}
		return
	case sdk.ContentBlockDeltaEvent:
		idx := int(ev.Index)
		switch delta := ev.Delta.AsAny().(type) {
		case sdk.TextDelta:
			s.reasm.AppendText(idx, delta.Text)
		case sdk.InputJSONDelta:
			s.reasm.AppendToolCallFragment(idx, "", "", delta.PartialJSON)
		case sdk.ThinkingDelta:
			s.reasm.AppendReasoning(idx, delta.Thinking)
		case sdk.SignatureDelta:
			if delta.Signature != "" {
				s.reasm.SetReasoningSignature(idx, ExtThinkingSignature, delta.Signature)
			}
		}
		return
	case sdk.ContentBlockStopEvent:
		s.reasm.StopBlock(int(ev.Index))
		return
	case sdk.MessageDeltaEvent:
		s.reasm.RecordUsage(message.Usage{
			InputTokens:  int(ev.Usage.InputTokens),
			OutputTokens: int(ev.Usage.OutputTokens),
			CachedTokens: int(ev.Usage.CacheReadInputTokens),
		})
		return
	case sdk.MessageStopEvent:
		usage, _ := s.reasm.Usage()
		s.push(stream.Event{Kind: stream.End, Usage: usage})
		return
	}
}
