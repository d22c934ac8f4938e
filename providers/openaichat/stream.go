package openaichat

import (
	"context"
	"io"
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/cortexflow/llmkit/llmerr"
	"github.com/cortexflow/llmkit/message"
	"github.com/cortexflow/llmkit/stream"
)

// textBlockIndex is the reassembler block index reserved for the single
// plain-text content part a Chat Completions choice carries; tool-call
// fragments are keyed by their own delta.tool_calls[].index, which the wire
// format guarantees is disjoint from this sentinel's column.
const textBlockIndex = -1

// streamer adapts an OpenAI Chat Completions chunk stream to
// provider.Streamer and provider.ContentProvider. Unlike Anthropic's
// block-start/block-stop framing, Chat Completions chunks carry no explicit
// block boundaries: a tool call index appears once in its first delta and
// every later chunk with tools appends to whichever index it names, so the
// streamer opens a block lazily on first sight of each index and closes
// every open block on the terminal chunk.
type streamer struct {
	ctx    context.Context
	cancel context.CancelFunc
	raw    *ssestream.Stream[openai.ChatCompletionChunk]

	events chan stream.Event
	reasm  *stream.Reassembler

	started  map[int]bool
	textOpen bool

	errMu    sync.Mutex
	finalErr error
}

func newStreamer(ctx context.Context, raw *ssestream.Stream[openai.ChatCompletionChunk]) *streamer {
	cctx, cancel := context.WithCancel(ctx)
	s := &streamer{
		ctx:     cctx,
		cancel:  cancel,
		raw:     raw,
		events:  make(chan stream.Event, 32),
		started: make(map[int]bool),
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
				s.setErr(llmerr.Wrap(llmerr.ApiError, "openai chat completions stream transport error", err))
			}
			return
		}
		s.handle(s.raw.Current())
	}
}

func (s *streamer) handle(chunk openai.ChatCompletionChunk) {
	if len(chunk.Choices) == 0 {
		return
	}
	choice := chunk.Choices[0]
	delta := choice.Delta

	if delta.Content != "" {
		if !s.textOpen {
			s.reasm.StartBlock(textBlockIndex, stream.BlockText, "", "")
			s.textOpen = true
		}
		s.reasm.AppendText(textBlockIndex, delta.Content)
	}

	for _, tc := range delta.ToolCalls {
		idx := int(tc.Index)
		if !s.started[idx] {
			s.reasm.StartBlock(idx, stream.BlockToolCall, tc.ID, tc.Function.Name)
			s.started[idx] = true
		}
		if tc.Function.Arguments != "" {
			s.reasm.AppendToolCallFragment(idx, "", "", tc.Function.Arguments)
		}
	}

	if chunk.Usage.TotalTokens != 0 {
		s.reasm.RecordUsage(message.Usage{
			InputTokens:  int(chunk.Usage.PromptTokens),
			OutputTokens: int(chunk.Usage.CompletionTokens),
			CachedTokens: int(chunk.Usage.PromptTokensDetails.CachedTokens),
		})
	}

	if choice.FinishReason != "" {
		if s.textOpen {
			s.reasm.StopBlock(textBlockIndex)
			s.textOpen = false
		}
		for idx := range s.started {
			s.reasm.StopBlock(idx)
		}
		s.started = make(map[int]bool)
		usage, _ := s.reasm.Usage()
		s.push(stream.Event{Kind: stream.End, Usage: usage, Reason: string(choice.FinishReason)})
	}
}
