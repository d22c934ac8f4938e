package bedrock

import (
	"context"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/cortexflow/llmkit/message"
	"github.com/cortexflow/llmkit/stream"
)

// streamer adapts a Bedrock ConverseStream event stream to provider.Streamer /
// provider.ContentProvider, keyed by ContentBlockIndex exactly like
// providers/anthropic keys by Anthropic's own content block index — Bedrock
// Converse's block lifecycle (start/delta/stop) is modeled directly on the
// Anthropic Messages API.
type streamer struct {
	ctx    context.Context
	cancel context.CancelFunc
	raw    *bedrockruntime.ConverseStreamEventStream

	events chan stream.Event
	reasm  *stream.Reassembler

	nameMap map[string]string // sanitized tool name -> canonical name

	// stopReason and stopPending track MessageStop, which Bedrock sends
	// before the terminal Metadata event carrying usage; End is pushed once
	// Metadata lands (or, if the stream closes without one, at run's exit)
	// so the event always carries whatever usage was recorded, matching the
	// other adapters' End{Usage: ...} contract.
	stopReason  string
	stopPending bool

	errMu    sync.Mutex
	finalErr error
}

func newStreamer(ctx context.Context, raw *bedrockruntime.ConverseStreamEventStream, nameMap map[string]string) *streamer {
	cctx, cancel := context.WithCancel(ctx)
	s := &streamer{
		ctx:     cctx,
		cancel:  cancel,
		raw:     raw,
		events:  make(chan stream.Event, 32),
		nameMap: nameMap,
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
	defer func() { _ = s.raw.Close() }()

	events := s.raw.Events()
	for {
		select {
		case <-s.ctx.Done():
			s.setErr(s.ctx.Err())
			return
		case event, ok := <-events:
			if !ok {
				if err := s.raw.Err(); err != nil {
					s.setErr(translateTransportError(err))
				} else {
					s.flushEnd()
				}
				return
			}
			s.handle(event)
		}
	}
}

func (s *streamer) handle(event brtypes.ConverseStreamOutput) {
	switch ev := event.(type) {
	case *brtypes.ConverseStreamOutputMemberContentBlockStart:
		idx := int(ev.Value.ContentBlockIndex)
		if start, ok := ev.Value.Start.(*brtypes.ContentBlockStartMemberToolUse); ok {
			var id, sanitizedName string
			if start.Value.ToolUseId != nil {
				id = *start.Value.ToolUseId
			}
			if start.Value.Name != nil {
				sanitizedName = *start.Value.Name
			}
			name := sanitizedName
			if canonical, ok := s.nameMap[sanitizedName]; ok {
				name = canonical
			}
			s.reasm.StartBlock(idx, stream.BlockToolCall, id, name)
		}
	case *brtypes.ConverseStreamOutputMemberContentBlockDelta:
		idx := int(ev.Value.ContentBlockIndex)
		switch delta := ev.Value.Delta.(type) {
		case *brtypes.ContentBlockDeltaMemberText:
			// Bedrock never sends a ContentBlockStart for plain text blocks,
			// so AppendText's lazy-init (matching AppendReasoning below)
			// opens the accumulator on first delta.
			s.reasm.AppendText(idx, delta.Value)
		case *brtypes.ContentBlockDeltaMemberReasoningContent:
			switch v := delta.Value.(type) {
			case *brtypes.ReasoningContentBlockDeltaMemberText:
				s.reasm.AppendReasoning(idx, v.Value)
			case *brtypes.ReasoningContentBlockDeltaMemberSignature:
				if v.Value != "" {
					s.reasm.SetReasoningSignature(idx, ExtReasoningSignature, v.Value)
				}
			}
		case *brtypes.ContentBlockDeltaMemberToolUse:
			if delta.Value.Input != nil {
				s.reasm.AppendToolCallFragment(idx, "", "", *delta.Value.Input)
			}
		}
	case *brtypes.ConverseStreamOutputMemberContentBlockStop:
		s.reasm.StopBlock(int(ev.Value.ContentBlockIndex))
	case *brtypes.ConverseStreamOutputMemberMessageStop:
		s.stopReason = string(ev.Value.StopReason)
		s.stopPending = true
	case *brtypes.ConverseStreamOutputMemberMetadata:
		if ev.Value.Usage != nil {
			usage := message.Usage{
				InputTokens:  int(ptrInt32(ev.Value.Usage.InputTokens)),
				OutputTokens: int(ptrInt32(ev.Value.Usage.OutputTokens)),
				CachedTokens: int(ptrInt32(ev.Value.Usage.CacheReadInputTokens)),
			}
			s.reasm.RecordUsage(usage)
		}
		s.flushEnd()
	}
}

// flushEnd pushes the terminal End event exactly once, carrying whatever
// usage has been recorded so far. It is a no-op if MessageStop has not yet
// been observed.
func (s *streamer) flushEnd() {
	if !s.stopPending {
		return
	}
	s.stopPending = false
	usage, _ := s.reasm.Usage()
	s.push(stream.Event{Kind: stream.End, Usage: usage, Reason: s.stopReason})
}
