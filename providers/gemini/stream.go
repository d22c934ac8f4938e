package gemini

import (
	"context"
	"encoding/json"
	"io"
	"iter"
	"sync"

	"google.golang.org/genai"

	"github.com/cortexflow/llmkit/llmerr"
	"github.com/cortexflow/llmkit/message"
	"github.com/cortexflow/llmkit/stream"
)

// streamer adapts a Gemini GenerateContentStream iterator to
// provider.Streamer / provider.ContentProvider. Each streamed response
// carries the incremental parts produced since the last chunk, at stable
// positions within the candidate's part list, so the adapter keys
// stream.Reassembler blocks by part position the same way the index-keyed
// adapters key them by explicit block index.
type streamer struct {
	ctx    context.Context
	cancel context.CancelFunc
	next   func() (*genai.GenerateContentResponse, error, bool)
	stop   func()

	events  chan stream.Event
	reasm   *stream.Reassembler
	started map[int]bool

	errMu    sync.Mutex
	finalErr error
}

func newStreamer(ctx context.Context, seq iter.Seq2[*genai.GenerateContentResponse, error]) *streamer {
	cctx, cancel := context.WithCancel(ctx)
	next, stop := iter.Pull2(seq)
	s := &streamer{
		ctx:     cctx,
		cancel:  cancel,
		next:    next,
		stop:    stop,
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
	if s.stop != nil {
		s.stop()
	}
	return nil
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
	defer s.stop()

	for {
		select {
		case <-s.ctx.Done():
			s.setErr(s.ctx.Err())
			return
		default:
		}
		resp, err, ok := s.next()
		if !ok {
			return
		}
		if err != nil {
			s.setErr(llmerr.Wrap(llmerr.ApiError, "gemini stream transport error", err))
			return
		}
		s.handle(resp)
	}
}

func (s *streamer) handle(resp *genai.GenerateContentResponse) {
	if resp == nil || len(resp.Candidates) == 0 {
		return
	}
	cand := resp.Candidates[0]
	var usage message.Usage
	var hasUsage bool
	if resp.UsageMetadata != nil {
		hasUsage = true
		usage = message.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			CachedTokens: int(resp.UsageMetadata.CachedContentTokenCount),
		}
		s.reasm.RecordUsage(usage)
	}

	if cand.Content != nil {
		for i, part := range cand.Content.Parts {
			switch {
			case part.FunctionCall != nil:
				if !s.started[i] {
					s.reasm.StartBlock(i, stream.BlockToolCall, part.FunctionCall.ID, part.FunctionCall.Name)
					s.started[i] = true
				}
				if len(part.ThoughtSignature) > 0 {
					s.reasm.SetToolCallExtension(i, ExtThoughtSignature, part.ThoughtSignature)
				}
				args, _ := json.Marshal(part.FunctionCall.Args)
				s.reasm.AppendToolCallFragment(i, "", "", string(args))
				s.reasm.StopBlock(i)
				delete(s.started, i)
			case part.Thought:
				if !s.started[i] {
					s.reasm.StartBlock(i, stream.BlockReasoning, "", "")
					s.started[i] = true
				}
				s.reasm.AppendReasoning(i, part.Text)
				if len(part.ThoughtSignature) > 0 {
					s.reasm.SetReasoningSignature(i, ExtThoughtSignature, part.ThoughtSignature)
				}
			case part.Text != "":
				if !s.started[i] {
					s.reasm.StartBlock(i, stream.BlockText, "", "")
					s.started[i] = true
				}
				s.reasm.AppendText(i, part.Text)
			}
		}
	}

	if cand.FinishReason != "" {
		for i := range s.started {
			s.reasm.StopBlock(i)
		}
		s.started = make(map[int]bool)
		u, _ := s.reasm.Usage()
		if !hasUsage {
			u = usage
		}
		s.push(stream.Event{Kind: stream.End, Usage: u, Reason: string(cand.FinishReason)})
	}
}
