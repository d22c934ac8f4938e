package agent

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cortexflow/llmkit/message"
	"github.com/cortexflow/llmkit/provider"
	"github.com/cortexflow/llmkit/stream"
	"github.com/cortexflow/llmkit/tools"
)

// scriptedModel replays one Response per call to Generate, in order.
type scriptedModel struct {
	responses []*provider.Response
	calls     int
}

func (m *scriptedModel) Generate(_ context.Context, _ provider.Request) (*provider.Response, error) {
	resp := m.responses[m.calls]
	m.calls++
	return resp, nil
}

func (m *scriptedModel) Stream(context.Context, provider.Request) (provider.Streamer, error) {
	panic("not used in these tests")
}

func TestLoopFinishesWhenLastContentIsText(t *testing.T) {
	model := &scriptedModel{responses: []*provider.Response{
		{Contents: []message.Content{message.Text{Value: "hello"}}},
	}}
	loop := New(model, tools.NewRegistry())

	res := loop.Run(context.Background(), Options{Model: "m", Prompt: "hi"})

	require.Equal(t, StopFinish, res.Stop.Kind)
	require.Equal(t, 1, model.calls)
	assistants := res.Transcript.FilterByRole(message.RoleAssistant)
	require.Len(t, assistants, 1)
}

func TestLoopContinuesAfterToolCallThenFinishes(t *testing.T) {
	registry := tools.NewRegistry(tools.Tool{
		Name: "lookup",
		Execute: func(context.Context, json.RawMessage) (string, error) {
			return `{"city":"lisbon"}`, nil
		},
	})
	model := &scriptedModel{responses: []*provider.Response{
		{Contents: []message.Content{message.ToolCall{ID: "call_1", Name: "lookup", Input: json.RawMessage(`{}`)}}},
		{Contents: []message.Content{message.Text{Value: "it's lisbon"}}},
	}}
	loop := New(model, registry)

	res := loop.Run(context.Background(), Options{Model: "m", Prompt: "where"})

	require.Equal(t, StopFinish, res.Stop.Kind)
	require.Equal(t, 2, model.calls)
	toolMsgs := res.Transcript.FilterByRole(message.RoleTool)
	require.Len(t, toolMsgs, 1)
	require.False(t, toolMsgs[0].Output.IsError())
	require.JSONEq(t, `{"city":"lisbon"}`, string(toolMsgs[0].Output.Value))
}

func TestLoopStopsOnEmptyResponse(t *testing.T) {
	model := &scriptedModel{responses: []*provider.Response{{Contents: nil}}}
	loop := New(model, tools.NewRegistry())

	res := loop.Run(context.Background(), Options{Model: "m", Prompt: "hi"})

	require.Equal(t, StopError, res.Stop.Kind)
	require.Error(t, res.Stop.Err)
}

func TestLoopHonorsStopWhenHook(t *testing.T) {
	registry := tools.NewRegistry(tools.Tool{
		Name:    "noop",
		Execute: func(context.Context, json.RawMessage) (string, error) { return "ok", nil },
	})
	model := &scriptedModel{responses: []*provider.Response{
		{Contents: []message.Content{message.ToolCall{ID: "call_1", Name: "noop", Input: json.RawMessage(`{}`)}}},
		{Contents: []message.Content{message.Text{Value: "unreachable"}}},
	}}
	loop := New(model, registry)

	res := loop.Run(context.Background(), Options{
		Model:  "m",
		Prompt: "hi",
		StopWhen: func(tr *message.Transcript) bool {
			return len(tr.FilterByRole(message.RoleTool)) > 0
		},
	})

	require.Equal(t, StopHook, res.Stop.Kind)
	require.Equal(t, 1, model.calls)
}

func TestInitTranscriptPrefixesSystemOntoCallerMessagesWithoutOne(t *testing.T) {
	model := &scriptedModel{responses: []*provider.Response{
		{Contents: []message.Content{message.Text{Value: "hi there"}}},
	}}
	loop := New(model, tools.NewRegistry())

	res := loop.Run(context.Background(), Options{
		Model:    "m",
		System:   "be terse",
		Messages: []message.Message{message.User("hello")},
	})

	all := res.Transcript.All()
	require.Len(t, all, 3)
	require.Equal(t, message.RoleSystem, all[0].Message.Role)
	require.Equal(t, message.Text{Value: "be terse"}, all[0].Message.Content)
	require.Equal(t, message.RoleUser, all[1].Message.Role)
}

func TestInitTranscriptLeavesCallerSystemMessageUntouched(t *testing.T) {
	model := &scriptedModel{responses: []*provider.Response{
		{Contents: []message.Content{message.Text{Value: "hi there"}}},
	}}
	loop := New(model, tools.NewRegistry())

	res := loop.Run(context.Background(), Options{
		Model:  "m",
		System: "ignored because Messages already has one",
		Messages: []message.Message{
			message.System("caller's own system"),
			message.User("hello"),
		},
	})

	all := res.Transcript.All()
	require.Len(t, all, 3)
	require.Equal(t, message.Text{Value: "caller's own system"}, all[0].Message.Content)
}

func TestLoopMissingToolSurfacesAsToolError(t *testing.T) {
	model := &scriptedModel{responses: []*provider.Response{
		{Contents: []message.Content{message.ToolCall{ID: "call_1", Name: "ghost", Input: json.RawMessage(`{}`)}}},
		{Contents: []message.Content{message.Text{Value: "done"}}},
	}}
	loop := New(model, tools.NewRegistry())

	res := loop.Run(context.Background(), Options{Model: "m", Prompt: "hi"})

	toolMsgs := res.Transcript.FilterByRole(message.RoleTool)
	require.Len(t, toolMsgs, 1)
	require.True(t, toolMsgs[0].Output.IsError())
}

// fakeStreamer replays a fixed slice of events, then io.EOF, and reports a
// fixed set of materialized contents via ContentProvider.
type fakeStreamer struct {
	events   []stream.Event
	contents []message.Content
	idx      int
}

func (f *fakeStreamer) Recv() (stream.Event, error) {
	if f.idx >= len(f.events) {
		return stream.Event{}, io.EOF
	}
	ev := f.events[f.idx]
	f.idx++
	return ev, nil
}

func (f *fakeStreamer) Close() error { return nil }

func (f *fakeStreamer) Contents() []message.Content { return f.contents }

func TestRunStreamingEmitsStartAndEnd(t *testing.T) {
	model := &streamingModel{streamers: []*fakeStreamer{
		{
			events:   []stream.Event{{Kind: stream.TextDelta, Text: "hi"}},
			contents: []message.Content{message.Text{Value: "hi"}},
		},
	}}
	loop := New(model, tools.NewRegistry())

	handle := loop.RunStreaming(context.Background(), Options{Model: "m", Prompt: "hi"})

	var kinds []stream.Kind
	done := make(chan struct{})
	go func() {
		for ev := range handle.Events() {
			kinds = append(kinds, ev.Kind)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event stream to close")
	}

	require.Equal(t, stream.Start, kinds[0])
	require.Equal(t, stream.End, kinds[len(kinds)-1])
}

type streamingModel struct {
	streamers []*fakeStreamer
	calls     int
}

func (m *streamingModel) Generate(context.Context, provider.Request) (*provider.Response, error) {
	panic("not used in this test")
}

func (m *streamingModel) Stream(context.Context, provider.Request) (provider.Streamer, error) {
	s := m.streamers[m.calls]
	m.calls++
	return s, nil
}
