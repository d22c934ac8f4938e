package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/cortexflow/llmkit/message"
	"github.com/cortexflow/llmkit/provider"
	"github.com/cortexflow/llmkit/stream"
	"github.com/cortexflow/llmkit/tools"
)

// genToolRoundTripCount produces the number of tool-call steps to run before
// the scripted model finishes with a plain text reply, per spec §8's
// "Tool-call correlation" and "Transcript ordering" universal properties.
func genToolRoundTripCount() gopter.Gen {
	return gen.IntRange(0, 6)
}

// buildScriptedModel scripts toolCalls tool-call-then-tool-result steps
// followed by one final text step, each response carrying strictly
// increasing input-token usage, matching spec §8's "usage monotonicity"
// property ("input_tokens for step k+1 >= input_tokens for step k").
func buildScriptedModel(toolCalls int) *scriptedModel {
	m := &scriptedModel{}
	for i := 0; i < toolCalls; i++ {
		m.responses = append(m.responses, &provider.Response{
			Contents: []message.Content{message.ToolCall{
				ID:    fmt_call_id(i),
				Name:  "echo",
				Input: json.RawMessage(`{"n":` + itoa(i) + `}`),
			}},
			HasUsage: true,
			Usage:    message.Usage{InputTokens: 100 + 10*i, OutputTokens: 5},
		})
	}
	m.responses = append(m.responses, &provider.Response{
		Contents: []message.Content{message.Text{Value: "done"}},
		HasUsage: true,
		Usage:    message.Usage{InputTokens: 100 + 10*toolCalls, OutputTokens: 5},
	})
	return m
}

func fmt_call_id(i int) string { return "call_" + itoa(i) }

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	digits := []byte{}
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	return string(digits)
}

func echoRegistry() *tools.Registry {
	return tools.NewRegistry(tools.Tool{
		Name: "echo",
		Execute: func(context.Context, json.RawMessage) (string, error) {
			return `{"ok":true}`, nil
		},
	})
}

// TestPropertyTranscriptStepIDsNonDecreasing verifies spec §8's transcript
// ordering property: for any completed request, step_id is non-decreasing
// across the output.
func TestPropertyTranscriptStepIDsNonDecreasing(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("transcript step ids never decrease", prop.ForAll(
		func(toolCalls int) bool {
			model := buildScriptedModel(toolCalls)
			loop := New(model, echoRegistry())
			res := loop.Run(context.Background(), Options{Model: "m", Prompt: "go"})

			entries := res.Transcript.All()
			for i := 1; i < len(entries); i++ {
				if entries[i].Step < entries[i-1].Step {
					return false
				}
			}
			return res.Stop.Kind == StopFinish
		},
		genToolRoundTripCount(),
	))

	properties.TestingRun(t)
}

// TestPropertyToolCallCorrelationNoOrphansNoDuplicates verifies spec §8's
// tool-call correlation property: every ToolCall(id=x) in the transcript is
// immediately followed by exactly one Tool message with id=x; no orphans,
// no duplicates.
func TestPropertyToolCallCorrelationNoOrphansNoDuplicates(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("every tool call is followed by exactly one matching tool result", prop.ForAll(
		func(toolCalls int) bool {
			model := buildScriptedModel(toolCalls)
			loop := New(model, echoRegistry())
			res := loop.Run(context.Background(), Options{Model: "m", Prompt: "go"})

			entries := res.Transcript.All()
			seen := map[string]int{}
			for i, e := range entries {
				tc, ok := e.Message.Content.(message.ToolCall)
				if !ok {
					continue
				}
				if i+1 >= len(entries) {
					return false
				}
				next := entries[i+1].Message
				if next.Role != message.RoleTool || next.Tool.ID != tc.ID {
					return false
				}
				seen[tc.ID]++
			}
			for _, count := range seen {
				if count != 1 {
					return false
				}
			}
			toolMsgs := res.Transcript.FilterByRole(message.RoleTool)
			return len(toolMsgs) == toolCalls
		},
		genToolRoundTripCount(),
	))

	properties.TestingRun(t)
}

// TestPropertyUsageMonotonicity verifies spec §8's usage monotonicity
// property across consecutive Assistant messages from the same provider.
func TestPropertyUsageMonotonicity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("assistant usage input_tokens never decreases step over step", prop.ForAll(
		func(toolCalls int) bool {
			model := buildScriptedModel(toolCalls)
			loop := New(model, echoRegistry())
			res := loop.Run(context.Background(), Options{Model: "m", Prompt: "go"})

			assistants := res.Transcript.FilterByRole(message.RoleAssistant)
			last := -1
			for _, m := range assistants {
				if m.Usage == nil {
					return false
				}
				if m.Usage.InputTokens < last {
					return false
				}
				last = m.Usage.InputTokens
			}
			return len(assistants) == toolCalls+1
		},
		genToolRoundTripCount(),
	))

	properties.TestingRun(t)
}

// TestPropertyStreamingIdempotence verifies spec §8's streaming idempotence
// property: the sequence of Text deltas concatenated equals the final Text
// Content produced at step-stop.
func TestPropertyStreamingIdempotence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("concatenated text deltas equal the materialized final text", prop.ForAll(
		func(fragments []string) bool {
			var deltas []string
			reasm := stream.NewReassembler(func(ev stream.Event) {
				if ev.Kind == stream.TextDelta {
					deltas = append(deltas, ev.Text)
				}
			})
			for _, f := range fragments {
				reasm.AppendText(0, f)
			}
			reasm.StopBlock(0)

			var want string
			for _, f := range fragments {
				want += f
			}
			var gotDeltas string
			for _, d := range deltas {
				gotDeltas += d
			}
			if gotDeltas != want {
				return false
			}

			msgs := reasm.Messages()
			if want == "" {
				return len(msgs) == 0
			}
			if len(msgs) != 1 {
				return false
			}
			txt, ok := msgs[0].Content.(message.Text)
			return ok && txt.Value == want
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
