package message

// Tagged wraps a Message with the loop iteration that produced it. Step 0
// holds the pre-loop System and User messages; step k >= 1 holds the k-th
// model turn and any tool dispatch it triggered.
type Tagged struct {
	Step    int
	Message Message
}

// Transcript is the ordered, append-only sequence of TaggedMessages produced
// and consumed during one request. Messages are immutable after insertion;
// Transcript exists for the lifetime of a single loop run.
type Transcript struct {
	entries []Tagged
}

// NewTranscript builds a Transcript seeded with the given step-0 messages.
func NewTranscript(step0 ...Message) *Transcript {
	t := &Transcript{entries: make([]Tagged, 0, len(step0))}
	for _, m := range step0 {
		t.entries = append(t.entries, Tagged{Step: 0, Message: m})
	}
	return t
}

// Append adds a message tagged with step to the transcript. Append is the
// only mutator; callers must not attempt to edit a message once appended.
func (t *Transcript) Append(step int, m Message) {
	t.entries = append(t.entries, Tagged{Step: step, Message: m})
}

// Len returns the number of messages appended so far.
func (t *Transcript) Len() int { return len(t.entries) }

// All returns every TaggedMessage in arrival order. The returned slice is a
// copy; mutating it does not affect the transcript.
func (t *Transcript) All() []Tagged {
	out := make([]Tagged, len(t.entries))
	copy(out, t.entries)
	return out
}

// Messages returns the bare Message sequence in arrival order, discarding
// step tags.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Message
	}
	return out
}

// Steps groups entries by step id, preserving within-step order. The
// returned slice is indexed by ascending step id as encountered, not by the
// numeric value itself, since step ids may be sparse after filtering.
func (t *Transcript) Steps() [][]Tagged {
	if len(t.entries) == 0 {
		return nil
	}
	var steps [][]Tagged
	var cur []Tagged
	curStep := t.entries[0].Step
	for _, e := range t.entries {
		if e.Step != curStep {
			steps = append(steps, cur)
			cur = nil
			curStep = e.Step
		}
		cur = append(cur, e)
	}
	if len(cur) > 0 {
		steps = append(steps, cur)
	}
	return steps
}

// FilterByRole returns every message with the given role, in arrival order.
func (t *Transcript) FilterByRole(role Role) []Message {
	var out []Message
	for _, e := range t.entries {
		if e.Message.Role == role {
			out = append(out, e.Message)
		}
	}
	return out
}

// LastStep returns the highest step id appended so far, or -1 if the
// transcript is empty.
func (t *Transcript) LastStep() int {
	if len(t.entries) == 0 {
		return -1
	}
	return t.entries[len(t.entries)-1].Step
}
