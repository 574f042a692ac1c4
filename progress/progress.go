// Package progress tracks the single latest (progress, step, message)
// tuple for a running analysis and fans it out to an optional callback,
// narrowed from moonraker/websocket.go's WSHub broadcast-to-N-clients
// idiom down to "call one optional callback" — the analyzer has exactly
// one consumer per run, not a set of subscribers.
package progress

import (
	"strings"
	"sync"
)

// streamBufferChars is the rolling buffer size shown for streaming
// updates (§4.11).
const streamBufferChars = 150

// Update is one reported progress tuple.
type Update struct {
	Progress         float64 // 0.0-1.0
	Step             string
	Message          string
	Details          map[string]any
	Streaming        bool
	StreamingContent string
}

// Callback receives every Update as it is produced.
type Callback func(Update)

// Tracker holds the latest Update and an optional Callback.
type Tracker struct {
	mu       sync.Mutex
	latest   Update
	callback Callback
	buffer   strings.Builder
}

// New builds a Tracker. callback may be nil.
func New(callback Callback) *Tracker {
	return &Tracker{callback: callback}
}

// Update reports a discrete (non-streaming) progress event.
func (t *Tracker) Update(progress float64, step, message string, details map[string]any) {
	t.mu.Lock()
	t.buffer.Reset()
	u := Update{Progress: clamp(progress), Step: step, Message: message, Details: details}
	t.latest = u
	cb := t.callback
	t.mu.Unlock()

	if cb != nil {
		cb(u)
	}
}

// StreamUpdate appends chunk to the rolling buffer and emits an update
// with Streaming=true, whose StreamingContent is the last
// streamBufferChars characters with newlines collapsed to spaces.
func (t *Tracker) StreamUpdate(progress float64, step, chunk, message string) {
	t.mu.Lock()
	t.buffer.WriteString(chunk)
	content := collapseNewlines(lastNChars(t.buffer.String(), streamBufferChars))
	u := Update{Progress: clamp(progress), Step: step, Message: message, Streaming: true, StreamingContent: content}
	t.latest = u
	cb := t.callback
	t.mu.Unlock()

	if cb != nil {
		cb(u)
	}
}

// Latest returns the most recently reported Update.
func (t *Tracker) Latest() Update {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest
}

// ChunkFunc returns a closure bound to a fixed (progress, step) pair,
// suitable for handing to an LLM streaming call as its chunk callback.
func (t *Tracker) ChunkFunc(progressValue float64, step string) func(chunk string) {
	return func(chunk string) {
		t.StreamUpdate(progressValue, step, chunk, "")
	}
}

func clamp(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

func lastNChars(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

func collapseNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
