package claude

import (
	"encoding/json"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Events observed while the CLI runs
// ---------------------------------------------------------------------------

// EventKind classifies runner events.
type EventKind int

const (
	EventToolStart EventKind = iota // the CLI began executing a tool
	EventToolDone                   // a tool finished
)

// Event carries data for a single runner event.
type Event struct {
	Kind     EventKind
	ToolName string
	Output   string        // EventToolDone, truncated
	Duration time.Duration // EventToolDone
}

// EventFunc is the callback signature for event delivery. Called
// synchronously from Run's goroutine.
type EventFunc func(Event)

// ToolCall records one completed tool invocation.
type ToolCall struct {
	ID       string
	Name     string
	Output   string
	Duration time.Duration
}

// Result is the final outcome of one CLI invocation.
type Result struct {
	Text         string
	ToolCalls    []ToolCall
	InputTokens  int
	OutputTokens int
}

// ---------------------------------------------------------------------------
// stream-json parsing
// ---------------------------------------------------------------------------

// streamEvent mirrors the subset of the CLI's stream-json output we consume.
type streamEvent struct {
	Type    string `json:"type"`
	Message struct {
		Content []contentBlock `json:"content"`
	} `json:"message"`
	Result string      `json:"result"`
	Usage  streamUsage `json:"usage"`
}

type contentBlock struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Text      string          `json:"text"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
}

type streamUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}

type pendingTool struct {
	startedAt time.Time
	call      ToolCall
}

// streamParser consumes stream-json lines and accumulates the final result.
// Non-JSON lines and unknown event types are ignored.
type streamParser struct {
	onEvent EventFunc
	now     func() time.Time

	pending   map[string]pendingTool
	completed []ToolCall
	textParts []string

	resultText string
	usage      streamUsage
	sawUsage   bool
}

func newStreamParser(onEvent EventFunc) *streamParser {
	return &streamParser{
		onEvent: onEvent,
		now:     time.Now,
		pending: map[string]pendingTool{},
	}
}

// Feed processes one line of CLI stdout.
func (p *streamParser) Feed(line []byte) {
	var evt streamEvent
	if err := json.Unmarshal(line, &evt); err != nil {
		return
	}

	switch evt.Type {
	case "assistant":
		for _, block := range evt.Message.Content {
			switch block.Type {
			case "text":
				if block.Text != "" {
					p.textParts = append(p.textParts, block.Text)
				}
			case "tool_use":
				p.pending[block.ID] = pendingTool{
					startedAt: p.now(),
					call:      ToolCall{ID: block.ID, Name: block.Name},
				}
				p.emit(Event{Kind: EventToolStart, ToolName: block.Name})
			}
		}

	case "user":
		for _, block := range evt.Message.Content {
			if block.Type != "tool_result" {
				continue
			}
			pt, ok := p.pending[block.ToolUseID]
			if !ok {
				continue
			}
			delete(p.pending, block.ToolUseID)
			pt.call.Output = truncate(toolResultText(block.Content), 200)
			pt.call.Duration = p.now().Sub(pt.startedAt)
			p.completed = append(p.completed, pt.call)
			p.emit(Event{
				Kind:     EventToolDone,
				ToolName: pt.call.Name,
				Output:   pt.call.Output,
				Duration: pt.call.Duration,
			})
		}

	case "result":
		p.resultText = evt.Result
		p.usage = evt.Usage
		p.sawUsage = true
	}
}

// Result assembles the final result from everything fed so far. It is safe
// to call after an aborted run; whatever text arrived is returned.
func (p *streamParser) Result() *Result {
	text := strings.Join(p.textParts, "\n")
	if text == "" {
		text = p.resultText
	}
	res := &Result{
		Text:      text,
		ToolCalls: p.completed,
	}
	if p.sawUsage {
		res.InputTokens = p.usage.InputTokens + p.usage.CacheCreationInputTokens + p.usage.CacheReadInputTokens
		res.OutputTokens = p.usage.OutputTokens
	}
	return res
}

func (p *streamParser) emit(evt Event) {
	if p.onEvent != nil {
		p.onEvent(evt)
	}
}

// toolResultText extracts a printable string from a tool_result content
// field, which the CLI emits either as a plain string or as a block array.
func toolResultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &blocks); err == nil {
		var parts []string
		for _, b := range blocks {
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
