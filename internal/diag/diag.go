// Package diag carries the per-question diagnostic context through the
// pipeline: the question ID, a logger bound to the question, and the
// ordered list of stage events recorded while answering it.
//
// Every method is safe on a nil *Context, which discards.
package diag

import (
	"fmt"
	"log/slog"
	"sync"
)

// Event is one recorded pipeline observation.
type Event struct {
	Stage   string         `json:"stage"`
	Message string         `json:"message"`
	Detail  map[string]any `json:"detail,omitempty"`
}

// Context is the request-scoped diagnostic context for one question.
type Context struct {
	QuestionID string
	Question   string
	Domain     string

	logger *slog.Logger

	mu     sync.Mutex
	events []Event
}

// New creates a Context whose logger carries the question attributes.
func New(logger *slog.Logger, questionID, question, domain string) *Context {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Context{
		QuestionID: questionID,
		Question:   question,
		Domain:     domain,
		logger: logger.With(
			slog.String("question_id", questionID),
			slog.String("question", question),
			slog.String("domain", domain),
		),
	}
}

// Logger returns the question-scoped logger.
func (c *Context) Logger() *slog.Logger {
	if c == nil || c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// Record logs a debug line and appends an event. args are slog-style
// key/value pairs.
func (c *Context) Record(stage, msg string, args ...any) {
	if c == nil {
		return
	}
	c.Logger().Debug(msg, append([]any{slog.String("stage", stage)}, args...)...)
	c.append(Event{Stage: stage, Message: msg, Detail: detail(args)})
}

// Drop records something discarded along the way: an unknown column, an
// unresolved candidate, a below-threshold entity. Drops log at info.
func (c *Context) Drop(stage, what, reason string) {
	if c == nil {
		return
	}
	c.Logger().Info("dropped", slog.String("stage", stage), slog.String("item", what), slog.String("reason", reason))
	c.append(Event{Stage: stage, Message: "dropped " + what, Detail: map[string]any{"reason": reason}})
}

// Warn logs a warning and records it.
func (c *Context) Warn(stage, msg string, args ...any) {
	if c == nil {
		return
	}
	c.Logger().Warn(msg, append([]any{slog.String("stage", stage)}, args...)...)
	c.append(Event{Stage: stage, Message: msg, Detail: detail(args)})
}

// Events returns a copy of the recorded events in order.
func (c *Context) Events() []Event {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func (c *Context) append(e Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

func detail(args []any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	out := make(map[string]any, len(args)/2)
	for i := 0; i < len(args); i++ {
		switch a := args[i].(type) {
		case slog.Attr:
			out[a.Key] = a.Value.Any()
		case string:
			if i+1 < len(args) {
				out[a] = args[i+1]
				i++
			} else {
				out["!BADKEY"] = a
			}
		default:
			out["!BADKEY"] = fmt.Sprint(a)
		}
	}
	return out
}
