// Package alerts reports incidents that need an operator's attention.
package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/pricewatch/internal/failure"
)

// stackLimit caps the stack excerpt carried by an incident.
const stackLimit = 1000

// Incident is one reported failure.
type Incident struct {
	Where   string
	Code    failure.Code
	Message string
	Stack   string
	At      time.Time
}

// Text renders the incident for a chat message in legacy Markdown.
func (i Incident) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚨 *CRITICAL ERROR in %s!* 🚨\n", i.Where)
	fmt.Fprintf(&b, "⏰ Time: `%s`\n", i.At.Format("02/01/2006 15:04:05"))
	fmt.Fprintf(&b, "🐞 Type: `%s`\n", i.Code)
	fmt.Fprintf(&b, "💬 Message: `%s`\n", strings.ReplaceAll(i.Message, "`", "'"))
	if i.Stack != "" {
		fmt.Fprintf(&b, "\n--- STACK ---\n```\n%s...```", strings.ReplaceAll(i.Stack, "```", "'''"))
	}
	return b.String()
}

// Sink delivers an incident somewhere a human will see it.
type Sink interface {
	Notify(ctx context.Context, inc Incident) error
}

// Reporter fans incidents out to every sink. A nil *Reporter only logs.
type Reporter struct {
	sinks []Sink
	now   func() time.Time
	stack func() []byte
}

func NewReporter(sinks ...Sink) *Reporter {
	r := &Reporter{now: time.Now, stack: debug.Stack}
	for _, s := range sinks {
		if s != nil {
			r.sinks = append(r.sinks, s)
		}
	}
	return r
}

// Report captures err with its context and delivers it. Sink failures are
// logged and never returned.
func (r *Reporter) Report(ctx context.Context, where string, err error) {
	if err == nil {
		return
	}
	slog.Error("incident", "where", where, "code", failure.CodeOf(err), "error", err)
	if r == nil {
		return
	}
	r.deliver(ctx, r.incident(where, failure.CodeOf(err), err.Error()))
}

// ReportPanic reports a recovered panic value.
func (r *Reporter) ReportPanic(ctx context.Context, where string, v any) {
	slog.Error("panic recovered", "where", where, "panic", v)
	if r == nil {
		return
	}
	r.deliver(ctx, r.incident(where, failure.CodeCritical, fmt.Sprint(v)))
}

func (r *Reporter) incident(where string, code failure.Code, msg string) Incident {
	stack := string(r.stack())
	if len(stack) > stackLimit {
		stack = stack[:stackLimit]
	}
	return Incident{Where: where, Code: code, Message: msg, Stack: stack, At: r.now()}
}

func (r *Reporter) deliver(ctx context.Context, inc Incident) {
	for _, s := range r.sinks {
		if err := s.Notify(ctx, inc); err != nil {
			slog.Warn("incident notification failed", "where", inc.Where, "error", err)
		}
	}
}
