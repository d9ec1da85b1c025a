package alerts

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/pricewatch/internal/failure"
)

type sinkFunc func(ctx context.Context, inc Incident) error

func (f sinkFunc) Notify(ctx context.Context, inc Incident) error { return f(ctx, inc) }

func newTestReporter(sinks ...Sink) *Reporter {
	r := NewReporter(sinks...)
	r.now = func() time.Time { return time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC) }
	r.stack = func() []byte { return []byte(strings.Repeat("x", 3000)) }
	return r
}

func TestReport_FansOutToEverySink(t *testing.T) {
	var got []Incident
	record := sinkFunc(func(_ context.Context, inc Incident) error {
		got = append(got, inc)
		return nil
	})
	failing := sinkFunc(func(context.Context, Incident) error { return errors.New("slack down") })

	r := newTestReporter(failing, record, nil)
	r.Report(context.Background(), "monitor", failure.Newf(failure.CodePersistence, "store.append", "disk full"))

	require.Len(t, got, 1)
	inc := got[0]
	require.Equal(t, "monitor", inc.Where)
	require.Equal(t, failure.CodePersistence, inc.Code)
	require.Contains(t, inc.Message, "disk full")
	require.Len(t, inc.Stack, stackLimit)
}

func TestReport_NilErrorIsIgnored(t *testing.T) {
	called := false
	r := newTestReporter(sinkFunc(func(context.Context, Incident) error { called = true; return nil }))
	r.Report(context.Background(), "bot", nil)
	require.False(t, called)
}

func TestReport_NilReporterOnlyLogs(t *testing.T) {
	var r *Reporter
	r.Report(context.Background(), "bot", errors.New("boom"))
	r.ReportPanic(context.Background(), "bot", "boom")
}

func TestReportPanic_IsCritical(t *testing.T) {
	var got Incident
	r := newTestReporter(sinkFunc(func(_ context.Context, inc Incident) error { got = inc; return nil }))
	r.ReportPanic(context.Background(), "monitor.cycle", "index out of range")

	require.Equal(t, failure.CodeCritical, got.Code)
	require.Equal(t, "index out of range", got.Message)
}

func TestIncidentText(t *testing.T) {
	inc := Incident{
		Where:   "MAIN_LOOP",
		Code:    failure.CodeTransient,
		Message: "GET `x`: timeout",
		Stack:   "goroutine 1",
		At:      time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC),
	}
	txt := inc.Text()
	require.True(t, strings.HasPrefix(txt, "🚨 *CRITICAL ERROR in MAIN_LOOP!* 🚨\n"))
	require.Contains(t, txt, "⏰ Time: `05/03/2024 09:30:00`")
	require.Contains(t, txt, "🐞 Type: `TRANSIENT`")
	require.Contains(t, txt, "💬 Message: `GET 'x': timeout`")
	require.Contains(t, txt, "```\ngoroutine 1...```")
}
