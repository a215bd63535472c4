package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// NewRelicContextKey is the context key holding the *newrelic.Application
// custom metrics are recorded against.
type NewRelicContextKey struct{}

// WithApplication returns a context that records custom metrics to app.
func WithApplication(ctx context.Context, app *newrelic.Application) context.Context {
	return context.WithValue(ctx, NewRelicContextKey{}, app)
}

// RecordCount records a count metric
func RecordCount(ctx context.Context, metricName string, count uint64) {
	nr, ok := ctx.Value(NewRelicContextKey{}).(*newrelic.Application)
	if ok && nr != nil {
		nr.RecordCustomMetric(metricName, float64(count))
	}
}

// RecordDuration records a duration metric
func RecordDuration(ctx context.Context, metricName string, duration time.Duration) {
	nr, ok := ctx.Value(NewRelicContextKey{}).(*newrelic.Application)
	if ok && nr != nil {
		nr.RecordCustomMetric(metricName, float64(duration/time.Millisecond))
	}
}

// TraceMethodCall traces a method call with a given struct/package and method
// names. It returns nil when ctx carries no transaction; every MethodTracer
// method is safe to call on nil.
func TraceMethodCall(ctx context.Context, structOrPackageName, methodName string) *MethodTracer {
	txn := newrelic.FromContext(ctx)
	if txn == nil {
		return nil
	}

	seg := txn.StartSegment(fmt.Sprintf("%s %s", structOrPackageName, methodName))

	return &MethodTracer{
		txn: txn,
		seg: seg,
	}
}

// MethodTracer collects analytics for a given method call within an existing
// trace.
type MethodTracer struct {
	txn *newrelic.Transaction
	seg *newrelic.Segment
}

// AddAttribute adds a key-value pair metadata to the method trace
func (t *MethodTracer) AddAttribute(key string, value interface{}) {
	if t == nil {
		return
	}

	t.seg.AddAttribute(key, value)
}

// OnStatus records a program status. Nonzero statuses are noticed as errors.
func (t *MethodTracer) OnStatus(status uint64) {
	if t == nil {
		return
	}

	t.seg.AddAttribute("status", fmt.Sprintf("%#x", status))
	if status != 0 {
		t.txn.NoticeError(fmt.Errorf("program status %#x", status))
	}
}

// OnError observes an error within a method trace
func (t *MethodTracer) OnError(err error) {
	if t == nil || err == nil {
		return
	}

	t.txn.NoticeError(err)
}

// End completes the trace for the method call.
func (t *MethodTracer) End() {
	if t == nil {
		return
	}

	t.seg.End()
}
