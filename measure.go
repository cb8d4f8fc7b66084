package plexapm

import (
	"context"

	"github.com/plexsphere/plexapm/internal/measure"
	"github.com/plexsphere/plexapm/internal/state"
)

// Measurement is the handle of a root measurement returned by Begin. An
// inactive Measurement, returned when ctx is already being measured or the
// client is closed, ignores every call.
type Measurement struct {
	root *measure.Root
}

// Active reports whether the handle owns a measurement.
func (m *Measurement) Active() bool {
	return m.root.Active()
}

// SetName replaces the measurement name.
func (m *Measurement) SetName(name string) {
	m.root.SetName(name)
}

// SetPath sets the request path reported with request samples.
func (m *Measurement) SetPath(path string) {
	m.root.SetPath(path)
}

// SetErrorContext attaches request data reported with a captured error.
func (m *Measurement) SetErrorContext(ec *ErrorContext) {
	m.root.SetErrorContext(ec)
}

// End finishes the measurement and hands the sample to the dispatcher. A
// non-nil fault that is not ignored is reported with the sample. End never
// alters fault; the caller keeps propagating it.
func (m *Measurement) End(fault error) {
	m.root.End(fault)
}

// Begin starts a root measurement of the given kind on ctx's execution
// context, attaching one to the returned context when ctx has none. Only the
// outermost Begin on a context is measured.
func (c *Client) Begin(ctx context.Context, kind Kind, name string) (context.Context, *Measurement) {
	ctx, id := state.Ensure(ctx)
	if c.closed.Load() {
		return ctx, &Measurement{root: &measure.Root{}}
	}
	return ctx, &Measurement{root: c.tracker.BeginRoot(id, kind, name)}
}

// MeasureRequest runs fn as a request measurement. An error returned by fn
// is recorded and returned unchanged; a panic is recorded and re-raised with
// its original value.
func (c *Client) MeasureRequest(ctx context.Context, name string, fn func(context.Context) error) error {
	return c.measureRoot(ctx, KindRequest, name, fn)
}

// MeasureJob runs fn as a job measurement, like MeasureRequest.
func (c *Client) MeasureJob(ctx context.Context, name string, fn func(context.Context) error) error {
	return c.measureRoot(ctx, KindJob, name, fn)
}

func (c *Client) measureRoot(ctx context.Context, kind Kind, name string, fn func(context.Context) error) error {
	ctx, m := c.Begin(ctx, kind, name)
	defer func() {
		if v := recover(); v != nil {
			m.End(Recovered(v))
			panic(v)
		}
	}()
	err := fn(ctx)
	m.End(err)
	return err
}

// Measure runs fn as a job when ctx is not being measured, and as a nested
// section of kind "code" otherwise.
func (c *Client) Measure(ctx context.Context, name string, fn func(context.Context) error) error {
	if c.Active(ctx) {
		return c.MeasureSection(ctx, name, SectionCode, fn)
	}
	return c.MeasureJob(ctx, name, fn)
}

// MeasureSection runs fn as a nested section. Outside a measurement fn runs
// unmeasured. The section is closed when fn returns or panics.
func (c *Client) MeasureSection(ctx context.Context, name, kind string, fn func(context.Context) error) error {
	end := c.BeginSection(ctx, name, kind)
	defer end()
	return fn(ctx)
}

// BeginSection opens a nested section and returns the function closing it.
// It is meant for hook-style integrations that observe start and end as
// separate events. Each end closes its own section, so sections opened from
// concurrent goroutines sharing ctx may end in any order.
func (c *Client) BeginSection(ctx context.Context, name, kind string) (end func()) {
	return c.beginSection(ctx, name, kind, false)
}

// BeginGuardedSection is BeginSection except that nothing is opened when the
// innermost open section already has the same kind. Wrappers that may be
// stacked on top of each other use it to count one call.
func (c *Client) BeginGuardedSection(ctx context.Context, name, kind string) (end func()) {
	return c.beginSection(ctx, name, kind, true)
}

func (c *Client) beginSection(ctx context.Context, name, kind string, guard bool) func() {
	id, ok := state.FromContext(ctx)
	if !ok {
		return func() {}
	}
	open := c.tracker.BeginNested(id, name, kind, guard)
	if open == nil {
		return func() {}
	}
	return func() { c.tracker.EndNested(id, open) }
}

// RecordQuery adds q to the measurement in ctx. It does nothing outside a
// measurement.
func (c *Client) RecordQuery(ctx context.Context, q Query) {
	if id, ok := state.FromContext(ctx); ok {
		c.tracker.RecordQuery(id, q)
	}
}

// RecordView adds a template render to the measurement in ctx.
func (c *Client) RecordView(ctx context.Context, v View) {
	if id, ok := state.FromContext(ctx); ok {
		c.tracker.RecordView(id, v)
	}
}

// CaptureError attaches err, and ec when non-nil, to the measurement in ctx
// and returns err unchanged for the caller to propagate. The first error
// attached to a measurement wins.
func (c *Client) CaptureError(ctx context.Context, err error, ec *ErrorContext) error {
	id, ok := state.FromContext(ctx)
	if !ok || err == nil {
		return err
	}
	if ec != nil {
		c.tracker.SetErrorContext(id, ec)
	}
	c.tracker.CaptureError(id, err)
	return err
}

// ReportError sends err to the collector right away, independent of any
// measurement, and returns it. Ignored errors are not sent.
func (c *Client) ReportError(err error, extra map[string]any) error {
	if err == nil {
		return nil
	}
	c.tracker.ReportError(err, extra)
	return err
}

// CatchError runs fn and reports the error it returns, or the panic it
// raises, like ReportError. The panic is not re-raised; it is returned as a
// *PanicError instead.
func (c *Client) CatchError(extra map[string]any, fn func() error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = c.ReportError(Recovered(v), extra)
		}
	}()
	return c.ReportError(fn(), extra)
}
