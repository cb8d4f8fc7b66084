package measure

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/plexsphere/plexapm/internal/aggregate"
	"github.com/plexsphere/plexapm/internal/faults"
	"github.com/plexsphere/plexapm/internal/location"
	"github.com/plexsphere/plexapm/internal/sample"
	"github.com/plexsphere/plexapm/internal/state"
)

// Sink receives finalized payloads.
type Sink interface {
	Send(path string, payload any)
}

// RequestRecorder keeps finalized request samples for local inspection.
type RequestRecorder interface {
	Push(s sample.RequestSample)
}

// Tracker owns the per-context state and turns events into samples.
type Tracker struct {
	cfg      Config
	store    *state.Store
	rules    *aggregate.Rules
	capturer *faults.Capturer
	sink     Sink
	recorder RequestRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewTracker creates a Tracker. Config defaults are applied automatically; a
// nil recorder disables local sample retention.
func NewTracker(cfg Config, capturer *faults.Capturer, sink Sink, recorder RequestRecorder, logger *slog.Logger) *Tracker {
	cfg.ApplyDefaults()
	return &Tracker{
		cfg:      cfg,
		store:    state.NewStore(),
		rules:    aggregate.NewRules(cfg.MeaninglessQueries),
		capturer: capturer,
		sink:     sink,
		recorder: recorder,
		logger:   logger.With("component", "measure"),
		now:      time.Now,
	}
}

// Capturer returns the error capturer used for request and standalone errors.
func (t *Tracker) Capturer() *faults.Capturer {
	return t.capturer
}

// Live returns the number of contexts holding state. It drops back to zero
// once every measurement has ended.
func (t *Tracker) Live() int {
	return t.store.Len()
}

// Active reports whether id has a root measurement in progress.
func (t *Tracker) Active(id state.ContextID) bool {
	e, ok := t.store.Lookup(id)
	return ok && e.Active()
}

// BeginRoot starts a root measurement on id. When id already has one, the
// returned Root is an inactive sentinel whose methods do nothing.
func (t *Tracker) BeginRoot(id state.ContextID, kind sample.Kind, name string) *Root {
	e := t.store.GetOrCreate(id)
	if !e.Start(kind, name, t.now()) {
		return &Root{}
	}
	return &Root{tracker: t, id: id, entry: e}
}

// BeginNested opens a section on id and returns it for EndNested. It returns
// nil when nothing was pushed, which happens outside a root measurement and
// when guard suppresses the section.
func (t *Tracker) BeginNested(id state.ContextID, name, kind string, guard bool) (open *state.OpenSection) {
	defer t.recoverHook("begin_nested")
	e, ok := t.store.Lookup(id)
	if !ok {
		return nil
	}
	return e.Push(name, kind, guard, t.now())
}

// EndNested closes the section returned by BeginNested, whichever sections
// opened after it are still open.
func (t *Tracker) EndNested(id state.ContextID, open *state.OpenSection) {
	defer t.recoverHook("end_nested")
	if open == nil {
		return
	}
	if e, ok := t.store.Lookup(id); ok {
		e.Pop(open, t.now())
	}
}

// RecordQuery adds q to the active measurement on id. A query without a file
// is attributed to the application frame that issued it.
func (t *Tracker) RecordQuery(id state.ContextID, q sample.Query) {
	defer t.recoverHook("record_query")
	e, ok := t.store.Lookup(id)
	if !ok || !e.Active() {
		return
	}
	if q.File == "" {
		q.File, q.Line = t.caller()
	}
	e.Update(func(r *sample.Record) {
		r.Queries = t.rules.RecordQuery(r.Queries, q)
	})
}

// RecordView adds a template render to the active measurement on id.
func (t *Tracker) RecordView(id state.ContextID, v sample.View) {
	defer t.recoverHook("record_view")
	e, ok := t.store.Lookup(id)
	if !ok || !e.Active() {
		return
	}
	if v.File == "" {
		v.File, v.Line = t.caller()
	}
	e.Update(func(r *sample.Record) {
		r.Views = aggregate.RecordView(r.Views, v)
	})
}

// SetErrorContext attaches request data to the active measurement on id.
func (t *Tracker) SetErrorContext(id state.ContextID, ec *faults.Context) {
	if e, ok := t.store.Lookup(id); ok {
		e.SetErrorContext(ec)
	}
}

// CaptureError attaches err to the active measurement on id unless it is
// ignored or an error is already attached. It reports whether err was
// attached.
func (t *Tracker) CaptureError(id state.ContextID, err error) (attached bool) {
	defer t.recoverHook("capture_error")
	e, ok := t.store.Lookup(id)
	if !ok || err == nil || !e.Active() {
		return false
	}
	rec := t.capturer.CaptureRequestError(err, e.ErrorContext())
	if rec == nil {
		return false
	}
	e.Update(func(r *sample.Record) {
		if r.Error == nil {
			r.Error = rec
			attached = true
		}
	})
	return attached
}

// ReportError sends err to the errors resource right away, independent of
// any measurement. It returns the record sent, or nil when err is nil or
// ignored.
func (t *Tracker) ReportError(err error, extra map[string]any) (rec *sample.ErrorRecord) {
	defer t.recoverHook("report_error")
	rec = t.capturer.CaptureStandalone(err, extra)
	if rec == nil {
		return nil
	}
	t.sink.Send(sample.PathErrors, sample.ErrorPayload{Error: *rec})
	return rec
}

func (t *Tracker) caller() (string, int) {
	f := location.Caller(t.cfg.AppRoot)
	return location.RelativePath(f.File, t.cfg.AppRoot), f.Line
}

// recoverHook keeps internal failures away from the producer. It must be
// deferred directly.
func (t *Tracker) recoverHook(op string) {
	if v := recover(); v != nil {
		t.logger.Error("measurement hook panicked",
			"op", op,
			"error", fmt.Sprint(v),
			"stack", string(debug.Stack()),
		)
	}
}
