package measure

import (
	"github.com/plexsphere/plexapm/internal/aggregate"
	"github.com/plexsphere/plexapm/internal/faults"
	"github.com/plexsphere/plexapm/internal/sample"
	"github.com/plexsphere/plexapm/internal/state"
)

// Root is the handle of a root measurement. The zero Root is the inactive
// sentinel returned for reentrant begins; all of its methods are no-ops.
type Root struct {
	tracker *Tracker
	id      state.ContextID
	entry   *state.Entry
}

// Active reports whether this handle owns a measurement.
func (r *Root) Active() bool {
	return r != nil && r.entry != nil
}

// ID returns the execution context the measurement belongs to.
func (r *Root) ID() state.ContextID {
	if r == nil {
		return ""
	}
	return r.id
}

// SetName replaces the measurement name, e.g. once a router resolved the route.
func (r *Root) SetName(name string) {
	if !r.Active() {
		return
	}
	r.entry.Update(func(rec *sample.Record) { rec.Name = name })
}

// SetPath sets the request path reported with request samples.
func (r *Root) SetPath(path string) {
	if !r.Active() {
		return
	}
	r.entry.Update(func(rec *sample.Record) { rec.Path = path })
}

// SetErrorContext attaches request data reported with a captured error.
func (r *Root) SetErrorContext(ec *faults.Context) {
	if !r.Active() {
		return
	}
	r.entry.SetErrorContext(ec)
}

// End finishes the measurement. A non-nil fault that is not ignored becomes
// the record's error unless one is already attached. The sample is handed to
// the sink and the context's state is released in every case. End never
// alters or consumes fault.
func (r *Root) End(fault error) {
	if !r.Active() {
		return
	}
	t := r.tracker
	defer t.store.Clear(r.id)
	defer t.recoverHook("end")

	rec, ec, ok := r.entry.Finish(t.now())
	if !ok {
		return
	}
	if fault != nil && rec.Error == nil {
		rec.Error = t.capturer.CaptureRequestError(fault, ec)
	}
	t.finalize(rec)
}

// finalize computes the derived runtimes and dispatches rec.
func (t *Tracker) finalize(rec *sample.Record) {
	rec.DBRuntime = aggregate.TotalRuntime(rec.Queries)
	rec.ViewRuntime = aggregate.TotalRuntime(rec.Views)
	rec.OtherRuntime = max(0, rec.Runtime-rec.DBRuntime-rec.ViewRuntime)

	queries := aggregate.TopN(rec.Queries, t.cfg.TopN)
	sections := sample.Sections(rec.Sections)

	switch rec.Kind {
	case sample.KindRequest:
		s := sample.RequestSample{
			Name:         rec.Name,
			Path:         rec.Path,
			StartedAt:    rec.StartedAt.UnixMilli(),
			Runtime:      rec.Runtime,
			DBRuntime:    rec.DBRuntime,
			ViewRuntime:  rec.ViewRuntime,
			OtherRuntime: rec.OtherRuntime,
			Queries:      queries,
			Sections:     sections,
			Views:        sample.Views(aggregate.TopN(aggregate.ViewsByFile(rec.Views), t.cfg.TopN)),
			Error:        rec.Error,
		}
		t.sink.Send(sample.PathRequests, sample.RequestPayload{Request: s})
		if t.recorder != nil {
			t.recorder.Push(s)
		}
	default:
		t.sink.Send(sample.PathJobs, sample.JobPayload{Job: sample.JobSample{
			Name:      rec.Name,
			StartedAt: rec.StartedAt.UnixMilli(),
			Runtime:   rec.Runtime,
			Queries:   queries,
			Sections:  sections,
			Error:     rec.Error,
		}})
	}
}
