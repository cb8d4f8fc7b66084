// Package faults turns errors and recovered panics into structured,
// sanitized error records.
package faults

import (
	"errors"
	"fmt"
	"strings"

	"github.com/plexsphere/plexapm/internal/filter"
	"github.com/plexsphere/plexapm/internal/location"
	"github.com/plexsphere/plexapm/internal/sample"
)

// PanicError wraps a value recovered from a panic together with the stack of
// the panicking goroutine.
type PanicError struct {
	Value  any
	frames []location.Frame
}

// Recovered wraps v, the result of recover(). It must be called from the
// deferred function that recovered v so the panic site stays on the stack.
func Recovered(v any) *PanicError {
	return &PanicError{Value: v, frames: trimPanic(location.Callers(1))}
}

// Error implements error.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Frames returns the stack captured at recovery, starting at the panic site.
func (e *PanicError) Frames() []location.Frame {
	return e.frames
}

// trimPanic drops the deferred function and the runtime's panic machinery so
// the first frame is the one that panicked.
func trimPanic(frames []location.Frame) []location.Frame {
	for i, f := range frames {
		if f.Function != "runtime.gopanic" {
			continue
		}
		rest := frames[i+1:]
		for len(rest) > 1 && isRuntime(rest[0].Function) {
			rest = rest[1:]
		}
		return rest
	}
	return frames
}

func isRuntime(fn string) bool {
	return strings.HasPrefix(fn, "runtime.")
}

// stackTracer is implemented by errors that carry their own stack.
type stackTracer interface {
	Frames() []location.Frame
}

// Context carries request data attached to request errors.
type Context struct {
	Parameters  map[string]any
	Session     map[string]any
	Environment map[string]any
}

// Capturer builds error records. It is safe for concurrent use.
type Capturer struct {
	appRoot string
	ignored *IgnoreSet
	filter  *filter.Filter
}

// NewCapturer creates a Capturer. A nil ignored set or filter selects an
// empty set and the default sensitive names respectively.
func NewCapturer(appRoot string, ignored *IgnoreSet, f *filter.Filter) *Capturer {
	if ignored == nil {
		ignored = NewIgnoreSet()
	}
	if f == nil {
		f = filter.New(nil)
	}
	return &Capturer{appRoot: appRoot, ignored: ignored, filter: f}
}

// Ignored reports whether err's class is in the ignored set.
func (c *Capturer) Ignored(err error) bool {
	return c.ignored.Contains(ClassOf(err))
}

// IgnoreSet returns the set consulted by Ignored.
func (c *Capturer) IgnoreSet() *IgnoreSet {
	return c.ignored
}

// CaptureRequestError builds a record for a fault raised inside a measured
// scope. It returns nil when err is nil or ignored. It never alters err.
func (c *Capturer) CaptureRequestError(err error, ec *Context) *sample.ErrorRecord {
	if err == nil || c.Ignored(err) {
		return nil
	}
	rec := c.build(err, nil)
	if ec != nil {
		rec.Parameters = c.filter.FilterParameters(ec.Parameters)
		rec.Session = c.filter.FilterParameters(ec.Session)
		rec.EnvironmentVariables = c.filter.FilterEnvironment(ec.Environment)
	}
	return rec
}

// CaptureStandalone builds a record for a fault reported outside of any
// measurement. It returns nil when err is nil or ignored.
func (c *Capturer) CaptureStandalone(err error, extra map[string]any) *sample.ErrorRecord {
	if err == nil || c.Ignored(err) {
		return nil
	}
	return c.build(err, c.filter.FilterParameters(extra))
}

func (c *Capturer) build(err error, extra map[string]any) *sample.ErrorRecord {
	frames := c.frames(err)
	where := location.MostRelevant(frames, c.appRoot)
	return &sample.ErrorRecord{
		Method:       where.Method(),
		Line:         where.Line,
		File:         location.RelativePath(where.File, c.appRoot),
		Message:      message(err),
		Backtrace:    location.Strings(frames),
		Exception:    ClassOf(err),
		ExtraDetails: extra,
	}
}

func (c *Capturer) frames(err error) []location.Frame {
	var st stackTracer
	if errors.As(err, &st) {
		if frames := st.Frames(); len(frames) > 0 {
			return frames
		}
	}
	// No stack on the error: use the capture site, minus this module.
	return location.Application(location.Callers(0))
}

func message(err error) string {
	if p, ok := err.(*PanicError); ok {
		if inner, ok := p.Value.(error); ok {
			return inner.Error()
		}
		return fmt.Sprint(p.Value)
	}
	return err.Error()
}
