package faults

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/plexsphere/plexapm/internal/filter"
	"github.com/plexsphere/plexapm/internal/location"
)

type stackErr struct {
	msg    string
	frames []location.Frame
}

func (e *stackErr) Error() string            { return e.msg }
func (e *stackErr) Frames() []location.Frame { return e.frames }

type quotaErr struct{}

func (e *quotaErr) Error() string          { return "quota exceeded" }
func (e *quotaErr) ExceptionClass() string { return "QuotaExceeded" }

func panicky() {
	panic("boom")
}

func thisDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Dir(file)
}

func TestClassOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"errors.New", errors.New("x"), "*errors.errorString"},
		{"wrapped", fmt.Errorf("ctx: %w", errors.New("x")), "*fmt.wrapError"},
		{"classifier", &quotaErr{}, "QuotaExceeded"},
		{"panic string", &PanicError{Value: "boom"}, "panic"},
		{"panic error", &PanicError{Value: &quotaErr{}}, "QuotaExceeded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassOf(tt.err); got != tt.want {
				t.Errorf("ClassOf = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIgnoreSet(t *testing.T) {
	s := NewIgnoreSet("B", "A")
	s.Add("C")
	s.Remove("B")
	if !s.Contains("A") || s.Contains("B") {
		t.Errorf("Contains: A=%v B=%v", s.Contains("A"), s.Contains("B"))
	}
	if got, want := s.List(), []string{"A", "C"}; !reflect.DeepEqual(got, want) {
		t.Errorf("List = %v, want %v", got, want)
	}
}

func TestCaptureRequestError_Ignored(t *testing.T) {
	c := NewCapturer("", NewIgnoreSet("QuotaExceeded"), nil)
	if rec := c.CaptureRequestError(&quotaErr{}, nil); rec != nil {
		t.Errorf("CaptureRequestError = %+v, want nil", rec)
	}
	if rec := c.CaptureStandalone(&quotaErr{}, nil); rec != nil {
		t.Errorf("CaptureStandalone = %+v, want nil", rec)
	}
	if rec := c.CaptureRequestError(nil, nil); rec != nil {
		t.Errorf("CaptureRequestError(nil) = %+v, want nil", rec)
	}
}

func TestCaptureRequestError_PrefersAppRootFrame(t *testing.T) {
	err := &stackErr{
		msg: "not found",
		frames: []location.Frame{
			{File: "/usr/lib/go/src/lib/lib.go", Line: 10, Function: "lib.Find"},
			{File: "/app/handlers/user.go", Line: 42, Function: "main.(*Handler).Show"},
		},
	}
	c := NewCapturer("/app", nil, nil)

	rec := c.CaptureRequestError(err, nil)
	if rec == nil {
		t.Fatal("CaptureRequestError returned nil")
	}
	if rec.File != "handlers/user.go" {
		t.Errorf("File = %q, want %q", rec.File, "handlers/user.go")
	}
	if rec.Line != 42 {
		t.Errorf("Line = %d, want 42", rec.Line)
	}
	if rec.Method != "(*Handler).Show" {
		t.Errorf("Method = %q, want %q", rec.Method, "(*Handler).Show")
	}
	if rec.Message != "not found" {
		t.Errorf("Message = %q, want %q", rec.Message, "not found")
	}
	if rec.Exception != "*faults.stackErr" {
		t.Errorf("Exception = %q, want %q", rec.Exception, "*faults.stackErr")
	}
	if len(rec.Backtrace) != 2 || rec.Backtrace[0] != "/usr/lib/go/src/lib/lib.go:10:in `lib.Find`" {
		t.Errorf("Backtrace = %v", rec.Backtrace)
	}
}

func TestCaptureRequestError_FirstFrameWithoutAppRoot(t *testing.T) {
	err := &stackErr{
		msg: "x",
		frames: []location.Frame{
			{File: "/srv/a.go", Line: 1, Function: "a.F"},
			{File: "/app/b.go", Line: 2, Function: "b.G"},
		},
	}
	rec := NewCapturer("", nil, nil).CaptureRequestError(err, nil)
	if rec.File != "/srv/a.go" || rec.Line != 1 {
		t.Errorf("location = %s:%d, want /srv/a.go:1", rec.File, rec.Line)
	}
}

func TestCaptureRequestError_FiltersContext(t *testing.T) {
	c := NewCapturer("", nil, filter.New([]string{"password"}))
	ec := &Context{
		Parameters:  map[string]any{"password": "hunter2", "q": "go"},
		Session:     map[string]any{"user_password": "x", "user_id": 7},
		Environment: map[string]any{"REQUEST_METHOD": "POST", "rack.input": "io"},
	}

	rec := c.CaptureRequestError(errors.New("bad"), ec)

	if got, want := rec.Parameters, map[string]any{"password": filter.Redacted, "q": "go"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Parameters = %v, want %v", got, want)
	}
	if got, want := rec.Session, map[string]any{"user_password": filter.Redacted, "user_id": 7}; !reflect.DeepEqual(got, want) {
		t.Errorf("Session = %v, want %v", got, want)
	}
	if got, want := rec.EnvironmentVariables, map[string]any{"REQUEST_METHOD": "POST"}; !reflect.DeepEqual(got, want) {
		t.Errorf("EnvironmentVariables = %v, want %v", got, want)
	}
	if ec.Parameters["password"] != "hunter2" {
		t.Error("context parameters were modified")
	}
}

func TestCaptureStandalone_UsesCaptureSite(t *testing.T) {
	dir := thisDir(t)
	c := NewCapturer(dir, nil, nil)

	rec := c.CaptureStandalone(errors.New("disk full"), map[string]any{"job": "sync", "token": "t"})

	if rec.File != "faults_test.go" {
		t.Errorf("File = %q, want faults_test.go", rec.File)
	}
	if rec.Method != "TestCaptureStandalone_UsesCaptureSite" {
		t.Errorf("Method = %q", rec.Method)
	}
	if got, want := rec.ExtraDetails, map[string]any{"job": "sync", "token": filter.Redacted}; !reflect.DeepEqual(got, want) {
		t.Errorf("ExtraDetails = %v, want %v", got, want)
	}
	if rec.Parameters != nil || rec.Session != nil || rec.EnvironmentVariables != nil {
		t.Error("standalone record carries request context")
	}
}

func TestRecovered_StartsAtPanicSite(t *testing.T) {
	var perr *PanicError
	func() {
		defer func() {
			perr = Recovered(recover())
		}()
		panicky()
	}()

	frames := perr.Frames()
	if len(frames) == 0 {
		t.Fatal("no frames captured")
	}
	if !strings.HasSuffix(frames[0].Function, ".panicky") {
		t.Errorf("frames[0] = %v, want panicky", frames[0])
	}
	if perr.Error() != "panic: boom" {
		t.Errorf("Error = %q, want %q", perr.Error(), "panic: boom")
	}
	if perr.Unwrap() != nil {
		t.Errorf("Unwrap = %v, want nil", perr.Unwrap())
	}

	rec := NewCapturer("", nil, nil).CaptureRequestError(perr, nil)
	if rec.Exception != "panic" {
		t.Errorf("Exception = %q, want panic", rec.Exception)
	}
	if rec.Message != "boom" {
		t.Errorf("Message = %q, want boom", rec.Message)
	}
	if rec.Method != "panicky" {
		t.Errorf("Method = %q, want panicky", rec.Method)
	}
}

func TestRecovered_ErrorValue(t *testing.T) {
	inner := &quotaErr{}
	var perr *PanicError
	func() {
		defer func() {
			perr = Recovered(recover())
		}()
		panic(inner)
	}()

	if !errors.Is(perr, inner) {
		t.Error("errors.Is(perr, inner) = false, want true")
	}
	rec := NewCapturer("", nil, nil).CaptureRequestError(perr, nil)
	if rec.Exception != "QuotaExceeded" || rec.Message != "quota exceeded" {
		t.Errorf("record = %s %q", rec.Exception, rec.Message)
	}
}
