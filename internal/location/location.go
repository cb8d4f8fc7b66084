// Package location resolves call stacks into source locations and picks the
// frame most relevant to the host application.
package location

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// modulePath marks functions that belong to this module's instrumentation.
const modulePath = "github.com/plexsphere/plexapm"

// maxDepth bounds the number of frames captured per stack.
const maxDepth = 64

// libraryPrefixes are function name prefixes of third-party code that is never
// the origin of a query from the application's point of view.
var libraryPrefixes = []string{
	"runtime.",
	"testing.",
	"reflect.",
	"database/sql.",
	"net/http.",
	"gorm.io/",
	"github.com/go-redis/",
	"github.com/redis/",
	"google.golang.org/grpc",
}

// Frame is a single resolved stack frame.
type Frame struct {
	File     string
	Line     int
	Function string
}

// String renders the frame as "file:line:in `function`".
func (f Frame) String() string {
	return fmt.Sprintf("%s:%d:in `%s`", f.File, f.Line, f.Function)
}

// Method returns the unqualified function name, e.g. "(*Store).Get".
func (f Frame) Method() string {
	name := f.Function
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// Callers captures the current goroutine's stack, skipping skip frames above
// the caller of Callers.
func Callers(skip int) []Frame {
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(skip+2, pcs)
	return resolve(pcs[:n])
}

func resolve(pcs []uintptr) []Frame {
	if len(pcs) == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pcs)
	out := make([]Frame, 0, len(pcs))
	for {
		f, more := frames.Next()
		out = append(out, Frame{File: f.File, Line: f.Line, Function: f.Function})
		if !more {
			break
		}
	}
	return out
}

// MostRelevant returns the first frame located under appRoot. When appRoot is
// empty or no frame matches, the first frame is returned.
func MostRelevant(frames []Frame, appRoot string) Frame {
	if len(frames) == 0 {
		return Frame{}
	}
	if appRoot != "" {
		for _, f := range frames {
			if underRoot(f.File, appRoot) {
				return f
			}
		}
	}
	return frames[0]
}

// Caller returns the frame of the application code that triggered the current
// event, skipping this module's instrumentation and known library frames.
func Caller(appRoot string) Frame {
	return MostRelevant(Application(Callers(1)), appRoot)
}

// Application drops instrumentation and library frames. When nothing is
// left, frames is returned unchanged.
func Application(frames []Frame) []Frame {
	out := frames[:0:0]
	for _, f := range frames {
		if !instrumentation(f) {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return frames
	}
	return out
}

// RelativePath strips appRoot from file when file lies under it.
func RelativePath(file, appRoot string) string {
	if appRoot == "" || !underRoot(file, appRoot) {
		return file
	}
	rel, err := filepath.Rel(appRoot, file)
	if err != nil {
		return file
	}
	return filepath.ToSlash(rel)
}

// Strings renders frames in backtrace form.
func Strings(frames []Frame) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.String())
	}
	return out
}

func underRoot(file, root string) bool {
	root = strings.TrimRight(root, "/")
	return file == root || strings.HasPrefix(file, root+"/")
}

func instrumentation(f Frame) bool {
	// Test files exercise integrations from inside the module and must count
	// as application code.
	if strings.HasSuffix(f.File, "_test.go") {
		return false
	}
	if rest, ok := strings.CutPrefix(f.Function, modulePath); ok && (strings.HasPrefix(rest, ".") || strings.HasPrefix(rest, "/")) {
		return true
	}
	for _, p := range libraryPrefixes {
		if strings.HasPrefix(f.Function, p) {
			return true
		}
	}
	return false
}
