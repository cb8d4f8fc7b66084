// Package sample defines the measurement data model and the JSON payloads
// posted to the collector.
package sample

import "time"

// Kind identifies what a root measurement represents.
type Kind string

const (
	// KindRequest is an HTTP or RPC request served by the host application.
	KindRequest Kind = "request"

	// KindJob is a background job or an arbitrary measured block.
	KindJob Kind = "job"
)

// Query describes a single query event reported by an integration.
type Query struct {
	Kind    string
	Command string
	File    string
	Line    int
	// Runtime is the elapsed time of the query in milliseconds.
	Runtime float64
	Plan    string
}

// View describes a single template render event.
type View struct {
	File    string
	Line    int
	Runtime float64
}

// QueryStat is the aggregated form of queries and views sharing the same
// (kind, file, line) identity.
type QueryStat struct {
	Kind    string  `json:"kind"`
	File    string  `json:"file"`
	Line    int     `json:"line"`
	Command string  `json:"command,omitempty"`
	Runtime float64 `json:"runtime"`
	Times   int     `json:"times"`
	Plan    string  `json:"plan,omitempty"`
}

// Section is a named, kinded span of nested work. Identity is (Command, Kind).
type Section struct {
	Command         string  `json:"command"`
	Kind            string  `json:"kind"`
	Calls           int     `json:"calls"`
	Runtime         float64 `json:"runtime"`
	ChildrenRuntime float64 `json:"children_runtime"`
}

// SelfRuntime returns the time spent in the section excluding nested sections.
func (s *Section) SelfRuntime() float64 {
	return s.Runtime - s.ChildrenRuntime
}

// Sibling reports whether two sections share the same identity.
func (s *Section) Sibling(other *Section) bool {
	return s.Command == other.Command && s.Kind == other.Kind
}

// ErrorRecord is a structured, sanitized description of a fault.
type ErrorRecord struct {
	Method               string         `json:"method"`
	Line                 int            `json:"line"`
	File                 string         `json:"file"`
	Message              string         `json:"message"`
	Backtrace            []string       `json:"backtrace"`
	Exception            string         `json:"exception"`
	ExtraDetails         map[string]any `json:"extra_details"`
	Parameters           map[string]any `json:"parameters,omitempty"`
	Session              map[string]any `json:"session,omitempty"`
	EnvironmentVariables map[string]any `json:"environment_variables,omitempty"`
}

// Record holds the in-flight data of one request or job execution.
type Record struct {
	Kind      Kind
	Name      string
	Path      string
	StartedAt time.Time

	Runtime      float64
	DBRuntime    float64
	ViewRuntime  float64
	OtherRuntime float64

	Queries  []*QueryStat
	Sections []*Section
	Views    []*QueryStat
	Error    *ErrorRecord
}

// Millis converts d to fractional milliseconds, the unit of every runtime field.
func Millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
