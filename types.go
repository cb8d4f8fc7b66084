package plexapm

import (
	"github.com/plexsphere/plexapm/internal/faults"
	"github.com/plexsphere/plexapm/internal/sample"
)

// Kind identifies what a root measurement represents.
type Kind = sample.Kind

const (
	KindRequest = sample.KindRequest
	KindJob     = sample.KindJob
)

// Section kinds used by the bundled integrations.
const (
	SectionCode  = "code"
	SectionHTTP  = "http"
	SectionGRPC  = "grpc"
	SectionRedis = "redis"
	SectionSQL   = "sql"
)

type (
	// Query describes one query event. Runtime is in milliseconds. When File
	// is empty the application frame that issued the query is used.
	Query = sample.Query

	// View describes one template render. Runtime is in milliseconds.
	View = sample.View

	// RequestSample is a finalized request as sent to the collector.
	RequestSample = sample.RequestSample

	// ErrorContext carries request data reported with a captured error.
	// Sensitive values are redacted before they leave the process.
	ErrorContext = faults.Context

	// PanicError wraps a recovered panic value and the panicking stack.
	PanicError = faults.PanicError
)

// Recovered wraps v, the result of recover(), keeping the stack of the panic
// site. It must be called from the deferred function that recovered v.
func Recovered(v any) *PanicError {
	return faults.Recovered(v)
}

// ExceptionClass returns the class name under which err is reported and
// matched against ignored exceptions.
func ExceptionClass(err error) string {
	return faults.ClassOf(err)
}
