// Package httpapm measures net/http servers and clients.
//
// Middleware turns every served request into a request measurement; Transport
// records outbound calls as sections of kind "http". Both pass traffic through
// untouched until the plugin is registered with a client.
package httpapm

import (
	"net/http"
	"sync/atomic"

	"github.com/plexsphere/plexapm"
)

// NameFunc derives the measurement name of a served request.
type NameFunc func(r *http.Request) string

// Options configures the plugin.
type Options struct {
	// Name derives request names. Default: "<METHOD> <pattern>" when the
	// request was routed by a ServeMux pattern, "<METHOD> <path>" otherwise.
	Name NameFunc
}

// Plugin is the net/http integration.
type Plugin struct {
	opts   Options
	client atomic.Pointer[plexapm.Client]
}

// New creates the plugin. Register it with a client before serving traffic.
func New(opts Options) *Plugin {
	if opts.Name == nil {
		opts.Name = defaultName
	}
	return &Plugin{opts: opts}
}

// Name implements plexapm.Plugin.
func (p *Plugin) Name() string { return "net/http" }

// Setup implements plexapm.Plugin.
func (p *Plugin) Setup(c *plexapm.Client) error {
	p.client.Store(c)
	return nil
}

func defaultName(r *http.Request) string {
	if r.Pattern != "" {
		return r.Method + " " + r.Pattern
	}
	return r.Method + " " + r.URL.Path
}
