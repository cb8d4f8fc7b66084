package httpapm

import (
	"net/http"

	"github.com/plexsphere/plexapm"
)

// Transport wraps base so that each round trip made inside a measurement is
// recorded as an "http" section named "<METHOD> <url>". A nil base selects
// http.DefaultTransport. Stacked Transports count one call.
func (p *Plugin) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &transport{plugin: p, base: base}
}

type transport struct {
	plugin *Plugin
	base   http.RoundTripper
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	c := t.plugin.client.Load()
	if c == nil {
		return t.base.RoundTrip(req)
	}
	end := c.BeginGuardedSection(req.Context(), sectionName(req), plexapm.SectionHTTP)
	defer end()
	return t.base.RoundTrip(req)
}

func sectionName(req *http.Request) string {
	u := *req.URL
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return req.Method + " " + u.String()
}
