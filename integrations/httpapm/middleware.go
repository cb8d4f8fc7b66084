package httpapm

import (
	"net/http"
	"strings"

	"github.com/plexsphere/plexapm"
)

// Middleware measures every request served by next. Errors reach the sample
// only as panics; a panic is recorded and then re-raised with its original
// value so outer recovery handlers see it unchanged.
func (p *Plugin) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := p.client.Load()
		if c == nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx, m := c.Begin(r.Context(), plexapm.KindRequest, p.opts.Name(r))
		m.SetPath(r.URL.Path)
		m.SetErrorContext(errorContext(r))

		// A ServeMux records the matched pattern on the request it was given,
		// so the name is resolved once the handler has run.
		routed := r.WithContext(ctx)
		end := func(fault error) {
			m.SetName(p.opts.Name(routed))
			m.End(fault)
		}
		defer func() {
			if v := recover(); v != nil {
				end(plexapm.Recovered(v))
				panic(v)
			}
		}()
		next.ServeHTTP(w, routed)
		end(nil)
	})
}

// errorContext collects what is reported alongside a request error. Values
// are redacted by the client before they are sent.
func errorContext(r *http.Request) *plexapm.ErrorContext {
	params := make(map[string]any)
	for k, v := range r.URL.Query() {
		if len(v) == 1 {
			params[k] = v[0]
		} else {
			params[k] = v
		}
	}

	session := make(map[string]any)
	for _, ck := range r.Cookies() {
		session[ck.Name] = ck.Value
	}

	env := map[string]any{
		"REQUEST_METHOD":  r.Method,
		"REQUEST_URI":     r.RequestURI,
		"PATH_INFO":       r.URL.Path,
		"QUERY_STRING":    r.URL.RawQuery,
		"SERVER_NAME":     r.Host,
		"SERVER_PROTOCOL": r.Proto,
		"REMOTE_ADDR":     r.RemoteAddr,
	}
	for k, v := range r.Header {
		env["HTTP_"+strings.ToUpper(strings.ReplaceAll(k, "-", "_"))] = strings.Join(v, ", ")
	}
	return &plexapm.ErrorContext{Parameters: params, Session: session, Environment: env}
}
