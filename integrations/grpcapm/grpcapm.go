// Package grpcapm measures gRPC servers and clients.
//
// Server interceptors turn every RPC into a request measurement named after
// the full method. Client interceptors record outbound RPCs as sections of
// kind "grpc" on the caller's measurement.
package grpcapm

import (
	"context"
	"strings"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/plexsphere/plexapm"
)

// Options configures the plugin.
type Options struct {
	// IgnoredCodes lists status codes that are not reported as errors, such
	// as codes.NotFound for lookups that are expected to miss.
	IgnoredCodes []codes.Code
}

// Plugin is the gRPC integration.
type Plugin struct {
	ignored map[codes.Code]struct{}
	client  atomic.Pointer[plexapm.Client]
}

// New creates the plugin. Register it with a client before serving traffic.
func New(opts Options) *Plugin {
	p := &Plugin{ignored: make(map[codes.Code]struct{}, len(opts.IgnoredCodes))}
	for _, c := range opts.IgnoredCodes {
		p.ignored[c] = struct{}{}
	}
	return p
}

// Name implements plexapm.Plugin.
func (p *Plugin) Name() string { return "grpc" }

// Setup implements plexapm.Plugin.
func (p *Plugin) Setup(c *plexapm.Client) error {
	p.client.Store(c)
	return nil
}

// UnaryServerInterceptor measures unary RPCs. Handler errors are recorded
// and returned unchanged; panics are recorded and re-raised.
func (p *Plugin) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		c := p.client.Load()
		if c == nil {
			return handler(ctx, req)
		}
		ctx, m := p.begin(ctx, c, info.FullMethod)
		defer func() {
			if v := recover(); v != nil {
				m.End(plexapm.Recovered(v))
				panic(v)
			}
		}()
		resp, err := handler(ctx, req)
		m.End(p.reportable(err))
		return resp, err
	}
}

// StreamServerInterceptor measures streaming RPCs for their whole lifetime.
func (p *Plugin) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		c := p.client.Load()
		if c == nil {
			return handler(srv, ss)
		}
		ctx, m := p.begin(ss.Context(), c, info.FullMethod)
		defer func() {
			if v := recover(); v != nil {
				m.End(plexapm.Recovered(v))
				panic(v)
			}
		}()
		err := handler(srv, &measuredStream{ServerStream: ss, ctx: ctx})
		m.End(p.reportable(err))
		return err
	}
}

// UnaryClientInterceptor records outbound unary RPCs as "grpc" sections.
func (p *Plugin) UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		c := p.client.Load()
		if c == nil {
			return invoker(ctx, method, req, reply, cc, opts...)
		}
		end := c.BeginGuardedSection(ctx, method, plexapm.SectionGRPC)
		defer end()
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor records the setup of outbound streams as "grpc"
// sections.
func (p *Plugin) StreamClientInterceptor() grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		c := p.client.Load()
		if c == nil {
			return streamer(ctx, desc, cc, method, opts...)
		}
		end := c.BeginGuardedSection(ctx, method, plexapm.SectionGRPC)
		defer end()
		return streamer(ctx, desc, cc, method, opts...)
	}
}

func (p *Plugin) begin(ctx context.Context, c *plexapm.Client, method string) (context.Context, *plexapm.Measurement) {
	ctx, m := c.Begin(ctx, plexapm.KindRequest, method)
	m.SetPath(method)
	m.SetErrorContext(errorContext(ctx, method))
	return ctx, m
}

// reportable drops errors whose status code is ignored.
func (p *Plugin) reportable(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := p.ignored[status.Code(err)]; ok {
		return nil
	}
	return err
}

func errorContext(ctx context.Context, method string) *plexapm.ErrorContext {
	env := map[string]any{"GRPC_METHOD": method}
	if pr, ok := peer.FromContext(ctx); ok && pr.Addr != nil {
		env["REMOTE_ADDR"] = pr.Addr.String()
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		for k, v := range md {
			env["GRPC_"+strings.ToUpper(strings.ReplaceAll(k, "-", "_"))] = strings.Join(v, ", ")
		}
	}
	return &plexapm.ErrorContext{Environment: env}
}

type measuredStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *measuredStream) Context() context.Context {
	return s.ctx
}
