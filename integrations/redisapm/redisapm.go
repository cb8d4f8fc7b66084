// Package redisapm records go-redis commands as queries of kind "redis".
package redisapm

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/plexsphere/plexapm"
)

// hiddenArgument replaces AUTH credentials in recorded commands.
const hiddenArgument = "*****"

// Plugin is the go-redis integration.
type Plugin struct {
	client atomic.Pointer[plexapm.Client]
}

// New creates the plugin.
func New() *Plugin {
	return &Plugin{}
}

// Name implements plexapm.Plugin.
func (p *Plugin) Name() string { return "redis" }

// Setup implements plexapm.Plugin.
func (p *Plugin) Setup(c *plexapm.Client) error {
	p.client.Store(c)
	return nil
}

// Instrument adds the plugin's hook to a go-redis client, cluster client or
// ring.
func (p *Plugin) Instrument(rdb interface{ AddHook(redis.Hook) }) {
	rdb.AddHook(hook{plugin: p})
}

type startKey struct{}

type hook struct {
	plugin *Plugin
}

var _ redis.Hook = hook{}

func (h hook) BeforeProcess(ctx context.Context, _ redis.Cmder) (context.Context, error) {
	return context.WithValue(ctx, startKey{}, time.Now()), nil
}

func (h hook) AfterProcess(ctx context.Context, cmd redis.Cmder) error {
	h.record(ctx, commandString(cmd.Args()))
	return nil
}

func (h hook) BeforeProcessPipeline(ctx context.Context, _ []redis.Cmder) (context.Context, error) {
	return context.WithValue(ctx, startKey{}, time.Now()), nil
}

// AfterProcessPipeline records a pipeline as one query listing its commands.
func (h hook) AfterProcessPipeline(ctx context.Context, cmds []redis.Cmder) error {
	lines := make([]string, 0, len(cmds))
	for _, cmd := range cmds {
		lines = append(lines, commandString(cmd.Args()))
	}
	h.record(ctx, strings.Join(lines, "\n"))
	return nil
}

func (h hook) record(ctx context.Context, command string) {
	c := h.plugin.client.Load()
	if c == nil {
		return
	}
	start, ok := ctx.Value(startKey{}).(time.Time)
	if !ok {
		return
	}
	c.RecordQuery(ctx, plexapm.Query{
		Kind:    plexapm.SectionRedis,
		Command: command,
		Runtime: float64(time.Since(start)) / float64(time.Millisecond),
	})
}

// commandString renders args as "name arg1 arg2" with the command name in
// lower case. Arguments of AUTH are masked.
func commandString(args []any) string {
	if len(args) == 0 {
		return ""
	}
	name := strings.ToLower(fmt.Sprint(args[0]))
	parts := make([]string, 0, len(args))
	parts = append(parts, name)
	for _, a := range args[1:] {
		if name == "auth" {
			parts = append(parts, hiddenArgument)
			continue
		}
		parts = append(parts, fmt.Sprint(a))
	}
	return strings.Join(parts, " ")
}
