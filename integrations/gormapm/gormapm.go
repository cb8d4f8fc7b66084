// Package gormapm records gorm statements as queries of kind "sql".
//
// The plugin is both a plexapm.Plugin and a gorm.Plugin:
//
//	p := gormapm.New(gormapm.Options{})
//	if err := client.Register(p); err != nil { ... }
//	if err := db.Use(p); err != nil { ... }
//
// SELECT statements slower than the explain threshold get the database's
// execution plan attached.
package gormapm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/plexsphere/plexapm"
)

const startKey = "plexapm:start"

// Options configures the plugin.
type Options struct {
	// ExplainThreshold overrides the client's explain_sql_threshold.
	ExplainThreshold time.Duration
}

// Plugin is the gorm integration.
type Plugin struct {
	opts      Options
	client    atomic.Pointer[plexapm.Client]
	threshold atomic.Int64
	logger    atomic.Pointer[slog.Logger]
}

// New creates the plugin.
func New(opts Options) *Plugin {
	p := &Plugin{opts: opts}
	p.threshold.Store(int64(plexapm.DefaultExplainSQLThreshold))
	return p
}

// Name implements plexapm.Plugin and gorm.Plugin.
func (p *Plugin) Name() string { return "gorm" }

// Setup implements plexapm.Plugin.
func (p *Plugin) Setup(c *plexapm.Client) error {
	threshold := c.Config().ExplainSQLThreshold
	if p.opts.ExplainThreshold > 0 {
		threshold = p.opts.ExplainThreshold
	}
	p.threshold.Store(int64(threshold))
	p.logger.Store(c.Logger().With("component", "gormapm"))
	p.client.Store(c)
	return nil
}

// Initialize implements gorm.Plugin by registering callbacks around every
// statement-executing step.
func (p *Plugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	steps := []struct {
		name     string
		register func() error
	}{
		{"create", func() error { return cb.Create().Before("gorm:create").Register("plexapm:before_create", p.before) }},
		{"create", func() error { return cb.Create().After("gorm:create").Register("plexapm:after_create", p.after) }},
		{"query", func() error { return cb.Query().Before("gorm:query").Register("plexapm:before_query", p.before) }},
		{"query", func() error { return cb.Query().After("gorm:query").Register("plexapm:after_query", p.afterQuery) }},
		{"update", func() error { return cb.Update().Before("gorm:update").Register("plexapm:before_update", p.before) }},
		{"update", func() error { return cb.Update().After("gorm:update").Register("plexapm:after_update", p.after) }},
		{"delete", func() error { return cb.Delete().Before("gorm:delete").Register("plexapm:before_delete", p.before) }},
		{"delete", func() error { return cb.Delete().After("gorm:delete").Register("plexapm:after_delete", p.after) }},
		{"row", func() error { return cb.Row().Before("gorm:row").Register("plexapm:before_row", p.before) }},
		{"row", func() error { return cb.Row().After("gorm:row").Register("plexapm:after_row", p.after) }},
		{"raw", func() error { return cb.Raw().Before("gorm:raw").Register("plexapm:before_raw", p.before) }},
		{"raw", func() error { return cb.Raw().After("gorm:raw").Register("plexapm:after_raw", p.after) }},
	}
	for _, s := range steps {
		if err := s.register(); err != nil {
			return fmt.Errorf("gormapm: register %s callback: %w", s.name, err)
		}
	}
	return nil
}

func (p *Plugin) before(db *gorm.DB) {
	db.InstanceSet(startKey, time.Now())
}

func (p *Plugin) after(db *gorm.DB) {
	p.record(db, false)
}

// afterQuery may explain the statement: the query step has released its
// rows by the time it returns, unlike the row step.
func (p *Plugin) afterQuery(db *gorm.DB) {
	p.record(db, true)
}

func (p *Plugin) record(db *gorm.DB, explain bool) {
	c := p.client.Load()
	if c == nil || db.DryRun || db.Statement == nil {
		return
	}
	ctx := db.Statement.Context
	if ctx == nil || !c.Active(ctx) {
		return
	}
	v, ok := db.InstanceGet(startKey)
	if !ok {
		return
	}
	start, ok := v.(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(start)
	sql := strings.TrimSpace(db.Statement.SQL.String())
	if sql == "" {
		return
	}

	q := plexapm.Query{
		Kind:    plexapm.SectionSQL,
		Command: sql,
		Runtime: float64(elapsed) / float64(time.Millisecond),
	}
	if explain && elapsed >= time.Duration(p.threshold.Load()) && isSelect(sql) {
		q.Plan = p.explain(ctx, db, sql)
	}
	c.RecordQuery(ctx, q)
}

// explain runs the dialect's EXPLAIN for sql directly on the connection pool
// so that no callbacks fire for it. It returns "" when the dialect has no
// supported form or the statement fails.
func (p *Plugin) explain(ctx context.Context, db *gorm.DB, sql string) string {
	var prefix string
	switch db.Dialector.Name() {
	case "sqlite":
		prefix = "EXPLAIN QUERY PLAN "
	case "postgres", "mysql":
		prefix = "EXPLAIN "
	default:
		return ""
	}

	rows, err := db.Statement.ConnPool.QueryContext(ctx, prefix+sql, db.Statement.Vars...)
	if err != nil {
		p.logDebug("explain failed", "error", err)
		return ""
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		p.logDebug("explain columns failed", "error", err)
		return ""
	}
	var lines []string
	values := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			p.logDebug("explain scan failed", "error", err)
			return ""
		}
		fields := make([]string, len(values))
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			fields[i] = fmt.Sprint(v)
		}
		lines = append(lines, strings.Join(fields, " | "))
	}
	if err := rows.Err(); err != nil {
		p.logDebug("explain rows failed", "error", err)
		return ""
	}
	return strings.Join(lines, "\n")
}

func (p *Plugin) logDebug(msg string, args ...any) {
	if l := p.logger.Load(); l != nil {
		l.Debug(msg, args...)
	}
}

func isSelect(sql string) bool {
	return len(sql) >= 6 && strings.EqualFold(sql[:6], "select")
}
