package migration

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/leapstack-labs/leapmigrate/internal/state"
	"github.com/leapstack-labs/leapmigrate/pkg/adapter"
	"github.com/leapstack-labs/leapmigrate/pkg/core"
)

// Recorder stores executions. *state.Store implements it.
type Recorder interface {
	RecordExecution(ctx context.Context, e *state.Execution) error
}

// RuleResult is the outcome of one rule.
type RuleResult struct {
	Name     string
	Source   string
	Duration time.Duration
	Skipped  bool
	Err      error
}

// Dispatcher runs rules one after another.
type Dispatcher struct {
	Runtime  *Runtime
	Resolver *Resolver
	Store    Recorder // optional
	Logger   *slog.Logger
}

// NewDispatcher creates a dispatcher. store may be nil.
func NewDispatcher(rt *Runtime, resolver *Resolver, store Recorder) *Dispatcher {
	return &Dispatcher{
		Runtime:  rt,
		Resolver: resolver,
		Store:    store,
		Logger:   rt.Logger,
	}
}

// Run executes rules in order. The first failing rule stops the run; its
// error is returned wrapped with the rule name together with the results of
// every rule attempted so far.
func (d *Dispatcher) Run(ctx context.Context, rules []*Rule) ([]RuleResult, error) {
	cfg := d.Runtime.Config.DataMigration
	d.Logger.Info("starting data migration",
		slog.Int("rules", len(rules)),
		slog.Int("buffer_size", cfg.BufferSize),
		slog.Bool("bulk_commit", cfg.BulkCommit))

	results := make([]RuleResult, 0, len(rules))
	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if rule.Skip {
			d.Logger.Info("rule skipped", slog.String("rule", rule.Name))
			results = append(results, RuleResult{Name: rule.Name, Skipped: true})
			continue
		}

		d.Logger.Debug(rule.String())
		res := d.runRule(ctx, rule)
		results = append(results, res)
		d.record(ctx, rule, res)

		if res.Err != nil {
			d.Logger.Error("rule failed",
				slog.String("rule", rule.Name),
				slog.Int64("duration_ms", res.Duration.Milliseconds()),
				slog.Any("error", res.Err))
			return results, fmt.Errorf("rule %s: %w", rule.Name, res.Err)
		}
		d.Logger.Info(fmt.Sprintf("rule %s executed in %d ms", rule.Name, res.Duration.Milliseconds()))
	}
	return results, nil
}

// runRule resolves and applies one rule. Every connection pooled during the
// rule is closed before it returns.
func (d *Dispatcher) runRule(ctx context.Context, rule *Rule) (res RuleResult) {
	res.Name = rule.Name
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	handler, source, err := d.Resolver.Resolve(ctx, rule.Name)
	res.Source = source
	if err != nil {
		res.Err = err
		return res
	}

	defer func() {
		if cerr := d.Runtime.Pool.CloseAll(); cerr != nil {
			d.Logger.Error("failed to close rule connections", slog.String("rule", rule.Name), slog.Any("error", cerr))
			if res.Err == nil {
				res.Err = cerr
			}
		}
	}()

	inputs, outputs, err := d.facades(rule)
	if err != nil {
		res.Err = err
		return res
	}

	res.Err = handler.Apply(ctx, inputs, outputs)
	return res
}

func (d *Dispatcher) facades(rule *Rule) (inputs, outputs []adapter.Facade, err error) {
	cfg := d.Runtime.Config.DataMigration
	for _, in := range rule.Inputs {
		f, err := d.Runtime.Facade(in.Credential, adapter.FacadeOptions{
			Query:      in.Query,
			BufferSize: cfg.BufferSize,
			BulkCommit: cfg.BulkCommit,
		})
		if err != nil {
			return nil, nil, err
		}
		inputs = append(inputs, f)
	}
	for _, out := range rule.Outputs {
		f, err := d.Runtime.Facade(out.Credential, adapter.FacadeOptions{
			Table:      core.NewTableStub(out.Table),
			TableName:  out.Table,
			BufferSize: cfg.BufferSize,
			BulkCommit: cfg.BulkCommit,
		})
		if err != nil {
			return nil, nil, err
		}
		outputs = append(outputs, f)
	}
	return inputs, outputs, nil
}

func (d *Dispatcher) record(ctx context.Context, rule *Rule, res RuleResult) {
	if d.Store == nil {
		return
	}
	targets := make([]string, 0, len(rule.Outputs))
	for _, out := range rule.Outputs {
		targets = append(targets, out.Credential.Name+"."+out.Table)
	}
	e := &state.Execution{
		Kind:      state.KindRule,
		Name:      rule.Name,
		Target:    strings.Join(targets, ","),
		Status:    state.StatusOf(res.Err),
		StartedAt: time.Now().Add(-res.Duration),
		Duration:  res.Duration,
	}
	if res.Err != nil {
		e.Error = res.Err.Error()
	}
	if err := d.Store.RecordExecution(ctx, e); err != nil {
		d.Logger.Warn("failed to record rule execution", slog.String("rule", rule.Name), slog.Any("error", err))
	}
}
