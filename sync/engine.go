// ABOUTME: Reconciliation engine replaying one store's rows onto the other in dependency order
// ABOUTME: Maps, guards references, and upserts in bounded concurrent batches while filling the run report
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/harperreed/crmbridge/connector"
	"github.com/harperreed/crmbridge/mapping"
	"github.com/harperreed/crmbridge/models"
)

// Stage is a set of entity types with no references between them.
type Stage []models.EntityType

// DependencyOrder is the fixed processing order. Every reference points at an
// entity in an earlier stage.
var DependencyOrder = []Stage{
	{models.EntityContact},
	{models.EntityProject, models.EntityCase},
	{models.EntityTask, models.EntityActivity},
}

// Input holds source-schema rows per entity for a push run.
// Pull runs read the partner store themselves and ignore Input.
type Input map[models.EntityType][]models.Record

// Count returns the number of rows across all entities.
func (in Input) Count() int {
	n := 0
	for _, rows := range in {
		n += len(rows)
	}
	return n
}

// LoadInput reads every collection of src into an Input.
func LoadInput(ctx context.Context, src connector.Connector) (Input, error) {
	in := make(Input, len(models.AllEntities))
	for _, entity := range models.AllEntities {
		rows, err := src.FetchAll(ctx, entity.Collection(src.Side()))
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", entity, err)
		}
		in[entity] = rows
	}
	return in, nil
}

// NewRunID returns a sortable run id.
func NewRunID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
}

// Engine runs reconciliations between the primary and partner stores.
type Engine struct {
	primary   connector.Connector
	partner   connector.Connector
	batchSize int
	workers   int
	logger    *zap.Logger
	now       func() time.Time
	dryRun    bool
}

// NewEngine creates an engine. A nil cfg uses defaults; a nil logger discards logs.
func NewEngine(primary, partner connector.Connector, cfg *Config, logger *zap.Logger) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		primary:   primary,
		partner:   partner,
		batchSize: cfg.BatchSize,
		workers:   cfg.Workers,
		logger:    logger,
		now:       time.Now,
	}
	if e.batchSize <= 0 {
		e.batchSize = DefaultBatchSize
	}
	if e.workers <= 0 {
		e.workers = DefaultWorkers
	}
	return e
}

// WithClock returns a copy of the engine stamping rows with now's time.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	clone := *e
	clone.now = now
	return &clone
}

// DryRun returns a copy of the engine whose target for direction is an
// in-memory snapshot of the real target. Nothing it writes reaches the store.
func (e *Engine) DryRun(ctx context.Context, direction models.Direction) (*Engine, error) {
	if err := direction.Validate(); err != nil {
		return nil, err
	}
	_, target := e.connectors(direction)
	snap, err := connector.Snapshot(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot %s: %w", target.Name(), err)
	}
	clone := *e
	clone.dryRun = true
	if direction.Target() == models.SidePrimary {
		clone.primary = snap
	} else {
		clone.partner = snap
	}
	return &clone, nil
}

// Preview performs a full dry run in direction, reading push input from the
// primary store, and returns the report the real run would produce.
func (e *Engine) Preview(ctx context.Context, direction models.Direction) (*Report, error) {
	dry, err := e.DryRun(ctx, direction)
	if err != nil {
		return nil, err
	}
	var input Input
	if direction == models.DirectionPush {
		input, err = LoadInput(ctx, e.primary)
		if err != nil {
			return nil, err
		}
	}
	return dry.Run(ctx, direction, input)
}

// Target names the store a run in direction writes to.
func (e *Engine) Target(direction models.Direction) string {
	_, target := e.connectors(direction)
	return target.Name()
}

func (e *Engine) connectors(direction models.Direction) (source, target connector.Connector) {
	if direction == models.DirectionPull {
		return e.partner, e.primary
	}
	return e.primary, e.partner
}

// Run performs one reconciliation. The only error it returns is an unknown
// direction, raised before any I/O; every other failure lands in the report.
// When ctx expires no new batch starts, in-flight batches finish, and the
// report is marked partial.
func (e *Engine) Run(ctx context.Context, direction models.Direction, input Input) (*Report, error) {
	if err := direction.Validate(); err != nil {
		return nil, err
	}

	source, target := e.connectors(direction)
	started := e.now().UTC()
	report := &Report{
		RunID:     NewRunID(started),
		Direction: direction,
		Source:    source.Name(),
		Target:    target.Name(),
		DryRun:    e.dryRun,
		StartedAt: started,
	}

	log := e.logger.With(zap.String("run_id", report.RunID), zap.String("direction", string(direction)))
	log.Info("sync run started",
		zap.String("source", report.Source),
		zap.String("target", report.Target),
		zap.Bool("dry_run", e.dryRun))

	r := &run{
		engine:    e,
		direction: direction,
		source:    source,
		target:    target,
		input:     input,
		mapper:    mapping.New(started),
		guard:     NewGuard(target, log),
		report:    report,
		log:       log,
	}
	for i, stage := range DependencyOrder {
		for _, entity := range stage {
			r.reconcile(ctx, entity)
		}
		log.Debug("stage complete", zap.Int("stage", i))
	}

	report.FinishedAt = e.now().UTC()
	report.Duration = report.FinishedAt.Sub(started)
	if report.Duration < 0 {
		report.Duration = 0
	}

	t := report.Totals()
	log.Info("sync run finished",
		zap.Int("attempted", t.Attempted),
		zap.Int("succeeded", t.Succeeded),
		zap.Int("failed", t.Failed),
		zap.Int("skipped", t.Skipped),
		zap.Int("warnings", t.Warnings),
		zap.Bool("partial", report.Partial),
		zap.Duration("duration", report.Duration))

	return report, nil
}

// run is the state of one Engine.Run call.
type run struct {
	engine    *Engine
	direction models.Direction
	source    connector.Connector
	target    connector.Connector
	input     Input
	mapper    *mapping.Mapper
	guard     *Guard
	report    *Report
	log       *zap.Logger
}

type batchResult struct {
	skipped   bool
	succeeded []string
	failures  map[string]error
	err       error
}

func (r *run) reconcile(ctx context.Context, entity models.EntityType) {
	cr := &CollectionReport{Entity: entity, Collection: entity.Collection(r.target.Side())}
	r.report.Collections = append(r.report.Collections, cr)
	log := r.log.With(zap.String("collection", cr.Collection))

	if err := ctx.Err(); err != nil {
		n := 0
		if r.direction == models.DirectionPush {
			n = len(r.input[entity])
		}
		cr.Attempted = n
		r.timeout(cr, n, err)
		return
	}

	rows, err := r.sourceRows(ctx, entity)
	if err != nil {
		if ctx.Err() != nil {
			r.timeout(cr, 0, ctx.Err())
			return
		}
		cr.recordError(err)
		log.Error("failed to read source collection", zap.Error(err))
		return
	}
	cr.Attempted = len(rows)
	if len(rows) == 0 {
		return
	}

	mapped := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		m, err := r.mapper.Map(r.direction, entity, row)
		if err != nil {
			cr.fail(1, err)
			log.Warn("row failed mapping", zap.Error(err))
			continue
		}
		mapped = append(mapped, m)
	}

	// Every existence check finishes before the first write of this collection.
	warnings, err := r.guard.Resolve(ctx, mapped)
	if err != nil {
		if ctx.Err() != nil {
			r.timeout(cr, len(mapped), ctx.Err())
			return
		}
		cr.fail(len(mapped), err)
		log.Error("failed to check references", zap.Error(err))
		return
	}
	cr.Warnings = warnings

	r.upsert(ctx, cr, mapped)

	log.Info("collection reconciled",
		zap.Int("attempted", cr.Attempted),
		zap.Int("succeeded", cr.Succeeded),
		zap.Int("failed", cr.Failed),
		zap.Int("skipped", cr.Skipped),
		zap.Int("warnings", len(cr.Warnings)))
}

func (r *run) sourceRows(ctx context.Context, entity models.EntityType) ([]models.Record, error) {
	if r.direction == models.DirectionPush {
		return r.input[entity], nil
	}
	return r.source.FetchAll(ctx, entity.Collection(r.source.Side()))
}

func (r *run) upsert(ctx context.Context, cr *CollectionReport, rows []models.Record) {
	skipped := 0
	for _, round := range splitDuplicates(rows) {
		skipped += r.upsertRound(ctx, cr, round)
	}
	if skipped > 0 {
		r.timeout(cr, skipped, ctx.Err())
	}
}

// upsertRound writes rows whose ids are unique and returns how many were skipped.
func (r *run) upsertRound(ctx context.Context, cr *CollectionReport, rows []models.Record) int {
	batches := chunk(rows, r.engine.batchSize)
	results := make([]batchResult, len(batches))

	// In-flight batches run to completion after the deadline.
	writeCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(r.engine.workers)
	for i, batch := range batches {
		if ctx.Err() != nil {
			for j := i; j < len(batches); j++ {
				results[j].skipped = true
			}
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i].skipped = true
				return nil
			}
			ok, failures, err := r.target.UpsertBatch(writeCtx, cr.Collection, batch, connector.ConflictKey)
			results[i] = batchResult{succeeded: ok, failures: failures, err: err}
			return nil
		})
	}
	_ = g.Wait()

	skipped := 0
	for i, res := range results {
		batch := batches[i]
		switch {
		case res.skipped:
			skipped += len(batch)
		case res.err != nil:
			cr.fail(len(batch), res.err)
			r.log.Error("batch failed", zap.String("collection", cr.Collection), zap.Int("rows", len(batch)), zap.Error(res.err))
		default:
			acked := make(map[string]bool, len(res.succeeded))
			for _, id := range res.succeeded {
				acked[id] = true
			}
			for _, row := range batch {
				id := row.RecordID()
				if err, failed := res.failures[id]; failed {
					cr.fail(1, fmt.Errorf("%s %s: %w", cr.Entity, id, err))
					continue
				}
				if !acked[id] {
					cr.fail(1, fmt.Errorf("%s %s: write not acknowledged by %s", cr.Entity, id, r.target.Name()))
					continue
				}
				cr.Succeeded++
			}
		}
	}
	return skipped
}

func (r *run) timeout(cr *CollectionReport, skipped int, err error) {
	if skipped > 0 {
		cr.Skipped += skipped
		te := &RunTimeoutError{Entity: cr.Entity, Skipped: cr.Skipped, Err: err}
		cr.Timeout = te
		cr.recordError(te)
	}
	if !r.report.Partial {
		r.report.Partial = true
		r.report.PartialReason = fmt.Sprintf("deadline exceeded during %s: %v", cr.Entity, err)
		r.log.Warn("run deadline exceeded", zap.String("collection", cr.Collection), zap.Error(err))
	}
}

// splitDuplicates spreads repeated ids over successive rounds so no round
// holds an id twice. Copies of an id keep their input order across rounds.
func splitDuplicates(rows []models.Record) [][]models.Record {
	var rounds [][]models.Record
	seen := make(map[string]int, len(rows))
	for _, row := range rows {
		n := seen[row.RecordID()]
		seen[row.RecordID()] = n + 1
		if n == len(rounds) {
			rounds = append(rounds, nil)
		}
		rounds[n] = append(rounds[n], row)
	}
	return rounds
}

func chunk(rows []models.Record, size int) [][]models.Record {
	var out [][]models.Record
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}
	return out
}
