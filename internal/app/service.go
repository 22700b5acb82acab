// Package service owns the period-system registry and serves timeline
// computations to the HTTP API and the CLI.
package service

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/dasha/internal/adapters/cache"
	"github.com/okian/dasha/internal/adapters/worker"
	"github.com/okian/dasha/internal/domain/dasha"
	"github.com/okian/dasha/internal/domain/dasha/systems"
	"github.com/okian/dasha/internal/domain/ephemeris"
	"github.com/okian/dasha/pkg/logger"
	"github.com/okian/dasha/pkg/metrics"
	"github.com/okian/dasha/pkg/tracing"
)

// Service computes timelines against an immutable registry.
type Service struct {
	mu sync.RWMutex

	registry *dasha.Registry
	pool     *worker.Pool
	cache    cache.Cache[dasha.Timeline]
	resolver ephemeris.Resolver
	settings ephemeris.Settings
	extra    []dasha.Definition

	// Request defaults and limits
	defaultSystem    string
	defaultDepth     int
	maxDepth         int
	defaultLookahead int
	maxLookahead     int
	maxNodes         int

	// Batch configuration
	batchWorkers   int
	batchQueueSize int
	maxBatchItems  int
	cacheSize      int

	// State
	started   bool
	startedAt time.Time
	stopCh    chan struct{}
	computed  atomic.Int64
	failed    atomic.Int64

	logger logger.Logger
	tracer trace.Tracer
}

// New builds the registry from the built-in systems plus any configured
// ones. A bad definition or an unknown default system is a configuration
// error and the service is not created.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		defaultSystem:    systems.Vimshottari,
		defaultDepth:     3,
		maxDepth:         dasha.MaxDepth,
		defaultLookahead: 8,
		maxLookahead:     8,
		maxNodes:         10000,
		batchWorkers:     runtime.NumCPU(),
		batchQueueSize:   256,
		maxBatchItems:    100,
		cacheSize:        1024,
		stopCh:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.tracer == nil {
		s.tracer = tracing.Tracer()
	}

	reg, err := systems.Registry(s.extra...)
	if err != nil {
		return nil, err
	}
	if _, err := reg.Lookup(s.defaultSystem); err != nil {
		return nil, fmt.Errorf("%w: default system: %w", dasha.ErrConfiguration, err)
	}
	s.registry = reg
	s.cache = cache.NewInMemory[dasha.Timeline](cache.WithMaxSize(s.cacheSize))
	metrics.UpdateSystemsRegistered(reg.Len())
	return s, nil
}

// Start launches the batch pool and the runtime metrics sampler. Cancelling
// ctx does not stop them; Stop does, after draining queued work.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	s.pool = worker.NewPool(s.batchWorkers,
		worker.WithName("batch"),
		worker.WithQueueSize(s.batchQueueSize),
		worker.WithLogger(s.logger.Named("batch")),
	)
	bg := context.WithoutCancel(ctx)
	s.pool.Start(bg)
	s.stopCh = make(chan struct{})
	go s.sampleRuntime(bg, s.stopCh)

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "dasha service started",
		logger.Int("systems", s.registry.Len()),
		logger.String("default_system", s.defaultSystem),
		logger.Int("batch_workers", s.batchWorkers),
	)
	return nil
}

// Stop drains the batch pool and stops background work.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	close(s.stopCh)
	err := s.pool.Shutdown(ctx)
	s.started = false
	s.logger.Info(ctx, "dasha service stopped")
	return err
}

// Compute resolves request defaults and computes one timeline.
func (s *Service) Compute(ctx context.Context, req Request) (dasha.Timeline, error) {
	name := req.System
	if name == "" {
		name = s.defaultSystem
	}
	ctx, span := s.tracer.Start(ctx, "dasha.compute", trace.WithAttributes(attribute.String("dasha.system", name)))
	defer span.End()

	start := time.Now()
	tl, err := s.compute(ctx, name, req)
	if err != nil {
		kind := ErrorKind(err)
		label := name
		if kind == KindUnknownSystem {
			label = "unknown"
		}
		s.failed.Add(1)
		metrics.RecordTimelineError(label, kind)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		s.logger.Warn(ctx, "timeline rejected",
			logger.String("system", name),
			logger.String("kind", kind),
			logger.Error(err),
		)
		return dasha.Timeline{}, err
	}

	nodes := tl.NodeCount()
	took := time.Since(start)
	s.computed.Add(1)
	metrics.RecordTimelineComputed(tl.System, nodes, float64(took.Microseconds())/1000)
	span.SetAttributes(
		attribute.Int("dasha.depth", tl.Depth),
		attribute.Int("dasha.periods", len(tl.Periods)),
		attribute.Int("dasha.nodes", nodes),
		attribute.String("dasha.start_lord", tl.StartLord),
	)
	s.logger.Debug(ctx, "timeline computed",
		logger.String("system", tl.System),
		logger.Time("at", tl.Reference),
		logger.Float64("longitude", tl.Longitude),
		logger.Int("nodes", nodes),
		logger.Duration("took", took),
	)
	return tl, nil
}

func (s *Service) compute(ctx context.Context, name string, req Request) (dasha.Timeline, error) {
	if err := ctx.Err(); err != nil {
		return dasha.Timeline{}, err
	}
	sys, err := s.registry.Lookup(name)
	if err != nil {
		return dasha.Timeline{}, err
	}
	if req.At.IsZero() {
		return dasha.Timeline{}, fmt.Errorf("%w: reference instant is required", dasha.ErrInputDomain)
	}

	depth := req.Depth
	if depth == 0 {
		depth = s.defaultDepth
	}
	if depth < 1 || depth > s.maxDepth {
		return dasha.Timeline{}, fmt.Errorf("%w: depth %d outside [1,%d]", dasha.ErrInputDomain, depth, s.maxDepth)
	}
	lookahead := s.defaultLookahead
	if req.Lookahead != nil {
		lookahead = *req.Lookahead
	}
	if lookahead < 0 || lookahead > s.maxLookahead {
		return dasha.Timeline{}, fmt.Errorf("%w: lookahead %d outside [0,%d]", dasha.ErrInputDomain, lookahead, s.maxLookahead)
	}
	if n := sys.MaxNodes(depth, lookahead); n > s.maxNodes {
		return dasha.Timeline{}, fmt.Errorf("%w: depth %d with lookahead %d may build %d periods, limit is %d",
			dasha.ErrInputDomain, depth, lookahead, n, s.maxNodes)
	}

	lon, err := s.longitude(ctx, req)
	if err != nil {
		return dasha.Timeline{}, err
	}

	key := cacheKey(sys.Name(), req.At, lon, depth, lookahead)
	if tl, ok := s.cache.Get(key); ok {
		metrics.RecordCacheLookup(true)
		return tl, nil
	}
	metrics.RecordCacheLookup(false)
	tl, err := dasha.ComputeTimeline(req.At, lon, sys, depth, lookahead)
	if err != nil {
		return dasha.Timeline{}, err
	}
	s.cache.Add(key, tl)
	return tl, nil
}

// cacheKey identifies a computation. The reference keeps its zone offset so
// a hit returns the instant exactly as the caller wrote it.
func cacheKey(system string, at time.Time, lon float64, depth, lookahead int) string {
	var b strings.Builder
	b.WriteString(system)
	b.WriteByte('|')
	b.WriteString(at.Format(time.RFC3339Nano))
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(lon, 'g', -1, 64))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(depth))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(lookahead))
	return b.String()
}

// longitude takes the caller's value or asks the resolver, then normalizes.
func (s *Service) longitude(ctx context.Context, req Request) (float64, error) {
	if req.Longitude != nil {
		return dasha.NormalizeLongitude(*req.Longitude)
	}
	if req.Location == nil || s.resolver == nil {
		return 0, ErrNoLongitude
	}
	body := req.Body
	if body == "" {
		body = ephemeris.Moon
	}
	q := ephemeris.Query{At: req.At, Location: *req.Location, Body: body, Settings: s.settings}
	if err := q.Validate(); err != nil {
		return 0, err
	}

	ctx, span := s.tracer.Start(ctx, "ephemeris.longitude", trace.WithAttributes(attribute.String("ephemeris.body", string(body))))
	defer span.End()
	lon, err := s.resolver.Longitude(ctx, q)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("resolve longitude: %w", err)
	}
	return dasha.NormalizeLongitude(lon)
}

// ComputeBatch computes every request on the worker pool. The batch fails as
// a whole only when it is empty or too large; otherwise each Result carries
// its own error.
func (s *Service) ComputeBatch(ctx context.Context, reqs []Request) ([]Result, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: batch is empty", dasha.ErrInputDomain)
	}
	if len(reqs) > s.maxBatchItems {
		return nil, fmt.Errorf("%w: batch of %d exceeds %d items", dasha.ErrInputDomain, len(reqs), s.maxBatchItems)
	}
	s.mu.RLock()
	pool, started := s.pool, s.started
	s.mu.RUnlock()
	if !started {
		return nil, worker.ErrPoolStopped
	}

	ctx, span := s.tracer.Start(ctx, "dasha.compute_batch", trace.WithAttributes(attribute.Int("dasha.batch_size", len(reqs))))
	defer span.End()
	metrics.RecordBatch(len(reqs))

	results := make([]Result, len(reqs))
	tasks := make([]worker.Task, len(reqs))
	for i := range reqs {
		results[i].ID = uuid.NewString()
		tasks[i] = func(ctx context.Context) error {
			tl, err := s.Compute(ctx, reqs[i])
			if err != nil {
				return err
			}
			results[i].Timeline = &tl
			return nil
		}
	}
	for i, err := range pool.Do(ctx, tasks...) {
		results[i].Err = err
	}
	return results, nil
}

// Systems lists every registered system without span tables.
func (s *Service) Systems() []SystemInfo {
	names := s.registry.Names()
	out := make([]SystemInfo, 0, len(names))
	for _, name := range names {
		sys, err := s.registry.Lookup(name)
		if err != nil {
			continue
		}
		out = append(out, describe(sys, false))
	}
	return out
}

// System describes one system including its span table.
func (s *Service) System(name string) (SystemInfo, error) {
	sys, err := s.registry.Lookup(name)
	if err != nil {
		return SystemInfo{}, err
	}
	return describe(sys, true), nil
}

// Sequence returns one lap of the named system starting at lord.
func (s *Service) Sequence(system, lord string) ([]string, error) {
	sys, err := s.registry.Lookup(system)
	if err != nil {
		return nil, err
	}
	return sys.Sequence(lord)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":           s.started,
		"systems":           s.registry.Names(),
		"defaultSystem":     s.defaultSystem,
		"defaultDepth":      s.defaultDepth,
		"maxDepth":          s.maxDepth,
		"defaultLookahead":  s.defaultLookahead,
		"maxLookahead":      s.maxLookahead,
		"maxBatchItems":     s.maxBatchItems,
		"timelinesComputed": s.computed.Load(),
		"timelinesFailed":   s.failed.Load(),
		"cache":             s.cache.Stats(),
	}
	if s.started {
		stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())
		stats["batchPool"] = s.pool.Stats()
	}
	return stats
}

func (s *Service) sampleRuntime(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()
	var ms runtime.MemStats
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			runtime.ReadMemStats(&ms)
			metrics.UpdateSystemMemoryUsage(ms.HeapInuse)
			metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
		}
	}
}
