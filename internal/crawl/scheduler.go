// Package crawl runs the depth-bounded, depth-first traversal of the channel
// graph: it pops channels off the frontier, fetches them, grows the store and
// edge log, writes periodic checkpoints, and finishes with connector promotion
// and a reconciled final snapshot.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/youtube-graph-crawler/internal/crawler"
	"github.com/JakeFAU/youtube-graph-crawler/internal/frontier"
	"github.com/JakeFAU/youtube-graph-crawler/internal/graph"
	"github.com/JakeFAU/youtube-graph-crawler/internal/metrics"
	"github.com/JakeFAU/youtube-graph-crawler/internal/progress"
	"github.com/JakeFAU/youtube-graph-crawler/internal/seed"
	"github.com/JakeFAU/youtube-graph-crawler/internal/snapshot"
)

// ErrAlreadyRun is returned when Run is called twice on one Scheduler.
var ErrAlreadyRun = errors.New("scheduler already ran")

const defaultFinalWriteTimeout = 60 * time.Second

// Config controls traversal depth and checkpointing.
type Config struct {
	RunID string
	// MaxDepth is the depth at which channels are fetched without expanding.
	MaxDepth int
	// CheckpointInterval and CheckpointCount define the store-size thresholds
	// Interval*1 ... Interval*Count. A non-positive interval disables checkpoints.
	CheckpointInterval int
	CheckpointCount    int
	// FinalWriteTimeout bounds the final snapshot, which runs even after
	// cancellation.
	FinalWriteTimeout time.Duration
}

// Classifier assigns tiers to fetched channels and promotes connectors.
type Classifier interface {
	Classify(rec crawler.Record) crawler.Class
	PromoteConnectors(store *graph.Store) int
}

// Snapshotter persists checkpoints and the final graph.
type Snapshotter interface {
	WriteCheckpoint(ctx context.Context, seq int, store *graph.Store, edges *graph.EdgeLog) (snapshot.Result, error)
	WriteFinal(ctx context.Context, store *graph.Store, edges *graph.EdgeLog) (snapshot.Result, error)
}

// Summary reports the outcome of one run.
type Summary struct {
	RunID       string
	States      map[crawler.NodeState]int
	Nodes       int
	Edges       int
	Checkpoints []snapshot.Result
	Promoted    int
	Interrupted bool
	Final       snapshot.Result
	Duration    time.Duration
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithEmitter sets the progress event destination.
func WithEmitter(e progress.Emitter) Option {
	return func(s *Scheduler) { s.emitter = e }
}

// WithClock overrides the clock used for event timestamps and durations.
func WithClock(c crawler.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// Scheduler owns the store, edge log and frontier of a single run. It is
// strictly sequential and must not be shared between goroutines.
type Scheduler struct {
	cfg        Config
	fetcher    crawler.Fetcher
	classifier Classifier
	snap       Snapshotter
	emitter    progress.Emitter
	clock      crawler.Clock
	logger     *zap.Logger

	store    *graph.Store
	edges    *graph.EdgeLog
	frontier *frontier.Stack
	states   map[string]crawler.NodeState

	checkpoints   []snapshot.Result
	nextThreshold int
	ran           atomic.Bool
}

// New validates dependencies and builds a Scheduler.
func New(cfg Config, fetcher crawler.Fetcher, classifier Classifier, snap Snapshotter, opts ...Option) (*Scheduler, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if snap == nil {
		return nil, errors.New("snapshotter is required")
	}
	if cfg.MaxDepth < 0 {
		return nil, fmt.Errorf("max depth must be >= 0, got %d", cfg.MaxDepth)
	}
	if cfg.RunID == "" {
		cfg.RunID = "local"
	}
	if cfg.FinalWriteTimeout <= 0 {
		cfg.FinalWriteTimeout = defaultFinalWriteTimeout
	}
	s := &Scheduler{
		cfg:        cfg,
		fetcher:    fetcher,
		classifier: classifier,
		snap:       snap,
		emitter:    progress.Discard{},
		clock:      wallClock{},
		logger:     zap.NewNop(),
		store:      graph.NewStore(),
		edges:      graph.NewEdgeLog(),
		frontier:   frontier.New(64),
		states:     make(map[string]crawler.NodeState),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("crawl")
	return s, nil
}

// Store exposes the channel store.
func (s *Scheduler) Store() *graph.Store { return s.store }

// Edges exposes the edge log.
func (s *Scheduler) Edges() *graph.EdgeLog { return s.edges }

// State returns the lifecycle state of key and whether the key is known.
func (s *Scheduler) State(key string) (crawler.NodeState, bool) {
	st, ok := s.states[key]
	return st, ok
}

// Run crawls outward from seeds until the frontier drains or ctx is
// cancelled, then promotes connectors and writes the final snapshot. An
// interrupted run is not an error; Summary.Interrupted records it.
func (s *Scheduler) Run(ctx context.Context, seeds []seed.Seed) (Summary, error) {
	if !s.ran.CompareAndSwap(false, true) {
		return Summary{}, ErrAlreadyRun
	}
	start := s.clock.Now()
	s.logger.Info("crawl starting",
		zap.String("run_id", s.cfg.RunID),
		zap.Int("seeds", len(seeds)),
		zap.Int("max_depth", s.cfg.MaxDepth),
	)
	s.emit(progress.Event{Stage: progress.StageRunStart, Note: fmt.Sprintf("%d seeds", len(seeds))})

	s.plant(seeds)
	loopErr := s.loop(ctx)
	interrupted := ctx.Err() != nil
	if interrupted {
		s.logger.Warn("crawl interrupted", zap.Int("pending", s.frontier.Len()), zap.Error(ctx.Err()))
	}

	promoted := s.classifier.PromoteConnectors(s.store)
	s.logger.Info("connectors promoted", zap.Int("count", promoted))

	finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.FinalWriteTimeout)
	defer cancel()
	final, finalErr := s.snap.WriteFinal(finalCtx, s.store, s.edges)

	summary := Summary{
		RunID:       s.cfg.RunID,
		States:      s.countStates(),
		Nodes:       s.store.Size(),
		Edges:       s.edges.Len(),
		Checkpoints: append([]snapshot.Result(nil), s.checkpoints...),
		Promoted:    promoted,
		Interrupted: interrupted,
		Final:       final,
		Duration:    s.clock.Now().Sub(start),
	}

	if err := errors.Join(loopErr, finalErr); err != nil {
		s.logger.Error("crawl failed", zap.Error(err))
		s.emit(progress.Event{
			Stage: progress.StageRunError,
			Nodes: summary.Nodes,
			Edges: summary.Edges,
			Note:  err.Error(),
		})
		return summary, err
	}

	s.logger.Info("crawl finished",
		zap.Int("nodes", summary.Nodes),
		zap.Int("edges", summary.Edges),
		zap.Int("checkpoints", len(summary.Checkpoints)),
		zap.Bool("interrupted", interrupted),
		zap.String("nodes_uri", final.NodesURI),
		zap.String("edges_uri", final.EdgesURI),
		zap.Duration("duration", summary.Duration),
	)
	s.emit(progress.Event{
		Stage: progress.StageRunDone,
		Nodes: summary.Nodes,
		Edges: summary.Edges,
		URI:   final.NodesURI,
		Dur:   summary.Duration,
	})
	return summary, nil
}

// plant adds seeds at depth 0 in file order so the last seed is popped first.
func (s *Scheduler) plant(seeds []seed.Seed) {
	depth := 0
	for _, sd := range seeds {
		key, group := sd.Key, sd.Group
		title := key
		s.store.Upsert(key, crawler.Patch{Title: &title, SeedGroup: &group, Depth: &depth})
		s.frontier.Push(key)
		if _, ok := s.states[key]; !ok {
			s.states[key] = crawler.StatePending
		}
	}
}

func (s *Scheduler) loop(ctx context.Context) error {
	for s.frontier.Len() > 0 {
		if ctx.Err() != nil {
			return nil
		}
		key, err := s.frontier.Pop()
		if err != nil {
			return nil
		}
		if !s.frontier.Visit(key) {
			continue
		}

		depth := s.depthOf(key)
		state, dur := s.visit(ctx, key)
		s.states[key] = state
		if state == crawler.StatePending {
			// Cancelled mid-fetch; the placeholder stays as it was.
			return nil
		}
		metrics.ObserveNode(string(state))
		s.logger.Debug("node done",
			zap.String("key", key),
			zap.Int("depth", depth),
			zap.String("state", string(state)),
		)
		s.emit(progress.Event{
			Stage: progress.StageNodeDone,
			Key:   key,
			Depth: depth,
			State: string(state),
			Nodes: s.store.Size(),
			Edges: s.edges.Len(),
			Dur:   dur,
		})

		if err := s.maybeCheckpoint(ctx); err != nil {
			return err
		}
	}
	return nil
}

// visit fetches one channel and applies the result. Panics are contained
// here so one bad node cannot end the crawl.
func (s *Scheduler) visit(ctx context.Context, key string) (state crawler.NodeState, dur time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("node processing panicked", zap.String("key", key), zap.Any("panic", r))
			state = crawler.StateFailed
		}
	}()

	rec, err := s.store.Get(key)
	if err != nil {
		s.logger.Error("frontier key missing from store", zap.String("key", key), zap.Error(err))
		return crawler.StateFailed, 0
	}
	expand := rec.Depth < s.cfg.MaxDepth
	s.states[key] = crawler.StateFetching

	res, err := s.fetcher.Fetch(ctx, crawler.FetchRequest{
		Identifier:    key,
		IsUsername:    rec.Depth == 0,
		WithNeighbors: expand,
	})
	dur = res.Duration
	if err != nil {
		if ctx.Err() != nil {
			return crawler.StatePending, dur
		}
		if expand {
			s.logger.Warn("channel fetch failed", zap.String("key", key), zap.Int("depth", rec.Depth), zap.Error(err))
			return crawler.StateFailed, dur
		}
		s.logger.Warn("leaf fetch failed, dropping channel", zap.String("key", key), zap.Error(err))
		s.store.Delete(key)
		return crawler.StateDropped, dur
	}
	if res.Outcome != crawler.OutcomeFound {
		s.logger.Info("channel not found, dropping", zap.String("key", key), zap.Int("depth", rec.Depth))
		s.store.Delete(key)
		return crawler.StateDropped, dur
	}

	s.store.Upsert(key, res.Metadata.Patch())
	fetched, err := s.store.Get(key)
	if err != nil {
		return crawler.StateFailed, dur
	}
	if err := s.store.SetClass(key, s.classifier.Classify(fetched)); err != nil {
		return crawler.StateFailed, dur
	}
	if !expand {
		return crawler.StateLeafFetched, dur
	}

	source := res.Metadata.ID
	for _, neighbor := range res.Metadata.Neighbors {
		s.edges.Append(source, neighbor)
		if s.store.Discover(neighbor, rec.SeedGroup, rec.Depth+1) {
			s.frontier.Push(neighbor)
			s.states[neighbor] = crawler.StatePending
		}
	}
	s.logger.Info("channel expanded",
		zap.String("key", key),
		zap.Int("depth", rec.Depth),
		zap.Int("neighbors", len(res.Metadata.Neighbors)),
		zap.Int("nodes", s.store.Size()),
		zap.Int("edges", s.edges.Len()),
	)
	return crawler.StateExpanded, dur
}

// maybeCheckpoint writes one checkpoint when the store has reached the next
// threshold, consuming every threshold already crossed.
func (s *Scheduler) maybeCheckpoint(ctx context.Context) error {
	interval, count := s.cfg.CheckpointInterval, s.cfg.CheckpointCount
	if interval <= 0 || s.nextThreshold >= count {
		return nil
	}
	size := s.store.Size()
	if size < interval*(s.nextThreshold+1) {
		return nil
	}
	for s.nextThreshold < count && size >= interval*(s.nextThreshold+1) {
		s.nextThreshold++
	}

	seq := len(s.checkpoints) + 1
	res, err := s.snap.WriteCheckpoint(ctx, seq, s.store, s.edges)
	if err != nil {
		return fmt.Errorf("checkpoint %d: %w", seq, err)
	}
	s.checkpoints = append(s.checkpoints, res)
	s.emit(progress.Event{
		Stage:    progress.StageCheckpoint,
		Sequence: seq,
		Nodes:    res.NodeCount,
		Edges:    res.EdgeCount,
		URI:      res.NodesURI,
	})
	return nil
}

func (s *Scheduler) depthOf(key string) int {
	rec, err := s.store.Get(key)
	if err != nil {
		return 0
	}
	return rec.Depth
}

func (s *Scheduler) countStates() map[crawler.NodeState]int {
	out := make(map[crawler.NodeState]int)
	for _, st := range s.states {
		out[st]++
	}
	return out
}

func (s *Scheduler) emit(evt progress.Event) {
	evt.RunID = s.cfg.RunID
	evt.TS = s.clock.Now()
	s.emitter.Emit(evt)
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now().UTC() }
