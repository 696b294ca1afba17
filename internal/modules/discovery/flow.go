// README: Discovery flow controller: one user's session, filters, and visible
// candidate list with last-write-wins supersede for overlapping queries.
package discovery

import (
	"context"
	"sync"
	"time"

	"rally/internal/metrics"
	"rally/internal/modules/location"
	"rally/internal/types"
)

// Flow coordinates a single discovery session: the location session's
// position feed, the filter state machine, and the engine. Query results are
// applied in completion order with last-write-wins by issue sequence — a
// query issued later always wins even if it completes first, and an earlier
// query's late completion is discarded.
type Flow struct {
	self    types.ID
	session *location.Session
	engine  *Engine
	filters *Filters
	fixOpts location.FixOptions

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.Mutex
	issuedSeq  uint64
	appliedSeq uint64
	visible    Result
	hasResult  bool
	stopped    bool

	stopOnce sync.Once
}

// FlowConfig carries the per-session knobs.
type FlowConfig struct {
	Initial         Criteria
	FixOptions      location.FixOptions
	RefreshInterval time.Duration
}

// NewFlow starts the flow: the filter machine triggers a query on every
// distinct criteria value, and the session's periodic sync re-queries on
// every new position. Stop must run on every exit path.
func NewFlow(self types.ID, session *location.Session, engine *Engine, cfg FlowConfig) *Flow {
	ctx, cancel := context.WithCancel(context.Background())
	f := &Flow{
		self:    self,
		session: session,
		engine:  engine,
		fixOpts: cfg.FixOptions,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	f.filters = NewFilters(cfg.Initial, f.onCriteria)

	if cfg.RefreshInterval > 0 {
		session.StartPeriodicSync(cfg.FixOptions, cfg.RefreshInterval)
	}
	go f.run()
	return f
}

// Filters exposes the flow's filter state machine.
func (f *Flow) Filters() *Filters { return f.filters }

// Session exposes the flow's location session.
func (f *Flow) Session() *location.Session { return f.session }

// Refresh issues a query with the current criteria and best-known position.
func (f *Flow) Refresh() {
	f.issue(f.session.LastKnownOrDefault(), f.filters.Criteria())
}

func (f *Flow) onCriteria(c Criteria) {
	f.issue(f.session.LastKnownOrDefault(), c)
}

// issue starts an asynchronous query stamped with the next sequence number.
func (f *Flow) issue(pos location.Position, c Criteria) {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return
	}
	f.issuedSeq++
	seq := f.issuedSeq
	f.mu.Unlock()

	go func() {
		res := f.engine.Search(f.ctx, f.self, pos, c)
		f.apply(seq, res)
	}()
}

func (f *Flow) apply(seq uint64, res Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped || seq <= f.appliedSeq {
		metrics.RecordSuperseded()
		return
	}
	f.appliedSeq = seq
	f.visible = res
	f.hasResult = true
}

// Snapshot returns a copy of the visible candidate list and whether any
// query has applied yet. Consumers never see the flow's own slice.
func (f *Flow) Snapshot() (Result, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.hasResult {
		return Result{}, false
	}
	out := Result{
		Candidates: make([]Candidate, len(f.visible.Candidates)),
		Outcome:    f.visible.Outcome,
	}
	copy(out.Candidates, f.visible.Candidates)
	return out, true
}

// run re-queries on every position the session's periodic sync produces.
func (f *Flow) run() {
	defer close(f.done)
	for {
		select {
		case <-f.ctx.Done():
			return
		case pos, ok := <-f.session.Positions():
			if !ok {
				return
			}
			f.issue(pos, f.filters.Criteria())
		}
	}
}

// Stop tears the flow down: the periodic timer is cancelled and every
// in-flight query's result is discarded. Idempotent.
func (f *Flow) Stop() {
	f.stopOnce.Do(func() {
		f.mu.Lock()
		f.stopped = true
		f.mu.Unlock()
		f.cancel()
		f.session.Stop()
		<-f.done
	})
}

// Registry tracks the live flow per user.
type Registry struct {
	mu    sync.Mutex
	flows map[types.ID]*Flow
}

func NewRegistry() *Registry {
	return &Registry{flows: make(map[types.ID]*Flow)}
}

// Put installs the user's flow, stopping any previous one.
func (r *Registry) Put(id types.ID, f *Flow) {
	r.mu.Lock()
	prev := r.flows[id]
	r.flows[id] = f
	r.mu.Unlock()
	if prev != nil {
		prev.Stop()
	}
}

func (r *Registry) Get(id types.ID) (*Flow, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.flows[id]
	return f, ok
}

// Remove stops and forgets the user's flow. Safe when absent.
func (r *Registry) Remove(id types.ID) {
	r.mu.Lock()
	f := r.flows[id]
	delete(r.flows, id)
	r.mu.Unlock()
	if f != nil {
		f.Stop()
	}
}

// StopAll tears down every live flow, for shutdown.
func (r *Registry) StopAll() {
	r.mu.Lock()
	flows := make([]*Flow, 0, len(r.flows))
	for _, f := range r.flows {
		flows = append(flows, f)
	}
	r.flows = make(map[types.ID]*Flow)
	r.mu.Unlock()
	for _, f := range flows {
		f.Stop()
	}
}
