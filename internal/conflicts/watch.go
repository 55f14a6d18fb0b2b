package conflicts

import (
	"context"
	"time"

	"bookingcrm/backend/internal/domain"
)

type WatchOptions struct {
	// Debounce delays a check until the input has been quiet this long.
	// Zero checks on every change.
	Debounce time.Duration
}

// State is what a form shows while a proposal is being edited. Conflicts
// from the previous check stay visible while a new one is in flight.
type State struct {
	Conflicts []domain.Conflict
	Checking  bool
	Err       error
}

func (s State) HasConflicts() bool {
	return len(s.Conflicts) > 0
}

type checkOutcome struct {
	gen    uint64
	result Result
	err    error
}

type watcher struct {
	checker *Checker
	opts    WatchOptions
	out     chan State
	results chan checkOutcome
	done    chan struct{}
}

// Watch re-checks the proposal every time a conflict-relevant field changes
// by value, or when it is sent again after a check failed. A newer proposal cancels the check in flight and its result is
// dropped. The returned channel holds only the latest state and is closed
// when ctx is done, or when in is closed and the last check has settled.
func (c *Checker) Watch(ctx context.Context, in <-chan domain.ProposedAssignment, opts WatchOptions) <-chan State {
	w := &watcher{
		checker: c,
		opts:    opts,
		out:     make(chan State, 1),
		results: make(chan checkOutcome),
		done:    make(chan struct{}),
	}
	go w.run(ctx, in)
	return w.out
}

func (w *watcher) run(ctx context.Context, in <-chan domain.ProposedAssignment) {
	defer close(w.out)
	defer close(w.done)

	var (
		key      string
		haveKey  bool
		gen      uint64
		inflight int
		pending  domain.ProposedAssignment
		timer    *time.Timer
		timerC   <-chan time.Time
		cancel   context.CancelFunc = func() {}
		state    State
	)
	defer func() { cancel() }()

	stopTimer := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = nil
		timerC = nil
	}
	defer stopTimer()

	start := func(p domain.ProposedAssignment, g uint64) {
		var checkCtx context.Context
		checkCtx, cancel = context.WithCancel(ctx)
		inflight++
		go w.check(checkCtx, p, g)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case p, ok := <-in:
			if !ok {
				in = nil
				if inflight == 0 && timerC == nil {
					return
				}
				continue
			}

			// The same proposal is checked again only after a failed check.
			k := p.Key()
			if haveKey && k == key && state.Err == nil {
				continue
			}
			key, haveKey = k, true
			gen++
			cancel()
			stopTimer()

			if !p.Checkable() {
				state = State{}
				w.emit(state)
				continue
			}

			state.Checking = true
			state.Err = nil
			w.emit(state)

			if w.opts.Debounce > 0 {
				pending = p
				timer = time.NewTimer(w.opts.Debounce)
				timerC = timer.C
				continue
			}
			start(p, gen)

		case <-timerC:
			timer = nil
			timerC = nil
			start(pending, gen)

		case o := <-w.results:
			inflight--
			if o.gen == gen {
				cancel()
				state = State{Conflicts: o.result.Conflicts, Err: o.err}
				w.emit(state)
			}
			if in == nil && inflight == 0 && timerC == nil {
				return
			}
		}
	}
}

func (w *watcher) check(ctx context.Context, p domain.ProposedAssignment, gen uint64) {
	res, err := w.checker.Check(ctx, p)
	select {
	case w.results <- checkOutcome{gen: gen, result: res, err: err}:
	case <-w.done:
	}
}

// emit replaces any state the consumer has not read yet.
func (w *watcher) emit(s State) {
	select {
	case w.out <- s:
	default:
		select {
		case <-w.out:
		default:
		}
		w.out <- s
	}
}
