package wheel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/xtding233/fairwheel/internal/pool"
	"github.com/xtding233/fairwheel/internal/sched"
)

// Fixed pauses between the phases of a draw.
const (
	commitPause   = 100 * time.Millisecond
	nextDrawPause = 300 * time.Millisecond
	finishPause   = 150 * time.Millisecond
)

// State is the animation phase of the engine.
type State int

const (
	Idle State = iota
	Scanning
	Revealing
	Blinking
	Paused
	Finished
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Revealing:
		return "revealing"
	case Blinking:
		return "blinking"
	case Paused:
		return "paused"
	case Finished:
		return "finished"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Scheduler is the timer facility the engine runs on. Every callback must
// run on the same goroutine as the calls into the engine.
type Scheduler interface {
	ScheduleAfter(d time.Duration, fn func()) sched.Handle
	Cancel(h sched.Handle)
}

// Options configures an Engine. Only Scheduler is required.
type Options struct {
	Config    SpinConfig
	Scheduler Scheduler
	RNG       RandomSource
	Presenter Presenter
	Sink      PoolSink
	Recorder  Recorder
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Engine owns the pool, the active batch and the animation state machine.
//
// It is not safe for concurrent use: all methods and all scheduled
// callbacks must run on one goroutine (see sched.Loop.Do).
type Engine struct {
	pool *pool.Pool
	cfg  SpinConfig

	sched Scheduler
	rng   RandomSource
	view  Presenter
	sink  PoolSink
	rec   Recorder
	log   zerolog.Logger
	now   func() time.Time

	state   State
	batch   *Batch
	gen     uint64
	pending map[sched.Handle]struct{}

	// current draw
	path    []int
	pos     int
	winner  int
	scan    int
	delay   time.Duration
	blinks  int
	blinkOn bool
}

// New creates an idle engine over p. A nil or empty pool is allowed; drawing
// is refused until a pool with entries is installed with ReplacePool.
func New(p *pool.Pool, opts Options) (*Engine, error) {
	if opts.Scheduler == nil {
		return nil, errors.New("wheel: scheduler is required")
	}
	if p == nil {
		p = &pool.Pool{}
	}
	e := &Engine{
		pool:    p,
		cfg:     opts.Config.Clamp(),
		sched:   opts.Scheduler,
		rng:     opts.RNG,
		view:    opts.Presenter,
		sink:    opts.Sink,
		rec:     opts.Recorder,
		log:     opts.Logger.With().Str("component", "wheel").Logger(),
		now:     opts.Now,
		pending: make(map[sched.Handle]struct{}),
		scan:    NoEntry,
		winner:  NoEntry,
	}
	if opts.Config == (SpinConfig{}) {
		e.cfg = DefaultSpinConfig()
	}
	if e.rng == nil {
		e.rng = DefaultRNG()
	}
	if e.view == nil {
		e.view = NopPresenter{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e, nil
}

func (e *Engine) State() State { return e.state }

func (e *Engine) Config() SpinConfig { return e.cfg }

// SetConfig installs a new spin configuration, clamped. A running draw
// picks it up on its next tick.
func (e *Engine) SetConfig(c SpinConfig) {
	e.cfg = c.Clamp()
}

// Busy reports whether a batch is active. Finished counts as not busy: a
// new batch may start while the previous summary is still pending.
func (e *Engine) Busy() bool {
	return e.state != Idle && e.state != Finished
}

// Pool returns a copy of the current pool.
func (e *Engine) Pool() *pool.Pool { return e.pool.Clone() }

// Batch returns a copy of the active batch, if any.
func (e *Engine) Batch() (*Batch, bool) {
	if e.batch == nil {
		return nil, false
	}
	return e.batch.clone(), true
}

// IsBatchComplete reports whether the active batch drew everything it was
// asked for. It is false when no batch is active.
func (e *Engine) IsBatchComplete() bool {
	return e.batch != nil && e.batch.IsComplete()
}

// Snapshot is a read-only view of the engine for presentation layers.
type Snapshot struct {
	State   State
	Batch   *Batch
	Entries []pool.Entry
	Scan    int
	Winner  int
}

func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{
		State:   e.state,
		Entries: e.pool.Entries(),
		Scan:    e.scan,
		Winner:  e.winner,
	}
	if e.batch != nil {
		s.Batch = e.batch.clone()
	}
	return s
}

// ReplacePool installs a freshly loaded pool. Refused while drawing.
func (e *Engine) ReplacePool(p *pool.Pool) error {
	if e.Busy() {
		return ErrBusy
	}
	if e.state == Finished {
		e.finish()
	}
	if p == nil {
		p = &pool.Pool{}
	}
	e.pool = p
	e.scan, e.winner = NoEntry, NoEntry
	e.view.ClearHighlights()
	e.view.CountersRefreshed()
	e.view.Status(fmt.Sprintf("Loaded %d entries.", p.Len()))
	e.log.Info().Int("entries", p.Len()).Msg("pool replaced")
	return nil
}

// ClearHighlights resets the winner markers. It only affects presentation.
func (e *Engine) ClearHighlights() error {
	if e.Busy() {
		return ErrBusy
	}
	e.scan, e.winner = NoEntry, NoEntry
	e.view.ClearHighlights()
	e.view.Status("Highlights cleared.")
	return nil
}

// StartBatch begins drawing n winners. n is clamped to the pool size.
func (e *Engine) StartBatch(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: draw count must be at least 1, got %d", ErrInvalidInput, n)
	}
	if e.pool.Empty() {
		return fmt.Errorf("%w: %w", ErrInvalidInput, ErrEmptyPool)
	}
	if e.Busy() {
		return ErrBusy
	}
	if e.state == Finished {
		e.finish()
	}
	n = min(n, e.pool.Len())
	e.batch = newBatch(n)
	e.log.Info().Str("batch", e.batch.ID).Int("total", n).Msg("batch started")
	e.view.Status(fmt.Sprintf("Drawing %d ...", n))
	e.beginDraw()
	return nil
}

// AbortBatch cancels the active batch. Winners committed so far stay
// applied; the draw in flight is dropped. It reports whether anything was
// running. A batch that already drew everything is finished normally, so
// its summary is still emitted.
func (e *Engine) AbortBatch() bool {
	if e.state == Idle {
		return false
	}
	if e.state == Finished {
		e.finish()
		return true
	}
	e.abort("Draw aborted.")
	e.log.Warn().Msg("batch aborted")
	return true
}

// Close cancels every pending callback.
func (e *Engine) Close() {
	e.cancelAll()
	e.batch = nil
	e.setState(Idle)
}

func (e *Engine) beginDraw() {
	filtered, err := pick(e.pool, e.batch)
	if err != nil {
		e.fail(err)
		return
	}
	path, err := GenerateSpinPath(filtered, e.cfg.Rounds, e.cfg.RolloutFactor, e.rng)
	if err != nil {
		e.fail(err)
		return
	}
	for _, i := range path.Stops {
		if !e.pool.Valid(i) {
			panic(fmt.Sprintf("wheel: spin path stop %d outside pool of %d", i, e.pool.Len()))
		}
	}
	e.path, e.pos, e.winner = path.Stops, 0, path.Winner
	e.setState(Scanning)
	e.delay = e.cfg.FastDelay
	e.log.Debug().Int("stops", len(path.Stops)).Int("candidates", len(filtered)).Msg("spin path ready")
	e.schedule(tickDelay(e.delay), e.scanTick)
}

func (e *Engine) scanTick() {
	if e.pos >= len(e.path) {
		e.reveal()
		return
	}
	e.scan = e.path[e.pos]
	e.pos++
	e.view.ScanHighlight(e.scan)
	e.delay = e.cfg.nextDelay(e.delay)
	e.schedule(tickDelay(e.delay), e.scanTick)
}

func (e *Engine) reveal() {
	e.setState(Revealing)
	e.path = nil
	e.scan = e.winner
	e.view.ScanHighlight(e.winner)
	e.view.WinnerHighlight(e.winner, true)
	e.batch.exclude(e.winner)

	e.setState(Blinking)
	e.blinks = e.cfg.BlinkCount * 2
	e.blinkOn = true
	if e.blinks == 0 {
		e.confirm()
		return
	}
	e.schedule(e.cfg.BlinkDelay, e.blinkTick)
}

func (e *Engine) blinkTick() {
	e.blinkOn = !e.blinkOn
	e.view.WinnerHighlight(e.winner, e.blinkOn)
	e.blinks--
	if e.blinks > 0 {
		e.schedule(e.cfg.BlinkDelay, e.blinkTick)
		return
	}
	e.confirm()
}

func (e *Engine) confirm() {
	e.setState(Paused)
	e.view.WinnerHighlight(e.winner, true)
	e.scan = NoEntry
	e.view.ScanHighlight(NoEntry)
	e.schedule(commitPause, e.commit)
}

func (e *Engine) commit() {
	e.commitWinner(e.winner)
	if e.batch.IsComplete() {
		e.setState(Finished)
		e.schedule(finishPause, e.finish)
		return
	}
	e.schedule(nextDrawPause, e.beginDraw)
}

// commitWinner applies a revealed winner. Persistence failures are
// reported but never undo the draw; the next save carries it.
func (e *Engine) commitWinner(i int) {
	commitTo(e.pool, e.batch, i)
	entry := e.pool.Entry(i)
	e.log.Info().
		Str("batch", e.batch.ID).
		Int("drawn", e.batch.Drawn).
		Int("total", e.batch.Total).
		Int("idx", i).
		Str("name", entry.Name).
		Msg("pick")

	e.view.CountersRefreshed()
	e.view.Status(fmt.Sprintf("Drawn %d/%d - winner: %s", e.batch.Drawn, e.batch.Total, entry.Name))

	if e.sink != nil {
		if err := e.sink.Save(e.pool); err != nil {
			e.log.Error().Err(err).Msg("save pool")
			e.view.Status(fmt.Sprintf("Winner %s drawn, but saving failed: %v", entry.Name, err))
		}
	}
	if e.rec != nil {
		rec := DrawRecord{
			BatchID: e.batch.ID,
			Seq:     e.batch.Drawn,
			Index:   i,
			Name:    entry.Name,
			Counter: entry.Counter,
			At:      e.now(),
		}
		if err := e.rec.RecordDraw(context.Background(), rec); err != nil {
			e.log.Error().Err(err).Msg("record draw")
		}
	}
}

func (e *Engine) finish() {
	b := e.batch
	e.cancelAll()
	e.batch = nil
	e.setState(Idle)
	if b == nil {
		return
	}
	s := Summary{BatchID: b.ID}
	for _, i := range b.Selected {
		s.Winners = append(s.Winners, Winner{Index: i, Name: e.pool.Name(i)})
	}
	e.log.Info().Str("batch", b.ID).Strs("winners", s.Names()).Msg("batch finished")
	e.view.Status("Round finished - winners: " + strings.Join(s.Names(), ", "))
	e.view.BatchFinished(s)
}

func (e *Engine) fail(err error) {
	e.log.Error().Err(err).Msg("draw failed")
	e.abort(fmt.Sprintf("Draw aborted: %v.", err))
}

func (e *Engine) abort(status string) {
	b := e.batch
	e.cancelAll()
	e.batch = nil
	e.setState(Idle)
	e.path = nil
	e.scan = NoEntry
	e.view.ScanHighlight(NoEntry)
	e.view.Status(status)
	if b != nil {
		e.view.BatchAborted(b.ID)
	}
}

// schedule arms fn for the current generation. Callbacks from an older
// generation (before an abort) return without touching state.
func (e *Engine) schedule(d time.Duration, fn func()) {
	gen := e.gen
	var h sched.Handle
	h = e.sched.ScheduleAfter(d, func() {
		delete(e.pending, h)
		if gen != e.gen {
			return
		}
		fn()
	})
	e.pending[h] = struct{}{}
}

func (e *Engine) setState(s State) {
	if e.state == s {
		return
	}
	e.state = s
	e.view.StateChanged(s)
}

func (e *Engine) cancelAll() {
	for h := range e.pending {
		e.sched.Cancel(h)
	}
	clear(e.pending)
	e.gen++
}
