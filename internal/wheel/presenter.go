package wheel

import (
	"context"
	"time"

	"github.com/xtding233/fairwheel/internal/pool"
)

// NoEntry passed to ScanHighlight clears the scan marker.
const NoEntry = -1

// Presenter receives rendering notifications. Calls are fire-and-forget and
// are made on the engine's scheduling goroutine, so implementations must
// not block and must not call back into the engine synchronously except
// from BatchFinished.
type Presenter interface {
	ScanHighlight(i int)
	WinnerHighlight(i int, on bool)
	ClearHighlights()
	Status(text string)
	CountersRefreshed()
	StateChanged(s State)
	BatchFinished(s Summary)
	// BatchAborted follows the abort status when an active batch is
	// dropped; winners committed before it stay applied.
	BatchAborted(batchID string)
}

// Summary is emitted when a batch completes.
type Summary struct {
	BatchID string
	Winners []Winner // draw order
}

type Winner struct {
	Index int
	Name  string
}

// Names returns the winner names in draw order.
func (s Summary) Names() []string {
	out := make([]string, len(s.Winners))
	for i, w := range s.Winners {
		out[i] = w.Name
	}
	return out
}

// NopPresenter ignores every notification. Embed it to implement only the
// notifications you care about.
type NopPresenter struct{}

func (NopPresenter) ScanHighlight(int)         {}
func (NopPresenter) WinnerHighlight(int, bool) {}
func (NopPresenter) ClearHighlights()          {}
func (NopPresenter) Status(string)             {}
func (NopPresenter) CountersRefreshed()        {}
func (NopPresenter) StateChanged(State)        {}
func (NopPresenter) BatchFinished(Summary)     {}
func (NopPresenter) BatchAborted(string)       {}

// PoolSink persists the pool after every committed winner.
type PoolSink interface {
	Save(p *pool.Pool) error
}

// DrawRecord describes one committed winner for the draw history.
type DrawRecord struct {
	BatchID string
	Seq     int // 1-based position within the batch
	Index   int
	Name    string
	Counter int // counter after normalization
	At      time.Time
}

// Recorder appends committed draws to a history.
type Recorder interface {
	RecordDraw(ctx context.Context, d DrawRecord) error
}
