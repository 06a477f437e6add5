package server

import (
	"sync"

	"github.com/rs/zerolog"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xtding233/fairwheel/internal/wheel"
)

// Event types sent on WatchEvents.
const (
	EventScan     = "scan"
	EventWinner   = "winner"
	EventClear    = "clear"
	EventStatus   = "status"
	EventCounters = "counters"
	EventFinished = "finished"
	EventAborted  = "aborted"
	EventState    = "state"      // full snapshot, first message of a stream
	EventPhase    = "transition" // engine state change
)

const subscriberBuffer = 256

// Hub is a wheel.Presenter that fans notifications out to stream
// subscribers. Slow subscribers lose events instead of stalling the
// engine.
type Hub struct {
	log zerolog.Logger

	mu      sync.Mutex
	nextID  int
	subs    map[int]chan *structpb.Struct
	dropped int
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:  log.With().Str("component", "hub").Logger(),
		subs: make(map[int]chan *structpb.Struct),
	}
}

// Subscribe returns a channel of events and a func that ends the
// subscription and closes the channel.
func (h *Hub) Subscribe() (<-chan *structpb.Struct, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan *structpb.Struct, subscriberBuffer)
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped returns how many events were discarded for full subscribers.
func (h *Hub) Dropped() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

func (h *Hub) publish(fields map[string]any) {
	ev, err := structpb.NewStruct(fields)
	if err != nil {
		h.log.Error().Err(err).Msg("encode event")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.dropped++
		}
	}
}

func (h *Hub) ScanHighlight(i int) {
	h.publish(map[string]any{"type": EventScan, "index": i})
}

func (h *Hub) WinnerHighlight(i int, on bool) {
	h.publish(map[string]any{"type": EventWinner, "index": i, "on": on})
}

func (h *Hub) ClearHighlights() {
	h.publish(map[string]any{"type": EventClear})
}

func (h *Hub) Status(text string) {
	h.publish(map[string]any{"type": EventStatus, "text": text})
}

func (h *Hub) CountersRefreshed() {
	h.publish(map[string]any{"type": EventCounters})
}

func (h *Hub) StateChanged(s wheel.State) {
	h.publish(map[string]any{"type": EventPhase, "state": s.String()})
}

func (h *Hub) BatchFinished(s wheel.Summary) {
	h.publish(map[string]any{"type": EventFinished, "summary": summaryFields(s)})
}

func (h *Hub) BatchAborted(batchID string) {
	h.publish(map[string]any{"type": EventAborted, "batch": batchID})
}

var _ wheel.Presenter = (*Hub)(nil)
