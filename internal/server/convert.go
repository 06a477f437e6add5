package server

import (
	"sort"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xtding233/fairwheel/internal/pool"
	"github.com/xtding233/fairwheel/internal/wheel"
)

func snapshotFields(s wheel.Snapshot) map[string]any {
	entries := make([]any, len(s.Entries))
	for i, e := range s.Entries {
		entries[i] = map[string]any{"name": e.Name, "counter": e.Counter}
	}
	out := map[string]any{
		"state":   s.State.String(),
		"scan":    s.Scan,
		"winner":  s.Winner,
		"entries": entries,
	}
	if b := s.Batch; b != nil {
		selected := make([]any, len(b.Selected))
		for i, idx := range b.Selected {
			selected[i] = idx
		}
		out["batch"] = map[string]any{
			"id":       b.ID,
			"total":    b.Total,
			"drawn":    b.Drawn,
			"selected": selected,
		}
	}
	return out
}

func snapshotStruct(s wheel.Snapshot) (*structpb.Struct, error) {
	return structpb.NewStruct(snapshotFields(s))
}

func summaryFields(s wheel.Summary) map[string]any {
	winners := make([]any, len(s.Winners))
	for i, w := range s.Winners {
		winners[i] = map[string]any{"index": w.Index, "name": w.Name}
	}
	return map[string]any{"batch": s.BatchID, "winners": winners}
}

func drawFields(d wheel.DrawRecord) map[string]any {
	return map[string]any{
		"batch":   d.BatchID,
		"seq":     d.Seq,
		"index":   d.Index,
		"name":    d.Name,
		"counter": d.Counter,
		"at":      d.At.UTC().Format(time.RFC3339Nano),
	}
}

// statsFields lists every current entry with its lifetime wins, then any
// names that only appear in the history.
func statsFields(wins map[string]int, entries []pool.Entry) map[string]any {
	seen := make(map[string]bool, len(entries))
	rows := make([]any, 0, len(entries))
	total := 0
	for _, e := range entries {
		seen[e.Name] = true
		rows = append(rows, map[string]any{"name": e.Name, "wins": wins[e.Name], "counter": e.Counter})
	}
	var gone []string
	for name, n := range wins {
		total += n
		if !seen[name] {
			gone = append(gone, name)
		}
	}
	sort.Strings(gone)
	for _, name := range gone {
		rows = append(rows, map[string]any{"name": name, "wins": wins[name]})
	}
	return map[string]any{"draws": total, "names": rows}
}
