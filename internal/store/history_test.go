package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/xtding233/fairwheel/internal/wheel"
)

func TestHistoryRecordAndQuery(t *testing.T) {
	h, err := OpenHistory(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	ctx := context.Background()
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	draws := []wheel.DrawRecord{
		{BatchID: "b1", Seq: 1, Index: 0, Name: "Anna", Counter: 1, At: base},
		{BatchID: "b1", Seq: 2, Index: 2, Name: "Cara", Counter: 1, At: base.Add(time.Second)},
		{BatchID: "b2", Seq: 1, Index: 1, Name: "Ben", Counter: 0, At: base.Add(time.Minute)},
		{BatchID: "b3", Seq: 1, Index: 0, Name: "Anna", Counter: 0, At: base.Add(time.Hour)},
	}
	for _, d := range draws {
		if err := h.RecordDraw(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	recent, err := h.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].BatchID != "b3" || recent[1].Name != "Ben" {
		t.Fatalf("recent=%+v", recent)
	}
	if !recent[0].At.Equal(base.Add(time.Hour)) {
		t.Fatalf("time=%v", recent[0].At)
	}

	b1, err := h.Batch(ctx, "b1")
	if err != nil {
		t.Fatal(err)
	}
	if len(b1) != 2 || b1[0].Name != "Anna" || b1[1].Name != "Cara" {
		t.Fatalf("batch=%+v", b1)
	}

	counts, err := h.WinCounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts["Anna"] != 2 || counts["Ben"] != 1 || counts["Cara"] != 1 {
		t.Fatalf("counts=%v", counts)
	}

	// seq is unique per batch
	if err := h.RecordDraw(ctx, draws[0]); err == nil {
		t.Fatalf("duplicate draw accepted")
	}
}

func TestHistoryMemoryAndPathRequired(t *testing.T) {
	if _, err := OpenHistory("  "); err == nil {
		t.Fatalf("empty path accepted")
	}
	h, err := OpenHistory(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	got, err := h.Recent(context.Background(), 0)
	if err != nil || len(got) != 0 {
		t.Fatalf("got=%v err=%v", got, err)
	}
}
