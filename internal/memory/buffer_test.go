package memory

import (
	"errors"
	"testing"

	"golang.org/x/exp/rand"
)

func newTestBuffer(t *testing.T, capacity int) *Buffer {
	t.Helper()
	b, err := New(capacity, rand.New(rand.NewSource(5)))
	if err != nil {
		t.Fatalf("new buffer: %v", err)
	}
	return b
}

func experience(id int) Experience {
	return Experience{
		State:     []float64{float64(id), 0},
		Action:    id % 4,
		Reward:    float64(id),
		NextState: []float64{float64(id), 1},
		Done:      id%2 == 0,
	}
}

func TestNewRejectsBadCapacity(t *testing.T) {
	if _, err := New(0, rand.New(rand.NewSource(1))); err == nil {
		t.Fatalf("expected error for zero capacity")
	}
	if _, err := New(10, nil); err == nil {
		t.Fatalf("expected error for missing random source")
	}
}

func TestSampleUnderpopulated(t *testing.T) {
	b := newTestBuffer(t, 10)
	for i := 0; i < 3; i++ {
		b.Add(experience(i))
	}
	_, err := b.Sample(4)
	if !errors.Is(err, ErrUnderpopulated) {
		t.Fatalf("expected ErrUnderpopulated, got %v", err)
	}
	if _, err := b.Sample(3); err != nil {
		t.Fatalf("sampling exactly the stored count failed: %v", err)
	}
}

func TestSampleReturnsDistinctStoredEntries(t *testing.T) {
	b := newTestBuffer(t, 50)
	for i := 0; i < 40; i++ {
		b.Add(experience(i))
	}

	for round := 0; round < 100; round++ {
		batch, err := b.Sample(16)
		if err != nil {
			t.Fatalf("sample: %v", err)
		}
		if batch.Len() != 16 {
			t.Fatalf("expected 16 entries, got %d", batch.Len())
		}
		rows, cols := batch.States.Dims()
		if rows != 16 || cols != 2 {
			t.Fatalf("unexpected state matrix %dx%d", rows, cols)
		}
		seen := make(map[int]bool)
		for i := 0; i < batch.Len(); i++ {
			id := int(batch.States.At(i, 0))
			if seen[id] {
				t.Fatalf("entry %d sampled twice", id)
			}
			seen[id] = true
			if id < 0 || id >= 40 {
				t.Fatalf("sampled entry %d was never stored", id)
			}
			want := experience(id)
			if batch.Actions[i] != want.Action || batch.Rewards[i] != want.Reward || batch.Dones[i] != want.Done {
				t.Fatalf("row %d fields do not belong to entry %d", i, id)
			}
			if batch.NextStates.At(i, 0) != float64(id) || batch.NextStates.At(i, 1) != 1 {
				t.Fatalf("row %d next state does not belong to entry %d", i, id)
			}
		}
	}
}

func TestAddEvictsOldestWhenFull(t *testing.T) {
	b := newTestBuffer(t, 5)
	for i := 0; i < 12; i++ {
		b.Add(experience(i))
	}
	if b.Len() != 5 || b.Cap() != 5 {
		t.Fatalf("expected len 5 cap 5, got len %d cap %d", b.Len(), b.Cap())
	}

	batch, err := b.Sample(5)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	seen := make(map[int]bool)
	for i := 0; i < batch.Len(); i++ {
		seen[int(batch.States.At(i, 0))] = true
	}
	for id := 7; id < 12; id++ {
		if !seen[id] {
			t.Fatalf("expected newest entry %d to survive, got %v", id, seen)
		}
	}
}

func TestAddCopiesState(t *testing.T) {
	b := newTestBuffer(t, 2)
	e := experience(3)
	b.Add(e)
	e.State[0] = 99

	batch, err := b.Sample(1)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if batch.States.At(0, 0) != 3 {
		t.Fatalf("stored experience changed after insert: %v", batch.States.At(0, 0))
	}
}

func BenchmarkSample(b *testing.B) {
	buf, err := New(DefaultCapacity, rand.New(rand.NewSource(1)))
	if err != nil {
		b.Fatalf("new buffer: %v", err)
	}
	state := make([]float64, 18)
	for i := 0; i < DefaultCapacity; i++ {
		buf.Add(Experience{State: state, NextState: state})
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := buf.Sample(64); err != nil {
			b.Fatal(err)
		}
	}
}
