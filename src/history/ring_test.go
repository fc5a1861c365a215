package history

import (
	"slices"
	"sync"
	"testing"
)

func TestRingWarmUp(t *testing.T) {
	r := New[[]float64](5)
	r.Push([]float64{1})
	r.Push([]float64{2})

	got := r.Snapshot()
	if len(got) != 2 {
		t.Fatalf("snapshot length = %d, want 2", len(got))
	}
	if got[0][0] != 1 || got[1][0] != 2 {
		t.Errorf("snapshot = %v", got)
	}
	if r.Seen() != 2 || r.Len() != 2 {
		t.Errorf("seen=%d len=%d", r.Seen(), r.Len())
	}
}

func TestRingEviction(t *testing.T) {
	tests := []struct {
		capacity int
		pushes   int
		want     []int
	}{
		{capacity: 1, pushes: 3, want: []int{2}},
		{capacity: 3, pushes: 3, want: []int{0, 1, 2}},
		{capacity: 3, pushes: 7, want: []int{4, 5, 6}},
		{capacity: 4, pushes: 2, want: []int{0, 1}},
	}
	for _, tt := range tests {
		r := New[int](tt.capacity)
		for i := range tt.pushes {
			r.Push(i)
		}
		if got := r.Snapshot(); !slices.Equal(got, tt.want) {
			t.Errorf("cap=%d pushes=%d: got %v, want %v", tt.capacity, tt.pushes, got, tt.want)
		}
	}
}

func TestRingReset(t *testing.T) {
	r := New[int](2)
	r.Push(1)
	r.Push(2)
	r.Reset()
	if r.Len() != 0 || len(r.Snapshot()) != 0 {
		t.Errorf("ring not empty after reset: %v", r.Snapshot())
	}
	r.Push(3)
	if got := r.Snapshot(); !slices.Equal(got, []int{3}) {
		t.Errorf("got %v", got)
	}
}

func TestRingConcurrent(t *testing.T) {
	r := New[int](8)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 1000 {
			r.Push(i)
		}
	}()
	go func() {
		defer wg.Done()
		for range 1000 {
			snap := r.Snapshot()
			for i := 1; i < len(snap); i++ {
				if snap[i] != snap[i-1]+1 {
					t.Errorf("snapshot not contiguous: %v", snap)
					return
				}
			}
		}
	}()
	wg.Wait()
	if r.Seen() != 1000 {
		t.Errorf("seen = %d", r.Seen())
	}
}

func TestNewPanicsOnZeroCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	New[int](0)
}
