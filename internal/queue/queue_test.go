package queue

import (
	"sync"
	"testing"
)

// completion is a small stand-in for the callbacks queued by remote calls
type completion struct {
	ID   int
	Name string
}

func TestQueue_New(t *testing.T) {
	q := New[completion]()
	if q == nil {
		t.Fatal("expected non-nil queue")
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}
	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
}

func TestQueue_PushPop(t *testing.T) {
	q := New[completion]()

	result := q.Pop()
	if result.ID != 0 || result.Name != "" {
		t.Errorf("expected zero value, got %+v", result)
	}

	q.Push(completion{ID: 1, Name: "upload"}, completion{ID: 2, Name: "download"})
	first := q.Pop()
	if first.ID != 1 || first.Name != "upload" {
		t.Errorf("expected {1, upload}, got %+v", first)
	}
	if q.Len() != 1 {
		t.Errorf("expected length 1, got %d", q.Len())
	}
}

func TestQueue_GetAndEmpty(t *testing.T) {
	q := New[completion]()
	q.Push(completion{ID: 1}, completion{ID: 2}, completion{ID: 3})

	items := q.GetAndEmpty()
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if !q.Empty() {
		t.Error("expected queue to be empty after GetAndEmpty")
	}

	// The returned slice must not alias the queue's new storage.
	q.Push(completion{ID: 4})
	if items[0].ID != 1 {
		t.Errorf("returned slice was modified: %+v", items[0])
	}
}

func TestQueue_Clear(t *testing.T) {
	q := New[completion]()
	q.Push(completion{ID: 1}, completion{ID: 2})
	q.Clear()
	if !q.Empty() {
		t.Error("expected empty queue after Clear")
	}
}

func TestQueue_DrainInOrder(t *testing.T) {
	q := New[completion]()
	q.Push(completion{ID: 1}, completion{ID: 2}, completion{ID: 3})

	var seen []int
	n := q.Drain(func(c completion) { seen = append(seen, c.ID) })

	if n != 3 {
		t.Errorf("expected 3 drained, got %d", n)
	}
	for i, id := range seen {
		if id != i+1 {
			t.Errorf("position %d: expected %d, got %d", i, i+1, id)
		}
	}
	if !q.Empty() {
		t.Error("expected empty queue after Drain")
	}
}

func TestQueue_DrainLeavesReentrantPushes(t *testing.T) {
	q := New[completion]()
	q.Push(completion{ID: 1})

	n := q.Drain(func(c completion) {
		q.Push(completion{ID: c.ID + 1})
	})
	if n != 1 {
		t.Errorf("expected 1 drained, got %d", n)
	}
	if q.Len() != 1 {
		t.Errorf("expected pushed item to wait for next drain, len %d", q.Len())
	}
}

func TestQueue_BoundedDropsOldest(t *testing.T) {
	q := NewBounded[completion](2)
	q.Push(completion{ID: 1}, completion{ID: 2}, completion{ID: 3})
	q.Push(completion{ID: 4})

	if q.Len() != 2 {
		t.Fatalf("expected length 2, got %d", q.Len())
	}
	if q.Dropped() != 2 {
		t.Errorf("expected 2 dropped, got %d", q.Dropped())
	}
	if got := q.Pop(); got.ID != 3 {
		t.Errorf("expected oldest survivor 3, got %d", got.ID)
	}
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := New[completion]()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			q.Push(completion{ID: id})
		}(i)
	}
	wg.Wait()

	if q.Len() != 100 {
		t.Errorf("expected 100 items, got %d", q.Len())
	}
}
