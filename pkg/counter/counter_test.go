package counter

import (
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/planet0104/keyboard-counter/pkg/input"
)

// fakeClock is a manually advanced clock safe for concurrent reads.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestCounterUsesInjectedClock(t *testing.T) {
	clock := &fakeClock{now: baseTime()}
	c := New(NewState(baseTime()), WithClock(clock.Now))

	c.Receive(input.Mouse(input.LeftDown, 1, 1))
	clock.Advance(100 * time.Millisecond)
	c.Receive(input.Mouse(input.LeftDown, 1, 1))
	clock.Advance(time.Second)
	c.Receive(input.Mouse(input.LeftDown, 1, 1))

	snap := c.Snapshot()
	if got := snap.Count(LabelLeftClicks); got != 3 {
		t.Errorf("left clicks = %d, want 3", got)
	}
	if got := snap.Count(LabelDoubleClicks); got != 1 {
		t.Errorf("double clicks = %d, want 1", got)
	}
	if c.Received() != 3 {
		t.Errorf("Received = %d, want 3", c.Received())
	}
}

func TestSnapshotIsIsolated(t *testing.T) {
	c := New(NewState(baseTime()), WithClock(baseTime))
	c.Receive(input.KeyPress(input.KeyEnter))

	snap := c.Snapshot()
	snap.Counts[LabelEnter] = 99

	if got := c.Snapshot().Count(LabelEnter); got != 1 {
		t.Errorf("Enter = %d after mutating snapshot, want 1", got)
	}
}

func TestCounterClear(t *testing.T) {
	c := New(NewState(baseTime()), WithClock(baseTime))
	c.Receive(input.KeyPress(input.KeyCtrl))
	c.Receive(input.KeyPress(input.KeyZ))

	c.Clear()

	snap := c.Snapshot()
	if !snap.Empty() {
		t.Errorf("counts after Clear: %v", snap.Counts)
	}
	if !snap.CtrlDown {
		t.Error("Clear released the Ctrl latch")
	}
}

func TestCounterReplace(t *testing.T) {
	c := New(NewState(baseTime()), WithClock(baseTime))
	c.Receive(input.KeyPress(input.KeyTab))

	loaded := NewState(baseTime().Add(-time.Hour))
	loaded.AddCount(LabelEsc)
	c.Replace(loaded.Clone())

	if diff := cmp.Diff(loaded, c.Snapshot()); diff != "" {
		t.Errorf("Snapshot after Replace mismatch (-want +got):\n%s", diff)
	}
}

func TestCounterConcurrentReceive(t *testing.T) {
	c := New(NewState(baseTime()), WithClock(baseTime))

	const workers, perWorker = 8, 500
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				c.Receive(input.KeyPress(input.KeyEnter))
			}
		}()
	}

	// Readers run alongside writers.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = c.Snapshot().View()
		}
	}()

	wg.Wait()
	<-done

	snap := c.Snapshot()
	want := uint64(workers * perWorker)
	if got := snap.Count(LabelEnter); got != want {
		t.Errorf("Enter = %d, want %d", got, want)
	}
	if got := snap.Count(LabelKeystrokes); got != want {
		t.Errorf("Keystrokes = %d, want %d", got, want)
	}
	if c.Received() != want {
		t.Errorf("Received = %d, want %d", c.Received(), want)
	}
}

func TestCounterConcurrentWheelCountsOnce(t *testing.T) {
	c := New(NewState(baseTime()), WithClock(baseTime))

	const workers = 16
	var wg sync.WaitGroup
	start := make(chan struct{})
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			c.Receive(input.Mouse(input.Wheel, 0, 0))
		}()
	}
	close(start)
	wg.Wait()

	snap := c.Snapshot()
	if got := snap.Count(LabelWheel); got != 1 {
		t.Errorf("Wheel = %d, want 1", got)
	}
	if c.Received() != workers {
		t.Errorf("Received = %d, want %d", c.Received(), workers)
	}
}

// stepClock hands out strictly increasing times, one step per call.
type stepClock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.next
	c.next = c.next.Add(c.step)
	return now
}

func TestCounterReadsClockUnderLock(t *testing.T) {
	var c *Counter
	unlocked := 0
	c = New(NewState(baseTime()), WithClock(func() time.Time {
		if c.mu.TryLock() {
			unlocked++
			c.mu.Unlock()
		}
		return baseTime()
	}))

	c.Receive(input.Mouse(input.Wheel, 0, 0))
	c.Receive(input.KeyPress(input.KeyEnter))

	if unlocked != 0 {
		t.Errorf("clock read outside the lock %d times", unlocked)
	}
}

func TestCounterConcurrentWheelKeepsClockOrder(t *testing.T) {
	// Every reading is more than the debounce window after the previous one,
	// so every event counts as long as readings reach the state in order.
	clock := &stepClock{next: baseTime(), step: WheelDebounce + 50*time.Millisecond}
	c := New(NewState(baseTime()), WithClock(clock.Now))

	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				c.Receive(input.Mouse(input.Wheel, 0, 0))
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	const want = workers * perWorker
	if got := snap.Count(LabelWheel); got != want {
		t.Errorf("Wheel = %d, want %d", got, want)
	}
	last := baseTime().Add(time.Duration(want-1) * clock.step).UnixMilli()
	if snap.LastWheelAt != last {
		t.Errorf("LastWheelAt = %d, want %d", snap.LastWheelAt, last)
	}
}
