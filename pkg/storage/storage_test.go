package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/planet0104/keyboard-counter/pkg/counter"
	"github.com/planet0104/keyboard-counter/pkg/input"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleState() counter.State {
	now := time.Date(2026, 5, 1, 9, 30, 0, 0, time.Local)
	s := counter.NewState(now)
	s.Receive(input.KeyPress(input.KeyCtrl), now)
	s.Receive(input.KeyPress(input.KeyS), now)
	s.Receive(input.Mouse(input.LeftDown, 40, 60), now)
	s.Receive(input.Mouse(input.Wheel, 40, 60), now.Add(time.Second))
	return s
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "state", FileName), quietLogger())
}

// --- codec ---

func TestEncodeDecodeRoundTrip(t *testing.T) {
	want := sampleState()

	data, err := Encode(want)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("KBCT")) || data[4] != FormatVersion {
		t.Fatalf("missing header: % x", data[:5])
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	s := sampleState()
	a, err := Encode(s)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	for i := 0; i < 10; i++ {
		b, err := Encode(s.Clone())
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if !bytes.Equal(a, b) {
			t.Fatal("encoding differs between identical states")
		}
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	good, err := Encode(sampleState())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	wrongVersion := append([]byte{}, good...)
	wrongVersion[4] = FormatVersion + 1

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", []byte("KB")},
		{"wrong magic", append([]byte("NOPE"), good[4:]...)},
		{"wrong version", wrongVersion},
		{"truncated body", good[:len(good)-3]},
		{"garbage body", append([]byte("KBCT\x01"), 0xff, 0xff, 0xff)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			if !errors.Is(err, ErrBadFormat) {
				t.Errorf("Decode err = %v, want ErrBadFormat", err)
			}
		})
	}
}

func TestDecodeDropsUnknownLabels(t *testing.T) {
	s := sampleState()
	s.Counts["Shift+Insert"] = 7
	s.Today.Counts = nil

	data, err := Encode(s)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, ok := got.Counts["Shift+Insert"]; ok {
		t.Error("unknown label survived decode")
	}
	if got.Today.Counts == nil {
		t.Error("nil today table not replaced with empty map")
	}
	if got.Count(counter.LabelCtrlS) != 1 {
		t.Errorf("Ctrl+S = %d, want 1", got.Count(counter.LabelCtrlS))
	}
}

// --- store ---

func TestStoreSaveLoad(t *testing.T) {
	st := newTestStore(t)
	want := sampleState()

	if err := st.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, ok := st.Load()
	if !ok {
		t.Fatal("Load reported no state after Save")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreSaveOverwrites(t *testing.T) {
	st := newTestStore(t)
	first := sampleState()
	if err := st.Save(first); err != nil {
		t.Fatalf("Save: %v", err)
	}

	second := first.Clone()
	second.Clear()
	if err := st.Save(second); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, ok := st.Load()
	if !ok || !got.Empty() {
		t.Errorf("Load = %v, %v; want cleared state", got.Counts, ok)
	}

	entries, err := os.ReadDir(filepath.Dir(st.Path()))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only the state file", len(entries))
	}
}

func TestStoreMissingFile(t *testing.T) {
	st := newTestStore(t)

	if _, err := st.Read(); !errors.Is(err, ErrNoState) {
		t.Errorf("Read err = %v, want ErrNoState", err)
	}
	if _, ok := st.Load(); ok {
		t.Error("Load reported state for a missing file")
	}
}

func TestStoreCorruptFileIsNoState(t *testing.T) {
	st := newTestStore(t)
	if err := os.MkdirAll(filepath.Dir(st.Path()), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(st.Path(), []byte("not a state file"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := st.Read(); !errors.Is(err, ErrBadFormat) {
		t.Errorf("Read err = %v, want ErrBadFormat", err)
	}
	if _, ok := st.Load(); ok {
		t.Error("Load accepted a corrupt file")
	}
}

func TestDefaultPath(t *testing.T) {
	p, err := DefaultPath()
	if err != nil {
		t.Skipf("no user config dir: %v", err)
	}
	if filepath.Base(p) != FileName || filepath.Base(filepath.Dir(p)) != "keyboard-counter" {
		t.Errorf("DefaultPath = %s", p)
	}
}

// --- saver ---

type stubSource struct {
	mu    sync.Mutex
	state counter.State
	calls int
}

func (s *stubSource) Snapshot() counter.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.state.Clone()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestSaverSavesOnTick(t *testing.T) {
	st := newTestStore(t)
	src := &stubSource{state: sampleState()}
	sv := NewSaver(st, src, 10*time.Millisecond, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sv.Run(ctx) }()

	waitFor(t, func() bool { return sv.Stats().Saves >= 2 })
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}

	if _, ok := st.Load(); !ok {
		t.Error("no state on disk after ticks")
	}
}

func TestSaverRequestAndFinalSave(t *testing.T) {
	st := newTestStore(t)
	src := &stubSource{state: sampleState()}
	sv := NewSaver(st, src, time.Hour, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sv.Run(ctx) }()

	sv.Request()
	sv.Request() // merged or queued, never blocks
	waitFor(t, func() bool { return sv.Stats().Saves >= 1 })

	src.mu.Lock()
	src.state.AddCount(counter.LabelEsc)
	src.mu.Unlock()

	cancel()
	<-done

	got, ok := st.Load()
	if !ok {
		t.Fatal("no state after final save")
	}
	if got.Count(counter.LabelEsc) != 1 {
		t.Errorf("final save missed the last change: Esc = %d", got.Count(counter.LabelEsc))
	}
}

func TestSaverFailureIsRecorded(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	// The parent "directory" is a regular file, so MkdirAll fails.
	st := NewStore(filepath.Join(blocker, FileName), quietLogger())
	sv := NewSaver(st, &stubSource{state: sampleState()}, time.Hour, quietLogger())

	if err := sv.SaveNow(); err == nil {
		t.Fatal("SaveNow succeeded under a regular file")
	}
	stats := sv.Stats()
	if stats.Failures != 1 || stats.Saves != 0 || stats.LastErr == "" {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestNewSaverDefaults(t *testing.T) {
	sv := NewSaver(newTestStore(t), &stubSource{}, 0, nil)
	if sv.interval != DefaultSaveInterval {
		t.Errorf("interval = %v, want %v", sv.interval, DefaultSaveInterval)
	}
	if sv.logger == nil {
		t.Error("nil logger not defaulted")
	}
}
