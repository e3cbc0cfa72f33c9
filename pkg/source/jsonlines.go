package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/planet0104/keyboard-counter/pkg/input"
)

// maxLineSize bounds a single encoded event.
const maxLineSize = 64 * 1024

// JSONLines replays events encoded one per line with input.Encode. Blank
// lines and lines starting with '#' are ignored. Lines that fail to decode
// are logged at debug level and skipped.
type JSONLines struct {
	r      io.Reader
	logger *slog.Logger
	clock  *ReplayClock

	emitted atomic.Uint64
	skipped atomic.Uint64
}

// NewJSONLines reads events from r. A nil logger uses slog.Default().
func NewJSONLines(r io.Reader, logger *slog.Logger) *JSONLines {
	if logger == nil {
		logger = slog.Default()
	}
	return &JSONLines{r: r, logger: logger}
}

// SetClock makes each line's "at" field visible through clock while the
// line's event is being emitted.
func (j *JSONLines) SetClock(clock *ReplayClock) {
	j.clock = clock
}

// Run emits every decodable line until EOF or ctx is done.
func (j *JSONLines) Run(ctx context.Context, emit Emit) error {
	scanner := bufio.NewScanner(j.r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)

	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++

		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}

		ev, at, err := input.DecodeAt(raw)
		if err != nil {
			j.skipped.Add(1)
			j.logger.Debug("skipping event line", "line", line, "error", err)
			continue
		}
		if j.clock != nil {
			j.clock.set(at)
		}
		emit(ev)
		j.emitted.Add(1)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("source: read events: %w", err)
	}
	return nil
}

// Emitted returns the number of events passed to emit.
func (j *JSONLines) Emitted() uint64 { return j.emitted.Load() }

// Skipped returns the number of non-blank lines that failed to decode.
func (j *JSONLines) Skipped() uint64 { return j.skipped.Load() }

// OpenReplay opens path for a JSONLines source; "-" is standard input, which
// is never closed.
func OpenReplay(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: open replay: %w", err)
	}
	return f, nil
}
