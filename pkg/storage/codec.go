// Package storage persists the counter aggregate across restarts.
//
// The on-disk file is a four byte magic, one version byte, and the CBOR
// encoding of counter.State. Anything that fails to decode is treated the
// same as a missing file: the caller starts from a fresh state.
package storage

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/planet0104/keyboard-counter/pkg/counter"
)

// FormatVersion is the version byte written after the magic.
const FormatVersion byte = 1

var magic = []byte("KBCT")

var (
	// ErrNoState is returned when no persisted state exists.
	ErrNoState = errors.New("storage: no persisted state")
	// ErrBadFormat is returned when persisted bytes cannot be decoded.
	ErrBadFormat = errors.New("storage: bad format")
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	// Deterministic encoding keeps identical states byte-identical on disk.
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("storage: cbor enc mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		MaxMapPairs: 1024,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("storage: cbor dec mode: %v", err))
	}
}

// Encode serialises state with the file header.
func Encode(state counter.State) ([]byte, error) {
	body, err := encMode.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("storage: encode: %w", err)
	}
	out := make([]byte, 0, len(magic)+1+len(body))
	out = append(out, magic...)
	out = append(out, FormatVersion)
	out = append(out, body...)
	return out, nil
}

// Decode parses bytes produced by Encode. Labels outside counter.Labels are
// dropped, and nil tables come back as empty maps.
func Decode(data []byte) (counter.State, error) {
	var state counter.State

	if len(data) < len(magic)+1 || !bytes.Equal(data[:len(magic)], magic) {
		return state, fmt.Errorf("%w: missing header", ErrBadFormat)
	}
	if v := data[len(magic)]; v != FormatVersion {
		return state, fmt.Errorf("%w: unsupported version %d", ErrBadFormat, v)
	}
	if err := decMode.Unmarshal(data[len(magic)+1:], &state); err != nil {
		return counter.State{}, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}

	state.Counts = knownLabels(state.Counts)
	state.Today.Counts = knownLabels(state.Today.Counts)
	return state, nil
}

func knownLabels(m map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(counter.Labels))
	for k, v := range m {
		if counter.IsLabel(k) {
			out[k] = v
		}
	}
	return out
}
