// Package encoding implements the board save formats: a packed 5-byte
// binary record per node and the legacy comma-separated "tbit" stream.
package encoding

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
)

// Entry is the persisted form of one node.
type Entry struct {
	TypeID   int `json:"type"`
	X        int `json:"x"`
	Y        int `json:"y"`
	Rotation int `json:"rotation"`
}

func (e Entry) String() string {
	return fmt.Sprintf("[%d,%d,%d,%d]", e.TypeID, e.X, e.Y, e.Rotation)
}

var ErrCorrupt = errors.New("corrupted data")

// Validate checks that e fits the packed field widths.
func (e Entry) Validate() error {
	switch {
	case e.TypeID < 0 || e.TypeID > 0x3f:
		return fmt.Errorf("type id %d out of range 0..63", e.TypeID)
	case e.X < math.MinInt16 || e.X > math.MaxInt16:
		return fmt.Errorf("x %d out of int16 range", e.X)
	case e.Y < math.MinInt16 || e.Y > math.MaxInt16:
		return fmt.Errorf("y %d out of int16 range", e.Y)
	case e.Rotation < 0 || e.Rotation > 3:
		return fmt.Errorf("rotation %d out of range 0..3", e.Rotation)
	}
	return nil
}

// Format selects a save encoding.
type Format int

const (
	FormatPacked Format = iota
	FormatTbit
)

// FormatFor picks the encoding from a file name.
func FormatFor(name string) Format {
	if strings.EqualFold(filepath.Ext(name), ".tbit") {
		return FormatTbit
	}
	return FormatPacked
}

// DecodeFile decodes data according to the file name's format.
func DecodeFile(name string, data []byte) ([]Entry, error) {
	if FormatFor(name) == FormatTbit {
		return DecodeTbit(string(data))
	}
	return Decode(data)
}

// EncodeFile encodes entries according to the file name's format.
func EncodeFile(name string, entries []Entry) ([]byte, error) {
	if FormatFor(name) == FormatTbit {
		s, err := EncodeTbit(entries)
		return []byte(s), err
	}
	return Encode(entries)
}
