package encoding

import "fmt"

// RecordSize is the width of one packed node record.
const RecordSize = 5

// Encode packs each entry into a big-endian 40-bit word:
// type(6) | x(16) | y(16) | rotation(2), coordinates in two's complement.
func Encode(entries []Entry) ([]byte, error) {
	out := make([]byte, len(entries)*RecordSize)
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		var v uint64
		v = uint64(e.TypeID) & 0x3f
		v = v<<16 | uint64(uint16(int16(e.X)))
		v = v<<16 | uint64(uint16(int16(e.Y)))
		v = v<<2 | uint64(e.Rotation)&0x3

		rec := out[i*RecordSize : (i+1)*RecordSize]
		for j := 0; j < RecordSize; j++ {
			rec[j] = byte(v >> (8 * (RecordSize - 1 - j)))
		}
	}
	return out, nil
}

// Decode unpacks records produced by Encode.
func Decode(b []byte) ([]Entry, error) {
	if len(b)%RecordSize != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of %d", ErrCorrupt, len(b), RecordSize)
	}
	out := make([]Entry, 0, len(b)/RecordSize)
	for i := 0; i < len(b); i += RecordSize {
		var v uint64
		for j := 0; j < RecordSize; j++ {
			v = v<<8 | uint64(b[i+j])
		}
		rot := int(v & 0x3)
		v >>= 2
		y := int(int16(uint16(v & 0xffff)))
		v >>= 16
		x := int(int16(uint16(v & 0xffff)))
		v >>= 16
		out = append(out, Entry{TypeID: int(v & 0x3f), X: x, Y: y, Rotation: rot})
	}
	return out, nil
}
