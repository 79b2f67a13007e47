package catalogs

import (
	"fmt"
	"math/bits"
)

// Direction is one of the four compass directions in cyclic order.
type Direction uint8

const (
	Right Direction = iota
	Up
	Left
	Down
)

// NumDirections is the rotation modulus of the direction cycle.
const NumDirections = 4

var directionNames = [NumDirections]string{"right", "up", "left", "down"}

func (d Direction) String() string {
	if int(d) < NumDirections {
		return directionNames[d]
	}
	return fmt.Sprintf("Direction(%d)", uint8(d))
}

// ParseDirection maps an authored token ("right", "up", ...) to a Direction.
func ParseDirection(s string) (Direction, error) {
	for i, name := range directionNames {
		if name == s {
			return Direction(i), nil
		}
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// Rotate turns d by r quarter steps counter-clockwise. Negative r is allowed.
func Rotate(d Direction, r int) Direction {
	v := (int(d) + r) % NumDirections
	if v < 0 {
		v += NumDirections
	}
	return Direction(v)
}

// Delta is the board offset of one step in direction d. Y grows downward.
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case Right:
		return 1, 0
	case Up:
		return 0, -1
	case Left:
		return -1, 0
	case Down:
		return 0, 1
	}
	return 0, 0
}

// Mask is a set of directions, one bit per direction (right=1, up=2, left=4, down=8).
type Mask uint8

// Bit returns the single-direction mask for d.
func (d Direction) Bit() Mask { return Mask(1) << d }

// MaskOf ORs the bits of ds.
func MaskOf(ds ...Direction) Mask {
	var m Mask
	for _, d := range ds {
		m |= d.Bit()
	}
	return m
}

// Count is the number of directions in m.
func (m Mask) Count() int { return bits.OnesCount8(uint8(m)) }

// Has reports whether d is in m.
func (m Mask) Has(d Direction) bool { return m&d.Bit() != 0 }

// Single returns the direction of a one-bit mask.
func (m Mask) Single() (Direction, bool) {
	if m.Count() != 1 {
		return Right, false
	}
	return Direction(bits.TrailingZeros8(uint8(m))), true
}

func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
