package encoding

import (
	"fmt"
	"strconv"
	"strings"
)

// EncodeTbit writes "type,x,-y,rotation," per entry. The y axis is inverted
// relative to the board.
func EncodeTbit(entries []Entry) (string, error) {
	var sb strings.Builder
	for i, e := range entries {
		if e.TypeID < 0 || e.Rotation < 0 {
			return "", fmt.Errorf("entry %d: negative type or rotation", i)
		}
		fmt.Fprintf(&sb, "%d,%d,%d,%d,", e.TypeID, e.X, -e.Y, e.Rotation)
	}
	return sb.String(), nil
}

// DecodeTbit parses the comma-separated stream. Empty tokens (the trailing
// comma, stray separators, whitespace) are ignored.
func DecodeTbit(s string) ([]Entry, error) {
	var nums []int
	for i, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		n, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("%w: token %d: %v", ErrCorrupt, i, err)
		}
		nums = append(nums, n)
	}
	if len(nums)%4 != 0 {
		return nil, fmt.Errorf("%w: %d values is not a multiple of 4", ErrCorrupt, len(nums))
	}
	out := make([]Entry, 0, len(nums)/4)
	for i := 0; i < len(nums); i += 4 {
		out = append(out, Entry{TypeID: nums[i], X: nums[i+1], Y: -nums[i+2], Rotation: nums[i+3]})
	}
	return out, nil
}
