package syntax

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseAreaString parses a comma/space-separated list of 1-based area
// numbers (e.g. "1,3,4" or "1 3 4") into a sorted, de-duplicated slice,
// the same shape of input the CLI's arm/disarm/reset commands accept.
func ParseAreaString(input string) ([]int, error) {
	unique := make(map[int]struct{})
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid area number: %q", f)
		}
		if n < 1 {
			return nil, fmt.Errorf("area number must be >= 1: %d", n)
		}
		unique[n] = struct{}{}
	}
	if len(unique) == 0 {
		return nil, fmt.Errorf("no area numbers provided")
	}
	result := make([]int, 0, len(unique))
	for n := range unique {
		result = append(result, n)
	}
	sort.Ints(result)
	return result, nil
}

// AreasToBitmap packs a list of 1-based area numbers into a little-endian
// bitmap bitmapSize bytes long, the wire format CMD_ARMAREAS/CMD_DISARMAREAS/
// CMD_RESETAREAS expect.
func AreasToBitmap(areas []int, bitmapSize int) ([]byte, error) {
	bitmap := make([]byte, bitmapSize)
	for _, n := range areas {
		bit := n - 1
		byteIdx, bitIdx := bit/8, bit%8
		if byteIdx >= bitmapSize {
			return nil, fmt.Errorf("area %d out of range for a %d-byte bitmap", n, bitmapSize)
		}
		bitmap[byteIdx] |= 1 << uint(bitIdx)
	}
	return bitmap, nil
}
