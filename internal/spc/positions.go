package spc

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MaxPositionRange caps a single "a-b" span so one request cannot allocate
// an unbounded exclusion set
const MaxPositionRange = 1_000_000

// ParsePositions reads a list such as "3,7,10-12" into sorted, unique
// positions. Blank items are ignored.
func ParsePositions(raw string) ([]int, error) {
	seen := map[int]struct{}{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		first, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil || first < 0 {
			return nil, fmt.Errorf("invalid excluded position %q", part)
		}
		last := first
		if isRange {
			last, err = strconv.Atoi(strings.TrimSpace(hi))
			if err != nil || last < first || last-first >= MaxPositionRange {
				return nil, fmt.Errorf("invalid excluded range %q", part)
			}
		}
		for p := first; p <= last; p++ {
			seen[p] = struct{}{}
		}
	}

	positions := make([]int, 0, len(seen))
	for p := range seen {
		positions = append(positions, p)
	}
	sort.Ints(positions)
	return positions, nil
}

// FormatPositions writes sorted positions back in compact range form
func FormatPositions(positions []int) string {
	if len(positions) == 0 {
		return ""
	}
	var parts []string
	start, prev := positions[0], positions[0]
	flush := func() {
		if start == prev {
			parts = append(parts, strconv.Itoa(start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, prev))
		}
	}
	for _, p := range positions[1:] {
		if p == prev+1 {
			prev = p
			continue
		}
		flush()
		start, prev = p, p
	}
	flush()
	return strings.Join(parts, ",")
}
