package sequence

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseRange turns a 1-based selection like "1-3,7,5" into 0-based page
// indices, keeping the order written. An empty selection means every page.
// Reversed ranges ("5-3") count down.
func ParseRange(selection string, pageCount int) ([]int, error) {
	selection = strings.TrimSpace(selection)
	if selection == "" || selection == "all" {
		out := make([]int, pageCount)
		for i := range out {
			out[i] = i
		}
		return out, nil
	}

	var out []int
	for _, part := range strings.Split(selection, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		from, to, err := parseSpan(part, pageCount)
		if err != nil {
			return nil, err
		}

		step := 1
		if to < from {
			step = -1
		}
		for p := from; ; p += step {
			out = append(out, p-1)
			if p == to {
				break
			}
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty selection %q", ErrPageIndex, selection)
	}
	return out, nil
}

func parseSpan(part string, pageCount int) (int, int, error) {
	lo, hi, isRange := strings.Cut(part, "-")
	from, err := parsePageNumber(lo, 1, pageCount)
	if err != nil {
		return 0, 0, err
	}
	if !isRange {
		return from, from, nil
	}
	to, err := parsePageNumber(hi, pageCount, pageCount)
	if err != nil {
		return 0, 0, err
	}
	return from, to, nil
}

// parsePageNumber accepts a 1-based page number; an empty side of a range
// takes the open default ("-3" or "5-").
func parsePageNumber(s string, open, pageCount int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return open, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid page number %q: %w", s, err)
	}
	if n < 1 || n > pageCount {
		return 0, fmt.Errorf("%w: page %d not in 1..%d", ErrPageIndex, n, pageCount)
	}
	return n, nil
}
