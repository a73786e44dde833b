package spc

import "sort"

// Data table defaults
const (
	DefaultPageSize   = 10
	DefaultPageWindow = 5
)

// PageWindow describes one page of the sample table and the page links
// shown around it.
type PageWindow struct {
	Page             int   `json:"page"`
	TotalPages       int   `json:"total_pages"`
	Start            int   `json:"start"` // inclusive row offset
	End              int   `json:"end"`   // exclusive row offset
	Pages            []int `json:"pages"`
	HasPrev          bool  `json:"has_prev"`
	HasNext          bool  `json:"has_next"`
	LeadingEllipsis  bool  `json:"leading_ellipsis"`
	TrailingEllipsis bool  `json:"trailing_ellipsis"`
}

// Paginate clamps page into range and centres a window of page links on it.
// An empty table has zero pages and a single empty page 1.
func Paginate(total, page, perPage, window int) PageWindow {
	if perPage <= 0 {
		perPage = DefaultPageSize
	}
	if window <= 0 {
		window = DefaultPageWindow
	}
	if total < 0 {
		total = 0
	}

	totalPages := (total + perPage - 1) / perPage
	if page < 1 {
		page = 1
	}
	if totalPages > 0 && page > totalPages {
		page = totalPages
	}

	pw := PageWindow{
		Page:       page,
		TotalPages: totalPages,
		Start:      (page - 1) * perPage,
		End:        page * perPage,
		Pages:      []int{},
	}
	if pw.Start > total {
		pw.Start = total
	}
	if pw.End > total {
		pw.End = total
	}
	if totalPages == 0 {
		return pw
	}

	first := page - window/2
	if first < 1 {
		first = 1
	}
	last := first + window - 1
	if last > totalPages {
		last = totalPages
	}
	if last-first+1 < window {
		first = last - window + 1
		if first < 1 {
			first = 1
		}
	}

	for p := first; p <= last; p++ {
		pw.Pages = append(pw.Pages, p)
	}
	pw.HasPrev = page > 1
	pw.HasNext = page < totalPages
	pw.LeadingEllipsis = first > 1
	pw.TrailingEllipsis = last < totalPages
	return pw
}

func sortedPositions(set map[int]struct{}) []int {
	if len(set) == 0 {
		return nil
	}
	positions := make([]int, 0, len(set))
	for p := range set {
		positions = append(positions, p)
	}
	sort.Ints(positions)
	return positions
}
