package listing

import (
	"maps"
	"slices"
)

// PageState is the transient state of one list page.
type PageState struct {
	Search        string            `json:"search"`
	Page          int               `json:"page"`
	PageSize      int               `json:"page_size"`
	SortKey       string            `json:"sort_key,omitempty"`
	SortDirection Direction         `json:"sort_direction,omitempty"`
	Filters       map[string]string `json:"filters"`
}

// NewPageState returns the state of a freshly mounted page.
func NewPageState(pageSize int) PageState {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return PageState{Page: 1, PageSize: pageSize, Filters: map[string]string{}}
}

// WithSearch returns a copy with a new search term. Changing the term resets
// the page to 1.
func (s PageState) WithSearch(term string) PageState {
	if term != s.Search {
		s.Page = 1
	}
	s.Search = term
	return s
}

// WithFilters returns a copy with new filters, resetting the page to 1 when
// they differ from the current ones.
func (s PageState) WithFilters(filters map[string]string) PageState {
	if !maps.Equal(filters, s.Filters) {
		s.Page = 1
	}
	s.Filters = maps.Clone(filters)
	return s
}

// Spec describes how a collection is searched and which keys may be sorted.
type Spec struct {
	SearchFields []string
	SortableKeys []string
}

// Result is the outcome of running the pipeline.
type Result struct {
	Page
	// Matched holds every row that survived search and filter, in sorted
	// order. Export uses it; rendering uses Page.Rows.
	Matched []Row `json:"-"`
	// State is the input state after clamping.
	State PageState `json:"state"`
}

// Run applies search, filter and sort, clamps the requested page and slices
// it out.
func Run(rows []Row, state PageState, spec Spec) Result {
	if state.PageSize < 1 {
		state.PageSize = DefaultPageSize
	}

	matched := Search(rows, state.Search, spec.SearchFields)
	matched = Filter(matched, state.Filters)

	key := state.SortKey
	if key != "" && !slices.Contains(spec.SortableKeys, key) {
		key = ""
		state.SortKey = ""
		state.SortDirection = ""
	}
	if key != "" && state.SortDirection == "" {
		state.SortDirection = Asc
	}
	matched = Sort(matched, key, state.SortDirection)

	page := pageFrom(paginate(len(matched), state.Page, state.PageSize, sliceOf(matched)))
	state.Page = page.Page

	return Result{
		Page:    page,
		Matched: matched,
		State:   state,
	}
}
