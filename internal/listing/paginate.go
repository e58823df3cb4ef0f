package listing

import (
	"context"

	"github.com/simp-lee/pagination"
)

const (
	// DefaultPageSize matches the page size most list pages use.
	DefaultPageSize = 10

	pageWindow = 5
)

// Page is one slice of a collection plus the metadata needed to render
// pagination controls.
type Page struct {
	Rows       []Row `json:"rows"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
	TotalCount int   `json:"total_count"`
	HasPrev    bool  `json:"has_prev"`
	HasNext    bool  `json:"has_next"`
	// Window is the run of page numbers shown around the current page.
	Window []int `json:"pages"`
}

// paginate runs the paginator over total items. The requested page is
// clamped into [1, TotalPages]; slice may be nil when only the metadata is
// needed.
func paginate(total, page, size int, slice func(offset, limit int) []Row) *pagination.Pagination[Row] {
	if size < 1 {
		size = DefaultPageSize
	}
	p, err := pagination.NewPaginator(
		pagination.WithItemsPerPage[Row](size),
		pagination.WithPagesInRange[Row](pageWindow),
		pagination.WithKnownTotal[Row](int64(max(total, 0))),
		pagination.WithSliceCallback(func(_ context.Context, offset, limit int) ([]Row, error) {
			if slice == nil {
				return nil, nil
			}
			return slice(offset, limit), nil
		}),
	).Paginate(context.Background(), max(page, 1))
	if err != nil {
		// Unreachable: size, total and page are all normalized above.
		return &pagination.Pagination[Row]{Items: []Row{}, Pages: []int{1}, TotalPages: 1, CurrentPage: 1, ItemsPerPage: size}
	}
	return p
}

func sliceOf(rows []Row) func(offset, limit int) []Row {
	return func(offset, limit int) []Row {
		return rows[offset:min(offset+limit, len(rows))]
	}
}

func pageFrom(p *pagination.Pagination[Row]) Page {
	return Page{
		Rows:       p.Items,
		Page:       p.CurrentPage,
		PageSize:   p.ItemsPerPage,
		TotalPages: p.TotalPages,
		TotalCount: int(p.TotalItems),
		HasPrev:    p.HasPreviousPage(),
		HasNext:    p.HasNextPage(),
		Window:     p.Pages,
	}
}

// TotalPages returns ceil(count/size), never less than one.
func TotalPages(count, size int) int {
	return paginate(count, 1, size, nil).TotalPages
}

// ClampPage forces page into [1, totalPages].
func ClampPage(page, totalPages int) int {
	return paginate(totalPages, page, 1, nil).CurrentPage
}

// Paginate returns rows[(page-1)*size : page*size]. A page outside
// [1, TotalPages] yields an empty slice; Run clamps before slicing.
func Paginate(rows []Row, page, size int) Page {
	p := pageFrom(paginate(len(rows), page, size, sliceOf(rows)))
	if page != p.Page {
		p.Page = page
		p.Rows = []Row{}
		p.HasPrev, p.HasNext = false, false
	}
	return p
}

// FirstIndex is the 1-based index of the first row on the page, 0 when empty.
func (p Page) FirstIndex() int {
	if len(p.Rows) == 0 {
		return 0
	}
	return (p.Page-1)*p.PageSize + 1
}

// LastIndex is the 1-based index of the last row on the page.
func (p Page) LastIndex() int {
	if len(p.Rows) == 0 {
		return 0
	}
	return p.FirstIndex() + len(p.Rows) - 1
}
