package pkg

import (
	"context"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/simp-lee/pagination"
	"gorm.io/gorm"

	"github.com/simp-lee/backoffice/internal/domain"
	"github.com/simp-lee/backoffice/internal/listing"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	defaultSort     = "id:desc"
	likeSuffix      = "__like"
)

// reservedParams are query keys that never become filters.
var reservedParams = []string{"page", "page_size", "sort", "search"}

// validFieldName guards column names that end up in SQL.
var validFieldName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ParsePageRequest reads page, page_size, sort and filters for a local table
// listing. Sort defaults to newest first.
func ParsePageRequest(c *gin.Context) domain.PageRequest {
	return domain.PageRequest{
		Page:     positiveQuery(c, "page", 1),
		PageSize: min(positiveQuery(c, "page_size", defaultPageSize), maxPageSize),
		Sort:     c.DefaultQuery("sort", defaultSort),
		Filter:   parseFilters(c),
	}
}

// ParseListState reads the state of an in-memory list page. An absent sort
// keeps the backend's order. pageSize applies when page_size is absent and
// maxSize caps it when positive.
func ParseListState(c *gin.Context, pageSize, maxSize int) listing.PageState {
	state := listing.NewPageState(pageSize)
	state.Page = positiveQuery(c, "page", state.Page)
	state.PageSize = positiveQuery(c, "page_size", state.PageSize)
	if maxSize > 0 {
		state.PageSize = min(state.PageSize, maxSize)
	}
	if key, dir := splitSort(c.Query("sort")); validFieldName.MatchString(key) {
		state.SortKey = key
		state.SortDirection = listing.ParseDirection(dir)
	}
	state.Search = strings.TrimSpace(c.Query("search"))
	state.Filters = parseFilters(c)
	return state
}

// SortParam is the inverse of the sort query parsing: "key:dir".
func SortParam(key string, dir listing.Direction) string {
	if key == "" {
		return ""
	}
	return key + ":" + string(dir)
}

func positiveQuery(c *gin.Context, key string, fallback int) int {
	if n, err := strconv.Atoi(c.Query(key)); err == nil && n > 0 {
		return n
	}
	return fallback
}

func splitSort(s string) (key, dir string) {
	key, dir, _ = strings.Cut(s, ":")
	return strings.TrimSpace(key), strings.TrimSpace(dir)
}

func parseFilters(c *gin.Context) map[string]string {
	filters := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if slices.Contains(reservedParams, key) || len(values) == 0 {
			continue
		}
		if v := strings.TrimSpace(values[0]); v != "" {
			filters[key] = v
		}
	}
	return filters
}

// PageQuery pages through base with the shared paginator. base carries the
// filters and is counted; scopes such as Sort apply to the page fetch only.
// A page past the end is clamped to the last page.
func PageQuery[T any](ctx context.Context, base *gorm.DB, req domain.PageRequest, scopes ...func(*gorm.DB) *gorm.DB) (*pagination.Pagination[T], error) {
	size := req.PageSize
	if size < 1 {
		size = defaultPageSize
	}
	result, err := pagination.NewPaginator(
		pagination.WithItemsPerPage[T](size),
		pagination.WithItemTotalCallback[T](func(ctx context.Context) (int64, error) {
			var total int64
			err := base.Session(&gorm.Session{Context: ctx}).Count(&total).Error
			return total, err
		}),
		pagination.WithSliceCallback(func(ctx context.Context, offset, limit int) ([]T, error) {
			var items []T
			err := base.Session(&gorm.Session{Context: ctx}).
				Scopes(scopes...).
				Offset(offset).Limit(limit).
				Find(&items).Error
			return items, err
		}),
	).Paginate(ctx, max(req.Page, 1))
	if err != nil {
		return nil, MapDBError(err)
	}
	return result, nil
}

// Sort is a gorm scope ordering by req.Sort ("field:asc" or "field:desc").
// Fields outside allowed and malformed values are ignored.
func Sort(req domain.PageRequest, allowed []string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		field, dir := splitSort(req.Sort)
		dir = strings.ToLower(dir)
		if (dir != "asc" && dir != "desc") || !columnAllowed(field, allowed) {
			return db
		}
		return db.Order(field + " " + dir)
	}
}

// Filter is a gorm scope turning req.Filter into WHERE clauses. A key with
// the __like suffix matches a substring; other keys match exactly. Keys
// outside allowed are ignored.
func Filter(req domain.PageRequest, allowed []string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		for key, value := range req.Filter {
			if field, ok := strings.CutSuffix(key, likeSuffix); ok {
				if columnAllowed(field, allowed) {
					db = db.Where(field+" LIKE ?", "%"+value+"%")
				}
				continue
			}
			if columnAllowed(key, allowed) {
				db = db.Where(key+" = ?", value)
			}
		}
		return db
	}
}

func columnAllowed(field string, allowed []string) bool {
	return validFieldName.MatchString(field) && slices.Contains(allowed, field)
}
