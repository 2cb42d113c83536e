package resource

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/edgeflare/restable/pkg/catalog"
)

const (
	defaultPage     = 1
	defaultPageSize = 10
)

// ListParams holds the parsed query parameters of a list request.
type ListParams struct {
	Page     int
	PageSize int
	Sort     []SortParam
	Compact  bool
}

// SortParam is one `field[:direction]` token of the sort parameter.
type SortParam struct {
	Field     string
	Direction string // asc or desc
}

// parseListParams reads page, page_size, sort and compact. Malformed numbers
// fall back to their defaults.
func parseListParams(r *http.Request, pageSize int) ListParams {
	values := r.URL.Query()

	params := ListParams{
		Page:     parseIntParam(values.Get("page"), defaultPage),
		PageSize: parseIntParam(values.Get("page_size"), pageSize),
		Compact:  parseBoolParam(values.Get("compact")),
	}
	if params.Page < 1 {
		params.Page = defaultPage
	}
	if params.PageSize < 1 {
		params.PageSize = pageSize
	}

	// sort=a,b and sort=a&sort=b are equivalent
	for _, v := range values["sort"] {
		params.Sort = append(params.Sort, parseSortParam(v)...)
	}
	return params
}

func parseSortParam(sort string) []SortParam {
	parts := strings.Split(sort, ",")
	result := make([]SortParam, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		field, dir, _ := strings.Cut(part, ":")
		direction := "asc"
		if strings.EqualFold(strings.TrimSpace(dir), "desc") {
			direction = "desc"
		}

		result = append(result, SortParam{
			Field:     strings.TrimSpace(field),
			Direction: direction,
		})
	}
	return result
}

// Parse integer parameter with default value
func parseIntParam(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return result
}

func parseBoolParam(value string) bool {
	if value == "" {
		return false
	}
	b, err := toBool(value)
	return err == nil && b
}

// query turns the params into a store query for e. Sort tokens naming anything
// other than a readable column are dropped.
func (p ListParams) query(e *catalog.Entity) catalog.Query {
	q := catalog.Query{
		Offset: offset(p.Page, p.PageSize),
		Limit:  p.PageSize,
	}
	for _, s := range p.Sort {
		f, ok := e.Field(s.Field)
		if !ok || f.IsRelation() || f.LoadOnly {
			continue
		}
		q.Order = append(q.Order, catalog.Order{Field: f, Desc: s.Direction == "desc"})
	}
	return q
}

// offset returns the number of rows before page, saturating at math.MaxInt so
// that an absurd page lands past the end instead of wrapping.
func offset(page, pageSize int) int {
	if page <= 1 || pageSize <= 0 {
		return 0
	}
	if page-1 > math.MaxInt/pageSize {
		return math.MaxInt
	}
	return (page - 1) * pageSize
}
