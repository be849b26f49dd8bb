package shared

import (
	"net/http"
	"net/url"
	"strconv"
)

type Pagination struct {
	Limit  int
	Offset int
}

// ParsePagination reads limit and offset from the query. Missing or invalid
// values fall back to defaultLimit and 0; limit is capped at maxLimit when
// maxLimit is positive.
func ParsePagination(r *http.Request, defaultLimit, maxLimit int) Pagination {
	q := r.URL.Query()
	page := Pagination{
		Limit:  queryInt(q, "limit", defaultLimit, 1),
		Offset: queryInt(q, "offset", 0, 0),
	}
	if maxLimit > 0 {
		page.Limit = min(page.Limit, maxLimit)
	}
	return page
}

func queryInt(q url.Values, key string, fallback, floor int) int {
	v, err := strconv.Atoi(q.Get(key))
	if err != nil || v < floor {
		return fallback
	}
	return v
}
