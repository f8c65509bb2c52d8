package api

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"modelforge/internal/dsl"
)

type SortKey struct {
	Field string
	Desc  bool
}

type ListParams struct {
	Limit  int
	Offset int
	Sort   []SortKey
	Q      string
}

// ==== query parsing ====

func parseListParams(q url.Values) ListParams {
	limit := 50
	lv := q.Get("_limit")
	if lv == "" {
		lv = q.Get("limit")
	}
	if lv != "" {
		if n, err := strconv.Atoi(lv); err == nil && n >= 0 && n <= 1000 {
			limit = n
		}
	}

	offset := 0
	ov := q.Get("_offset")
	if ov == "" {
		ov = q.Get("offset")
	}
	if ov != "" {
		if n, err := strconv.Atoi(ov); err == nil && n >= 0 {
			offset = n
		}
	}

	var sortKeys []SortKey
	sv := strings.TrimSpace(q.Get("_sort"))
	if sv == "" {
		sv = strings.TrimSpace(q.Get("sort"))
	}
	for _, p := range strings.Split(sv, ",") {
		p = strings.TrimSpace(p)
		desc := false
		if strings.HasPrefix(p, "-") {
			desc = true
			p = strings.TrimPrefix(p, "-")
		} else {
			p = strings.TrimPrefix(p, "+")
		}
		if p != "" {
			sortKeys = append(sortKeys, SortKey{Field: p, Desc: desc})
		}
	}

	return ListParams{
		Limit:  limit,
		Offset: offset,
		Sort:   sortKeys,
		Q:      strings.TrimSpace(q.Get("q")),
	}
}

// ==== filtering, sorting, paging ====

// sortValue returns the comparable text of a listing column; unknown keys sort as equal.
func sortValue(e *dsl.Entity, key string) string {
	switch key {
	case "name":
		return e.Name
	case "table":
		return e.Table
	case "created_at":
		return e.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000000")
	case "updated_at":
		return e.UpdatedAt.UTC().Format("2006-01-02T15:04:05.000000000")
	case "fields":
		return fmt.Sprintf("%09d", len(e.Fields))
	}
	return ""
}

func filterEntities(all []*dsl.Entity, q string) []*dsl.Entity {
	if q == "" {
		return all
	}
	needle := strings.ToLower(q)
	out := make([]*dsl.Entity, 0, len(all))
	for _, e := range all {
		if strings.Contains(strings.ToLower(e.Name), needle) || strings.Contains(strings.ToLower(e.Table), needle) {
			out = append(out, e)
		}
	}
	return out
}

func sortEntities(items []*dsl.Entity, keys []SortKey) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		for _, k := range keys {
			a, b := sortValue(items[i], k.Field), sortValue(items[j], k.Field)
			if a == b {
				continue
			}
			if k.Desc {
				return a > b
			}
			return a < b
		}
		return false
	})
}

func page[T any](items []T, offset, limit int) []T {
	start := offset
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
