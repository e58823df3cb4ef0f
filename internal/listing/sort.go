package listing

import (
	"slices"
	"strings"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection maps user input to a Direction, defaulting to Asc.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), string(Desc)) {
		return Desc
	}
	return Asc
}

// Sort returns a stably sorted copy of rows ordered by the value at key.
// Numbers compare numerically and strings lexicographically; rows without
// the key go last in either direction. An empty key leaves the upstream
// order untouched.
func Sort(rows []Row, key string, dir Direction) []Row {
	if key == "" || len(rows) < 2 {
		return rows
	}
	out := slices.Clone(rows)
	slices.SortStableFunc(out, func(a, b Row) int {
		av, aok := present(a, key)
		bv, bok := present(b, key)
		switch {
		case !aok && !bok:
			return 0
		case !aok:
			return 1
		case !bok:
			return -1
		}
		c := compareValues(av, bv)
		if dir == Desc {
			return -c
		}
		return c
	})
	return out
}

func present(r Row, key string) (any, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Kind ranks keep the comparison a total order when a column mixes types.
const (
	rankNumber = iota
	rankString
	rankBool
	rankOther
)

func rank(v any) int {
	if _, ok := number(v); ok {
		return rankNumber
	}
	switch v.(type) {
	case string:
		return rankString
	case bool:
		return rankBool
	}
	return rankOther
}

func compareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case rankNumber:
		x, _ := number(a)
		y, _ := number(b)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case rankBool:
		x, y := a.(bool), b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	}
	return strings.Compare(stringify(a), stringify(b))
}
