package specification

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Feature: catalog-core, Property: paging returns the matching slice of the ordered result
func TestProperty_PagingCorrectness(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("page equals the [skip, skip+take) slice of the filtered, ordered list", prop.ForAll(
		func(values []int, threshold int, skip int, take int) bool {
			items := make([]row, len(values))
			for i, v := range values {
				items[i] = row{"v": v, "i": i}
			}

			q := Query{
				Where: Gte("v", threshold),
				Order: []Order{Asc("v"), Asc("i")},
				Skip:  skip,
				Take:  take,
			}
			page := Apply(items, q)

			var expected []row
			for _, it := range items {
				if it["v"].(int) >= threshold {
					expected = append(expected, it)
				}
			}
			Sort(expected, q.Order)

			wantLen := len(expected) - skip
			if wantLen < 0 {
				wantLen = 0
			}
			if wantLen > take {
				wantLen = take
			}
			if len(page) != wantLen {
				t.Logf("FAIL: len = %d, want %d", len(page), wantLen)
				return false
			}
			for i, it := range page {
				if it["i"] != expected[skip+i]["i"] {
					t.Logf("FAIL: item %d = %v, want %v", i, it, expected[skip+i])
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(-50, 50)),
		gen.IntRange(-50, 50),
		gen.IntRange(0, 30),
		gen.IntRange(1, 15),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
