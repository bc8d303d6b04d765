package httpserver

import (
	"net/url"
	"testing"
)

// FuzzBuildTitleFilters checks the query parser never panics and keeps its
// basic guarantees over arbitrary input.
func FuzzBuildTitleFilters(f *testing.F) {
	f.Add("inception", "2000", "2020", "movie", "Action", "10")
	f.Add("", "", "", "", "", "")
	f.Add("   ", "-1", "99999", "SERIES", "sci-fi", "0")
	f.Add("o'neil; drop table title", "20x0", "", "", "", "-5")

	f.Fuzz(func(t *testing.T, keyword, yearFrom, yearTo, titleType, genre, limit string) {
		query := url.Values{}
		query.Set("keyword", keyword)
		query.Set("year_from", yearFrom)
		query.Set("year_to", yearTo)
		query.Set("type", titleType)
		query.Set("genre", genre)
		query.Set("limit", limit)

		filters, err := buildTitleFilters(query)
		if err != nil {
			return
		}
		if filters.Keyword != nil && *filters.Keyword == "" {
			t.Fatalf("blank keyword should be dropped, not kept empty")
		}
		if filters.TitleType != nil && *filters.TitleType == "" {
			t.Fatalf("blank type should be dropped, not kept empty")
		}
		if filters.Genre != nil && *filters.Genre == "" {
			t.Fatalf("blank genre should be dropped, not kept empty")
		}
	})
}
