package domain

import "time"

// TitleAggregate is the cached projection over a title's ratings. It is
// derived state: after every committed submission it must equal the true
// average and count of the title's stored ratings. AvgRating is nil until
// the first vote lands.
type TitleAggregate struct {
	AvgRating *float64
	NumVotes  int64
}

// Title represents a media item (movie, series, ...) in the catalog.
type Title struct {
	ID             string
	PrimaryTitle   string
	TitleType      string
	StartYear      *int
	RuntimeMinutes *int
	Aggregate      TitleAggregate
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Genre is a name attached to titles via a many-to-many relation.
type Genre struct {
	ID   string
	Name string
}

// GenreStats carries per-genre rating aggregates for the top-genres view.
type GenreStats struct {
	Name       string
	AvgRating  float64
	NumRatings int64
}
