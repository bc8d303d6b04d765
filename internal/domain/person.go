package domain

// Person is a cast or crew member. Read-only relative to the rating core.
type Person struct {
	ID          string
	PrimaryName string
	BirthYear   *int
	DeathYear   *int
}

// Credit ties a person to a title with a role type (actor, director,
// writer, producer) and optional character names.
type Credit struct {
	Person     Person
	RoleType   string
	Characters *string
}
