package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reelrate/reelrate/internal/domain"
	"github.com/reelrate/reelrate/internal/pgtest"
)

type testEnv struct {
	ctx        context.Context
	pool       *pgxpool.Pool
	repository *Repository
}

func newTestEnv(t testing.TB) *testEnv {
	t.Helper()
	pool := pgtest.Start(t)
	return &testEnv{
		ctx:        context.Background(),
		pool:       pool,
		repository: NewWithPool(pool),
	}
}

func mustCreateUser(t testing.TB, env *testEnv, username string) domain.User {
	t.Helper()
	user, err := env.repository.Users.Create(env.ctx, UserCreateParams{Username: username})
	if err != nil {
		t.Fatalf("create user %q: %v", username, err)
	}
	return user
}

func mustCreateTitle(t testing.TB, env *testEnv, name string, genres ...string) domain.Title {
	t.Helper()
	year := 2020
	title, err := env.repository.Titles.Create(env.ctx, TitleCreateParams{
		PrimaryTitle: name,
		TitleType:    "movie",
		StartYear:    &year,
	})
	if err != nil {
		t.Fatalf("create title %q: %v", name, err)
	}
	if len(genres) > 0 {
		if err := env.repository.Genres.Attach(env.ctx, title.ID, genres); err != nil {
			t.Fatalf("attach genres to %q: %v", name, err)
		}
	}
	return title
}

func mustRate(t testing.TB, env *testEnv, userID, titleID string, value int) domain.Rating {
	t.Helper()
	rating, _, err := env.repository.Ratings.Upsert(env.ctx, RatingUpsertParams{
		UserID:  userID,
		TitleID: titleID,
		Value:   value,
	})
	if err != nil {
		t.Fatalf("upsert rating: %v", err)
	}
	return rating
}

func TestUsersRepository_CreateGetList(t *testing.T) {
	env := newTestEnv(t)

	alice := mustCreateUser(t, env, "alice")
	mustCreateUser(t, env, "bob")

	got, err := env.repository.Users.GetByID(env.ctx, alice.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Username != "alice" {
		t.Fatalf("username = %s, want alice", got.Username)
	}

	if _, err := env.repository.Users.Create(env.ctx, UserCreateParams{Username: "alice"}); err != ErrDuplicateUsername {
		t.Fatalf("duplicate create error = %v, want ErrDuplicateUsername", err)
	}

	exists, err := env.repository.Users.Exists(env.ctx, alice.ID)
	if err != nil || !exists {
		t.Fatalf("Exists = (%v, %v), want (true, nil)", exists, err)
	}

	users, err := env.repository.Users.List(env.ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(users) != 2 || users[0].Username != "alice" {
		t.Fatalf("List = %+v, want alice first of 2", users)
	}
}

func TestTitlesRepository_CreateGetSearch(t *testing.T) {
	env := newTestEnv(t)

	inception := mustCreateTitle(t, env, "Inception", "Action", "Sci-Fi")
	mustCreateTitle(t, env, "Pulp Fiction", "Crime")

	got, err := env.repository.Titles.GetByID(env.ctx, inception.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Aggregate.AvgRating != nil || got.Aggregate.NumVotes != 0 {
		t.Fatalf("fresh title aggregate = %+v, want empty", got.Aggregate)
	}

	if _, err := env.repository.Titles.GetByID(env.ctx, "00000000-0000-0000-0000-000000000000"); err != ErrNotFound {
		t.Fatalf("unknown title error = %v, want ErrNotFound", err)
	}

	keyword := "incep"
	results, err := env.repository.Titles.Search(env.ctx, TitleSearchFilters{Keyword: &keyword})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].PrimaryTitle != "Inception" {
		t.Fatalf("keyword search = %+v, want only Inception", results)
	}

	genre := "crime"
	results, err = env.repository.Titles.Search(env.ctx, TitleSearchFilters{Genre: &genre})
	if err != nil {
		t.Fatalf("Search by genre: %v", err)
	}
	if len(results) != 1 || results[0].PrimaryTitle != "Pulp Fiction" {
		t.Fatalf("genre search = %+v, want only Pulp Fiction", results)
	}
}

func TestRatingsRepository_UpsertAndAggregate(t *testing.T) {
	env := newTestEnv(t)

	user1 := mustCreateUser(t, env, "user1")
	user2 := mustCreateUser(t, env, "user2")
	title := mustCreateTitle(t, env, "Rated Movie")

	rating, inserted, err := env.repository.Ratings.Upsert(env.ctx, RatingUpsertParams{
		UserID:  user1.ID,
		TitleID: title.ID,
		Value:   9,
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if !inserted {
		t.Fatalf("expected first upsert to insert")
	}
	if rating.Value != 9 {
		t.Fatalf("rating value = %d, want 9", rating.Value)
	}

	// Resubmission replaces in place.
	review := "changed my mind"
	replaced, inserted, err := env.repository.Ratings.Upsert(env.ctx, RatingUpsertParams{
		UserID:     user1.ID,
		TitleID:    title.ID,
		Value:      6,
		ReviewText: &review,
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if inserted {
		t.Fatalf("expected update, not insert")
	}
	if replaced.ID != rating.ID {
		t.Fatalf("replacement created a new row: %d != %d", replaced.ID, rating.ID)
	}
	if !replaced.RatedAt.After(rating.RatedAt) {
		t.Fatalf("rated_at not advanced on resubmission")
	}

	mustRate(t, env, user2.ID, title.ID, 8)

	avg, count, err := env.repository.Ratings.Aggregate(env.ctx, title.ID)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	if avg == nil || *avg != 7.0 {
		t.Fatalf("avg = %v, want 7.0", avg)
	}

	fetched, err := env.repository.Ratings.Get(env.ctx, user1.ID, title.ID)
	if err != nil {
		t.Fatalf("get rating: %v", err)
	}
	if fetched.Value != 6 || fetched.ReviewText == nil || *fetched.ReviewText != review {
		t.Fatalf("fetched = %+v, want value 6 with review", fetched)
	}

	if _, err := env.repository.Ratings.Get(env.ctx, user2.ID, "00000000-0000-0000-0000-000000000000"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for missing rating, got %v", err)
	}
}

func TestRatingsRepository_AggregateEmpty(t *testing.T) {
	env := newTestEnv(t)

	title := mustCreateTitle(t, env, "No Ratings Movie")

	avg, count, err := env.repository.Ratings.Aggregate(env.ctx, title.ID)
	if err != nil {
		t.Fatalf("aggregate without ratings: %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0", count)
	}
	if avg != nil {
		t.Fatalf("avg = %v, want nil", avg)
	}
}

func TestTitlesRepository_SetAggregate(t *testing.T) {
	env := newTestEnv(t)

	title := mustCreateTitle(t, env, "Aggregated Movie")
	avg := 7.25
	if err := env.repository.Titles.SetAggregate(env.ctx, title.ID, &avg, 4); err != nil {
		t.Fatalf("SetAggregate: %v", err)
	}

	got, err := env.repository.Titles.GetByID(env.ctx, title.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Aggregate.AvgRating == nil || *got.Aggregate.AvgRating != 7.25 || got.Aggregate.NumVotes != 4 {
		t.Fatalf("aggregate = %+v, want avg 7.25 votes 4", got.Aggregate)
	}

	if err := env.repository.Titles.SetAggregate(env.ctx, "00000000-0000-0000-0000-000000000000", &avg, 1); err != ErrNotFound {
		t.Fatalf("SetAggregate on unknown title = %v, want ErrNotFound", err)
	}
}

func TestGenresRepository_TopByRating(t *testing.T) {
	env := newTestEnv(t)

	alice := mustCreateUser(t, env, "alice")
	bob := mustCreateUser(t, env, "bob")
	action := mustCreateTitle(t, env, "Action Movie", "Action")
	drama := mustCreateTitle(t, env, "Drama Movie", "Drama")

	mustRate(t, env, alice.ID, action.ID, 9)
	mustRate(t, env, bob.ID, action.ID, 7)
	mustRate(t, env, alice.ID, drama.ID, 5)
	mustRate(t, env, bob.ID, drama.ID, 5)

	stats, err := env.repository.Genres.TopByRating(env.ctx, 2, 20)
	if err != nil {
		t.Fatalf("TopByRating: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("len(stats) = %d, want 2", len(stats))
	}
	if stats[0].Name != "Action" || stats[0].AvgRating != 8.0 || stats[0].NumRatings != 2 {
		t.Fatalf("stats[0] = %+v, want Action avg 8.0 over 2", stats[0])
	}
	if stats[1].Name != "Drama" {
		t.Fatalf("stats[1] = %+v, want Drama", stats[1])
	}

	// minRatings filters sparse genres.
	carol := mustCreateUser(t, env, "carol")
	comedy := mustCreateTitle(t, env, "Comedy Movie", "Comedy")
	mustRate(t, env, carol.ID, comedy.ID, 10)

	stats, err = env.repository.Genres.TopByRating(env.ctx, 2, 20)
	if err != nil {
		t.Fatalf("TopByRating after sparse genre: %v", err)
	}
	for _, stat := range stats {
		if stat.Name == "Comedy" {
			t.Fatalf("Comedy has 1 rating and should be filtered: %+v", stats)
		}
	}
}

func TestGenresRepository_OfTitles(t *testing.T) {
	env := newTestEnv(t)

	first := mustCreateTitle(t, env, "First", "Action", "Sci-Fi")
	second := mustCreateTitle(t, env, "Second", "Sci-Fi", "Thriller")

	genres, err := env.repository.Genres.OfTitles(env.ctx, []string{first.ID, second.ID})
	if err != nil {
		t.Fatalf("OfTitles: %v", err)
	}
	names := make([]string, 0, len(genres))
	for _, genre := range genres {
		names = append(names, genre.Name)
	}
	want := []string{"Action", "Sci-Fi", "Thriller"}
	if len(names) != len(want) {
		t.Fatalf("genres = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("genres = %v, want %v", names, want)
		}
	}
}

func TestTitlesRepository_CandidatesExcludeRated(t *testing.T) {
	env := newTestEnv(t)

	alice := mustCreateUser(t, env, "alice")
	bob := mustCreateUser(t, env, "bob")

	rated := mustCreateTitle(t, env, "Rated Action", "Action")
	unratedHigh := mustCreateTitle(t, env, "Unrated Action A", "Action")
	unratedLow := mustCreateTitle(t, env, "Unrated Action B", "Action")
	mustCreateTitle(t, env, "Unrelated Comedy", "Comedy")

	mustRate(t, env, alice.ID, rated.ID, 3) // any value excludes the title

	// Give the unrated candidates aggregates to order by.
	mustRate(t, env, bob.ID, unratedHigh.ID, 9)
	avgHigh := 9.0
	if err := env.repository.Titles.SetAggregate(env.ctx, unratedHigh.ID, &avgHigh, 1); err != nil {
		t.Fatalf("set aggregate: %v", err)
	}
	mustRate(t, env, bob.ID, unratedLow.ID, 4)
	avgLow := 4.0
	if err := env.repository.Titles.SetAggregate(env.ctx, unratedLow.ID, &avgLow, 1); err != nil {
		t.Fatalf("set aggregate: %v", err)
	}

	candidates, err := env.repository.Titles.Candidates(env.ctx, []string{"Action"}, alice.ID, 10)
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("len(candidates) = %d, want 2 (rated and off-genre excluded)", len(candidates))
	}
	if candidates[0].Title.ID != unratedHigh.ID {
		t.Fatalf("candidates[0] = %s, want best-rated first", candidates[0].Title.PrimaryTitle)
	}
	for _, c := range candidates {
		if c.Title.ID == rated.ID {
			t.Fatalf("rated title leaked into candidates")
		}
		if len(c.MatchedGenres) != 1 || c.MatchedGenres[0] != "Action" {
			t.Fatalf("matched genres = %v, want [Action]", c.MatchedGenres)
		}
	}
}

func TestTitlesRepository_MostRated(t *testing.T) {
	env := newTestEnv(t)

	quiet := mustCreateTitle(t, env, "Quiet Movie")
	busy := mustCreateTitle(t, env, "Busy Movie")
	middling := mustCreateTitle(t, env, "Middling Movie")

	avgBusy := 6.0
	if err := env.repository.Titles.SetAggregate(env.ctx, busy.ID, &avgBusy, 12); err != nil {
		t.Fatalf("set aggregate: %v", err)
	}
	avgMid := 9.0
	if err := env.repository.Titles.SetAggregate(env.ctx, middling.ID, &avgMid, 3); err != nil {
		t.Fatalf("set aggregate: %v", err)
	}

	titles, err := env.repository.Titles.MostRated(env.ctx, 0)
	if err != nil {
		t.Fatalf("MostRated: %v", err)
	}
	if len(titles) != 3 {
		t.Fatalf("len(titles) = %d, want all 3 including the unrated one", len(titles))
	}
	if titles[0].ID != busy.ID || titles[1].ID != middling.ID || titles[2].ID != quiet.ID {
		t.Fatalf("order = %s, %s, %s; want busiest first, unrated last",
			titles[0].PrimaryTitle, titles[1].PrimaryTitle, titles[2].PrimaryTitle)
	}

	titles, err = env.repository.Titles.MostRated(env.ctx, 1)
	if err != nil {
		t.Fatalf("MostRated with limit: %v", err)
	}
	if len(titles) != 1 || titles[0].ID != busy.ID {
		t.Fatalf("limited result = %+v, want only the busiest title", titles)
	}
}

func TestTitlesRepository_AboveAverage(t *testing.T) {
	env := newTestEnv(t)

	low := mustCreateTitle(t, env, "Low Movie")
	high := mustCreateTitle(t, env, "High Movie")
	mid := mustCreateTitle(t, env, "Mid Movie")
	mustCreateTitle(t, env, "Unrated Movie")

	// Per-title averages 4, 8, 6: global mean 6. Mid sits exactly on it
	// and must qualify.
	for _, tc := range []struct {
		id  string
		avg float64
	}{
		{low.ID, 4.0},
		{high.ID, 8.0},
		{mid.ID, 6.0},
	} {
		avg := tc.avg
		if err := env.repository.Titles.SetAggregate(env.ctx, tc.id, &avg, 2); err != nil {
			t.Fatalf("set aggregate: %v", err)
		}
	}

	titles, err := env.repository.Titles.AboveAverage(env.ctx, 0)
	if err != nil {
		t.Fatalf("AboveAverage: %v", err)
	}
	if len(titles) != 2 {
		t.Fatalf("len(titles) = %d, want 2 (at or above the mean)", len(titles))
	}
	if titles[0].ID != high.ID || titles[1].ID != mid.ID {
		t.Fatalf("order = %s, %s; want best average first", titles[0].PrimaryTitle, titles[1].PrimaryTitle)
	}
	for _, title := range titles {
		if title.ID == low.ID {
			t.Fatalf("below-average title leaked into results")
		}
	}
}

func TestPeopleRepository_MultiRole(t *testing.T) {
	env := newTestEnv(t)

	first := mustCreateTitle(t, env, "Auteur Movie")
	second := mustCreateTitle(t, env, "Second Feature")

	auteur, err := env.repository.People.Create(env.ctx, PersonCreateParams{PrimaryName: "Ada Auteur"})
	if err != nil {
		t.Fatalf("create person: %v", err)
	}
	actor, err := env.repository.People.Create(env.ctx, PersonCreateParams{PrimaryName: "Ben Actor"})
	if err != nil {
		t.Fatalf("create person: %v", err)
	}

	// Ada directs and acts; Ben only acts.
	if err := env.repository.People.AssignRole(env.ctx, first.ID, auteur.ID, "director", nil); err != nil {
		t.Fatalf("assign role: %v", err)
	}
	if err := env.repository.People.AssignRole(env.ctx, first.ID, auteur.ID, "actor", nil); err != nil {
		t.Fatalf("assign role: %v", err)
	}
	if err := env.repository.People.AssignRole(env.ctx, second.ID, auteur.ID, "director", nil); err != nil {
		t.Fatalf("assign role: %v", err)
	}
	if err := env.repository.People.AssignRole(env.ctx, first.ID, actor.ID, "actor", nil); err != nil {
		t.Fatalf("assign role: %v", err)
	}

	credits, err := env.repository.People.MultiRole(env.ctx, 0)
	if err != nil {
		t.Fatalf("MultiRole: %v", err)
	}
	if len(credits) != 2 {
		t.Fatalf("len(credits) = %d, want 2 (one per title Ada is credited on)", len(credits))
	}
	for _, credit := range credits {
		if credit.PersonID != auteur.ID {
			t.Fatalf("single-role person leaked into results: %+v", credit)
		}
	}
	if credits[0].TitleID != first.ID {
		t.Fatalf("credits[0] = %+v, want alphabetical by title", credits[0])
	}
	if len(credits[0].Roles) != 2 || credits[0].Roles[0] != "actor" || credits[0].Roles[1] != "director" {
		t.Fatalf("roles = %v, want [actor director]", credits[0].Roles)
	}
	if len(credits[1].Roles) != 1 || credits[1].Roles[0] != "director" {
		t.Fatalf("second title roles = %v, want only director", credits[1].Roles)
	}
}

func TestPeopleRepository_Credits(t *testing.T) {
	env := newTestEnv(t)

	title := mustCreateTitle(t, env, "Credited Movie")
	director, err := env.repository.People.Create(env.ctx, PersonCreateParams{PrimaryName: "Ada Director"})
	if err != nil {
		t.Fatalf("create person: %v", err)
	}
	actor, err := env.repository.People.Create(env.ctx, PersonCreateParams{PrimaryName: "Ben Actor"})
	if err != nil {
		t.Fatalf("create person: %v", err)
	}

	characters := "Lead"
	if err := env.repository.People.AssignRole(env.ctx, title.ID, actor.ID, "actor", &characters); err != nil {
		t.Fatalf("assign actor: %v", err)
	}
	if err := env.repository.People.AssignRole(env.ctx, title.ID, director.ID, "director", nil); err != nil {
		t.Fatalf("assign director: %v", err)
	}

	credits, err := env.repository.People.CreditsFor(env.ctx, title.ID)
	if err != nil {
		t.Fatalf("CreditsFor: %v", err)
	}
	if len(credits) != 2 {
		t.Fatalf("len(credits) = %d, want 2", len(credits))
	}
	if credits[0].RoleType != "director" {
		t.Fatalf("credits[0] role = %s, want director first", credits[0].RoleType)
	}
	if credits[1].Characters == nil || *credits[1].Characters != "Lead" {
		t.Fatalf("actor characters = %v, want Lead", credits[1].Characters)
	}
}

func BenchmarkRatingsRepositoryUpsert(b *testing.B) {
	env := newTestEnv(b)

	title := mustCreateTitle(b, env, "Bench Movie")
	users := make([]domain.User, 50)
	for i := range users {
		users[i] = mustCreateUser(b, env, fmt.Sprintf("bench-%d", i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		user := users[i%len(users)]
		_, _, err := env.repository.Ratings.Upsert(env.ctx, RatingUpsertParams{
			UserID:  user.ID,
			TitleID: title.ID,
			Value:   (i % 10) + 1,
		})
		if err != nil {
			b.Fatalf("upsert: %v", err)
		}
	}
}
