// Command seed loads a JSON fixture of users, genres, titles, people, and
// ratings into the database. Ratings go through the ledger so the cached
// aggregates come out correct.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reelrate/reelrate/internal/ledger"
	"github.com/reelrate/reelrate/internal/repository"
)

type seedFile struct {
	Genres []string     `json:"genres"`
	Users  []seedUser   `json:"users"`
	People []seedPerson `json:"people"`
	Titles []seedTitle  `json:"titles"`
}

type seedUser struct {
	Username string  `json:"username"`
	Email    *string `json:"email"`
	IsAdmin  bool    `json:"isAdmin"`
}

type seedPerson struct {
	Name      string `json:"name"`
	BirthYear *int   `json:"birthYear"`
	DeathYear *int   `json:"deathYear"`
}

type seedTitle struct {
	PrimaryTitle   string       `json:"primaryTitle"`
	TitleType      string       `json:"titleType"`
	StartYear      *int         `json:"startYear"`
	RuntimeMinutes *int         `json:"runtimeMinutes"`
	Genres         []string     `json:"genres"`
	Credits        []seedCredit `json:"credits"`
	Ratings        []seedRating `json:"ratings"`
}

type seedCredit struct {
	Person     string  `json:"person"`
	Role       string  `json:"role"`
	Characters *string `json:"characters"`
}

type seedRating struct {
	User   string  `json:"user"`
	Value  int     `json:"value"`
	Review *string `json:"review"`
}

func main() {
	var (
		path    = flag.String("data", "db/seed.json", "path to seed fixture")
		timeout = flag.Duration("timeout", 2*time.Minute, "overall seeding timeout")
	)
	flag.Parse()

	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		log.Fatal("DB_URL is required")
	}

	payload, err := os.ReadFile(*path)
	if err != nil {
		log.Fatalf("read seed file: %v", err)
	}
	var fixture seedFile
	if err := json.Unmarshal(payload, &fixture); err != nil {
		log.Fatalf("parse seed file: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()

	logger := log.New(os.Stdout, "[seed] ", log.LstdFlags)
	repo := repository.NewWithPool(pool)
	ldg := ledger.New(pool, 3*time.Second, logger)

	for _, name := range fixture.Genres {
		if _, err := repo.Genres.Ensure(ctx, name); err != nil {
			log.Fatalf("seed genre %q: %v", name, err)
		}
	}

	userIDs := make(map[string]string, len(fixture.Users))
	for _, u := range fixture.Users {
		user, err := repo.Users.Create(ctx, repository.UserCreateParams{
			Username: u.Username,
			Email:    u.Email,
			IsAdmin:  u.IsAdmin,
		})
		if err != nil {
			log.Fatalf("seed user %q: %v", u.Username, err)
		}
		userIDs[u.Username] = user.ID
	}

	personIDs := make(map[string]string, len(fixture.People))
	for _, p := range fixture.People {
		person, err := repo.People.Create(ctx, repository.PersonCreateParams{
			PrimaryName: p.Name,
			BirthYear:   p.BirthYear,
			DeathYear:   p.DeathYear,
		})
		if err != nil {
			log.Fatalf("seed person %q: %v", p.Name, err)
		}
		personIDs[p.Name] = person.ID
	}

	var ratings int
	for _, t := range fixture.Titles {
		title, err := repo.Titles.Create(ctx, repository.TitleCreateParams{
			PrimaryTitle:   t.PrimaryTitle,
			TitleType:      t.TitleType,
			StartYear:      t.StartYear,
			RuntimeMinutes: t.RuntimeMinutes,
		})
		if err != nil {
			log.Fatalf("seed title %q: %v", t.PrimaryTitle, err)
		}
		if err := repo.Genres.Attach(ctx, title.ID, t.Genres); err != nil {
			log.Fatalf("seed genres for %q: %v", t.PrimaryTitle, err)
		}
		for _, c := range t.Credits {
			personID, ok := personIDs[c.Person]
			if !ok {
				log.Fatalf("title %q credits unknown person %q", t.PrimaryTitle, c.Person)
			}
			if err := repo.People.AssignRole(ctx, title.ID, personID, c.Role, c.Characters); err != nil {
				log.Fatalf("seed credit for %q: %v", t.PrimaryTitle, err)
			}
		}
		for _, r := range t.Ratings {
			userID, ok := userIDs[r.User]
			if !ok {
				log.Fatalf("title %q rated by unknown user %q", t.PrimaryTitle, r.User)
			}
			if _, err := ldg.SubmitUnchecked(ctx, ledger.Submission{
				UserID:     userID,
				TitleID:    title.ID,
				Value:      r.Value,
				ReviewText: r.Review,
			}); err != nil {
				log.Fatalf("seed rating for %q by %q: %v", t.PrimaryTitle, r.User, err)
			}
			ratings++
		}
	}

	logger.Printf("seeded %d users, %d people, %d titles, %d ratings",
		len(fixture.Users), len(fixture.People), len(fixture.Titles), ratings)
}
