package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/reelrate/reelrate/internal/domain"
)

// PeopleRepository provides the cast/crew lookup used by title detail
// views. Read-mostly relative to the rating core.
type PeopleRepository struct {
	db DB
}

// PersonCreateParams bundles the fields required to create a person.
type PersonCreateParams struct {
	PrimaryName string
	BirthYear   *int
	DeathYear   *int
}

// Create inserts a person with an app-generated identifier.
func (r *PeopleRepository) Create(ctx context.Context, params PersonCreateParams) (domain.Person, error) {
	const query = `
        INSERT INTO person (person_id, primary_name, birth_year, death_year)
        VALUES ($1,$2,$3,$4)
        RETURNING person_id, primary_name, birth_year, death_year
    `
	var person domain.Person
	err := r.db.QueryRow(ctx, query, uuid.NewString(), params.PrimaryName, params.BirthYear, params.DeathYear).Scan(
		&person.ID, &person.PrimaryName, &person.BirthYear, &person.DeathYear,
	)
	if err != nil {
		return domain.Person{}, err
	}
	return person, nil
}

// AssignRole credits a person on a title with the given role type.
func (r *PeopleRepository) AssignRole(ctx context.Context, titleID, personID, roleType string, characters *string) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO title_person_role (title_id, person_id, role_type, characters)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (title_id, person_id, role_type) DO UPDATE SET characters = EXCLUDED.characters
    `, titleID, personID, roleType, characters)
	return err
}

// CreditsFor lists a title's cast and crew, directors first, then writers,
// producers, and cast, alphabetical within each role.
func (r *PeopleRepository) CreditsFor(ctx context.Context, titleID string) ([]domain.Credit, error) {
	rows, err := r.db.Query(ctx, `
        SELECT p.person_id, p.primary_name, p.birth_year, p.death_year,
               tpr.role_type, tpr.characters
        FROM title_person_role tpr
        JOIN person p ON p.person_id = tpr.person_id
        WHERE tpr.title_id = $1
        ORDER BY
            CASE tpr.role_type
                WHEN 'director' THEN 1
                WHEN 'writer' THEN 2
                WHEN 'producer' THEN 3
                WHEN 'actor' THEN 4
                ELSE 5
            END,
            p.primary_name
    `, titleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	credits := make([]domain.Credit, 0)
	for rows.Next() {
		credit, err := scanCredit(rows)
		if err != nil {
			return nil, err
		}
		credits = append(credits, credit)
	}
	return credits, rows.Err()
}

// MultiRoleCredit is one (title, person) pair for a person who holds more
// than one distinct role somewhere in the catalog, with the roles they
// hold on that title.
type MultiRoleCredit struct {
	TitleID      string
	PrimaryTitle string
	PersonID     string
	PrimaryName  string
	Roles        []string
}

// MultiRole lists the title credits of every person credited under more
// than one distinct role type, alphabetical by title then person.
func (r *PeopleRepository) MultiRole(ctx context.Context, limit int) ([]MultiRoleCredit, error) {
	rows, err := r.db.Query(ctx, `
        SELECT t.title_id, t.primary_title, p.person_id, p.primary_name,
               array_agg(DISTINCT tpr.role_type ORDER BY tpr.role_type) AS roles
        FROM title t
        JOIN title_person_role tpr ON tpr.title_id = t.title_id
        JOIN person p ON p.person_id = tpr.person_id
        WHERE p.person_id IN (
            SELECT person_id FROM title_person_role
            GROUP BY person_id
            HAVING COUNT(DISTINCT role_type) > 1
        )
        GROUP BY t.title_id, t.primary_title, p.person_id, p.primary_name
        ORDER BY t.primary_title, p.primary_name, t.title_id
        LIMIT $1
    `, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	credits := make([]MultiRoleCredit, 0)
	for rows.Next() {
		var credit MultiRoleCredit
		err := rows.Scan(
			&credit.TitleID,
			&credit.PrimaryTitle,
			&credit.PersonID,
			&credit.PrimaryName,
			&credit.Roles,
		)
		if err != nil {
			return nil, err
		}
		credits = append(credits, credit)
	}
	return credits, rows.Err()
}

func scanCredit(row pgx.Row) (domain.Credit, error) {
	var credit domain.Credit
	err := row.Scan(
		&credit.Person.ID,
		&credit.Person.PrimaryName,
		&credit.Person.BirthYear,
		&credit.Person.DeathYear,
		&credit.RoleType,
		&credit.Characters,
	)
	if err != nil {
		return domain.Credit{}, err
	}
	return credit, nil
}
