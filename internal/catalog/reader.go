package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkrasnov/filmwork-etl/internal/catalog/schema"
	"github.com/dkrasnov/filmwork-etl/internal/platform/dberr"
)

// # Reader

// Reader is the pgx-backed query layer producers page through.
type Reader struct {
	pool    *pgxpool.Pool
	fetchBy int
}

// NewReader constructs a catalog Reader bound to pool, paginating every
// query at fetchBy rows (FETCH_FROM_PG_BY).
func NewReader(pool *pgxpool.Pool, fetchBy int) *Reader {
	return &Reader{pool: pool, fetchBy: fetchBy}
}

// # Full Movie Hydration

// MoviesByIDs retrieves full movie rows (with aggregated genre/person
// joins) for the given ids. The query has no ORDER BY, so the order of the
// returned rows is not defined. The parallel GenreIDs/PersonIDs
// arrays are cast to text in SQL since pgx has no native array codec for
// arbitrary sql.Scanner id types.
func (r *Reader) MoviesByIDs(ctx context.Context, ids []uuid.UUID) ([]Movie, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT
			fw.%s,
			fw.%s,
			fw.%s,
			fw.%s,
			fw.%s,
			fw.%s,
			array_agg(g.%s) AS genre_names,
			array_agg(g.%s::text) AS genre_ids,
			array_agg(p.%s) AS person_names,
			array_agg(p.%s::text) AS person_ids,
			array_agg(pfw.%s) AS person_roles
		FROM %s fw
		LEFT JOIN %s pfw ON pfw.%s = fw.%s
		LEFT JOIN %s p ON p.%s = pfw.%s
		LEFT JOIN %s gfw ON gfw.%s = fw.%s
		LEFT JOIN %s g ON g.%s = gfw.%s
		WHERE fw.%s = ANY($1)
		GROUP BY fw.%s
	`,
		schema.FilmWork.ID, schema.FilmWork.Title, schema.FilmWork.Description,
		schema.FilmWork.Rating, schema.FilmWork.Created, schema.FilmWork.Modified,
		schema.Genre.Name, schema.Genre.ID,
		schema.Person.FullName, schema.Person.ID, schema.PersonFilmWork.Role,
		schema.FilmWork.Table,
		schema.PersonFilmWork.Table, schema.PersonFilmWork.FilmWorkID, schema.FilmWork.ID,
		schema.Person.Table, schema.Person.ID, schema.PersonFilmWork.PersonID,
		schema.GenreFilmWork.Table, schema.GenreFilmWork.FilmWorkID, schema.FilmWork.ID,
		schema.Genre.Table, schema.Genre.ID, schema.GenreFilmWork.GenreID,
		schema.FilmWork.ID,
		schema.FilmWork.ID,
	)

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, dberr.Wrap(err, "catalog: fetch movies by ids")
	}
	defer rows.Close()

	var movies []Movie
	for rows.Next() {
		var movie Movie
		if err := rows.Scan(
			&movie.ID, &movie.Title, &movie.Description, &movie.Rating,
			&movie.Created, &movie.Modified,
			&movie.GenreNames, &movie.GenreIDs,
			&movie.PersonNames, &movie.PersonIDs, &movie.PersonRoles,
		); err != nil {
			return nil, fmt.Errorf("catalog: failed to scan movie: %w", err)
		}
		movies = append(movies, movie)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, "catalog: fetch movies by ids")
	}

	return movies, nil
}

// # Cursor Pages

// UpdatedPersons returns persons with modified > after, ordered by
// modified ascending, limited to fetchBy rows.
func (r *Reader) UpdatedPersons(ctx context.Context, after time.Time) ([]Person, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s
		FROM %s
		WHERE %s > $1
		ORDER BY %s
		LIMIT %d
	`,
		schema.Person.ID, schema.Person.Modified, schema.Person.FullName,
		schema.Person.Table,
		schema.Person.Modified,
		schema.Person.Modified,
		r.fetchBy,
	)

	rows, err := r.pool.Query(ctx, query, after)
	if err != nil {
		return nil, dberr.Wrap(err, "catalog: fetch updated persons")
	}
	defer rows.Close()

	var persons []Person
	for rows.Next() {
		var person Person
		if err := rows.Scan(&person.ID, &person.Modified, &person.FullName); err != nil {
			return nil, fmt.Errorf("catalog: failed to scan person: %w", err)
		}
		persons = append(persons, person)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, "catalog: fetch updated persons")
	}

	return persons, nil
}

// MoviesByPersons returns movies linked to any of the given persons with
// modified > after, ordered by modified ascending.
func (r *Reader) MoviesByPersons(ctx context.Context, persons []Person, after time.Time) ([]MovieRef, error) {
	if len(persons) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, len(persons))
	for i, p := range persons {
		ids[i] = p.ID
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT fw.%s, fw.%s
		FROM %s fw
		LEFT JOIN %s pfw ON pfw.%s = fw.%s
		WHERE fw.%s > $1 AND pfw.%s = ANY($2)
		ORDER BY fw.%s
		LIMIT %d
	`,
		schema.FilmWork.ID, schema.FilmWork.Modified,
		schema.FilmWork.Table,
		schema.PersonFilmWork.Table, schema.PersonFilmWork.FilmWorkID, schema.FilmWork.ID,
		schema.FilmWork.Modified, schema.PersonFilmWork.PersonID,
		schema.FilmWork.Modified,
		r.fetchBy,
	)

	return r.queryMovieRefs(ctx, query, after, ids)
}

// MoviesUpdatedAfter returns movie refs with modified > after.
func (r *Reader) MoviesUpdatedAfter(ctx context.Context, after time.Time) ([]MovieRef, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s
		FROM %s
		WHERE %s > $1
		ORDER BY %s
		LIMIT %d
	`,
		schema.FilmWork.ID, schema.FilmWork.Modified,
		schema.FilmWork.Table,
		schema.FilmWork.Modified,
		schema.FilmWork.Modified,
		r.fetchBy,
	)

	rows, err := r.pool.Query(ctx, query, after)
	if err != nil {
		return nil, dberr.Wrap(err, "catalog: fetch movies updated after")
	}
	defer rows.Close()

	return scanMovieRefs(rows)
}

// UpdatedGenres returns genres with modified > after.
func (r *Reader) UpdatedGenres(ctx context.Context, after time.Time) ([]Genre, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s
		FROM %s
		WHERE %s > $1
		ORDER BY %s
		LIMIT %d
	`,
		schema.Genre.ID, schema.Genre.Name, schema.Genre.Description, schema.Genre.Modified,
		schema.Genre.Table,
		schema.Genre.Modified,
		schema.Genre.Modified,
		r.fetchBy,
	)

	rows, err := r.pool.Query(ctx, query, after)
	if err != nil {
		return nil, dberr.Wrap(err, "catalog: fetch updated genres")
	}
	defer rows.Close()

	var genres []Genre
	for rows.Next() {
		var genre Genre
		if err := rows.Scan(&genre.ID, &genre.Name, &genre.Description, &genre.Modified); err != nil {
			return nil, fmt.Errorf("catalog: failed to scan genre: %w", err)
		}
		genres = append(genres, genre)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, "catalog: fetch updated genres")
	}

	return genres, nil
}

// MoviesByGenres returns movies linked to any of the given genres with
// modified > after, ordered by modified ascending.
func (r *Reader) MoviesByGenres(ctx context.Context, genres []Genre, after time.Time) ([]MovieRef, error) {
	if len(genres) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, len(genres))
	for i, g := range genres {
		ids[i] = g.ID
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT fw.%s, fw.%s
		FROM %s fw
		LEFT JOIN %s gfw ON gfw.%s = fw.%s
		WHERE fw.%s > $1 AND gfw.%s = ANY($2)
		ORDER BY fw.%s
		LIMIT %d
	`,
		schema.FilmWork.ID, schema.FilmWork.Modified,
		schema.FilmWork.Table,
		schema.GenreFilmWork.Table, schema.GenreFilmWork.FilmWorkID, schema.FilmWork.ID,
		schema.FilmWork.Modified, schema.GenreFilmWork.GenreID,
		schema.FilmWork.Modified,
		r.fetchBy,
	)

	return r.queryMovieRefs(ctx, query, after, ids)
}

func (r *Reader) queryMovieRefs(ctx context.Context, query string, after time.Time, ids []uuid.UUID) ([]MovieRef, error) {
	rows, err := r.pool.Query(ctx, query, after, ids)
	if err != nil {
		return nil, dberr.Wrap(err, "catalog: fetch linked movies")
	}
	defer rows.Close()

	return scanMovieRefs(rows)
}

func scanMovieRefs(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]MovieRef, error) {
	var refs []MovieRef
	for rows.Next() {
		var ref MovieRef
		if err := rows.Scan(&ref.ID, &ref.Modified); err != nil {
			return nil, fmt.Errorf("catalog: failed to scan movie ref: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, "catalog: fetch linked movies")
	}
	return refs, nil
}
