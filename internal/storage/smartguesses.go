package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/saaga0h/teferi-timeline/internal/timeline"
	"github.com/saaga0h/teferi-timeline/pkg/geo"
)

// nearCandidateLimit caps how many rows a proximity query reads before the
// exact distance filter
const nearCandidateLimit = 200

// SmartGuessStore persists learned place/category pairs. On postgres each
// guess carries a pgvector embedding of its position on the unit sphere so
// candidates come back ordered by proximity.
type SmartGuessStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSmartGuessStore creates a store
func NewSmartGuessStore(db *sql.DB, dialect Dialect) *SmartGuessStore {
	return &SmartGuessStore{db: db, dialect: dialect}
}

func embedding(location timeline.Location) pgvector.Vector {
	v := geo.UnitVector(location.Latitude, location.Longitude)
	return pgvector.NewVector([]float32{float32(v[0]), float32(v[1]), float32(v[2])})
}

// Add stores a guess, assigning an id when it has none
func (s *SmartGuessStore) Add(ctx context.Context, guess timeline.SmartGuess) (timeline.SmartGuess, error) {
	if guess.ID == "" {
		guess.ID = uuid.New().String()
	}

	locationJSON, err := json.Marshal(guess.Location)
	if err != nil {
		return timeline.SmartGuess{}, fmt.Errorf("failed to marshal guess location: %w", err)
	}

	args := []any{
		guess.ID,
		string(guess.Category),
		guess.Location.Latitude,
		guess.Location.Longitude,
		string(locationJSON),
		guess.LastUsed.UnixMilli(),
		guess.ErrorCount,
	}

	query := `INSERT INTO smart_guesses (id, category, latitude, longitude, location_json, last_used_ms, error_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	if s.dialect == Postgres {
		query = `INSERT INTO smart_guesses (id, category, latitude, longitude, location_json, last_used_ms, error_count, embedding)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
		args = append(args, embedding(guess.Location))
	}

	if _, err := s.db.ExecContext(ctx, s.dialect.Rebind(query), args...); err != nil {
		return timeline.SmartGuess{}, fmt.Errorf("failed to insert smart guess: %w", err)
	}
	return guess, nil
}

// GuessesNear returns guesses within meters of location last used at or after
// since, nearest first
func (s *SmartGuessStore) GuessesNear(ctx context.Context, location timeline.Location, meters float64, since time.Time, exclude ...timeline.Category) ([]timeline.SmartGuess, error) {
	bounds := geo.BoundAround(location.Latitude, location.Longitude, meters)

	var (
		query strings.Builder
		args  = []any{bounds.MinLat, bounds.MaxLat, bounds.MinLon, bounds.MaxLon, since.UnixMilli()}
	)
	query.WriteString(`SELECT id, category, location_json, last_used_ms, error_count FROM smart_guesses
		WHERE latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ? AND last_used_ms >= ?`)

	excluded := make([]string, 0, len(exclude))
	for _, c := range exclude {
		excluded = append(excluded, string(c))
	}

	switch s.dialect {
	case Postgres:
		query.WriteString(` AND NOT (category = ANY(?)) ORDER BY embedding <-> ? LIMIT ?`)
		args = append(args, pq.Array(excluded), embedding(location), nearCandidateLimit)
	default:
		if len(excluded) > 0 {
			query.WriteString(` AND category NOT IN (?` + strings.Repeat(", ?", len(excluded)-1) + `)`)
			for _, c := range excluded {
				args = append(args, c)
			}
		}
		query.WriteString(` LIMIT ?`)
		args = append(args, nearCandidateLimit)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query.String()), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query smart guesses: %w", err)
	}
	defer rows.Close()

	type candidate struct {
		guess    timeline.SmartGuess
		distance float64
	}
	var candidates []candidate

	for rows.Next() {
		var (
			guess        timeline.SmartGuess
			category     string
			locationJSON string
			lastUsedMs   int64
		)
		if err := rows.Scan(&guess.ID, &category, &locationJSON, &lastUsedMs, &guess.ErrorCount); err != nil {
			return nil, fmt.Errorf("failed to scan smart guess row: %w", err)
		}
		if err := json.Unmarshal([]byte(locationJSON), &guess.Location); err != nil {
			return nil, fmt.Errorf("failed to unmarshal guess location: %w", err)
		}
		guess.Category = timeline.Category(category)
		guess.LastUsed = time.UnixMilli(lastUsedMs).UTC()

		d := location.DistanceTo(guess.Location)
		if d > meters {
			continue
		}
		candidates = append(candidates, candidate{guess: guess, distance: d})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating smart guess rows: %w", err)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})

	guesses := make([]timeline.SmartGuess, len(candidates))
	for i, c := range candidates {
		guesses[i] = c.guess
	}
	return guesses, nil
}

// MarkUsed records that a guess was applied at t
func (s *SmartGuessStore) MarkUsed(ctx context.Context, id string, at time.Time) error {
	query := s.dialect.Rebind(`UPDATE smart_guesses SET last_used_ms = ? WHERE id = ?`)
	if _, err := s.db.ExecContext(ctx, query, at.UnixMilli(), id); err != nil {
		return fmt.Errorf("failed to mark smart guess %s used: %w", id, err)
	}
	return nil
}

// Strike records one more mistake against a guess
func (s *SmartGuessStore) Strike(ctx context.Context, id string) error {
	query := s.dialect.Rebind(`UPDATE smart_guesses SET error_count = error_count + 1 WHERE id = ?`)
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to strike smart guess %s: %w", id, err)
	}
	return nil
}

// Count returns the number of stored guesses
func (s *SmartGuessStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM smart_guesses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count smart guesses: %w", err)
	}
	return n, nil
}
