// Package umls queries a local UMLS mirror (the mrconso table) for
// synonym surface forms, used by the synonym resolver.
package umls

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// errUMLSQuery is the sentinel wrapped into every query-path error
// returned by this package. engine/synonym does not inspect it: any
// error from this package makes the affected synonyms empty rather than
// failing the chunk.
var errUMLSQuery = errors.New("umls query failed")

// Pool is the subset of *pgxpool.Pool this package depends on, letting
// tests substitute a fake transaction source.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store wraps UMLS mrconso lookups in explicit transactions so that a
// query failure can roll back the transaction and leave the connection
// usable for the next chunk.
type Store struct {
	pool Pool
}

// New creates a Store from a pgx connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewWithPool creates a Store from any Pool implementation (used by
// tests).
func NewWithPool(pool Pool) *Store {
	return &Store{pool: pool}
}

// CodesToCUIs resolves (code, sab) pairs to their CUIs via mrconso,
// filtered by the source vocabulary (SAB), keyed by the originating code so
// that two codes in the same chunk that resolve to different CUIs never
// share a synonym set.
func (s *Store) CodesToCUIs(ctx context.Context, codes []string, sab string) (map[string]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("umls: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`SELECT code, cui FROM mrconso WHERE code = ANY($1) AND sab = $2`,
		codes, sab)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errUMLSQuery, err)
	}
	defer rows.Close()

	cuis := make(map[string]string, len(codes))
	for rows.Next() {
		var code, cui string
		if err := rows.Scan(&code, &cui); err != nil {
			return nil, fmt.Errorf("%w: %v", errUMLSQuery, err)
		}
		if _, ok := cuis[code]; !ok {
			cuis[code] = cui
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", errUMLSQuery, err)
	}
	return cuis, tx.Commit(ctx)
}

// SurfaceFormsByCUI fetches English, non-suppressed surface forms for the
// given CUIs, ordered by term-type priority (PT first, then by length),
// and groups them by CUI. Each group is capped at 20 entries.
func (s *Store) SurfaceFormsByCUI(ctx context.Context, cuis []string) (map[string][]string, error) {
	if len(cuis) == 0 {
		return map[string][]string{}, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("umls: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`SELECT cui, str, tty FROM mrconso
		 WHERE cui = ANY($1) AND lat = 'ENG' AND suppress = 'N'
		 ORDER BY cui, (tty <> 'PT'), length(str)`,
		cuis)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errUMLSQuery, err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var cui, str, tty string
		if err := rows.Scan(&cui, &str, &tty); err != nil {
			return nil, fmt.Errorf("%w: %v", errUMLSQuery, err)
		}
		if len(out[cui]) >= 20 {
			continue
		}
		out[cui] = append(out[cui], str)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", errUMLSQuery, err)
	}
	return out, tx.Commit(ctx)
}

// sourceVocabPriority ranks the fallback text-search source vocabularies.
var sourceVocabPriority = []string{"SNOMEDCT_US", "RXNORM", "MSH"}

// ExactMatchCUI finds the best CUI for an exact, case-insensitive surface
// form match, ranked by source-vocabulary priority.
func (s *Store) ExactMatchCUI(ctx context.Context, surfaceForm string) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("umls: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, sab := range sourceVocabPriority {
		var cui string
		err := tx.QueryRow(ctx,
			`SELECT cui FROM mrconso WHERE lower(str) = lower($1) AND sab = $2 LIMIT 1`,
			surfaceForm, sab).Scan(&cui)
		if err == nil {
			return cui, tx.Commit(ctx)
		}
		if err != pgx.ErrNoRows {
			return "", fmt.Errorf("%w: %v", errUMLSQuery, err)
		}
	}
	var cui string
	err = tx.QueryRow(ctx, `SELECT cui FROM mrconso WHERE lower(str) = lower($1) LIMIT 1`, surfaceForm).Scan(&cui)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", tx.Commit(ctx)
		}
		return "", fmt.Errorf("%w: %v", errUMLSQuery, err)
	}
	return cui, tx.Commit(ctx)
}

// SubstringMatchCUI finds a CUI via substring match on the surface form,
// bounding the candidate.s length delta to avoid runaway matches.
func (s *Store) SubstringMatchCUI(ctx context.Context, surfaceForm string, maxLengthDelta int) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("umls: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var cui string
	err = tx.QueryRow(ctx,
		`SELECT cui FROM mrconso
		 WHERE str ILIKE '%' || $1 || '%' AND abs(length(str) - length($1)) <= $2
		 LIMIT 1`,
		surfaceForm, maxLengthDelta).Scan(&cui)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", tx.Commit(ctx)
		}
		return "", fmt.Errorf("%w: %v", errUMLSQuery, err)
	}
	return cui, tx.Commit(ctx)
}

// MultiWordMatchCUI finds a CUI via an AND-match over the surface form's
// tokens longer than 2 characters. Only used when the surface form has
// at least 2 tokens.
func (s *Store) MultiWordMatchCUI(ctx context.Context, tokens []string) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("umls: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `SELECT cui FROM mrconso WHERE 1=1`
	args := []any{}
	for _, tok := range tokens {
		if len(tok) <= 2 {
			continue
		}
		args = append(args, tok)
		query += fmt.Sprintf(" AND str ILIKE '%%' || $%d || '%%'", len(args))
	}
	if len(args) == 0 {
		return "", tx.Commit(ctx)
	}
	query += " LIMIT 1"

	var cui string
	err = tx.QueryRow(ctx, query, args...).Scan(&cui)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", tx.Commit(ctx)
		}
		return "", fmt.Errorf("%w: %v", errUMLSQuery, err)
	}
	return cui, tx.Commit(ctx)
}
