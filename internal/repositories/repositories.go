package repositories

import (
	"database/sql"
	"errors"
	"fmt"
)

// ErrSequenceMissing is returned when a sequence table has no counter row.
var ErrSequenceMissing = errors.New("sequence counter not seeded")

// rowQuerier is satisfied by *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRow(query string, args ...any) *sql.Row
}

// NextSequence advances the counter kept in {table}_sequence and returns the new value.
//
// The increment and read are one UPDATE ... RETURNING statement, so concurrent callers never see the same value.
func NextSequence(q rowQuerier, table string) (int, error) {
	query := fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)

	var sequence int
	if err := q.QueryRow(query).Scan(&sequence); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", ErrSequenceMissing, table)
		}
		return 0, fmt.Errorf("failed to advance %s sequence: %w", table, err)
	}
	return sequence, nil
}
