package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Snapshot is the row count of every base table of one credential at a
// point in time.
type Snapshot struct {
	ID         string
	Credential string
	TakenAt    time.Time
	Counts     map[string]int64
}

// TableChange is the row count difference of one table between snapshots.
type TableChange struct {
	Table    string
	Previous int64
	Current  int64
	New      bool // table absent from the previous snapshot
}

// Delta returns Current - Previous.
func (c TableChange) Delta() int64 { return c.Current - c.Previous }

// SaveSnapshot stores counts for credential as a new snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, credential string, counts map[string]int64) (*Snapshot, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		ID:         newID(),
		Credential: credential,
		TakenAt:    time.Now().UTC(),
		Counts:     counts,
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO table_snapshots (snapshot_id, credential, table_name, row_count, taken_at)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, table := range sortedKeys(counts) {
		if _, err := stmt.ExecContext(ctx, snap.ID, credential, table, counts[table], toMillis(snap.TakenAt)); err != nil {
			return nil, fmt.Errorf("insert snapshot for table %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return snap, nil
}

// LatestSnapshot returns the most recent snapshot of credential, or nil
// when none exists.
func (s *Store) LatestSnapshot(ctx context.Context, credential string) (*Snapshot, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Credential: credential, Counts: map[string]int64{}}
	var takenAt int64
	err = db.QueryRowContext(ctx, `
		SELECT snapshot_id, taken_at FROM table_snapshots
		WHERE credential = ?
		ORDER BY taken_at DESC, snapshot_id DESC
		LIMIT 1`, credential).Scan(&snap.ID, &takenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	snap.TakenAt = fromMillis(takenAt)

	rows, err := db.QueryContext(ctx, `
		SELECT table_name, row_count FROM table_snapshots
		WHERE snapshot_id = ?`, snap.ID)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			table string
			count int64
		)
		if err := rows.Scan(&table, &count); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.Counts[table] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	return snap, nil
}

// Diff lists the tables of current whose row count differs from previous,
// sorted by table name. A nil previous reports every non-empty table as new.
// Tables dropped since previous are not reported.
func Diff(previous *Snapshot, current map[string]int64) []TableChange {
	var changes []TableChange
	for _, table := range sortedKeys(current) {
		count := current[table]
		if previous == nil {
			if count != 0 {
				changes = append(changes, TableChange{Table: table, Current: count, New: true})
			}
			continue
		}
		before, ok := previous.Counts[table]
		if !ok {
			changes = append(changes, TableChange{Table: table, Current: count, New: true})
			continue
		}
		if before != count {
			changes = append(changes, TableChange{Table: table, Previous: before, Current: count})
		}
	}
	return changes
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
