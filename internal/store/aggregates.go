package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
)

// GetAggregate returns the aggregate for key or ErrNotFound.
func (t *Tx) GetAggregate(key ir.AggregateKey) (ir.WorldAggregate, error) {
	var (
		rawKey, resource, civs []byte
		at                     int64
	)
	err := t.queryRow(`
		SELECT key, global_resource, active_civs, last_updated
		FROM aggregates WHERE key = ?
	`, key[:]).Scan(&rawKey, &resource, &civs, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.WorldAggregate{}, fmt.Errorf("aggregate %s: %w", key.Label(), ErrNotFound)
	}
	if err != nil {
		return ir.WorldAggregate{}, fmt.Errorf("get aggregate: %w", err)
	}

	agg := ir.WorldAggregate{
		GlobalResource: resource,
		ActiveCivs:     civs,
		LastUpdated:    fromNanos(at),
	}
	copy(agg.Key[:], rawKey)
	return agg, nil
}

// InsertAggregate creates the aggregate row and appends its key to the end
// of the index.
func (t *Tx) InsertAggregate(agg ir.WorldAggregate) error {
	_, err := t.exec(`
		INSERT INTO aggregates (key, global_resource, active_civs, last_updated)
		VALUES (?, ?, ?, ?)
	`, agg.Key[:], []byte(agg.GlobalResource), []byte(agg.ActiveCivs), toNanos(agg.LastUpdated))
	if err != nil {
		return fmt.Errorf("insert aggregate: %w", err)
	}

	n, err := t.indexLen()
	if err != nil {
		return err
	}
	if _, err := t.exec(`INSERT INTO aggregate_index (position, key) VALUES (?, ?)`, n, agg.Key[:]); err != nil {
		return fmt.Errorf("append aggregate index: %w", err)
	}
	return nil
}

// UpdateAggregate overwrites the handles and timestamp of an existing
// aggregate.
func (t *Tx) UpdateAggregate(key ir.AggregateKey, resource, civs ir.Handle, at time.Time) error {
	res, err := t.exec(`
		UPDATE aggregates SET global_resource = ?, active_civs = ?, last_updated = ?
		WHERE key = ?
	`, []byte(resource), []byte(civs), toNanos(at), key[:])
	if err != nil {
		return fmt.Errorf("update aggregate: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("aggregate %s: %w", key.Label(), ErrNotFound)
	}
	return nil
}

// DeleteAggregate removes the aggregate and its index entry, moving the last
// index entry into the vacated position. It reports whether key was live;
// an absent key is not an error.
func (t *Tx) DeleteAggregate(key ir.AggregateKey) (bool, error) {
	var position int64
	err := t.queryRow(`SELECT position FROM aggregate_index WHERE key = ?`, key[:]).Scan(&position)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := t.exec(`DELETE FROM aggregates WHERE key = ?`, key[:]); err != nil {
			return false, fmt.Errorf("delete aggregate: %w", err)
		}
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find aggregate index: %w", err)
	}

	last, err := t.indexLen()
	if err != nil {
		return false, err
	}
	last--

	if _, err := t.exec(`DELETE FROM aggregate_index WHERE position = ?`, position); err != nil {
		return false, fmt.Errorf("delete aggregate index: %w", err)
	}
	if position != last {
		if _, err := t.exec(`UPDATE aggregate_index SET position = ? WHERE position = ?`, position, last); err != nil {
			return false, fmt.Errorf("swap aggregate index: %w", err)
		}
	}
	if _, err := t.exec(`DELETE FROM aggregates WHERE key = ?`, key[:]); err != nil {
		return false, fmt.Errorf("delete aggregate: %w", err)
	}
	return true, nil
}

// ListAggregateKeys returns the live keys in index order.
func (t *Tx) ListAggregateKeys() ([]ir.AggregateKey, error) {
	rows, err := t.query(`SELECT key FROM aggregate_index ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("query aggregate index: %w", err)
	}
	defer rows.Close()

	keys := []ir.AggregateKey{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan aggregate key: %w", err)
		}
		var k ir.AggregateKey
		copy(k[:], raw)
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregate index: %w", err)
	}
	return keys, nil
}

// CheckAggregateIndex verifies that the index and the aggregate map are in
// bijection and that positions are dense from 0.
func (t *Tx) CheckAggregateIndex() error {
	var indexRows, aggRows, distinctKeys, joined int64
	var maxPos sql.NullInt64
	err := t.queryRow(`
		SELECT
			(SELECT COUNT(*) FROM aggregate_index),
			(SELECT COUNT(*) FROM aggregates),
			(SELECT COUNT(DISTINCT key) FROM aggregate_index),
			(SELECT COUNT(*) FROM aggregate_index i JOIN aggregates a ON a.key = i.key),
			(SELECT MAX(position) FROM aggregate_index)
	`).Scan(&indexRows, &aggRows, &distinctKeys, &joined, &maxPos)
	if err != nil {
		return fmt.Errorf("check aggregate index: %w", err)
	}

	switch {
	case indexRows != aggRows:
		return fmt.Errorf("aggregate index has %d entries for %d aggregates", indexRows, aggRows)
	case distinctKeys != indexRows:
		return fmt.Errorf("aggregate index has duplicate keys")
	case joined != indexRows:
		return fmt.Errorf("aggregate index has dangling keys")
	case indexRows > 0 && (!maxPos.Valid || maxPos.Int64 != indexRows-1):
		return fmt.Errorf("aggregate index positions are not dense")
	}
	return nil
}

func (t *Tx) indexLen() (int64, error) {
	var n int64
	if err := t.queryRow(`SELECT COUNT(*) FROM aggregate_index`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count aggregate index: %w", err)
	}
	return n, nil
}
