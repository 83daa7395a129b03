package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
)

// InsertCivilization stores a new civilization. The id must come from the
// "civilization" counter; reusing an id fails on the primary key.
func (t *Tx) InsertCivilization(c ir.Civilization) error {
	_, err := t.exec(`
		INSERT INTO civilizations
		(id, owner, resource, tech, military, population, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		int64(c.ID),
		string(c.Owner),
		[]byte(c.Resource),
		[]byte(c.Tech),
		[]byte(c.Military),
		[]byte(c.Population),
		toNanos(c.SubmittedAt),
	)
	if err != nil {
		return fmt.Errorf("insert civilization %d: %w", c.ID, err)
	}
	return nil
}

// GetCivilization returns the civilization with the given id or
// ErrNotFound.
func (t *Tx) GetCivilization(id uint64) (ir.Civilization, error) {
	var (
		c                                    ir.Civilization
		rowID                                int64
		owner                                string
		resource, tech, military, population []byte
		at                                   int64
	)
	err := t.queryRow(`
		SELECT id, owner, resource, tech, military, population, submitted_at
		FROM civilizations WHERE id = ?
	`, int64(id)).Scan(&rowID, &owner, &resource, &tech, &military, &population, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("civilization %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return c, fmt.Errorf("get civilization %d: %w", id, err)
	}

	c = ir.Civilization{
		ID:          uint64(rowID),
		Owner:       ir.Identity(owner),
		Resource:    resource,
		Tech:        tech,
		Military:    military,
		Population:  population,
		SubmittedAt: fromNanos(at),
	}
	return c, nil
}

// ListOwnerCivilizations returns the ids owned by owner in submission order.
func (t *Tx) ListOwnerCivilizations(owner ir.Identity) ([]uint64, error) {
	rows, err := t.query(`
		SELECT id FROM civilizations WHERE owner = ? ORDER BY id ASC
	`, string(owner))
	if err != nil {
		return nil, fmt.Errorf("query owner civilizations: %w", err)
	}
	defer rows.Close()

	ids := []uint64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan civilization id: %w", err)
		}
		ids = append(ids, uint64(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate owner civilizations: %w", err)
	}
	return ids, nil
}

// InsertAction appends an action to its civilization's log. a.Index must
// equal CountActions(a.CivID).
func (t *Tx) InsertAction(a ir.Action) error {
	_, err := t.exec(`
		INSERT INTO actions
		(id, civ_id, idx, action_type, payload, turn, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		int64(a.ID),
		int64(a.CivID),
		a.Index,
		[]byte(a.ActionType),
		[]byte(a.Payload),
		int64(a.Turn),
		toNanos(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert action %d: %w", a.ID, err)
	}
	return nil
}

// CountActions returns the length of a civilization's action log.
func (t *Tx) CountActions(civID uint64) (int, error) {
	var n int
	if err := t.queryRow(`SELECT COUNT(*) FROM actions WHERE civ_id = ?`, int64(civID)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count actions: %w", err)
	}
	return n, nil
}

// GetActionAt returns the action at position index of a civilization's log
// or ErrNotFound.
func (t *Tx) GetActionAt(civID uint64, index int) (ir.Action, error) {
	row := t.queryRow(`
		SELECT id, civ_id, idx, action_type, payload, turn, created_at
		FROM actions WHERE civ_id = ? AND idx = ?
	`, int64(civID), index)

	a, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return a, fmt.Errorf("action %d of civilization %d: %w", index, civID, ErrNotFound)
	}
	if err != nil {
		return a, fmt.Errorf("get action: %w", err)
	}
	return a, nil
}

// GetAction returns the action with the given ledger-wide id or
// ErrNotFound.
func (t *Tx) GetAction(id uint64) (ir.Action, error) {
	row := t.queryRow(`
		SELECT id, civ_id, idx, action_type, payload, turn, created_at
		FROM actions WHERE id = ?
	`, int64(id))

	a, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return a, fmt.Errorf("action %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return a, fmt.Errorf("get action %d: %w", id, err)
	}
	return a, nil
}

// ListActions returns a civilization's action log in insertion order.
func (t *Tx) ListActions(civID uint64) ([]ir.Action, error) {
	rows, err := t.query(`
		SELECT id, civ_id, idx, action_type, payload, turn, created_at
		FROM actions WHERE civ_id = ? ORDER BY idx ASC
	`, int64(civID))
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	actions := []ir.Action{}
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return actions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAction(row rowScanner) (ir.Action, error) {
	var (
		id, civID, turn, at int64
		idx                 int
		actionType, payload []byte
	)
	if err := row.Scan(&id, &civID, &idx, &actionType, &payload, &turn, &at); err != nil {
		return ir.Action{}, err
	}
	return ir.Action{
		ID:         uint64(id),
		CivID:      uint64(civID),
		Index:      idx,
		ActionType: actionType,
		Payload:    payload,
		Turn:       uint64(turn),
		CreatedAt:  fromNanos(at),
	}, nil
}
