package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
)

// AppendEvent appends an event to the log, assigning the next seq and
// chaining its hash onto the previous event. payload must already be
// canonical JSON.
func (t *Tx) AppendEvent(kind ir.EventKind, txToken string, at time.Time, payload []byte) (ir.Event, error) {
	prevSeq, prevHash, err := t.chainHead()
	if err != nil {
		return ir.Event{}, err
	}

	e := ir.Event{
		Seq:      prevSeq + 1,
		Kind:     kind,
		TxToken:  txToken,
		At:       at.UTC(),
		Payload:  payload,
		PrevHash: prevHash,
	}
	e.Hash, err = e.ComputeHash()
	if err != nil {
		return ir.Event{}, fmt.Errorf("append event: %w", err)
	}

	_, err = t.exec(`
		INSERT INTO events (seq, kind, tx_token, at, payload, prev_hash, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.Seq, string(e.Kind), e.TxToken, toNanos(e.At), string(e.Payload), e.PrevHash, e.Hash)
	if err != nil {
		return ir.Event{}, fmt.Errorf("append event: %w", err)
	}
	return e, nil
}

// ReadEvents returns up to limit events with seq > afterSeq in seq order.
// A limit <= 0 means no limit.
func (t *Tx) ReadEvents(afterSeq int64, limit int) ([]ir.Event, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := t.query(`
		SELECT seq, kind, tx_token, at, payload, prev_hash, hash
		FROM events WHERE seq > ? ORDER BY seq ASC LIMIT ?
	`, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []ir.Event{}
	for rows.Next() {
		var (
			e       ir.Event
			kind    string
			at      int64
			payload string
		)
		if err := rows.Scan(&e.Seq, &kind, &e.TxToken, &at, &payload, &e.PrevHash, &e.Hash); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Kind = ir.EventKind(kind)
		e.At = fromNanos(at)
		e.Payload = []byte(payload)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// LastSeq returns the seq of the newest event, 0 for an empty log.
func (t *Tx) LastSeq() (int64, error) {
	seq, _, err := t.chainHead()
	return seq, err
}

func (t *Tx) chainHead() (int64, string, error) {
	var (
		seq  int64
		hash string
	)
	err := t.queryRow(`SELECT seq, hash FROM events ORDER BY seq DESC LIMIT 1`).Scan(&seq, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ir.GenesisHash, nil
	}
	if err != nil {
		return 0, "", fmt.Errorf("read chain head: %w", err)
	}
	return seq, hash, nil
}
