package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
)

// InsertRequest records a pending decryption request and its handle
// snapshot. A duplicate request id fails on the primary key.
func (t *Tx) InsertRequest(req ir.DecryptionRequest) error {
	id := req.RequestID.Bytes32()
	_, err := t.exec(`
		INSERT INTO decryption_requests
		(request_id, target_kind, target_id, status, requested_by, requested_at, fulfillments)
		VALUES (?, ?, ?, ?, ?, ?, 0)
	`,
		id[:],
		string(req.Target.Kind),
		req.Target.ID[:],
		string(ir.StatusPending),
		string(req.RequestedBy),
		toNanos(req.RequestedAt),
	)
	if err != nil {
		return fmt.Errorf("insert request %s: %w", req.RequestID.Dec(), err)
	}

	for i, h := range req.Handles {
		if _, err := t.exec(`
			INSERT INTO request_handles (request_id, position, handle) VALUES (?, ?, ?)
		`, id[:], i, []byte(h)); err != nil {
			return fmt.Errorf("insert request handle %d: %w", i, err)
		}
	}
	return nil
}

// GetRequest returns the request with its handle snapshot or ErrNotFound.
func (t *Tx) GetRequest(requestID *uint256.Int) (ir.DecryptionRequest, error) {
	id := requestID.Bytes32()
	row := t.queryRow(`
		SELECT request_id, target_kind, target_id, status, requested_by, requested_at, fulfilled_at, fulfillments
		FROM decryption_requests WHERE request_id = ?
	`, id[:])

	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return req, fmt.Errorf("request %s: %w", requestID.Dec(), ErrNotFound)
	}
	if err != nil {
		return req, fmt.Errorf("get request %s: %w", requestID.Dec(), err)
	}

	handles, err := t.requestHandles(id[:])
	if err != nil {
		return req, err
	}
	req.Handles = handles
	return req, nil
}

// MarkFulfilled records a fulfillment. When consume is true the handle
// snapshot is discarded so the request can never resolve again.
func (t *Tx) MarkFulfilled(requestID *uint256.Int, at time.Time, consume bool) error {
	id := requestID.Bytes32()
	res, err := t.exec(`
		UPDATE decryption_requests
		SET status = ?, fulfilled_at = ?, fulfillments = fulfillments + 1
		WHERE request_id = ?
	`, string(ir.StatusFulfilled), toNanos(at), id[:])
	if err != nil {
		return fmt.Errorf("fulfill request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("request %s: %w", requestID.Dec(), ErrNotFound)
	}

	if consume {
		if _, err := t.exec(`DELETE FROM request_handles WHERE request_id = ?`, id[:]); err != nil {
			return fmt.Errorf("clear request handles: %w", err)
		}
	}
	return nil
}

// ListRequests returns requests with the given status ordered by request
// time. An empty status lists every request.
func (t *Tx) ListRequests(status ir.RequestStatus) ([]ir.DecryptionRequest, error) {
	query := `
		SELECT request_id, target_kind, target_id, status, requested_by, requested_at, fulfilled_at, fulfillments
		FROM decryption_requests`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY requested_at ASC, request_id ASC`

	rows, err := t.query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}

	reqs := []ir.DecryptionRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan request: %w", err)
		}
		reqs = append(reqs, req)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate requests: %w", err)
	}
	rows.Close()

	// Handles are loaded after the cursor is closed; the pool has a single
	// connection.
	for i := range reqs {
		id := reqs[i].RequestID.Bytes32()
		handles, err := t.requestHandles(id[:])
		if err != nil {
			return nil, err
		}
		reqs[i].Handles = handles
	}
	return reqs, nil
}

func (t *Tx) requestHandles(id []byte) ([]ir.Handle, error) {
	rows, err := t.query(`
		SELECT handle FROM request_handles WHERE request_id = ? ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query request handles: %w", err)
	}
	defer rows.Close()

	var handles []ir.Handle
	for rows.Next() {
		var h []byte
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan request handle: %w", err)
		}
		handles = append(handles, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate request handles: %w", err)
	}
	return handles, nil
}

func scanRequest(row rowScanner) (ir.DecryptionRequest, error) {
	var (
		rawID, targetID  []byte
		kind, status, by string
		requestedAt      int64
		fulfilledAt      sql.NullInt64
		fulfillments     int
	)
	if err := row.Scan(&rawID, &kind, &targetID, &status, &by, &requestedAt, &fulfilledAt, &fulfillments); err != nil {
		return ir.DecryptionRequest{}, err
	}

	req := ir.DecryptionRequest{
		Target:       ir.Target{Kind: ir.TargetKind(kind)},
		Status:       ir.RequestStatus(status),
		RequestedBy:  ir.Identity(by),
		RequestedAt:  fromNanos(requestedAt),
		Fulfillments: fulfillments,
	}
	req.RequestID.SetBytes(rawID)
	copy(req.Target.ID[:], targetID)
	if fulfilledAt.Valid {
		req.FulfilledAt = fromNanos(fulfilledAt.Int64)
	}
	return req, nil
}
