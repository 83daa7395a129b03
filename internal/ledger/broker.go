package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/fhe"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/store"
)

// Callback is an oracle delivery for any target kind.
type Callback struct {
	RequestID  *uint256.Int
	Tag        fhe.CallbackTag
	Cleartexts []byte
	Proof      []byte
}

// RequestCivDecryption asks the engine to disclose civID's four attributes
// and records the pending request. Owner only.
func (l *Ledger) RequestCivDecryption(ctx context.Context, caller ir.Identity, civID uint64) (*uint256.Int, error) {
	const opName = "RequestCivDecryption"
	caller, err := normalizeCaller(opName, caller)
	if err != nil {
		return nil, err
	}

	var id *uint256.Int
	err = l.update(ctx, opName, func(o *op) error {
		civ, err := requireOwner(o.tx, opName, civID, caller)
		if err != nil {
			return err
		}
		id, err = l.openRequest(o, caller, ir.CivTarget(civID), civ.Handles())
		return err
	})
	if err != nil {
		return nil, err
	}
	return id, nil
}

// RequestActionDecryption asks the engine to disclose the action at
// actionIndex of civID's log. Owner only; an out-of-range index is
// NOT_FOUND.
func (l *Ledger) RequestActionDecryption(ctx context.Context, caller ir.Identity, civID uint64, actionIndex int) (*uint256.Int, error) {
	const opName = "RequestActionDecryption"
	caller, err := normalizeCaller(opName, caller)
	if err != nil {
		return nil, err
	}

	var id *uint256.Int
	err = l.update(ctx, opName, func(o *op) error {
		if _, err := requireOwner(o.tx, opName, civID, caller); err != nil {
			return err
		}
		if actionIndex < 0 {
			return newError(CodeNotFound, opName, "action index %d out of bounds", actionIndex)
		}
		action, err := o.tx.GetActionAt(civID, actionIndex)
		if err != nil {
			return storeError(opName, err)
		}
		id, err = l.openRequest(o, caller, ir.ActionTarget(action.ID), action.Handles())
		return err
	})
	if err != nil {
		return nil, err
	}
	return id, nil
}

// RequestAggregateDecryption asks the engine to disclose the aggregate
// under key. Admin only; an unknown key is NOT_FOUND.
func (l *Ledger) RequestAggregateDecryption(ctx context.Context, caller ir.Identity, key ir.AggregateKey) (*uint256.Int, error) {
	const opName = "RequestAggregateDecryption"
	caller, err := normalizeCaller(opName, caller)
	if err != nil {
		return nil, err
	}

	var id *uint256.Int
	err = l.update(ctx, opName, func(o *op) error {
		if err := requireAdmin(o.tx, opName, caller); err != nil {
			return err
		}
		agg, err := o.tx.GetAggregate(key)
		if err != nil {
			return storeError(opName, err)
		}
		id, err = l.openRequest(o, caller, ir.AggregateTarget(key), agg.Handles())
		return err
	})
	if err != nil {
		return nil, err
	}
	return id, nil
}

// openRequest registers handles with the engine and records the pending
// request under the id the engine assigned.
func (l *Ledger) openRequest(o *op, caller ir.Identity, target ir.Target, handles []ir.Handle) (*uint256.Int, error) {
	id, err := l.engine.RequestDecryption(o.ctx, handles, fhe.TagFor(target.Kind))
	if err != nil {
		return nil, engineError(o.name, "request decryption", err)
	}

	if _, err := o.tx.GetRequest(id); err == nil {
		return nil, newError(CodeInvalidState, o.name, "engine reused request id %s", id.Dec())
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	req := ir.DecryptionRequest{
		RequestID:   *id,
		Target:      target,
		Status:      ir.StatusPending,
		Handles:     handles,
		RequestedBy: caller,
		RequestedAt: o.now,
	}
	if err := o.tx.InsertRequest(req); err != nil {
		return nil, err
	}
	o.pendingDelta++

	if err := o.emit(ir.EventDecryptionRequested, ir.NewDecryptionPayload(id, target)); err != nil {
		return nil, err
	}
	return id, nil
}

// HandleCivDecryption resolves a civilization request.
func (l *Ledger) HandleCivDecryption(ctx context.Context, requestID *uint256.Int, cleartexts, proof []byte) (ir.CivDisclosure, error) {
	d, err := l.resolve(ctx, "HandleCivDecryption", ir.TargetCivilization, requestID, cleartexts, proof)
	if err != nil {
		return ir.CivDisclosure{}, err
	}
	return CivDisclosure(d)
}

// HandleActionDecryption resolves an action request.
func (l *Ledger) HandleActionDecryption(ctx context.Context, requestID *uint256.Int, cleartexts, proof []byte) (ir.ActionDisclosure, error) {
	d, err := l.resolve(ctx, "HandleActionDecryption", ir.TargetAction, requestID, cleartexts, proof)
	if err != nil {
		return ir.ActionDisclosure{}, err
	}
	return ActionDisclosure(d)
}

// HandleAggregateDecryption resolves an aggregate request.
func (l *Ledger) HandleAggregateDecryption(ctx context.Context, requestID *uint256.Int, cleartexts, proof []byte) (ir.AggregateDisclosure, error) {
	d, err := l.resolve(ctx, "HandleAggregateDecryption", ir.TargetAggregate, requestID, cleartexts, proof)
	if err != nil {
		return ir.AggregateDisclosure{}, err
	}
	return AggregateDisclosure(d)
}

// HandleDecryption routes a callback to the entry point named by its tag.
func (l *Ledger) HandleDecryption(ctx context.Context, cb Callback) (ir.Disclosure, error) {
	const opName = "HandleDecryption"
	kind := cb.Tag.Kind()
	if kind == "" {
		return ir.Disclosure{}, newError(CodeInvalidArgument, opName, "unknown callback tag %q", cb.Tag)
	}
	return l.resolve(ctx, string(cb.Tag), kind, cb.RequestID, cb.Cleartexts, cb.Proof)
}

// resolve is the callback path shared by every target kind.
//
// Order matters: the request lookup and state check come first, then proof
// verification, then decoding. Any failure rolls back, so a request whose
// proof fails stays pending.
func (l *Ledger) resolve(ctx context.Context, opName string, kind ir.TargetKind, requestID *uint256.Int, cleartexts, proof []byte) (ir.Disclosure, error) {
	if requestID == nil {
		return ir.Disclosure{}, newError(CodeInvalidArgument, opName, "request id is required")
	}

	var disclosure ir.Disclosure
	err := l.update(ctx, opName, func(o *op) error {
		req, err := o.tx.GetRequest(requestID)
		if err != nil {
			return storeError(opName, err)
		}
		if req.Target.Kind != kind {
			return newError(CodeNotFound, opName, "no %s request with id %s", kind, requestID.Dec())
		}
		if req.Status == ir.StatusFulfilled && l.policy == PolicyConsume {
			return newError(CodeInvalidState, opName, "request %s was already fulfilled", requestID.Dec())
		}

		if err := l.engine.VerifyProof(o.ctx, requestID, cleartexts, proof); err != nil {
			if errors.Is(err, fhe.ErrInvalidProof) {
				return wrapError(CodeProofVerificationFailed, opName, err, "request %s", requestID.Dec())
			}
			return fmt.Errorf("%s: verify proof: %w", opName, err)
		}

		values, err := decodeCleartexts(kind, cleartexts)
		if err != nil {
			return wrapError(CodeInvalidArgument, opName, err, "request %s", requestID.Dec())
		}

		if err := o.tx.MarkFulfilled(requestID, o.now, l.policy == PolicyConsume); err != nil {
			return err
		}
		if req.Status == ir.StatusPending {
			o.pendingDelta--
		}
		if err := o.emit(ir.EventDecryptionCompleted, ir.NewDecryptionPayload(requestID, req.Target)); err != nil {
			return err
		}

		disclosure = ir.Disclosure{
			RequestID: *requestID,
			Target:    req.Target,
			Values:    values,
		}
		return nil
	})
	if err != nil {
		return ir.Disclosure{}, err
	}
	return disclosure, nil
}

// GetRequest returns a request with its handle snapshot or NOT_FOUND.
func (l *Ledger) GetRequest(ctx context.Context, requestID *uint256.Int) (ir.DecryptionRequest, error) {
	var req ir.DecryptionRequest
	err := l.view(ctx, func(tx *store.Tx) error {
		var err error
		req, err = tx.GetRequest(requestID)
		if err != nil {
			return storeError("GetRequest", err)
		}
		return nil
	})
	return req, err
}

// ListPendingRequests returns every request still awaiting a callback, oldest
// first.
func (l *Ledger) ListPendingRequests(ctx context.Context) ([]ir.DecryptionRequest, error) {
	var reqs []ir.DecryptionRequest
	err := l.view(ctx, func(tx *store.Tx) error {
		var err error
		reqs, err = tx.ListRequests(ir.StatusPending)
		return err
	})
	return reqs, err
}

// Events returns up to limit committed events after afterSeq.
func (l *Ledger) Events(ctx context.Context, afterSeq int64, limit int) ([]ir.Event, error) {
	var events []ir.Event
	err := l.view(ctx, func(tx *store.Tx) error {
		var err error
		events, err = tx.ReadEvents(afterSeq, limit)
		return err
	})
	return events, err
}

// VerifyEventChain recomputes the event hash chain.
func (l *Ledger) VerifyEventChain(ctx context.Context) (store.ChainReport, error) {
	var report store.ChainReport
	err := l.view(ctx, func(tx *store.Tx) error {
		var err error
		report, err = tx.VerifyChain()
		return err
	})
	return report, err
}
