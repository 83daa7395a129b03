package ledger

import (
	"context"
	"math"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/store"
)

const (
	counterCivilization = "civilization"
	counterAction       = "action"
)

// SubmitCivilization stores a new civilization owned by caller and returns
// its id. Ids start at 1 and are never reused.
func (l *Ledger) SubmitCivilization(ctx context.Context, caller ir.Identity, resource, tech, military, population ir.Handle) (uint64, error) {
	const opName = "SubmitCivilization"
	caller, err := normalizeCaller(opName, caller)
	if err != nil {
		return 0, err
	}
	if err := checkHandles(opName,
		[]string{"resource", "tech", "military", "population"},
		resource, tech, military, population,
	); err != nil {
		return 0, err
	}

	var civID uint64
	err = l.update(ctx, opName, func(o *op) error {
		id, err := o.tx.NextCounter(counterCivilization)
		if err != nil {
			return err
		}

		civ := ir.Civilization{
			ID:          id,
			Owner:       caller,
			Resource:    resource.Clone(),
			Tech:        tech.Clone(),
			Military:    military.Clone(),
			Population:  population.Clone(),
			SubmittedAt: o.now,
		}
		if err := o.tx.InsertCivilization(civ); err != nil {
			return err
		}
		civID = id

		return o.emit(ir.EventCivSubmitted, ir.CivSubmittedPayload{
			CivID:     id,
			Owner:     caller,
			Timestamp: o.now.UnixMilli(),
		})
	})
	if err != nil {
		return 0, err
	}
	return civID, nil
}

// SubmitAction appends an action to civID's log. Only the owner may submit.
// The returned id comes from a ledger-wide counter, so it is unique across
// every civilization.
func (l *Ledger) SubmitAction(ctx context.Context, caller ir.Identity, civID uint64, actionType, payload ir.Handle, turn uint64) (uint64, error) {
	const opName = "SubmitAction"
	caller, err := normalizeCaller(opName, caller)
	if err != nil {
		return 0, err
	}
	if err := checkHandles(opName, []string{"action type", "payload"}, actionType, payload); err != nil {
		return 0, err
	}
	if turn > math.MaxInt64 {
		return 0, newError(CodeInvalidArgument, opName, "turn %d is out of range", turn)
	}

	var actionID uint64
	err = l.update(ctx, opName, func(o *op) error {
		if _, err := requireOwner(o.tx, opName, civID, caller); err != nil {
			return err
		}

		index, err := o.tx.CountActions(civID)
		if err != nil {
			return err
		}
		id, err := o.tx.NextCounter(counterAction)
		if err != nil {
			return err
		}

		if err := o.tx.InsertAction(ir.Action{
			ID:         id,
			CivID:      civID,
			Index:      index,
			ActionType: actionType.Clone(),
			Payload:    payload.Clone(),
			Turn:       turn,
			CreatedAt:  o.now,
		}); err != nil {
			return err
		}
		actionID = id

		return o.emit(ir.EventActionSubmitted, ir.ActionSubmittedPayload{
			ActionID: id,
			CivID:    civID,
			Turn:     turn,
		})
	})
	if err != nil {
		return 0, err
	}
	return actionID, nil
}

// GetCiv returns a civilization or NOT_FOUND.
func (l *Ledger) GetCiv(ctx context.Context, civID uint64) (ir.Civilization, error) {
	var civ ir.Civilization
	err := l.view(ctx, func(tx *store.Tx) error {
		var err error
		civ, err = tx.GetCivilization(civID)
		if err != nil {
			return storeError("GetCiv", err)
		}
		return nil
	})
	return civ, err
}

// GetOwnerCivilizations returns the ids owned by owner in submission order.
// An owner with no civilizations gets an empty list, not an error.
func (l *Ledger) GetOwnerCivilizations(ctx context.Context, owner ir.Identity) ([]uint64, error) {
	owner, err := normalizeCaller("GetOwnerCivilizations", owner)
	if err != nil {
		return nil, err
	}
	var ids []uint64
	err = l.view(ctx, func(tx *store.Tx) error {
		var err error
		ids, err = tx.ListOwnerCivilizations(owner)
		return err
	})
	return ids, err
}

// ListActions returns civID's action log in insertion order.
func (l *Ledger) ListActions(ctx context.Context, civID uint64) ([]ir.Action, error) {
	var actions []ir.Action
	err := l.view(ctx, func(tx *store.Tx) error {
		if _, err := tx.GetCivilization(civID); err != nil {
			return storeError("ListActions", err)
		}
		var err error
		actions, err = tx.ListActions(civID)
		return err
	})
	return actions, err
}
