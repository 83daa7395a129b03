package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/fhe"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/store"
)

// UpdateWorldAggregate adds the deltas to the aggregate under key. Admin
// only.
//
// An unseen key is created with both totals set to the engine's encoded
// zero and appended to the key index. The update is not idempotent: the
// same deltas applied twice are counted twice.
func (l *Ledger) UpdateWorldAggregate(ctx context.Context, caller ir.Identity, key ir.AggregateKey, resourceDelta, civsDelta ir.Handle) error {
	const opName = "UpdateWorldAggregate"
	caller, err := normalizeCaller(opName, caller)
	if err != nil {
		return err
	}
	if err := checkHandles(opName, []string{"resource delta", "civs delta"}, resourceDelta, civsDelta); err != nil {
		return err
	}

	return l.update(ctx, opName, func(o *op) error {
		if err := requireAdmin(o.tx, opName, caller); err != nil {
			return err
		}

		agg, err := o.tx.GetAggregate(key)
		fresh := errors.Is(err, store.ErrNotFound)
		switch {
		case fresh:
			agg, err = l.zeroAggregate(o, key)
			if err != nil {
				return err
			}
		case err != nil:
			return err
		}

		resource, err := l.engine.Combine(o.ctx, agg.GlobalResource, resourceDelta)
		if err != nil {
			return engineError(opName, "combine resource", err)
		}
		civs, err := l.engine.Combine(o.ctx, agg.ActiveCivs, civsDelta)
		if err != nil {
			return engineError(opName, "combine active civs", err)
		}

		if fresh {
			agg.GlobalResource = resource
			agg.ActiveCivs = civs
			agg.LastUpdated = o.now
			if err := o.tx.InsertAggregate(agg); err != nil {
				return err
			}
		} else if err := o.tx.UpdateAggregate(key, resource, civs, o.now); err != nil {
			return err
		}

		return o.emit(ir.EventWorldAggregateUpdated, ir.AggregatePayload{
			Key:       key,
			Timestamp: o.now.UnixMilli(),
		})
	})
}

func (l *Ledger) zeroAggregate(o *op, key ir.AggregateKey) (ir.WorldAggregate, error) {
	resource, err := l.engine.EncodeZero(o.ctx)
	if err != nil {
		return ir.WorldAggregate{}, engineError(o.name, "encode zero", err)
	}
	civs, err := l.engine.EncodeZero(o.ctx)
	if err != nil {
		return ir.WorldAggregate{}, engineError(o.name, "encode zero", err)
	}
	return ir.WorldAggregate{Key: key, GlobalResource: resource, ActiveCivs: civs}, nil
}

// AdminRemoveAggregate deletes the aggregate under key and drops the key
// from the index by swapping the last key into its slot. Admin only.
// Removing an absent key succeeds and emits nothing; the result reports
// whether anything was removed.
func (l *Ledger) AdminRemoveAggregate(ctx context.Context, caller ir.Identity, key ir.AggregateKey) (bool, error) {
	const opName = "AdminRemoveAggregate"
	caller, err := normalizeCaller(opName, caller)
	if err != nil {
		return false, err
	}

	var removed bool
	err = l.update(ctx, opName, func(o *op) error {
		if err := requireAdmin(o.tx, opName, caller); err != nil {
			return err
		}
		var err error
		removed, err = o.tx.DeleteAggregate(key)
		if err != nil || !removed {
			return err
		}
		return o.emit(ir.EventWorldAggregateRemoved, ir.AggregatePayload{
			Key:       key,
			Timestamp: o.now.UnixMilli(),
		})
	})
	return removed, err
}

// ListAggregateKeys returns the live keys in index order.
func (l *Ledger) ListAggregateKeys(ctx context.Context) ([]ir.AggregateKey, error) {
	var keys []ir.AggregateKey
	err := l.view(ctx, func(tx *store.Tx) error {
		var err error
		keys, err = tx.ListAggregateKeys()
		return err
	})
	return keys, err
}

// GetAggregate returns the aggregate under key or NOT_FOUND.
func (l *Ledger) GetAggregate(ctx context.Context, key ir.AggregateKey) (ir.WorldAggregate, error) {
	var agg ir.WorldAggregate
	err := l.view(ctx, func(tx *store.Tx) error {
		var err error
		agg, err = tx.GetAggregate(key)
		if err != nil {
			return storeError("GetAggregate", err)
		}
		return nil
	})
	return agg, err
}

// CheckAggregateIndex verifies the key index is in bijection with the
// aggregate map.
func (l *Ledger) CheckAggregateIndex(ctx context.Context) error {
	return l.view(ctx, func(tx *store.Tx) error {
		return tx.CheckAggregateIndex()
	})
}

// engineError classifies a compute-engine failure. Malformed handles are
// the caller's fault; anything else is an infrastructure error.
func engineError(opName, what string, err error) error {
	if errors.Is(err, fhe.ErrInvalidCiphertext) {
		return wrapError(CodeInvalidArgument, opName, err, "%s", what)
	}
	return fmt.Errorf("%s: %s: %w", opName, what, err)
}
