package ledger

import (
	"context"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/store"
)

const counterBootstrap = "bootstrap"

// Bootstrap seeds the admin set with deployer. It succeeds exactly once per
// store; later calls fail with INVALID_STATE.
func (l *Ledger) Bootstrap(ctx context.Context, deployer ir.Identity) error {
	const opName = "Bootstrap"
	deployer, err := normalizeCaller(opName, deployer)
	if err != nil {
		return err
	}

	return l.update(ctx, opName, func(o *op) error {
		done, err := o.tx.Counter(counterBootstrap)
		if err != nil {
			return err
		}
		if done > 0 {
			return newError(CodeInvalidState, opName, "ledger is already initialized")
		}
		if _, err := o.tx.NextCounter(counterBootstrap); err != nil {
			return err
		}
		if _, err := o.tx.InsertAdmin(deployer, deployer, o.now); err != nil {
			return err
		}
		return o.emit(ir.EventAdminAdded, ir.AdminPayload{Identity: deployer, By: deployer})
	})
}

// AddAdmin grants admin rights to identity. Caller must be an admin.
// Adding an existing admin succeeds without emitting an event.
func (l *Ledger) AddAdmin(ctx context.Context, caller, identity ir.Identity) error {
	const opName = "AddAdmin"
	caller, err := normalizeCaller(opName, caller)
	if err != nil {
		return err
	}
	identity, err = normalizeCaller(opName, identity)
	if err != nil {
		return err
	}

	return l.update(ctx, opName, func(o *op) error {
		if err := requireAdmin(o.tx, opName, caller); err != nil {
			return err
		}
		added, err := o.tx.InsertAdmin(identity, caller, o.now)
		if err != nil {
			return err
		}
		if !added {
			return nil
		}
		return o.emit(ir.EventAdminAdded, ir.AdminPayload{Identity: identity, By: caller})
	})
}

// RemoveAdmin revokes identity's admin rights. Caller must be an admin.
//
// An admin may remove itself, including the last admin. That locks every
// admin-only operation forever; it is allowed on purpose and callers must
// guard against it themselves.
func (l *Ledger) RemoveAdmin(ctx context.Context, caller, identity ir.Identity) error {
	const opName = "RemoveAdmin"
	caller, err := normalizeCaller(opName, caller)
	if err != nil {
		return err
	}
	identity, err = normalizeCaller(opName, identity)
	if err != nil {
		return err
	}

	return l.update(ctx, opName, func(o *op) error {
		if err := requireAdmin(o.tx, opName, caller); err != nil {
			return err
		}
		removed, err := o.tx.DeleteAdmin(identity)
		if err != nil {
			return err
		}
		if !removed {
			return nil
		}
		return o.emit(ir.EventAdminRemoved, ir.AdminPayload{Identity: identity, By: caller})
	})
}

// IsAdmin reports whether identity is an admin.
func (l *Ledger) IsAdmin(ctx context.Context, identity ir.Identity) (bool, error) {
	identity, err := normalizeCaller("IsAdmin", identity)
	if err != nil {
		return false, err
	}
	var ok bool
	err = l.view(ctx, func(tx *store.Tx) error {
		var err error
		ok, err = tx.IsAdmin(identity)
		return err
	})
	return ok, err
}

// ListAdmins returns the admin set ordered by identity.
func (l *Ledger) ListAdmins(ctx context.Context) ([]store.Admin, error) {
	var admins []store.Admin
	err := l.view(ctx, func(tx *store.Tx) error {
		var err error
		admins, err = tx.ListAdmins()
		return err
	})
	return admins, err
}

func requireAdmin(tx *store.Tx, opName string, caller ir.Identity) error {
	ok, err := tx.IsAdmin(caller)
	if err != nil {
		return err
	}
	if !ok {
		return newError(CodeUnauthorized, opName, "%s is not an admin", caller)
	}
	return nil
}

// requireOwner loads a civilization and checks that caller owns it.
func requireOwner(tx *store.Tx, opName string, civID uint64, caller ir.Identity) (ir.Civilization, error) {
	civ, err := tx.GetCivilization(civID)
	if err != nil {
		return civ, storeError(opName, err)
	}
	if civ.Owner != caller {
		return civ, newError(CodeUnauthorized, opName, "%s does not own civilization %d", caller, civID)
	}
	return civ, nil
}
