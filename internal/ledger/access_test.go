package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
)

func TestBootstrap_OnlyOnce(t *testing.T) {
	f := newFixture(t)
	err := f.ledger.Bootstrap(context.Background(), alice)
	require.Error(t, err)
	assert.True(t, IsInvalidState(err))

	ok, err := f.ledger.IsAdmin(context.Background(), alice)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAddRemoveAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.Error(t, f.ledger.AddAdmin(ctx, alice, bob))

	require.NoError(t, f.ledger.AddAdmin(ctx, deployer, alice))
	require.NoError(t, f.ledger.AddAdmin(ctx, deployer, "0xALICE"))

	admins, err := f.ledger.ListAdmins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 2)
	assert.Equal(t, alice, admins[0].Identity)
	assert.Equal(t, deployer, admins[0].AddedBy)

	require.NoError(t, f.ledger.RemoveAdmin(ctx, alice, deployer))
	ok, err := f.ledger.IsAdmin(ctx, deployer)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.ledger.RemoveAdmin(ctx, alice, deployer), "removing a non-admin is a no-op")

	assert.Equal(t, []ir.EventKind{
		ir.EventAdminAdded,
		ir.EventAdminAdded,
		ir.EventAdminRemoved,
	}, eventKinds(f.events(t)))
}

func TestRemoveAdmin_SelfLockout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ledger.RemoveAdmin(ctx, deployer, deployer))

	err := f.ledger.AddAdmin(ctx, deployer, alice)
	assert.True(t, IsUnauthorized(err))
	err = f.ledger.UpdateWorldAggregate(ctx, deployer, ir.MustAggregateKey("world"), f.encrypt(t, 1), f.encrypt(t, 1))
	assert.True(t, IsUnauthorized(err))
}
