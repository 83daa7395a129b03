package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
)

func TestUpdateWorldAggregate_SumsDeltas(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := ir.MustAggregateKey("region-1")

	require.NoError(t, f.ledger.UpdateWorldAggregate(ctx, deployer, key, f.encrypt(t, 40), f.encrypt(t, 1)))
	second := f.clock.Peek()
	require.NoError(t, f.ledger.UpdateWorldAggregate(ctx, deployer, key, f.encrypt(t, 2), f.encrypt(t, 1)))

	agg, err := f.ledger.GetAggregate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), f.reveal(t, agg.GlobalResource))
	assert.Equal(t, uint64(2), f.reveal(t, agg.ActiveCivs))
	assert.True(t, agg.LastUpdated.Equal(second))

	keys, err := f.ledger.ListAggregateKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ir.AggregateKey{key}, keys)
}

func TestUpdateWorldAggregate_AdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := ir.MustAggregateKey("region-1")

	err := f.ledger.UpdateWorldAggregate(ctx, alice, key, f.encrypt(t, 1), f.encrypt(t, 1))
	assert.True(t, IsUnauthorized(err))

	_, err = f.ledger.GetAggregate(ctx, key)
	assert.True(t, IsNotFound(err))
}

func TestUpdateWorldAggregate_RejectsForeignHandle(t *testing.T) {
	f := newFixture(t)
	err := f.ledger.UpdateWorldAggregate(context.Background(), deployer, ir.MustAggregateKey("k"),
		ir.Handle{0x01, 0x02}, f.encrypt(t, 1))
	assert.True(t, IsInvalidArgument(err))
}

func TestAdminRemoveAggregate_KeepsIndexConsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	labels := []string{"a", "b", "c", "d"}
	for _, l := range labels {
		require.NoError(t, f.ledger.UpdateWorldAggregate(ctx, deployer, ir.MustAggregateKey(l), f.encrypt(t, 1), f.encrypt(t, 1)))
	}

	removed, err := f.ledger.AdminRemoveAggregate(ctx, deployer, ir.MustAggregateKey("b"))
	require.NoError(t, err)
	assert.True(t, removed)

	keys, err := f.ledger.ListAggregateKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ir.AggregateKey{
		ir.MustAggregateKey("a"),
		ir.MustAggregateKey("d"),
		ir.MustAggregateKey("c"),
	}, keys)
	require.NoError(t, f.ledger.CheckAggregateIndex(ctx))

	_, err = f.ledger.GetAggregate(ctx, ir.MustAggregateKey("b"))
	assert.True(t, IsNotFound(err))

	before := len(f.events(t))
	removed, err = f.ledger.AdminRemoveAggregate(ctx, deployer, ir.MustAggregateKey("b"))
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Len(t, f.events(t), before, "absent key emits nothing")

	_, err = f.ledger.AdminRemoveAggregate(ctx, alice, ir.MustAggregateKey("a"))
	assert.True(t, IsUnauthorized(err))
}

func TestAdminRemoveAggregate_ThenRecreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := ir.MustAggregateKey("world")

	require.NoError(t, f.ledger.UpdateWorldAggregate(ctx, deployer, key, f.encrypt(t, 5), f.encrypt(t, 1)))
	_, err := f.ledger.AdminRemoveAggregate(ctx, deployer, key)
	require.NoError(t, err)
	require.NoError(t, f.ledger.UpdateWorldAggregate(ctx, deployer, key, f.encrypt(t, 3), f.encrypt(t, 1)))

	agg, err := f.ledger.GetAggregate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), f.reveal(t, agg.GlobalResource), "recreated aggregate starts from zero")
	require.NoError(t, f.ledger.CheckAggregateIndex(ctx))
}
