package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
)

func TestSubmitCivilization_IDsIncreaseAndIndexByOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a1 := f.submitCiv(t, alice, 10, 1, 5, 100)
	b1 := f.submitCiv(t, bob, 20, 2, 6, 200)
	a2 := f.submitCiv(t, "0xALICE", 30, 3, 7, 300)

	assert.Equal(t, []uint64{1, 2, 3}, []uint64{a1, b1, a2})

	ids, err := f.ledger.GetOwnerCivilizations(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []uint64{a1, a2}, ids)

	ids, err = f.ledger.GetOwnerCivilizations(ctx, "0xnobody")
	require.NoError(t, err)
	assert.Empty(t, ids)

	civ, err := f.ledger.GetCiv(ctx, a2)
	require.NoError(t, err)
	assert.Equal(t, alice, civ.Owner)
	assert.Equal(t, uint64(30), f.reveal(t, civ.Resource))
	assert.Equal(t, uint64(300), f.reveal(t, civ.Population))
}

func TestSubmitCivilization_EmitsEvent(t *testing.T) {
	f := newFixture(t)
	at := f.clock.Peek()
	id := f.submitCiv(t, alice, 1, 2, 3, 4)

	events := f.events(t)
	last := events[len(events)-1]
	require.Equal(t, ir.EventCivSubmitted, last.Kind)

	var p ir.CivSubmittedPayload
	require.NoError(t, last.Decode(&p))
	assert.Equal(t, id, p.CivID)
	assert.Equal(t, alice, p.Owner)
	assert.Equal(t, at.UnixMilli(), p.Timestamp)
}

func TestSubmitCivilization_RejectsEmptyHandle(t *testing.T) {
	f := newFixture(t)
	h := f.encrypt(t, 1)

	_, err := f.ledger.SubmitCivilization(context.Background(), alice, h, h, nil, h)
	assert.True(t, IsInvalidArgument(err))

	_, err = f.ledger.SubmitCivilization(context.Background(), "  ", h, h, h, h)
	assert.True(t, IsInvalidArgument(err))
}

func TestSubmitAction_OwnerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	civ := f.submitCiv(t, alice, 1, 1, 1, 1)
	before := f.events(t)

	_, err := f.ledger.SubmitAction(ctx, bob, civ, f.encrypt(t, 1), f.encrypt(t, 2), 1)
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))

	assert.Equal(t, before, f.events(t), "rejected action must not touch the log")
	actions, err := f.ledger.ListActions(ctx, civ)
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestSubmitAction_UnknownCivilization(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.SubmitAction(context.Background(), alice, 99, f.encrypt(t, 1), f.encrypt(t, 2), 1)
	assert.True(t, IsNotFound(err))
}

func TestSubmitAction_AppendsInOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	civA := f.submitCiv(t, alice, 1, 1, 1, 1)
	civB := f.submitCiv(t, bob, 1, 1, 1, 1)

	a0 := f.submitAction(t, alice, civA, 7, 70, 1)
	b0 := f.submitAction(t, bob, civB, 8, 80, 1)
	a1 := f.submitAction(t, alice, civA, 9, 90, 2)

	assert.Equal(t, []uint64{1, 2, 3}, []uint64{a0, b0, a1}, "action ids are ledger-wide")

	actions, err := f.ledger.ListActions(ctx, civA)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, 0, actions[0].Index)
	assert.Equal(t, 1, actions[1].Index)
	assert.Equal(t, uint64(2), actions[1].Turn)
	assert.Equal(t, uint64(90), f.reveal(t, actions[1].Payload))

	_, err = f.ledger.ListActions(ctx, 42)
	assert.True(t, IsNotFound(err))
}

func TestSubmitAction_TurnOutOfRange(t *testing.T) {
	f := newFixture(t)
	civ := f.submitCiv(t, alice, 1, 1, 1, 1)
	_, err := f.ledger.SubmitAction(context.Background(), alice, civ, f.encrypt(t, 1), f.encrypt(t, 1), 1<<63)
	assert.True(t, IsInvalidArgument(err))
}
