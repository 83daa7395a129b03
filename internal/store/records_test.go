package store

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
)

func TestAdmins(t *testing.T) {
	s := createTestStore(t)

	update(t, s, func(tx *Tx) error {
		added, err := tx.InsertAdmin("root", "root", testEpoch)
		require.NoError(t, err)
		assert.True(t, added)

		added, err = tx.InsertAdmin("root", "root", testEpoch)
		require.NoError(t, err)
		assert.False(t, added, "re-adding is a no-op")

		_, err = tx.InsertAdmin("bob", "root", testEpoch)
		require.NoError(t, err)

		removed, err := tx.DeleteAdmin("carol")
		require.NoError(t, err)
		assert.False(t, removed)
		return nil
	})

	view(t, s, func(tx *Tx) error {
		admins, err := tx.ListAdmins()
		require.NoError(t, err)
		require.Len(t, admins, 2)
		assert.Equal(t, ir.Identity("bob"), admins[0].Identity)
		assert.Equal(t, ir.Identity("root"), admins[0].AddedBy)

		ok, err := tx.IsAdmin("root")
		require.NoError(t, err)
		assert.True(t, ok)
		return nil
	})
}

func TestCivilizationsAndOwnerIndex(t *testing.T) {
	s := createTestStore(t)

	update(t, s, func(tx *Tx) error {
		require.NoError(t, tx.InsertCivilization(testCiv(1, "alice")))
		require.NoError(t, tx.InsertCivilization(testCiv(2, "bob")))
		require.NoError(t, tx.InsertCivilization(testCiv(3, "alice")))
		return nil
	})

	view(t, s, func(tx *Tx) error {
		c, err := tx.GetCivilization(3)
		require.NoError(t, err)
		assert.Equal(t, testCiv(3, "alice"), c)

		ids, err := tx.ListOwnerCivilizations("alice")
		require.NoError(t, err)
		assert.Equal(t, []uint64{1, 3}, ids)

		ids, err = tx.ListOwnerCivilizations("nobody")
		require.NoError(t, err)
		assert.Empty(t, ids)

		_, err = tx.GetCivilization(9)
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	})
}

func TestDuplicateCivilizationIDFails(t *testing.T) {
	s := createTestStore(t)
	update(t, s, func(tx *Tx) error {
		return tx.InsertCivilization(testCiv(1, "alice"))
	})

	err := s.Update(t.Context(), func(tx *Tx) error {
		return tx.InsertCivilization(testCiv(1, "bob"))
	})
	assert.Error(t, err)
}

func TestActions(t *testing.T) {
	s := createTestStore(t)

	update(t, s, func(tx *Tx) error {
		require.NoError(t, tx.InsertCivilization(testCiv(1, "alice")))
		for i := 0; i < 3; i++ {
			require.NoError(t, tx.InsertAction(ir.Action{
				ID:         uint64(10 + i),
				CivID:      1,
				Index:      i,
				ActionType: testHandle(byte(i)),
				Payload:    testHandle(byte(100 + i)),
				Turn:       uint64(i),
				CreatedAt:  testEpoch,
			}))
		}
		return nil
	})

	view(t, s, func(tx *Tx) error {
		n, err := tx.CountActions(1)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		a, err := tx.GetActionAt(1, 1)
		require.NoError(t, err)
		assert.Equal(t, uint64(11), a.ID)
		assert.Equal(t, testHandle(101), a.Payload)

		byID, err := tx.GetAction(12)
		require.NoError(t, err)
		assert.Equal(t, 2, byID.Index)

		_, err = tx.GetActionAt(1, 3)
		assert.ErrorIs(t, err, ErrNotFound)

		actions, err := tx.ListActions(1)
		require.NoError(t, err)
		require.Len(t, actions, 3)
		for i, a := range actions {
			assert.Equal(t, i, a.Index)
		}
		return nil
	})
}

func TestActionRequiresCivilization(t *testing.T) {
	s := createTestStore(t)

	err := s.Update(t.Context(), func(tx *Tx) error {
		return tx.InsertAction(ir.Action{ID: 1, CivID: 42, ActionType: testHandle(1), Payload: testHandle(2)})
	})
	assert.Error(t, err, "foreign key must reject orphan actions")
}

func insertAggregate(t *testing.T, tx *Tx, label string) ir.AggregateKey {
	t.Helper()
	key := ir.MustAggregateKey(label)
	require.NoError(t, tx.InsertAggregate(ir.WorldAggregate{
		Key:            key,
		GlobalResource: testHandle(1),
		ActiveCivs:     testHandle(2),
		LastUpdated:    testEpoch,
	}))
	return key
}

func TestAggregateSwapRemove(t *testing.T) {
	s := createTestStore(t)

	labels := []string{"a", "b", "c", "d"}
	update(t, s, func(tx *Tx) error {
		for _, l := range labels {
			insertAggregate(t, tx, l)
		}
		return nil
	})

	update(t, s, func(tx *Tx) error {
		removed, err := tx.DeleteAggregate(ir.MustAggregateKey("b"))
		require.NoError(t, err)
		assert.True(t, removed)
		return tx.CheckAggregateIndex()
	})

	view(t, s, func(tx *Tx) error {
		keys, err := tx.ListAggregateKeys()
		require.NoError(t, err)
		assert.Equal(t, []ir.AggregateKey{
			ir.MustAggregateKey("a"),
			ir.MustAggregateKey("d"),
			ir.MustAggregateKey("c"),
		}, keys)

		_, err = tx.GetAggregate(ir.MustAggregateKey("b"))
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	})
}

func TestAggregateRemoveLastAndAbsent(t *testing.T) {
	s := createTestStore(t)

	update(t, s, func(tx *Tx) error {
		insertAggregate(t, tx, "only")

		removed, err := tx.DeleteAggregate(ir.MustAggregateKey("missing"))
		require.NoError(t, err)
		assert.False(t, removed)

		removed, err = tx.DeleteAggregate(ir.MustAggregateKey("only"))
		require.NoError(t, err)
		assert.True(t, removed)

		keys, err := tx.ListAggregateKeys()
		require.NoError(t, err)
		assert.Empty(t, keys)
		return tx.CheckAggregateIndex()
	})
}

func TestAggregateIndexBijectionUnderChurn(t *testing.T) {
	s := createTestStore(t)

	ops := []struct {
		insert bool
		label  string
	}{
		{true, "k1"}, {true, "k2"}, {true, "k3"}, {false, "k1"},
		{true, "k4"}, {false, "k4"}, {false, "k9"}, {true, "k1"},
		{false, "k3"}, {false, "k2"}, {true, "k5"},
	}

	live := map[ir.AggregateKey]bool{}
	for _, op := range ops {
		update(t, s, func(tx *Tx) error {
			key := ir.MustAggregateKey(op.label)
			if op.insert {
				insertAggregate(t, tx, op.label)
				live[key] = true
			} else {
				_, err := tx.DeleteAggregate(key)
				require.NoError(t, err)
				delete(live, key)
			}
			require.NoError(t, tx.CheckAggregateIndex())

			keys, err := tx.ListAggregateKeys()
			require.NoError(t, err)
			assert.Len(t, keys, len(live))
			for _, k := range keys {
				assert.True(t, live[k])
			}
			return nil
		})
	}
}

func TestUpdateAggregate(t *testing.T) {
	s := createTestStore(t)
	later := testEpoch.Add(time.Hour)

	update(t, s, func(tx *Tx) error {
		key := insertAggregate(t, tx, "region-1")
		require.NoError(t, tx.UpdateAggregate(key, testHandle(9), testHandle(8), later))

		agg, err := tx.GetAggregate(key)
		require.NoError(t, err)
		assert.Equal(t, testHandle(9), agg.GlobalResource)
		assert.Equal(t, testHandle(8), agg.ActiveCivs)
		assert.Equal(t, later, agg.LastUpdated)

		err = tx.UpdateAggregate(ir.MustAggregateKey("nope"), testHandle(1), testHandle(1), later)
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	})
}

func TestRequestsConsumeAndRetain(t *testing.T) {
	s := createTestStore(t)
	consumed := uint256.NewInt(1)
	retained := uint256.NewInt(2)

	update(t, s, func(tx *Tx) error {
		for _, id := range []*uint256.Int{consumed, retained} {
			require.NoError(t, tx.InsertRequest(ir.DecryptionRequest{
				RequestID:   *id,
				Target:      ir.CivTarget(7),
				Handles:     []ir.Handle{testHandle(1), testHandle(2)},
				RequestedBy: "alice",
				RequestedAt: testEpoch,
			}))
		}
		return nil
	})

	view(t, s, func(tx *Tx) error {
		pending, err := tx.ListRequests(ir.StatusPending)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Len(t, pending[0].Handles, 2)
		return nil
	})

	update(t, s, func(tx *Tx) error {
		require.NoError(t, tx.MarkFulfilled(consumed, testEpoch.Add(time.Second), true))
		require.NoError(t, tx.MarkFulfilled(retained, testEpoch.Add(time.Second), false))
		return nil
	})

	view(t, s, func(tx *Tx) error {
		req, err := tx.GetRequest(consumed)
		require.NoError(t, err)
		assert.Equal(t, ir.StatusFulfilled, req.Status)
		assert.Empty(t, req.Handles)
		assert.Equal(t, 1, req.Fulfillments)
		assert.Equal(t, testEpoch.Add(time.Second), req.FulfilledAt)
		assert.Equal(t, ir.CivTarget(7), req.Target)

		req, err = tx.GetRequest(retained)
		require.NoError(t, err)
		assert.Len(t, req.Handles, 2)

		pending, err := tx.ListRequests(ir.StatusPending)
		require.NoError(t, err)
		assert.Empty(t, pending)

		all, err := tx.ListRequests("")
		require.NoError(t, err)
		assert.Len(t, all, 2)

		_, err = tx.GetRequest(uint256.NewInt(3))
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	})
}

func TestDuplicateRequestIDFails(t *testing.T) {
	s := createTestStore(t)
	req := ir.DecryptionRequest{RequestID: *uint256.NewInt(5), Target: ir.CivTarget(1), RequestedBy: "a", RequestedAt: testEpoch}

	update(t, s, func(tx *Tx) error { return tx.InsertRequest(req) })
	err := s.Update(t.Context(), func(tx *Tx) error { return tx.InsertRequest(req) })
	assert.Error(t, err)
}
