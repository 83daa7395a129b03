package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
)

func appendTestEvents(t *testing.T, s *Store, n int) []ir.Event {
	t.Helper()
	var out []ir.Event
	update(t, s, func(tx *Tx) error {
		for i := 0; i < n; i++ {
			payload, err := ir.CanonicalPayload(ir.ActionSubmittedPayload{ActionID: uint64(i + 1), CivID: 1, Turn: uint64(i)})
			require.NoError(t, err)
			e, err := tx.AppendEvent(ir.EventActionSubmitted, fmt.Sprintf("tx-%d", i), testEpoch.Add(time.Duration(i)*time.Second), payload)
			require.NoError(t, err)
			out = append(out, e)
		}
		return nil
	})
	return out
}

func TestAppendEventChains(t *testing.T) {
	s := createTestStore(t)
	events := appendTestEvents(t, s, 3)

	assert.Equal(t, int64(1), events[0].Seq)
	assert.Equal(t, ir.GenesisHash, events[0].PrevHash)
	assert.Equal(t, events[0].Hash, events[1].PrevHash)
	assert.Equal(t, events[1].Hash, events[2].PrevHash)

	view(t, s, func(tx *Tx) error {
		read, err := tx.ReadEvents(0, 0)
		require.NoError(t, err)
		assert.Equal(t, events, read)

		tail, err := tx.ReadEvents(1, 1)
		require.NoError(t, err)
		require.Len(t, tail, 1)
		assert.Equal(t, int64(2), tail[0].Seq)
		return nil
	})
}

func TestVerifyChainIntact(t *testing.T) {
	s := createTestStore(t)
	events := appendTestEvents(t, s, 1200)

	view(t, s, func(tx *Tx) error {
		report, err := tx.VerifyChain()
		require.NoError(t, err)
		assert.True(t, report.OK(), report.Reason)
		assert.Equal(t, 1200, report.Events)
		assert.Equal(t, events[len(events)-1].Hash, report.HeadHash)
		return nil
	})
}

func TestVerifyChainEmpty(t *testing.T) {
	s := createTestStore(t)

	view(t, s, func(tx *Tx) error {
		report, err := tx.VerifyChain()
		require.NoError(t, err)
		assert.True(t, report.OK())
		assert.Equal(t, ir.GenesisHash, report.HeadHash)
		return nil
	})
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	tests := []struct {
		name   string
		tamper string
	}{
		{"payload edit", `UPDATE events SET payload = '{"action_id":99,"civ_id":1,"turn":1}' WHERE seq = 2`},
		{"non canonical payload", `UPDATE events SET payload = '{"turn":1,"civ_id":1,"action_id":2}' WHERE seq = 2`},
		{"kind edit", `UPDATE events SET kind = 'CivSubmitted' WHERE seq = 2`},
		{"deleted event", `DELETE FROM events WHERE seq = 2`},
		{"relinked", `UPDATE events SET prev_hash = 'x' WHERE seq = 2`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := createTestStore(t)
			appendTestEvents(t, s, 3)

			_, err := s.db.Exec(tt.tamper)
			require.NoError(t, err)

			view(t, s, func(tx *Tx) error {
				report, err := tx.VerifyChain()
				require.NoError(t, err)
				assert.False(t, report.OK())
				assert.Contains(t, []int64{2, 3}, report.BrokenAt)
				assert.NotEmpty(t, report.Reason)
				return nil
			})
		})
	}
}
