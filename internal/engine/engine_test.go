package engine

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/fhe"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ledger"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/store"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/testutil"
)

var (
	admin = ir.MustIdentity("0xadmin")
	owner = ir.MustIdentity("0xowner")
)

// resultSink collects relay results across goroutines.
type resultSink struct {
	mu      sync.Mutex
	results []Result
	done    chan struct{}
	want    int
}

func newResultSink(want int) *resultSink {
	return &resultSink{done: make(chan struct{}), want: want}
}

func (s *resultSink) observe(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
	if len(s.results) == s.want {
		close(s.done)
	}
}

type setup struct {
	ledger *ledger.Ledger
	devnet *fhe.Devnet
	store  *store.Store
}

func newSetup(t *testing.T) *setup {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "relay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	devnet, err := fhe.NewDevnet([]byte("relay-secret"),
		fhe.WithRandom(testutil.NewDeterministicReader(t.Name())))
	require.NoError(t, err)

	l := ledger.New(s, devnet, ledger.WithClock(testutil.NewDefaultStepClock().Now))
	require.NoError(t, l.Bootstrap(context.Background(), admin))
	return &setup{ledger: l, devnet: devnet, store: s}
}

func (s *setup) submitCiv(t *testing.T, values ...uint64) uint64 {
	t.Helper()
	handles := make([]ir.Handle, len(values))
	for i, v := range values {
		h, err := s.devnet.EncryptUint64(v)
		require.NoError(t, err)
		handles[i] = h
	}
	id, err := s.ledger.SubmitCivilization(context.Background(), owner, handles[0], handles[1], handles[2], handles[3])
	require.NoError(t, err)
	return id
}

func TestRelay_RunDeliversCallbacks(t *testing.T) {
	s := newSetup(t)
	sink := newResultSink(2)
	relay := New(s.devnet, s.ledger, WithObserver(sink.observe))
	s.devnet.SetDispatcher(relay)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- relay.Run(ctx) }()

	civ := s.submitCiv(t, 1, 2, 3, 4)
	_, err := s.ledger.RequestCivDecryption(ctx, owner, civ)
	require.NoError(t, err)
	_, err = s.ledger.RequestCivDecryption(ctx, owner, civ)
	require.NoError(t, err)

	select {
	case <-sink.done:
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not deliver both callbacks")
	}

	for _, r := range sink.results {
		require.NoError(t, r.Err)
		d, err := ledger.CivDisclosure(r.Disclosure)
		require.NoError(t, err)
		assert.Equal(t, uint64(4), d.Population.Uint64())
	}

	pending, err := s.ledger.ListPendingRequests(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)

	relay.Stop()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run did not return after stop")
	}
}

func TestRelay_RunReturnsOnCancel(t *testing.T) {
	s := newSetup(t)
	relay := New(s.devnet, s.ledger)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- relay.Run(ctx) }()
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestRelay_DrainLogsAndContinues(t *testing.T) {
	s := newSetup(t)
	relay := New(s.devnet, s.ledger)
	s.devnet.SetDispatcher(relay)

	relay.Dispatch(fhe.Job{RequestID: uint256.NewInt(99), Tag: fhe.TagCivilization})
	civ := s.submitCiv(t, 5, 6, 7, 8)
	_, err := s.ledger.RequestCivDecryption(context.Background(), owner, civ)
	require.NoError(t, err)

	results := relay.Drain(context.Background())
	require.Len(t, results, 2)
	assert.ErrorIs(t, results[0].Err, fhe.ErrUnknownRequest)
	require.NoError(t, results[1].Err)
	assert.Equal(t, 0, relay.Len())
}

func TestRelay_ResumeAfterRestart(t *testing.T) {
	s := newSetup(t)
	civ := s.submitCiv(t, 9, 9, 9, 9)
	id, err := s.ledger.RequestCivDecryption(context.Background(), owner, civ)
	require.NoError(t, err)

	// A fresh devnet with the same secret has no record of the job.
	restarted, err := fhe.NewDevnet([]byte("relay-secret"))
	require.NoError(t, err)
	l := ledger.New(s.store, restarted)
	relay := New(restarted, l)

	pending, err := l.ListPendingRequests(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, relay.Resume(pending, restarted.Restore))

	results := relay.Drain(context.Background())
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, *id, results[0].Disclosure.RequestID)
}

func TestRelay_DispatchAfterStop(t *testing.T) {
	s := newSetup(t)
	relay := New(s.devnet, s.ledger)
	relay.Stop()
	relay.Dispatch(fhe.Job{RequestID: uint256.NewInt(1), Tag: fhe.TagAction})
	assert.Equal(t, 0, relay.Len())
}

func TestJobFor(t *testing.T) {
	req := ir.DecryptionRequest{
		RequestID: *uint256.NewInt(5),
		Target:    ir.ActionTarget(3),
		Handles:   []ir.Handle{{1}, {2}},
	}
	job, err := JobFor(req)
	require.NoError(t, err)
	assert.Equal(t, fhe.TagAction, job.Tag)
	assert.Equal(t, uint64(5), job.RequestID.Uint64())

	req.Handles = nil
	_, err = JobFor(req)
	assert.Error(t, err, "a consumed request has no handles to resume")
}
