package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/fhe"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/store"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/testutil"
)

var (
	deployer = ir.MustIdentity("0xdeployer")
	alice    = ir.MustIdentity("0xalice")
	bob      = ir.MustIdentity("0xbob")
)

// recordingPublisher captures published batches.
type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]ir.Event
}

func (p *recordingPublisher) Publish(events []ir.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, append([]ir.Event(nil), events...))
}

func (p *recordingPublisher) all() []ir.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []ir.Event
	for _, b := range p.batches {
		out = append(out, b...)
	}
	return out
}

type fixture struct {
	ledger   *Ledger
	store    *store.Store
	devnet   *fhe.Devnet
	clock    *testutil.StepClock
	registry *prometheus.Registry
	pub      *recordingPublisher
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	devnet, err := fhe.NewDevnet([]byte("ledger-test-secret"),
		fhe.WithRandom(testutil.NewDeterministicReader(t.Name())),
	)
	require.NoError(t, err)

	f := &fixture{
		store:    s,
		devnet:   devnet,
		clock:    testutil.NewDefaultStepClock(),
		registry: prometheus.NewRegistry(),
		pub:      &recordingPublisher{},
	}
	base := []Option{
		WithClock(f.clock.Now),
		WithTokenGenerator(testutil.NewSequenceTokenGenerator("tx")),
		WithMetrics(NewMetrics(f.registry)),
		WithPublisher(f.pub),
	}
	f.ledger = New(s, devnet, append(base, opts...)...)
	require.NoError(t, f.ledger.Bootstrap(context.Background(), deployer))
	return f
}

func (f *fixture) encrypt(t *testing.T, v uint64) ir.Handle {
	t.Helper()
	h, err := f.devnet.EncryptUint64(v)
	require.NoError(t, err)
	return h
}

func (f *fixture) reveal(t *testing.T, h ir.Handle) uint64 {
	t.Helper()
	v, err := f.devnet.Reveal(h)
	require.NoError(t, err)
	require.True(t, v.IsUint64())
	return v.Uint64()
}

func (f *fixture) submitCiv(t *testing.T, owner ir.Identity, r, tech, m, p uint64) uint64 {
	t.Helper()
	id, err := f.ledger.SubmitCivilization(context.Background(), owner,
		f.encrypt(t, r), f.encrypt(t, tech), f.encrypt(t, m), f.encrypt(t, p))
	require.NoError(t, err)
	return id
}

func (f *fixture) submitAction(t *testing.T, owner ir.Identity, civID, actionType, payload, turn uint64) uint64 {
	t.Helper()
	id, err := f.ledger.SubmitAction(context.Background(), owner, civID,
		f.encrypt(t, actionType), f.encrypt(t, payload), turn)
	require.NoError(t, err)
	return id
}

// fulfill plays the oracle for requestID.
func (f *fixture) fulfill(t *testing.T, requestID *uint256.Int) (cleartexts, proof []byte) {
	t.Helper()
	cleartexts, proof, err := f.devnet.Decrypt(context.Background(), requestID)
	require.NoError(t, err)
	return cleartexts, proof
}

func (f *fixture) events(t *testing.T) []ir.Event {
	t.Helper()
	events, err := f.ledger.Events(context.Background(), 0, 0)
	require.NoError(t, err)
	return events
}

func eventKinds(events []ir.Event) []ir.EventKind {
	kinds := make([]ir.EventKind, len(events))
	for i, e := range events {
		kinds[i] = e.Kind
	}
	return kinds
}

func u256(n uint64) uint256.Int {
	return *uint256.NewInt(n)
}
