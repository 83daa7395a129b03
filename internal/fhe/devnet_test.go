package fhe

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/testutil"
)

func newTestDevnet(t *testing.T, opts ...DevnetOption) *Devnet {
	t.Helper()
	opts = append([]DevnetOption{WithRandom(testutil.NewDeterministicReader("devnet-test"))}, opts...)
	d, err := NewDevnet([]byte("test-secret"), opts...)
	require.NoError(t, err)
	return d
}

func TestDevnetEncryptReveal(t *testing.T) {
	d := newTestDevnet(t)

	h, err := d.EncryptUint64(1234)
	require.NoError(t, err)

	v, err := d.Reveal(h)
	require.NoError(t, err)
	assert.Equal(t, uint64(1234), v.Uint64())
}

func TestDevnetHandlesAreRandomized(t *testing.T) {
	d := newTestDevnet(t)

	a, err := d.EncryptUint64(5)
	require.NoError(t, err)
	b, err := d.EncryptUint64(5)
	require.NoError(t, err)

	assert.False(t, a.Equal(b), "equal plaintexts must not produce equal handles")
}

func TestDevnetCombine(t *testing.T) {
	ctx := context.Background()
	d := newTestDevnet(t)

	zero, err := d.EncodeZero(ctx)
	require.NoError(t, err)
	a, err := d.EncryptUint64(40)
	require.NoError(t, err)
	b, err := d.EncryptUint64(2)
	require.NoError(t, err)

	sum, err := d.Combine(ctx, zero, a)
	require.NoError(t, err)
	sum, err = d.Combine(ctx, sum, b)
	require.NoError(t, err)

	v, err := d.Reveal(sum)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), v.Uint64())
}

func TestDevnetCombineWraps(t *testing.T) {
	ctx := context.Background()
	d := newTestDevnet(t)

	maxHandle, err := d.Encrypt(new(uint256.Int).SetAllOne())
	require.NoError(t, err)
	one, err := d.EncryptUint64(1)
	require.NoError(t, err)

	sum, err := d.Combine(ctx, maxHandle, one)
	require.NoError(t, err)

	v, err := d.Reveal(sum)
	require.NoError(t, err)
	assert.True(t, v.IsZero())
}

func TestDevnetRejectsForeignHandles(t *testing.T) {
	ctx := context.Background()
	d := newTestDevnet(t)
	other, err := NewDevnet([]byte("other-secret"), WithRandom(testutil.NewDeterministicReader("other")))
	require.NoError(t, err)

	foreign, err := other.EncryptUint64(1)
	require.NoError(t, err)
	mine, err := d.EncryptUint64(1)
	require.NoError(t, err)

	_, err = d.Combine(ctx, mine, foreign)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = d.Combine(ctx, ir.Handle{0x01, 0x02}, mine)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestDevnetRequestDecryptDispatches(t *testing.T) {
	ctx := context.Background()
	var jobs []Job
	d := newTestDevnet(t, WithDispatcher(DispatcherFunc(func(j Job) {
		jobs = append(jobs, j)
	})))

	h1, err := d.EncryptUint64(7)
	require.NoError(t, err)
	h2, err := d.EncryptUint64(9)
	require.NoError(t, err)

	id, err := d.RequestDecryption(ctx, []ir.Handle{h1, h2}, TagAction)
	require.NoError(t, err)

	require.Len(t, jobs, 1)
	assert.True(t, id.Eq(jobs[0].RequestID))
	assert.Equal(t, TagAction, jobs[0].Tag)

	cleartexts, proof, err := d.Decrypt(ctx, id)
	require.NoError(t, err)
	require.Len(t, cleartexts, 64)
	assert.Equal(t, byte(7), cleartexts[31])
	assert.Equal(t, byte(9), cleartexts[63])

	require.NoError(t, d.VerifyProof(ctx, id, cleartexts, proof))
}

func TestDevnetRequestIDsAreUnique(t *testing.T) {
	ctx := context.Background()
	d := newTestDevnet(t)

	h, err := d.EncryptUint64(1)
	require.NoError(t, err)

	seen := make(map[uint256.Int]bool)
	for range 20 {
		id, err := d.RequestDecryption(ctx, []ir.Handle{h}, TagCivilization)
		require.NoError(t, err)
		assert.False(t, seen[*id])
		seen[*id] = true
	}
	assert.Len(t, d.Pending(), 20)
}

func TestDevnetVerifyProofFailures(t *testing.T) {
	ctx := context.Background()
	d := newTestDevnet(t)

	h, err := d.EncryptUint64(3)
	require.NoError(t, err)
	id, err := d.RequestDecryption(ctx, []ir.Handle{h}, TagAggregate)
	require.NoError(t, err)

	cleartexts, proof, err := d.Decrypt(ctx, id)
	require.NoError(t, err)

	t.Run("tampered cleartexts", func(t *testing.T) {
		forged := append([]byte(nil), cleartexts...)
		forged[31] = 4
		assert.ErrorIs(t, d.VerifyProof(ctx, id, forged, proof), ErrInvalidProof)
	})

	t.Run("tampered proof", func(t *testing.T) {
		forged := append([]byte(nil), proof...)
		forged[0] ^= 0xff
		assert.ErrorIs(t, d.VerifyProof(ctx, id, cleartexts, forged), ErrInvalidProof)
	})

	t.Run("proof for another request", func(t *testing.T) {
		other := new(uint256.Int).AddUint64(id, 1)
		assert.ErrorIs(t, d.VerifyProof(ctx, other, cleartexts, d.Prove(other, cleartexts)), ErrInvalidProof)
	})
}

func TestDevnetDecryptUnknownRequest(t *testing.T) {
	d := newTestDevnet(t)

	_, _, err := d.Decrypt(context.Background(), uint256.NewInt(99))
	assert.ErrorIs(t, err, ErrUnknownRequest)
}

func TestDevnetRejectsUnknownTag(t *testing.T) {
	d := newTestDevnet(t)

	_, err := d.RequestDecryption(context.Background(), nil, CallbackTag("bogus"))
	assert.Error(t, err)
}

func TestCallbackTagKinds(t *testing.T) {
	for _, kind := range []ir.TargetKind{ir.TargetCivilization, ir.TargetAction, ir.TargetAggregate} {
		assert.Equal(t, kind, TagFor(kind).Kind())
	}
	assert.Equal(t, CallbackTag(""), TagFor("bogus"))
}
