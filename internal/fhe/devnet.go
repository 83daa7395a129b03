package fhe

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/holiman/uint256"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
)

const (
	handleVersion = 0x01
	wordSize      = 32

	domainEncKey    = "civbuilder/devnet/enc/v1"
	domainMacKey    = "civbuilder/devnet/mac/v1"
	domainProof     = "civbuilder/devnet/proof/v1"
	domainRequestID = "civbuilder/devnet/request/v1"
)

// Devnet is a local stand-in for the external compute engine.
//
// Handles are AES-256-GCM sealed 32-byte words, so "homomorphic" addition
// opens both operands, adds modulo 2^256 and seals the sum. Proofs are
// HMAC-SHA256 attestations over the request id and cleartexts. It is not
// FHE and must never guard real secrets; it exists so the ledger, CLI and
// tests can run end to end without an external oracle.
type Devnet struct {
	mu         sync.Mutex
	aead       cipher.AEAD
	macKey     []byte
	rand       io.Reader
	dispatcher Dispatcher
	logger     *slog.Logger

	jobs map[uint256.Int]Job
}

// DevnetOption configures a Devnet.
type DevnetOption func(*Devnet)

// WithRandom sets the entropy source for nonces and request ids. Tests use
// a deterministic reader to make handles and request ids reproducible.
func WithRandom(r io.Reader) DevnetOption {
	return func(d *Devnet) {
		d.rand = r
	}
}

// WithDispatcher sets the dispatcher notified of every new request.
func WithDispatcher(dispatcher Dispatcher) DevnetOption {
	return func(d *Devnet) {
		d.dispatcher = dispatcher
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) DevnetOption {
	return func(d *Devnet) {
		d.logger = logger
	}
}

// NewDevnet derives the sealing and attestation keys from secret.
func NewDevnet(secret []byte, opts ...DevnetOption) (*Devnet, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("devnet secret is empty")
	}

	encKey := deriveKey(domainEncKey, secret)
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	d := &Devnet{
		aead:   aead,
		macKey: deriveKey(domainMacKey, secret),
		rand:   rand.Reader,
		logger: slog.New(slog.DiscardHandler),
		jobs:   make(map[uint256.Int]Job),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// SetDispatcher replaces the dispatcher. The relay loop is usually built
// after the engine, so it registers itself here.
func (d *Devnet) SetDispatcher(dispatcher Dispatcher) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dispatcher = dispatcher
}

// Encrypt seals v into a new handle.
func (d *Devnet) Encrypt(v *uint256.Int) (ir.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seal(v)
}

// EncryptUint64 is Encrypt for small values.
func (d *Devnet) EncryptUint64(v uint64) (ir.Handle, error) {
	return d.Encrypt(uint256.NewInt(v))
}

// Reveal opens a handle. Only tests and the CLI's local tooling use it; the
// ledger never does.
func (d *Devnet) Reveal(h ir.Handle) (*uint256.Int, error) {
	return d.open(h)
}

// EncodeZero implements Engine.
func (d *Devnet) EncodeZero(ctx context.Context) (ir.Handle, error) {
	return d.Encrypt(new(uint256.Int))
}

// Combine implements Engine.
func (d *Devnet) Combine(ctx context.Context, a, b ir.Handle) (ir.Handle, error) {
	x, err := d.open(a)
	if err != nil {
		return nil, fmt.Errorf("combine lhs: %w", err)
	}
	y, err := d.open(b)
	if err != nil {
		return nil, fmt.Errorf("combine rhs: %w", err)
	}

	sum := new(uint256.Int).Add(x, y)

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seal(sum)
}

// RequestDecryption implements Engine. The handles are validated, recorded
// for the oracle and handed to the dispatcher.
func (d *Devnet) RequestDecryption(ctx context.Context, handles []ir.Handle, tag CallbackTag) (*uint256.Int, error) {
	if tag.Kind() == "" {
		return nil, fmt.Errorf("unknown callback tag %q", tag)
	}
	for i, h := range handles {
		if _, err := d.open(h); err != nil {
			return nil, fmt.Errorf("handle %d: %w", i, err)
		}
	}

	d.mu.Lock()
	nonce := make([]byte, 16)
	if _, err := io.ReadFull(d.rand, nonce); err != nil {
		d.mu.Unlock()
		return nil, fmt.Errorf("read nonce: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(domainRequestID))
	h.Write([]byte{0x00})
	h.Write([]byte(tag))
	for _, handle := range handles {
		h.Write(handle)
	}
	h.Write(nonce)
	id := new(uint256.Int).SetBytes(h.Sum(nil))

	snapshot := make([]ir.Handle, len(handles))
	for i, handle := range handles {
		snapshot[i] = handle.Clone()
	}
	job := Job{RequestID: id, Tag: tag, Handles: snapshot}
	d.jobs[*id] = job
	dispatcher := d.dispatcher
	d.mu.Unlock()

	d.logger.Debug("decryption requested",
		"request_id", id.Dec(),
		"tag", tag,
		"handles", len(handles),
	)

	if dispatcher != nil {
		dispatcher.Dispatch(job)
	}
	return id, nil
}

// Decrypt implements Oracle. It opens every handle of the request and
// attests the concatenated 32-byte words.
func (d *Devnet) Decrypt(ctx context.Context, requestID *uint256.Int) ([]byte, []byte, error) {
	d.mu.Lock()
	job, ok := d.jobs[*requestID]
	d.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownRequest, requestID.Dec())
	}

	cleartexts := make([]byte, 0, len(job.Handles)*wordSize)
	for i, h := range job.Handles {
		v, err := d.open(h)
		if err != nil {
			return nil, nil, fmt.Errorf("decrypt handle %d: %w", i, err)
		}
		word := v.Bytes32()
		cleartexts = append(cleartexts, word[:]...)
	}
	return cleartexts, d.Prove(requestID, cleartexts), nil
}

// Prove returns the attestation for cleartexts under requestID. Tests use it
// to build callbacks with arbitrary cleartexts.
func (d *Devnet) Prove(requestID *uint256.Int, cleartexts []byte) []byte {
	mac := hmac.New(sha256.New, d.macKey)
	mac.Write([]byte(domainProof))
	mac.Write([]byte{0x00})
	id := requestID.Bytes32()
	mac.Write(id[:])
	mac.Write(cleartexts)
	return mac.Sum(nil)
}

// VerifyProof implements Engine.
func (d *Devnet) VerifyProof(ctx context.Context, requestID *uint256.Int, cleartexts, proof []byte) error {
	d.mu.Lock()
	_, ok := d.jobs[*requestID]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: request %s was not issued by this engine", ErrInvalidProof, requestID.Dec())
	}
	if !hmac.Equal(proof, d.Prove(requestID, cleartexts)) {
		return fmt.Errorf("%w: attestation mismatch for request %s", ErrInvalidProof, requestID.Dec())
	}
	return nil
}

// Pending returns the jobs the oracle knows about, in no particular order.
func (d *Devnet) Pending() []Job {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Job, 0, len(d.jobs))
	for _, job := range d.jobs {
		out = append(out, job)
	}
	return out
}

// Restore re-registers a job, for example after a process restart where the
// ledger still holds the pending request and its handle snapshot.
func (d *Devnet) Restore(job Job) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs[*job.RequestID] = job
}

// seal requires d.mu.
func (d *Devnet) seal(v *uint256.Int) (ir.Handle, error) {
	nonce := make([]byte, d.aead.NonceSize())
	if _, err := io.ReadFull(d.rand, nonce); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	word := v.Bytes32()

	out := make(ir.Handle, 0, 1+len(nonce)+wordSize+d.aead.Overhead())
	out = append(out, handleVersion)
	out = append(out, nonce...)
	out = d.aead.Seal(out, nonce, word[:], []byte{handleVersion})
	return out, nil
}

func (d *Devnet) open(h ir.Handle) (*uint256.Int, error) {
	nonceSize := d.aead.NonceSize()
	if len(h) != 1+nonceSize+wordSize+d.aead.Overhead() || h[0] != handleVersion {
		return nil, fmt.Errorf("%w: unexpected handle layout", ErrInvalidCiphertext)
	}
	nonce := h[1 : 1+nonceSize]
	plain, err := d.aead.Open(nil, nonce, h[1+nonceSize:], []byte{handleVersion})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	return new(uint256.Int).SetBytes(plain), nil
}

func deriveKey(domain string, secret []byte) []byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(secret)
	return h.Sum(nil)
}
