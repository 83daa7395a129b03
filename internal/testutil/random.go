package testutil

import (
	"crypto/sha256"
	"encoding/binary"
	"sync"
)

// DeterministicReader is an io.Reader producing a reproducible byte stream
// from a seed (SHA-256 in counter mode). Use it wherever a component takes
// an entropy source so that handles and request ids are stable in tests.
type DeterministicReader struct {
	mu      sync.Mutex
	seed    []byte
	counter uint64
	buf     []byte
}

// NewDeterministicReader creates a reader for seed.
func NewDeterministicReader(seed string) *DeterministicReader {
	return &DeterministicReader{seed: []byte(seed)}
}

// Read fills p and never fails.
func (r *DeterministicReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for n < len(p) {
		if len(r.buf) == 0 {
			var ctr [8]byte
			binary.BigEndian.PutUint64(ctr[:], r.counter)
			r.counter++
			block := sha256.Sum256(append(append([]byte{}, r.seed...), ctr[:]...))
			r.buf = block[:]
		}
		c := copy(p[n:], r.buf)
		r.buf = r.buf[c:]
		n += c
	}
	return n, nil
}
