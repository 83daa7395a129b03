package feed

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
)

// ArchiveWriter writes events as zstd-compressed JSON lines.
type ArchiveWriter struct {
	enc *zstd.Encoder
	w   *bufio.Writer
	n   int
}

// NewArchiveWriter wraps w. Close must be called to flush the zstd frame;
// it does not close w.
func NewArchiveWriter(w io.Writer) (*ArchiveWriter, error) {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	return &ArchiveWriter{enc: enc, w: bufio.NewWriterSize(enc, 128*1024)}, nil
}

// Write appends one event.
func (a *ArchiveWriter) Write(e ir.Event) error {
	b, err := marshalEvent(e)
	if err != nil {
		return fmt.Errorf("marshal event %d: %w", e.Seq, err)
	}
	if _, err := a.w.Write(b); err != nil {
		return err
	}
	a.n++
	return nil
}

// Count returns the number of events written.
func (a *ArchiveWriter) Count() int {
	return a.n
}

// Close flushes buffered data and finishes the zstd stream.
func (a *ArchiveWriter) Close() error {
	if err := a.w.Flush(); err != nil {
		_ = a.enc.Close()
		return err
	}
	return a.enc.Close()
}

// Export copies every event after afterSeq from source into w.
func Export(ctx context.Context, source EventSource, w *ArchiveWriter, afterSeq int64) error {
	last := afterSeq
	for {
		events, err := source.Events(ctx, last, backlogPage)
		if err != nil {
			return fmt.Errorf("read events after %d: %w", last, err)
		}
		for _, e := range events {
			if err := w.Write(e); err != nil {
				return err
			}
			last = e.Seq
		}
		if len(events) < backlogPage {
			return nil
		}
	}
}

// ReadArchive decodes an archive produced by ArchiveWriter.
func ReadArchive(r io.Reader) ([]ir.Event, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	var events []ir.Event
	scanner := bufio.NewScanner(dec)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e ir.Event
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("archive line %d: %w", len(events)+1, err)
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	return events, nil
}

// marshalEvent encodes e as one JSON line. HTML escaping is off so the
// payload bytes stay exactly as hashed.
func marshalEvent(e ir.Event) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// VerifyEvents checks that events form an unbroken hash chain starting at
// GenesisHash. It returns the index of the first bad event, or -1.
func VerifyEvents(events []ir.Event) (int, error) {
	prev := ir.GenesisHash
	for i, e := range events {
		if e.Seq != int64(i+1) {
			return i, fmt.Errorf("event %d: expected seq %d", e.Seq, i+1)
		}
		if e.PrevHash != prev {
			return i, fmt.Errorf("event %d: prev_hash does not match event %d", e.Seq, e.Seq-1)
		}
		hash, err := e.ComputeHash()
		if err != nil {
			return i, fmt.Errorf("event %d: %w", e.Seq, err)
		}
		if hash != e.Hash {
			return i, fmt.Errorf("event %d: hash mismatch", e.Seq)
		}
		prev = e.Hash
	}
	return -1, nil
}
