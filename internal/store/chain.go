package store

import (
	"fmt"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
)

// ChainReport summarizes a walk over the event log.
type ChainReport struct {
	Events   int
	LastSeq  int64
	HeadHash string

	// BrokenAt is the seq of the first event that fails verification, 0 if
	// the chain is intact.
	BrokenAt int64
	Reason   string
}

// OK reports whether the whole chain verified.
func (r ChainReport) OK() bool {
	return r.BrokenAt == 0
}

// VerifyChain recomputes every event hash in seq order and checks the links
// between them. Events are read in pages so large logs are not loaded at
// once.
func (t *Tx) VerifyChain() (ChainReport, error) {
	const pageSize = 500

	report := ChainReport{HeadHash: ir.GenesisHash}
	prevHash := ir.GenesisHash
	var after int64

	for {
		events, err := t.ReadEvents(after, pageSize)
		if err != nil {
			return report, fmt.Errorf("verify chain: %w", err)
		}
		if len(events) == 0 {
			return report, nil
		}

		for _, e := range events {
			if reason := checkLink(e, report.LastSeq, prevHash); reason != "" {
				report.BrokenAt = e.Seq
				report.Reason = reason
				return report, nil
			}
			report.Events++
			report.LastSeq = e.Seq
			report.HeadHash = e.Hash
			prevHash = e.Hash
		}
		after = report.LastSeq
	}
}

func checkLink(e ir.Event, lastSeq int64, prevHash string) string {
	if e.Seq != lastSeq+1 {
		return fmt.Sprintf("seq gap: expected %d, found %d", lastSeq+1, e.Seq)
	}
	if e.PrevHash != prevHash {
		return "prev_hash does not match the preceding event"
	}
	canonical, err := ir.Canonicalize(e.Payload)
	if err != nil {
		return fmt.Sprintf("payload is not valid JSON: %v", err)
	}
	if string(canonical) != string(e.Payload) {
		return "payload is not canonical JSON"
	}
	want, err := e.ComputeHash()
	if err != nil {
		return err.Error()
	}
	if want != e.Hash {
		return "hash does not match event contents"
	}
	return ""
}
