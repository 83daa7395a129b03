package ledger

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
)

// WordSize is the width of one cleartext value in a callback payload.
const WordSize = 32

// EncodeCleartexts packs values as consecutive 32-byte big-endian words,
// the layout the oracle delivers to callbacks.
func EncodeCleartexts(values ...*uint256.Int) []byte {
	out := make([]byte, 0, len(values)*WordSize)
	for _, v := range values {
		w := v.Bytes32()
		out = append(out, w[:]...)
	}
	return out
}

// decodeCleartexts splits a callback payload into the words expected for
// kind.
func decodeCleartexts(kind ir.TargetKind, data []byte) ([]uint256.Int, error) {
	want := kind.HandleCount()
	if want == 0 {
		return nil, fmt.Errorf("unknown target kind %q", kind)
	}
	if len(data) != want*WordSize {
		return nil, fmt.Errorf("%s cleartexts must be %d bytes, got %d", kind, want*WordSize, len(data))
	}

	values := make([]uint256.Int, want)
	for i := range values {
		values[i].SetBytes(data[i*WordSize : (i+1)*WordSize])
	}
	return values, nil
}

// CivDisclosure returns the typed view of a civilization disclosure.
func CivDisclosure(d ir.Disclosure) (ir.CivDisclosure, error) {
	if d.Target.Kind != ir.TargetCivilization || len(d.Values) != 4 {
		return ir.CivDisclosure{}, fmt.Errorf("not a civilization disclosure")
	}
	id, ok := d.Target.ID.Uint64()
	if !ok {
		return ir.CivDisclosure{}, fmt.Errorf("civilization id out of range")
	}
	return ir.CivDisclosure{
		CivID:      id,
		Resource:   d.Values[0],
		Tech:       d.Values[1],
		Military:   d.Values[2],
		Population: d.Values[3],
	}, nil
}

// ActionDisclosure returns the typed view of an action disclosure.
func ActionDisclosure(d ir.Disclosure) (ir.ActionDisclosure, error) {
	if d.Target.Kind != ir.TargetAction || len(d.Values) != 2 {
		return ir.ActionDisclosure{}, fmt.Errorf("not an action disclosure")
	}
	id, ok := d.Target.ID.Uint64()
	if !ok {
		return ir.ActionDisclosure{}, fmt.Errorf("action id out of range")
	}
	return ir.ActionDisclosure{
		ActionID:   id,
		ActionType: d.Values[0],
		Payload:    d.Values[1],
	}, nil
}

// AggregateDisclosure returns the typed view of an aggregate disclosure.
func AggregateDisclosure(d ir.Disclosure) (ir.AggregateDisclosure, error) {
	if d.Target.Kind != ir.TargetAggregate || len(d.Values) != 2 {
		return ir.AggregateDisclosure{}, fmt.Errorf("not an aggregate disclosure")
	}
	return ir.AggregateDisclosure{
		Key:            ir.AggregateKey(d.Target.ID),
		GlobalResource: d.Values[0],
		ActiveCivs:     d.Values[1],
	}, nil
}
