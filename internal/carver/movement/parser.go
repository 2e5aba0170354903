package movement

import (
	"context"
	"fmt"

	"github.com/5G-Cash/bulwark-explorer/internal/carver/model"
)

// AddressLoader resolves a Label to its CarverAddress, creating it at
// blockHeight on first sight. Implemented by addresscache.Loader; kept
// as an interface here so the parse sweep can be tested without a real
// cache or store.
type AddressLoader interface {
	Load(ctx context.Context, label model.Label, blockHeight uint64) (*model.CarverAddress, error)
}

// Parse runs the parse sweep: for every label a Stub names, ensure its
// CarverAddress exists and attach the live record, producing the
// ParsedMovements the SequenceApplier will assign sequences to.
//
// This sweep may do I/O (cache miss → store read → create), but it
// never recomputes amounts or movement types — those were already
// decided, I/O-free, by BuildRequired.
//
// stubs routinely name the same address more than once within a single
// transaction (two inputs spending from the same address, a change
// output returning to the spender), so every address is resolved
// through a per-transaction map first — seeded from the loader on
// first touch, same as the Unwinder's own resolve() — rather than
// calling the loader again for each occurrence. The loader/cache pair
// is not itself safe against that: a Load immediately following a
// same-label Load earlier in this same sweep can still miss the cache
// and fabricate a second, independent record, since Save is deferred
// to end-of-block.
func Parse(ctx context.Context, stubs []Stub, loader AddressLoader, blockHeight uint64) ([]ParsedMovement, error) {
	parsed := make([]ParsedMovement, 0, len(stubs))
	touched := make(map[string]*model.CarverAddress, len(stubs)*2)

	resolve := func(label model.Label) (*model.CarverAddress, error) {
		id := string(label)
		if addr, ok := touched[id]; ok {
			return addr, nil
		}
		addr, err := loader.Load(ctx, label, blockHeight)
		if err != nil {
			return nil, err
		}
		touched[id] = addr
		return addr, nil
	}

	for _, stub := range stubs {
		from, err := resolve(stub.From)
		if err != nil {
			return nil, fmt.Errorf("load from-address %s: %w", stub.From, err)
		}
		to, err := resolve(stub.To)
		if err != nil {
			return nil, fmt.Errorf("load to-address %s: %w", stub.To, err)
		}

		parsed = append(parsed, ParsedMovement{
			MovementType:            stub.MovementType,
			Amount:                  stub.Amount,
			From:                    from,
			To:                      to,
			DestinationAddress:      stub.DestinationAddress,
			PosInputAmount:          stub.PosInputAmount,
			PosInputBlockHeightDiff: stub.PosInputBlockHeightDiff,
		})
	}
	return parsed, nil
}
