// Package unwind implements the Unwinder: reversing the store back to
// the state it would have had before any movement at or above a target
// height was ever applied.
package unwind

import (
	"context"
	"fmt"

	"github.com/5G-Cash/bulwark-explorer/internal/carver/addresscache"
	"github.com/5G-Cash/bulwark-explorer/internal/carver/carverrors"
	"github.com/5G-Cash/bulwark-explorer/internal/carver/chain"
	"github.com/5G-Cash/bulwark-explorer/internal/carver/model"
)

const (
	blockCollection    = "blocks"
	movementCollection = "movements"
	addressCollection  = "addresses"

	defaultBatchSize = 1000
)

// Unwinder reverses the store to the state before height using the
// protocol in the SequenceApplier's own terms, run backwards.
type Unwinder struct {
	store     chain.Store
	loader    *addresscache.Loader
	cache     *addresscache.Cache
	batchSize int
}

// New constructs an Unwinder. batchSize of 0 uses the default of 1000.
func New(store chain.Store, loader *addresscache.Loader, cache *addresscache.Cache, batchSize int) *Unwinder {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Unwinder{store: store, loader: loader, cache: cache, batchSize: batchSize}
}

// Unwind reverses all movements and addresses at or above height. It is
// restart-safe at every step: addresses are saved before movements are
// deleted, so a crash mid-unwind leaves a state the next call resumes
// from cleanly.
func (u *Unwinder) Unwind(ctx context.Context, height uint64) error {
	if _, err := u.store.DeleteMany(ctx, chain.Query{
		Collection: blockCollection,
		Filter:     map[string]any{"height__gte": height},
	}); err != nil {
		return &carverrors.StoreError{Op: "delete blocks >= height", Err: err}
	}

	for {
		var batch []model.CarverMovement
		err := u.store.Find(ctx, chain.Query{
			Collection: movementCollection,
			Filter:     map[string]any{"block_height__gte": height},
			SortField:  "sequence",
			Descending: true,
			Limit:      u.batchSize,
		}, &batch)
		if err != nil {
			return &carverrors.StoreError{Op: "find movements to unwind", Err: err}
		}
		if len(batch) == 0 {
			break
		}

		touched := make(map[string]*model.CarverAddress)
		minSeq := batch[0].Sequence
		for _, mv := range batch {
			if mv.Sequence < minSeq {
				minSeq = mv.Sequence
			}
			if err := u.reverse(ctx, mv, touched); err != nil {
				return err
			}
		}

		for id, addr := range touched {
			if err := u.loader.Save(ctx, addr); err != nil {
				return fmt.Errorf("unwind: save address %s: %w", id, err)
			}
		}

		if _, err := u.store.DeleteMany(ctx, chain.Query{
			Collection: movementCollection,
			Filter:     map[string]any{"sequence__gte": minSeq},
		}); err != nil {
			return &carverrors.StoreError{Op: "delete unwound movements", Err: err}
		}
	}

	if _, err := u.store.DeleteMany(ctx, chain.Query{
		Collection: addressCollection,
		Filter:     map[string]any{"block_height__gte": height},
	}); err != nil {
		return &carverrors.StoreError{Op: "delete addresses >= height", Err: err}
	}

	u.cache.Clear()
	return nil
}

// reverse undoes one movement's effect on its endpoint addresses,
// tolerating the case where one or both endpoints were already
// unwound in a prior batch or crashed run.
func (u *Unwinder) reverse(ctx context.Context, mv model.CarverMovement, touched map[string]*model.CarverAddress) error {
	from, err := u.resolve(ctx, mv.From, touched)
	if err != nil {
		return err
	}
	to, err := u.resolve(ctx, mv.To, touched)
	if err != nil {
		return err
	}

	if err := reverseEndpoint(from, mv, mv.LastFromMovement, false); err != nil {
		return err
	}
	if err := reverseEndpoint(to, mv, mv.LastToMovement, true); err != nil {
		return err
	}
	return nil
}

func (u *Unwinder) resolve(ctx context.Context, label model.Label, touched map[string]*model.CarverAddress) (*model.CarverAddress, error) {
	id := string(label)
	if addr, ok := touched[id]; ok {
		return addr, nil
	}
	addr, err := u.loader.Load(ctx, label, 0)
	if err != nil {
		return nil, fmt.Errorf("unwind: load address %s: %w", label, err)
	}
	touched[id] = addr
	return addr, nil
}

// reverseEndpoint reverses a movement's effect on one side. isTo
// distinguishes the credit side (balance increases on apply, so
// decreases on reversal) from the debit side.
func reverseEndpoint(addr *model.CarverAddress, mv model.CarverMovement, priorMovementID string, isTo bool) error {
	if mv.Sequence != addr.Sequence {
		if mv.Sequence > addr.Sequence {
			// Already unwound by a prior pass, or never applied — tolerated.
			return nil
		}
		return &carverrors.UnreconciliationError{Label: string(addr.Label), EndpointSequence: addr.Sequence, MovementSequence: mv.Sequence}
	}

	if isTo {
		addr.Balance = addr.Balance.Sub(mv.Amount)
		addr.ValueIn = addr.ValueIn.Sub(mv.Amount)
		addr.CountIn--
		switch mv.MovementType {
		case model.PowAddressReward:
			addr.PowCountIn--
			addr.PowValueIn = addr.PowValueIn.Sub(mv.Amount)
		case model.TxToPosAddress:
			addr.PosCountIn--
			addr.PosValueIn = addr.PosValueIn.Sub(mv.Amount)
			addr.PosRewardMovement = ""
		case model.TxToMnAddress:
			addr.MnCountIn--
			addr.MnValueIn = addr.MnValueIn.Sub(mv.Amount)
			addr.MnRewardMovement = ""
		}
	} else {
		addr.Balance = addr.Balance.Add(mv.Amount)
		addr.ValueOut = addr.ValueOut.Sub(mv.Amount)
		addr.CountOut--
	}

	addr.LastMovement = priorMovementID
	seq, ok := model.SequenceFromMovementID(priorMovementID)
	if !ok {
		return fmt.Errorf("unwind: malformed movement id %q on address %s", priorMovementID, addr.Label)
	}
	addr.Sequence = seq
	return nil
}
