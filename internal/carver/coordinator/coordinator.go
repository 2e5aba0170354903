// Package coordinator implements the SyncCoordinator: the top-level
// loop that acquires the engine's exclusive lock, confirms recently
// synced blocks, recovers from a prior crash, and drives the sync loop
// that turns new node blocks into movements and addresses.
package coordinator

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/5G-Cash/bulwark-explorer/internal/carver/addresscache"
	"github.com/5G-Cash/bulwark-explorer/internal/carver/apply"
	"github.com/5G-Cash/bulwark-explorer/internal/carver/bitcoin"
	"github.com/5G-Cash/bulwark-explorer/internal/carver/carverrors"
	"github.com/5G-Cash/bulwark-explorer/internal/carver/chain"
	"github.com/5G-Cash/bulwark-explorer/internal/carver/classify"
	"github.com/5G-Cash/bulwark-explorer/internal/carver/confirm"
	"github.com/5G-Cash/bulwark-explorer/internal/carver/model"
	"github.com/5G-Cash/bulwark-explorer/internal/carver/movement"
	"github.com/5G-Cash/bulwark-explorer/internal/carver/unwind"
	"github.com/5G-Cash/bulwark-explorer/internal/carver/utxo"
	"github.com/5G-Cash/bulwark-explorer/internal/clock"
	"github.com/5G-Cash/bulwark-explorer/pkg/workerpool"
)

const (
	blockCollection    = "blocks"
	movementCollection = "movements"
	addressCollection  = "addresses"
	lockName           = "block"
	addressSaveWorkers = 8
)

// SyncMetrics is the subset of internal/metrics.Sync the coordinator
// needs, kept as an interface so tests can run without a live registry.
type SyncMetrics interface {
	ObserveHeight(err error, movements int, started time.Time)
	ObserveUnwind(err error)
}

// Coordinator wires every carver component into the engine's single
// sync loop. One Coordinator serves one chain; running a second against
// the same store is prevented by the named lock, not by anything in
// this type.
type Coordinator struct {
	node     chain.NodeClient
	store    chain.Store
	locker   chain.Locker
	cache    *addresscache.Cache
	loader   *addresscache.Loader
	resolver *utxo.Resolver
	decoder  bitcoin.Decoder

	confirmer *confirm.Confirmer
	unwinder  *unwind.Unwinder
	applier   *apply.Applier
	subsidy   classify.Subsidy

	requiredConfirmations int64
	metrics               SyncMetrics
	logger                *zap.Logger
	verboseCron           bool
	verboseCronTx         bool

	debugChaosRate float64
	heightPause    time.Duration
}

// Option configures optional, non-default Coordinator behavior.
type Option func(*Coordinator)

// WithDebugRandomRollback enables the debug-only reorg self-test: after
// each height is synced, with probability rate the coordinator unwinds
// that height and re-syncs it, exercising the Unwinder's crash-recovery
// path against live traffic instead of only in tests. Never enable this
// outside manual testing; it is wired only from a dedicated CLI flag,
// never on by default.
func WithDebugRandomRollback(rate float64) Option {
	return func(c *Coordinator) { c.debugChaosRate = rate }
}

// WithLogger attaches a logger the Coordinator uses to report synced
// heights, built movements, and warnings about unrecognized scripts;
// debug chaos rollbacks are not logged. Without one,
// the Coordinator runs silently.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithVerboseCron raises each synced height's log line from Debug to
// Info, mirroring the teacher's own verbose_cron config knob.
func WithVerboseCron(enabled bool) Option {
	return func(c *Coordinator) { c.verboseCron = enabled }
}

// WithVerboseCronTx raises each built movement's log line from Debug to
// Info, mirroring the teacher's own verbose_cron_tx config knob.
func WithVerboseCronTx(enabled bool) Option {
	return func(c *Coordinator) { c.verboseCronTx = enabled }
}

// WithHeightPause inserts a context-aware pause between synced heights,
// for throttling how hard the sync loop hits the node's RPC endpoint.
func WithHeightPause(d time.Duration) Option {
	return func(c *Coordinator) { c.heightPause = d }
}

func (c *Coordinator) logHeight(height uint64, movements int) {
	if c.logger == nil {
		return
	}
	fields := []zap.Field{zap.Uint64("height", height), zap.Int("movements", movements)}
	if c.verboseCron {
		c.logger.Info("synced height", fields...)
	} else {
		c.logger.Debug("synced height", fields...)
	}
}

func (c *Coordinator) logMovement(mv model.CarverMovement) {
	if c.logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("id", mv.ID),
		zap.String("from", string(mv.From)),
		zap.String("to", string(mv.To)),
	}
	if c.verboseCronTx {
		c.logger.Info("built movement", fields...)
	} else {
		c.logger.Debug("built movement", fields...)
	}
}

// Config bundles the collaborators a Coordinator is built from.
type Config struct {
	Node                  chain.NodeClient
	Store                 chain.Store
	Locker                chain.Locker
	Decoder               bitcoin.Decoder
	Subsidy               classify.Subsidy
	AddressCacheLimit     int64
	UnwindBatchSize       int
	RequiredConfirmations int64
	Metrics               SyncMetrics
}

// New assembles a Coordinator and all of the carver components it owns.
func New(cfg Config, opts ...Option) (*Coordinator, error) {
	cache, err := addresscache.New(cfg.AddressCacheLimit)
	if err != nil {
		return nil, fmt.Errorf("construct address cache: %w", err)
	}
	loader := addresscache.NewLoader(cache, cfg.Store)
	unwinder := unwind.New(cfg.Store, loader, cache, cfg.UnwindBatchSize)
	confirmer := confirm.New(cfg.Node, cfg.Store, unwinder, cfg.RequiredConfirmations)

	c := &Coordinator{
		node:                  cfg.Node,
		store:                 cfg.Store,
		locker:                cfg.Locker,
		cache:                 cache,
		loader:                loader,
		resolver:              utxo.New(cfg.Node),
		decoder:               cfg.Decoder,
		confirmer:             confirmer,
		unwinder:              unwinder,
		applier:               apply.NewApplier(),
		subsidy:               cfg.Subsidy,
		requiredConfirmations: cfg.RequiredConfirmations,
		metrics:               cfg.Metrics,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run executes the full startup sequence: lock, optional admin unwind,
// node tip query, confirmation pass, crash recovery, and the main sync
// loop. forceHeight, when non-nil, overrides the node-reported tip.
// undoHeight, when non-nil, puts the coordinator into admin mode: unwind
// to that height and return without syncing.
func (c *Coordinator) Run(ctx context.Context, undoHeight, forceHeight *uint64) error {
	if err := c.locker.Lock(lockName); err != nil {
		return fmt.Errorf("acquire lock %q: %w", lockName, err)
	}
	defer c.locker.Unlock(lockName)

	if undoHeight != nil {
		return c.unwindWithMetrics(ctx, *undoHeight)
	}

	tip, err := c.nodeTip(ctx, forceHeight)
	if err != nil {
		return err
	}

	if err := c.confirmer.Run(ctx); err != nil {
		return fmt.Errorf("confirm: %w", err)
	}

	if err := c.recoverFromCrash(ctx); err != nil {
		return fmt.Errorf("crash recovery: %w", err)
	}

	dbTip, ok, err := lastStoredHeight(ctx, c.store)
	if err != nil {
		return err
	}
	from := uint64(0)
	if ok {
		from = dbTip + 1
	}

	for height := from; height <= tip; height++ {
		started := time.Now()
		n, err := c.syncHeight(ctx, height)
		if c.metrics != nil {
			c.metrics.ObserveHeight(err, n, started)
		}
		if err != nil {
			return fmt.Errorf("sync height %d: %w", height, err)
		}
		c.logHeight(height, n)

		if c.debugChaosRate > 0 && rand.Float64() < c.debugChaosRate {
			if err := c.unwindWithMetrics(ctx, height); err != nil {
				return fmt.Errorf("debug chaos unwind of height %d: %w", height, err)
			}
			height--
			continue
		}

		if c.heightPause > 0 {
			if err := clock.SleepWithContext(ctx, c.heightPause); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Coordinator) nodeTip(ctx context.Context, forceHeight *uint64) (uint64, error) {
	if forceHeight != nil {
		return *forceHeight, nil
	}
	info, err := c.node.GetInfo(ctx)
	if err != nil {
		return 0, &carverrors.RpcError{Op: "getinfo", Err: err}
	}
	return info.Blocks, nil
}

// recoverFromCrash implements spec §4.7 step 5: if the store holds
// movement or address sequences past the last committed block's
// recorded range, a prior run died mid-write; unwind back to that
// block's height plus one. With no block at all, unwind everything.
func (c *Coordinator) recoverFromCrash(ctx context.Context) error {
	block, ok, err := lastBlock(ctx, c.store)
	if err != nil {
		return err
	}
	if !ok {
		return c.unwindWithMetrics(ctx, 0)
	}

	maxMovementSeq, err := maxSequence(ctx, c.store, movementCollection)
	if err != nil {
		return err
	}
	maxAddressSeq, err := maxSequence(ctx, c.store, addressCollection)
	if err != nil {
		return err
	}

	if maxMovementSeq > block.SequenceEnd || maxAddressSeq > block.SequenceEnd {
		return c.unwindWithMetrics(ctx, block.Height+1)
	}
	return nil
}

func (c *Coordinator) unwindWithMetrics(ctx context.Context, height uint64) error {
	err := c.unwinder.Unwind(ctx, height)
	if c.metrics != nil {
		c.metrics.ObserveUnwind(err)
	}
	return err
}

// syncHeight drives §4.3-§4.4 for one block: fetch, classify each
// transaction, build and apply its movements, then persist movements,
// addresses, and finally the block row — in that crash-critical order.
func (c *Coordinator) syncHeight(ctx context.Context, height uint64) (int, error) {
	hash, err := c.node.GetBlockHash(ctx, height)
	if err != nil {
		return 0, &carverrors.RpcError{Op: fmt.Sprintf("getblockhash(%d)", height), Err: err}
	}
	raw, err := c.node.GetBlock(ctx, hash)
	if err != nil {
		return 0, &carverrors.RpcError{Op: fmt.Sprintf("getblock(%s)", hash), Err: err}
	}

	resolvedPerTx, err := c.resolveBlockInputs(ctx, raw)
	if err != nil {
		return 0, err
	}

	fees, err := feePool(raw.Transactions, resolvedPerTx)
	if err != nil {
		return 0, err
	}

	seq, err := maxSequence(ctx, c.store, movementCollection)
	if err != nil {
		return 0, err
	}
	sequenceStart := seq

	var allMovements []model.CarverMovement
	touched := make(map[string]*model.CarverAddress)

	for i, tx := range raw.Transactions {
		rc, err := classify.Classify(tx, resolvedPerTx[i], height, fees[i], c.subsidy, inputHeightUnknown)
		if err != nil {
			return 0, &carverrors.DecodeError{Context: fmt.Sprintf("classify tx %s", tx.TxID), Err: err}
		}

		stubs, err := movement.BuildRequired(tx, resolvedPerTx[i], c.decoder, rc)
		if err != nil {
			return 0, &carverrors.DecodeError{Context: fmt.Sprintf("build movements for tx %s", tx.TxID), Err: err}
		}
		if len(stubs) == 0 {
			continue
		}

		parsed, err := movement.Parse(ctx, stubs, c.loader, height)
		if err != nil {
			return 0, err
		}

		applied, touchedTx, err := c.applier.Apply(ctx, height, raw.Time, parsed, &seq)
		for _, mv := range applied {
			c.logMovement(mv)
		}
		if err != nil {
			return 0, err
		}
		allMovements = append(allMovements, applied...)
		for id, addr := range touchedTx {
			touched[id] = addr
		}
	}

	if err := c.persistBlock(ctx, raw, height, sequenceStart, seq, allMovements, touched); err != nil {
		return 0, err
	}
	return len(allMovements), nil
}

func (c *Coordinator) resolveBlockInputs(ctx context.Context, raw chain.RawBlock) ([][]movement.ResolvedInput, error) {
	c.resolver.Reset()

	for _, tx := range raw.Transactions {
		c.resolver.Seed(tx.TxID, tx.Vout)
	}

	out := make([][]movement.ResolvedInput, len(raw.Transactions))
	for i, tx := range raw.Transactions {
		resolved := make([]movement.ResolvedInput, 0, len(tx.Vin))
		for idx, in := range tx.Vin {
			if in.IsCoinbase() {
				resolved = append(resolved, movement.ResolvedInput{Index: idx, Input: in})
				continue
			}
			output, err := c.resolver.Resolve(ctx, in)
			if err != nil {
				return nil, &carverrors.RpcError{Op: fmt.Sprintf("resolve input %d of tx %s", idx, tx.TxID), Err: err}
			}
			resolved = append(resolved, movement.ResolvedInput{Index: idx, Input: in, Output: output})
		}
		out[i] = resolved
	}
	return out, nil
}

// feePool computes the implicit fee (inputs minus outputs) each
// ordinary transaction in the block contributes, so the reward
// transaction can be classified with the right CollectedFees before its
// own movements are built. Reward transactions contribute nothing to
// the pool; they are net recipients of it.
func feePool(txs []chain.RawTransaction, resolvedPerTx [][]movement.ResolvedInput) ([]model.Amount, error) {
	fees := make([]model.Amount, len(txs))
	total := model.Zero
	for i, tx := range txs {
		if classify.IsRewardTransaction(tx) {
			continue
		}
		in, out, err := txTotals(tx, resolvedPerTx[i])
		if err != nil {
			return nil, err
		}
		if fee := in.Sub(out); !fee.IsNegative() {
			total = total.Add(fee)
		}
	}
	for i, tx := range txs {
		if classify.IsRewardTransaction(tx) {
			fees[i] = total
		}
	}
	return fees, nil
}

func txTotals(tx chain.RawTransaction, resolved []movement.ResolvedInput) (in, out model.Amount, err error) {
	in, out = model.Zero, model.Zero
	for _, r := range resolved {
		if r.Input.IsCoinbase() {
			continue
		}
		sat, err := bitcoin.BtcToSatoshis(r.Output.Value)
		if err != nil {
			return model.Zero, model.Zero, fmt.Errorf("input total for tx %s: %w", tx.TxID, err)
		}
		amt, err := model.NewAmountFromSatoshis(sat)
		if err != nil {
			return model.Zero, model.Zero, fmt.Errorf("input total for tx %s: %w", tx.TxID, err)
		}
		in = in.Add(amt)
	}
	for _, o := range tx.Vout {
		sat, err := bitcoin.BtcToSatoshis(o.Value)
		if err != nil {
			return model.Zero, model.Zero, fmt.Errorf("output total for tx %s: %w", tx.TxID, err)
		}
		amt, err := model.NewAmountFromSatoshis(sat)
		if err != nil {
			return model.Zero, model.Zero, fmt.Errorf("output total for tx %s: %w", tx.TxID, err)
		}
		out = out.Add(amt)
	}
	return in, out, nil
}

// inputHeightUnknown is the classifier's InputHeight callback. This
// engine does not index which height produced an arbitrary prior
// output, so staked-input coin age is left at zero rather than guessed;
// a chain whose reward weighting depends on coin age needs a real
// block-height index wired in here instead.
func inputHeightUnknown(string) (uint64, bool) { return 0, false }

// persistBlock writes a height's results in the crash-critical order
// spec §4.4 requires: movements, then addresses (in parallel, since
// each touches a distinct label), then the block row last.
func (c *Coordinator) persistBlock(
	ctx context.Context,
	raw chain.RawBlock,
	height uint64,
	sequenceStart, sequenceEnd uint64,
	movements []model.CarverMovement,
	touched map[string]*model.CarverAddress,
) error {
	if len(movements) > 0 {
		docs := make(map[string]any, len(movements))
		for _, mv := range movements {
			docs[mv.ID] = mv
		}
		if err := c.store.InsertMany(ctx, movementCollection, docs); err != nil {
			return &carverrors.StoreError{Op: "insert movements", Err: err}
		}
	}

	addrs := make([]*model.CarverAddress, 0, len(touched))
	var unknownKind int
	for _, addr := range touched {
		addrs = append(addrs, addr)
		if addr.Kind == model.KindUnknown {
			unknownKind++
		}
	}
	if unknownKind > 0 && c.logger != nil {
		c.logger.Warn("block touched addresses with unrecognized scripts",
			zap.Uint64("height", height), zap.Int("count", unknownKind))
	}
	if len(addrs) > 0 {
		if err := workerpool.Process(ctx, addressSaveWorkers, addrs, func(ctx context.Context, addr *model.CarverAddress) error {
			return c.loader.Save(ctx, addr)
		}, nil); err != nil {
			return fmt.Errorf("persist addresses: %w", err)
		}
	}

	bits, _ := strconv.ParseUint(raw.Bits, 16, 32)

	block := model.Block{
		Height:                height,
		Hash:                  raw.Hash,
		PrevHash:              raw.PrevHash,
		MerkleRoot:            raw.MerkleRoot,
		Bits:                  uint32(bits),
		Nonce:                 raw.Nonce,
		Difficulty:            raw.Difficulty,
		Size:                  raw.Size,
		Version:               raw.Version,
		ConfirmationsAtIngest: raw.Confirmations,
		CreatedAt:             raw.Time,
		VinsCount:             vinsCount(raw.Transactions),
		VoutsCount:            voutsCount(raw.Transactions),
		SequenceStart:         sequenceStart,
		SequenceEnd:           sequenceEnd,
	}
	if err := c.store.InsertOne(ctx, blockCollection, block.ID(), block); err != nil {
		return &carverrors.StoreError{Op: "insert block", Err: err}
	}
	return nil
}

func vinsCount(txs []chain.RawTransaction) uint32 {
	var n uint32
	for _, tx := range txs {
		n += uint32(len(tx.Vin))
	}
	return n
}

func voutsCount(txs []chain.RawTransaction) uint32 {
	var n uint32
	for _, tx := range txs {
		n += uint32(len(tx.Vout))
	}
	return n
}

func lastBlock(ctx context.Context, store chain.Store) (model.Block, bool, error) {
	var blocks []model.Block
	err := store.Find(ctx, chain.Query{
		Collection: blockCollection,
		SortField:  "height",
		Descending: true,
		Limit:      1,
	}, &blocks)
	if err != nil {
		return model.Block{}, false, &carverrors.StoreError{Op: "find last block", Err: err}
	}
	if len(blocks) == 0 {
		return model.Block{}, false, nil
	}
	return blocks[0], true, nil
}

func lastStoredHeight(ctx context.Context, store chain.Store) (uint64, bool, error) {
	block, ok, err := lastBlock(ctx, store)
	if err != nil || !ok {
		return 0, ok, err
	}
	return block.Height, true, nil
}

func maxSequence(ctx context.Context, store chain.Store, collection string) (uint64, error) {
	var docs []struct {
		Sequence uint64 `json:"sequence"`
	}
	err := store.Find(ctx, chain.Query{
		Collection: collection,
		SortField:  "sequence",
		Descending: true,
		Limit:      1,
	}, &docs)
	if err != nil {
		return 0, &carverrors.StoreError{Op: "find max sequence in " + collection, Err: err}
	}
	if len(docs) == 0 {
		return 0, nil
	}
	return docs[0].Sequence, nil
}
