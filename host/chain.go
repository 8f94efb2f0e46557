// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package host is a single-chain, in-memory execution environment for the
// swap precompiles. Transactions are applied one at a time; each one either
// commits in full or leaves no trace.
package host

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/log"
	"github.com/zeebo/blake3"

	"github.com/luxfi/xswap/contract"
	"github.com/luxfi/xswap/modules"
	"github.com/luxfi/xswap/precompileconfig"
)

const (
	DefaultGasLimit  uint64 = 30_000_000
	DefaultBlockTime uint64 = 2
	MaxCallDepth            = 64
)

var (
	ErrUnknownModule       = errors.New("unknown precompile module")
	ErrModuleDisabled      = errors.New("precompile module is disabled")
	ErrNoContract          = errors.New("no contract at address")
	ErrInsufficientBalance = errors.New("insufficient balance for transfer")
	ErrCallDepth           = errors.New("max call depth exceeded")
	ErrAlreadyDeployed     = errors.New("contract already deployed")
)

var _ precompileconfig.ChainConfig = (*Chain)(nil)

// Receipt is the outcome of one executed transaction.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	From        common.Address
	To          common.Address
	Status      uint64
	GasUsed     uint64
	Logs        []*types.Log
	Return      []byte
	Err         error
}

// Succeeded reports whether the transaction committed.
func (r *Receipt) Succeeded() bool {
	return r.Status == types.ReceiptStatusSuccessful
}

// Chain executes calls against a set of installed precompiles.
type Chain struct {
	mu sync.Mutex

	chainID   *big.Int
	gasLimit  uint64
	blockTime uint64
	log       log.Logger

	state     *StateDB
	contracts map[common.Address]contract.StatefulPrecompiledContract
	configs   map[string]precompileconfig.Config

	number    uint64
	timestamp uint64
	receipts  []*Receipt
}

type Option func(*Chain)

func WithLogger(logger log.Logger) Option {
	return func(c *Chain) { c.log = logger }
}

func WithGasLimit(gasLimit uint64) Option {
	return func(c *Chain) { c.gasLimit = gasLimit }
}

func WithGenesisTime(timestamp uint64) Option {
	return func(c *Chain) { c.timestamp = timestamp }
}

func New(chainID uint64, opts ...Option) *Chain {
	c := &Chain{
		chainID:   new(big.Int).SetUint64(chainID),
		gasLimit:  DefaultGasLimit,
		blockTime: DefaultBlockTime,
		log:       log.NewNoOpLogger(),
		state:     NewStateDB(),
		contracts: make(map[common.Address]contract.StatefulPrecompiledContract),
		configs:   make(map[string]precompileconfig.Config),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Chain) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// StateDB exposes the chain state for inspection. It must not be mutated
// while a transaction is executing.
func (c *Chain) StateDB() *StateDB {
	return c.state
}

func (c *Chain) BlockNumber() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.number
}

func (c *Chain) Time() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timestamp
}

// AdvanceTime moves the clock forward without producing a block.
func (c *Chain) AdvanceTime(seconds uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timestamp += seconds
}

// Activate configures a registered module and installs it at its address.
func (c *Chain) Activate(cfg precompileconfig.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	module, ok := modules.GetPrecompileModule(cfg.Key())
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModule, cfg.Key())
	}
	if cfg.IsDisabled() {
		return fmt.Errorf("%w: %s", ErrModuleDisabled, cfg.Key())
	}
	if ts := cfg.Timestamp(); ts != nil && *ts > c.timestamp {
		return fmt.Errorf("%w: %s activates at %d", ErrModuleDisabled, cfg.Key(), *ts)
	}
	if err := cfg.Verify(c); err != nil {
		return fmt.Errorf("invalid %s config: %w", cfg.Key(), err)
	}

	snap := c.state.Snapshot()
	c.state.CreateAccount(module.Address)
	if module.Configurator != nil {
		if err := module.Configurator.Configure(c, cfg, c.state, c.blockContext()); err != nil {
			c.state.RevertToSnapshot(snap)
			return fmt.Errorf("configure %s: %w", cfg.Key(), err)
		}
	}
	c.state.Finalise()

	c.contracts[module.Address] = module.Contract
	c.configs[cfg.Key()] = cfg
	c.log.Info("activated precompile",
		log.String("key", cfg.Key()),
		log.Stringer("address", module.Address),
	)
	return nil
}

// Config returns the active config for [key].
func (c *Chain) Config(key string) (precompileconfig.Config, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cfg, ok := c.configs[key]
	return cfg, ok
}

// Deploy installs a non-singleton contract, such as a token, at [addr].
func (c *Chain) Deploy(addr common.Address, impl contract.StatefulPrecompiledContract) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.contracts[addr]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyDeployed, addr)
	}
	c.state.CreateAccount(addr)
	c.state.Finalise()
	c.contracts[addr] = impl
	return nil
}

// ApplyGenesis runs [fn] against the state outside of any transaction. An
// error discards everything [fn] wrote.
func (c *Chain) ApplyGenesis(fn func(state contract.StateDB) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.state.Snapshot()
	if err := fn(c.state); err != nil {
		c.state.RevertToSnapshot(snap)
		c.state.Finalise()
		return err
	}
	c.state.Finalise()
	return nil
}

// Fund credits native currency to [addr] outside of any transaction.
func (c *Chain) Fund(addr common.Address, amount *uint256.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.AddBalance(addr, amount, tracing.BalanceIncreaseGenesisBalance)
	c.state.Finalise()
}

func (c *Chain) Balance(addr common.Address) *uint256.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.GetBalance(addr)
}

// Execute applies a transaction in a new block. A failed transaction is
// reverted and its receipt is returned together with the error.
func (c *Chain) Execute(from common.Address, to common.Address, input []byte, value *uint256.Int) (*Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.number++
	c.timestamp += c.blockTime
	txHash := c.txHash(from, to, input)
	c.state.SetTxContext(txHash, 0, c.number)
	firstLog := c.state.LogCount()

	snap := c.state.Snapshot()
	ret, leftOver, err := c.call(0, from, to, input, c.gasLimit, value, false)

	receipt := &Receipt{
		TxHash:      txHash,
		BlockNumber: c.number,
		From:        from,
		To:          to,
		GasUsed:     c.gasLimit - leftOver,
		Return:      ret,
	}
	if err != nil {
		c.state.RevertToSnapshot(snap)
		receipt.Status = types.ReceiptStatusFailed
		receipt.Err = err
		c.log.Debug("transaction reverted",
			log.Stringer("tx", txHash),
			log.Stringer("to", to),
			log.Err(err),
		)
	} else {
		receipt.Status = types.ReceiptStatusSuccessful
		receipt.Logs = c.state.Logs()[firstLog:]
		c.log.Debug("transaction executed",
			log.Stringer("tx", txHash),
			log.Stringer("to", to),
			log.Int("logs", len(receipt.Logs)),
		)
	}
	c.state.Finalise()
	c.receipts = append(c.receipts, receipt)
	return receipt, err
}

// View runs a read-only call and discards any effect.
func (c *Chain) View(from common.Address, to common.Address, input []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.state.Snapshot()
	ret, _, err := c.call(0, from, to, input, c.gasLimit, nil, true)
	c.state.RevertToSnapshot(snap)
	c.state.Finalise()
	return ret, err
}

// Receipts returns the receipts from index [from] onwards and the index to
// resume from.
func (c *Chain) Receipts(from int) ([]*Receipt, int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if from >= len(c.receipts) {
		return nil, len(c.receipts)
	}
	out := make([]*Receipt, len(c.receipts)-from)
	copy(out, c.receipts[from:])
	return out, len(c.receipts)
}

// LogsSince returns the logs of committed transactions from receipt index
// [cursor] onwards and the next cursor.
func (c *Chain) LogsSince(cursor int) ([]*types.Log, int) {
	receipts, next := c.Receipts(cursor)
	var logs []*types.Log
	for _, r := range receipts {
		if r.Succeeded() {
			logs = append(logs, r.Logs...)
		}
	}
	return logs, next
}

func (c *Chain) call(
	depth int,
	caller common.Address,
	addr common.Address,
	input []byte,
	gas uint64,
	value *uint256.Int,
	readOnly bool,
) ([]byte, uint64, error) {
	if depth > MaxCallDepth {
		return nil, gas, ErrCallDepth
	}

	snap := c.state.Snapshot()
	if value != nil && !value.IsZero() {
		if readOnly {
			return nil, gas, contract.ErrWriteProtection
		}
		if c.state.GetBalance(caller).Lt(value) {
			return nil, gas, fmt.Errorf("%w: %s", ErrInsufficientBalance, caller)
		}
		c.state.SubBalance(caller, value, tracing.BalanceChangeTransfer)
		c.state.AddBalance(addr, value, tracing.BalanceChangeTransfer)
	}

	impl, ok := c.contracts[addr]
	if !ok {
		if len(input) == 0 {
			return nil, gas, nil
		}
		c.state.RevertToSnapshot(snap)
		return nil, gas, fmt.Errorf("%w: %s", ErrNoContract, addr)
	}

	f := &frame{chain: c, depth: depth, value: value, readOnly: readOnly}
	ret, leftOver, err := impl.Run(f, caller, addr, input, gas, readOnly)
	if err != nil {
		c.state.RevertToSnapshot(snap)
		return nil, leftOver, err
	}
	return ret, leftOver, nil
}

func (c *Chain) txHash(from common.Address, to common.Address, input []byte) common.Hash {
	h := blake3.New()
	h.Write(c.chainID.Bytes())
	h.Write(contract.Uint64Bytes(c.number))
	h.Write(from.Bytes())
	h.Write(to.Bytes())
	h.Write(input)
	var out common.Hash
	copy(out[:], h.Sum(nil))
	return out
}

func (c *Chain) blockContext() *blockContext {
	return &blockContext{number: c.number, timestamp: c.timestamp}
}

type blockContext struct {
	number    uint64
	timestamp uint64
}

func (b *blockContext) Number() *big.Int {
	return new(big.Int).SetUint64(b.number)
}

func (b *blockContext) Timestamp() uint64 {
	return b.timestamp
}

// frame is the AccessibleState of a single call.
type frame struct {
	chain    *Chain
	depth    int
	value    *uint256.Int
	readOnly bool
}

var _ contract.AccessibleState = (*frame)(nil)

func (f *frame) GetStateDB() contract.StateDB {
	return f.chain.state
}

func (f *frame) GetBlockContext() contract.BlockContext {
	return f.chain.blockContext()
}

func (f *frame) GetChainID() *big.Int {
	return f.chain.ChainID()
}

func (f *frame) GetCallValue() *uint256.Int {
	if f.value == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(f.value)
}

func (f *frame) Call(
	caller common.Address,
	addr common.Address,
	input []byte,
	gas uint64,
	value *uint256.Int,
	readOnly bool,
) ([]byte, uint64, error) {
	return f.chain.call(f.depth+1, caller, addr, input, gas, value, readOnly || f.readOnly)
}
