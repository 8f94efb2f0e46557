// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package host

import (
	"fmt"
	"sort"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	"github.com/luxfi/geth/core/types"

	"github.com/luxfi/xswap/contract"
)

var _ contract.StateDB = (*StateDB)(nil)

type revision struct {
	id           int
	journalIndex int
}

// StateDB is an in-memory, journaled state. Every mutation records an undo
// entry so that RevertToSnapshot can roll a failed call back exactly.
type StateDB struct {
	storage  map[common.Address]map[common.Hash]common.Hash
	balances map[common.Address]*uint256.Int
	accounts map[common.Address]struct{}
	logs     []*types.Log

	txHash      common.Hash
	txIndex     uint
	blockNumber uint64

	journal        []func()
	validRevisions []revision
	nextRevisionID int
}

func NewStateDB() *StateDB {
	return &StateDB{
		storage:  make(map[common.Address]map[common.Hash]common.Hash),
		balances: make(map[common.Address]*uint256.Int),
		accounts: make(map[common.Address]struct{}),
	}
}

// SetTxContext sets the transaction the following logs belong to.
func (s *StateDB) SetTxContext(txHash common.Hash, txIndex uint, blockNumber uint64) {
	s.txHash = txHash
	s.txIndex = txIndex
	s.blockNumber = blockNumber
}

func (s *StateDB) GetState(addr common.Address, key common.Hash) common.Hash {
	if slots, ok := s.storage[addr]; ok {
		return slots[key]
	}
	return common.Hash{}
}

func (s *StateDB) SetState(addr common.Address, key common.Hash, value common.Hash) common.Hash {
	prev := s.GetState(addr, key)
	if prev == value {
		return prev
	}
	s.journal = append(s.journal, func() { s.setStorage(addr, key, prev) })
	s.setStorage(addr, key, value)
	return prev
}

func (s *StateDB) setStorage(addr common.Address, key common.Hash, value common.Hash) {
	slots, ok := s.storage[addr]
	if !ok {
		if value == (common.Hash{}) {
			return
		}
		slots = make(map[common.Hash]common.Hash)
		s.storage[addr] = slots
	}
	if value == (common.Hash{}) {
		delete(slots, key)
		return
	}
	slots[key] = value
}

func (s *StateDB) GetBalance(addr common.Address) *uint256.Int {
	if bal, ok := s.balances[addr]; ok {
		return new(uint256.Int).Set(bal)
	}
	return new(uint256.Int)
}

func (s *StateDB) AddBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) uint256.Int {
	prev := s.GetBalance(addr)
	s.setBalance(addr, new(uint256.Int).Add(prev, amount))
	return *prev
}

// SubBalance panics on underflow; callers check the balance first.
func (s *StateDB) SubBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) uint256.Int {
	prev := s.GetBalance(addr)
	if prev.Lt(amount) {
		panic(fmt.Sprintf("balance underflow for %s: %s < %s", addr, prev, amount))
	}
	s.setBalance(addr, new(uint256.Int).Sub(prev, amount))
	return *prev
}

func (s *StateDB) setBalance(addr common.Address, value *uint256.Int) {
	prev, existed := s.balances[addr]
	s.journal = append(s.journal, func() {
		if existed {
			s.balances[addr] = prev
		} else {
			delete(s.balances, addr)
		}
	})
	s.balances[addr] = value
}

func (s *StateDB) CreateAccount(addr common.Address) {
	if _, ok := s.accounts[addr]; ok {
		return
	}
	s.journal = append(s.journal, func() { delete(s.accounts, addr) })
	s.accounts[addr] = struct{}{}
}

func (s *StateDB) Exist(addr common.Address) bool {
	if _, ok := s.accounts[addr]; ok {
		return true
	}
	if _, ok := s.balances[addr]; ok {
		return true
	}
	_, ok := s.storage[addr]
	return ok
}

func (s *StateDB) AddLog(log *types.Log) {
	log.TxHash = s.txHash
	log.TxIndex = s.txIndex
	log.BlockNumber = s.blockNumber
	log.Index = uint(len(s.logs))
	n := len(s.logs)
	s.journal = append(s.journal, func() { s.logs = s.logs[:n] })
	s.logs = append(s.logs, log)
}

func (s *StateDB) Logs() []*types.Log {
	out := make([]*types.Log, len(s.logs))
	copy(out, s.logs)
	return out
}

// LogCount returns the number of logs recorded so far.
func (s *StateDB) LogCount() int {
	return len(s.logs)
}

func (s *StateDB) TxHash() common.Hash {
	return s.txHash
}

func (s *StateDB) Snapshot() int {
	id := s.nextRevisionID
	s.nextRevisionID++
	s.validRevisions = append(s.validRevisions, revision{id: id, journalIndex: len(s.journal)})
	return id
}

func (s *StateDB) RevertToSnapshot(revid int) {
	idx := sort.Search(len(s.validRevisions), func(i int) bool {
		return s.validRevisions[i].id >= revid
	})
	if idx == len(s.validRevisions) || s.validRevisions[idx].id != revid {
		panic(fmt.Errorf("revision id %v cannot be reverted", revid))
	}
	snapshot := s.validRevisions[idx].journalIndex

	for i := len(s.journal) - 1; i >= snapshot; i-- {
		s.journal[i]()
	}
	s.journal = s.journal[:snapshot]
	s.validRevisions = s.validRevisions[:idx]
}

// Finalise drops the journal at a transaction boundary.
func (s *StateDB) Finalise() {
	s.journal = s.journal[:0]
	s.validRevisions = s.validRevisions[:0]
}
