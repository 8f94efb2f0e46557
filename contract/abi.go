// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package contract

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
)

// ExtendedABI wraps the standard ABI with the helpers precompiles need to
// decode calls, encode results and emit events.
type ExtendedABI struct {
	abi.ABI
}

// ParseABI parses the raw ABI JSON and returns an ExtendedABI
func ParseABI(rawABI string) ExtendedABI {
	parsed, err := abi.JSON(strings.NewReader(rawABI))
	if err != nil {
		panic(fmt.Sprintf("failed to parse ABI: %v", err))
	}
	return ExtendedABI{ABI: parsed}
}

// Dispatch resolves the method named by the selector in [input] and unpacks
// its arguments.
func (e ExtendedABI) Dispatch(input []byte) (*abi.Method, []interface{}, error) {
	if len(input) < SelectorLen {
		return nil, nil, fmt.Errorf("%w: missing selector", ErrInvalidInput)
	}
	method, err := e.MethodById(input[:SelectorLen])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %x", ErrInvalidInput, input[:SelectorLen])
	}
	args, err := e.UnpackInput(method.Name, input[SelectorLen:], true)
	if err != nil {
		return nil, nil, err
	}
	return method, args, nil
}

// PackOutput packs the given args as the output of given method name to conform the ABI.
// This does not include method ID.
func (e ExtendedABI) PackOutput(name string, args ...interface{}) ([]byte, error) {
	method, exist := e.Methods[name]
	if !exist {
		return nil, fmt.Errorf("method '%s' not found", name)
	}
	return method.Outputs.Pack(args...)
}

// UnpackInput decodes the arguments of method [name] from calldata without
// the selector. In strict mode calldata must be whole 32-byte words.
func (e ExtendedABI) UnpackInput(name string, data []byte, strict bool) ([]interface{}, error) {
	method, ok := e.Methods[name]
	if !ok {
		return nil, fmt.Errorf("%w: no method %s", ErrInvalidInput, name)
	}
	if strict && len(data)%32 != 0 {
		return nil, fmt.Errorf("%w: %s: %d bytes of arguments", ErrInvalidInput, name, len(data))
	}
	args, err := method.Inputs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, name, err)
	}
	return args, nil
}

// PackEvent packs the given event name and arguments to conform the ABI.
// Returns the topics for the event and the packed data of non-indexed args.
func (e ExtendedABI) PackEvent(name string, args ...interface{}) ([]common.Hash, []byte, error) {
	event, exist := e.Events[name]
	if !exist {
		return nil, nil, fmt.Errorf("event '%s' not found", name)
	}
	if len(args) != len(event.Inputs) {
		return nil, nil, fmt.Errorf("event '%s' unexpected number of inputs %d", name, len(args))
	}

	var (
		nonIndexedInputs = make([]interface{}, 0)
		indexedInputs    = make([]interface{}, 0)
		nonIndexedArgs   abi.Arguments
	)

	for i, arg := range event.Inputs {
		if arg.Indexed {
			indexedInputs = append(indexedInputs, args[i])
		} else {
			nonIndexedArgs = append(nonIndexedArgs, arg)
			nonIndexedInputs = append(nonIndexedInputs, args[i])
		}
	}

	packedArguments, err := nonIndexedArgs.Pack(nonIndexedInputs...)
	if err != nil {
		return nil, nil, err
	}

	topics := make([]common.Hash, 0, len(indexedInputs)+1)
	if !event.Anonymous {
		topics = append(topics, event.ID)
	}
	for _, input := range indexedInputs {
		topic, err := packTopic(input)
		if err != nil {
			return nil, nil, err
		}
		topics = append(topics, topic)
	}

	return topics, packedArguments, nil
}

// EmitEvent packs [name] and appends it to the state log under [addr].
func (e ExtendedABI) EmitEvent(state StateDB, addr common.Address, blockNumber uint64, name string, args ...interface{}) error {
	topics, data, err := e.PackEvent(name, args...)
	if err != nil {
		return err
	}
	state.AddLog(&types.Log{
		Address:     addr,
		Topics:      topics,
		Data:        data,
		BlockNumber: blockNumber,
	})
	return nil
}

// UnpackEvent decodes the non-indexed fields of [log] as event [name].
func (e ExtendedABI) UnpackEvent(name string, log *types.Log) ([]interface{}, error) {
	event, exist := e.Events[name]
	if !exist {
		return nil, fmt.Errorf("event '%s' not found", name)
	}
	if len(log.Topics) == 0 || log.Topics[0] != event.ID {
		return nil, fmt.Errorf("log is not a '%s' event", name)
	}
	return event.Inputs.NonIndexed().Unpack(log.Data)
}

// CallMethod packs a call to [name], runs it through [state] and unpacks
// the result.
func (e ExtendedABI) CallMethod(
	state AccessibleState,
	caller common.Address,
	addr common.Address,
	gas uint64,
	value *uint256.Int,
	readOnly bool,
	name string,
	args ...interface{},
) ([]interface{}, uint64, error) {
	input, err := e.Pack(name, args...)
	if err != nil {
		return nil, gas, err
	}
	ret, remainingGas, err := state.Call(caller, addr, input, gas, value, readOnly)
	if err != nil {
		return nil, remainingGas, err
	}
	out, err := e.Unpack(name, ret)
	if err != nil {
		return nil, remainingGas, fmt.Errorf("%s: bad return data: %w", name, err)
	}
	return out, remainingGas, nil
}

// packTopic packs a single indexed argument into a topic hash
func packTopic(value interface{}) (common.Hash, error) {
	switch v := value.(type) {
	case common.Address:
		return common.BytesToHash(v.Bytes()), nil
	case common.Hash:
		return v, nil
	case [32]byte:
		return common.Hash(v), nil
	case *big.Int:
		return common.BigToHash(v), nil
	case uint32:
		return common.BigToHash(new(big.Int).SetUint64(uint64(v))), nil
	case uint64:
		return common.BigToHash(new(big.Int).SetUint64(v)), nil
	case []byte:
		return common.BytesToHash(crypto.Keccak256(v)), nil
	case string:
		return common.BytesToHash(crypto.Keccak256([]byte(v))), nil
	default:
		return common.Hash{}, fmt.Errorf("unsupported indexed type: %T", value)
	}
}
