package names

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

const registryABI = `[{"inputs":[{"internalType":"string","name":"name","type":"string"}],"name":"resolve","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"}]`

// ContractRegistry reads the name registry contract on the canonical
// chain. The zero address means the name is not registered.
type ContractRegistry struct {
	contract *bind.BoundContract
}

// NewContractRegistry binds the registry at the given address over an
// existing contract caller.
func NewContractRegistry(address common.Address, caller bind.ContractCaller) (*ContractRegistry, error) {
	parsed, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, errors.Wrap(err, "could not parse registry abi")
	}
	return &ContractRegistry{
		contract: bind.NewBoundContract(address, parsed, caller, nil, nil),
	}, nil
}

// NopRegistry is a Registry with no entries. It backs nodes that run
// without a registry contract, where only literal addresses resolve.
type NopRegistry struct{}

// Lookup implements Registry.
func (NopRegistry) Lookup(_ context.Context, _ string) (string, error) {
	return "", nil
}

// Lookup implements Registry.
func (r *ContractRegistry) Lookup(ctx context.Context, name string) (string, error) {
	var out []interface{}
	if err := r.contract.Call(&bind.CallOpts{Context: ctx}, &out, "resolve", name); err != nil {
		return "", errors.Wrap(err, "registry call failed")
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return "", errors.New("unexpected registry return type")
	}
	if addr == (common.Address{}) {
		return "", nil
	}
	return strings.ToLower(addr.Hex()), nil
}
