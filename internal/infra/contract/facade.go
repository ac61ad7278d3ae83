// Package contract binds address/ABI/provider triples into call surfaces
// that degrade instead of crashing.
//
// Missing or malformed contract configuration must never take the process
// down: Bind returns a handle tagged Live or Degraded(reason), and every
// operation on a degraded handle fails immediately with a typed error at the
// specific call site. Binding is terminal; changing the outcome requires a
// fresh Bind.
package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/opengrants/walletd/internal/core/wallet"
)

// BindingState tags a handle as usable or degraded.
type BindingState string

const (
	StateLive     BindingState = "live"
	StateDegraded BindingState = "degraded"
)

// ErrContractNotConfigured is the reason behind every degraded binding that
// stems from missing address, bad ABI or missing provider.
var ErrContractNotConfigured = errors.New("contract not configured")

// Handle is an immutable contract binding. A degraded handle is still a
// valid value; only its operations fail.
type Handle struct {
	name    string
	address common.Address
	state   BindingState
	reason  error

	parsedABI abi.ABI
	contract  *bind.BoundContract
	backend   bind.ContractBackend
}

// Bind parses the ABI and binds it to the address over the given backend.
// An empty or invalid address, an unparsable ABI or a nil backend yield a
// Degraded handle; Bind never panics and never returns nil.
func Bind(name, address, abiJSON string, backend bind.ContractBackend) *Handle {
	if strings.TrimSpace(address) == "" {
		return degraded(name, fmt.Errorf("%w: %s: no address configured", ErrContractNotConfigured, name))
	}
	if !common.IsHexAddress(address) {
		return degraded(name, fmt.Errorf("%w: %s: malformed address %q", ErrContractNotConfigured, name, address))
	}

	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return degraded(name, fmt.Errorf("%w: %s: abi parse: %v", ErrContractNotConfigured, name, err))
	}

	if backend == nil {
		return degraded(name, fmt.Errorf("%w: %s: no provider", ErrContractNotConfigured, name))
	}

	addr := common.HexToAddress(address)
	return &Handle{
		name:      name,
		address:   addr,
		state:     StateLive,
		parsedABI: parsed,
		contract:  bind.NewBoundContract(addr, parsed, backend, backend, nil),
		backend:   backend,
	}
}

func degraded(name string, reason error) *Handle {
	return &Handle{name: name, state: StateDegraded, reason: reason}
}

// Name returns the binding name.
func (h *Handle) Name() string { return h.name }

// Address returns the bound address (zero when degraded).
func (h *Handle) Address() common.Address { return h.address }

// State returns Live or Degraded.
func (h *Handle) State() BindingState { return h.state }

// Err returns the degradation reason, nil for a live handle.
func (h *Handle) Err() error { return h.reason }

// Call invokes a read-only contract method. On a degraded handle it fails
// immediately with the binding's reason.
func (h *Handle) Call(ctx context.Context, result *[]interface{}, method string, args ...interface{}) error {
	if h.state == StateDegraded {
		return h.reason
	}
	return h.contract.Call(&bind.CallOpts{Context: ctx}, result, method, args...)
}

// Transact submits a state-changing method using caller-supplied options.
func (h *Handle) Transact(opts *bind.TransactOpts, method string, args ...interface{}) (*types.Transaction, error) {
	if h.state == StateDegraded {
		return nil, h.reason
	}
	return h.contract.Transact(opts, method, args...)
}

// SignedHandle couples a binding with a signer for state-changing calls.
type SignedHandle struct {
	*Handle
	signer  *wallet.Signer
	chainID *big.Int
}

// ConnectSigner attaches a signer to a handle. A nil signer (the admin key
// failed to load) yields a degraded handle whose reason is distinguishable
// from a missing contract configuration.
func ConnectSigner(h *Handle, signer *wallet.Signer, chainID *big.Int) *SignedHandle {
	if h.state == StateDegraded {
		return &SignedHandle{Handle: h}
	}
	if signer == nil {
		return &SignedHandle{
			Handle: degraded(h.name, fmt.Errorf("%w: %s", wallet.ErrAdminKeyUnavailable, h.name)),
		}
	}
	return &SignedHandle{Handle: h, signer: signer, chainID: chainID}
}

// Transact signs and submits a state-changing method.
func (s *SignedHandle) Transact(ctx context.Context, method string, args ...interface{}) (*types.Transaction, error) {
	if s.state == StateDegraded {
		return nil, s.reason
	}

	opts, err := s.signer.TransactOpts(s.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to build transact opts: %w", err)
	}
	opts.Context = ctx

	return s.contract.Transact(opts, method, args...)
}

// Signer returns the attached signer, nil when degraded.
func (s *SignedHandle) Signer() *wallet.Signer { return s.signer }
