package rpc

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Backend adapts the pool to bind.ContractBackend. Every call resolves the
// active client through the pool, so bound contracts follow failovers and
// surface ErrUnavailable per call instead of holding a stale connection.
type Backend struct {
	pool *Pool
}

// NewBackend wraps the pool for contract binding.
func NewBackend(pool *Pool) *Backend {
	return &Backend{pool: pool}
}

func (b *Backend) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	client, err := b.pool.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.CodeAt(ctx, contract, blockNumber)
}

func (b *Backend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	client, err := b.pool.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.CallContract(ctx, call, blockNumber)
}

func (b *Backend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	client, err := b.pool.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.HeaderByNumber(ctx, number)
}

func (b *Backend) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	client, err := b.pool.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.PendingCodeAt(ctx, account)
}

func (b *Backend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	client, err := b.pool.Client(ctx)
	if err != nil {
		return 0, err
	}
	return client.PendingNonceAt(ctx, account)
}

func (b *Backend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	client, err := b.pool.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.SuggestGasPrice(ctx)
}

func (b *Backend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	client, err := b.pool.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.SuggestGasTipCap(ctx)
}

func (b *Backend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	client, err := b.pool.Client(ctx)
	if err != nil {
		return 0, err
	}
	return client.EstimateGas(ctx, call)
}

func (b *Backend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	client, err := b.pool.Client(ctx)
	if err != nil {
		return err
	}
	return client.SendTransaction(ctx, tx)
}

func (b *Backend) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	client, err := b.pool.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.FilterLogs(ctx, query)
}

func (b *Backend) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	client, err := b.pool.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.SubscribeFilterLogs(ctx, query, ch)
}
