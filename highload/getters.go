package highload

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"math/big"

	"github.com/xssnick/tonutils-go/ton"

	"github.com/a2468834/ton-highload-wallet-contract/queryid"
)

func (w *Wallet) runGetMethod(ctx context.Context, method string, params ...interface{}) (*ton.ExecutionResult, error) {
	block, err := w.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get block: %w", err)
	}

	res, err := w.api.RunGetMethod(ctx, block, w.addr, method, params...)
	if err != nil {
		return nil, fmt.Errorf("%s run err: %w", method, err)
	}
	return res, nil
}

// GetPublicKey reads the public key stored in the deployed contract.
func (w *Wallet) GetPublicKey(ctx context.Context) (ed25519.PublicKey, error) {
	res, err := w.runGetMethod(ctx, "get_public_key")
	if err != nil {
		return nil, err
	}

	key, err := res.Int(0)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	return key.FillBytes(make([]byte, ed25519.PublicKeySize)), nil
}

// GetTimeout reads the validity window the contract was deployed with.
func (w *Wallet) GetTimeout(ctx context.Context) (uint32, error) {
	res, err := w.runGetMethod(ctx, "get_timeout")
	if err != nil {
		return 0, err
	}

	timeout, err := res.Int(0)
	if err != nil {
		return 0, fmt.Errorf("failed to parse timeout: %w", err)
	}

	return uint32(timeout.Uint64()), nil
}

// GetLastCleanTime reads the unix time of the contract's last query id cleanup.
func (w *Wallet) GetLastCleanTime(ctx context.Context) (int64, error) {
	res, err := w.runGetMethod(ctx, "get_last_clean_time")
	if err != nil {
		return 0, err
	}

	at, err := res.Int(0)
	if err != nil {
		return 0, fmt.Errorf("failed to parse last clean time: %w", err)
	}

	return at.Int64(), nil
}

// IsProcessed reports whether the contract already saw the given query id in
// its live window. With needClean the contract also runs its cleanup as a
// side effect of the query, the flag is passed through as is.
func (w *Wallet) IsProcessed(ctx context.Context, qid queryid.QueryID, needClean bool) (bool, error) {
	cleanFlag := big.NewInt(0)
	if needClean {
		cleanFlag = big.NewInt(-1)
	}

	res, err := w.runGetMethod(ctx, "processed?", new(big.Int).SetUint64(qid.Wide()), cleanFlag)
	if err != nil {
		return false, err
	}

	processed, err := res.Int(0)
	if err != nil {
		return false, fmt.Errorf("failed to parse processed flag: %w", err)
	}

	return processed.Sign() != 0, nil
}
