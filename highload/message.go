package highload

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"math/big"

	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/a2468834/ton-highload-wallet-contract/queryid"
)

// BuildExternalBody packs the signed part of an external message.
// createdAt of 0 means current time, ttl of 0 means the wallet's configured
// timeout. The field order and widths are fixed by the contract.
func (w *Wallet) BuildExternalBody(qid queryid.QueryID, createdAt int64, ttl uint32, mode uint8, payload *cell.Cell) (*cell.Cell, error) {
	if payload == nil {
		return nil, errors.New("payload is nil")
	}

	if ttl == 0 {
		ttl = w.cfg.Timeout
	}
	if ttl >= 1<<22 {
		return nil, fmt.Errorf("too long ttl: %w", ErrRange)
	}
	if ttl <= 5 {
		return nil, fmt.Errorf("too short ttl: %w", ErrRange)
	}

	if createdAt == 0 {
		createdAt = timeNow().UTC().Unix()
	}
	if createdAt < 0 {
		return nil, fmt.Errorf("created at should be positive: %w", ErrRange)
	}

	return cell.BeginCell().
		MustStoreUInt(uint64(w.cfg.SubwalletID), 32).
		MustStoreRef(payload).
		MustStoreUInt(uint64(mode), 8).
		MustStoreUInt(uint64(qid.Packed()), 23).
		MustStoreUInt(uint64(createdAt), 64).
		MustStoreUInt(uint64(ttl), 22).
		EndCell(), nil
}

// SignExternalBody produces the outer signed envelope, signature(512) and
// a reference to the body. Nothing is returned on any failure, there is no
// partially built envelope.
func (w *Wallet) SignExternalBody(ctx context.Context, body *cell.Cell) (*cell.Cell, error) {
	if w.signer == nil {
		return nil, errors.New("wallet has no signer")
	}

	sig, err := w.signer(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("failed to sign external body: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return nil, fmt.Errorf("signer returned %d bytes, expected %d", len(sig), ed25519.SignatureSize)
	}

	return cell.BeginCell().
		MustStoreSlice(sig, 512).
		MustStoreRef(body).EndCell(), nil
}

// BuildExternalMessage batches messages, signs the body and wraps it into an
// external message addressed to the wallet. State init is attached when the
// on-chain account is not initialized yet.
func (w *Wallet) BuildExternalMessage(ctx context.Context, qid queryid.QueryID, messages []*Message) (*tlb.ExternalMessage, error) {
	block, err := w.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get block: %w", err)
	}

	acc, err := w.api.GetAccount(ctx, block, w.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to get account state: %w", err)
	}

	initialized := acc.IsActive && acc.State.Status == tlb.AccountStatusActive
	return w.PrepareExternalMessage(ctx, !initialized, qid, 0, messages)
}

// PrepareExternalMessage builds and signs the external message without
// touching the network, so it can be used for offline signing.
// createdAt of 0 means current time.
func (w *Wallet) PrepareExternalMessage(ctx context.Context, withStateInit bool, qid queryid.QueryID, createdAt int64, messages []*Message) (_ *tlb.ExternalMessage, err error) {
	var stateInit *tlb.StateInit
	if withStateInit {
		stateInit = GetStateInit(w.pubKey, w.cfg.SubwalletID, w.cfg.Timeout)
	}

	var msg *Message
	if len(messages) == 1 && messages[0].InternalMessage.StateInit == nil {
		// a single message can go in as is, ones with state init must be
		// packed because of the external msg validation in contract
		msg = messages[0]
	} else {
		amt := big.NewInt(0)
		actions := make([]Action, 0, len(messages))
		for _, message := range messages {
			amt = amt.Add(amt, message.InternalMessage.Amount.Nano())
			actions = append(actions, message)
		}

		msg, err = w.PackActions(qid, tlb.FromNanoTON(amt), actions)
		if err != nil {
			return nil, fmt.Errorf("failed to pack messages to cell: %w", err)
		}
	}

	msgCell, err := tlb.ToCell(msg.InternalMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to convert msg to cell: %w", err)
	}

	body, err := w.BuildExternalBody(qid, createdAt, 0, msg.Mode, msgCell)
	if err != nil {
		return nil, err
	}

	signed, err := w.SignExternalBody(ctx, body)
	if err != nil {
		return nil, err
	}

	return &tlb.ExternalMessage{
		DstAddr:   w.addr,
		StateInit: stateInit,
		Body:      signed,
	}, nil
}
