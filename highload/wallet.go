// Package highload builds and sends messages of the highload wallet v3
// contract: a wallet made to emit very large numbers of outbound transfers,
// with replay protection based on a time windowed bitmap of seen query ids
// instead of a seqno. See the queryid package for the id semantics.
package highload

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/a2468834/ton-highload-wallet-contract/queryid"
)

const (
	// DefaultSubwallet is the subwallet id the contract is usually deployed with.
	DefaultSubwallet uint32 = 0x10AD

	// DefaultTimeout is the validity window of an external message in seconds,
	// it also drives the contract's query id cleanup.
	DefaultTimeout uint32 = 3600
)

const (
	CarryAllRemainingBalance       = 128
	CarryAllRemainingIncomingValue = 64
	DestroyAccountIfZero           = 32
	IgnoreErrors                   = 2
	PayGasSeparately               = 1
)

// defined this way to mock in tests
var timeNow = time.Now

var ErrRange = errors.New("field value is out of range")

type TonAPI interface {
	CurrentMasterchainInfo(ctx context.Context) (*ton.BlockIDExt, error)
	GetAccount(ctx context.Context, block *ton.BlockIDExt, addr *address.Address) (*tlb.Account, error)
	SendExternalMessage(ctx context.Context, msg *tlb.ExternalMessage) error
	SendExternalMessageWaitTransaction(ctx context.Context, ext *tlb.ExternalMessage) (*tlb.Transaction, *ton.BlockIDExt, []byte, error)
	RunGetMethod(ctx context.Context, blockInfo *ton.BlockIDExt, addr *address.Address, method string, params ...interface{}) (*ton.ExecutionResult, error)
}

// Config identifies one wallet instance. It is fixed at construction and
// used to derive the deployment address. Zero SubwalletID and Timeout are
// replaced with the defaults, so distinct instances can coexist with their
// own values and no package level state.
type Config struct {
	Workchain   int32
	SubwalletID uint32
	Timeout     uint32
}

type Signer func(context.Context, *cell.Cell) ([]byte, error)

type Wallet struct {
	api    TonAPI
	key    ed25519.PrivateKey
	pubKey ed25519.PublicKey
	addr   *address.Address
	cfg    Config

	signer Signer
}

type walletOption func(*Wallet)

func FromPrivateKey(api TonAPI, key ed25519.PrivateKey, cfg Config) (*Wallet, error) {
	return newWallet(
		api,
		key.Public().(ed25519.PublicKey),
		cfg,
		withPrivateKey(key),
		withSigner(func(ctx context.Context, c *cell.Cell) ([]byte, error) {
			if c == nil {
				return nil, fmt.Errorf("cannot sign: cell is nil")
			}
			return c.Sign(key), nil
		}))
}

// FromSigner builds a wallet whose secret key is held externally,
// for example in an HSM. The signer gets the cell to sign and must return
// a 64 byte ed25519 signature of its hash.
func FromSigner(api TonAPI, publicKey ed25519.PublicKey, cfg Config, signer Signer) (*Wallet, error) {
	return newWallet(api, publicKey, cfg, withSigner(signer))
}

func newWallet(api TonAPI, publicKey ed25519.PublicKey, cfg Config, options ...walletOption) (*Wallet, error) {
	if cfg.SubwalletID == 0 {
		cfg.SubwalletID = DefaultSubwallet
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Timeout >= 1<<22 {
		return nil, fmt.Errorf("timeout %d does not fit in 22 bits: %w", cfg.Timeout, ErrRange)
	}

	addr, err := AddressFromPubKey(publicKey, cfg)
	if err != nil {
		return nil, err
	}

	w := &Wallet{
		api:    api,
		addr:   addr,
		cfg:    cfg,
		pubKey: publicKey,
	}

	for _, opt := range options {
		opt(w)
	}

	return w, nil
}

func withPrivateKey(privateKey ed25519.PrivateKey) walletOption {
	return func(w *Wallet) {
		w.key = privateKey
	}
}

func withSigner(signer Signer) walletOption {
	return func(w *Wallet) {
		w.signer = signer
	}
}

// Address - returns old (bounce) version of wallet address
func (w *Wallet) Address() *address.Address {
	return w.addr
}

// WalletAddress - returns new standard non bounce address
func (w *Wallet) WalletAddress() *address.Address {
	return w.addr.Bounce(false)
}

func (w *Wallet) PrivateKey() ed25519.PrivateKey {
	return w.key
}

func (w *Wallet) SubwalletID() uint32 {
	return w.cfg.SubwalletID
}

func (w *Wallet) Timeout() uint32 {
	return w.cfg.Timeout
}

func (w *Wallet) GetBalance(ctx context.Context, block *ton.BlockIDExt) (tlb.Coins, error) {
	acc, err := w.api.GetAccount(ctx, block, w.addr)
	if err != nil {
		return tlb.Coins{}, fmt.Errorf("failed to get account state: %w", err)
	}

	if !acc.IsActive {
		return tlb.Coins{}, nil
	}

	return acc.State.Balance, nil
}

func (w *Wallet) BuildTransfer(to *address.Address, amount tlb.Coins, bounce bool, comment string) (_ *Message, err error) {
	var body *cell.Cell
	if comment != "" {
		body, err = CreateCommentCell(comment)
		if err != nil {
			return nil, err
		}
	}

	return &Message{
		Mode: PayGasSeparately + IgnoreErrors,
		InternalMessage: &tlb.InternalMessage{
			IHRDisabled: true,
			Bounce:      bounce,
			DstAddr:     to,
			Amount:      amount,
			Body:        body,
		},
	}, nil
}

func (w *Wallet) Send(ctx context.Context, qid queryid.QueryID, message *Message, waitConfirmation ...bool) error {
	return w.SendMany(ctx, qid, []*Message{message}, waitConfirmation...)
}

func (w *Wallet) SendMany(ctx context.Context, qid queryid.QueryID, messages []*Message, waitConfirmation ...bool) error {
	_, _, _, err := w.sendMany(ctx, qid, messages, waitConfirmation...)
	return err
}

// SendManyGetInMsgHash returns hash of external incoming message payload.
func (w *Wallet) SendManyGetInMsgHash(ctx context.Context, qid queryid.QueryID, messages []*Message, waitConfirmation ...bool) ([]byte, error) {
	_, _, inMsgHash, err := w.sendMany(ctx, qid, messages, waitConfirmation...)
	return inMsgHash, err
}

// SendManyWaitTransaction always waits for tx block confirmation and returns found tx.
func (w *Wallet) SendManyWaitTransaction(ctx context.Context, qid queryid.QueryID, messages []*Message) (*tlb.Transaction, *ton.BlockIDExt, error) {
	tx, block, _, err := w.sendMany(ctx, qid, messages, true)
	return tx, block, err
}

func (w *Wallet) sendMany(ctx context.Context, qid queryid.QueryID, messages []*Message, waitConfirmation ...bool) (tx *tlb.Transaction, block *ton.BlockIDExt, inMsgHash []byte, err error) {
	ext, err := w.BuildExternalMessage(ctx, qid, messages)
	if err != nil {
		return nil, nil, nil, err
	}

	if len(waitConfirmation) > 0 && waitConfirmation[0] {
		return w.api.SendExternalMessageWaitTransaction(ctx, ext)
	}

	if err = w.SendExternal(ctx, ext); err != nil {
		return nil, nil, nil, err
	}
	return nil, nil, ext.Body.Hash(), nil
}

// SendExternal submits a pre-built signed envelope. The error of the provider
// is surfaced as is, retry policy is up to the caller because only the caller
// knows whether the query id is still safe to reuse.
func (w *Wallet) SendExternal(ctx context.Context, ext *tlb.ExternalMessage) error {
	if err := w.api.SendExternalMessage(ctx, ext); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Deploy initializes the contract: an external message with the state init
// attached and an empty batch as payload, signed the same way as any send.
// The wallet address must hold enough balance to pay for the deploy.
func (w *Wallet) Deploy(ctx context.Context, qid queryid.QueryID) error {
	ext, err := w.PrepareExternalMessage(ctx, true, qid, 0, nil)
	if err != nil {
		return err
	}
	return w.SendExternal(ctx, ext)
}

func CreateCommentCell(text string) (*cell.Cell, error) {
	// comment ident
	root := cell.BeginCell().MustStoreUInt(0, 32)

	if err := root.StoreStringSnake(text); err != nil {
		return nil, fmt.Errorf("failed to build comment: %w", err)
	}

	return root.EndCell(), nil
}

func SimpleMessage(to *address.Address, amount tlb.Coins, payload *cell.Cell) *Message {
	return &Message{
		Mode: PayGasSeparately + IgnoreErrors,
		InternalMessage: &tlb.InternalMessage{
			IHRDisabled: true,
			Bounce:      to.IsBounceable(),
			DstAddr:     to,
			Amount:      amount,
			Body:        payload,
		},
	}
}
