package highload

import (
	"errors"
	"fmt"

	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/a2468834/ton-highload-wallet-contract/queryid"
)

const (
	// OpInternalTransfer tags the body the wallet sends to itself
	// to unpack a batch of actions.
	OpInternalTransfer = 0xae42e5a4

	// OpSendMessage is the out list action tag, action_send_msg in TLB.
	OpSendMessage = 0x0ec3c86d

	// MaxActionsPerNode is the contract's cap on actions in a single
	// internal transfer body.
	MaxActionsPerNode = 254
)

// one ref slot of each over-length node is taken by the continuation
const maxDirectWithContinuation = MaxActionsPerNode - 1

var ErrTooManyActions = errors.New("too many actions for a single internal transfer, use PackActions")

// Action is one out action of a batch. Kinds other than send message can be
// passed as RawAction and are carried opaquely.
type Action interface {
	toOutAction() (*cell.Builder, error)
}

type Message struct {
	Mode            uint8
	InternalMessage *tlb.InternalMessage
}

func (m *Message) toOutAction() (*cell.Builder, error) {
	outMsg, err := tlb.ToCell(m.InternalMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to convert msg to cell: %w", err)
	}

	/*
		action_send_msg#0ec3c86d mode:(## 8)
		  out_msg:^(MessageRelaxed Any) = OutAction;
	*/
	return cell.BeginCell().
		MustStoreUInt(OpSendMessage, 32).
		MustStoreUInt(uint64(m.Mode), 8).
		MustStoreRef(outMsg), nil
}

// RawAction is an already encoded OutAction record, stored into the out list
// without inspection.
type RawAction struct {
	Body *cell.Cell
}

func (r *RawAction) toOutAction() (*cell.Builder, error) {
	if r.Body == nil {
		return nil, errors.New("raw action has no body")
	}
	return r.Body.ToBuilder(), nil
}

// continuationMode selects how a synthesized transfer forwards value:
// a funded batch keeps fee accounting local to each node, a zero value batch
// carries the whole remaining balance down the chain.
func continuationMode(value tlb.Coins) uint8 {
	if value.Nano().Sign() > 0 {
		return PayGasSeparately
	}
	return CarryAllRemainingBalance
}

// PackActions folds an arbitrary number of actions into a chain of internal
// transfers the wallet sends to itself. When the list is over the per node
// cap, the first 253 actions stay on the level and the remainder is packed
// into a nested transfer appended as the 254th action, carrying the same
// value and query id. The chain is built from the tail so the call stack
// does not grow with the list.
func (w *Wallet) PackActions(qid queryid.QueryID, value tlb.Coins, actions []Action) (*Message, error) {
	starts := []int{0}
	for len(actions)-starts[len(starts)-1] > MaxActionsPerNode {
		starts = append(starts, starts[len(starts)-1]+maxDirectWithContinuation)
	}

	mode := continuationMode(value)

	var cont *Message
	for i := len(starts) - 1; i >= 0; i-- {
		level := actions[starts[i]:]
		if i < len(starts)-1 {
			level = actions[starts[i]:starts[i+1]:starts[i+1]]
		}
		if cont != nil {
			level = append(level, cont)
		}

		body, err := w.BuildInternalTransfer(qid, level)
		if err != nil {
			return nil, err
		}

		cont = &Message{
			Mode: mode,
			InternalMessage: &tlb.InternalMessage{
				IHRDisabled: true,
				Bounce:      false,
				DstAddr:     w.addr,
				Amount:      value,
				Body:        body,
			},
		}
	}

	return cont, nil
}

// BuildInternalTransfer encodes a single internal transfer body. The action
// list must already fit in one node, longer lists belong to PackActions.
// An empty list is valid and yields an empty out list.
func (w *Wallet) BuildInternalTransfer(qid queryid.QueryID, actions []Action) (*cell.Cell, error) {
	if len(actions) > MaxActionsPerNode {
		return nil, ErrTooManyActions
	}

	/*
		out_list_empty$_ = OutList 0;
		out_list$_ {n:#} prev:^(OutList n) action:OutAction
		  = OutList (n + 1);
	*/
	list := cell.BeginCell().EndCell()
	for _, a := range actions {
		action, err := a.toOutAction()
		if err != nil {
			return nil, err
		}

		node := cell.BeginCell().MustStoreRef(list)
		if err = node.StoreBuilder(action); err != nil {
			return nil, fmt.Errorf("failed to store out action: %w", err)
		}
		list = node.EndCell()
	}

	return cell.BeginCell().
		MustStoreUInt(OpInternalTransfer, 32).
		MustStoreUInt(qid.Wide(), 64).
		MustStoreRef(list).
		EndCell(), nil
}
