package main

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"log"
	"os"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"

	"github.com/a2468834/ton-highload-wallet-contract/highload"
	"github.com/a2468834/ton-highload-wallet-contract/queryid"
)

func main() {
	client := liteclient.NewConnectionPool()

	// connect to mainnet lite servers
	err := client.AddConnectionsFromConfigUrl(context.Background(), "https://ton.org/global.config.json")
	if err != nil {
		log.Fatalln("connection err: ", err.Error())
		return
	}

	api := ton.NewAPIClient(client, ton.ProofCheckPolicyFast).WithRetry()

	// 32 byte ed25519 seed of the wallet key, hex encoded
	seed, err := hex.DecodeString(os.Getenv("WALLET_SEED"))
	if err != nil || len(seed) != ed25519.SeedSize {
		log.Fatalln("WALLET_SEED must be a hex encoded 32 byte seed")
		return
	}

	w, err := highload.FromPrivateKey(api, ed25519.NewKeyFromSeed(seed), highload.Config{})
	if err != nil {
		log.Fatalln("init wallet err:", err.Error())
		return
	}

	log.Println("wallet address:", w.WalletAddress())

	block, err := api.CurrentMasterchainInfo(context.Background())
	if err != nil {
		log.Fatalln("CurrentMasterchainInfo err:", err.Error())
		return
	}

	balance, err := w.GetBalance(context.Background(), block)
	if err != nil {
		log.Fatalln("GetBalance err:", err.Error())
		return
	}

	if balance.Nano().Uint64() < 3000000 {
		log.Println("not enough balance:", balance.String())
		return
	}

	// the query id makes the batch replay safe within the contract's time
	// window, a real sender should take shard:slot pairs from its database
	qid, err := queryid.New(0, 0)
	if err != nil {
		log.Fatalln("query id err:", err.Error())
		return
	}

	processed, err := w.IsProcessed(context.Background(), qid, false)
	if err != nil {
		log.Fatalln("IsProcessed err:", err.Error())
		return
	}
	if processed {
		log.Println("query id", qid, "was already used, pick the next one")
		return
	}

	comment, err := highload.CreateCommentCell("Hello from ton-highload-wallet!")
	if err != nil {
		log.Fatalln("CreateComment err:", err.Error())
		return
	}

	var receivers = map[string]string{
		"EQCD39VS5jcptHL8vMjEXrzGaRcCVYto7HUn4bpAOg8xqB2N": "0.001",
		"EQBx6tZZWa2Tbv6BvgcvegoOQxkRrVaBVwBOoW85nbP37_Go": "0.002",
		"EQBLS8WneoKVGrwq2MO786J6ruQNiv62NXr8Ko_l5Ttondoc": "0.003",
	}

	// far more than 254 messages can go in one batch, they
	// will be folded into a chain of internal transfers
	var messages []*highload.Message
	for addrStr, amtStr := range receivers {
		messages = append(messages, &highload.Message{
			Mode: highload.PayGasSeparately + highload.IgnoreErrors,
			InternalMessage: &tlb.InternalMessage{
				IHRDisabled: true,
				Bounce:      false, // force send, even to uninitialized wallets
				DstAddr:     address.MustParseAddr(addrStr),
				Amount:      tlb.MustFromTON(amtStr),
				Body:        comment,
			},
		})
	}

	log.Println("sending transaction and waiting for confirmation...")

	tx, _, err := w.SendManyWaitTransaction(context.Background(), qid, messages)
	if err != nil {
		log.Fatalln("Send err:", err.Error())
		return
	}

	log.Println("transaction confirmed, hash:", base64.StdEncoding.EncodeToString(tx.Hash))
}
