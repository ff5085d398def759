// sign-instruction is a client-side helper: it signs an instruction
// envelope with a local key and prints the JSON ready for POSTing to
// /api/v1/instructions.
//
// Usage:
//
//	sign-instruction -key <hex-privkey> -discriminator 8 \
//	    -payload '{"market_id":"00..01","outcome_yes":true,"shares":1000000000,"max_cost":600000000}' \
//	    -nonce 3
//
// With no -key, a fresh key pair is generated and printed.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/predictr-labs/predictr/pkg/app/core/transaction"
	"github.com/predictr-labs/predictr/pkg/crypto"
)

func main() {
	keyHex := flag.String("key", "", "hex-encoded secp256k1 private key (empty = generate)")
	discriminator := flag.Uint("discriminator", 0, "instruction discriminator (0-17)")
	payload := flag.String("payload", "{}", "instruction payload JSON")
	nonce := flag.Uint64("nonce", 1, "strictly-increasing signer nonce")
	flag.Parse()

	var signer *crypto.Signer
	var err error
	if *keyHex == "" {
		signer, err = crypto.GenerateKey()
		if err != nil {
			log.Fatalf("keygen: %v", err)
		}
		fmt.Fprintf(os.Stderr, "generated key: %s\naddress: %s\n",
			signer.PrivateKeyHex(), signer.Address().Hex())
	} else {
		signer, err = crypto.FromPrivateKeyHex(*keyHex)
		if err != nil {
			log.Fatalf("key parse: %v", err)
		}
	}

	if !json.Valid([]byte(*payload)) {
		log.Fatalf("payload is not valid JSON")
	}

	si := &transaction.SignedInstruction{
		Discriminator: transaction.Discriminator(*discriminator),
		Payload:       json.RawMessage(*payload),
		Nonce:         *nonce,
	}
	if err := transaction.Sign(si, signer); err != nil {
		log.Fatalf("sign: %v", err)
	}

	out, err := si.Serialize()
	if err != nil {
		log.Fatalf("serialize: %v", err)
	}
	fmt.Println(string(out))
}
