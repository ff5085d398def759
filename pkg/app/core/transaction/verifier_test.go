package transaction

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/predictr-labs/predictr/pkg/crypto"
)

func signedEnvelope(t *testing.T, signer *crypto.Signer) *SignedInstruction {
	t.Helper()
	payload, _ := json.Marshal(BuySharesPayload{
		MarketID:   strings.Repeat("01", 32),
		OutcomeYes: true,
		Shares:     1_000_000_000,
		MaxCost:    600_000_000,
	})
	si := &SignedInstruction{
		Discriminator: BuyShares,
		Payload:       payload,
		Nonce:         1,
	}
	if err := Sign(si, signer); err != nil {
		t.Fatalf("sign: %v", err)
	}
	return si
}

func TestSignVerifyRoundTrip(t *testing.T) {
	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	si := signedEnvelope(t, signer)

	// Serialize/parse cycle, as over the wire.
	raw, err := si.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := Parse(raw)
	if err != nil {
		t.Fatal(err)
	}

	got, err := NewVerifier().Verify(parsed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != signer.Address() {
		t.Errorf("recovered %s, want %s", got.Hex(), signer.Address().Hex())
	}
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	signer, _ := crypto.GenerateKey()
	si := signedEnvelope(t, signer)

	si.Payload = json.RawMessage(strings.Replace(string(si.Payload), `"shares":1000000000`, `"shares":9000000000`, 1))
	if _, err := NewVerifier().Verify(si); err == nil {
		t.Error("tampered payload verified")
	}
}

func TestVerifyRejectsWrongDeclaredSigner(t *testing.T) {
	signer, _ := crypto.GenerateKey()
	other, _ := crypto.GenerateKey()
	si := signedEnvelope(t, signer)

	// Claim another signer: digest changes, recovery mismatches.
	si.Signer = other.Address().Hex()
	if _, err := NewVerifier().Verify(si); err == nil {
		t.Error("signer substitution verified")
	}
}

func TestVerifyRejectsTamperedNonce(t *testing.T) {
	signer, _ := crypto.GenerateKey()
	si := signedEnvelope(t, signer)
	si.Nonce = 99
	if _, err := NewVerifier().Verify(si); err == nil {
		t.Error("tampered nonce verified")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte("not json"),
		[]byte(`{"discriminator":200,"payload":{},"signer":"0xAA00000000000000000000000000000000000000","signature":"0x00"}`),
		[]byte(`{"discriminator":8,"signer":"nonsense","signature":"0x00","payload":{}}`),
	}
	for _, raw := range cases {
		if _, err := Parse(raw); err == nil {
			t.Errorf("Parse accepted %q", raw)
		}
	}
}

func TestParseMarketID(t *testing.T) {
	id, err := ParseMarketID(strings.Repeat("ab", 32))
	if err != nil {
		t.Fatal(err)
	}
	if id[0] != 0xab {
		t.Error("decoded wrong bytes")
	}
	if _, err := ParseMarketID("abcd"); err == nil {
		t.Error("short id accepted")
	}
	if _, err := ParseMarketID(strings.Repeat("zz", 32)); err == nil {
		t.Error("non-hex id accepted")
	}
}
