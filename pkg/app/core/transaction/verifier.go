package transaction

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/predictr-labs/predictr/pkg/crypto"
)

// Verifier checks instruction envelope signatures.
type Verifier struct{}

// NewVerifier creates a verifier.
func NewVerifier() *Verifier {
	return &Verifier{}
}

// Verify recovers the signer from the envelope signature and checks it
// against the declared signer. Returns the authenticated address.
//
// Nonce replay protection is enforced separately by the engine against
// the signer's ledger account, so a verified envelope is still subject
// to the strictly-increasing-nonce rule.
func (v *Verifier) Verify(si *SignedInstruction) (common.Address, error) {
	if err := si.Validate(); err != nil {
		return common.Address{}, err
	}

	sig, err := DecodeSignature(si.Signature)
	if err != nil {
		return common.Address{}, err
	}

	recovered, err := crypto.RecoverAddress(si.Digest(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("signature verification failed: %w", err)
	}

	declared := common.HexToAddress(si.Signer)
	if recovered != declared {
		return common.Address{}, fmt.Errorf("signature recovers %s, declared signer %s",
			recovered.Hex(), declared.Hex())
	}
	return recovered, nil
}

// Sign sets the envelope signer to the given signer's address and fills
// the signature over the nonce already set on the envelope. Used by
// client tooling and tests.
func Sign(si *SignedInstruction, signer *crypto.Signer) error {
	si.Signer = signer.Address().Hex()
	sig, err := signer.SignDigest(si.Digest())
	if err != nil {
		return fmt.Errorf("failed to sign instruction: %w", err)
	}
	si.Signature = fmt.Sprintf("0x%x", sig)
	return nil
}
