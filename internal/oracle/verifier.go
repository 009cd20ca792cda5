package oracle

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

var (
	ErrVerificationFailed = errors.New("decryption proof verification failed")
	ErrInvalidThreshold   = errors.New("invalid signer threshold")
)

// Verifier checks that enough distinct configured signers attested to a
// decryption result.
type Verifier struct {
	signers   map[common.Address]struct{}
	threshold int
}

// NewVerifier builds a threshold verifier. threshold must be in [1, len(signers)].
func NewVerifier(signers []common.Address, threshold int) (*Verifier, error) {
	set := make(map[common.Address]struct{}, len(signers))
	for _, s := range signers {
		set[s] = struct{}{}
	}
	if threshold < 1 || threshold > len(set) {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidThreshold, threshold, len(set))
	}
	return &Verifier{signers: set, threshold: threshold}, nil
}

// Threshold returns the number of distinct signatures required.
func (v *Verifier) Threshold() int { return v.threshold }

// Verify recovers each signature over the request digest and counts distinct
// configured signers. Unknown, duplicate or malformed signatures do not count.
func (v *Verifier) Verify(requestID *uint256.Int, handles []common.Hash, cleartexts []byte, signatures [][]byte) error {
	if requestID == nil {
		return fmt.Errorf("%w: missing request id", ErrVerificationFailed)
	}
	digest := Digest(requestID, handles, cleartexts)

	seen := make(map[common.Address]struct{}, len(signatures))
	for _, sig := range signatures {
		if len(sig) != crypto.SignatureLength {
			continue
		}
		pub, err := crypto.SigToPub(digest.Bytes(), sig)
		if err != nil {
			continue
		}
		addr := crypto.PubkeyToAddress(*pub)
		if _, ok := v.signers[addr]; !ok {
			continue
		}
		seen[addr] = struct{}{}
	}
	if len(seen) < v.threshold {
		return fmt.Errorf("%w: %d of %d signers", ErrVerificationFailed, len(seen), v.threshold)
	}
	return nil
}
