package magic

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// nbfGracePeriod tolerates clock skew between the issuing browser and this service.
const nbfGracePeriod = 300 * time.Second

const didIssuerPrefix = "did:ethr:"

var (
	ErrMalformedToken   = errors.New("invalid DID token format")
	ErrMissingIssuer    = errors.New("missing 'iss' (issuer) claim in token")
	ErrMissingSubject   = errors.New("missing 'sub' (user ID) claim in token")
	ErrInvalidIssuer    = errors.New("invalid issuer format")
	ErrTokenExpired     = errors.New("DID token has expired")
	ErrTokenNotYetValid = errors.New("DID token is not yet valid")
	ErrInvalidSignature = errors.New("invalid DID token signature")
)

const signatureLength = 65

// Claim is the payload signed by the user's wallet.
type Claim struct {
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"ext"`
	NotBefore int64  `json:"nbf"`
	Issuer    string `json:"iss"`
	Subject   string `json:"sub"`
	Audience  string `json:"aud"`
	TokenID   string `json:"tid"`
	Add       string `json:"add,omitempty"`
}

// DIDToken is a decoded Magic DID token: a [proof, claim] pair.
type DIDToken struct {
	Proof    string
	RawClaim string
	Claim    Claim
}

// ParseDIDToken decodes a DID token. Tokens are normally base64 encoded JSON,
// but a bare JSON array is accepted as well.
func (c *Client) ParseDIDToken(token string) (*DIDToken, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: token is empty", ErrMalformedToken)
	}

	decoded := token
	if raw, err := base64.StdEncoding.DecodeString(token); err == nil {
		decoded = string(raw)
	}

	var parts []string
	if err := c.serializer.Decode([]byte(decoded), &parts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: expected array [proof, claim]", ErrMalformedToken)
	}

	did := &DIDToken{Proof: parts[0], RawClaim: parts[1]}
	if err := c.serializer.Decode([]byte(did.RawClaim), &did.Claim); err != nil {
		return nil, fmt.Errorf("%w: claim: %v", ErrMalformedToken, err)
	}
	return did, nil
}

// Validate checks the required claims and the token's lifetime against now.
// The proof is checked separately by VerifyProof.
func (t *DIDToken) Validate(now time.Time) error {
	if t.Claim.Issuer == "" {
		return ErrMissingIssuer
	}
	if t.Claim.Subject == "" {
		return ErrMissingSubject
	}
	if !strings.HasPrefix(t.Claim.Issuer, didIssuerPrefix) {
		return fmt.Errorf("%w: must start with '%s', got: %s", ErrInvalidIssuer, didIssuerPrefix, t.Claim.Issuer)
	}

	nowSec := now.Unix()
	if t.Claim.ExpiresAt != 0 && nowSec > t.Claim.ExpiresAt {
		return fmt.Errorf("%w (ext: %d, now: %d)", ErrTokenExpired, t.Claim.ExpiresAt, nowSec)
	}
	if t.Claim.NotBefore != 0 && nowSec+int64(nbfGracePeriod.Seconds()) < t.Claim.NotBefore {
		return fmt.Errorf("%w (nbf: %d, now: %d)", ErrTokenNotYetValid, t.Claim.NotBefore, nowSec)
	}
	return nil
}

// PublicAddress returns the wallet address encoded in the issuer DID.
func (t *DIDToken) PublicAddress() string {
	return strings.TrimPrefix(t.Claim.Issuer, didIssuerPrefix)
}

// VerifyProof recovers the signer of the claim from the personal_sign proof
// and requires it to be the wallet named by the issuer.
func (t *DIDToken) VerifyProof() error {
	sig := common.FromHex(t.Proof)
	if len(sig) != signatureLength {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, signatureLength, len(sig))
	}

	// personal_sign uses v in {27, 28}; SigToPub wants the recovery id.
	sig = append([]byte(nil), sig...)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return fmt.Errorf("%w: bad recovery id %d", ErrInvalidSignature, sig[64])
	}

	pub, err := crypto.SigToPub(personalSignHash([]byte(t.RawClaim)), sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	signer := crypto.PubkeyToAddress(*pub).Hex()
	if !strings.EqualFold(signer, t.PublicAddress()) {
		return fmt.Errorf("%w: signer %s does not match issuer %s", ErrInvalidSignature, signer, t.Claim.Issuer)
	}
	return nil
}

// personalSignHash is the EIP-191 hash wallets sign for personal_sign.
func personalSignHash(msg []byte) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(msg))
	return crypto.Keccak256([]byte(prefix), msg)
}
