package magic

import (
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIssuer = "did:ethr:0x4B73C58370AEfcEf86A6021afCDe5673511376B2"

func encodeDIDToken(t *testing.T, claim map[string]interface{}) string {
	t.Helper()
	rawClaim, err := json.Marshal(claim)
	require.NoError(t, err)
	pair, err := json.Marshal([]string{"0xproof", string(rawClaim)})
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(pair)
}

// signDIDToken sets iss to the wallet of key and signs the claim the way
// personal_sign does.
func signDIDToken(t *testing.T, key *ecdsa.PrivateKey, claim map[string]interface{}) (token, issuer string) {
	t.Helper()
	issuer = didIssuerPrefix + crypto.PubkeyToAddress(key.PublicKey).Hex()
	claim["iss"] = issuer
	rawClaim, err := json.Marshal(claim)
	require.NoError(t, err)

	sig, err := crypto.Sign(personalSignHash(rawClaim), key)
	require.NoError(t, err)
	sig[64] += 27

	pair, err := json.Marshal([]string{hexutil.Encode(sig), string(rawClaim)})
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(pair), issuer
}

func newTestKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	c, err := NewClient("sk_test", opts...)
	require.NoError(t, err)
	return c
}

func TestParseDIDToken_WhenBase64Encoded_ShouldDecodeClaim(t *testing.T) {
	c := newTestClient(t)
	token := encodeDIDToken(t, map[string]interface{}{
		"iat": 1700000000,
		"ext": 1700000900,
		"iss": testIssuer,
		"sub": "user-123",
		"aud": "app-1",
		"tid": "tid-1",
	})

	did, err := c.ParseDIDToken(token)

	require.NoError(t, err)
	assert.Equal(t, "0xproof", did.Proof)
	assert.Equal(t, testIssuer, did.Claim.Issuer)
	assert.Equal(t, "user-123", did.Claim.Subject)
	assert.Equal(t, int64(1700000900), did.Claim.ExpiresAt)
	assert.Equal(t, "0x4B73C58370AEfcEf86A6021afCDe5673511376B2", did.PublicAddress())
}

func TestParseDIDToken_WhenNotBase64_ShouldUseRawInput(t *testing.T) {
	c := newTestClient(t)

	did, err := c.ParseDIDToken(`["0xproof","{\"iss\":\"did:ethr:0x1\",\"sub\":\"abc\"}"]`)

	require.NoError(t, err)
	assert.Equal(t, "did:ethr:0x1", did.Claim.Issuer)
	assert.Equal(t, "abc", did.Claim.Subject)
}

func TestParseDIDToken_WhenMalformed_ShouldReturnError(t *testing.T) {
	c := newTestClient(t)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: "   "},
		{name: "not json", token: "bad token"},
		{name: "single element", token: base64.StdEncoding.EncodeToString([]byte(`["0xproof"]`))},
		{name: "claim not json", token: base64.StdEncoding.EncodeToString([]byte(`["0xproof","nope"]`))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.ParseDIDToken(tt.token)
			assert.ErrorIs(t, err, ErrMalformedToken)
		})
	}
}

func TestValidate(t *testing.T) {
	now := time.Unix(1700000000, 0)

	tests := []struct {
		name    string
		claim   Claim
		wantErr error
	}{
		{
			name:  "valid",
			claim: Claim{Issuer: testIssuer, Subject: "u", ExpiresAt: now.Unix() + 60, NotBefore: now.Unix() - 60},
		},
		{
			name:  "nbf within grace period",
			claim: Claim{Issuer: testIssuer, Subject: "u", NotBefore: now.Unix() + 200},
		},
		{
			name:    "missing issuer",
			claim:   Claim{Subject: "u"},
			wantErr: ErrMissingIssuer,
		},
		{
			name:    "missing subject",
			claim:   Claim{Issuer: testIssuer},
			wantErr: ErrMissingSubject,
		},
		{
			name:    "issuer is not a did",
			claim:   Claim{Issuer: "https://auth.example.com", Subject: "u"},
			wantErr: ErrInvalidIssuer,
		},
		{
			name:    "expired",
			claim:   Claim{Issuer: testIssuer, Subject: "u", ExpiresAt: now.Unix() - 1},
			wantErr: ErrTokenExpired,
		},
		{
			name:    "not yet valid",
			claim:   Claim{Issuer: testIssuer, Subject: "u", NotBefore: now.Unix() + 301},
			wantErr: ErrTokenNotYetValid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			did := &DIDToken{Claim: tt.claim}
			err := did.Validate(now)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVerifyProof_WhenSignedByIssuer_ShouldSucceed(t *testing.T) {
	c := newTestClient(t)
	token, issuer := signDIDToken(t, newTestKey(t), map[string]interface{}{"sub": "user-123"})

	did, err := c.ParseDIDToken(token)
	require.NoError(t, err)

	assert.Equal(t, issuer, did.Claim.Issuer)
	assert.NoError(t, did.VerifyProof())
}

func TestVerifyProof_WhenRecoveryIDIsRaw_ShouldSucceed(t *testing.T) {
	c := newTestClient(t)
	token, _ := signDIDToken(t, newTestKey(t), map[string]interface{}{"sub": "user-123"})
	did, err := c.ParseDIDToken(token)
	require.NoError(t, err)

	sig := hexutil.MustDecode(did.Proof)
	sig[64] -= 27
	did.Proof = hexutil.Encode(sig)[2:]

	assert.NoError(t, did.VerifyProof())
}

func TestVerifyProof_WhenSignedByAnotherKey_ShouldFail(t *testing.T) {
	c := newTestClient(t)
	victim := newTestKey(t)
	attacker := newTestKey(t)

	token, _ := signDIDToken(t, attacker, map[string]interface{}{"sub": "user-123"})
	did, err := c.ParseDIDToken(token)
	require.NoError(t, err)
	did.Claim.Issuer = didIssuerPrefix + crypto.PubkeyToAddress(victim.PublicKey).Hex()

	assert.ErrorIs(t, did.VerifyProof(), ErrInvalidSignature)
}

func TestVerifyProof_WhenClaimTampered_ShouldFail(t *testing.T) {
	c := newTestClient(t)
	token, _ := signDIDToken(t, newTestKey(t), map[string]interface{}{"sub": "user-123"})
	did, err := c.ParseDIDToken(token)
	require.NoError(t, err)

	did.RawClaim += " "

	assert.ErrorIs(t, did.VerifyProof(), ErrInvalidSignature)
}

func TestVerifyProof_WhenProofMalformed_ShouldFail(t *testing.T) {
	for _, proof := range []string{"", "0xproof", "attacker-garbage-proof", "0x1234"} {
		did := &DIDToken{Proof: proof, RawClaim: "{}", Claim: Claim{Issuer: testIssuer, Subject: "u"}}
		assert.ErrorIs(t, did.VerifyProof(), ErrInvalidSignature, proof)
	}

	badV := make([]byte, signatureLength)
	badV[64] = 5
	did := &DIDToken{Proof: hexutil.Encode(badV), RawClaim: "{}", Claim: Claim{Issuer: testIssuer, Subject: "u"}}
	assert.ErrorIs(t, did.VerifyProof(), ErrInvalidSignature)
}
