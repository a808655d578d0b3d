package auth

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/better-wallet/smart-account/pkg/types"
)

const (
	webAuthnTypeGet = "webauthn.get"

	// authenticator data: rpIdHash(32) || flags(1) || signCount(4)
	minAuthenticatorDataLength = 37
	flagUserPresent            = 0x01
	flagUserVerified           = 0x04
)

// PasskeySignature is the WebAuthn assertion carried in an operation signature.
type PasskeySignature struct {
	AuthenticatorData []byte
	ClientDataJSON    string
	RS                [2][32]byte
}

type clientData struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Origin    string `json:"origin"`
}

var passkeySignatureArgs = mustArguments("bytes", "string", "bytes32[2]")

func mustArguments(kinds ...string) abi.Arguments {
	args := make(abi.Arguments, 0, len(kinds))
	for _, kind := range kinds {
		t, err := abi.NewType(kind, "", nil)
		if err != nil {
			panic(fmt.Sprintf("invalid abi type %q: %v", kind, err))
		}
		args = append(args, abi.Argument{Type: t})
	}
	return args
}

// EncodePasskeySignature ABI-encodes a passkey assertion.
func EncodePasskeySignature(sig PasskeySignature) ([]byte, error) {
	return passkeySignatureArgs.Pack(sig.AuthenticatorData, sig.ClientDataJSON, sig.RS)
}

// DecodePasskeySignature decodes an ABI-encoded passkey assertion.
func DecodePasskeySignature(raw []byte) (PasskeySignature, error) {
	values, err := passkeySignatureArgs.Unpack(raw)
	if err != nil {
		return PasskeySignature{}, fmt.Errorf("failed to decode passkey signature: %w", err)
	}
	authData, ok1 := values[0].([]byte)
	clientDataJSON, ok2 := values[1].(string)
	rs, ok3 := values[2].([2][32]byte)
	if !ok1 || !ok2 || !ok3 {
		return PasskeySignature{}, errors.New("unexpected passkey signature layout")
	}
	return PasskeySignature{AuthenticatorData: authData, ClientDataJSON: clientDataJSON, RS: rs}, nil
}

// PasskeyDigest returns the digest a WebAuthn authenticator signs:
// sha256(authenticatorData || sha256(clientDataJSON)).
func PasskeyDigest(authenticatorData []byte, clientDataJSON string) [32]byte {
	clientHash := sha256.Sum256([]byte(clientDataJSON))
	msg := make([]byte, 0, len(authenticatorData)+len(clientHash))
	msg = append(msg, authenticatorData...)
	msg = append(msg, clientHash[:]...)
	return sha256.Sum256(msg)
}

// VerifyPasskey checks a WebAuthn assertion whose challenge is the operation hash.
func VerifyPasskey(hash common.Hash, raw []byte, key types.R1PublicKey) bool {
	sig, err := DecodePasskeySignature(raw)
	if err != nil {
		return false
	}
	if len(sig.AuthenticatorData) < minAuthenticatorDataLength {
		return false
	}
	if sig.AuthenticatorData[32]&flagUserPresent == 0 {
		return false
	}

	var cd clientData
	if err := json.Unmarshal([]byte(sig.ClientDataJSON), &cd); err != nil {
		return false
	}
	if cd.Type != webAuthnTypeGet || cd.Challenge != base64.RawURLEncoding.EncodeToString(hash.Bytes()) {
		return false
	}

	digest := PasskeyDigest(sig.AuthenticatorData, sig.ClientDataJSON)
	rs := make([]byte, 0, R1SignatureLength)
	rs = append(rs, sig.RS[0][:]...)
	rs = append(rs, sig.RS[1][:]...)
	return VerifyR1(digest[:], rs, key)
}

// SignPasskey produces a WebAuthn assertion over hash the way a platform
// authenticator for rpID and origin would.
func SignPasskey(hash common.Hash, key *ecdsa.PrivateKey, rpID, origin string) ([]byte, error) {
	rpIDHash := sha256.Sum256([]byte(rpID))
	authData := make([]byte, minAuthenticatorDataLength)
	copy(authData, rpIDHash[:])
	authData[32] = flagUserPresent | flagUserVerified
	binary.BigEndian.PutUint32(authData[33:], 1)

	cdj, err := json.Marshal(clientData{
		Type:      webAuthnTypeGet,
		Challenge: base64.RawURLEncoding.EncodeToString(hash.Bytes()),
		Origin:    origin,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal client data: %w", err)
	}

	digest := PasskeyDigest(authData, string(cdj))
	raw, err := SignR1(digest[:], key)
	if err != nil {
		return nil, err
	}

	var rs [2][32]byte
	copy(rs[0][:], raw[:32])
	copy(rs[1][:], raw[32:])
	return EncodePasskeySignature(PasskeySignature{
		AuthenticatorData: authData,
		ClientDataJSON:    string(cdj),
		RS:                rs,
	})
}
