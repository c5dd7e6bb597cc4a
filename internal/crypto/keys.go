// Package crypto implements the SRP6 handshake used by the logon gateway:
// fixed-size key types, the safe-prime group parameters, and the derivation
// functions that turn a username/password pair into a shared session key.
package crypto

import (
	"encoding/hex"
	"math/big"
)

// reverseBytes returns a new slice with b's bytes in reverse order, leaving
// b untouched. Every key type stores its bytes little-endian internally;
// this is the single place the LE/BE flip happens.
func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}

// padLeft left-pads b with zero bytes up to size, so a big-endian hex value
// shorter than the key (such as "07") lands in the key's low-order bytes.
func padLeft(b []byte, size int) []byte {
	if len(b) >= size {
		return b
	}
	out := make([]byte, size)
	copy(out[size-len(b):], b)
	return out
}

// toBigInt interprets le (little-endian) bytes as an unsigned integer.
func toBigInt(le []byte) *big.Int {
	return new(big.Int).SetBytes(reverseBytes(le))
}

// fromBigInt renders n as size little-endian bytes, truncating to the low
// size bytes if n is wider (callers only ever pass values already reduced
// mod the safe prime, so this never truncates in practice).
func fromBigInt(n *big.Int, size int) []byte {
	be := n.Bytes()
	if len(be) > size {
		be = be[len(be)-size:]
	}
	be = padLeft(be, size)
	return reverseBytes(be)
}

// Sha1Hash is a raw 20-byte SHA-1 digest, stored little-endian.
type Sha1Hash [20]byte

// Salt is the 32-byte per-account randomizer mixed into the password hash.
type Salt [32]byte

// PasswordVerifier is the 32-byte value v = g^x mod N stored per account in
// place of the plaintext password.
type PasswordVerifier [32]byte

// PublicKey is a 32-byte SRP ephemeral public value (A or B).
type PublicKey [32]byte

// PrivateKey is a 32-byte SRP ephemeral private value (a or b).
type PrivateKey [32]byte

// InterimSessionKey is the 32-byte pre-interleave shared secret S.
type InterimSessionKey [32]byte

// SessionKey is the 40-byte SHA1-interleaved session key K.
type SessionKey [40]byte

// ProofKey is a 20-byte SRP proof value (M1 or M2).
type ProofKey [20]byte

// ReconnectSeed is a 16-byte random value exchanged during reconnection.
type ReconnectSeed [16]byte

func (k Sha1Hash) ToBytesLE() []byte { return k[:] }
func (k Salt) ToBytesLE() []byte     { return k[:] }
func (k PasswordVerifier) ToBytesLE() []byte { return k[:] }
func (k PublicKey) ToBytesLE() []byte        { return k[:] }
func (k PrivateKey) ToBytesLE() []byte       { return k[:] }
func (k InterimSessionKey) ToBytesLE() []byte { return k[:] }
func (k SessionKey) ToBytesLE() []byte        { return k[:] }
func (k ProofKey) ToBytesLE() []byte          { return k[:] }
func (k ReconnectSeed) ToBytesLE() []byte     { return k[:] }

func (k Sha1Hash) ToHexBE() string          { return hex.EncodeToString(reverseBytes(k[:])) }
func (k Salt) ToHexBE() string              { return hex.EncodeToString(reverseBytes(k[:])) }
func (k PasswordVerifier) ToHexBE() string  { return hex.EncodeToString(reverseBytes(k[:])) }
func (k PublicKey) ToHexBE() string         { return hex.EncodeToString(reverseBytes(k[:])) }
func (k PrivateKey) ToHexBE() string        { return hex.EncodeToString(reverseBytes(k[:])) }
func (k SessionKey) ToHexBE() string        { return hex.EncodeToString(reverseBytes(k[:])) }
func (k ProofKey) ToHexBE() string          { return hex.EncodeToString(reverseBytes(k[:])) }
func (k ReconnectSeed) ToHexBE() string     { return hex.EncodeToString(reverseBytes(k[:])) }

func (k Sha1Hash) ToBigInt() *big.Int          { return toBigInt(k[:]) }
func (k PasswordVerifier) ToBigInt() *big.Int  { return toBigInt(k[:]) }
func (k PublicKey) ToBigInt() *big.Int         { return toBigInt(k[:]) }
func (k PrivateKey) ToBigInt() *big.Int        { return toBigInt(k[:]) }

// Sha1HashFromBytesLE builds a Sha1Hash from its 20 little-endian bytes.
func Sha1HashFromBytesLE(b []byte) Sha1Hash {
	var k Sha1Hash
	copy(k[:], b)
	return k
}

// Sha1HashFromHexBE parses a big-endian hex string (e.g. console/debug
// output) into a Sha1Hash.
func Sha1HashFromHexBE(s string) (Sha1Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Sha1Hash{}, err
	}
	var k Sha1Hash
	copy(k[:], reverseBytes(padLeft(b, len(k))))
	return k, nil
}

// SaltFromBytesLE builds a Salt from its 32 little-endian bytes.
func SaltFromBytesLE(b []byte) Salt {
	var s Salt
	copy(s[:], b)
	return s
}

// SaltFromHexBE parses a big-endian hex string into a Salt.
func SaltFromHexBE(s string) (Salt, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Salt{}, err
	}
	var k Salt
	copy(k[:], reverseBytes(padLeft(b, len(k))))
	return k, nil
}

// PasswordVerifierFromBytesLE builds a PasswordVerifier from its 32
// little-endian bytes, e.g. when loading one back out of storage.
func PasswordVerifierFromBytesLE(b []byte) PasswordVerifier {
	var k PasswordVerifier
	copy(k[:], b)
	return k
}

// PasswordVerifierFromBigInt reduces n into a 32-byte little-endian verifier.
func PasswordVerifierFromBigInt(n *big.Int) PasswordVerifier {
	var k PasswordVerifier
	copy(k[:], fromBigInt(n, len(k)))
	return k
}

// PasswordVerifierFromHexBE parses a big-endian hex string into a verifier.
func PasswordVerifierFromHexBE(s string) (PasswordVerifier, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return PasswordVerifier{}, err
	}
	var k PasswordVerifier
	copy(k[:], reverseBytes(padLeft(b, len(k))))
	return k, nil
}

// PublicKeyFromBytesLE builds a PublicKey from its 32 little-endian bytes.
func PublicKeyFromBytesLE(b []byte) PublicKey {
	var k PublicKey
	copy(k[:], b)
	return k
}

// PublicKeyFromBigInt reduces n into a 32-byte little-endian public key.
func PublicKeyFromBigInt(n *big.Int) PublicKey {
	var k PublicKey
	copy(k[:], fromBigInt(n, len(k)))
	return k
}

// PublicKeyFromHexBE parses a big-endian hex string into a PublicKey.
func PublicKeyFromHexBE(s string) (PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return PublicKey{}, err
	}
	var k PublicKey
	copy(k[:], reverseBytes(padLeft(b, len(k))))
	return k, nil
}

// PrivateKeyFromBytesLE builds a PrivateKey from its 32 little-endian bytes.
func PrivateKeyFromBytesLE(b []byte) PrivateKey {
	var k PrivateKey
	copy(k[:], b)
	return k
}

// PrivateKeyFromHexBE parses a big-endian hex string into a PrivateKey.
func PrivateKeyFromHexBE(s string) (PrivateKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return PrivateKey{}, err
	}
	var k PrivateKey
	copy(k[:], reverseBytes(padLeft(b, len(k))))
	return k, nil
}

// InterimSessionKeyFromBigInt reduces n into a 32-byte little-endian S value.
func InterimSessionKeyFromBigInt(n *big.Int) InterimSessionKey {
	var k InterimSessionKey
	copy(k[:], fromBigInt(n, len(k)))
	return k
}

// SessionKeyFromBytesLE builds a SessionKey from its 40 little-endian bytes.
func SessionKeyFromBytesLE(b []byte) SessionKey {
	var k SessionKey
	copy(k[:], b)
	return k
}

// SessionKeyFromHexBE parses a big-endian hex string into a SessionKey.
func SessionKeyFromHexBE(s string) (SessionKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return SessionKey{}, err
	}
	var k SessionKey
	copy(k[:], reverseBytes(padLeft(b, len(k))))
	return k, nil
}

// ProofKeyFromBytesLE builds a ProofKey from its 20 little-endian bytes.
func ProofKeyFromBytesLE(b []byte) ProofKey {
	var k ProofKey
	copy(k[:], b)
	return k
}

// ProofKeyFromHexBE parses a big-endian hex string into a ProofKey.
func ProofKeyFromHexBE(s string) (ProofKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return ProofKey{}, err
	}
	var k ProofKey
	copy(k[:], reverseBytes(padLeft(b, len(k))))
	return k, nil
}

// ReconnectSeedFromBytesLE builds a ReconnectSeed from its 16 little-endian bytes.
func ReconnectSeedFromBytesLE(b []byte) ReconnectSeed {
	var k ReconnectSeed
	copy(k[:], b)
	return k
}

// ReconnectSeedFromHexBE parses a big-endian hex string into a ReconnectSeed.
func ReconnectSeedFromHexBE(s string) (ReconnectSeed, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return ReconnectSeed{}, err
	}
	var k ReconnectSeed
	copy(k[:], reverseBytes(padLeft(b, len(k))))
	return k, nil
}
