package crypto

import (
	"crypto/rand"
	"math/big"
)

// largeSafePrimeLE is the fixed 256-bit safe prime N, stored little-endian.
var largeSafePrimeLE = [32]byte{
	0xb7, 0x9b, 0x3e, 0x2a, 0x87, 0x82, 0x3c, 0xab, 0x8f, 0x5e, 0xbf, 0xbf, 0x8e, 0xb1, 0x1, 0x8,
	0x53, 0x50, 0x6, 0x29, 0x8b, 0x5b, 0xad, 0xbd, 0x5b, 0x53, 0xe1, 0x89, 0x5e, 0x64, 0x4b, 0x89,
}

// precomputedXorHashLE is SHA1(N_le) XOR SHA1([g]), precomputed for the
// fixed N and g below, stored little-endian.
var precomputedXorHashLE = [20]byte{
	0xdd, 0x7b, 0xb0, 0x3a, 0x38, 0xac, 0x73, 0x11, 0x3, 0x98, 0x7c, 0x5a, 0x50, 0x6f, 0xca,
	0x96, 0x6c, 0x7b, 0xc2, 0xa7,
}

const (
	// Generator is the SRP6 group generator g.
	Generator uint8 = 7
	// Multiplier is the SRP6 multiplier k.
	Multiplier uint8 = 3
)

// N returns the fixed 256-bit safe prime as a big.Int.
func N() *big.Int {
	return toBigInt(largeSafePrimeLE[:])
}

// NBytesLE returns the fixed 256-bit safe prime as its 32 little-endian
// bytes, as sent on the wire in a logon challenge response.
func NBytesLE() [32]byte {
	return largeSafePrimeLE
}

// PrecomputedXorHash returns the fixed xor_hash = SHA1(N) XOR SHA1(g) used
// in client proof (M1) computation. It is a process-wide constant: N and g
// never vary, so recomputing it per handshake would be wasted work — but
// CalculateXorHash is still exported so callers (and tests) can verify the
// precomputed value against the derivation in srp6.go.
func PrecomputedXorHash() Sha1Hash {
	return Sha1Hash(precomputedXorHashLE)
}

func gBigInt() *big.Int      { return big.NewInt(int64(Generator)) }
func kBigInt() *big.Int      { return big.NewInt(int64(Multiplier)) }

// RandomSalt generates a cryptographically random Salt.
func RandomSalt() (Salt, error) {
	var s Salt
	if _, err := rand.Read(s[:]); err != nil {
		return Salt{}, err
	}
	return s, nil
}

// RandomPrivateKey generates a cryptographically random ephemeral private
// key (the SRP `a` or `b` value).
func RandomPrivateKey() (PrivateKey, error) {
	var k PrivateKey
	if _, err := rand.Read(k[:]); err != nil {
		return PrivateKey{}, err
	}
	return k, nil
}

// RandomReconnectSeed generates a cryptographically random reconnect seed.
func RandomReconnectSeed() (ReconnectSeed, error) {
	var s ReconnectSeed
	if _, err := rand.Read(s[:]); err != nil {
		return ReconnectSeed{}, err
	}
	return s, nil
}
