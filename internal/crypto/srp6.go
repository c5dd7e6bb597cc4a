package crypto

import (
	"crypto/sha1"
	"math/big"
	"strings"
)

func sha1Sum(parts ...[]byte) []byte {
	h := sha1.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// CalculateX derives the private key exponent x = SHA1(salt || SHA1(username ':' password)).
// Both username and password are upper-cased before hashing, so the result
// (and every verifier or session key derived from it) does not depend on the
// case in which either was supplied.
func CalculateX(username, password string, salt Salt) Sha1Hash {
	identity := strings.ToUpper(username) + ":" + strings.ToUpper(password)
	p := sha1Sum([]byte(identity))
	x := sha1Sum(salt.ToBytesLE(), p)
	return Sha1HashFromBytesLE(x)
}

// CalculateU derives u = SHA1(A || B) from both ephemeral public keys.
func CalculateU(clientPublicKey, serverPublicKey PublicKey) Sha1Hash {
	h := sha1Sum(clientPublicKey.ToBytesLE(), serverPublicKey.ToBytesLE())
	return Sha1HashFromBytesLE(h)
}

// CalculateXorHash derives SHA1(N) XOR SHA1(g) from scratch; used to verify
// PrecomputedXorHash rather than on every handshake.
func CalculateXorHash() Sha1Hash {
	lspHash := sha1Sum(largeSafePrimeLE[:])
	gHash := sha1Sum([]byte{Generator})

	var out [20]byte
	for i := range out {
		out[i] = lspHash[i] ^ gHash[i]
	}
	return Sha1Hash(out)
}

// CalculatePasswordVerifier derives v = g^x mod N for a new account.
func CalculatePasswordVerifier(username, password string, salt Salt) PasswordVerifier {
	x := CalculateX(username, password, salt).ToBigInt()
	v := new(big.Int).Exp(gBigInt(), x, N())
	return PasswordVerifierFromBigInt(v)
}

// CalculateClientPublicKey derives A = g^a mod N.
func CalculateClientPublicKey(clientPrivateKey PrivateKey) PublicKey {
	a := clientPrivateKey.ToBigInt()
	pub := new(big.Int).Exp(gBigInt(), a, N())
	return PublicKeyFromBigInt(pub)
}

// CalculateServerPublicKey derives B = (k*v + g^b mod N) mod N.
func CalculateServerPublicKey(verifier PasswordVerifier, serverPrivateKey PrivateKey) PublicKey {
	n := N()
	term := new(big.Int).Exp(gBigInt(), serverPrivateKey.ToBigInt(), n)
	b := new(big.Int).Mul(kBigInt(), verifier.ToBigInt())
	b.Add(b, term)
	b.Mod(b, n)
	return PublicKeyFromBigInt(b)
}

// CalculateServerS derives the server's view of the shared secret
// S = (A * v^u mod N)^b mod N.
func CalculateServerS(clientPublicKey PublicKey, serverPrivateKey PrivateKey, verifier PasswordVerifier, u Sha1Hash) InterimSessionKey {
	n := N()
	t := new(big.Int).Exp(verifier.ToBigInt(), u.ToBigInt(), n)
	t.Mul(t, clientPublicKey.ToBigInt())
	t.Mod(t, n)
	s := new(big.Int).Exp(t, serverPrivateKey.ToBigInt(), n)
	return InterimSessionKeyFromBigInt(s)
}

// CalculateClientS derives the client's view of the shared secret
// S = (B - k*g^x mod N)^(a + u*x) mod N.
func CalculateClientS(clientPrivateKey PrivateKey, serverPublicKey PublicKey, x, u Sha1Hash) InterimSessionKey {
	n := N()
	gx := new(big.Int).Exp(gBigInt(), x.ToBigInt(), n)
	base := new(big.Int).Mul(kBigInt(), gx)
	base.Sub(serverPublicKey.ToBigInt(), base)
	base.Mod(base, n)

	exp := new(big.Int).Mul(u.ToBigInt(), x.ToBigInt())
	exp.Add(exp, clientPrivateKey.ToBigInt())

	s := new(big.Int).Exp(base, exp, n)
	return InterimSessionKeyFromBigInt(s)
}

// CalculateServerSessionKey derives the final 40-byte session key as seen
// by the server.
func CalculateServerSessionKey(clientPublicKey, serverPublicKey PublicKey, serverPrivateKey PrivateKey, verifier PasswordVerifier) SessionKey {
	u := CalculateU(clientPublicKey, serverPublicKey)
	s := CalculateServerS(clientPublicKey, serverPrivateKey, verifier, u)
	return sha1Interleaved(s)
}

// CalculateClientSessionKey derives the final 40-byte session key as seen
// by the client, from the username/password directly.
func CalculateClientSessionKey(username, password string, serverPublicKey, clientPublicKey PublicKey, clientPrivateKey PrivateKey, salt Salt) SessionKey {
	x := CalculateX(username, password, salt)
	u := CalculateU(clientPublicKey, serverPublicKey)
	s := CalculateClientS(clientPrivateKey, serverPublicKey, x, u)
	return sha1Interleaved(s)
}

// CalculateServerProof derives M2 = SHA1(A || M1 || K), sent by the server
// to prove it also derived the session key.
func CalculateServerProof(clientPublicKey PublicKey, clientProof ProofKey, sessionKey SessionKey) ProofKey {
	h := sha1Sum(clientPublicKey.ToBytesLE(), clientProof.ToBytesLE(), sessionKey.ToBytesLE())
	return ProofKeyFromBytesLE(h)
}

// CalculateClientProof derives M1 = SHA1(xor_hash || SHA1(username) || salt || A || B || K).
func CalculateClientProof(xorHash Sha1Hash, username string, sessionKey SessionKey, clientPublicKey, serverPublicKey PublicKey, salt Salt) ProofKey {
	usernameHash := sha1Sum([]byte(username))
	h := sha1Sum(
		xorHash.ToBytesLE(),
		usernameHash,
		salt.ToBytesLE(),
		clientPublicKey.ToBytesLE(),
		serverPublicKey.ToBytesLE(),
		sessionKey.ToBytesLE(),
	)
	return ProofKeyFromBytesLE(h)
}

// CalculateReconnectProof derives the reconnect proof
// SHA1(username || clientSeed || serverSeed || K).
func CalculateReconnectProof(username string, clientSeed, serverSeed ReconnectSeed, sessionKey SessionKey) ProofKey {
	h := sha1Sum([]byte(username), clientSeed.ToBytesLE(), serverSeed.ToBytesLE(), sessionKey.ToBytesLE())
	return ProofKeyFromBytesLE(h)
}

// sha1Interleaved implements the SHA1-interleaved session key derivation:
// strip leading zero bytes from S in pairs, split the remainder into
// even/odd indexed halves, hash each half, and zip the two 20-byte digests
// together into a 40-byte session key.
//
// A variant of this routine that takes every-other byte from the SAME half
// twice (i%2==0 for both) appears elsewhere; that variant is a known bug.
// This implementation always splits even/odd.
func sha1Interleaved(s InterimSessionKey) SessionKey {
	buf := s.ToBytesLE()

	lead := 0
	for lead < len(buf) && buf[lead] == 0 {
		lead++
	}
	if lead%2 != 0 {
		lead++
	}
	if lead > len(buf) {
		lead = len(buf)
	}
	stripped := buf[lead:]

	var e, f []byte
	for i, b := range stripped {
		if i%2 == 0 {
			e = append(e, b)
		} else {
			f = append(f, b)
		}
	}

	g := sha1Sum(e)
	h := sha1Sum(f)

	var out [40]byte
	for i := 0; i < 20; i++ {
		out[2*i] = g[i]
		out[2*i+1] = h[i]
	}
	return SessionKey(out)
}
