// Package authhandler implements the per-connection logon state machine:
// Idle, ChallengeIssued, Authenticated, and ReconnectChallengeIssued,
// wired against the crypto core, the packet codecs, and the account
// repository.
package authhandler

import "titancore/internal/crypto"

// state names one point in a connection's logon lifecycle.
type state int

const (
	stateIdle state = iota
	stateChallengeIssued
	stateAuthenticated
	stateReconnectChallengeIssued
)

// maxProofAttempts bounds how many failed logon proofs a connection gets
// before the gateway closes it outright.
const maxProofAttempts = 3

// session is the per-connection tuple the handler keeps between frames.
// It lives only in memory (keyed by connection id) — nothing here is
// durable except the session key, which is persisted to the account row
// once a handshake succeeds.
type session struct {
	state state

	username string
	salt     crypto.Salt
	verifier crypto.PasswordVerifier

	serverPrivateKey crypto.PrivateKey
	serverPublicKey  crypto.PublicKey

	sessionKey crypto.SessionKey
	serverSeed crypto.ReconnectSeed

	failedProofAttempts int
}
