package authhandler

import (
	"context"
	"crypto/rand"
	"log"
	"math/big"
	"sync"

	"titancore/internal/account"
	"titancore/internal/crypto"
	"titancore/internal/gateway"
	"titancore/internal/protocol"
)

// Handler implements gateway.Handler: it decodes each opcode-tagged frame,
// advances that connection's session state, and talks to the account
// repository as needed.
type Handler struct {
	accounts *account.Repository

	mu       sync.Mutex
	sessions map[gateway.ConnectionID]*session
}

// New builds a Handler backed by the given account repository.
func New(accounts *account.Repository) *Handler {
	return &Handler{
		accounts: accounts,
		sessions: make(map[gateway.ConnectionID]*session),
	}
}

// Handle dispatches frame to the appropriate state-transition method. An
// unknown opcode is logged and otherwise ignored, per the protocol's
// failure semantics.
func (h *Handler) Handle(ctx *gateway.Context, frame protocol.Frame) error {
	switch frame.Opcode {
	case protocol.OpAuthLogonChallenge:
		return h.handleLogonChallenge(ctx, frame.Payload)
	case protocol.OpAuthLogonProof:
		return h.handleLogonProof(ctx, frame.Payload)
	case protocol.OpAuthReconnectChallenge:
		return h.handleReconnectChallenge(ctx, frame.Payload)
	case protocol.OpAuthReconnectProof:
		return h.handleReconnectProof(ctx, frame.Payload)
	default:
		log.Printf("connection %d: unhandled opcode %d", ctx.ConnectionID(), frame.Opcode)
		return nil
	}
}

// Closed implements gateway.ConnectionCloser: once a connection tears
// down, its session state is no longer reachable by any frame and can be
// dropped.
func (h *Handler) Closed(id gateway.ConnectionID) {
	h.mu.Lock()
	delete(h.sessions, id)
	h.mu.Unlock()
}

func (h *Handler) sessionFor(id gateway.ConnectionID) *session {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[id]
	if !ok {
		s = &session{state: stateIdle}
		h.sessions[id] = s
	}
	return s
}

func randomBytes16() ([16]byte, error) {
	var b [16]byte
	_, err := rand.Read(b[:])
	return b, err
}

func (h *Handler) handleLogonChallenge(ctx *gateway.Context, payload []byte) error {
	req, err := protocol.DecodeAuthLogonChallengeRequest(payload)
	if err != nil {
		log.Printf("connection %d: %v", ctx.ConnectionID(), err)
		return nil
	}
	username := req.Username()

	acct, err := h.accounts.FindByUsername(context.Background(), username)
	if err != nil {
		resp := protocol.AuthLogonChallengeResponse{Error: protocol.StatusUnknownAccount}
		ctx.Send(resp.Encode(crypto.Generator))
		return nil
	}

	serverPrivateKey, err := crypto.RandomPrivateKey()
	if err != nil {
		return err
	}
	serverPublicKey := crypto.CalculateServerPublicKey(acct.Verifier, serverPrivateKey)

	unknown, err := randomBytes16()
	if err != nil {
		return err
	}

	resp := protocol.AuthLogonChallengeResponse{
		Error:   protocol.StatusSuccess,
		B:       [32]byte(serverPublicKey),
		N:       crypto.NBytesLE(),
		Salt:    [32]byte(acct.Salt),
		Unknown: unknown,
	}
	ctx.Send(resp.Encode(crypto.Generator))

	s := h.sessionFor(ctx.ConnectionID())
	s.state = stateChallengeIssued
	s.username = username
	s.salt = acct.Salt
	s.verifier = acct.Verifier
	s.serverPrivateKey = serverPrivateKey
	s.serverPublicKey = serverPublicKey
	return nil
}

func (h *Handler) handleLogonProof(ctx *gateway.Context, payload []byte) error {
	s := h.sessionFor(ctx.ConnectionID())
	if s.state != stateChallengeIssued {
		resp := protocol.AuthLogonProofResponse{Error: protocol.StatusFailed}
		ctx.Send(resp.Encode())
		return nil
	}

	req, err := protocol.DecodeAuthLogonProofRequest(payload)
	if err != nil {
		log.Printf("connection %d: %v", ctx.ConnectionID(), err)
		return nil
	}

	clientPublicKey := crypto.PublicKeyFromBytesLE(req.A[:])
	aMod := new(big.Int).Mod(clientPublicKey.ToBigInt(), crypto.N())
	if aMod.Sign() == 0 {
		return h.rejectLogonProof(ctx, s)
	}

	sessionKey := crypto.CalculateServerSessionKey(clientPublicKey, s.serverPublicKey, s.serverPrivateKey, s.verifier)
	xorHash := crypto.PrecomputedXorHash()
	expectedM1 := crypto.CalculateClientProof(xorHash, s.username, sessionKey, clientPublicKey, s.serverPublicKey, s.salt)
	actualM1 := crypto.ProofKeyFromBytesLE(req.M1[:])

	if expectedM1 != actualM1 {
		return h.rejectLogonProof(ctx, s)
	}

	if err := h.accounts.SetSessionKey(context.Background(), s.username, sessionKey); err != nil {
		return err
	}

	m2 := crypto.CalculateServerProof(clientPublicKey, actualM1, sessionKey)
	resp := protocol.AuthLogonProofResponse{Error: protocol.StatusSuccess, M2: [20]byte(m2)}
	ctx.Send(resp.Encode())

	s.state = stateAuthenticated
	s.sessionKey = sessionKey
	s.failedProofAttempts = 0
	return nil
}

func (h *Handler) rejectLogonProof(ctx *gateway.Context, s *session) error {
	s.failedProofAttempts++
	resp := protocol.AuthLogonProofResponse{Error: protocol.StatusIncorrectPassword}
	ctx.Send(resp.Encode())
	if s.failedProofAttempts >= maxProofAttempts {
		return gateway.ErrCloseConnection
	}
	return nil
}

func (h *Handler) handleReconnectChallenge(ctx *gateway.Context, payload []byte) error {
	req, err := protocol.DecodeAuthLogonChallengeRequest(payload)
	if err != nil {
		log.Printf("connection %d: %v", ctx.ConnectionID(), err)
		return nil
	}
	username := req.Username()

	acct, err := h.accounts.FindByUsername(context.Background(), username)
	if err != nil || acct.SessionKey == nil {
		resp := protocol.AuthReconnectChallengeResponse{Error: protocol.StatusUnknownAccount}
		ctx.Send(resp.Encode())
		return nil
	}

	serverSeed, err := crypto.RandomReconnectSeed()
	if err != nil {
		return err
	}

	resp := protocol.AuthReconnectChallengeResponse{
		Error:         protocol.StatusSuccess,
		ChallengeData: [16]byte(serverSeed),
	}
	ctx.Send(resp.Encode())

	s := h.sessionFor(ctx.ConnectionID())
	s.state = stateReconnectChallengeIssued
	s.username = username
	s.sessionKey = *acct.SessionKey
	s.serverSeed = serverSeed
	return nil
}

func (h *Handler) handleReconnectProof(ctx *gateway.Context, payload []byte) error {
	s := h.sessionFor(ctx.ConnectionID())
	if s.state != stateReconnectChallengeIssued {
		resp := protocol.AuthReconnectProofResponse{Error: protocol.StatusFailed}
		ctx.Send(resp.Encode())
		return nil
	}

	req, err := protocol.DecodeAuthReconnectProofRequest(payload)
	if err != nil {
		log.Printf("connection %d: %v", ctx.ConnectionID(), err)
		return nil
	}

	clientSeed := crypto.ReconnectSeedFromBytesLE(req.R1[:])
	expected := crypto.CalculateReconnectProof(s.username, clientSeed, s.serverSeed, s.sessionKey)
	actual := crypto.ProofKeyFromBytesLE(req.R2[:])

	if expected != actual {
		resp := protocol.AuthReconnectProofResponse{Error: protocol.StatusIncorrectPassword}
		ctx.Send(resp.Encode())
		return nil
	}

	resp := protocol.AuthReconnectProofResponse{Error: protocol.StatusSuccess}
	ctx.Send(resp.Encode())
	s.state = stateAuthenticated
	return nil
}
