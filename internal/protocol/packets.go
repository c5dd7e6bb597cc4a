package protocol

import (
	"encoding/binary"

	"titancore/internal/apperr"
)

// Status codes carried in the wire `error` byte of logon responses.
const (
	StatusSuccess           byte = 0x00
	StatusUnknownAccount    byte = 0x04
	StatusIncorrectPassword byte = 0x0D
	StatusFailed            byte = 0x01
)

const authLogonChallengeRequestFixedLen = 1 + 2 + 4 + 1 + 1 + 1 + 2 + 4 + 4 + 4 + 4 + 4 + 1

// AuthLogonChallengeRequest is the client's initial logon challenge.
type AuthLogonChallengeRequest struct {
	Error          byte
	Size           uint16
	GameName       [4]byte
	Version1       byte
	Version2       byte
	Version3       byte
	Build          uint16
	Platform       [4]byte
	OS             [4]byte
	Country        [4]byte
	TimezoneBias   uint32
	IP             uint32
	AccountNameLen byte
	AccountName    []byte
}

// DecodeAuthLogonChallengeRequest parses a challenge-request payload.
// platform/os/country are stored reversed on the wire, relative to their
// natural little-endian four-char tag order; ip is big-endian while every
// other multi-byte field is little-endian.
func DecodeAuthLogonChallengeRequest(payload []byte) (AuthLogonChallengeRequest, error) {
	if len(payload) <= authLogonChallengeRequestFixedLen {
		return AuthLogonChallengeRequest{}, apperr.New(apperr.ErrDecode, "logon challenge request too short")
	}

	req := AuthLogonChallengeRequest{
		Error:    payload[0],
		Size:     binary.LittleEndian.Uint16(payload[1:3]),
		GameName: [4]byte{payload[3], payload[4], payload[5], payload[6]},
		Version1: payload[7],
		Version2: payload[8],
		Version3: payload[9],
		Build:    binary.LittleEndian.Uint16(payload[10:12]),
		Platform: [4]byte{payload[15], payload[14], payload[13], payload[12]},
		OS:       [4]byte{payload[19], payload[18], payload[17], payload[16]},
		Country:  [4]byte{payload[23], payload[22], payload[21], payload[20]},
		TimezoneBias:   binary.LittleEndian.Uint32(payload[24:28]),
		IP:             binary.BigEndian.Uint32(payload[28:32]),
		AccountNameLen: payload[32],
	}
	req.AccountName = append([]byte(nil), payload[33:]...)
	return req, nil
}

// Username returns the requested account name as an upper-cased string, as
// the crypto core's identity hash requires.
func (r AuthLogonChallengeRequest) Username() string {
	return upperASCII(string(r.AccountName))
}

func upperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}

// AuthLogonChallengeResponse is the server's reply to a logon challenge.
type AuthLogonChallengeResponse struct {
	Error         byte
	B             [32]byte
	N             [32]byte
	Salt          [32]byte
	Unknown       [16]byte
	SecurityFlags byte
}

// Encode renders the response as the fixed wire layout:
// cmd=0x00, error, B[32], g_len=1, g, N_len=32, N[32], salt[32], unknown[16], security_flags.
func (r AuthLogonChallengeResponse) Encode(generator byte) []byte {
	out := make([]byte, 0, 1+1+32+1+1+1+32+32+16+1)
	out = append(out, byte(OpAuthLogonChallenge))
	out = append(out, r.Error)
	if r.Error != StatusSuccess {
		return out
	}
	out = append(out, r.B[:]...)
	out = append(out, 1, generator)
	out = append(out, 32)
	out = append(out, r.N[:]...)
	out = append(out, r.Salt[:]...)
	out = append(out, r.Unknown[:]...)
	out = append(out, r.SecurityFlags)
	return out
}

const authLogonProofRequestLen = 32 + 20 + 20 + 1 + 1

// AuthLogonProofRequest is the client's proof of password knowledge.
type AuthLogonProofRequest struct {
	A             [32]byte
	M1            [20]byte
	CRCHash       [20]byte
	NumberOfKeys  byte
	SecurityFlags byte
}

// DecodeAuthLogonProofRequest parses a logon-proof payload.
func DecodeAuthLogonProofRequest(payload []byte) (AuthLogonProofRequest, error) {
	if len(payload) < authLogonProofRequestLen {
		return AuthLogonProofRequest{}, apperr.New(apperr.ErrDecode, "logon proof request too short")
	}
	var req AuthLogonProofRequest
	copy(req.A[:], payload[0:32])
	copy(req.M1[:], payload[32:52])
	copy(req.CRCHash[:], payload[52:72])
	req.NumberOfKeys = payload[72]
	req.SecurityFlags = payload[73]
	return req, nil
}

// AuthLogonProofResponse is the server's reply once the client's proof has
// been checked.
type AuthLogonProofResponse struct {
	Error        byte
	M2           [20]byte
	AccountFlags uint32
	SurveyID     uint32
	LoginFlags   uint16
}

// Encode renders the response as cmd=0x01, error, M2[20], account_flags,
// survey_id, login_flags. On failure only cmd+error are sent.
func (r AuthLogonProofResponse) Encode() []byte {
	out := make([]byte, 0, 1+1+20+4+4+2)
	out = append(out, byte(OpAuthLogonProof))
	out = append(out, r.Error)
	if r.Error != StatusSuccess {
		return out
	}
	out = append(out, r.M2[:]...)
	out = binary.LittleEndian.AppendUint32(out, r.AccountFlags)
	out = binary.LittleEndian.AppendUint32(out, r.SurveyID)
	out = binary.LittleEndian.AppendUint16(out, r.LoginFlags)
	return out
}

// AuthReconnectChallengeResponse is the server's reply to a reconnect
// challenge, carrying a fresh server seed.
type AuthReconnectChallengeResponse struct {
	Error         byte
	ChallengeData [16]byte
	ChecksumSalt  [16]byte
}

// Encode renders cmd=0x02, error, challenge_data[16], checksum_salt[16].
func (r AuthReconnectChallengeResponse) Encode() []byte {
	out := make([]byte, 0, 1+1+16+16)
	out = append(out, byte(OpAuthReconnectChallenge))
	out = append(out, r.Error)
	if r.Error != StatusSuccess {
		return out
	}
	out = append(out, r.ChallengeData[:]...)
	out = append(out, r.ChecksumSalt[:]...)
	return out
}

const authReconnectProofRequestLen = 16 + 20 + 20 + 1

// AuthReconnectProofRequest is the client's reconnect proof.
type AuthReconnectProofRequest struct {
	R1           [16]byte
	R2           [20]byte
	R3           [20]byte
	NumberOfKeys byte
}

// DecodeAuthReconnectProofRequest parses a reconnect-proof payload.
func DecodeAuthReconnectProofRequest(payload []byte) (AuthReconnectProofRequest, error) {
	if len(payload) < authReconnectProofRequestLen {
		return AuthReconnectProofRequest{}, apperr.New(apperr.ErrDecode, "reconnect proof request too short")
	}
	var req AuthReconnectProofRequest
	copy(req.R1[:], payload[0:16])
	copy(req.R2[:], payload[16:36])
	copy(req.R3[:], payload[36:56])
	req.NumberOfKeys = payload[56]
	return req, nil
}

// AuthReconnectProofResponse is the server's reply to a reconnect proof.
type AuthReconnectProofResponse struct {
	Error byte
}

// Encode renders cmd=0x03, error.
func (r AuthReconnectProofResponse) Encode() []byte {
	return []byte{byte(OpAuthReconnectProof), r.Error}
}
