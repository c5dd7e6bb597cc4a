// Package protocol implements the framed, opcode-tagged wire format spoken
// by the logon gateway: frame decoding and the fixed-layout request/response
// packets for the logon and reconnect handshakes.
package protocol

// Opcode identifies the kind of logon packet on the wire.
type Opcode uint8

const (
	OpAuthLogonChallenge      Opcode = 0x00
	OpAuthLogonProof          Opcode = 0x01
	OpAuthReconnectChallenge  Opcode = 0x02
	OpAuthReconnectProof      Opcode = 0x03
	OpSurveyResult            Opcode = 0x04
	OpRealmList               Opcode = 0x10
	OpXferInitiate            Opcode = 0x30
	OpXferData                Opcode = 0x31
	OpXferAccept              Opcode = 0x32
	OpXferResume              Opcode = 0x33
	OpXferCancel              Opcode = 0x34
	OpUnknown                 Opcode = 0xFF
)

// OpcodeFromByte maps a wire byte to its Opcode, returning OpUnknown for any
// unrecognized value rather than failing — the handler logs and ignores it.
func OpcodeFromByte(b byte) Opcode {
	switch b {
	case 0x00:
		return OpAuthLogonChallenge
	case 0x01:
		return OpAuthLogonProof
	case 0x02:
		return OpAuthReconnectChallenge
	case 0x03:
		return OpAuthReconnectProof
	case 0x04:
		return OpSurveyResult
	case 0x10:
		return OpRealmList
	case 0x30:
		return OpXferInitiate
	case 0x31:
		return OpXferData
	case 0x32:
		return OpXferAccept
	case 0x33:
		return OpXferResume
	case 0x34:
		return OpXferCancel
	default:
		return OpUnknown
	}
}
