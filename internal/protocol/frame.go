package protocol

import "titancore/internal/apperr"

// Frame is a decoded, opcode-tagged logon packet: opcode:u8 || payload.
type Frame struct {
	Opcode  Opcode
	Payload []byte
}

// DecodeFrame parses a raw byte slice read off the wire into a Frame.
// An empty slice is a decode error. Trailing carriage-return/line-feed
// bytes are stripped from the payload — a compatibility quirk some client
// builds exhibit.
func DecodeFrame(raw []byte) (Frame, error) {
	if len(raw) == 0 {
		return Frame{}, apperr.New(apperr.ErrDecode, "packet payload is empty")
	}

	op := raw[0]
	var payload []byte
	if len(raw) >= 2 {
		end := len(raw)
		for end > 1 && (raw[end-1] == 0x0D || raw[end-1] == 0x0A) {
			end--
		}
		payload = append(make([]byte, 0, end-1), raw[1:end]...)
	}

	return Frame{Opcode: OpcodeFromByte(op), Payload: payload}, nil
}
