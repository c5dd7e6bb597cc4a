package protocol

import "testing"

func TestDecodeFrameEmptyIsError(t *testing.T) {
	if _, err := DecodeFrame(nil); err == nil {
		t.Fatalf("expected error decoding empty frame")
	}
}

func TestDecodeFrameStripsTrailingCRLF(t *testing.T) {
	raw := []byte{byte(OpAuthLogonChallenge), 'a', 'b', 0x0D, 0x0A}
	f, err := DecodeFrame(raw)
	if err != nil {
		t.Fatalf("decoding frame: %v", err)
	}
	if string(f.Payload) != "ab" {
		t.Fatalf("expected stripped payload 'ab', got %q", f.Payload)
	}
	if f.Opcode != OpAuthLogonChallenge {
		t.Fatalf("expected OpAuthLogonChallenge, got %v", f.Opcode)
	}
}

func TestOpcodeFromByteUnknown(t *testing.T) {
	if OpcodeFromByte(0x99) != OpUnknown {
		t.Fatalf("expected unrecognized opcode to map to OpUnknown")
	}
}

func buildChallengeRequestPayload(account string) []byte {
	payload := make([]byte, 0, authLogonChallengeRequestFixedLen+len(account))
	payload = append(payload, 0x00)       // error
	payload = append(payload, 0x1A, 0x00) // size
	payload = append(payload, 'W', 'o', 'W', 0)
	payload = append(payload, 1, 12, 1)   // version1/2/3
	payload = append(payload, 0xEB, 0x0C) // build
	payload = append(payload, 'n', '6', '8', 'x')  // platform, reversed on wire below
	payload = append(payload, 'n', 'i', 'W', 0x53) // os reversed
	payload = append(payload, 'S', 'U', 0, 0)      // country reversed
	payload = append(payload, 0, 0, 0, 0)          // timezone bias
	payload = append(payload, 127, 0, 0, 1)         // ip big-endian 127.0.0.1
	payload = append(payload, byte(len(account)))
	payload = append(payload, []byte(account)...)
	return payload
}

func TestDecodeAuthLogonChallengeRequestRoundTrips(t *testing.T) {
	payload := buildChallengeRequestPayload("testuser")
	req, err := DecodeAuthLogonChallengeRequest(payload)
	if err != nil {
		t.Fatalf("decoding challenge request: %v", err)
	}
	if req.Username() != "TESTUSER" {
		t.Fatalf("expected uppercased username TESTUSER, got %q", req.Username())
	}
	if req.IP != 0x7F000001 {
		t.Fatalf("expected big-endian ip 127.0.0.1, got %#x", req.IP)
	}
}

func TestDecodeAuthLogonChallengeRequestTooShort(t *testing.T) {
	if _, err := DecodeAuthLogonChallengeRequest(make([]byte, 5)); err == nil {
		t.Fatalf("expected error decoding truncated challenge request")
	}
}

func TestAuthLogonChallengeResponseEncodeFailureIsShort(t *testing.T) {
	resp := AuthLogonChallengeResponse{Error: StatusUnknownAccount}
	encoded := resp.Encode(7)
	if len(encoded) != 2 {
		t.Fatalf("expected 2-byte failure response, got %d bytes", len(encoded))
	}
	if encoded[0] != byte(OpAuthLogonChallenge) || encoded[1] != StatusUnknownAccount {
		t.Fatalf("unexpected failure response bytes: %x", encoded)
	}
}

func TestAuthLogonProofResponseEncodeSuccess(t *testing.T) {
	resp := AuthLogonProofResponse{Error: StatusSuccess}
	encoded := resp.Encode()
	if len(encoded) != 1+1+20+4+4+2 {
		t.Fatalf("unexpected success response length: %d", len(encoded))
	}
	if encoded[0] != byte(OpAuthLogonProof) {
		t.Fatalf("expected opcode 0x01, got %#x", encoded[0])
	}
}

func TestDecodeAuthLogonProofRequestTooShort(t *testing.T) {
	if _, err := DecodeAuthLogonProofRequest(make([]byte, 10)); err == nil {
		t.Fatalf("expected error decoding truncated proof request")
	}
}
