package mariadbtest

import (
	"bytes"
	"crypto/sha1"
	"testing"

	"github.com/botanyhelp/Ucscquery/mariadb/capabilities"
)

func TestHashPassword(t *testing.T) {
	salt := randomBuf(scrambleLength)

	t.Run("Empty password sends no token", func(t *testing.T) {
		if got := hashPassword("", salt); got != nil {
			t.Fatalf("want nil token, got %v", got)
		}
	})

	t.Run("Token verifies against stored hash", func(t *testing.T) {
		// A server only keeps SHA1(SHA1(password)); recover SHA1(password)
		// from the token and check it hashes to the stored value.
		token := hashPassword("secret", salt)
		stage1 := sha1.Sum([]byte("secret"))
		stored := sha1.Sum(stage1[:])

		h := sha1.New()
		h.Write(salt)
		h.Write(stored[:])
		mask := h.Sum(nil)

		recovered := make([]byte, len(token))
		for i := range token {
			recovered[i] = token[i] ^ mask[i]
		}
		if got := sha1.Sum(recovered); got != stored {
			t.Fatalf("token does not verify")
		}
	})

	t.Run("Salt changes token", func(t *testing.T) {
		other := append([]byte(nil), salt...)
		other[0]++
		if bytes.Equal(hashPassword("secret", salt), hashPassword("secret", other)) {
			t.Fatalf("token must depend on salt")
		}
	})
}

func TestLengthEncoded(t *testing.T) {
	tt := []struct {
		name  string
		value uint64
		size  int
	}{
		{name: "One byte", value: 250, size: 1},
		{name: "Two bytes", value: 251, size: 3},
		{name: "Three bytes", value: 1 << 16, size: 4},
		{name: "Eight bytes", value: 1 << 24, size: 9},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			p := &Packet{}
			p.writeLengthEncoded(tc.value)
			if len(p.payload) != tc.size {
				t.Fatalf("want %d bytes, got %d", tc.size, len(p.payload))
			}
			if got := p.readUIntEncodedLength(); got != tc.value {
				t.Fatalf("want %d, got %d", tc.value, got)
			}
		})
	}
}

func TestPacket_Header(t *testing.T) {
	p := createOKPacket()
	p.setSequence(2)

	b := p.bytes()
	length := int(b[0]) | int(b[1])<<8 | int(b[2])<<16
	if length != len(b)-4 {
		t.Fatalf("header length %d, body %d", length, len(b)-4)
	}
	if p.sequence() != 2 {
		t.Fatalf("want sequence 2, got %d", p.sequence())
	}
	if b[4] != PacketTypeOK {
		t.Fatalf("want OK marker, got %#x", b[4])
	}
}

func TestPacket_Truncated(t *testing.T) {
	p := &Packet{payload: []byte{0x01, 0x02}}
	_ = p.readUInt32()
	if !p.truncated() {
		t.Fatalf("short read should mark packet truncated")
	}
	if p.remaining() != 0 {
		t.Fatalf("short read should consume the packet")
	}
}

func TestTextRow(t *testing.T) {
	p := createTextRowPacket([]any{"chr1", nil, 42, []byte{0x01}})
	p.pos = 4

	if got := string(p.readBytesEncodedLength()); got != "chr1" {
		t.Errorf("want chr1, got %q", got)
	}
	if got := p.readUInt8(); got != lengthEncodedNULL {
		t.Errorf("want NULL marker, got %#x", got)
	}
	if got := string(p.readBytesEncodedLength()); got != "42" {
		t.Errorf("want 42, got %q", got)
	}
	if got := p.readBytesEncodedLength(); !bytes.Equal(got, []byte{0x01}) {
		t.Errorf("want [1], got %v", got)
	}
	if p.remaining() != 0 || p.truncated() {
		t.Errorf("row packet has %d trailing bytes", p.remaining())
	}
}

func TestHandshakeRequest(t *testing.T) {
	salt := randomBuf(scrambleLength)
	p := createHandshakeRequestPacket(7, salt)
	p.pos = 4

	if v := p.readUInt8(); v != protocolVersion {
		t.Fatalf("protocol version %d", v)
	}
	if v := p.readStringNullEnded(); v != serverVersion {
		t.Fatalf("server version %q", v)
	}
	if v := p.readUInt32(); v != 7 {
		t.Fatalf("connection id %d", v)
	}
	scramble := append([]byte(nil), p.readBytes(8)...)
	p.skip(1)
	caps := capabilities.Flags(p.readUInt16())
	p.skip(1 + 2)
	caps |= capabilities.Flags(p.readUInt16()) << 16
	if !caps.Has(capabilities.PROTOCOL_41 | capabilities.SECURE_CONNECTION | capabilities.PLUGIN_AUTH) {
		t.Fatalf("missing required capabilities: %b", caps)
	}
	if caps.Has(capabilities.DEPRECATE_EOF) {
		t.Fatalf("server must not advertise DEPRECATE_EOF")
	}
	p.skip(1 + 10)
	scramble = append(scramble, p.readBytes(12)...)
	p.skip(1)
	if !bytes.Equal(scramble, salt) {
		t.Fatalf("scramble mismatch")
	}
	if v := p.readStringNullEnded(); v != nativePasswordAuth {
		t.Fatalf("plugin %q", v)
	}
}

func TestParseHandshakeResponse(t *testing.T) {
	salt := randomBuf(scrambleLength)
	token := hashPassword("secret", salt)

	build := func(caps capabilities.Flags) *Packet {
		p := newPacket()
		p.writeUInt32(uint32(caps))
		p.writeUInt32(1 << 24)
		p.writeUInt8(charsetUTF8)
		p.writeBytes(make([]byte, 23))
		p.writeStringNullEnded("genome")
		if caps.Has(capabilities.PLUGIN_AUTH_LENENC_CLIENT_DATA) {
			p.writeLengthEncoded(uint64(len(token)))
		} else {
			p.writeUInt8(uint8(len(token)))
		}
		p.writeBytes(token)
		if caps.Has(capabilities.CONNECT_WITH_DB) {
			p.writeStringNullEnded("mm9")
		}
		p.writeStringNullEnded(nativePasswordAuth)
		p.updateHeader()
		p.pos = 4
		return p
	}

	base := capabilities.PROTOCOL_41 | capabilities.SECURE_CONNECTION | capabilities.PLUGIN_AUTH

	tt := []struct {
		name   string
		caps   capabilities.Flags
		wantDB string
	}{
		{name: "With schema", caps: base | capabilities.CONNECT_WITH_DB, wantDB: "mm9"},
		{name: "Without schema", caps: base, wantDB: ""},
		{name: "Lenenc auth data", caps: base | capabilities.CONNECT_WITH_DB | capabilities.PLUGIN_AUTH_LENENC_CLIENT_DATA, wantDB: "mm9"},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			hsr, err := parseHandshakeResponse(build(tc.caps))
			if err != nil {
				t.Fatalf("parse returned error: %v", err)
			}
			if hsr.username != "genome" {
				t.Errorf("username %q", hsr.username)
			}
			if !bytes.Equal(hsr.authToken, token) {
				t.Errorf("auth token mismatch")
			}
			if hsr.database != tc.wantDB {
				t.Errorf("database: want %q got %q", tc.wantDB, hsr.database)
			}
			if hsr.pluginName != nativePasswordAuth {
				t.Errorf("plugin %q", hsr.pluginName)
			}
		})
	}

	t.Run("Pre 4.1 client", func(t *testing.T) {
		if _, err := parseHandshakeResponse(build(capabilities.SECURE_CONNECTION)); err == nil {
			t.Fatalf("want error for a client without PROTOCOL_41")
		}
	})
}
