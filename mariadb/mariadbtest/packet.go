package mariadbtest

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
)

const (
	PacketTypeOK          = 0x00
	PacketTypeLOCALINFILE = 0xfb
	PacketTypeEOF         = 0xfe
	PacketTypeERR         = 0xff

	// lengthEncodedNULL marks a NULL column value in a text row.
	lengthEncodedNULL = 0xfb

	// maxPayloadLen is the largest payload a single frame can carry.
	maxPayloadLen = 1<<24 - 1
)

// Server status flags sent in OK and EOF packets.
const (
	statusAutocommit uint16 = 0x0002
)

/**
 * Hash password for mysql_native_password auth:
 * SHA1(password) XOR SHA1(salt + SHA1(SHA1(password)))
 */
func hashPassword(password string, salt []byte) []byte {
	if password == "" {
		return nil
	}
	stage1 := sha1.Sum([]byte(password))
	stage2 := sha1.Sum(stage1[:])
	h := sha1.New()
	h.Write(salt)
	h.Write(stage2[:])
	digest := h.Sum(nil)
	for i := range digest {
		digest[i] ^= stage1[i]
	}
	return digest
}

/**
 * A single protocol frame. payload holds the 4 byte header (3 byte length,
 * 1 byte sequence) followed by the body.
 */
type Packet struct {
	payload []byte
	pos     int
	short   bool
}

// newPacket returns an outgoing packet with room for the header.
func newPacket() *Packet {
	p := &Packet{}
	p.writeBytes([]byte{0, 0, 0, 0})
	return p
}

// incomingPacket wraps a frame read off the wire, positioned at the body.
func incomingPacket(header [4]byte, body []byte) *Packet {
	payload := make([]byte, 0, 4+len(body))
	payload = append(payload, header[:]...)
	payload = append(payload, body...)
	return &Packet{payload: payload, pos: 4}
}

func (p *Packet) bytes() []byte {
	return p.payload
}

func (p *Packet) body() []byte {
	return p.payload[4:]
}

func (p *Packet) bodyLength() int {
	return len(p.payload) - 4
}

func (p *Packet) sequence() uint8 {
	return p.payload[3]
}

func (p *Packet) setSequence(i uint8) {
	p.payload[3] = i
}

func (p *Packet) updateHeader() {
	length := uint32(p.bodyLength())
	p.payload[0] = byte(length)
	p.payload[1] = byte(length >> 8)
	p.payload[2] = byte(length >> 16)
}

// truncated reports whether a read ran past the end of the packet.
func (p *Packet) truncated() bool {
	return p.short
}

func (p *Packet) skip(n int) {
	p.readBytes(n)
}

func (p *Packet) peek() byte {
	if p.pos >= len(p.payload) {
		return 0
	}
	return p.payload[p.pos]
}

func (p *Packet) remaining() int {
	return len(p.payload) - p.pos
}

func (p *Packet) readBytes(n int) []byte {
	if n < 0 || p.pos+n > len(p.payload) {
		p.short = true
		p.pos = len(p.payload)
		return nil
	}
	buf := p.payload[p.pos : p.pos+n]
	p.pos += n
	return buf
}

func (p *Packet) readBytesRest() []byte {
	return p.readBytes(p.remaining())
}

func (p *Packet) readUInt8() uint8 {
	b := p.readBytes(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (p *Packet) readUInt16() uint16 {
	b := p.readBytes(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (p *Packet) readUInt24() uint32 {
	b := p.readBytes(3)
	if b == nil {
		return 0
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

func (p *Packet) readUInt32() uint32 {
	b := p.readBytes(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (p *Packet) readUInt64() uint64 {
	b := p.readBytes(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// readUIntEncodedLength reads a length encoded integer.
// See https://mariadb.com/kb/en/protocol-data-types/#length-encoded-integers
func (p *Packet) readUIntEncodedLength() uint64 {
	switch first := p.readUInt8(); first {
	case 0xfc:
		return uint64(p.readUInt16())
	case 0xfd:
		return uint64(p.readUInt24())
	case 0xfe:
		return p.readUInt64()
	default:
		return uint64(first)
	}
}

func (p *Packet) readBytesEncodedLength() []byte {
	return p.readBytes(int(p.readUIntEncodedLength()))
}

func (p *Packet) readStringNullEnded() string {
	i := bytes.IndexByte(p.payload[p.pos:], 0x00)
	if i < 0 {
		return string(p.readBytesRest())
	}
	s := string(p.payload[p.pos : p.pos+i])
	p.pos += i + 1
	return s
}

func (p *Packet) writeUInt8(i uint8) {
	p.payload = append(p.payload, i)
}

func (p *Packet) writeUInt16(i uint16) {
	p.payload = binary.LittleEndian.AppendUint16(p.payload, i)
}

func (p *Packet) writeUInt24(i uint32) {
	p.payload = append(p.payload, byte(i), byte(i>>8), byte(i>>16))
}

func (p *Packet) writeUInt32(i uint32) {
	p.payload = binary.LittleEndian.AppendUint32(p.payload, i)
}

func (p *Packet) writeUInt64(i uint64) {
	p.payload = binary.LittleEndian.AppendUint64(p.payload, i)
}

func (p *Packet) writeBytes(b []byte) {
	p.payload = append(p.payload, b...)
}

func (p *Packet) writeLengthEncoded(length uint64) {
	if length < 0xfb {
		p.writeUInt8(uint8(length))
	} else if length < 1<<16 {
		p.writeUInt8(0xfc)
		p.writeUInt16(uint16(length))
	} else if length < 1<<24 {
		p.writeUInt8(0xfd)
		p.writeUInt24(uint32(length))
	} else {
		p.writeUInt8(0xfe)
		p.writeUInt64(length)
	}
}

func (p *Packet) writeStringLengthEncoded(s string) {
	p.writeLengthEncoded(uint64(len(s)))
	p.writeBytes([]byte(s))
}

func (p *Packet) writeStringNullEnded(s string) {
	p.writeBytes([]byte(s))
	p.writeUInt8(0)
}

/**
 * See https://mariadb.com/kb/en/ok_packet/
 */
func createOKPacket() *Packet {
	p := newPacket()
	p.writeUInt8(PacketTypeOK)
	p.writeLengthEncoded(0) // affected rows
	p.writeLengthEncoded(0) // last insert id
	p.writeUInt16(statusAutocommit)
	p.writeUInt16(0) // warnings
	p.updateHeader()
	return p
}

/**
 * See https://mariadb.com/kb/en/eof_packet/
 */
func createEOFPacket() *Packet {
	p := newPacket()
	p.writeUInt8(PacketTypeEOF)
	p.writeUInt16(0) // warnings
	p.writeUInt16(statusAutocommit)
	p.updateHeader()
	return p
}

/**
 * See https://mariadb.com/kb/en/err_packet/
 */
func createErrorPacket(e *ServerError) *Packet {
	p := newPacket()
	p.writeUInt8(PacketTypeERR)
	p.writeUInt16(e.Code)
	p.writeUInt8('#')
	p.writeBytes([]byte(e.State))
	p.writeBytes([]byte(e.Message))
	p.updateHeader()
	return p
}

func createColumnCountPacket(n int) *Packet {
	p := newPacket()
	p.writeLengthEncoded(uint64(n))
	p.updateHeader()
	return p
}

/**
 * See https://mariadb.com/kb/en/result-set-packets/#column-definition-packet
 */
func createColumnDefinitionPacket(schema, table string, column Column) *Packet {
	charset, length := uint16(charsetUTF8), uint32(255*3)
	if column.Type.numeric() {
		charset, length = charsetBinary, 20
	}
	var flags uint16
	if !column.Nullable {
		flags |= FIELD_FLAG_NOT_NULL
	}
	if column.Type.numeric() {
		flags |= FIELD_FLAG_NUM_FLAG
	}
	if column.Unsigned {
		flags |= FIELD_FLAG_UNSIGNED
	}

	p := newPacket()
	p.writeStringLengthEncoded("def") // catalog
	p.writeStringLengthEncoded(schema)
	p.writeStringLengthEncoded(table) // table alias
	p.writeStringLengthEncoded(table)
	p.writeStringLengthEncoded(column.Name) // column alias
	p.writeStringLengthEncoded(column.Name)
	p.writeLengthEncoded(0x0c) // length of fixed fields
	p.writeUInt16(charset)
	p.writeUInt32(length)
	p.writeUInt8(uint8(column.Type))
	p.writeUInt16(flags)
	p.writeUInt8(0) // decimals
	p.writeUInt16(0)
	p.updateHeader()
	return p
}

/**
 * See https://mariadb.com/kb/en/result-set-packets/#text-resultset-row
 */
func createTextRowPacket(values []any) *Packet {
	p := newPacket()
	for _, v := range values {
		switch v := v.(type) {
		case nil:
			p.writeUInt8(lengthEncodedNULL)
		case string:
			p.writeStringLengthEncoded(v)
		case []byte:
			p.writeLengthEncoded(uint64(len(v)))
			p.writeBytes(v)
		default:
			p.writeStringLengthEncoded(fmt.Sprint(v))
		}
	}
	p.updateHeader()
	return p
}
