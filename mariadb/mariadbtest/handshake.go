package mariadbtest

import (
	"fmt"

	"github.com/botanyhelp/Ucscquery/mariadb/capabilities"
)

const (
	protocolVersion    = 10
	serverVersion      = "10.11.6-MariaDB-mariadbtest"
	nativePasswordAuth = "mysql_native_password"
	scrambleLength     = 20
)

/**
 * See: https://mariadb.com/kb/en/connection/#initial-handshake-packet
 */
func createHandshakeRequestPacket(connection uint32, scramble []byte) *Packet {
	caps := capabilities.SERVER

	p := newPacket()
	p.writeUInt8(protocolVersion)
	p.writeStringNullEnded(serverVersion)
	p.writeUInt32(connection)
	p.writeBytes(scramble[:8]) // scramble 1st part (authentication seed)
	p.writeUInt8(0)
	p.writeUInt16(caps.Lower())
	p.writeUInt8(charsetUTF8)
	p.writeUInt16(statusAutocommit)
	p.writeUInt16(caps.Upper())
	p.writeUInt8(scrambleLength + 1)
	p.writeBytes(make([]byte, 10)) // reserved
	p.writeBytes(scramble[8:scrambleLength])
	p.writeUInt8(0)
	p.writeStringNullEnded(nativePasswordAuth)
	p.updateHeader()
	return p
}

/**
 * See: https://mariadb.com/kb/en/connection/#handshake-response-packet
 */
type HandshakeResponse struct {
	capabilities capabilities.Flags
	username     string
	authToken    []byte
	database     string
	pluginName   string
}

func parseHandshakeResponse(packet *Packet) (*HandshakeResponse, error) {
	hsr := &HandshakeResponse{}
	hsr.capabilities = capabilities.Flags(packet.readUInt32())
	if !hsr.capabilities.Has(capabilities.PROTOCOL_41) {
		return nil, fmt.Errorf("handshake: client does not speak protocol 4.1")
	}
	packet.skip(4 + 1) // max packet size, collation
	packet.skip(23)    // filler; MariaDB keeps extended capabilities in the last 4
	hsr.username = packet.readStringNullEnded()

	switch {
	case hsr.capabilities.Has(capabilities.PLUGIN_AUTH_LENENC_CLIENT_DATA):
		hsr.authToken = packet.readBytesEncodedLength()
	case hsr.capabilities.Has(capabilities.SECURE_CONNECTION):
		hsr.authToken = packet.readBytes(int(packet.readUInt8()))
	default:
		hsr.authToken = []byte(packet.readStringNullEnded())
	}

	if hsr.capabilities.Has(capabilities.CONNECT_WITH_DB) && packet.remaining() > 0 {
		hsr.database = packet.readStringNullEnded()
	}
	if hsr.capabilities.Has(capabilities.PLUGIN_AUTH) && packet.remaining() > 0 {
		hsr.pluginName = packet.readStringNullEnded()
	}

	if packet.truncated() {
		return nil, fmt.Errorf("handshake: truncated response packet")
	}
	return hsr, nil
}
