// Package capabilities holds the client/server capability flags exchanged
// during the MySQL handshake.
//
// See https://mariadb.com/kb/en/connection/#capabilities
package capabilities

// Flags is a capability bit set. MariaDB extends the 32 bit MySQL set into
// the upper half of a 64 bit value.
type Flags uint64

const (
	// MYSQL is CLIENT_LONG_PASSWORD on MySQL; MariaDB servers leave it unset.
	MYSQL Flags = 1
	/* Found instead of affected rows */
	FOUND_ROWS Flags = 1 << 1
	/* get all column flags */
	LONG_FLAG Flags = 1 << 2
	/* one can specify db on connect */
	CONNECT_WITH_DB Flags = 1 << 3
	/* can use LOAD DATA LOCAL */
	LOCAL_FILES Flags = 1 << 7
	/* new 4.1 protocol */
	PROTOCOL_41 Flags = 1 << 9
	/* switch to ssl after handshake */
	SSL Flags = 1 << 11
	/* client knows about transactions */
	TRANSACTIONS Flags = 1 << 13
	/* new 4.1 authentication */
	SECURE_CONNECTION Flags = 1 << 15
	MULTI_STATEMENTS  Flags = 1 << 16
	MULTI_RESULTS     Flags = 1 << 17
	PS_MULTI_RESULTS  Flags = 1 << 18
	/* client supports plugin authentication */
	PLUGIN_AUTH   Flags = 1 << 19
	CONNECT_ATTRS Flags = 1 << 20
	/* authentication response may be longer than 255 bytes */
	PLUGIN_AUTH_LENENC_CLIENT_DATA Flags = 1 << 21
	/* client no longer needs EOF packet */
	DEPRECATE_EOF Flags = 1 << 24
)

// SERVER is what the test server advertises. DEPRECATE_EOF and SSL are left
// out so clients fall back to classic EOF terminated result sets over plain
// TCP.
const SERVER = MYSQL |
	FOUND_ROWS |
	LONG_FLAG |
	CONNECT_WITH_DB |
	PROTOCOL_41 |
	TRANSACTIONS |
	SECURE_CONNECTION |
	MULTI_RESULTS |
	PLUGIN_AUTH

// Has reports whether every bit of want is set.
func (f Flags) Has(want Flags) bool {
	return f&want == want
}

// Lower returns the low 16 bits sent in the first capability field of the
// initial handshake.
func (f Flags) Lower() uint16 {
	return uint16(f & 0xffff)
}

// Upper returns bits 16..31 sent after the status flags.
func (f Flags) Upper() uint16 {
	return uint16((f >> 16) & 0xffff)
}
