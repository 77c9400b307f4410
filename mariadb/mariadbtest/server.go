package mariadbtest

import (
	"bufio"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
	"github.com/juju/errors"
)

const (
	COM_QUIT    = 0x01
	COM_INIT_DB = 0x02
	COM_QUERY   = 0x03
	COM_PING    = 0x0e
)

const (
	defaultReaderSize = 16 * 1024
	defaultWriterSize = 16 * 1024
)

var selectAll = regexp.MustCompile("(?i)^\\s*select\\s+\\*\\s+from\\s+(?:`?(\\w+)`?\\.)?`?(\\w+)`?\\s*;?\\s*$")

// Config scripts the server.
type Config struct {
	// Username is the only principal accepted. Empty accepts anyone.
	Username string

	// Password is checked with mysql_native_password. Empty requires an
	// empty auth token, the way anonymous public servers behave.
	Password string

	// Databases maps schema names to their tables.
	Databases map[string]Schema
}

// Server is an in-process MySQL server for tests. It answers the initial
// handshake, COM_QUERY for SELECT * FROM <table>, COM_INIT_DB, COM_PING
// and COM_QUIT.
type Server struct {
	cfg      Config
	listener net.Listener
	connID   atomic.Uint32
	wg       sync.WaitGroup

	mu      sync.Mutex
	clients map[uint32]net.Conn
	queries []string
	closed  bool
}

// NewServer starts serving on a loopback port.
func NewServer(cfg Config) (*Server, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, errors.Trace(err)
	}
	svr := &Server{
		cfg:      cfg,
		listener: listener,
		clients:  make(map[uint32]net.Conn),
	}
	svr.wg.Add(1)
	go svr.serve()
	return svr, nil
}

// Addr returns the host:port the server listens on.
func (svr *Server) Addr() string {
	return svr.listener.Addr().String()
}

// Queries returns every COM_QUERY statement received so far, in order.
func (svr *Server) Queries() []string {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	return append([]string(nil), svr.queries...)
}

// Close stops accepting, drops open sessions and waits for them to finish.
func (svr *Server) Close() error {
	svr.mu.Lock()
	if svr.closed {
		svr.mu.Unlock()
		return nil
	}
	svr.closed = true
	err := svr.listener.Close()
	for _, c := range svr.clients {
		_ = c.Close()
	}
	svr.mu.Unlock()

	svr.wg.Wait()
	return err
}

func (svr *Server) serve() {
	defer svr.wg.Done()
	for {
		c, err := svr.listener.Accept()
		if err != nil {
			svr.mu.Lock()
			closed := svr.closed
			svr.mu.Unlock()
			if !closed {
				glog.Errorf("mariadbtest: accept: %v", err)
			}
			return
		}

		cc := svr.newClientConn(c)
		svr.mu.Lock()
		if svr.closed {
			svr.mu.Unlock()
			_ = c.Close()
			return
		}
		svr.clients[cc.connid] = c
		svr.mu.Unlock()

		svr.wg.Add(1)
		go func() {
			defer svr.wg.Done()
			cc.run()
		}()
	}
}

func (svr *Server) newClientConn(c net.Conn) *clientConn {
	return &clientConn{
		svr:    svr,
		conn:   c,
		connid: svr.connID.Add(1),
		salt:   randomBuf(scrambleLength),
		rb:     bufio.NewReaderSize(c, defaultReaderSize),
		wb:     bufio.NewWriterSize(c, defaultWriterSize),
	}
}

func (svr *Server) recordQuery(q string) {
	svr.mu.Lock()
	svr.queries = append(svr.queries, q)
	svr.mu.Unlock()
}

func (svr *Server) forget(connid uint32) {
	svr.mu.Lock()
	delete(svr.clients, connid)
	svr.mu.Unlock()
}

// randomBuf returns a scramble without NUL bytes, which the handshake
// uses as a terminator.
func randomBuf(size int) []byte {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = byte(rand.IntN(126) + 1)
	}
	return buf
}

type clientConn struct {
	svr      *Server
	conn     net.Conn
	connid   uint32
	salt     []byte
	database string

	rb       *bufio.Reader
	wb       *bufio.Writer
	sequence uint8
}

func (cc *clientConn) run() {
	defer func() {
		_ = cc.conn.Close()
		cc.svr.forget(cc.connid)
	}()

	if err := cc.handshake(); err != nil {
		glog.V(1).Infof("mariadbtest: connection %d handshake: %v", cc.connid, err)
		return
	}

	for {
		cc.sequence = 0
		packet, err := cc.readPacket()
		if err != nil {
			if err != io.EOF {
				glog.V(1).Infof("mariadbtest: connection %d read: %v", cc.connid, err)
			}
			return
		}
		quit, err := cc.dispatch(packet)
		if err != nil {
			glog.V(1).Infof("mariadbtest: connection %d write: %v", cc.connid, err)
			return
		}
		if quit {
			return
		}
	}
}

func (cc *clientConn) readOnePacket() (*Packet, error) {
	var header [4]byte
	if _, err := io.ReadFull(cc.rb, header[:]); err != nil {
		return nil, err
	}
	if header[3] != cc.sequence {
		return nil, fmt.Errorf("invalid sequence %d, want %d", header[3], cc.sequence)
	}
	cc.sequence++

	length := int(uint32(header[0]) | uint32(header[1])<<8 | uint32(header[2])<<16)
	body := make([]byte, length)
	if _, err := io.ReadFull(cc.rb, body); err != nil {
		return nil, err
	}
	return incomingPacket(header, body), nil
}

func (cc *clientConn) readPacket() (*Packet, error) {
	packet, err := cc.readOnePacket()
	if err != nil {
		return nil, err
	}
	for length := packet.bodyLength(); length == maxPayloadLen; {
		next, err := cc.readOnePacket()
		if err != nil {
			return nil, err
		}
		packet.writeBytes(next.body())
		length = next.bodyLength()
	}
	return packet, nil
}

func (cc *clientConn) writePacket(packet *Packet) error {
	packet.setSequence(cc.sequence)
	cc.sequence++
	_, err := cc.wb.Write(packet.bytes())
	return err
}

func (cc *clientConn) writeError(e *ServerError) error {
	if err := cc.writePacket(createErrorPacket(e)); err != nil {
		return err
	}
	return cc.wb.Flush()
}

func (cc *clientConn) writeOK() error {
	if err := cc.writePacket(createOKPacket()); err != nil {
		return err
	}
	return cc.wb.Flush()
}

func (cc *clientConn) handshake() error {
	if err := cc.writePacket(createHandshakeRequestPacket(cc.connid, cc.salt)); err != nil {
		return err
	}
	if err := cc.wb.Flush(); err != nil {
		return err
	}

	packet, err := cc.readPacket()
	if err != nil {
		return err
	}
	response, err := parseHandshakeResponse(packet)
	if err != nil {
		_ = cc.writeError(&ServerError{Code: ER_HANDSHAKE_ERROR, State: "08S01", Message: "Bad handshake"})
		return err
	}

	if e := cc.authenticate(response); e != nil {
		_ = cc.writeError(e)
		return e
	}
	cc.database = response.database
	glog.V(1).Infof("mariadbtest: connection %d authenticated as %q, schema %q", cc.connid, response.username, cc.database)
	return cc.writeOK()
}

func (cc *clientConn) authenticate(response *HandshakeResponse) *ServerError {
	if response.pluginName != "" && response.pluginName != nativePasswordAuth {
		return &ServerError{
			Code:    ER_NOT_SUPPORTED_AUTH,
			State:   "08004",
			Message: fmt.Sprintf("Plugin '%s' is not supported", response.pluginName),
		}
	}

	cfg := cc.svr.cfg
	want := hashPassword(cfg.Password, cc.salt)
	if (cfg.Username != "" && response.username != cfg.Username) || string(response.authToken) != string(want) {
		using := "NO"
		if len(response.authToken) > 0 {
			using = "YES"
		}
		return &ServerError{
			Code:    ER_ACCESS_DENIED_ERROR,
			State:   "28000",
			Message: fmt.Sprintf("Access denied for user '%s'@'localhost' (using password: %s)", response.username, using),
		}
	}

	if response.database != "" {
		if _, ok := cfg.Databases[response.database]; !ok {
			return unknownDatabase(response.database)
		}
	}
	return nil
}

func (cc *clientConn) dispatch(packet *Packet) (bool, error) {
	switch command := packet.readUInt8(); command {
	case COM_QUIT:
		return true, nil
	case COM_PING:
		return false, cc.writeOK()
	case COM_INIT_DB:
		name := string(packet.readBytesRest())
		if _, ok := cc.svr.cfg.Databases[name]; !ok {
			return false, cc.writeError(unknownDatabase(name))
		}
		cc.database = name
		return false, cc.writeOK()
	case COM_QUERY:
		query := strings.TrimRight(string(packet.readBytesRest()), "\x00")
		cc.svr.recordQuery(query)
		return false, cc.handleQuery(query)
	default:
		return false, cc.writeError(&ServerError{
			Code:    ER_UNKNOWN_COM_ERROR,
			State:   "08S01",
			Message: fmt.Sprintf("Unknown command %#x", command),
		})
	}
}

func (cc *clientConn) handleQuery(query string) error {
	m := selectAll.FindStringSubmatch(query)
	if m == nil {
		return cc.writeError(&ServerError{
			Code:    ER_PARSE_ERROR,
			State:   "42000",
			Message: fmt.Sprintf("You have an error in your SQL syntax near '%s'", query),
		})
	}

	schemaName, tableName := m[1], m[2]
	if schemaName == "" {
		schemaName = cc.database
	}
	if schemaName == "" {
		return cc.writeError(&ServerError{Code: ER_NO_DB_ERROR, State: "3D000", Message: "No database selected"})
	}
	table, ok := cc.svr.cfg.Databases[schemaName][tableName]
	if !ok {
		return cc.writeError(&ServerError{
			Code:    ER_NO_SUCH_TABLE,
			State:   "42S02",
			Message: fmt.Sprintf("Table '%s.%s' doesn't exist", schemaName, tableName),
		})
	}
	return cc.writeResultSet(schemaName, tableName, table)
}

// writeResultSet sends a text protocol result set: column count, column
// definitions, EOF, rows, EOF.
func (cc *clientConn) writeResultSet(schema, name string, table Table) error {
	packets := []*Packet{createColumnCountPacket(len(table.Columns))}
	for _, column := range table.Columns {
		packets = append(packets, createColumnDefinitionPacket(schema, name, column))
	}
	packets = append(packets, createEOFPacket())
	for _, row := range table.Rows {
		packets = append(packets, createTextRowPacket(row))
	}
	packets = append(packets, createEOFPacket())

	for _, p := range packets {
		if err := cc.writePacket(p); err != nil {
			return err
		}
	}
	return cc.wb.Flush()
}

func unknownDatabase(name string) *ServerError {
	return &ServerError{
		Code:    ER_BAD_DB_ERROR,
		State:   "42000",
		Message: fmt.Sprintf("Unknown database '%s'", name),
	}
}
