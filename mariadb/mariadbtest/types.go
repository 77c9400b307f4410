package mariadbtest

// FieldType is the column type byte of a column definition packet.
// See https://mariadb.com/kb/en/result-set-packets/#field-types
type FieldType uint8

const (
	MYSQL_TYPE_DECIMAL    FieldType = 0
	MYSQL_TYPE_TINY       FieldType = 1
	MYSQL_TYPE_SHORT      FieldType = 2
	MYSQL_TYPE_LONG       FieldType = 3
	MYSQL_TYPE_FLOAT      FieldType = 4
	MYSQL_TYPE_DOUBLE     FieldType = 5
	MYSQL_TYPE_NULL       FieldType = 6
	MYSQL_TYPE_TIMESTAMP  FieldType = 7
	MYSQL_TYPE_LONGLONG   FieldType = 8
	MYSQL_TYPE_INT24      FieldType = 9
	MYSQL_TYPE_DATE       FieldType = 10
	MYSQL_TYPE_VARCHAR    FieldType = 15
	MYSQL_TYPE_NEWDECIMAL FieldType = 246
	MYSQL_TYPE_BLOB       FieldType = 252
	MYSQL_TYPE_VAR_STRING FieldType = 253
	MYSQL_TYPE_STRING     FieldType = 254
)

const (
	FIELD_FLAG_NOT_NULL uint16 = 1
	FIELD_FLAG_BLOB     uint16 = 16
	FIELD_FLAG_UNSIGNED uint16 = 32
	FIELD_FLAG_NUM_FLAG uint16 = 32768
)

const (
	charsetUTF8   = 33
	charsetBinary = 63
)

func (t FieldType) numeric() bool {
	switch t {
	case MYSQL_TYPE_DECIMAL, MYSQL_TYPE_TINY, MYSQL_TYPE_SHORT, MYSQL_TYPE_LONG,
		MYSQL_TYPE_FLOAT, MYSQL_TYPE_DOUBLE, MYSQL_TYPE_LONGLONG, MYSQL_TYPE_INT24,
		MYSQL_TYPE_NEWDECIMAL:
		return true
	}
	return false
}

// Column is one column of a scripted table.
type Column struct {
	Name     string
	Type     FieldType
	Nullable bool
	Unsigned bool
}

// Table is a scripted result set served for SELECT * FROM <table>. Row
// values may be nil (NULL), strings, byte slices or anything fmt prints.
type Table struct {
	Columns []Column
	Rows    [][]any
}

// Schema maps table names to their contents.
type Schema map[string]Table

// Server error numbers returned by the test server.
// See https://mariadb.com/kb/en/mariadb-error-codes/
const (
	ER_UNKNOWN_COM_ERROR   = 1047
	ER_ACCESS_DENIED_ERROR = 1045
	ER_NO_DB_ERROR         = 1046
	ER_BAD_DB_ERROR        = 1049
	ER_PARSE_ERROR         = 1064
	ER_NO_SUCH_TABLE       = 1146
	ER_HANDSHAKE_ERROR     = 1043
	ER_NOT_SUPPORTED_AUTH  = 1251
)

// ServerError is sent to the client as an ERR packet.
type ServerError struct {
	Code    uint16
	State   string
	Message string
}

func (e *ServerError) Error() string {
	return e.Message
}
