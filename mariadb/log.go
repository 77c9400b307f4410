package mariadb

import (
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/golang/glog"
)

// driverLogger routes go-sql-driver/mysql diagnostics (dropped
// connections, malformed packets) into glog.
type driverLogger struct{}

func (driverLogger) Print(v ...any) {
	glog.WarningDepth(1, "mysql driver: "+fmt.Sprint(v...))
}

func init() {
	_ = mysql.SetLogger(driverLogger{})
}
