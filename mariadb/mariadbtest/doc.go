/*
Package mariadbtest runs a small MySQL wire-protocol server inside the test
process, so the real driver can be exercised without a database.

The server speaks protocol version 10 with mysql_native_password and
answers with classic EOF terminated text result sets. It serves
scripted tables for SELECT * FROM <table> (optionally schema qualified)
and replies to every other statement with a syntax error.

	svr, _ := mariadbtest.NewServer(mariadbtest.Config{
	  Username: "genome",
	  Databases: map[string]mariadbtest.Schema{
	    "mm9": {"knownCanonical": mariadbtest.Table{
	      Columns: []mariadbtest.Column{{Name: "chrom", Type: mariadbtest.MYSQL_TYPE_VAR_STRING}},
	      Rows:    [][]any{{"chr1"}, {"chr2"}},
	    }},
	  },
	})
	defer svr.Close()

Errors

  - Wrong user or password: 1045 (28000)
  - Unknown schema at connect or COM_INIT_DB: 1049 (42000)
  - Unknown table: 1146 (42S02)
  - Anything but SELECT * FROM <table>: 1064 (42000)
*/
package mariadbtest
