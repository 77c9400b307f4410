package runner

import (
	"context"

	"github.com/botanyhelp/Ucscquery/mariadb"
)

// Dialer returns a DialFunc that opens a MySQL/MariaDB session with cfg.
func Dialer(cfg mariadb.Config) DialFunc {
	return func(ctx context.Context) (Session, error) {
		conn, err := mariadb.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &session{conn: conn}, nil
	}
}

type session struct {
	conn *mariadb.Connection
}

func (s *session) Execute(ctx context.Context, statement string) (Cursor, error) {
	cursor, err := s.conn.Query(ctx, statement)
	if err != nil {
		return nil, err
	}
	return cursor, nil
}

func (s *session) Close() error {
	return s.conn.Close()
}
