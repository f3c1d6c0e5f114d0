package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB implementation of Store.
//
// Use it when several developers or dashboards inspect the same journals.
//
// The DSN format is:
//
//	[username[:password]@][protocol[(address)]]/dbname[?param1=value1&...]
//
// Never hardcode credentials; read the DSN from the environment or the
// hotsteps configuration (journal.dsn / HOTSTEPS_JOURNAL_DSN).
//
// Example:
//
//	journal, err := store.NewMySQLStore(os.Getenv("HOTSTEPS_JOURNAL_DSN"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer journal.Close()
type MySQLStore struct {
	sqlJournal
}

// NewMySQLStore connects to dsn, verifies the connection and migrates the
// schema.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	s := &MySQLStore{sqlJournal: sqlJournal{db: db}}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *MySQLStore) createTables(ctx context.Context) error {
	table := `
		CREATE TABLE IF NOT EXISTS step_transitions (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			run_id VARCHAR(255) NOT NULL,
			seq BIGINT NOT NULL,
			step_index INT NOT NULL,
			step_id VARCHAR(255) NOT NULL,
			state VARCHAR(32) NOT NULL,
			cursor_index INT NOT NULL,
			at_unix_nano BIGINT NOT NULL,
			INDEX idx_run_seq (run_id, seq)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	_, err := s.db.ExecContext(ctx, table)
	return err
}
