package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"
)

// dialect captures the differences between the supported backends.
type dialect struct {
	name   string
	driver string

	// schema holds statements run one by one on startup; each is idempotent.
	schema []string

	// forUpdate is appended to row reads that must block concurrent writers.
	forUpdate string

	// singleWriter pins the pool to one connection.
	singleWriter bool

	// txOptions are passed to BeginTx. Rows read after the group lock must
	// see the latest committed state, so MySQL runs READ COMMITTED.
	txOptions *sql.TxOptions
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverSQLite, "":
		return sqliteDialect, nil
	case DriverMySQL:
		return mysqlDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// dsn normalizes a user-supplied DSN for the driver.
// A bare SQLite path gets the pragmas the store relies on.
func (d dialect) dsn(dsn string) string {
	if d.name == DriverMySQL {
		if strings.Contains(dsn, "clientFoundRows") {
			return dsn
		}
		if strings.Contains(dsn, "?") {
			return dsn + "&clientFoundRows=true"
		}
		return dsn + "?clientFoundRows=true"
	}
	if strings.Contains(dsn, "?") {
		return dsn
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	return dsn + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB, d dialect) error {
	for _, stmt := range d.schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("%s: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return stmt[:i]
	}
	return stmt
}

// Money columns are TEXT in SQLite so decimal values round-trip exactly.
// IMPORTANT: ledger_groups must be created before the tables referencing it.
var sqliteDialect = dialect{
	name:         DriverSQLite,
	driver:       "sqlite",
	singleWriter: true,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS ledger_groups (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    created_by TEXT NOT NULL,
    total_balance TEXT NOT NULL DEFAULT '0',
    custom_split_ratio INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS group_members (
    group_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    balance TEXT NOT NULL DEFAULT '0',
    role TEXT NOT NULL,
    split_percent TEXT,
    joined_at INTEGER NOT NULL,
    join_seq INTEGER NOT NULL,
    PRIMARY KEY (group_id, user_id),
    FOREIGN KEY (group_id) REFERENCES ledger_groups(id) ON DELETE CASCADE
)`,
		`CREATE TABLE IF NOT EXISTS expenses (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL,
    description TEXT NOT NULL,
    amount TEXT NOT NULL,
    date INTEGER NOT NULL,
    paid_by TEXT NOT NULL,
    split_type TEXT NOT NULL,
    note TEXT,
    status TEXT NOT NULL,
    cleared INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (group_id) REFERENCES ledger_groups(id) ON DELETE CASCADE
)`,
		`CREATE TABLE IF NOT EXISTS expense_splits (
    expense_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    amount TEXT NOT NULL,
    settled INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (expense_id, user_id),
    FOREIGN KEY (expense_id) REFERENCES expenses(id) ON DELETE CASCADE
)`,
		`CREATE TABLE IF NOT EXISTS invitations (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL,
    email TEXT NOT NULL,
    invited_by TEXT NOT NULL,
    status TEXT NOT NULL,
    expires_at INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (group_id) REFERENCES ledger_groups(id) ON DELETE CASCADE
)`,
		`CREATE INDEX IF NOT EXISTS idx_group_members_user_id ON group_members(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_expenses_group_status ON expenses(group_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_invitations_group_email ON invitations(group_id, email)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_invitations_one_pending ON invitations(group_id, email) WHERE status = 'pending'`,
	},
}

// MySQL has no partial indexes; one pending invitation per (group, email)
// is kept by the group row lock taken in every invite transaction.
var mysqlDialect = dialect{
	name:      DriverMySQL,
	driver:    "mysql",
	forUpdate: " FOR UPDATE",
	txOptions: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
	schema: []string{
		`CREATE TABLE IF NOT EXISTS users (
    id VARCHAR(36) PRIMARY KEY,
    email VARCHAR(320) NOT NULL UNIQUE,
    display_name VARCHAR(255) NOT NULL,
    password_hash VARCHAR(255) NOT NULL,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS ledger_groups (
    id VARCHAR(36) PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    description TEXT,
    created_by VARCHAR(36) NOT NULL,
    total_balance DECIMAL(18,2) NOT NULL DEFAULT 0,
    custom_split_ratio BOOLEAN NOT NULL DEFAULT FALSE,
    created_at BIGINT NOT NULL
) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS group_members (
    group_id VARCHAR(36) NOT NULL,
    user_id VARCHAR(36) NOT NULL,
    balance DECIMAL(18,2) NOT NULL DEFAULT 0,
    role VARCHAR(16) NOT NULL,
    split_percent DECIMAL(9,4),
    joined_at BIGINT NOT NULL,
    join_seq INT NOT NULL,
    PRIMARY KEY (group_id, user_id),
    INDEX idx_group_members_user_id (user_id),
    FOREIGN KEY (group_id) REFERENCES ledger_groups(id) ON DELETE CASCADE
) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS expenses (
    id VARCHAR(36) PRIMARY KEY,
    group_id VARCHAR(36) NOT NULL,
    description VARCHAR(1024) NOT NULL,
    amount DECIMAL(18,2) NOT NULL,
    date BIGINT NOT NULL,
    paid_by VARCHAR(36) NOT NULL,
    split_type VARCHAR(16) NOT NULL,
    note TEXT,
    status VARCHAR(16) NOT NULL,
    cleared BOOLEAN NOT NULL DEFAULT FALSE,
    created_at BIGINT NOT NULL,
    INDEX idx_expenses_group_status (group_id, status),
    FOREIGN KEY (group_id) REFERENCES ledger_groups(id) ON DELETE CASCADE
) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS expense_splits (
    expense_id VARCHAR(36) NOT NULL,
    user_id VARCHAR(36) NOT NULL,
    amount DECIMAL(18,2) NOT NULL,
    settled BOOLEAN NOT NULL DEFAULT FALSE,
    PRIMARY KEY (expense_id, user_id),
    FOREIGN KEY (expense_id) REFERENCES expenses(id) ON DELETE CASCADE
) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS invitations (
    id VARCHAR(36) PRIMARY KEY,
    group_id VARCHAR(36) NOT NULL,
    email VARCHAR(320) NOT NULL,
    invited_by VARCHAR(36) NOT NULL,
    status VARCHAR(16) NOT NULL,
    expires_at BIGINT NOT NULL,
    created_at BIGINT NOT NULL,
    INDEX idx_invitations_group_email (group_id, email),
    FOREIGN KEY (group_id) REFERENCES ledger_groups(id) ON DELETE CASCADE
) ENGINE=InnoDB`,
	},
}
