package xrpl

import (
	"database/sql"
	"encoding/json"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

type SqliteStore struct {
	db *sql.DB
	mu sync.Mutex
}

var _ TransactionStore = &SqliteStore{}

// NewSqliteStore opens (creating when needed) the database at path. Use
// ":memory:" for a throwaway store.
func NewSqliteStore(path string) (store *SqliteStore, err error) {
	log.Info().Msgf("opening sqlite store at: '%s'", path)

	sqldb, err := sql.Open("sqlite3", path)
	if err != nil {
		err = errors.Wrap(err, "failed to open database")
		return
	}

	// A :memory: database only lives as long as its connection.
	sqldb.SetMaxOpenConns(1)

	if err = sqldb.Ping(); err != nil {
		_ = sqldb.Close()
		err = errors.Wrap(err, "failed to ping database")
		return
	}

	store = &SqliteStore{db: sqldb}
	if err = store.initTables(); err != nil {
		_ = sqldb.Close()
		store = nil
		err = errors.Wrap(err, "failed to init tables")
		return
	}

	return
}

func (s *SqliteStore) initTables() (err error) {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS account_tx (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			address TEXT NOT NULL,
			txhash TEXT NOT NULL,
			ledger_index INTEGER NOT NULL DEFAULT 0,
			body TEXT NOT NULL,
			UNIQUE (address, txhash)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_account_tx_address ON account_tx(address, ledger_index)`,
		`CREATE INDEX IF NOT EXISTS idx_account_tx_hash ON account_tx(txhash)`,
	}

	for i, query := range queries {
		_, err = s.db.Exec(query)
		if err != nil {
			err = errors.Wrapf(err, "failed to execute query: %d", i)
			return
		}
	}

	return
}

func (s *SqliteStore) AddTransactions(address string, txs ...Transaction) (added int, err error) {
	if len(txs) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dbtx, err := s.db.Begin()
	if err != nil {
		return 0, errors.WithStack(err)
	}
	defer dbtx.Rollback()

	stmt, err := dbtx.Prepare(`
		INSERT OR IGNORE INTO account_tx (address, txhash, ledger_index, body)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	defer stmt.Close()

	for _, tx := range txs {
		if tx.Hash == "" {
			return 0, errors.Errorf("transaction for %s has no hash", address)
		}

		body, err2 := json.Marshal(tx)
		if err2 != nil {
			return 0, errors.Wrapf(err2, "failed to marshal tx %s", tx.Hash)
		}

		res, err2 := stmt.Exec(address, tx.Hash, tx.LedgerIndex, string(body))
		if err2 != nil {
			return 0, errors.WithStack(err2)
		}

		n, err2 := res.RowsAffected()
		if err2 != nil {
			return 0, errors.WithStack(err2)
		}
		added += int(n)
	}

	if err = dbtx.Commit(); err != nil {
		return 0, errors.WithStack(err)
	}

	return
}

func (s *SqliteStore) GetTransactions(address string, limit int) (txs []Transaction, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.Query(`
		SELECT body
		FROM account_tx
		WHERE address = ?
		ORDER BY ledger_index DESC, seq DESC
		LIMIT ?`,
		address, limit)
	if err != nil {
		err = errors.Wrap(err, "failed to query transactions")
		return
	}
	defer rows.Close()

	txs = make([]Transaction, 0)
	for rows.Next() {
		var body string
		if err = rows.Scan(&body); err != nil {
			err = errors.Wrap(err, "failed to scan row")
			return
		}

		var tx Transaction
		if err = json.Unmarshal([]byte(body), &tx); err != nil {
			err = errors.Wrap(err, "failed to unmarshal stored tx")
			return
		}
		txs = append(txs, tx)
	}

	if err = rows.Err(); err != nil {
		err = errors.Wrap(err, "error during row iteration")
		return
	}

	return
}

func (s *SqliteStore) GetTransaction(hash string) (tx Transaction, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var body string
	err = s.db.QueryRow("SELECT body FROM account_tx WHERE txhash = ? LIMIT 1", hash).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		err = errors.Wrapf(ErrTransactionNotFound, "tx not found by hash %s", hash)
		return
	}
	if err != nil {
		err = errors.WithStack(err)
		return
	}

	err = errors.Wrap(json.Unmarshal([]byte(body), &tx), "failed to unmarshal stored tx")
	return
}

func (s *SqliteStore) Close() error {
	return errors.WithStack(s.db.Close())
}
