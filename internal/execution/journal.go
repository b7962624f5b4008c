package execution

import (
	"database/sql"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"alphabot/internal/model"
)

// Journal persists executed trades to SQLite for analysis and audit.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// NewJournal opens (or creates) a SQLite journal database.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS trades (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		trade_id     TEXT NOT NULL UNIQUE,
		action       TEXT NOT NULL,
		price        REAL NOT NULL,
		rsi          REAL,
		amount       TEXT NOT NULL,
		result_ref   TEXT NOT NULL,
		rationale    TEXT,
		forced       INTEGER DEFAULT 0,
		executed_at  DATETIME NOT NULL,
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_trades_action ON trades(action);
	CREATE INDEX IF NOT EXISTS idx_trades_executed_at ON trades(executed_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[journal] opened trade journal at %s", dbPath)
	return &Journal{db: db}, nil
}

// Record persists a trade record to the journal.
func (j *Journal) Record(tr model.TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	forced := 0
	if tr.Forced {
		forced = 1
	}
	_, err := j.db.Exec(
		`INSERT INTO trades (trade_id, action, price, rsi, amount, result_ref, rationale, forced, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.ID,
		string(tr.Action),
		tr.Price,
		tr.RSIAtTrade,
		tr.Amount,
		tr.ResultRef,
		tr.Rationale,
		forced,
		tr.TS.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// GetTrades returns the last N trades, newest first.
func (j *Journal) GetTrades(limit int) ([]model.TradeRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT trade_id, action, price, rsi, amount, result_ref, rationale, forced, executed_at
		 FROM trades ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []model.TradeRecord
	for rows.Next() {
		var (
			t        model.TradeRecord
			action   string
			forced   int
			executed string
		)
		if err := rows.Scan(&t.ID, &action, &t.Price, &t.RSIAtTrade, &t.Amount,
			&t.ResultRef, &t.Rationale, &forced, &executed); err != nil {
			continue
		}
		t.Action = model.Action(action)
		t.Forced = forced == 1
		t.TS, _ = time.Parse(time.RFC3339Nano, executed)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
