// Package ledger persists imported transactions in a SQLite database.
package ledger

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/stmtimport/internal/logger"
	"github.com/cleared-dev/stmtimport/internal/model"
)

const schema = `CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	transaction_date TEXT NOT NULL,
	label TEXT NOT NULL,
	amount TEXT NOT NULL,
	currency TEXT NOT NULL,
	jar TEXT,
	account TEXT,
	method TEXT,
	valeur TEXT,
	quantite_crypto TEXT,
	taux_usd_eur TEXT,
	adresse_crypto TEXT,
	compte_destination TEXT,
	type TEXT,
	original_amount TEXT,
	original_currency TEXT,
	conversion_rate TEXT,
	conversion_note TEXT,
	imported_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_transactions_kind_date ON transactions (kind, transaction_date);`

// Store is a SQLite-backed ledger.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger tables: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// TransactionID hashes the identifying fields of tx. occurrence separates
// identical lines within one batch (two coffees on the same day).
func TransactionID(tx model.Transaction, occurrence int) string {
	key := strings.Join([]string{
		string(tx.Kind()),
		tx.Date,
		tx.LedgerAmount().StringFixed(2),
		tx.Currency,
		tx.Label(),
		fmt.Sprint(occurrence),
	}, "|")
	return fmt.Sprintf("%x", sha256.Sum256([]byte(key)))
}

// Import implements review.Sink.
func (s *Store) Import(ctx context.Context, txns []model.Transaction, kind model.Kind) error {
	_, err := s.Insert(ctx, txns, kind)
	return err
}

// Insert writes txns in one database transaction and returns how many rows
// were new. Rows already present (same content hash) are skipped.
func (s *Store) Insert(ctx context.Context, txns []model.Transaction, kind model.Kind) (int, error) {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning ledger transaction: %w", err)
	}
	defer dbtx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := dbtx.PrepareContext(ctx, `INSERT OR IGNORE INTO transactions (
		id, kind, transaction_date, label, amount, currency, jar, account, method, valeur,
		quantite_crypto, taux_usd_eur, adresse_crypto, compte_destination, type,
		original_amount, original_currency, conversion_rate, conversion_note
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	seen := make(map[string]int)
	added := 0
	for i, tx := range txns {
		if tx.Kind() != kind {
			return 0, fmt.Errorf("transaction %d is %s, batch is %s", i, tx.Kind(), kind)
		}
		base := TransactionID(tx, 0)
		occurrence := seen[base]
		seen[base]++

		var jar, account string
		if tx.Spending != nil {
			jar, account = string(tx.Spending.SuggestedJar), tx.Spending.SuggestedAccount
		}
		var r model.Revenue
		if tx.Revenue != nil {
			r = *tx.Revenue
		}

		res, err := stmt.ExecContext(ctx,
			TransactionID(tx, occurrence), string(kind), tx.Date, tx.Label(), tx.LedgerAmount().StringFixed(2), tx.Currency,
			nullable(jar), nullable(account), nullable(r.SuggestedMethod), nullable(r.Valeur),
			nullable(r.QuantiteCrypto), nullable(r.TauxUSDEUR), nullable(r.AdresseCrypto), nullable(r.CompteDestination), nullable(r.Type),
			originalAmount(tx), nullable(tx.OriginalCurrency), decimalOrNull(tx.ConversionRate), stringOrNull(tx.ConversionNote),
		)
		if err != nil {
			return 0, fmt.Errorf("inserting transaction %d: %w", i, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("inserting transaction %d: %w", i, err)
		}
		added += int(n)
	}

	if err := dbtx.Commit(); err != nil {
		return 0, fmt.Errorf("committing ledger transaction: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Int("added", added).
		Int("skipped", len(txns)-added).
		Str("kind", string(kind)).
		Msg("ledger updated")
	return added, nil
}

// List returns the stored transactions of kind ordered by date.
func (s *Store) List(ctx context.Context, kind model.Kind) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT transaction_date, label, amount, currency,
		COALESCE(jar, ''), COALESCE(account, ''), COALESCE(method, ''), COALESCE(valeur, ''),
		COALESCE(quantite_crypto, ''), COALESCE(taux_usd_eur, ''), COALESCE(adresse_crypto, ''),
		COALESCE(compte_destination, ''), COALESCE(type, ''),
		original_amount, COALESCE(original_currency, ''), conversion_rate, conversion_note
		FROM transactions WHERE kind = ? ORDER BY transaction_date, rowid`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("querying ledger: %w", err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		var (
			date, label, amount, currency string
			sp                            model.Spending
			r                             model.Revenue
			origAmount, rate, note        sql.NullString
			origCurrency                  string
			jar                           string
		)
		if err := rows.Scan(&date, &label, &amount, &currency,
			&jar, &sp.SuggestedAccount, &r.SuggestedMethod, &r.Valeur,
			&r.QuantiteCrypto, &r.TauxUSDEUR, &r.AdresseCrypto,
			&r.CompteDestination, &r.Type,
			&origAmount, &origCurrency, &rate, &note,
		); err != nil {
			return nil, fmt.Errorf("scanning ledger row: %w", err)
		}

		amt, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parsing stored amount %q: %w", amount, err)
		}

		var tx model.Transaction
		if kind == model.KindRevenue {
			r.SuggestedSource = label
			tx = model.NewRevenue(date, amt, currency, r)
		} else {
			sp.Description = label
			sp.SuggestedJar = model.Jar(jar)
			tx = model.NewSpending(date, amt, currency, sp)
		}
		tx.Selected = true
		tx.OriginalCurrency = origCurrency
		if origAmount.Valid {
			if tx.OriginalAmount, err = decimal.NewFromString(origAmount.String); err != nil {
				return nil, fmt.Errorf("parsing stored original amount %q: %w", origAmount.String, err)
			}
		}
		if rate.Valid {
			d, err := decimal.NewFromString(rate.String)
			if err != nil {
				return nil, fmt.Errorf("parsing stored rate %q: %w", rate.String, err)
			}
			tx.ConversionRate = &d
		}
		if note.Valid {
			n := note.String
			tx.ConversionNote = &n
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading ledger rows: %w", err)
	}
	return out, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func stringOrNull(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func decimalOrNull(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func originalAmount(tx model.Transaction) any {
	if !tx.Converted() {
		return nil
	}
	return tx.OriginalAmount.StringFixed(2)
}
