package database

import (
	"database/sql"
	"fmt"
	"log"
)

// Ledger tables reference accounts with ON DELETE RESTRICT so an account with
// history cannot disappear underneath its entries.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		username VARCHAR(64) NOT NULL UNIQUE,
		email VARCHAR(255) NOT NULL UNIQUE,
		first_name VARCHAR(100) NOT NULL DEFAULT '',
		last_name VARCHAR(100) NOT NULL DEFAULT '',
		password VARCHAR(255) NOT NULL,
		role VARCHAR(16) NOT NULL DEFAULT 'User',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		id SERIAL PRIMARY KEY,
		account_number VARCHAR(34) NOT NULL UNIQUE,
		balance NUMERIC(18,2) NOT NULL DEFAULT 0,
		account_type VARCHAR(32) NOT NULL,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_accounts_user_id ON accounts(user_id)`,
	`CREATE TABLE IF NOT EXISTS bill_payments (
		id SERIAL PRIMARY KEY,
		account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE RESTRICT,
		amount NUMERIC(18,2) NOT NULL CHECK (amount > 0),
		payment_date TIMESTAMPTZ NOT NULL,
		biller VARCHAR(128) NOT NULL,
		reference_number VARCHAR(64) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS credit_cards (
		id SERIAL PRIMARY KEY,
		card_number VARCHAR(19) NOT NULL UNIQUE,
		credit_limit NUMERIC(18,2) NOT NULL CHECK (credit_limit >= 0),
		current_balance NUMERIC(18,2) NOT NULL DEFAULT 0,
		account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE RESTRICT,
		expiry_date DATE NOT NULL,
		card_type VARCHAR(32) NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		CHECK (current_balance <= credit_limit)
	)`,
	`CREATE TABLE IF NOT EXISTS card_events (
		id SERIAL PRIMARY KEY,
		card_id INTEGER NOT NULL REFERENCES credit_cards(id) ON DELETE RESTRICT,
		account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE RESTRICT,
		event_type VARCHAR(16) NOT NULL,
		amount NUMERIC(18,2) NOT NULL,
		balance_after NUMERIC(18,2) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS loans (
		id SERIAL PRIMARY KEY,
		account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE RESTRICT,
		loan_amount NUMERIC(18,2) NOT NULL CHECK (loan_amount > 0),
		interest_rate NUMERIC(7,4) NOT NULL CHECK (interest_rate >= 0),
		start_date DATE NOT NULL,
		end_date DATE NOT NULL,
		remaining_amount NUMERIC(18,2) NOT NULL,
		is_paid_off BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS investments (
		id SERIAL PRIMARY KEY,
		account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE RESTRICT,
		investment_amount NUMERIC(18,2) NOT NULL CHECK (investment_amount > 0),
		investment_type VARCHAR(64) NOT NULL,
		current_value NUMERIC(18,2) NOT NULL,
		investment_date TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS transfers (
		id SERIAL PRIMARY KEY,
		account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE RESTRICT,
		name VARCHAR(128) NOT NULL,
		from_account_number VARCHAR(34) NOT NULL,
		to_account_number VARCHAR(34) NOT NULL,
		amount NUMERIC(18,2) NOT NULL CHECK (amount > 0),
		transfer_date TIMESTAMPTZ NOT NULL,
		reference VARCHAR(140) NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transfers_account_id ON transfers(account_id)`,
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	log.Printf("Schema applied (%d statements)", len(schema))
	return nil
}
