package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/erazemk/zemljevid/internal/model"
)

const accountColumns = `id, user_name, email, password_hash, role, created_at`

func scanAccount(row rowScanner) (*model.Account, error) {
	a := &model.Account{}
	err := row.Scan(&a.ID, &a.DisplayName, &a.Email, &a.PasswordHash, &a.Role, sqlTime{&a.CreatedAt})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *SQLite) queryAccount(ctx context.Context, op, query string, args ...any) (*model.Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if isUniqueViolation(err) {
		return nil, &DuplicateError{Field: "email", Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

func (s *SQLite) queryAccounts(ctx context.Context, op, query string, args ...any) ([]model.Account, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// CreateAccount creates a new account.
func (s *SQLite) CreateAccount(ctx context.Context, acc *model.Account) (*model.Account, error) {
	return s.queryAccount(ctx, "creating account",
		`INSERT INTO accounts (id, user_name, email, password_hash, role) VALUES (?, ?, ?, ?, ?)
		 RETURNING `+accountColumns,
		uuid.NewString(), acc.DisplayName, acc.Email, acc.PasswordHash, acc.Role,
	)
}

// GetAccount returns an account by ID.
func (s *SQLite) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return s.queryAccount(ctx, "getting account",
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
}

// GetAccountByEmail returns an account by email.
func (s *SQLite) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	return s.queryAccount(ctx, "getting account by email",
		`SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email)
}

// FindAccountsByName returns all accounts with the given display name.
func (s *SQLite) FindAccountsByName(ctx context.Context, name string) ([]model.Account, error) {
	return s.queryAccounts(ctx, "finding accounts by name",
		`SELECT `+accountColumns+` FROM accounts WHERE user_name = ? ORDER BY created_at`, name)
}

// ListAccounts returns all accounts.
func (s *SQLite) ListAccounts(ctx context.Context) ([]model.Account, error) {
	return s.queryAccounts(ctx, "listing accounts",
		`SELECT `+accountColumns+` FROM accounts ORDER BY created_at, user_name`)
}

// UpdateAccount applies the fields present in patch.
func (s *SQLite) UpdateAccount(ctx context.Context, id string, patch model.AccountPatch) (*model.Account, error) {
	if patch.Empty() {
		return s.GetAccount(ctx, id)
	}

	var sets []string
	var args []any
	set := func(column string, value *string) {
		if value != nil {
			sets = append(sets, column+" = ?")
			args = append(args, *value)
		}
	}
	set("user_name", patch.DisplayName)
	set("email", patch.Email)
	set("password_hash", patch.PasswordHash)
	set("role", patch.Role)

	return s.queryAccount(ctx, "updating account",
		`UPDATE accounts SET `+strings.Join(sets, ", ")+` WHERE id = ? RETURNING `+accountColumns,
		append(args, id)...,
	)
}

// DeleteAccount removes an account and returns it.
func (s *SQLite) DeleteAccount(ctx context.Context, id string) (*model.Account, error) {
	return s.queryAccount(ctx, "deleting account",
		`DELETE FROM accounts WHERE id = ? RETURNING `+accountColumns, id)
}

// CountAccounts returns the number of accounts.
func (s *SQLite) CountAccounts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting accounts: %w", err)
	}
	return n, nil
}
