package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/aryan0dhankhar/landledger/internal/domain"
)

const uniqueViolation = "23505"

// PostgresStore implements domain.Store on PostgreSQL. Every Update runs in one
// sql.Tx; land writes are guarded by the version column.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a store over an open connection pool
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresStore{
		db:     db,
		logger: logger,
	}
}

// View runs fn in a read-only transaction
func (s *PostgresStore) View(ctx context.Context, fn func(tx domain.Tx) error) error {
	return s.run(ctx, &sql.TxOptions{ReadOnly: true}, fn)
}

// Update runs fn in a read-write transaction, committing only when fn succeeds
func (s *PostgresStore) Update(ctx context.Context, fn func(tx domain.Tx) error) error {
	return s.run(ctx, nil, fn)
}

func (s *PostgresStore) run(ctx context.Context, opts *sql.TxOptions, fn func(tx domain.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&pgTx{ctx: ctx, tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			s.logger.Error("failed to roll back transaction", slog.String("error", rbErr.Error()))
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	ctx context.Context
	tx  *sql.Tx
}

type rowScanner interface {
	Scan(dest ...any) error
}

const userColumns = `id, name, email, password_hash, role, created_at, updated_at`

func scanUser(row rowScanner) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

const landColumns = `id, title, area, address, city, state, country, pincode, coordinates, description,
	owner_id, owner_name, owner_email, status, verification_step, documents, certificate_id,
	registered_at, updated_at, version`

func scanLand(row rowScanner) (*domain.Land, error) {
	land := &domain.Land{}
	var documents pq.StringArray
	var certificate sql.NullString
	err := row.Scan(
		&land.ID,
		&land.Title,
		&land.Area,
		&land.Address,
		&land.City,
		&land.State,
		&land.Country,
		&land.Pincode,
		&land.Coordinates,
		&land.Description,
		&land.OwnerID,
		&land.OwnerName,
		&land.OwnerEmail,
		&land.Status,
		&land.VerificationStep,
		&documents,
		&certificate,
		&land.RegisteredAt,
		&land.UpdatedAt,
		&land.Version,
	)
	if err != nil {
		return nil, err
	}
	land.Documents = []string(documents)
	if certificate.Valid {
		id := certificate.String
		land.CertificateID = &id
	}
	return land, nil
}

const transferColumns = `id, land_id, land_title, from_user_id, from_user_name, from_user_email,
	to_user_id, to_user_name, to_user_email, amount, currency, notes, transferred_at`

func scanTransfer(row rowScanner) (*domain.Transfer, error) {
	t := &domain.Transfer{}
	err := row.Scan(
		&t.ID,
		&t.LandID,
		&t.LandTitle,
		&t.FromUserID,
		&t.FromUserName,
		&t.FromUserEmail,
		&t.ToUserID,
		&t.ToUserName,
		&t.ToUserEmail,
		&t.Amount,
		&t.Currency,
		&t.Notes,
		&t.TransferredAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func notFound(err error, what, key string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, key, domain.ErrRecordNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func checkAffected(res sql.Result, what, key string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s %s: %w", what, key, domain.ErrRecordNotFound)
	}
	return nil
}

func (t *pgTx) GetUser(id string) (*domain.User, error) {
	user, err := scanUser(t.tx.QueryRowContext(t.ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return user, nil
}

func (t *pgTx) GetUserByEmail(email string) (*domain.User, error) {
	user, err := scanUser(t.tx.QueryRowContext(t.ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return nil, notFound(err, "user with email", email)
	}
	return user, nil
}

func (t *pgTx) ListUsers() ([]*domain.User, error) {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT `+userColumns+` FROM users ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (t *pgTx) CreateUser(user *domain.User) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO users (id, name, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Name, user.Email, user.PasswordHash, user.Role, user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateUser(user *domain.User) error {
	res, err := t.tx.ExecContext(t.ctx, `
		UPDATE users
		SET name = $1, email = $2, password_hash = $3, role = $4, updated_at = $5
		WHERE id = $6`,
		user.Name, user.Email, user.PasswordHash, user.Role, user.UpdatedAt, user.ID,
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return checkAffected(res, "user", user.ID)
}

func (t *pgTx) DeleteUser(id string) error {
	res, err := t.tx.ExecContext(t.ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return checkAffected(res, "user", id)
}

func (t *pgTx) GetLand(id string) (*domain.Land, error) {
	land, err := scanLand(t.tx.QueryRowContext(t.ctx, `SELECT `+landColumns+` FROM lands WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "land", id)
	}
	return land, nil
}

func (t *pgTx) listLands(query string, args ...any) ([]*domain.Land, error) {
	rows, err := t.tx.QueryContext(t.ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list lands: %w", err)
	}
	defer rows.Close()

	var lands []*domain.Land
	for rows.Next() {
		land, err := scanLand(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan land: %w", err)
		}
		lands = append(lands, land)
	}
	return lands, rows.Err()
}

func (t *pgTx) ListLands() ([]*domain.Land, error) {
	return t.listLands(`SELECT ` + landColumns + ` FROM lands ORDER BY seq`)
}

func (t *pgTx) ListLandsByOwner(ownerID string) ([]*domain.Land, error) {
	return t.listLands(`SELECT `+landColumns+` FROM lands WHERE owner_id = $1 ORDER BY seq`, ownerID)
}

func (t *pgTx) CreateLand(land *domain.Land) error {
	if err := land.Validate(); err != nil {
		return err
	}
	land.Version = 1
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO lands (id, title, area, address, city, state, country, pincode, coordinates, description,
			owner_id, owner_name, owner_email, status, verification_step, documents, certificate_id,
			registered_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		land.ID, land.Title, land.Area, land.Address, land.City, land.State, land.Country, land.Pincode,
		land.Coordinates, land.Description, land.OwnerID, land.OwnerName, land.OwnerEmail, land.Status,
		land.VerificationStep, pq.Array(nonNil(land.Documents)), land.CertificateID,
		land.RegisteredAt, land.UpdatedAt, land.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to create land: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateLand(land *domain.Land) error {
	if err := land.Validate(); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(t.ctx, `
		UPDATE lands
		SET title = $1, area = $2, address = $3, city = $4, state = $5, country = $6, pincode = $7,
			coordinates = $8, description = $9, owner_id = $10, owner_name = $11, owner_email = $12,
			status = $13, verification_step = $14, documents = $15, certificate_id = $16,
			updated_at = $17, version = version + 1
		WHERE id = $18 AND version = $19`,
		land.Title, land.Area, land.Address, land.City, land.State, land.Country, land.Pincode,
		land.Coordinates, land.Description, land.OwnerID, land.OwnerName, land.OwnerEmail,
		land.Status, land.VerificationStep, pq.Array(nonNil(land.Documents)), land.CertificateID,
		land.UpdatedAt, land.ID, land.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update land: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		if _, err := t.GetLand(land.ID); err != nil {
			return err
		}
		return fmt.Errorf("land %s at version %d: %w", land.ID, land.Version, domain.ErrStaleWrite)
	}
	land.Version++
	return nil
}

func (t *pgTx) DeleteLandsByOwner(ownerID string) (int, error) {
	res, err := t.tx.ExecContext(t.ctx, `DELETE FROM lands WHERE owner_id = $1`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete lands: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return int(rows), nil
}

func (t *pgTx) ListTransfers() ([]*domain.Transfer, error) {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT `+transferColumns+` FROM transfers ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	defer rows.Close()

	var transfers []*domain.Transfer
	for rows.Next() {
		transfer, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		transfers = append(transfers, transfer)
	}
	return transfers, rows.Err()
}

func (t *pgTx) CreateTransfer(transfer *domain.Transfer) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO transfers (id, land_id, land_title, from_user_id, from_user_name, from_user_email,
			to_user_id, to_user_name, to_user_email, amount, currency, notes, transferred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		transfer.ID, transfer.LandID, transfer.LandTitle, transfer.FromUserID, transfer.FromUserName,
		transfer.FromUserEmail, transfer.ToUserID, transfer.ToUserName, transfer.ToUserEmail,
		transfer.Amount, transfer.Currency, transfer.Notes, transfer.TransferredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transfer: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateTransfer(transfer *domain.Transfer) error {
	res, err := t.tx.ExecContext(t.ctx, `
		UPDATE transfers
		SET land_title = $1, from_user_name = $2, from_user_email = $3, to_user_name = $4,
			to_user_email = $5, notes = $6
		WHERE id = $7`,
		transfer.LandTitle, transfer.FromUserName, transfer.FromUserEmail, transfer.ToUserName,
		transfer.ToUserEmail, transfer.Notes, transfer.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transfer: %w", err)
	}
	return checkAffected(res, "transfer", transfer.ID)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
