package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"usermgmt/internal/users/models"
	id "usermgmt/pkg/domain"
	"usermgmt/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

const userColumns = `id, email, phone, username, full_name, date_of_birth, profile_version,
	password_hash, status, deactivation_reason, role, terms_version, privacy_version,
	marketing_consent, registration_ip, registration_device, created_at, updated_at`

// PostgresStore persists accounts in the users table. Uniqueness comes from the
// table's unique indexes; Execute locks the row with SELECT ... FOR UPDATE.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*models.Account, error) {
	return s.findOne(ctx, s.db, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID.String())
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.findOne(ctx, s.db, `SELECT `+userColumns+` FROM users WHERE email = $1`, models.NormalizeEmail(email))
}

func (s *PostgresStore) FindByPhone(ctx context.Context, phone string) (*models.Account, error) {
	return s.findOne(ctx, s.db, `SELECT `+userColumns+` FROM users WHERE phone = $1`, strings.TrimSpace(phone))
}

func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, sentinel.ErrNotFound
	}
	return s.findOne(ctx, s.db, `SELECT `+userColumns+` FROM users WHERE username IS NOT NULL AND LOWER(username) = LOWER($1)`, username)
}

func (s *PostgresStore) findOne(ctx context.Context, q queryer, query string, arg any) (*models.Account, error) {
	account, err := scanAccount(q.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return account, nil
}

func (s *PostgresStore) Create(ctx context.Context, account *models.Account) error {
	r := account.Snapshot()
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID.String(), r.Email, r.Phone, nullableString(r.Username), r.FullName, r.DateOfBirth,
		r.ProfileVersion, r.PasswordHash, r.Status.String(), r.DeactivationReason, r.Role.String(),
		r.TermsVersion, r.PrivacyVersion, r.MarketingConsent, r.RegistrationIP, r.RegistrationDevice,
		r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create user: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Execute runs validate and mutate while holding the row lock, then writes the
// mutable columns back in the same transaction.
func (s *PostgresStore) Execute(ctx context.Context, userID id.UserID, validate func(*models.Account) error, mutate func(*models.Account)) (*models.Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin execute: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	account, err := s.findOne(ctx, tx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, userID.String())
	if err != nil {
		return nil, err
	}
	if err := validate(account); err != nil {
		return nil, err
	}
	mutate(account)

	r := account.Snapshot()
	_, err = tx.ExecContext(ctx, `
		UPDATE users SET
			full_name = $2,
			profile_version = $3,
			password_hash = $4,
			status = $5,
			deactivation_reason = $6,
			role = $7,
			updated_at = $8
		WHERE id = $1
	`, r.ID.String(), r.FullName, r.ProfileVersion, r.PasswordHash, r.Status.String(),
		r.DeactivationReason, r.Role.String(), r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit execute: %w", err)
	}
	return account, nil
}

// List runs the count and the page query concurrently.
func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter) ([]*models.Account, int64, error) {
	where, args := listWhere(filter)

	var total int64
	var items []*models.Account
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.db.QueryRowContext(gctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
			return fmt.Errorf("count users: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		pageArgs := append(append([]any{}, args...), filter.PageSize, filter.Offset())
		query := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
			userColumns, where, len(args)+1, len(args)+2)
		rows, err := s.db.QueryContext(gctx, query, pageArgs...)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			account, err := scanAccount(rows)
			if err != nil {
				return fmt.Errorf("scan user: %w", err)
			}
			items = append(items, account)
		}
		return rows.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	if items == nil {
		items = []*models.Account{}
	}
	return items, total, nil
}

func listWhere(filter models.ListFilter) (string, []any) {
	var clauses []string
	var args []any
	if term := strings.TrimSpace(filter.SearchTerm); term != "" {
		args = append(args, "%"+escapeLike(term)+"%")
		clauses = append(clauses, fmt.Sprintf("(full_name ILIKE $%d OR email ILIKE $%d)", len(args), len(args)))
	}
	if filter.Role != "" {
		args = append(args, filter.Role)
		clauses = append(clauses, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		r        models.Record
		rawID    string
		username sql.NullString
		status   string
		role     string
	)
	err := row.Scan(
		&rawID, &r.Email, &r.Phone, &username, &r.FullName, &r.DateOfBirth, &r.ProfileVersion,
		&r.PasswordHash, &status, &r.DeactivationReason, &role, &r.TermsVersion, &r.PrivacyVersion,
		&r.MarketingConsent, &r.RegistrationIP, &r.RegistrationDevice, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if r.ID, err = id.ParseUserID(rawID); err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	if r.Role, err = models.ParseRole(role); err != nil {
		return nil, fmt.Errorf("parse role %q: %w", role, err)
	}
	r.Username = username.String
	r.Status = models.Status(status)
	r.DateOfBirth = r.DateOfBirth.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return models.RestoreAccount(r), nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// isUniqueViolation recognises SQLSTATE 23505 from either registered driver.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}
