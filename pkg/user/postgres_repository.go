package user

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const pgUniqueViolation = "23505"

const userColumns = `id, username, email, password_hash, status, enabled, locale,
	activation_token, activation_expires_at, created_at, updated_at`

// PostgresRepository implements Repository on PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a repository on an open pool. Call Migrate first on a fresh database.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Migrate applies the embedded schema migrations
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
}

func (r *PostgresRepository) FindByID(ctx context.Context, id uuid.UUID) (User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresRepository) FindByActivationToken(ctx context.Context, token string) (User, error) {
	if token == "" {
		return User{}, ErrUserNotFound
	}
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE activation_token = $1`, token)
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, arg any) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to query user: %w", err)
	}

	roles, err := r.loadRoles(ctx, u.ID)
	if err != nil {
		return User{}, err
	}
	u.Roles = roles
	return u, nil
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	var status string
	var token *string
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &status, &u.Enabled, &u.Locale,
		&token, &u.ActivationExpiresAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	u.Status = Status(status)
	if token != nil {
		u.ActivationToken = *token
	}
	return u, nil
}

func (r *PostgresRepository) loadRoles(ctx context.Context, userID uuid.UUID) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ur.role_name, rp.permission
		FROM user_roles ur
		LEFT JOIN role_permissions rp ON rp.role_name = ur.role_name
		WHERE ur.user_id = $1
		ORDER BY ur.position, rp.permission`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	roles := []Role{}
	for rows.Next() {
		var name string
		var permission *string
		if err := rows.Scan(&name, &permission); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		if len(roles) == 0 || roles[len(roles)-1].Name != name {
			roles = append(roles, Role{Name: name})
		}
		if permission != nil {
			last := &roles[len(roles)-1]
			last.Permissions = append(last.Permissions, *permission)
		}
	}
	return roles, rows.Err()
}

// Create inserts a user and its role assignments in one transaction
func (r *PostgresRepository) Create(ctx context.Context, u User) (User, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO users (`+userColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			u.ID, u.Username, u.Email, u.PasswordHash, string(u.Status), u.Enabled, u.Locale,
			nullable(u.ActivationToken), u.ActivationExpiresAt, u.CreatedAt, u.UpdatedAt)
		if err != nil {
			return mapUniqueViolation(err)
		}
		return writeRoles(ctx, tx, u.ID, u.Roles)
	})
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// Update rewrites a user's columns and replaces its role assignments
func (r *PostgresRepository) Update(ctx context.Context, u User) (User, error) {
	u.UpdatedAt = time.Now().UTC()

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE users SET username = $2, email = $3, password_hash = $4, status = $5, enabled = $6,
				locale = $7, activation_token = $8, activation_expires_at = $9, updated_at = $10
			WHERE id = $1`,
			u.ID, u.Username, u.Email, u.PasswordHash, string(u.Status), u.Enabled, u.Locale,
			nullable(u.ActivationToken), u.ActivationExpiresAt, u.UpdatedAt)
		if err != nil {
			return mapUniqueViolation(err)
		}
		if tag.RowsAffected() == 0 {
			return ErrUserNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, u.ID); err != nil {
			return fmt.Errorf("failed to clear roles: %w", err)
		}
		return writeRoles(ctx, tx, u.ID, u.Roles)
	})
	if err != nil {
		return User{}, err
	}
	return r.FindByID(ctx, u.ID)
}

func writeRoles(ctx context.Context, tx pgx.Tx, userID uuid.UUID, roles []Role) error {
	batch := &pgx.Batch{}
	for i, role := range roles {
		batch.Queue(`INSERT INTO user_roles (user_id, role_name, position) VALUES ($1, $2, $3)`, userID, role.Name, i)
		for _, p := range role.Permissions {
			batch.Queue(`INSERT INTO role_permissions (role_name, permission) VALUES ($1, $2) ON CONFLICT DO NOTHING`, role.Name, p)
		}
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to write roles: %w", err)
	}
	return nil
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		switch pgErr.ConstraintName {
		case "users_username_key":
			return ErrDuplicateUsername
		case "users_email_key":
			return ErrDuplicateEmail
		}
	}
	return fmt.Errorf("failed to write user: %w", err)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
