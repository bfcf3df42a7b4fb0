package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"user-accounts/internal/domain"
	"user-accounts/internal/repository"
)

const userColumns = `id, username, password, token, status, creation_date, birthday`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func (r *UserRepository) GetByToken(ctx context.Context, token string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE token = ?`, token)
	return scanUser(row)
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
INSERT INTO users (username, password, token, status, creation_date, birthday)
VALUES (?, ?, ?, ?, ?, ?)`,
		user.Username,
		user.Password,
		user.Token,
		string(user.Status),
		formatDate(user.CreationDate),
		nullDate(user.Birthday),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %v", repository.ErrDuplicate, err)
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user last insert id: %w", err)
	}
	user.ID = id
	return id, nil
}

// Update writes the mutable columns of the user matched by ID.
func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET username = ?, password = ?, status = ?, birthday = ?
WHERE id = ?`,
		user.Username,
		user.Password,
		string(user.Status),
		nullDate(user.Birthday),
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", repository.ErrDuplicate, err)
		}
		return fmt.Errorf("update user %d: %w", user.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user %d rows affected: %w", user.ID, err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var (
		user         domain.User
		status       string
		creationDate string
		birthday     sql.NullString
	)
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Password,
		&user.Token,
		&status,
		&creationDate,
		&birthday,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	user.Status = domain.UserStatus(status)

	created, err := time.Parse(domain.DateLayout, creationDate)
	if err != nil {
		return nil, fmt.Errorf("parse creation date of user %d: %w", user.ID, err)
	}
	user.CreationDate = created

	if birthday.Valid {
		b, err := time.Parse(domain.DateLayout, birthday.String)
		if err != nil {
			return nil, fmt.Errorf("parse birthday of user %d: %w", user.ID, err)
		}
		user.Birthday = &b
	}
	return &user, nil
}

func formatDate(t time.Time) string {
	return domain.Date(t).Format(domain.DateLayout)
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatDate(*t), Valid: true}
}

func isUniqueViolation(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}
