package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"user-accounts/internal/domain"
	"user-accounts/internal/repository"
)

// MaxUsernameLength is the longest accepted username, in characters.
const MaxUsernameLength = 20

const (
	reasonUsernameTaken    = "username already exists"
	reasonUsernameTooLong  = "username too long"
	reasonWrongCredentials = "wrong username or password"
	reasonUserNotFound     = "user could not be found"
	reasonNotAuthenticated = "user could not be authenticated"
)

// UserService describes user lifecycle operations.
type UserService interface {
	Register(ctx context.Context, reg domain.Registration) (*domain.User, error)
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	VerifyOwnership(ctx context.Context, token string, id int64) (bool, error)
	SetStatus(ctx context.Context, token string, status domain.UserStatus) error
	UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (*domain.User, error)
}

type userService struct {
	users  repository.UserRepository
	logger logrus.FieldLogger
	now    func() time.Time
}

func NewUserService(users repository.UserRepository, logger logrus.FieldLogger) UserService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &userService{
		users:  users,
		logger: logger,
		now:    time.Now,
	}
}

func (s *userService) Register(ctx context.Context, reg domain.Registration) (*domain.User, error) {
	if reg.Username == "" || reg.Password == "" {
		return nil, badRequest("username and password are required")
	}
	if err := s.checkUsernameAvailable(ctx, reg.Username); err != nil {
		return nil, err
	}
	if err := checkUsernameLength(reg.Username); err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     reg.Username,
		Password:     reg.Password,
		Token:        uuid.NewString(),
		Status:       domain.UserStatusOnline,
		CreationDate: domain.Date(s.now()),
	}
	if reg.Birthday != nil {
		b := domain.Date(*reg.Birthday)
		user.Birthday = &b
	}

	if _, err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, conflict(reasonUsernameTaken)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Debug("created user")
	return user, nil
}

func (s *userService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Debug("authentication failed")
			return nil, badRequest(reasonWrongCredentials)
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user.Password != password {
		s.logger.Debug("authentication failed")
		return nil, badRequest(reasonWrongCredentials)
	}

	user.Status = domain.UserStatusOnline
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("mark user online: %w", err)
	}
	return user, nil
}

func (s *userService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound(fmt.Sprintf("user not found with id: %d", id))
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *userService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// VerifyOwnership reports whether the user holding token and the user with id
// share the same password. It compares passwords rather than identities, which
// is the behavior existing clients depend on.
func (s *userService) VerifyOwnership(ctx context.Context, token string, id int64) (bool, error) {
	byToken, err := s.users.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("lookup token owner: %w", err)
	}
	byID, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("lookup user: %w", err)
	}
	return byToken.Password == byID.Password, nil
}

func (s *userService) SetStatus(ctx context.Context, token string, status domain.UserStatus) error {
	if !status.Valid() {
		return badRequest(fmt.Sprintf("unknown status %q", status))
	}
	user, err := s.userByToken(ctx, token)
	if err != nil {
		return err
	}
	user.Status = status
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

func (s *userService) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (*domain.User, error) {
	owned, err := s.VerifyOwnership(ctx, update.Token, update.ID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, notFound(reasonNotAuthenticated)
	}

	user, err := s.userByToken(ctx, update.Token)
	if err != nil {
		return nil, err
	}

	if p := update.Password; p != nil && *p != "" && *p != user.Password {
		user.Password = *p
	}
	if n := update.Username; n != nil && *n != "" && *n != user.Username {
		if err := s.checkUsernameAvailable(ctx, *n); err != nil {
			return nil, err
		}
		if err := checkUsernameLength(*n); err != nil {
			return nil, err
		}
		user.Username = *n
	}
	if st := update.Status; st != nil && *st != user.Status {
		if !st.Valid() {
			return nil, badRequest(fmt.Sprintf("unknown status %q", *st))
		}
		user.Status = *st
	}
	// a birthday absent from the update clears the stored one
	if !domain.SameDate(user.Birthday, update.Birthday) {
		if update.Birthday == nil {
			user.Birthday = nil
		} else {
			b := domain.Date(*update.Birthday)
			user.Birthday = &b
		}
	}

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, conflict(reasonUsernameTaken)
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

func (s *userService) userByToken(ctx context.Context, token string) (*domain.User, error) {
	user, err := s.users.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound(reasonUserNotFound)
		}
		return nil, fmt.Errorf("lookup token owner: %w", err)
	}
	return user, nil
}

func (s *userService) checkUsernameAvailable(ctx context.Context, username string) error {
	_, err := s.users.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return conflict(reasonUsernameTaken)
	case errors.Is(err, repository.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("lookup username: %w", err)
	}
}

func checkUsernameLength(username string) error {
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return badRequest(reasonUsernameTooLong)
	}
	return nil
}

