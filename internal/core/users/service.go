package users

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type userService struct {
	repo UserRepository
}

// NewUserService creates the user service backed by the given repository
func NewUserService(repo UserRepository) UserService {
	return &userService{repo: repo}
}

// Register creates a new student or tutor account. The admin role can
// not be self-assigned through registration.
func (s *userService) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	var missing []string
	for field, value := range map[string]string{
		"email":      req.Email,
		"first_name": req.FirstName,
		"last_name":  req.LastName,
		"gender":     req.Gender,
		"role":       req.Role,
		"password":   req.Password,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}

	role := Role(req.Role)
	if !role.Valid() || role == RoleAdmin {
		return nil, &InvalidRoleError{Role: req.Role}
	}

	gender := Gender(req.Gender)
	if !gender.Valid() {
		return nil, &InvalidGenderError{Gender: req.Gender}
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	exists, err := s.repo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email availability: %w", err)
	}
	if exists {
		return nil, ErrEmailAlreadyTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		ID:           uuid.New(),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Gender:       gender,
		Location:     req.Location,
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	slog.Info("registered new user", "user_id", created.ID, "role", created.Role)
	return created, nil
}

func (s *userService) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *userService) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// ValidateCredentials verifies an email/password pair. Both the missing
// account and the wrong password collapse into ErrInvalidCredentials so
// the response does not reveal which half failed.
func (s *userService) ValidateCredentials(ctx context.Context, email, password string) (*User, error) {
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, id uuid.UUID, req UpdateProfileRequest) (*User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Gender != nil {
		gender := Gender(*req.Gender)
		if !gender.Valid() {
			return nil, &InvalidGenderError{Gender: *req.Gender}
		}
		user.Gender = gender
	}
	if req.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Location != nil {
		user.Location = *req.Location
	}

	return s.repo.Update(ctx, user)
}

func (s *userService) DeleteAccount(ctx context.Context, id uuid.UUID, password string) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}

	return s.repo.Delete(ctx, id)
}
