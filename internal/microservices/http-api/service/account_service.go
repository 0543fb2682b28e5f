package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"accounthub/internal/identity"
	"accounthub/internal/microservices/http-api/models"
	"accounthub/internal/microservices/http-api/repository"

	"github.com/go-playground/validator/v10"
)

const (
	MsgPasswordsDoNotMatch   = "Passwords do not match"
	MsgEmailAlreadyUsed      = "Email is already used"
	MsgInvalidCredentials    = "Invalid login credentials"
	MsgUsernameTaken         = "A user with that username already exists."
	MsgFieldRequired         = "This field is required."
	MsgFieldBlank            = "This field may not be blank."
	MsgInvalidEmail          = "Enter a valid email address."
	MsgInvalidUsername       = "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	MsgUsernameTooLong       = "Ensure this field has no more than 150 characters."
	MsgEmailTooLong          = "Ensure this field has no more than 254 characters."
	MsgAtLeastOneField       = "At least one of 'username', 'email', or 'new_password' must be provided."
	MsgOldPasswordRequired   = "Old password is required to update password."
	MsgOldPasswordIncorrect  = "Old password is incorrect."
	MsgPasswordFieldsNoMatch = "Password fields didn't match."
	MsgUpdateEmailUsed       = "Email is already used."
	MsgUpdateSameEmail       = "You are using the same email address."
	MsgUpdateUsernameUsed    = "Username is already used."
	MsgUpdateSameUsername    = "You are using the same username."
)

const (
	maxUsernameLength = 150
	maxEmailLength    = 254
)

var usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}_.@+-]+$`)

// registration skips the strength policy but the hasher's limit still applies
var passwordMaxLength = identity.MaximumLength{Max: identity.MaxPasswordBytes}

// RegisterInput is the registration payload.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	Password2 string
}

func (in RegisterInput) trimmed() RegisterInput {
	return RegisterInput{
		Username:  strings.TrimSpace(in.Username),
		Email:     strings.TrimSpace(in.Email),
		Password:  strings.TrimSpace(in.Password),
		Password2: strings.TrimSpace(in.Password2),
	}
}

// LoginInput is the credential pair checked by Authenticate.
type LoginInput struct {
	Username string
	Password string
}

func (in LoginInput) trimmed() LoginInput {
	return LoginInput{
		Username: strings.TrimSpace(in.Username),
		Password: strings.TrimSpace(in.Password),
	}
}

// UpdateInput carries the optional profile changes. A nil field was not sent.
type UpdateInput struct {
	OldPassword     *string
	NewPassword     *string
	ConfirmPassword *string
	Username        *string
	Email           *string
}

func (in UpdateInput) trimmed() UpdateInput {
	return UpdateInput{
		OldPassword:     trimPtr(in.OldPassword),
		NewPassword:     trimPtr(in.NewPassword),
		ConfirmPassword: trimPtr(in.ConfirmPassword),
		Username:        trimPtr(in.Username),
		Email:           trimPtr(in.Email),
	}
}

// LoginResult is the authenticated user together with the last_login value
// it had before this login was recorded.
type LoginResult struct {
	User          *models.User
	PreviousLogin *time.Time
}

type AccountService interface {
	Register(ctx context.Context, in RegisterInput) (*models.User, error)
	Authenticate(ctx context.Context, in LoginInput) (*LoginResult, error)
	UpdateProfile(ctx context.Context, current *models.User, in UpdateInput) (*models.User, error)
	Profile(ctx context.Context, userID string) (*models.UserView, error)
	CurrentUser(ctx context.Context, userID string) (*models.User, error)
}

type accountService struct {
	users    repository.UserRepository
	profiles repository.ProfileCache
	hasher   identity.Hasher
	policy   *identity.Policy
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

func NewAccountService(
	users repository.UserRepository,
	profiles repository.ProfileCache,
	hasher identity.Hasher,
	policy *identity.Policy,
	logger *slog.Logger,
) AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &accountService{
		users:    users,
		profiles: profiles,
		hasher:   hasher,
		policy:   policy,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
}

// Register creates a user after the field checks, the password confirmation
// and the email uniqueness check pass. Nothing is written on failure.
func (s *accountService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in = in.trimmed()
	verr := &ValidationError{}
	requireNonBlank(verr, "username", in.Username)
	requireNonBlank(verr, "email", in.Email)
	requireNonBlank(verr, "password", in.Password)
	requireNonBlank(verr, "password2", in.Password2)

	if !verr.Has("username") {
		s.checkUsernameFormat(verr, in.Username)
	}
	if !verr.Has("email") {
		s.checkEmailFormat(verr, in.Email)
	}
	if !verr.Has("password") {
		if msg := passwordMaxLength.Validate(in.Password, nil); msg != "" {
			verr.Add("password", msg)
		}
	}
	if !verr.Has("username") {
		taken, err := s.users.ExistsByUsername(ctx, in.Username, "")
		if err != nil {
			return nil, fmt.Errorf("check username: %w", err)
		}
		if taken {
			verr.Add("username", MsgUsernameTaken)
		}
	}
	if verr.HasErrors() {
		return nil, verr
	}

	if in.Password != in.Password2 {
		return nil, newValidationError(GeneralKey, MsgPasswordsDoNotMatch)
	}

	emailUsed, err := s.users.ExistsByEmail(ctx, in.Email, "")
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if emailUsed {
		return nil, newValidationError(GeneralKey, MsgEmailAlreadyUsed)
	}

	hashedPassword, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, hashError("password", err)
	}

	user := &models.User{
		Username: in.Username,
		Email:    in.Email,
		Password: hashedPassword,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// a concurrent registration won the race for the unique index
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, newValidationError(GeneralKey, MsgEmailAlreadyUsed)
		case errors.Is(err, repository.ErrDuplicateUsername):
			return nil, newValidationError("username", MsgUsernameTaken)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user_registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Authenticate verifies the credentials and records the login time. Unknown
// usernames and wrong passwords produce the same error.
func (s *accountService) Authenticate(ctx context.Context, in LoginInput) (*LoginResult, error) {
	in = in.trimmed()
	verr := &ValidationError{}
	requireNonBlank(verr, "username", in.Username)
	requireNonBlank(verr, "password", in.Password)
	if verr.HasErrors() {
		return nil, verr
	}

	user, err := s.users.FindByUsername(ctx, in.Username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.hasher.VerifyDummy(in.Password)
			s.logger.InfoContext(ctx, "login_failed", "reason", "unknown_user")
			return nil, newValidationError(GeneralKey, MsgInvalidCredentials)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := s.hasher.Verify(user.Password, in.Password); err != nil {
		s.logger.InfoContext(ctx, "login_failed", "reason", "bad_password", "user_id", user.ID)
		return nil, newValidationError(GeneralKey, MsgInvalidCredentials)
	}

	var previous *time.Time
	if user.LastLogin != nil {
		prev := *user.LastLogin
		previous = &prev
	}

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}
	user.LastLogin = &now

	s.logger.InfoContext(ctx, "user_logged_in", "user_id", user.ID)
	return &LoginResult{User: user, PreviousLogin: previous}, nil
}

// UpdateProfile validates the requested changes against current and saves
// the record. Field-level checks run first and are reported together; the
// cross-field rules then stop at the first failure.
func (s *accountService) UpdateProfile(ctx context.Context, current *models.User, in UpdateInput) (*models.User, error) {
	in = in.trimmed()
	verr := &ValidationError{}
	for field, value := range map[string]*string{
		"old_password":     in.OldPassword,
		"new_password":     in.NewPassword,
		"confirm_password": in.ConfirmPassword,
		"username":         in.Username,
		"email":            in.Email,
	} {
		if value != nil && *value == "" {
			verr.Add(field, MsgFieldBlank)
		}
	}

	if in.OldPassword != nil && !verr.Has("old_password") {
		if err := s.hasher.Verify(current.Password, *in.OldPassword); err != nil {
			verr.Add("old_password", MsgOldPasswordIncorrect)
		}
	}
	if in.Email != nil && !verr.Has("email") {
		if err := s.checkNewEmail(ctx, verr, current, *in.Email); err != nil {
			return nil, err
		}
	}
	if in.Username != nil && !verr.Has("username") {
		if err := s.checkNewUsername(ctx, verr, current, *in.Username); err != nil {
			return nil, err
		}
	}
	if verr.HasErrors() {
		return nil, verr
	}

	if in.Username == nil && in.Email == nil && in.NewPassword == nil {
		return nil, newValidationError(GeneralKey, MsgAtLeastOneField)
	}

	if in.NewPassword != nil || in.ConfirmPassword != nil {
		if in.OldPassword == nil || *in.OldPassword == "" {
			return nil, newValidationError("old_password", MsgOldPasswordRequired)
		}
		if deref(in.NewPassword) != deref(in.ConfirmPassword) {
			return nil, newValidationError("confirm_password", MsgPasswordFieldsNoMatch)
		}
		attrs := identity.UserAttributes{
			"username":      current.Username,
			"email address": current.Email,
		}
		if in.Username != nil {
			attrs["username"] = *in.Username
		}
		if in.Email != nil {
			attrs["email address"] = *in.Email
		}
		if problems := s.policy.Validate(deref(in.NewPassword), attrs); len(problems) > 0 {
			return nil, newValidationError("new_password", problems...)
		}
	}

	if in.NewPassword != nil {
		hashedPassword, err := s.hasher.Hash(*in.NewPassword)
		if err != nil {
			return nil, hashError("new_password", err)
		}
		current.Password = hashedPassword
	}
	if in.Username != nil {
		current.Username = *in.Username
	}
	if in.Email != nil {
		current.Email = *in.Email
	}

	if err := s.users.Save(ctx, current); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, newValidationError("email", MsgUpdateEmailUsed)
		case errors.Is(err, repository.ErrDuplicateUsername):
			return nil, newValidationError("username", MsgUpdateUsernameUsed)
		}
		return nil, fmt.Errorf("save user: %w", err)
	}

	if err := s.profiles.Invalidate(ctx, current.ID); err != nil {
		s.logger.WarnContext(ctx, "profile_cache_invalidate_failed", "user_id", current.ID, "error", err.Error())
	}

	s.logger.InfoContext(ctx, "profile_updated",
		"user_id", current.ID,
		"username_changed", in.Username != nil,
		"email_changed", in.Email != nil,
		"password_changed", in.NewPassword != nil,
	)
	return current, nil
}

// Profile returns the read-only view of a user, preferring the cache.
func (s *accountService) Profile(ctx context.Context, userID string) (*models.UserView, error) {
	view, err := s.profiles.Get(ctx, userID)
	if err == nil {
		return view, nil
	}
	if !errors.Is(err, repository.ErrCacheMiss) {
		s.logger.WarnContext(ctx, "profile_cache_read_failed", "user_id", userID, "error", err.Error())
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	fresh := user.View()
	if err := s.profiles.Set(ctx, userID, fresh); err != nil {
		s.logger.WarnContext(ctx, "profile_cache_write_failed", "user_id", userID, "error", err.Error())
	}
	return &fresh, nil
}

func (s *accountService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	return s.users.FindByID(ctx, userID)
}

func (s *accountService) checkNewEmail(ctx context.Context, verr *ValidationError, current *models.User, email string) error {
	s.checkEmailFormat(verr, email)
	if verr.Has("email") {
		return nil
	}
	used, err := s.users.ExistsByEmail(ctx, email, current.ID)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if used {
		verr.Add("email", MsgUpdateEmailUsed)
		return nil
	}
	if current.Email == email {
		verr.Add("email", MsgUpdateSameEmail)
	}
	return nil
}

func (s *accountService) checkNewUsername(ctx context.Context, verr *ValidationError, current *models.User, username string) error {
	if len([]rune(username)) > maxUsernameLength {
		verr.Add("username", MsgUsernameTooLong)
		return nil
	}
	used, err := s.users.ExistsByUsername(ctx, username, current.ID)
	if err != nil {
		return fmt.Errorf("check username: %w", err)
	}
	if used {
		verr.Add("username", MsgUpdateUsernameUsed)
		return nil
	}
	if current.Username == username {
		verr.Add("username", MsgUpdateSameUsername)
	}
	return nil
}

func (s *accountService) checkUsernameFormat(verr *ValidationError, username string) {
	if len([]rune(username)) > maxUsernameLength {
		verr.Add("username", MsgUsernameTooLong)
		return
	}
	if !usernamePattern.MatchString(username) {
		verr.Add("username", MsgInvalidUsername)
	}
}

func (s *accountService) checkEmailFormat(verr *ValidationError, email string) {
	if len([]rune(email)) > maxEmailLength {
		verr.Add("email", MsgEmailTooLong)
		return
	}
	if err := s.validate.Var(email, "email"); err != nil {
		verr.Add("email", MsgInvalidEmail)
	}
}

func requireNonBlank(verr *ValidationError, field, value string) {
	if value == "" {
		verr.Add(field, MsgFieldBlank)
	}
}

// hashError reports a password the hasher cannot take as a field error on
// field; anything else is an internal failure.
func hashError(field string, err error) error {
	if errors.Is(err, identity.ErrPasswordTooLong) {
		return newValidationError(field, passwordMaxLength.Message())
	}
	return fmt.Errorf("hash password: %w", err)
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
