package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"stockroom-server/internal/config"
	"stockroom-server/internal/models"
	"stockroom-server/internal/store"
	"stockroom-server/internal/store/syncgateway"
	"stockroom-server/internal/utils"
)

// UserMirror replicates user records to an external Sync Gateway. A nil
// mirror disables replication.
type UserMirror interface {
	UpsertUser(ctx context.Context, rec syncgateway.UserRecord) error
}

type AuthService struct {
	users  store.UserStore
	mirror UserMirror
	cfg    *config.Config
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Claims is the access token payload. Scope distinguishes access tokens
// from password reset tokens signed with the same key.
type Claims struct {
	Username string `json:"username"`
	Scope    string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

const scopePasswordReset = "password-reset"

type CreateUserInput struct {
	Username      string
	Password      string
	Email         string
	FullName      string
	Roles         []models.Role
	AdminChannels []string
	Disabled      bool
}

// UpdateUserInput is a partial update; nil fields are left untouched.
// Password is plaintext and rehashed before storage.
type UpdateUserInput struct {
	Password      *string
	Email         *string
	FullName      *string
	Roles         *[]models.Role
	AdminChannels *[]string
	Disabled      *bool
}

func NewAuthService(users store.UserStore, mirror UserMirror, cfg *config.Config) *AuthService {
	return &AuthService{users: users, mirror: mirror, cfg: cfg}
}

// Authenticate returns the stored user when the username exists and the
// password verifies, and (nil, nil) otherwise. Bad credentials are an
// absent result, not an error.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.users.GetUser(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)) != nil {
		return nil, nil
	}
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*TokenResponse, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, utils.NewAppError(http.StatusInternalServerError, utils.CodeInternal, "could not authenticate", nil)
	}
	if user == nil {
		return nil, utils.NewAppError(http.StatusBadRequest, utils.CodeUnauthorized, "Incorrect username or password", nil)
	}
	if !user.IsActive() {
		return nil, utils.NewInactiveUser()
	}

	token, expiresIn, err := s.issueToken(user.Username, "", s.cfg.TokenExpiry)
	if err != nil {
		return nil, utils.NewAppError(http.StatusInternalServerError, utils.CodeInternal, "could not generate token", nil)
	}

	return &TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   expiresIn,
	}, nil
}

// CurrentUser resolves a bearer token to the stored user. The token must
// verify and the user must still exist.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.verifyToken(token)
	if err != nil || claims.Scope != "" {
		return nil, utils.NewAppError(http.StatusForbidden, utils.CodeUnauthorized, "Could not validate credentials", nil)
	}

	user, err := s.users.GetUser(ctx, claims.Username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, utils.NewNotFound("User not found")
	}
	if err != nil {
		return nil, utils.NewAppError(http.StatusInternalServerError, utils.CodeInternal, "could not load user", nil)
	}
	return user, nil
}

// GetUser loads a user by username, mapping a missing record to a 404.
func (s *AuthService) GetUser(ctx context.Context, username string) (*models.User, error) {
	user, err := s.users.GetUser(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, utils.NewNotFound("The user with this username does not exist in the system")
	}
	if err != nil {
		return nil, utils.NewAppError(http.StatusInternalServerError, utils.CodeInternal, "could not load user", nil)
	}
	return user, nil
}

func (s *AuthService) ListUsers(ctx context.Context, p store.Page) ([]models.User, error) {
	users, err := s.users.ListUsers(ctx, p)
	if err != nil {
		return nil, utils.NewAppError(http.StatusInternalServerError, utils.CodeInternal, "could not list users", nil)
	}
	return users, nil
}

func (s *AuthService) SearchUsers(ctx context.Context, query string, p store.Page) ([]models.User, error) {
	users, err := s.users.SearchUsers(ctx, query, p)
	if err != nil {
		return nil, utils.NewAppError(http.StatusInternalServerError, utils.CodeInternal, "could not search users", nil)
	}
	return users, nil
}

func (s *AuthService) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	if len(in.Password) < s.cfg.PasswordMinLen {
		return nil, utils.NewAppError(http.StatusBadRequest, utils.CodeValidation,
			fmt.Sprintf("password must be at least %d characters", s.cfg.PasswordMinLen), nil)
	}

	_, err := s.users.GetUser(ctx, in.Username)
	if err == nil {
		return nil, utils.NewAppError(http.StatusBadRequest, utils.CodeConflict,
			"The user with this username already exists in the system", nil)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, utils.NewAppError(http.StatusInternalServerError, utils.CodeInternal, "could not check existing users", nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, utils.NewAppError(http.StatusInternalServerError, utils.CodeInternal, "could not secure password", nil)
	}

	user := &models.User{
		Username:       in.Username,
		Email:          in.Email,
		FullName:       in.FullName,
		HashedPassword: string(hash),
		Roles:          in.Roles,
		AdminChannels:  in.AdminChannels,
		Disabled:       in.Disabled,
	}

	user, err = s.users.UpsertUser(ctx, user)
	if err != nil {
		return nil, storeWriteError("could not create user", err)
	}

	if err := s.users.ProvisionUser(ctx, user.Username); err != nil {
		return nil, utils.NewAppError(http.StatusInternalServerError, utils.CodeInternal, "could not provision user", nil)
	}

	if err := s.mirrorUser(ctx, user, in.Password); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) UpdateUser(ctx context.Context, username string, in UpdateUserInput) (*models.User, error) {
	upd := store.UserUpdate{
		Email:         in.Email,
		FullName:      in.FullName,
		Roles:         in.Roles,
		AdminChannels: in.AdminChannels,
		Disabled:      in.Disabled,
	}

	plaintext := ""
	if in.Password != nil {
		if len(*in.Password) < s.cfg.PasswordMinLen {
			return nil, utils.NewAppError(http.StatusBadRequest, utils.CodeValidation,
				fmt.Sprintf("password must be at least %d characters", s.cfg.PasswordMinLen), nil)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, utils.NewAppError(http.StatusInternalServerError, utils.CodeInternal, "could not secure password", nil)
		}
		hashed := string(hash)
		upd.HashedPassword = &hashed
		plaintext = *in.Password
	}

	user, err := s.users.UpdateUser(ctx, username, upd)
	if errors.Is(err, store.ErrNotFound) {
		return nil, utils.NewNotFound("The user with this username does not exist in the system")
	}
	if err != nil {
		return nil, storeWriteError("could not update user", err)
	}

	if err := s.mirrorUser(ctx, user, plaintext); err != nil {
		return nil, err
	}
	return user, nil
}

// EnsureFirstSuperuser bootstraps the configured superuser. Running it
// twice yields one stored record.
func (s *AuthService) EnsureFirstSuperuser(ctx context.Context) error {
	if s.cfg.FirstSuperuser == "" {
		return nil
	}

	_, err := s.users.GetUser(ctx, s.cfg.FirstSuperuser)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	_, err = s.CreateUser(ctx, CreateUserInput{
		Username: s.cfg.FirstSuperuser,
		Password: s.cfg.FirstSuperuserPassword,
		Roles:    []models.Role{models.RoleSuperuser},
	})
	if err != nil {
		return fmt.Errorf("create first superuser: %w", err)
	}
	return nil
}

// GeneratePasswordResetToken issues a short-lived signed token scoped to
// password resets.
func (s *AuthService) GeneratePasswordResetToken(username string) (string, error) {
	token, _, err := s.issueToken(username, scopePasswordReset, time.Hour)
	return token, err
}

func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	claims, err := s.verifyToken(token)
	if err != nil || claims.Scope != scopePasswordReset {
		return utils.NewAppError(http.StatusBadRequest, utils.CodeValidation, "Invalid token", nil)
	}

	user, err := s.users.GetUser(ctx, claims.Username)
	if errors.Is(err, store.ErrNotFound) {
		return utils.NewNotFound("The user with this username does not exist in the system")
	}
	if err != nil {
		return utils.NewAppError(http.StatusInternalServerError, utils.CodeInternal, "could not load user", nil)
	}
	if !user.IsActive() {
		return utils.NewInactiveUser()
	}

	_, err = s.UpdateUser(ctx, user.Username, UpdateUserInput{Password: &newPassword})
	return err
}

func (s *AuthService) mirrorUser(ctx context.Context, user *models.User, plaintextPassword string) error {
	if s.mirror == nil {
		return nil
	}

	rec := syncgateway.UserRecord{
		Name:          user.Username,
		Password:      plaintextPassword,
		Email:         user.Email,
		AdminRoles:    models.EncodeRoles(user.Roles, false),
		AdminChannels: user.AdminChannels,
		Disabled:      user.Disabled,
	}
	if err := s.mirror.UpsertUser(ctx, rec); err != nil {
		// The primary write already happened; there is no compensation,
		// the request just fails.
		return utils.NewAppError(http.StatusBadGateway, utils.CodeUpstream, "could not replicate user to sync gateway", nil)
	}
	return nil
}

func (s *AuthService) issueToken(username, scope string, ttl time.Duration) (string, int64, error) {
	issuedAt := time.Now()
	claims := Claims{
		Username: username,
		Scope:    scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.SecretKey))
	if err != nil {
		return "", 0, err
	}
	return signed, int64(ttl.Seconds()), nil
}

func (s *AuthService) verifyToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.SecretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

func storeWriteError(message string, err error) *utils.AppError {
	if errors.Is(err, store.ErrDurability) {
		return utils.NewAppError(http.StatusBadGateway, utils.CodeUpstream, "write did not satisfy durability requirements", nil)
	}
	if errors.Is(err, store.ErrConflict) {
		// A concurrent write won the race between the duplicate check and
		// this write.
		return utils.NewAppError(http.StatusBadRequest, utils.CodeConflict, "A document with this key already exists", nil)
	}
	return utils.NewAppError(http.StatusInternalServerError, utils.CodeInternal, message, nil)
}
