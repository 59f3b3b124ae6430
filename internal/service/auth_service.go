package service

import (
    "context"
    "errors"
    "strings"
    "time"

    "github.com/iliyamo/tour-experience-booking/internal/config"
    "github.com/iliyamo/tour-experience-booking/internal/logger"
    "github.com/iliyamo/tour-experience-booking/internal/model"
    "github.com/iliyamo/tour-experience-booking/internal/repository"
    "github.com/iliyamo/tour-experience-booking/internal/utils"
)

type AuthService struct {
    users  *repository.UserRepo
    tokens *repository.TokenRepo

    jwtSecret   string
    accessTTL   int
    refreshTTL  int
    bcryptCost  int
    autoApprove bool
}

func NewAuthService(users *repository.UserRepo, tokens *repository.TokenRepo, cfg config.Config) *AuthService {
    return &AuthService{
        users:       users,
        tokens:      tokens,
        jwtSecret:   cfg.JWTSecret,
        accessTTL:   cfg.AccessTTLMin,
        refreshTTL:  cfg.RefreshTTLDays,
        bcryptCost:  cfg.BcryptCost,
        autoApprove: cfg.AutoApproveGuides,
    }
}

type RegisterInput struct {
    Email    string
    Password string
    Role     string
    Name     string
    Phone    *string
    Location *string
    Bio      *string
}

// AuthResult is returned by every call that issues credentials.
type AuthResult struct {
    User         *model.User
    AccessToken  string
    ExpiresAt    time.Time
    RefreshToken string
}

// Register creates an account.  Travelers are approved immediately, guides
// wait for an admin unless auto-approval is switched on, and admins cannot
// self-register.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
    role := strings.ToLower(strings.TrimSpace(in.Role))
    if role == "" {
        role = model.RoleTraveler
    }
    switch role {
    case model.RoleTraveler, model.RoleGuide:
    case model.RoleAdmin:
        return nil, invalid("admin accounts cannot be self-registered")
    default:
        return nil, invalid("unknown role %q", in.Role)
    }
    if strings.TrimSpace(in.Email) == "" || in.Password == "" {
        return nil, invalid("email and password are required")
    }
    name := strings.TrimSpace(in.Name)
    if name == "" {
        name, _, _ = strings.Cut(strings.TrimSpace(in.Email), "@")
    }

    hash, err := utils.HashPassword(in.Password, s.bcryptCost)
    if err != nil {
        return nil, err
    }
    u := &model.User{
        Email:        in.Email,
        PasswordHash: hash,
        Name:         name,
        Role:         role,
        Phone:        in.Phone,
        Location:     in.Location,
        Bio:          in.Bio,
        IsApproved:   role != model.RoleGuide || s.autoApprove,
    }
    if err := s.users.Create(ctx, u); err != nil {
        return nil, err
    }
    created, err := s.users.GetByID(ctx, u.ID)
    if err != nil {
        return nil, err
    }
    logger.FromContext(ctx).Info().Uint64("user_id", created.ID).Str("role", role).Bool("approved", created.IsApproved).Msg("user registered")
    return s.issue(ctx, created)
}

// Login verifies credentials.  Unknown email and wrong password are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
    u, err := s.users.GetByEmail(ctx, email)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return nil, ErrInvalidCredentials
        }
        return nil, err
    }
    if !utils.VerifyPassword(u.PasswordHash, password) {
        return nil, ErrInvalidCredentials
    }
    return s.issue(ctx, u)
}

func (s *AuthService) Profile(ctx context.Context, userID uint64) (*model.User, error) {
    return s.users.GetByID(ctx, userID)
}

// Refresh rotates a refresh token and issues a new access token.
func (s *AuthService) Refresh(ctx context.Context, raw string) (*AuthResult, error) {
    if raw == "" {
        return nil, ErrInvalidCredentials
    }
    oldHash := utils.HashRefreshRaw(raw)
    userID, err := s.tokens.ValidateRefresh(ctx, oldHash)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return nil, ErrInvalidCredentials
        }
        return nil, err
    }
    u, err := s.users.GetByID(ctx, userID)
    if err != nil {
        return nil, err
    }
    access, err := utils.NewAccessToken(s.jwtSecret, u.ID, u.Role, s.accessTTL)
    if err != nil {
        return nil, err
    }
    rt, err := utils.NewRefreshToken(s.refreshTTL)
    if err != nil {
        return nil, err
    }
    if err := s.tokens.Rotate(ctx, u.ID, oldHash, utils.HashRefreshRaw(rt.Raw), rt.Exp); err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return nil, ErrInvalidCredentials
        }
        return nil, err
    }
    return &AuthResult{User: u, AccessToken: access.Token, ExpiresAt: access.Exp, RefreshToken: rt.Raw}, nil
}

// Logout revokes one refresh token, or every token of userID when raw is
// empty.
func (s *AuthService) Logout(ctx context.Context, raw string, userID uint64) error {
    if raw != "" {
        return s.tokens.RevokeByHash(ctx, utils.HashRefreshRaw(raw))
    }
    if userID == 0 {
        return ErrInvalidCredentials
    }
    return s.tokens.RevokeAllForUser(ctx, userID)
}

func (s *AuthService) issue(ctx context.Context, u *model.User) (*AuthResult, error) {
    access, err := utils.NewAccessToken(s.jwtSecret, u.ID, u.Role, s.accessTTL)
    if err != nil {
        return nil, err
    }
    rt, err := utils.NewRefreshToken(s.refreshTTL)
    if err != nil {
        return nil, err
    }
    if err := s.tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(rt.Raw), rt.Exp); err != nil {
        return nil, err
    }
    return &AuthResult{User: u, AccessToken: access.Token, ExpiresAt: access.Exp, RefreshToken: rt.Raw}, nil
}
