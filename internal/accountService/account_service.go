package account

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopmarcas/smallauctions/internal/auctionerrors"
	"github.com/shopmarcas/smallauctions/internal/auth"
	"github.com/shopmarcas/smallauctions/internal/models"
	"github.com/shopmarcas/smallauctions/internal/repository"
	"github.com/shopmarcas/smallauctions/utils"
)

const (
	minPasswordLength = 8
	maxDisplayName    = 100
	defaultCountry    = "US"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9@.+\-_]{3,150}$`)

var countries = map[string]bool{"US": true, "UK": true}

var checkPassword = auth.CheckPassword

// AccountService handles registration, login and profiles
type AccountService struct {
	repo   repository.UserStore
	tokens *auth.TokenManager
	clock  func() time.Time
}

// NewAccountService creates a new AccountService instance
func NewAccountService(repo repository.UserStore, tokens *auth.TokenManager, clock func() time.Time) *AccountService {
	if clock == nil {
		clock = time.Now
	}
	return &AccountService{repo: repo, tokens: tokens, clock: clock}
}

func normalizeCountry(country string) (string, error) {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" {
		return defaultCountry, nil
	}
	if !countries[country] {
		return "", fmt.Errorf("unsupported country %q", country)
	}
	return country, nil
}

// Register creates a user with a profile and logs it in
func (s *AccountService) Register(ctx context.Context, reg models.Registration) (models.User, string, error) {
	username := strings.TrimSpace(reg.Username)
	if !usernamePattern.MatchString(username) {
		return models.User{}, "", fmt.Errorf("service: %w - username must be 3 to 150 letters, digits or @.+-_", auctionerrors.ErrInvalidRegistration)
	}
	if utf8.RuneCountInString(reg.Password) < minPasswordLength {
		return models.User{}, "", fmt.Errorf("service: %w - password must be at least %d characters", auctionerrors.ErrInvalidRegistration, minPasswordLength)
	}
	displayName := strings.TrimSpace(reg.DisplayName)
	if utf8.RuneCountInString(displayName) > maxDisplayName {
		return models.User{}, "", fmt.Errorf("service: %w - display name is longer than %d characters", auctionerrors.ErrInvalidRegistration, maxDisplayName)
	}
	country, err := normalizeCountry(reg.Country)
	if err != nil {
		return models.User{}, "", fmt.Errorf("service: %w - %v", auctionerrors.ErrInvalidRegistration, err)
	}

	hash, err := auth.HashPassword(reg.Password)
	if err != nil {
		return models.User{}, "", fmt.Errorf("service: failed to hash password: %w", err)
	}

	now := s.clock().UTC()
	user := models.User{
		UserID:       utils.GenerateID(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    now,
	}
	profile := models.Profile{
		UserID:      user.UserID,
		DisplayName: displayName,
		Country:     country,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateUser(ctx, user, profile); err != nil {
		return models.User{}, "", fmt.Errorf("service: failed to register %s: %w", username, err)
	}

	token, err := s.tokens.Issue(user.UserID, user.Username)
	if err != nil {
		return models.User{}, "", fmt.Errorf("service: failed to issue token: %w", err)
	}

	utils.Info("User registered", map[string]any{"user_id": user.UserID, "username": username})
	return user, token, nil
}

// Login checks credentials and issues a session token
func (s *AccountService) Login(ctx context.Context, username, password string) (models.User, string, error) {
	user, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, auctionerrors.ErrUserNotFound) {
			// spend the same argon2 work as a real check so unknown usernames
			// cannot be told apart by response time
			_, _ = checkPassword(auth.DecoyHash(), password)
			return models.User{}, "", fmt.Errorf("service: %w", auctionerrors.ErrInvalidCredentials)
		}
		return models.User{}, "", fmt.Errorf("service: failed to look up user: %w", err)
	}

	ok, err := checkPassword(user.PasswordHash, password)
	if err != nil {
		return models.User{}, "", fmt.Errorf("service: failed to check password for %s: %w", user.UserID, err)
	}
	if !ok {
		return models.User{}, "", fmt.Errorf("service: %w", auctionerrors.ErrInvalidCredentials)
	}

	token, err := s.tokens.Issue(user.UserID, user.Username)
	if err != nil {
		return models.User{}, "", fmt.Errorf("service: failed to issue token: %w", err)
	}
	return user, token, nil
}

// GetProfile returns the profile of a user
func (s *AccountService) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return models.Profile{}, fmt.Errorf("service: failed to get profile %s: %w", userID, err)
	}
	return profile, nil
}

// UpdateProfile changes the display name and country of a user
func (s *AccountService) UpdateProfile(ctx context.Context, userID, displayName, country string) (models.Profile, error) {
	displayName = strings.TrimSpace(displayName)
	if utf8.RuneCountInString(displayName) > maxDisplayName {
		return models.Profile{}, fmt.Errorf("service: %w - display name is longer than %d characters", auctionerrors.ErrInvalidProfile, maxDisplayName)
	}
	normalized, err := normalizeCountry(country)
	if err != nil {
		return models.Profile{}, fmt.Errorf("service: %w - %v", auctionerrors.ErrInvalidProfile, err)
	}

	err = s.repo.UpdateProfile(ctx, models.Profile{
		UserID:      userID,
		DisplayName: displayName,
		Country:     normalized,
		UpdatedAt:   s.clock().UTC(),
	})
	if err != nil {
		return models.Profile{}, fmt.Errorf("service: failed to update profile %s: %w", userID, err)
	}
	return s.GetProfile(ctx, userID)
}
