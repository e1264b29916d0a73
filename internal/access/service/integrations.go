package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	accesserrors "medaccess/internal/access/errors"
	"medaccess/internal/access/repository"
	"medaccess/pkg/config"
	apperrors "medaccess/pkg/errors"
	"medaccess/pkg/model"
)

// IntegrationService authenticates partner API calls and mints tokens for
// new integrations.
type IntegrationService interface {
	VerifyToken(ctx context.Context, token string) error
	Create(ctx context.Context, name string) (*model.Integration, error)
}

type integrationService struct {
	integrations repository.IntegrationRepository
	cfg          *config.Config
}

func NewIntegrationService(integrations repository.IntegrationRepository, cfg *config.Config) IntegrationService {
	return &integrationService{
		integrations: integrations,
		cfg:          cfg,
	}
}

// VerifyToken fails closed: an unknown token and an unreachable store both
// come back as an error, and the caller answers 401.
func (s *integrationService) VerifyToken(ctx context.Context, token string) error {
	if token == "" {
		return apperrors.Unauthorized("Missing API token")
	}

	_, err := s.integrations.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, accesserrors.ErrIntegrationNotFound) {
			return apperrors.Unauthorized("Unknown API token")
		}
		s.cfg.Log.Error("Integration token lookup failed", "error", err)
		return apperrors.Internal("Failed to verify API token", err)
	}

	return nil
}

// Create registers a new partner integration with a freshly minted token.
// The token is returned exactly once; only operators see it.
func (s *integrationService) Create(ctx context.Context, name string) (*model.Integration, error) {
	if name == "" {
		return nil, apperrors.InvalidInput("Integration name cannot be empty")
	}

	token, err := generateAPIToken()
	if err != nil {
		return nil, apperrors.Internal("Failed to generate api token", err)
	}

	integration := &model.Integration{
		Name:     name,
		APIToken: token,
		Active:   true,
	}
	if err := s.integrations.Create(ctx, integration); err != nil {
		s.cfg.Log.Error("Failed to create integration", "name", name, "error", err)
		return nil, apperrors.Internal("Failed to create integration", err)
	}

	s.cfg.Log.Info("Integration created", "integration_id", integration.ID, "name", name)
	return integration, nil
}

// generateAPIToken returns 32 random bytes as 64 hex characters.
func generateAPIToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
