package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"illust_nest/internal/domain/models"
	"illust_nest/internal/lib/logger/sl"
	"illust_nest/internal/lib/validate"
	"illust_nest/internal/transport/http/dto"
	"illust_nest/internal/transport/http/dto/response"
)

var ErrAlreadyInitialized = errors.New("system already initialized")

type SystemAPI interface {
	SystemStatus(ctx context.Context) (*models.SystemStatus, error)
	InitSystem(ctx context.Context, req dto.InitRequest) error
	Settings(ctx context.Context) (*models.SystemSettings, error)
	UpdateSettings(ctx context.Context, patch dto.SettingsPatch) error
	Statistics(ctx context.Context) (*models.SystemStatistics, error)
	TestImageMagick(ctx context.Context, version string) (*models.ImageMagickTestResult, error)
}

type SystemService struct {
	log *slog.Logger
	api SystemAPI
}

func NewSystemService(log *slog.Logger, api SystemAPI) *SystemService {
	return &SystemService{log: log, api: api}
}

func (s *SystemService) Status(ctx context.Context) (*models.SystemStatus, error) {
	const op = "system_service.Status"

	st, err := s.api.SystemStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return st, nil
}

// Init creates the first admin account. It refuses early when the backend
// reports it is already set up.
func (s *SystemService) Init(ctx context.Context, username, password string) error {
	const op = "system_service.Init"

	log := s.log.With(
		slog.String("op", op),
		slog.String("username", username),
	)

	req := dto.InitRequest{Username: strings.TrimSpace(username), Password: password}
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	st, err := s.api.SystemStatus(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if st.Initialized {
		return fmt.Errorf("%s: %w", op, ErrAlreadyInitialized)
	}

	if err := s.api.InitSystem(ctx, req); err != nil {
		if errors.Is(err, response.ErrAlreadyInitialized) {
			return fmt.Errorf("%s: %w", op, ErrAlreadyInitialized)
		}
		log.Error("failed to initialize system", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("system initialized")

	return nil
}

func (s *SystemService) Settings(ctx context.Context) (*models.SystemSettings, error) {
	const op = "system_service.Settings"

	st, err := s.api.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return st, nil
}

// UpdateSettings sends only the fields set in patch.
func (s *SystemService) UpdateSettings(ctx context.Context, patch dto.SettingsPatch) error {
	const op = "system_service.UpdateSettings"

	if patch == (dto.SettingsPatch{}) {
		return fmt.Errorf("%s: %w", op, validate.Fail("no settings to change"))
	}
	if err := validate.Struct(patch); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.api.UpdateSettings(ctx, patch); err != nil {
		s.log.Error("failed to update settings", slog.String("op", op), sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *SystemService) Statistics(ctx context.Context) (*models.SystemStatistics, error) {
	const op = "system_service.Statistics"

	st, err := s.api.Statistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return st, nil
}

// TestImageMagick checks the transcoder on the server. An empty version tests
// the configured one.
func (s *SystemService) TestImageMagick(ctx context.Context, version string) (*models.ImageMagickTestResult, error) {
	const op = "system_service.TestImageMagick"

	if version != "" && version != "v6" && version != "v7" {
		return nil, fmt.Errorf("%s: %w", op, validate.Fail("version must be v6 or v7"))
	}

	res, err := s.api.TestImageMagick(ctx, version)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}
