package service

import (
	"context"
	"errors"
	accesserrors "medaccess/internal/access/errors"
	"medaccess/internal/access/repository"
	"medaccess/internal/access/validator"
	"medaccess/internal/hikvision"
	"medaccess/pkg/config"
	apperrors "medaccess/pkg/errors"
	"medaccess/pkg/model"
	"medaccess/pkg/sanitizer"
	"net/http"
	"sync"
	"time"
)

// DeviceFactory builds an ISAPI client for one registered terminal. Tests
// swap it for a stub so no real device is needed.
type DeviceFactory func(terminal *model.Terminal, timeout time.Duration) hikvision.DeviceClient

func defaultDeviceFactory(terminal *model.Terminal, timeout time.Duration) hikvision.DeviceClient {
	return hikvision.NewISAPIClient(terminal.IP, terminal.Username, terminal.Password, timeout)
}

type TerminalService interface {
	Register(ctx context.Context, terminal *model.Terminal) error
	GetByID(ctx context.Context, id string) (*model.Terminal, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Terminal, int64, error)
	Update(ctx context.Context, id string, patch *model.TerminalUpdate) (*model.Terminal, error)
	ModeByIP(ctx context.Context, ip string) (*model.Terminal, error)
	Probe(ctx context.Context, id string) (*model.TerminalHealth, error)
	OpenDoor(ctx context.Context, id string) error
	ValidateAndOpen(ctx context.Context, id string, token string) (*model.AccessDecision, *model.Appointment, error)
}

type terminalService struct {
	terminals    repository.TerminalRepository
	appointments repository.AppointmentRepository
	validation   ValidationService
	validator    *validator.AccessValidator
	devices      DeviceFactory
	cfg          *config.Config
}

func NewTerminalService(
	terminals repository.TerminalRepository,
	appointments repository.AppointmentRepository,
	validation ValidationService,
	accessValidator *validator.AccessValidator,
	devices DeviceFactory,
	cfg *config.Config,
) TerminalService {
	if devices == nil {
		devices = defaultDeviceFactory
	}
	return &terminalService{
		terminals:    terminals,
		appointments: appointments,
		validation:   validation,
		validator:    accessValidator,
		devices:      devices,
		cfg:          cfg,
	}
}

func (s *terminalService) Register(ctx context.Context, terminal *model.Terminal) error {
	s.sanitize(terminal)
	s.applyDefaults(terminal)
	if err := s.validator.ValidateTerminal(terminal); err != nil {
		s.cfg.Log.Warn("Terminal validation failed", "error", err)
		return apperrors.Validation("Invalid terminal input", map[string]any{"error": err.Error()})
	}

	if err := s.terminals.Create(ctx, terminal); err != nil {
		if errors.Is(err, accesserrors.ErrDuplicateTerminal) {
			return apperrors.Conflict("A terminal with this IP or MAC address is already registered")
		}
		s.cfg.Log.Error("Failed to register terminal", "error", err)
		return apperrors.Internal("Failed to register terminal", err)
	}

	s.cfg.Log.Info("Terminal registered",
		"terminal_id", terminal.ID,
		"name", terminal.Name,
		"ip", terminal.IP,
		"mode", terminal.Mode,
	)
	return nil
}

func (s *terminalService) GetByID(ctx context.Context, id string) (*model.Terminal, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Terminal ID cannot be empty")
	}

	terminal, err := s.terminals.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, accesserrors.ErrTerminalNotFound) {
			return nil, apperrors.NotFoundWithID("Terminal", id)
		}
		if errors.Is(err, accesserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid terminal ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve terminal", err)
	}

	return terminal, nil
}

func (s *terminalService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Terminal, int64, error) {
	var count int64
	var terminals []*model.Terminal
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.terminals.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count terminals", "error", errCount)
			errCount = apperrors.Internal("Failed to count terminals", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		terminals, errFind = s.terminals.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list terminals", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve terminals", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return terminals, count, nil
}

func (s *terminalService) Update(ctx context.Context, id string, patch *model.TerminalUpdate) (*model.Terminal, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Terminal ID cannot be empty")
	}
	if err := s.validator.ValidateTerminalUpdate(patch); err != nil {
		s.cfg.Log.Warn("Terminal update validation failed", "terminal_id", id, "error", err)
		return nil, apperrors.Validation("Invalid terminal update", map[string]any{"error": err.Error()})
	}
	if patch.MACAddress != nil {
		normalized := sanitizer.NormalizeMAC(*patch.MACAddress)
		patch.MACAddress = &normalized
	}

	terminal, err := s.terminals.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, accesserrors.ErrTerminalNotFound) {
			return nil, apperrors.NotFoundWithID("Terminal", id)
		}
		if errors.Is(err, accesserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid terminal ID format")
		}
		if errors.Is(err, accesserrors.ErrDuplicateTerminal) {
			return nil, apperrors.Conflict("A terminal with this IP or MAC address is already registered")
		}
		s.cfg.Log.Error("Failed to update terminal", "terminal_id", id, "error", err)
		return nil, apperrors.Internal("Failed to update terminal", err)
	}

	s.cfg.Log.Info("Terminal updated", "terminal_id", id)
	return terminal, nil
}

// ModeByIP serves terminal self-configuration: a device asks which mode it
// was registered with.
func (s *terminalService) ModeByIP(ctx context.Context, ip string) (*model.Terminal, error) {
	if ip == "" {
		return nil, apperrors.InvalidInput("ip query parameter is required")
	}

	terminal, err := s.terminals.FindByIP(ctx, ip)
	if err != nil {
		if errors.Is(err, accesserrors.ErrTerminalNotFound) {
			return nil, apperrors.NotFound("Terminal")
		}
		return nil, apperrors.Internal("Failed to resolve terminal by ip", err)
	}

	return terminal, nil
}

// Probe performs an ISAPI deviceInfo round trip and stores the outcome. An
// unreachable device is a successful probe with Reachable=false, not an
// error.
func (s *terminalService) Probe(ctx context.Context, id string) (*model.TerminalHealth, error) {
	terminal, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	health := &model.TerminalHealth{CheckedAt: time.Now().UTC()}
	info, err := s.devices(terminal, s.cfg.ISAPITimeout).DeviceInfo(ctx)
	if err != nil {
		health.Reachable = false
		health.Error = err.Error()
		s.cfg.Log.Warn("Terminal probe failed",
			"terminal_id", terminal.ID,
			"ip", terminal.IP,
			"error", err,
		)
	} else {
		health.Reachable = true
		health.Model = info.Model
		health.Serial = info.SerialNumber
		health.Firmware = info.FirmwareVersion
	}

	if err := s.terminals.RecordProbe(ctx, terminal.ID, health); err != nil {
		s.cfg.Log.Error("Failed to record probe result", "terminal_id", terminal.ID, "error", err)
		return nil, apperrors.Internal("Failed to record probe result", err)
	}

	return health, nil
}

// OpenDoor sends the remote door command to the terminal.
func (s *terminalService) OpenDoor(ctx context.Context, id string) error {
	terminal, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	return s.openDoor(ctx, terminal)
}

// ValidateAndOpen runs the full turnstile flow on behalf of a terminal that
// cannot validate locally: check the token, and only when allowed drive the
// door. If the door command fails the consume is released so the visitor can
// retry at a working entrance; the handler maps the error to 502.
func (s *terminalService) ValidateAndOpen(ctx context.Context, id string, token string) (*model.AccessDecision, *model.Appointment, error) {
	terminal, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	decision, appointment := s.validation.Validate(ctx, token, terminal.ID)
	if !decision.Allowed() {
		return decision, appointment, nil
	}

	if err := s.openDoor(ctx, terminal); err != nil {
		if releaseErr := s.appointments.Release(ctx, decision.Token); releaseErr != nil {
			s.cfg.Log.Error("Failed to release consumed token after door failure",
				"appointment_id", decision.AppointmentID,
				"terminal_id", terminal.ID,
				"error", releaseErr,
			)
		}
		return decision, appointment, err
	}

	return decision, appointment, nil
}

// --- Helpers ---

func (s *terminalService) openDoor(ctx context.Context, terminal *model.Terminal) error {
	doorNo := terminal.DoorNo
	if doorNo == 0 {
		doorNo = 1
	}

	if err := s.devices(terminal, s.cfg.ISAPITimeout).OpenDoor(ctx, doorNo); err != nil {
		s.cfg.Log.Error("Door command failed",
			"terminal_id", terminal.ID,
			"ip", terminal.IP,
			"door_no", doorNo,
			"error", err,
		)
		return apperrors.Wrap(err, "DOOR_UNAVAILABLE", "Terminal did not accept the door command", http.StatusBadGateway)
	}

	s.cfg.Log.Info("Door opened", "terminal_id", terminal.ID, "door_no", doorNo)
	return nil
}

func (s *terminalService) sanitize(terminal *model.Terminal) {
	terminal.Name = sanitizer.TrimAndNormalize(terminal.Name)
	terminal.MACAddress = sanitizer.NormalizeMAC(terminal.MACAddress)
}

func (s *terminalService) applyDefaults(terminal *model.Terminal) {
	if terminal.Mode == "" {
		terminal.Mode = model.TerminalModeBoth
	}
	if terminal.DoorNo == 0 {
		terminal.DoorNo = 1
	}
	terminal.Active = true
}
