package gsm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/gatekeeper/gatekeeper/internal/command"
	"github.com/gatekeeper/gatekeeper/internal/store"
)

// Dispatcher errors.
var (
	ErrCircuitOpen       = errors.New("gsm: messaging circuit is open")
	ErrMissingUnitNumber = errors.New("gsm: device has no unit number")
	ErrInvalidPassword   = errors.New("gsm: device password must be 4 digits")
	ErrInvalidRequest    = errors.New("gsm: invalid request")
	ErrUnsupportedKind   = errors.New("gsm: unsupported command kind")
)

// Request describes one command to dispatch. Kind selects the variant; the
// other fields are consulted per kind. The device password and unit number
// come from the store, never from the request.
type Request struct {
	Kind command.Kind

	// PasswordChange.
	NewPassword string

	// User commands.
	Serial    string
	SerialEnd string
	Phone     string
	StartTime string
	EndTime   string

	// Settings commands.
	Mode        command.AccessMode
	LatchTime   string
	AdminNumber string
}

// DispatcherConfig holds configuration for the Dispatcher.
type DispatcherConfig struct {
	Sender SMSSender
	Store  *store.Store
	Logger zerolog.Logger

	// MaxRetries bounds send retries; InitialInterval and MaxInterval
	// shape the exponential backoff between them.
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// BreakerTimeout is the open-state period before the circuit allows
	// a probe send.
	BreakerTimeout time.Duration
}

// Dispatcher encodes and sends commands, with retry and a circuit breaker
// around the messaging port, and records every attempt in the log.
type Dispatcher struct {
	sender  SMSSender
	store   *store.Store
	logger  zerolog.Logger
	breaker *gobreaker.CircuitBreaker[struct{}]
	config  DispatcherConfig
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 5 * time.Second
	}
	if cfg.BreakerTimeout == 0 {
		cfg.BreakerTimeout = 60 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "sms-sender",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
	})

	return &Dispatcher{
		sender:  cfg.Sender,
		store:   cfg.Store,
		logger:  cfg.Logger,
		breaker: breaker,
		config:  cfg,
	}
}

// Dispatch validates, encodes, and sends one command to a device. The
// outcome is always recorded as a log entry: a successful send as
// success=true, a declined or failed send as success=false with the same
// redacted description. Validation failures are reported before anything
// is encoded or logged.
func (d *Dispatcher) Dispatch(ctx context.Context, deviceID string, req Request) (*store.LogEntry, error) {
	device, err := d.store.Device(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if device.UnitNumber == "" {
		return nil, ErrMissingUnitNumber
	}
	if !command.IsPassword(device.Password) {
		return nil, ErrInvalidPassword
	}

	body, err := encodeRequest(device.Password, req)
	if err != nil {
		return nil, err
	}

	// The decoded form of our own encoding supplies the redacted log
	// description; encode and describe stay symmetric by construction.
	described := command.Decode(body)

	sendErr := d.send(ctx, device.UnitNumber, body)

	entry, logErr := d.store.AddLog(ctx, deviceID, described.Action, described.Details, sendErr == nil, described.Category)
	if logErr != nil {
		d.logger.Error().Err(logErr).Str("device_id", deviceID).Msg("failed to record command log")
	}
	if sendErr != nil {
		return entry, sendErr
	}

	if err := d.applySideEffects(ctx, deviceID, req); err != nil {
		d.logger.Error().Err(err).Str("device_id", deviceID).Msg("failed to mirror command into store")
	}
	return entry, nil
}

// send pushes the body through the circuit breaker with retries.
func (d *Dispatcher) send(ctx context.Context, to, body string) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.config.InitialInterval
	bo.MaxInterval = d.config.MaxInterval
	bo.MaxElapsedTime = 0

	operation := func() error {
		_, err := d.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, d.sender.Send(ctx, to, body)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			return err
		}
		return nil
	}

	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, d.config.MaxRetries), ctx))
}

// encodeRequest validates the per-kind fields and produces the SMS body.
func encodeRequest(password string, req Request) (string, error) {
	switch req.Kind {
	case command.KindOpen:
		return command.Open(password), nil
	case command.KindClose:
		return command.Close(password), nil
	case command.KindStatus:
		return command.Status(password), nil
	case command.KindPasswordChange:
		if !command.IsPassword(req.NewPassword) {
			return "", fmt.Errorf("%w: new password must be 4 digits", ErrInvalidRequest)
		}
		return command.ChangePassword(password, req.NewPassword), nil
	case command.KindUserAdd:
		if !command.IsSerial(req.Serial) {
			return "", fmt.Errorf("%w: serial must be 3 digits", ErrInvalidRequest)
		}
		if !command.IsPhone(req.Phone) {
			return "", fmt.Errorf("%w: phone number is required and must not contain '#'", ErrInvalidRequest)
		}
		if req.StartTime == "" && req.EndTime == "" {
			return command.AddUser(password, req.Serial, req.Phone), nil
		}
		if !command.IsCommandTime(req.StartTime) || !command.IsCommandTime(req.EndTime) {
			return "", fmt.Errorf("%w: time limits must be 10-digit YYMMDDHHMM strings", ErrInvalidRequest)
		}
		return command.AddUserWithTimes(password, req.Serial, req.Phone, req.StartTime, req.EndTime), nil
	case command.KindUserRemove:
		if !command.IsSerial(req.Serial) {
			return "", fmt.Errorf("%w: serial must be 3 digits", ErrInvalidRequest)
		}
		return command.RemoveUser(password, req.Serial), nil
	case command.KindUserQuery:
		if !command.IsSerial(req.Serial) {
			return "", fmt.Errorf("%w: serial must be 3 digits", ErrInvalidRequest)
		}
		return command.QueryUser(password, req.Serial), nil
	case command.KindUserQueryRange:
		if !command.IsSerial(req.Serial) || !command.IsSerial(req.SerialEnd) {
			return "", fmt.Errorf("%w: range serials must be 3 digits", ErrInvalidRequest)
		}
		return command.QueryUserRange(password, req.Serial, req.SerialEnd), nil
	case command.KindAccessControl:
		if req.Mode != command.AccessAuthorized && req.Mode != command.AccessAll {
			return "", fmt.Errorf("%w: mode must be AUT or ALL", ErrInvalidRequest)
		}
		return command.SetAccessControl(password, req.Mode), nil
	case command.KindLatchTime:
		if !command.IsLatchTime(req.LatchTime) {
			return "", fmt.Errorf("%w: latch time must be 3 digits", ErrInvalidRequest)
		}
		return command.SetLatchTime(password, req.LatchTime), nil
	case command.KindAdminRegister:
		if req.AdminNumber == "" {
			return "", fmt.Errorf("%w: admin number is required", ErrInvalidRequest)
		}
		return command.RegisterAdmin(password, req.AdminNumber), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, req.Kind)
	}
}

// applySideEffects mirrors acknowledged settings commands into the local
// records so the app's view tracks what the relay was told. User membership
// is intentionally not mirrored here; the store's authorization operations
// own that.
func (d *Dispatcher) applySideEffects(ctx context.Context, deviceID string, req Request) error {
	switch req.Kind {
	case command.KindPasswordChange:
		_, err := d.store.UpdateDevice(ctx, deviceID, store.DevicePatch{Password: &req.NewPassword})
		return err
	case command.KindAccessControl:
		device, err := d.store.Device(ctx, deviceID)
		if err != nil {
			return err
		}
		settings := device.RelaySettings
		settings.AccessControl = req.Mode
		_, err = d.store.UpdateDevice(ctx, deviceID, store.DevicePatch{RelaySettings: &settings})
		return err
	case command.KindLatchTime:
		device, err := d.store.Device(ctx, deviceID)
		if err != nil {
			return err
		}
		settings := device.RelaySettings
		settings.LatchTime = req.LatchTime
		_, err = d.store.UpdateDevice(ctx, deviceID, store.DevicePatch{RelaySettings: &settings})
		return err
	case command.KindAdminRegister:
		normalized := command.NormalizeAdminNumber(req.AdminNumber)
		_, err := d.store.UpdateSettings(ctx, store.SettingsPatch{AdminNumber: &normalized})
		return err
	}
	return nil
}
