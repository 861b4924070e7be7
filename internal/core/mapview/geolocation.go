package mapview

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/domain"
)

// LocateOptions is passed to the geolocation provider.
type LocateOptions struct {
	Timeout      time.Duration
	HighAccuracy bool
}

// Geolocator is the host's geolocation capability. Implementations should
// honour ctx cancellation; the controller also enforces opts.Timeout.
type Geolocator interface {
	CurrentPosition(ctx context.Context, opts LocateOptions) (domain.GeoPoint, error)
}

// GeolocatorFunc adapts a function to Geolocator.
type GeolocatorFunc func(ctx context.Context, opts LocateOptions) (domain.GeoPoint, error)

func (f GeolocatorFunc) CurrentPosition(ctx context.Context, opts LocateOptions) (domain.GeoPoint, error) {
	return f(ctx, opts)
}

// Surface is the map rendering surface. It only draws; viewport events flow
// back through Controller.ViewportChanged.
type Surface interface {
	SetMarkers(set DisplaySet)
	PanTo(p domain.GeoPoint)
}

var (
	// ErrLocationUnavailable matches every location failure.
	ErrLocationUnavailable = errors.New("location unavailable")
	// ErrLocationDenied is reported by providers when the user refuses access.
	ErrLocationDenied = errors.New("location permission denied")
	// ErrLocationTimeout matches failures caused by the provider not answering in time.
	ErrLocationTimeout = errors.New("location request timed out")
	// ErrUnsupported is reported when no provider is available.
	ErrUnsupported = errors.New("geolocation unsupported")
	// ErrSuperseded is returned to a location request overtaken by a newer one.
	ErrSuperseded = errors.New("location request superseded")
)

// FailureReason classifies a location failure.
type FailureReason string

const (
	FailureDenied      FailureReason = "denied"
	FailureTimeout     FailureReason = "timeout"
	FailureUnsupported FailureReason = "unsupported"
	FailureUnavailable FailureReason = "unavailable"
)

// LocationError carries why the location could not be resolved.
type LocationError struct {
	Reason FailureReason
	Err    error
}

func (e *LocationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("location %s", e.Reason)
	}
	return fmt.Sprintf("location %s: %v", e.Reason, e.Err)
}

func (e *LocationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrLocationUnavailable}
	}
	return []error{ErrLocationUnavailable, e.Err}
}

// Is lets errors.Is match the reason sentinels.
func (e *LocationError) Is(target error) bool {
	switch target {
	case ErrLocationDenied:
		return e.Reason == FailureDenied
	case ErrLocationTimeout:
		return e.Reason == FailureTimeout
	case ErrUnsupported:
		return e.Reason == FailureUnsupported
	}
	return false
}

// UserMessage is the informational text shown when the location fallback kicks in.
func (e *LocationError) UserMessage() string {
	if e.Reason == FailureDenied {
		return "Location access denied. Showing all agencies."
	}
	return "Could not get your location"
}

func classifyLocationError(ctx context.Context, err error) *LocationError {
	var le *LocationError
	if errors.As(err, &le) {
		return le
	}
	switch {
	case errors.Is(err, ErrLocationDenied):
		return &LocationError{Reason: FailureDenied, Err: err}
	case errors.Is(err, ErrUnsupported):
		return &LocationError{Reason: FailureUnsupported, Err: err}
	case errors.Is(err, ErrLocationTimeout), errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &LocationError{Reason: FailureTimeout, Err: err}
	default:
		return &LocationError{Reason: FailureUnavailable, Err: err}
	}
}
