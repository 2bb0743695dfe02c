package location

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrCapabilityUnavailable = errors.New("geolocation capability unavailable")
	ErrProviderDenied        = errors.New("location permission denied")
	ErrProviderTimeout       = errors.New("location request timed out")
	ErrFallbackUnavailable   = errors.New("ip geolocation unavailable")
)

// classifyError maps provider failures onto ErrProviderTimeout and
// ErrProviderDenied. Anything else is returned unchanged.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrProviderTimeout) || errors.Is(err, ErrProviderDenied) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrProviderTimeout, err)
	}
	if errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("%w: %v", ErrProviderDenied, err)
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "denied") || strings.Contains(msg, "forbidden") {
		return fmt.Errorf("%w: %v", ErrProviderDenied, err)
	}
	return err
}
