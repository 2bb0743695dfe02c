package location

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validGGA = "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47"

// withChecksum appends the NMEA checksum to a sentence body without '$'.
func withChecksum(body string) string {
	var sum byte
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	return fmt.Sprintf("$%s*%02X", body, sum)
}

func streamOf(lines ...string) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(strings.Join(lines, "\r\n") + "\r\n")), nil
	}
}

func TestParseFix(t *testing.T) {
	reading, ok := parseFix(validGGA)
	require.True(t, ok)
	assert.InDelta(t, 48.1173, reading.Latitude, 1e-4)
	assert.InDelta(t, 11.516666, reading.Longitude, 1e-4)
	assert.InDelta(t, 4.5, reading.Accuracy, 1e-9)
	assert.Equal(t, SourceDevice, reading.Source)
}

func TestParseFix_SkipsInvalidSentences(t *testing.T) {
	noFix := withChecksum("GPGGA,123519,4807.038,N,01131.000,E,0,00,99.9,,M,,M,,")

	for _, line := range []string{
		"",
		"garbage",
		"$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*00",
		withChecksum("GPGSA,A,3,04,05,,09,12,,,24,,,,,2.5,1.3,2.1"),
		noFix,
	} {
		_, ok := parseFix(line)
		assert.False(t, ok, line)
	}
}

func TestDeviceSensorProvider_GetCurrentPosition(t *testing.T) {
	p := NewStreamSensorProvider("test", streamOf(
		"noise",
		withChecksum("GPGSA,A,3,04,05,,09,12,,,24,,,,,2.5,1.3,2.1"),
		validGGA,
	))

	reading, err := p.GetCurrentPosition(context.Background(), DefaultPositionOptions())
	require.NoError(t, err)
	assert.InDelta(t, 48.1173, reading.Latitude, 1e-4)
}

func TestDeviceSensorProvider_NoFix(t *testing.T) {
	p := NewStreamSensorProvider("test", streamOf("noise"))

	_, err := p.GetCurrentPosition(context.Background(), DefaultPositionOptions())
	assert.ErrorIs(t, err, errNoFix)
}

func TestDeviceSensorProvider_PermissionDenied(t *testing.T) {
	p := NewStreamSensorProvider("/dev/ttyUSB0", func() (io.ReadCloser, error) {
		return nil, &os.PathError{Op: "open", Path: "/dev/ttyUSB0", Err: os.ErrPermission}
	})

	_, err := p.GetCurrentPosition(context.Background(), DefaultPositionOptions())
	assert.ErrorIs(t, err, ErrProviderDenied)

	_, err = p.WatchPosition(DefaultPositionOptions(), func(Reading) {}, func(error) {})
	assert.ErrorIs(t, err, ErrProviderDenied)
}

func TestDeviceSensorProvider_Timeout(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	p := NewStreamSensorProvider("test", func() (io.ReadCloser, error) { return pr, nil })

	opts := DefaultPositionOptions()
	opts.Timeout = 50 * time.Millisecond

	_, err := p.GetCurrentPosition(context.Background(), opts)
	assert.ErrorIs(t, err, ErrProviderTimeout)
}

func TestDeviceSensorProvider_MaximumAgeUsesCache(t *testing.T) {
	calls := 0
	p := NewStreamSensorProvider("test", func() (io.ReadCloser, error) {
		calls++
		return streamOf(validGGA)()
	})

	opts := DefaultPositionOptions()
	opts.MaximumAge = time.Minute

	_, err := p.GetCurrentPosition(context.Background(), opts)
	require.NoError(t, err)
	_, err = p.GetCurrentPosition(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	opts.MaximumAge = 0
	_, err = p.GetCurrentPosition(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDeviceSensorProvider_WatchStreamsUntilTimeout(t *testing.T) {
	pr, pw := io.Pipe()
	p := NewStreamSensorProvider("test", func() (io.ReadCloser, error) { return pr, nil })

	var mu sync.Mutex
	var readings []Reading
	errCh := make(chan error, 1)

	opts := DefaultPositionOptions()
	opts.Timeout = 100 * time.Millisecond

	w, err := p.WatchPosition(opts, func(r Reading) {
		mu.Lock()
		readings = append(readings, r)
		mu.Unlock()
	}, func(err error) { errCh <- err })
	require.NoError(t, err)
	defer w.Clear()

	go func() {
		_, _ = io.WriteString(pw, validGGA+"\r\n")
		_, _ = io.WriteString(pw, validGGA+"\r\n")
	}()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrProviderTimeout)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not time out")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, readings, 2)
}

func TestDeviceSensorProvider_ClearStopsWatch(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	p := NewStreamSensorProvider("test", func() (io.ReadCloser, error) { return pr, nil })

	errCh := make(chan error, 1)
	w, err := p.WatchPosition(DefaultPositionOptions(), func(Reading) {}, func(err error) { errCh <- err })
	require.NoError(t, err)

	w.Clear()
	w.Clear()

	select {
	case err := <-errCh:
		t.Fatalf("unexpected error after clear: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	_, err = pw.Write([]byte(validGGA + "\r\n"))
	assert.True(t, errors.Is(err, io.ErrClosedPipe))
}
