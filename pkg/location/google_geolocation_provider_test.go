package location

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

func TestGoogleGeolocationProvider_GetCurrentPosition(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"location":{"lat":51.5,"lng":-0.12},"accuracy":1200}`))
	}))
	defer srv.Close()

	p, err := NewGoogleGeolocationProvider("test-key", 0, time.Second, zerolog.Nop(), maps.WithBaseURL(srv.URL))
	require.NoError(t, err)

	opts := DefaultPositionOptions()
	opts.EnableHighAccuracy = false

	reading, err := p.GetCurrentPosition(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, Coordinate{Latitude: 51.5, Longitude: -0.12}, reading.Coordinate)
	assert.Equal(t, 1200.0, reading.Accuracy)
	assert.Equal(t, SourceDevice, reading.Source)
}

func TestPollWatch_StopsOnFirstError(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context, opts PositionOptions) (Reading, error) {
		calls++
		if calls == 3 {
			return Reading{}, ErrProviderTimeout
		}
		return Reading{Accuracy: float64(calls)}, nil
	}

	readings := make(chan Reading, 10)
	errCh := make(chan error, 1)
	pollWatch(10*time.Millisecond, DefaultPositionOptions(), fetch,
		func(r Reading) { readings <- r },
		func(err error) { errCh <- err })

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrProviderTimeout)
	case <-time.After(time.Second):
		t.Fatal("watch did not report the error")
	}
	assert.Len(t, readings, 2)
}

func TestPollWatch_Clear(t *testing.T) {
	readings := make(chan Reading, 100)
	w := pollWatch(5*time.Millisecond, DefaultPositionOptions(),
		func(ctx context.Context, opts PositionOptions) (Reading, error) { return Reading{}, nil },
		func(r Reading) { readings <- r },
		func(error) {})

	time.Sleep(30 * time.Millisecond)
	w.Clear()
	time.Sleep(20 * time.Millisecond)
	n := len(readings)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, len(readings))
}
