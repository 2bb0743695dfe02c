package location

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/adrianmo/go-nmea"
	"github.com/tarm/serial"
)

// uereMeters is the user equivalent range error used to turn HDOP into meters.
const uereMeters = 5.0

var errNoFix = errors.New("no valid GPS data found")

// DeviceSensorProvider reads NMEA sentences from a GPS receiver connected via serial port.
type DeviceSensorProvider struct {
	port     string // Serial port to which the GPS device is connected
	baudRate int    // Baud rate for the serial communication

	open  func() (io.ReadCloser, error)
	cache lastFix
}

// NewDeviceSensorProvider creates a new instance of DeviceSensorProvider with the specified port and baud rate.
func NewDeviceSensorProvider(port string, baudRate int) *DeviceSensorProvider {
	d := &DeviceSensorProvider{
		port:     port,
		baudRate: baudRate,
	}
	d.open = func() (io.ReadCloser, error) {
		return serial.OpenPort(&serial.Config{Name: d.port, Baud: d.baudRate})
	}
	return d
}

// NewStreamSensorProvider reads NMEA sentences from an arbitrary stream, e.g. gpsd raw output.
func NewStreamSensorProvider(name string, open func() (io.ReadCloser, error)) *DeviceSensorProvider {
	return &DeviceSensorProvider{port: name, open: open}
}

func (d *DeviceSensorProvider) Name() string {
	return "gps:" + d.port
}

// GetCurrentPosition opens the port and returns the first valid GGA fix.
func (d *DeviceSensorProvider) GetCurrentPosition(ctx context.Context, opts PositionOptions) (Reading, error) {
	if r, ok := d.cache.get(opts.MaximumAge); ok {
		return r, nil
	}

	ctx, cancel := withTimeout(ctx, opts.Timeout)
	defer cancel()

	rc, err := d.open()
	if err != nil {
		return Reading{}, classifyError(fmt.Errorf("open %s: %w", d.port, err))
	}
	closer := closeOnce(rc)
	defer closer()

	type result struct {
		reading Reading
		err     error
	}
	done := make(chan result, 1)
	go func() {
		var got Reading
		found := false
		err := scanFixes(rc, func(r Reading) bool {
			got, found = r, true
			return false
		})
		if found {
			done <- result{reading: got}
			return
		}
		if err == nil {
			err = errNoFix
		}
		done <- result{err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return Reading{}, res.err
		}
		d.cache.set(res.reading)
		return res.reading, nil
	case <-ctx.Done():
		// Closing the port unblocks the scanner goroutine
		closer()
		return Reading{}, classifyError(ctx.Err())
	}
}

// WatchPosition streams fixes from the port. The watch ends with
// ErrProviderTimeout when no fix arrives within opts.Timeout.
func (d *DeviceSensorProvider) WatchPosition(opts PositionOptions, onReading func(Reading), onError func(error)) (Watch, error) {
	rc, err := d.open()
	if err != nil {
		return nil, classifyError(fmt.Errorf("open %s: %w", d.port, err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &cancelWatch{cancel: cancel, release: closeOnce(rc)}

	fixes := make(chan Reading)
	scanDone := make(chan error, 1)
	go func() {
		scanDone <- scanFixes(rc, func(r Reading) bool {
			select {
			case fixes <- r:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()

	go func() {
		defer w.Clear()

		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = time.Hour
		}
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case r := <-fixes:
				d.cache.set(r)
				onReading(r)
				timer.Reset(timeout)
			case err := <-scanDone:
				if ctx.Err() != nil {
					return
				}
				if err == nil {
					err = io.ErrUnexpectedEOF
				}
				onError(fmt.Errorf("gps stream %s ended: %w", d.port, err))
				return
			case <-timer.C:
				onError(fmt.Errorf("%w: no fix from %s within %s", ErrProviderTimeout, d.port, timeout))
				return
			}
		}
	}()

	return w, nil
}

// scanFixes reads lines from r and calls emit for every valid fix until emit
// returns false or the stream ends.
func scanFixes(r io.Reader, emit func(Reading) bool) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		reading, ok := parseFix(scanner.Text())
		if !ok {
			continue
		}
		if !emit(reading) {
			return nil
		}
	}
	return scanner.Err()
}

// parseFix returns the position carried by a GGA sentence with a valid fix.
// Corrupt lines are common on serial links and are skipped.
func parseFix(line string) (Reading, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return Reading{}, false
	}
	sentence, err := nmea.Parse(line)
	if err != nil {
		return Reading{}, false
	}
	gga, ok := sentence.(nmea.GGA)
	if !ok || gga.FixQuality == nmea.Invalid {
		return Reading{}, false
	}
	return Reading{
		Coordinate: Coordinate{Latitude: gga.Latitude, Longitude: gga.Longitude},
		Accuracy:   gga.HDOP * uereMeters,
		Source:     SourceDevice,
		Timestamp:  time.Now(),
	}, true
}

func closeOnce(c io.Closer) func() {
	var once sync.Once
	return func() {
		once.Do(func() { _ = c.Close() })
	}
}
