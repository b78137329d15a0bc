package capture

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Recorder opens capture streams and hands out Recording handles.
type Recorder struct {
	ctx        Context
	deviceRate uint32
	targetRate uint32
	channels   uint32
	logger     *slog.Logger
}

func NewRecorder(ctx Context, deviceRate, targetRate, channels uint32, logger *slog.Logger) *Recorder {
	return &Recorder{
		ctx:        ctx,
		deviceRate: deviceRate,
		targetRate: targetRate,
		channels:   channels,
		logger:     logger.With(slog.String("component", "recorder")),
	}
}

// ListDevices returns the names of available capture devices.
func (r *Recorder) ListDevices() ([]string, error) {
	devices, err := r.ctx.Devices()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(devices))
	for _, d := range devices {
		names = append(names, d.Name)
	}
	return names, nil
}

// CreateRecording opens deviceName and starts streaming into a new
// Recording. An empty name selects the backend default device.
func (r *Recorder) CreateRecording(deviceName string) (*Recording, error) {
	var device *DeviceInfo
	if deviceName != "" {
		devices, err := r.ctx.Devices()
		if err != nil {
			return nil, fmt.Errorf("enumerate devices: %w", err)
		}
		for i := range devices {
			if devices[i].Name == deviceName {
				device = &devices[i]
				break
			}
		}
		if device == nil {
			return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, deviceName)
		}
	}

	enc, err := newFlacEncoder(r.targetRate)
	if err != nil {
		return nil, err
	}

	dev, err := r.ctx.NewCapture(device, CaptureConfig{
		SampleRate: r.deviceRate,
		Channels:   r.channels,
	})
	if err != nil {
		return nil, fmt.Errorf("open capture device: %w", err)
	}

	rec := &Recording{
		dev:        dev,
		enc:        enc,
		deviceRate: int(r.deviceRate),
		targetRate: int(r.targetRate),
		logger:     r.logger,
		active:     true,
	}
	dev.SetCallback(rec.onData)

	if err := dev.Start(); err != nil {
		dev.Close()
		return nil, fmt.Errorf("start capture: %w", err)
	}
	r.logger.Info("recording started",
		slog.String("device", deviceName),
		slog.Int("device_rate", int(r.deviceRate)),
		slog.Int("target_rate", int(r.targetRate)))
	return rec, nil
}

// Recording owns one capture stream and the encoded audio it produced.
// It is owned exclusively by the orchestrator between start and stop.
type Recording struct {
	dev        CaptureDevice
	enc        *flacEncoder
	deviceRate int
	targetRate int
	logger     *slog.Logger

	mu       sync.Mutex
	active   bool
	released bool
}

// onData runs on the audio backend's callback goroutine. Each chunk is
// resampled independently before encoding.
func (r *Recording) onData(data []byte, _ uint32) {
	pcm := PCMFromBytes(data)
	resampled := Resample(pcm, r.deviceRate, r.targetRate)

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	if err := r.enc.encodeBlock(resampled); err != nil {
		r.logger.Warn("dropping audio chunk", slog.String("error", err.Error()))
	}
}

// Stop halts the stream and finalizes the encoded artifact. Idempotent.
func (r *Recording) Stop() {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}
	r.active = false
	r.mu.Unlock()

	// dev.Stop blocks until the backend's in-flight data callback has
	// returned; onData takes r.mu, so these calls must run unlocked.
	r.dev.ClearCallback()
	r.dev.Stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enc.close(); err != nil {
		r.logger.Warn("finalizing flac stream failed", slog.String("error", err.Error()))
	}
}

// Fingerprint is the md5 hex digest of the encoded audio, used as both a
// deduplication key and the artifact file name.
func (r *Recording) Fingerprint() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := md5.Sum(r.enc.bytes())
	return hex.EncodeToString(sum[:])
}

// Save writes the encoded audio to path, creating parent directories and
// appending the .flac suffix if missing. Saving while the stream is still
// active is refused.
func (r *Recording) Save(path string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return "", ErrStreamActive
	}
	if filepath.Ext(path) != ".flac" {
		path += ".flac"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.WriteFile(path, r.enc.bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	r.logger.Info("audio saved", slog.String("path", path), slog.Int("bytes", len(r.enc.bytes())))
	return path, nil
}

// Cleanup releases the device and drops buffered audio. Safe to call on
// every exit path, including after Stop and Save.
func (r *Recording) Cleanup() {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return
	}
	r.released = true
	wasActive := r.active
	r.active = false
	r.mu.Unlock()

	// Same constraint as Stop: the device blocks on its in-flight
	// callback, so r.mu stays released around these calls.
	if wasActive {
		r.dev.ClearCallback()
		r.dev.Stop()
	}
	r.dev.Close()

	r.mu.Lock()
	defer r.mu.Unlock()
	if wasActive {
		_ = r.enc.close()
	}
	r.enc.buf.Reset()
}

// IsActive reports whether the stream is still capturing.
func (r *Recording) IsActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}
