// Package capture records microphone input into content-addressed FLAC
// artifacts ready for transcription upload.
package capture

import "errors"

// DataCallback receives raw little-endian S16 PCM from the device.
type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

// Context abstracts the audio backend so tests can substitute a fake.
type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
}

var (
	ErrDeviceNotFound = errors.New("capture device not found")
	ErrStreamActive   = errors.New("cannot save while capture stream is active")
)
