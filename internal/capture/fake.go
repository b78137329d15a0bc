package capture

import "sync"

// FakeContext is an in-memory audio backend for tests. Each capture
// replays the configured PCM through the data callback when started.
type FakeContext struct {
	DeviceNames []string
	PCM         []byte
	ChunkBytes  int
	OpenErr     error
	StartErr    error

	mu       sync.Mutex
	captures []*FakeCapture
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	var devices []DeviceInfo
	for i, name := range f.DeviceNames {
		devices = append(devices, DeviceInfo{ID: string(rune('a' + i)), Name: name})
	}
	return devices, nil
}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	chunk := f.ChunkBytes
	if chunk <= 0 {
		chunk = 2048
	}
	c := &FakeCapture{pcm: f.PCM, chunkBytes: chunk, startErr: f.StartErr}
	f.mu.Lock()
	f.captures = append(f.captures, c)
	f.mu.Unlock()
	return c, nil
}

func (f *FakeContext) Close() {}

// Captures returns every capture handed out, for close/stop assertions.
func (f *FakeContext) Captures() []*FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeCapture(nil), f.captures...)
}

type FakeCapture struct {
	pcm        []byte
	chunkBytes int
	startErr   error

	mu      sync.Mutex
	cb      DataCallback
	Stopped bool
	Closed  bool
}

func (c *FakeCapture) SetCallback(cb DataCallback) {
	c.mu.Lock()
	c.cb = cb
	c.mu.Unlock()
}

func (c *FakeCapture) ClearCallback() {
	c.mu.Lock()
	c.cb = nil
	c.mu.Unlock()
}

// Start replays the PCM synchronously in chunk-sized callbacks.
func (c *FakeCapture) Start() error {
	if c.startErr != nil {
		return c.startErr
	}
	c.mu.Lock()
	cb := c.cb
	c.mu.Unlock()
	if cb == nil {
		return nil
	}
	for pos := 0; pos < len(c.pcm); pos += c.chunkBytes {
		end := pos + c.chunkBytes
		if end > len(c.pcm) {
			end = len(c.pcm)
		}
		chunk := append([]byte(nil), c.pcm[pos:end]...)
		cb(chunk, uint32(len(chunk)/2))
	}
	return nil
}

func (c *FakeCapture) Stop() {
	c.mu.Lock()
	c.Stopped = true
	c.mu.Unlock()
}

func (c *FakeCapture) Close() {
	c.mu.Lock()
	c.Closed = true
	c.mu.Unlock()
}
