//go:build linux

package infra

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/eliteGoblin/focusd/win_switch/internal/domain"
)

const (
	procInputDevices = "/proc/bus/input/devices"

	evKey    = 0x01
	keyPress = 1

	// evRepBit is EV_REP in the "B: EV=" bitmap. Keyboards auto-repeat; mice don't.
	evRepBit = 1 << 0x14

	evdevPollTimeout = 200 // ms, bounds how long Stop waits for the reader

	// evdevRescanInterval is how often the reader looks for keyboards
	// plugged in after Start.
	evdevRescanInterval = 5 * time.Second

	evdevHangup = unix.POLLERR | unix.POLLHUP | unix.POLLNVAL
)

// inputEvent matches the kernel's struct input_event.
type inputEvent struct {
	Time  syscall.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// evdevTap reads key presses from /dev/input. Needs the "input" group or root.
type evdevTap struct {
	devicesFile    string
	rescanInterval time.Duration
	open           func(path string) (*os.File, error)
	logger         *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func newEvdevTap(logger *zap.Logger) *evdevTap {
	return &evdevTap{
		devicesFile:    procInputDevices,
		rescanInterval: evdevRescanInterval,
		open:           openInputDevice,
		logger:         logger,
	}
}

func openInputDevice(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_RDONLY|unix.O_NONBLOCK, 0)
}

func (t *evdevTap) Name() string { return "evdev" }

func (t *evdevTap) Start(ctx context.Context, onKey func(time.Time)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		if t.err == nil {
			return nil
		}
		// The reader gave up; clear it out before starting over.
		t.cancel()
		<-t.done
		t.cancel, t.done = nil, nil
	}
	t.err = nil

	devices := map[string]*os.File{}
	found, err := t.scan(devices)
	if err != nil {
		return fmt.Errorf("evdev: %w: %v", domain.ErrInputTapUnavailable, err)
	}
	if len(devices) == 0 {
		return fmt.Errorf("evdev: %w: no readable keyboard device among %d", domain.ErrInputTapUnavailable, found)
	}

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	go t.readLoop(ctx, devices, onKey, t.done)

	t.logger.Debug("evdev tap installed", zap.Int("devices", len(devices)))
	return nil
}

// scan opens every keyboard listed in the devices file that is not in
// devices yet. It returns how many keyboards the file lists.
func (t *evdevTap) scan(devices map[string]*os.File) (int, error) {
	f, err := os.Open(t.devicesFile)
	if err != nil {
		return 0, err
	}
	paths, err := parseKeyboardDevices(f)
	f.Close()
	if err != nil {
		return 0, err
	}

	for _, path := range paths {
		if _, ok := devices[path]; ok {
			continue
		}
		df, err := t.open(path)
		if err != nil {
			t.logger.Debug("cannot open input device", zap.String("device", path), zap.Error(err))
			continue
		}
		devices[path] = df
	}
	return len(paths), nil
}

func (t *evdevTap) readLoop(ctx context.Context, devices map[string]*os.File, onKey func(time.Time), done chan struct{}) {
	defer close(done)
	defer func() {
		for _, f := range devices {
			f.Close()
		}
	}()

	eventSize := binary.Size(inputEvent{})
	buf := make([]byte, eventSize*64)
	lastScan := time.Now()

	for ctx.Err() == nil {
		if len(devices) == 0 || time.Since(lastScan) >= t.rescanInterval {
			before := len(devices)
			if _, err := t.scan(devices); err != nil {
				t.logger.Debug("input device rescan failed", zap.Error(err))
			}
			lastScan = time.Now()
			if len(devices) > before {
				t.logger.Info("input device added", zap.Int("devices", len(devices)))
			}
			if len(devices) == 0 {
				t.fail(fmt.Errorf("evdev: %w: no keyboard device left", domain.ErrInputTapUnavailable))
				return
			}
		}

		paths := make([]string, 0, len(devices))
		fds := make([]unix.PollFd, 0, len(devices))
		for path, f := range devices {
			paths = append(paths, path)
			fds = append(fds, unix.PollFd{Fd: int32(f.Fd()), Events: unix.POLLIN})
		}

		n, err := unix.Poll(fds, evdevPollTimeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			t.fail(fmt.Errorf("evdev: %w: poll: %v", domain.ErrInputTapUnavailable, err))
			return
		}
		if n == 0 {
			continue
		}

		pressed := false
		for i := range fds {
			revents := fds[i].Revents
			if revents == 0 {
				continue
			}
			gone := revents&evdevHangup != 0
			if revents&unix.POLLIN != 0 {
				read, err := unix.Read(int(fds[i].Fd), buf)
				switch {
				case err == unix.EAGAIN || err == unix.EINTR:
				case err != nil:
					gone = true
				case read >= eventSize && countKeyPresses(buf[:read], eventSize) > 0:
					pressed = true
				}
			}
			if gone {
				devices[paths[i]].Close()
				delete(devices, paths[i])
				t.logger.Info("input device removed", zap.String("device", paths[i]), zap.Int("remaining", len(devices)))
			}
		}
		if pressed {
			onKey(time.Now())
		}
	}
}

// fail records why the reader stopped so Err can report it.
func (t *evdevTap) fail(err error) {
	t.logger.Warn("evdev tap stopped", zap.Error(err))
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
}

func (t *evdevTap) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *evdevTap) Stop() error {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

// countKeyPresses counts EV_KEY press events in a buffer of raw input_event
// records. Only the fact that a key went down is used, never which key.
func countKeyPresses(buf []byte, eventSize int) int {
	count := 0
	tail := eventSize - 8 // type(2) code(2) value(4) follow the timeval
	for off := 0; off+eventSize <= len(buf); off += eventSize {
		typ := binary.LittleEndian.Uint16(buf[off+tail : off+tail+2])
		value := int32(binary.LittleEndian.Uint32(buf[off+tail+4 : off+tail+8]))
		if typ == evKey && value == keyPress {
			count++
		}
	}
	return count
}

// parseKeyboardDevices scans /proc/bus/input/devices for blocks that have a
// kbd handler and EV_REP, returning their /dev/input/eventN paths.
func parseKeyboardDevices(r io.Reader) ([]string, error) {
	var devices []string
	var handler string
	var kbd, repeats bool

	flush := func() {
		if kbd && repeats && handler != "" {
			devices = append(devices, "/dev/input/"+handler)
		}
		handler, kbd, repeats = "", false, false
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "H: Handlers="):
			for _, part := range strings.Fields(strings.TrimPrefix(line, "H: Handlers=")) {
				if part == "kbd" {
					kbd = true
				}
				if strings.HasPrefix(part, "event") {
					handler = part
				}
			}
		case strings.HasPrefix(line, "B: EV="):
			bits, err := strconv.ParseUint(strings.TrimPrefix(line, "B: EV="), 16, 64)
			repeats = err == nil && bits&evRepBit != 0
		}
	}
	flush()

	return devices, scanner.Err()
}

var _ domain.KeyTap = (*evdevTap)(nil)
