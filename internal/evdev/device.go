package evdev

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Input event constants from include/uapi/linux/input-event-codes.h.
const (
	EvSyn = 0x00
	EvKey = 0x01

	// KeyMax is the highest key code the kernel defines.
	KeyMax = 0x2ff
)

const (
	// keyBitmapLen is the EVIOCGKEY buffer size: one bit per key code.
	keyBitmapLen = (KeyMax + 7) / 8

	// ioctlEVIOCGKEY encodes _IOC(_IOC_READ, 'E', 0x18, keyBitmapLen).
	//
	// Bit layout: direction(2=read) << 30 | size << 16 | type('E') << 8 | nr(0x18)
	ioctlEVIOCGKEY = 2<<30 | keyBitmapLen<<16 | 'E'<<8 | 0x18

	// timevalSize is sizeof(struct timeval) on this platform.
	timevalSize = int(unsafe.Sizeof(unix.Timeval{}))

	// eventSize is sizeof(struct input_event): timeval + type + code + value.
	eventSize = timevalSize + 8

	// eventsPerRead bounds a single read(2).
	eventsPerRead = 64
)

// Event is one decoded struct input_event.
type Event struct {
	Time  time.Time
	Type  uint16
	Code  uint16
	Value int32
}

// Device is an open, non-blocking input event device.
type Device struct {
	path string

	mu     sync.Mutex
	fd     int
	closed bool
	buf    []byte
}

// Open opens an input event device read-only and non-blocking.
func Open(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return newDevice(fd, path), nil
}

func newDevice(fd int, path string) *Device {
	return &Device{
		path: path,
		fd:   fd,
		buf:  make([]byte, eventSize*eventsPerRead),
	}
}

// Path returns the device node path.
func (d *Device) Path() string {
	return d.path
}

// KeyState reports whether key code is currently pressed.
func (d *Device) KeyState(code uint16) (bool, error) {
	if code > KeyMax {
		return false, fmt.Errorf("%w: %d", ErrKeyOutOfRange, code)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false, ErrClosed
	}

	var bitmap [keyBitmapLen]byte
	_, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		uintptr(d.fd),
		uintptr(ioctlEVIOCGKEY),
		uintptr(unsafe.Pointer(&bitmap[0])),
	)
	if errno != 0 {
		return false, fmt.Errorf("EVIOCGKEY on %s: %w", d.path, errno)
	}
	return keyBit(bitmap[:], code), nil
}

// WaitKey waits up to timeout for input and reports whether any key event
// for code arrived. A false result with a nil error means the wait timed
// out or only unrelated events were read.
func (d *Device) WaitKey(code uint16, timeout time.Duration) (bool, error) {
	events, err := d.ReadEvents(timeout)
	if err != nil {
		return false, err
	}
	for _, ev := range events {
		if ev.Type == EvKey && ev.Code == code {
			return true, nil
		}
	}
	return false, nil
}

// ReadEvents waits up to timeout for the device to become readable and
// returns every complete event available.
func (d *Device) ReadEvents(timeout time.Duration) ([]Event, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrClosed
	}
	fd := d.fd
	d.mu.Unlock()

	// The lock is not held across poll so Close is never delayed by a wait.
	pollFds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}} // #nosec G115 -- fd fits int32
	n, err := unix.Poll(pollFds, int(timeout.Milliseconds()))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, nil
		}
		return nil, fmt.Errorf("polling %s: %w", d.path, err)
	}
	if n == 0 {
		return nil, nil
	}
	if pollFds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 && pollFds[0].Revents&unix.POLLIN == 0 {
		return nil, fmt.Errorf("polling %s: device gone (revents 0x%x)", d.path, pollFds[0].Revents)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}

	var events []Event
	for {
		read, err := unix.Read(d.fd, d.buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				return events, nil
			}
			return events, fmt.Errorf("reading %s: %w", d.path, err)
		}
		if read <= 0 {
			return events, nil
		}
		events = append(events, parseEvents(d.buf[:read])...)
		if read < len(d.buf) {
			return events, nil
		}
	}
}

// Close releases the device. Safe to call more than once.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if err := unix.Close(d.fd); err != nil {
		return fmt.Errorf("closing %s: %w", d.path, err)
	}
	return nil
}

// keyBit tests bit code in a little-endian key bitmap.
func keyBit(bitmap []byte, code uint16) bool {
	i := int(code / 8)
	if i >= len(bitmap) {
		return false
	}
	return bitmap[i]&(1<<(code%8)) != 0
}

// parseEvents decodes packed struct input_event records. A trailing
// partial record is ignored.
//
//	struct input_event {
//	    struct timeval time; // 16 bytes on 64-bit, 8 on 32-bit
//	    __u16 type;
//	    __u16 code;
//	    __s32 value;
//	};
func parseEvents(buf []byte) []Event {
	events := make([]Event, 0, len(buf)/eventSize)
	for off := 0; off+eventSize <= len(buf); off += eventSize {
		rec := buf[off : off+eventSize]

		var sec, usec int64
		if timevalSize == 16 {
			sec = int64(binary.NativeEndian.Uint64(rec[0:8]))   // #nosec G115 -- kernel timeval
			usec = int64(binary.NativeEndian.Uint64(rec[8:16])) // #nosec G115 -- kernel timeval
		} else {
			sec = int64(int32(binary.NativeEndian.Uint32(rec[0:4])))  // #nosec G115 -- kernel timeval
			usec = int64(int32(binary.NativeEndian.Uint32(rec[4:8]))) // #nosec G115 -- kernel timeval
		}

		tail := rec[timevalSize:]
		events = append(events, Event{
			Time:  time.Unix(sec, usec*int64(time.Microsecond)),
			Type:  binary.NativeEndian.Uint16(tail[0:2]),
			Code:  binary.NativeEndian.Uint16(tail[2:4]),
			Value: int32(binary.NativeEndian.Uint32(tail[4:8])), // #nosec G115 -- signed field
		})
	}
	return events
}
