//go:build darwin

// Package shm implements the POSIX shared memory ring that carries
// accelerometer samples from stepd to readers.
package shm

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// Ring layout. The header holds the next write index (u32), the running
// sample total (u64) and four reserved bytes. Each entry is x, y, z as
// Q16 int32 followed by the capture time in Unix milliseconds (i64).
const (
	RingCap   = 4096
	RingEntry = 20
	Header    = 16
	Size      = Header + RingCap*RingEntry

	AccelScale = 65536.0 // Q16 raw -> g

	NameAccel = "pedometer_accel_shm"
)

// Sample is one scaled accelerometer reading.
type Sample struct {
	X, Y, Z         float64
	TimestampMillis int64
}

// RingBuffer is a single-writer shared memory ring.
type RingBuffer struct {
	buf  []byte
	name string
	fd   int
}

// CreateRing creates (or recreates) a writable ring named name.
func CreateRing(name string) (*RingBuffer, error) {
	_ = shmUnlink(name)

	fd, err := shmOpen(name, unix.O_CREAT|unix.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("shm_open %s: %w", name, err)
	}
	if err := unix.Ftruncate(fd, Size); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ftruncate %s: %w", name, err)
	}
	buf, err := unix.Mmap(fd, 0, Size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mmap %s: %w", name, err)
	}
	clear(buf)

	return &RingBuffer{buf: buf, name: name, fd: fd}, nil
}

// OpenRing maps an existing ring read-only.
func OpenRing(name string) (*RingBuffer, error) {
	fd, err := shmOpen(name, unix.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("shm_open %s: %w", name, err)
	}
	buf, err := unix.Mmap(fd, 0, Size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mmap %s: %w", name, err)
	}
	return &RingBuffer{buf: buf, name: name, fd: fd}, nil
}

// Write appends a raw Q16 sample captured at tMillis.
func (r *RingBuffer) Write(x, y, z int32, tMillis int64) {
	idx := binary.LittleEndian.Uint32(r.buf[0:4])
	off := Header + int(idx)*RingEntry

	binary.LittleEndian.PutUint32(r.buf[off:], uint32(x))
	binary.LittleEndian.PutUint32(r.buf[off+4:], uint32(y))
	binary.LittleEndian.PutUint32(r.buf[off+8:], uint32(z))
	binary.LittleEndian.PutUint64(r.buf[off+12:], uint64(tMillis))

	binary.LittleEndian.PutUint32(r.buf[0:4], (idx+1)%RingCap)
	total := binary.LittleEndian.Uint64(r.buf[4:12])
	binary.LittleEndian.PutUint64(r.buf[4:12], total+1)
}

// ReadNew returns the samples written since lastTotal, oldest first, and the
// new total. At most RingCap samples are returned.
func (r *RingBuffer) ReadNew(lastTotal uint64, scale float64) ([]Sample, uint64) {
	total := binary.LittleEndian.Uint64(r.buf[4:12])
	n := int64(total) - int64(lastTotal)
	if n <= 0 {
		return nil, total
	}
	n = min(n, RingCap)

	idx := binary.LittleEndian.Uint32(r.buf[0:4])
	start := (int64(idx) - n + RingCap) % RingCap
	out := make([]Sample, n)
	for i := range n {
		off := Header + int((start+i)%RingCap)*RingEntry
		out[i] = Sample{
			X:               float64(int32(binary.LittleEndian.Uint32(r.buf[off:]))) / scale,
			Y:               float64(int32(binary.LittleEndian.Uint32(r.buf[off+4:]))) / scale,
			Z:               float64(int32(binary.LittleEndian.Uint32(r.buf[off+8:]))) / scale,
			TimestampMillis: int64(binary.LittleEndian.Uint64(r.buf[off+12:])),
		}
	}
	return out, total
}

// Close unmaps the ring without unlinking it.
func (r *RingBuffer) Close() error {
	if err := unix.Munmap(r.buf); err != nil {
		return err
	}
	return unix.Close(r.fd)
}

// Unlink removes the named segment.
func (r *RingBuffer) Unlink() error {
	return shmUnlink(r.name)
}
