//go:build darwin

package sensor

import (
	"context"
	"encoding/binary"
	"fmt"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/taigrr/pedometer/shm"
)

// IOKit and CoreFoundation bindings.
var (
	ioServiceMatching              func(name *byte) uintptr
	ioServiceGetMatchingServices   func(mainPort uint32, matching uintptr, existing *uint32) int32
	ioIteratorNext                 func(iterator uint32) uint32
	ioObjectRelease                func(object uint32) int32
	ioRegistryEntryCreateCFProp    func(entry uint32, key uintptr, allocator uintptr, options uint32) uintptr
	ioRegistryEntrySetCFProp       func(entry uint32, key uintptr, value uintptr) int32
	ioHIDDeviceCreate              func(allocator uintptr, service uint32) uintptr
	ioHIDDeviceOpen                func(device uintptr, options int32) int32
	ioHIDDeviceRegisterInputReport func(device uintptr, report uintptr, reportLen int, callback uintptr, context uintptr)
	ioHIDDeviceScheduleWithRL      func(device uintptr, runLoop uintptr, mode uintptr)

	cfStringCreateWithCString func(alloc uintptr, cStr *byte, encoding uint32) uintptr
	cfNumberCreate            func(alloc uintptr, theType int32, valuePtr uintptr) uintptr
	cfNumberGetValue          func(number uintptr, theType int32, valuePtr uintptr) bool
	cfRunLoopGetCurrent       func() uintptr
	cfRunLoopRunInMode        func(mode uintptr, seconds float64, returnAfterSourceHandled bool) int32

	kCFAllocatorDefault   uintptr
	kCFRunLoopDefaultMode uintptr
)

var (
	bindOnce sync.Once
	bindErr  error
)

// bind loads IOKit and CoreFoundation. It runs once; failures surface as
// ErrUnavailable instead of panicking at init.
func bind() error {
	bindOnce.Do(func() {
		iokit, err := purego.Dlopen("/System/Library/Frameworks/IOKit.framework/IOKit", purego.RTLD_LAZY)
		if err != nil {
			bindErr = fmt.Errorf("dlopen IOKit: %w", err)
			return
		}
		cf, err := purego.Dlopen("/System/Library/Frameworks/CoreFoundation.framework/CoreFoundation", purego.RTLD_LAZY)
		if err != nil {
			bindErr = fmt.Errorf("dlopen CoreFoundation: %w", err)
			return
		}

		purego.RegisterLibFunc(&ioServiceMatching, iokit, "IOServiceMatching")
		purego.RegisterLibFunc(&ioServiceGetMatchingServices, iokit, "IOServiceGetMatchingServices")
		purego.RegisterLibFunc(&ioIteratorNext, iokit, "IOIteratorNext")
		purego.RegisterLibFunc(&ioObjectRelease, iokit, "IOObjectRelease")
		purego.RegisterLibFunc(&ioRegistryEntryCreateCFProp, iokit, "IORegistryEntryCreateCFProperty")
		purego.RegisterLibFunc(&ioRegistryEntrySetCFProp, iokit, "IORegistryEntrySetCFProperty")
		purego.RegisterLibFunc(&ioHIDDeviceCreate, iokit, "IOHIDDeviceCreate")
		purego.RegisterLibFunc(&ioHIDDeviceOpen, iokit, "IOHIDDeviceOpen")
		purego.RegisterLibFunc(&ioHIDDeviceRegisterInputReport, iokit, "IOHIDDeviceRegisterInputReportCallback")
		purego.RegisterLibFunc(&ioHIDDeviceScheduleWithRL, iokit, "IOHIDDeviceScheduleWithRunLoop")

		purego.RegisterLibFunc(&cfStringCreateWithCString, cf, "CFStringCreateWithCString")
		purego.RegisterLibFunc(&cfNumberCreate, cf, "CFNumberCreate")
		purego.RegisterLibFunc(&cfNumberGetValue, cf, "CFNumberGetValue")
		purego.RegisterLibFunc(&cfRunLoopGetCurrent, cf, "CFRunLoopGetCurrent")
		purego.RegisterLibFunc(&cfRunLoopRunInMode, cf, "CFRunLoopRunInMode")

		kCFAllocatorDefault = derefSymbol(cf, "kCFAllocatorDefault")
		kCFRunLoopDefaultMode = derefSymbol(cf, "kCFRunLoopDefaultMode")
	})
	return bindErr
}

// derefSymbol reads a CF global, which the dylib exports as a pointer to the
// CFTypeRef.
//
//go:nosplit
func derefSymbol(lib uintptr, name string) uintptr {
	sym, _ := purego.Dlsym(lib, name)
	if sym == 0 {
		return 0
	}
	return **(**uintptr)(unsafe.Pointer(&sym))
}

func cStr(s string) *byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return &b[0]
}

func cfStr(s string) uintptr {
	return cfStringCreateWithCString(0, cStr(s), cfStringEncodingUTF8)
}

func cfNum32(v int32) uintptr {
	return cfNumberCreate(0, cfNumberSInt32Type, uintptr(unsafe.Pointer(&v)))
}

func propInt(service uint32, key string) (int64, bool) {
	ref := ioRegistryEntryCreateCFProp(service, cfStr(key), 0, 0)
	if ref == 0 {
		return 0, false
	}
	var v int64
	if !cfNumberGetValue(ref, cfNumberSInt64Type, uintptr(unsafe.Pointer(&v))) {
		return 0, false
	}
	return v, true
}

// ParseIMUReport extracts the Q16 XYZ triple from a BMI286 report.
func ParseIMUReport(data []byte) (x, y, z int32, ok bool) {
	if len(data) < imuDataOffset+12 {
		return 0, 0, 0, false
	}
	off := imuDataOffset
	x = int32(binary.LittleEndian.Uint32(data[off:]))
	y = int32(binary.LittleEndian.Uint32(data[off+4:]))
	z = int32(binary.LittleEndian.Uint32(data[off+8:]))
	return x, y, z, true
}

// hidWriter is the state reachable from the C callback. Only one HID reader
// runs per process.
type hidWriter struct {
	ring     *shm.RingBuffer
	interval time.Duration
	last     time.Time
	reports  uint64
}

var (
	activeWriter *hidWriter
	accelCbPtr   uintptr
	// gcRoots keeps report buffers alive while IOKit writes into them.
	gcRoots [][]byte
)

func accelCallback(_ uintptr, _ int32, _ uintptr, _ int32, _ uint32, report *byte, length int) {
	w := activeWriter
	if w == nil || length != imuReportLen {
		return
	}
	w.reports++
	now := time.Now()
	if now.Sub(w.last) < w.interval {
		return
	}
	x, y, z, ok := ParseIMUReport(unsafe.Slice(report, length))
	if !ok {
		return
	}
	w.last = now
	w.ring.Write(x, y, z, now.UnixMilli())
}

// HIDConfig configures the accelerometer reader.
type HIDConfig struct {
	Ring     *shm.RingBuffer
	Interval time.Duration
}

// RunHID reads the Apple SPU accelerometer and writes one sample per
// interval into cfg.Ring until ctx is done. It locks the calling goroutine
// to its OS thread for the CFRunLoop.
func RunHID(ctx context.Context, cfg HIDConfig) error {
	if err := bind(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultUpdateInterval
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	activeWriter = &hidWriter{ring: cfg.Ring, interval: cfg.Interval}
	defer func() { activeWriter = nil }()

	if accelCbPtr == 0 {
		accelCbPtr = purego.NewCallback(accelCallback)
	}

	if err := wakeAccelDriver(); err != nil {
		return fmt.Errorf("waking SPU driver: %w", err)
	}
	n, err := openAccelDevices()
	if err != nil {
		return fmt.Errorf("opening accelerometer: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: no AppleSPUHIDDevice accelerometer found", ErrUnavailable)
	}

	for ctx.Err() == nil {
		cfRunLoopRunInMode(kCFRunLoopDefaultMode, 0.25, false)
	}
	return nil
}

// wakeAccelDriver enables reporting on the SPU HID drivers.
func wakeAccelDriver() error {
	var it uint32
	if kr := ioServiceGetMatchingServices(0, ioServiceMatching(cStr("AppleSPUHIDDriver")), &it); kr != 0 {
		return fmt.Errorf("IOServiceGetMatchingServices returned %d", kr)
	}
	for svc := ioIteratorNext(it); svc != 0; svc = ioIteratorNext(it) {
		ioRegistryEntrySetCFProp(svc, cfStr("SensorPropertyReportingState"), cfNum32(1))
		ioRegistryEntrySetCFProp(svc, cfStr("SensorPropertyPowerState"), cfNum32(1))
		ioRegistryEntrySetCFProp(svc, cfStr("ReportInterval"), cfNum32(reportIntervalUS))
		ioObjectRelease(svc)
	}
	return nil
}

// openAccelDevices registers the report callback on every accelerometer
// device and returns how many were opened.
func openAccelDevices() (int, error) {
	var it uint32
	if kr := ioServiceGetMatchingServices(0, ioServiceMatching(cStr("AppleSPUHIDDevice")), &it); kr != 0 {
		return 0, fmt.Errorf("IOServiceGetMatchingServices returned %d", kr)
	}

	opened := 0
	for svc := ioIteratorNext(it); svc != 0; svc = ioIteratorNext(it) {
		page, _ := propInt(svc, "PrimaryUsagePage")
		usage, _ := propInt(svc, "PrimaryUsage")
		if page == pageVendor && usage == usageAccel {
			if hid := ioHIDDeviceCreate(kCFAllocatorDefault, svc); hid != 0 && ioHIDDeviceOpen(hid, 0) == 0 {
				buf := make([]byte, reportBufSize)
				gcRoots = append(gcRoots, buf)
				ioHIDDeviceRegisterInputReport(hid, uintptr(unsafe.Pointer(&buf[0])), reportBufSize, accelCbPtr, 0)
				ioHIDDeviceScheduleWithRL(hid, cfRunLoopGetCurrent(), kCFRunLoopDefaultMode)
				opened++
			}
		}
		ioObjectRelease(svc)
	}
	return opened, nil
}
