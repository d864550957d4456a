//go:build darwin

package sensor

// Apple SPU accelerometer HID identifiers.
const (
	pageVendor = 0xFF00
	usageAccel = 3
)

// Bosch BMI286 report layout.
const (
	imuReportLen  = 22
	imuDataOffset = 6
	reportBufSize = 4096
	// Driver report interval in microseconds (1 kHz).
	reportIntervalUS = 1000
)

// CoreFoundation constants.
const (
	cfStringEncodingUTF8 = 0x08000100
	cfNumberSInt32Type   = 3
	cfNumberSInt64Type   = 4
)
