//go:build linux && (386 || arm)

package alsa

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// SndPcmUframesT is an unsigned long in the ALSA headers.
// On 32-bit architectures, this is a 32-bit unsigned integer.
type SndPcmUframesT = uint32

// SndPcmSframesT is a signed long in the ALSA headers.
// On 32-bit architectures, this is a 32-bit signed integer.
type SndPcmSframesT = int32

// clong is a type alias for the C `long` type on 32-bit systems.
type clong = int32

// kernelTimespec is the timespec used inside the PCM status structures.
type kernelTimespec = unix.Timespec

// SndXferi is for interleaved read/write operations.
type SndXferi struct {
	Result SndPcmSframesT // Corresponds to C ssize_t
	Buf    unsafe.Pointer // void*
	Frames SndPcmUframesT
}

// sndXfern is for non-interleaved read/write operations.
type sndXfern struct {
	Result SndPcmSframesT
	Bufs   uintptr
	Frames SndPcmUframesT
}

// SndPcmHwParams contains hardware parameters for a PCM device.
type SndPcmHwParams struct {
	Flags     uint32
	Masks     [3]SndMask
	Mres      [5]SndMask
	Intervals [12]SndInterval
	Ires      [9]SndInterval
	Rmask     uint32
	Cmask     uint32
	Info      uint32
	Msbits    uint32
	RateNum   uint32
	RateDen   uint32
	FifoSize  SndPcmUframesT
	Reserved  [64]byte
}

// SndPcmMmapStatus contains the status of an MMAP PCM stream.
type SndPcmMmapStatus struct {
	State          PcmState
	Pad1           int32
	HwPtr          SndPcmUframesT
	_              [4]byte
	Tstamp         kernelTimespec
	SuspendedState PcmState
	_              [4]byte
	AudioTstamp    kernelTimespec
}

// SndPcmMmapControl contains control parameters for an MMAP PCM stream.
type SndPcmMmapControl struct {
	ApplPtr  SndPcmUframesT
	AvailMin SndPcmUframesT
}

// sndPcmStatus contains the current status of a PCM stream.
type sndPcmStatus struct {
	State          PcmState
	_              [4]byte // Padding
	TriggerTstamp  kernelTimespec
	Tstamp         kernelTimespec
	ApplPtr        SndPcmUframesT
	HwPtr          SndPcmUframesT
	Delay          SndPcmSframesT
	Avail          SndPcmUframesT
	AvailMax       SndPcmUframesT
	Overrange      SndPcmUframesT
	SuspendedState PcmState
	_              [28]byte // Reserved
}

// SndCtlElemValue holds the value of a control element.
type SndCtlElemValue struct {
	Id SndCtlElemId
	// This represents the `unsigned int indirect:1;` field from the C struct.
	// On 32-bit architectures, the following `Value` union is only 4-byte aligned,
	// so no extra padding is needed after this 4-byte field.
	_ [4]byte
	// Represents a C union. The largest member on 32-bit is 'long long Value[64]' (512 bytes).
	Value    [512]byte
	Reserved [128]byte
}

// sndCtlElemList is used to enumerate control elements.
type sndCtlElemList struct {
	Offset   uint32
	Space    uint32
	Used     uint32
	Count    uint32
	Pids     uintptr
	Reserved [50]byte
}

// SndPcmSyncPtr is used to synchronize hardware and application pointers via ioctl.
// The field order must match the C struct exactly. This definition is for 32-bit systems.
type SndPcmSyncPtr struct {
	Flags uint32
	// Padding (4 bytes) required to align the unions to 8 bytes (due to Timespec inside status).
	_ [4]byte
	S struct {
		SndPcmMmapStatus
		_ [8]byte // Padding to make the union 64 bytes
	}
	C struct {
		SndPcmMmapControl
		_ [56]byte // Padding to make the union 64 bytes
	}
}

// SndPcmSwParams contains software parameters for a PCM device for 32-bit systems.
// The layout must match the C struct exactly. This version matches older kernel ABIs
// for broader compatibility.
type SndPcmSwParams struct {
	TstampMode       uint32
	PeriodStep       uint32
	SleepMin         uint32
	AvailMin         SndPcmUframesT
	XferAlign        SndPcmUframesT
	StartThreshold   SndPcmUframesT
	StopThreshold    SndPcmUframesT
	SilenceThreshold SndPcmUframesT
	SilenceSize      SndPcmUframesT
	Boundary         SndPcmUframesT
	Reserved         [64]byte
}
