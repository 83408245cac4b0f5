//go:build linux && (amd64 || arm64)

package alsa

import (
	"unsafe"

	// Use unix.Timespec for consistency, although syscall.Timespec is identical on 64-bit linux.
	"golang.org/x/sys/unix"
)

// SndPcmUframesT is an unsigned long in the ALSA headers.
// On 64-bit architectures, this is a 64-bit unsigned integer.
type SndPcmUframesT = uint64

// SndPcmSframesT is a signed long in the ALSA headers.
// On 64-bit architectures, this is a 64-bit signed integer.
type SndPcmSframesT = int64

// clong is a type alias for the C `long` type on 64-bit systems.
type clong = int64

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
	Result SndPcmSframesT // Corresponds to C ssize_t
	Bufs   uintptr        // void**
	Frames SndPcmUframesT
}

// SndPcmHwParams contains hardware parameters for a PCM device.
type SndPcmHwParams struct {
	Flags     uint32
	Masks     [3]SndMask
	Mres      [5]SndMask // reserved for future use
	Intervals [12]SndInterval
	Ires      [9]SndInterval // reserved for future use
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
// On 64-bit systems, padding is required before AudioTstamp for alignment.
type SndPcmMmapStatus struct {
	State          PcmState
	Pad1           int32
	HwPtr          SndPcmUframesT
	Tstamp         unix.Timespec
	SuspendedState PcmState
	_              [4]byte
	AudioTstamp    unix.Timespec
}

// SndPcmMmapControl contains control parameters for an MMAP PCM stream.
type SndPcmMmapControl struct {
	ApplPtr  SndPcmUframesT
	AvailMin SndPcmUframesT
}

// sndPcmStatus contains the current status of a PCM stream.
type sndPcmStatus struct {
	State               PcmState
	_                   [4]byte
	TriggerTstamp       unix.Timespec
	Tstamp              unix.Timespec
	ApplPtr             SndPcmUframesT
	HwPtr               SndPcmUframesT
	Delay               SndPcmSframesT
	Avail               SndPcmUframesT
	AvailMax            SndPcmUframesT
	Overrange           SndPcmUframesT
	SuspendedState      PcmState
	AudioTstampData     uint32
	AudioTstamp         unix.Timespec
	DriverTstamp        unix.Timespec
	AudioTstampAccuracy uint32
	_                   [20]byte // Reserved
}

// SndCtlElemValue holds the value of a control element.
type SndCtlElemValue struct {
	Id SndCtlElemId
	_  [8]byte
	// The value union on 64-bit systems is 1024 bytes (long value[128] = 8*128 = 1024)
	Value    [1024]byte
	Reserved [128]byte
}

// sndCtlElemList is used to enumerate control elements.
type sndCtlElemList struct {
	Offset   uint32
	Space    uint32
	Used     uint32
	Count    uint32
	Pids     uintptr // *SndCtlElemId
	Reserved [50]byte
}

// SndPcmSyncPtr is used to synchronize hardware and application pointers via ioctl.
// The field order must match the C struct exactly. This definition is for 64-bit systems.
type SndPcmSyncPtr struct {
	Flags uint32
	_     [4]byte // Padding to align the unions
	S     struct {
		SndPcmMmapStatus
		_ [8]byte // Padding to make the union 64 bytes
	}
	C struct {
		SndPcmMmapControl
		_ [48]byte // Padding to make the union 64 bytes
	}
}

// SndPcmSwParams contains software parameters for a PCM device for 64-bit systems.
// This struct has 4 bytes of padding after SleepMin to align the following uint64 fields.
type SndPcmSwParams struct {
	TstampMode       uint32
	PeriodStep       uint32
	SleepMin         uint32
	_                [4]byte // Padding for 64-bit alignment
	AvailMin         SndPcmUframesT
	XferAlign        SndPcmUframesT
	StartThreshold   SndPcmUframesT
	StopThreshold    SndPcmUframesT
	SilenceThreshold SndPcmUframesT
	SilenceSize      SndPcmUframesT
	Boundary         SndPcmUframesT
	Reserved         [64]byte
}
