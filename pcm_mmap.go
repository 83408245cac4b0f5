package alsa

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// loadUframes reads a frame pointer shared with the kernel.
func loadUframes(ptr *SndPcmUframesT) SndPcmUframesT {
	if unsafe.Sizeof(*ptr) == 8 {
		return SndPcmUframesT(atomic.LoadUint64((*uint64)(unsafe.Pointer(ptr))))
	}

	return SndPcmUframesT(atomic.LoadUint32((*uint32)(unsafe.Pointer(ptr))))
}

func storeUframes(ptr *SndPcmUframesT, v SndPcmUframesT) {
	if unsafe.Sizeof(*ptr) == 8 {
		atomic.StoreUint64((*uint64)(unsafe.Pointer(ptr)), uint64(v))

		return
	}

	atomic.StoreUint32((*uint32)(unsafe.Pointer(ptr)), uint32(v))
}

func (p *PCM) requireMmap(method string) error {
	if (p.flags & PCM_MMAP) == 0 {
		return fmt.Errorf("method %s() is only available for MMAP streams", method)
	}

	return nil
}

// framesAvail returns the readable frames of a capture stream, or the writable frames of a
// playback stream, for the given pointer positions.
func (p *PCM) framesAvail(applPtr, hwPtr SndPcmUframesT) int {
	if (p.flags & PCM_IN) != 0 {
		avail := int(hwPtr) - int(applPtr)
		if avail < 0 {
			avail += int(p.boundary)
		}

		return avail
	}

	used := int(applPtr) - int(hwPtr)
	if used < 0 {
		used += int(p.boundary)
	}

	return int(p.bufferSize) - used
}

// AvailUpdate synchronizes the PCM state with the kernel and returns the number of available frames.
// For playback streams, this is the number of frames that can be written.
// For capture streams, this is the number of frames that can be read.
// This method is only available for MMAP streams.
func (p *PCM) AvailUpdate() (int, error) {
	if err := p.requireMmap("AvailUpdate"); err != nil {
		return 0, err
	}

	if err := p.syncPtr(SNDRV_PCM_SYNC_PTR_HWSYNC); err != nil {
		// After an XRUN the pointers are meaningless: a playback buffer counts as empty,
		// a capture buffer as having nothing to read.
		if p.State() == SNDRV_PCM_STATE_XRUN {
			if (p.flags & PCM_IN) != 0 {
				return 0, syscall.EPIPE
			}

			return int(p.bufferSize), syscall.EPIPE
		}

		return 0, err
	}

	return p.framesAvail(loadUframes(&p.mmapControl.ApplPtr), loadUframes(&p.mmapStatus.HwPtr)), nil
}

// AvailMax returns the maximum number of frames that can be written to a playback stream or read from a capture stream.
// This function is only available for MMAP streams.
func (p *PCM) AvailMax() (int, error) {
	avail, err := p.AvailUpdate()
	if err != nil {
		return 0, err
	}

	return int(p.bufferSize) - avail, nil
}

// MmapWrite writes interleaved audio data to a playback MMAP PCM device.
// The provided `data` must be a slice of a supported numeric type (e.g., []int16, []float32).
// It waits for buffer space and starts the stream once data has been committed.
// Returns the number of bytes written.
func (p *PCM) MmapWrite(data any) (int, error) {
	if err := p.requireMmap("MmapWrite"); err != nil {
		return 0, err
	}

	if (p.flags & PCM_IN) != 0 {
		return 0, fmt.Errorf("cannot write to a capture device")
	}

	return p.mmapTransfer("MmapWrite", data)
}

// MmapRead reads interleaved audio data from a capture MMAP PCM device.
// The provided `data` must be a slice of a supported numeric type (e.g., []int16, []float32) that will receive the data.
// Returns the number of bytes read.
func (p *PCM) MmapRead(data any) (int, error) {
	if err := p.requireMmap("MmapRead"); err != nil {
		return 0, err
	}

	if (p.flags & PCM_IN) == 0 {
		return 0, fmt.Errorf("cannot read from a playback device")
	}

	return p.mmapTransfer("MmapRead", data)
}

// mmapTransfer copies between data and the mapped ring buffer in the direction of the stream,
// recovering from xruns and waiting whenever the ring has no room or no frames.
func (p *PCM) mmapTransfer(method string, data any) (int, error) {
	dataPtr, dataByteLen, err := checkSliceAndGetData(data)
	if err != nil {
		return 0, fmt.Errorf("invalid data type for %s: %w", method, err)
	}

	defer runtime.KeepAlive(data)

	capture := (p.flags & PCM_IN) != 0
	user := unsafe.Slice((*byte)(dataPtr), int(dataByteLen))
	offset := 0

	for offset < len(user) {
		wantFrames := PcmBytesToFrames(p, uint32(len(user)-offset))
		if wantFrames == 0 {
			break
		}

		// Streams stopped by a drop or a linked stream need a fresh prepare.
		if s := p.State(); s == SNDRV_PCM_STATE_SETUP || s == SNDRV_PCM_STATE_OPEN {
			if err := p.Prepare(); err != nil {
				return offset, err
			}
		}

		area, _, frames, _, err := p.MmapBegin(wantFrames)
		if err != nil {
			if errors.Is(err, unix.EBADFD) {
				if err := p.Prepare(); err != nil {
					return offset, err
				}

				continue
			}

			if err := p.recoverMmap(method, err); err != nil {
				return offset, err
			}

			continue
		}

		if frames == 0 {
			ready, err := p.Wait(p.mmapWaitTimeout())
			if err != nil {
				if !errors.Is(err, syscall.EPIPE) {
					return offset, fmt.Errorf("pcm wait failed: %w", err)
				}

				if err := p.recoverMmap(method, err); err != nil {
					return offset, err
				}

				continue
			}

			if !ready && (p.flags&PCM_NONBLOCK) != 0 {
				return offset, syscall.EAGAIN
			}

			continue
		}

		n := int(PcmFramesToBytes(p, frames))
		if capture {
			copy(user[offset:offset+n], area)
		} else {
			copy(area, user[offset:offset+n])
		}

		offset += n

		if err := p.MmapCommit(frames); err != nil {
			// The copied frames stay counted; the stream only needs recovery before the next chunk.
			if err := p.recoverMmap(method, err); err != nil {
				return offset, err
			}

			continue
		}

		if !capture && p.State() == SNDRV_PCM_STATE_PREPARED {
			// EBADFD means the stream was started between the state check and START.
			if err := p.Start(); err != nil && !errors.Is(err, unix.EBADFD) {
				return offset, err
			}
		}
	}

	return offset, nil
}

// recoverMmap recovers from an xrun reported while transferring. Other errors are returned as is.
func (p *PCM) recoverMmap(method string, err error) error {
	if !errors.Is(err, syscall.EPIPE) {
		return err
	}

	logger().WithFields(logrus.Fields{
		"method": method,
		"xruns":  p.xruns + 1,
	}).Debug("Recovering MMAP stream from xrun")

	return p.xrunRecover(err)
}

// mmapWaitTimeout is -1 (block) unless the stream runs without interrupts, in which case the
// wait covers the time the device needs to reach the avail_min threshold.
func (p *PCM) mmapWaitTimeout() int {
	if (p.flags&PCM_NOIRQ) == 0 || p.noirqFramesPerMsec == 0 {
		return -1
	}

	avail, err := p.AvailUpdate()
	if err != nil || uint32(avail) >= p.config.AvailMin {
		return -1
	}

	return max(1, int((p.config.AvailMin-uint32(avail))/p.noirqFramesPerMsec))
}

// MmapBegin prepares for a memory-mapped transfer. It returns a slice of the main buffer corresponding to the available contiguous
// space for writing or reading, the offset in frames from the start of the buffer, and the number of frames available in that slice.
func (p *PCM) MmapBegin(wantFrames uint32) (buffer []byte, offsetFrames, actualFrames uint32, avail SndPcmUframesT, err error) {
	if err = p.requireMmap("MmapBegin"); err != nil {
		return
	}

	switch p.State() {
	case SNDRV_PCM_STATE_XRUN:
		err = syscall.EPIPE
		return
	case SNDRV_PCM_STATE_OPEN, SNDRV_PCM_STATE_SETUP, SNDRV_PCM_STATE_DRAINING:
		err = unix.EBADFD
		return
	case SNDRV_PCM_STATE_SUSPENDED:
		err = syscall.ESTRPIPE
		return
	case SNDRV_PCM_STATE_DISCONNECTED:
		err = syscall.ENODEV
		return
	}

	applPtr := loadUframes(&p.mmapControl.ApplPtr)
	avail = SndPcmUframesT(max(0, p.framesAvail(applPtr, loadUframes(&p.mmapStatus.HwPtr))))

	// Never past the available frames, nor past the end of the ring.
	offsetFrames = uint32(applPtr % SndPcmUframesT(p.bufferSize))
	actualFrames = min(wantFrames, uint32(avail), p.bufferSize-offsetFrames)

	frameSize := uint64(p.FrameSize())
	start := uint64(offsetFrames) * frameSize
	end := start + uint64(actualFrames)*frameSize

	if end > uint64(len(p.mmapBuffer)) {
		err = unix.EBADFD
		return
	}

	if end > start {
		buffer = p.mmapBuffer[start:end]
	}

	return
}

// MmapCommit commits the number of frames transferred after a MmapBegin call.
func (p *PCM) MmapCommit(frames uint32) error {
	if err := p.requireMmap("MmapCommit"); err != nil {
		return err
	}

	applPtr := loadUframes(&p.mmapControl.ApplPtr) + SndPcmUframesT(frames)
	if p.boundary > 0 && applPtr >= p.boundary {
		applPtr -= p.boundary
	}

	storeUframes(&p.mmapControl.ApplPtr, applPtr)

	// Publish the new appl_ptr and read back the hardware position.
	return p.syncPtr(SNDRV_PCM_SYNC_PTR_APPL | SNDRV_PCM_SYNC_PTR_HWSYNC)
}

func (p *PCM) statusTime() time.Time {
	ts := p.mmapStatus.Tstamp

	return time.Unix(int64(ts.Sec), int64(ts.Nsec))
}

// Timestamp returns available frames and the corresponding timestamp.
// The clock source is CLOCK_MONOTONIC if the PCM_MONOTONIC flag was used, otherwise it is CLOCK_REALTIME.
// This method is only available for MMAP streams.
func (p *PCM) Timestamp() (availFrames uint32, t time.Time, err error) {
	if err = p.requireMmap("Timestamp"); err != nil {
		return
	}

	avail, err := p.AvailUpdate()
	if err != nil {
		return
	}

	return uint32(avail), p.statusTime(), nil
}

// HWPtr returns the current hardware pointer position and the corresponding timestamp.
// This method is only available for MMAP streams.
func (p *PCM) HWPtr() (hwPtr SndPcmUframesT, t time.Time, err error) {
	if !p.IsReady() {
		err = fmt.Errorf("PCM is not ready")

		return
	}

	if err = p.requireMmap("HWPtr"); err != nil {
		return
	}

	if ioctlErr := p.syncPtr(SNDRV_PCM_SYNC_PTR_HWSYNC); ioctlErr != nil {
		err = fmt.Errorf("ioctl HWSYNC failed: %w", ioctlErr)
	}

	return loadUframes(&p.mmapStatus.HwPtr), p.statusTime(), err
}
