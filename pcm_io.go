package alsa

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"syscall"
	"unsafe"

	"github.com/sirupsen/logrus"
)

// Write writes interleaved audio data to a playback PCM device.
// The provided `data` argument must be a slice of a supported numeric type (e.g., []int16, []float32).
// Returns the number of frames actually written.
func (p *PCM) Write(data any) (int, error) {
	if (p.flags & PCM_IN) != 0 {
		return 0, fmt.Errorf("cannot write to a capture device")
	}

	return p.transfer(SNDRV_PCM_IOCTL_WRITEI_FRAMES, "WRITEI_FRAMES", data)
}

// Read reads interleaved audio data from a capture PCM device.
// The provided `data` must be a slice of a supported numeric type (e.g., []int16, []float32).
// Returns the number of frames actually read.
func (p *PCM) Read(data any) (int, error) {
	if (p.flags & PCM_IN) == 0 {
		return 0, fmt.Errorf("cannot read from a playback device")
	}

	if (p.flags & PCM_MMAP) != 0 {
		return 0, fmt.Errorf("use MmapRead for mmap devices")
	}

	return p.transfer(SNDRV_PCM_IOCTL_READI_FRAMES, "READI_FRAMES", data)
}

// transfer moves whole frames between data and the device with the WRITEI or READI ioctl,
// preparing a stream left in SETUP and recovering from xruns unless PCM_NORESTART is set.
// An empty slice transfers nothing.
func (p *PCM) transfer(cmd uintptr, name string, data any) (int, error) {
	dataPtr, byteLen, err := checkSliceAndGetData(data)
	if err != nil {
		return 0, fmt.Errorf("invalid data for %s: %w", name, err)
	}

	if byteLen == 0 {
		return 0, nil
	}

	frames := PcmBytesToFrames(p, byteLen)
	if frames == 0 {
		return 0, fmt.Errorf("%s: %d bytes do not hold a whole frame of %d bytes", name, byteLen, p.FrameSize())
	}

	defer runtime.KeepAlive(data)

	if p.State() == SNDRV_PCM_STATE_SETUP {
		if err := p.Prepare(); err != nil {
			return 0, err
		}
	}

	var done uint32

	for done < frames {
		xfer := SndXferi{
			Frames: SndPcmUframesT(frames - done),
			Buf:    unsafe.Add(dataPtr, PcmFramesToBytes(p, done)),
		}

		err := p.t.ioctl(cmd, unsafe.Pointer(&xfer))

		if xfer.Result > 0 {
			done += uint32(xfer.Result)
		}

		if err == nil {
			if xfer.Result > 0 {
				continue
			}

			// Success without progress is a plugin fault.
			if (p.flags & PCM_NONBLOCK) != 0 {
				return int(done), syscall.EAGAIN
			}

			return int(done), fmt.Errorf("ioctl %s transferred no frames: %w", name, syscall.EIO)
		}

		if (p.flags&PCM_NORESTART) == 0 && (errors.Is(err, syscall.ESTRPIPE) || errors.Is(err, syscall.EPIPE)) {
			logger().WithFields(logrus.Fields{
				"ioctl": name,
				"xruns": p.xruns + 1,
			}).WithError(err).Debug("Recovering stream")

			if err := p.xrunRecover(err); err != nil {
				return int(done), err
			}

			continue
		}

		// EAGAIN: a non-blocking stream has no room, or no frames, right now.
		if (p.flags&PCM_NONBLOCK) != 0 && errors.Is(err, syscall.EAGAIN) {
			return int(done), syscall.EAGAIN
		}

		return int(done), fmt.Errorf("ioctl %s failed: %w", name, err)
	}

	return int(done), nil
}

// checkSlice validates that the input is a slice of a supported numeric type.
// It returns the total length of the slice data in bytes.
func checkSlice(data any) (byteLen uint32, err error) {
	if data == nil {
		return 0, errors.New("data cannot be nil")
	}

	rv := reflect.ValueOf(data)
	if rv.Kind() != reflect.Slice {
		return 0, fmt.Errorf("expected a slice, got %T", data)
	}

	if rv.Len() == 0 {
		return 0, nil
	}

	switch rv.Type().Elem().Kind() {
	case reflect.Int8, reflect.Uint8,
		reflect.Int16, reflect.Uint16,
		reflect.Int32, reflect.Uint32,
		reflect.Float32, reflect.Float64:
	default:
		return 0, fmt.Errorf("unsupported slice element type: %s", rv.Type().Elem().Kind())
	}

	return uint32(rv.Len()) * uint32(rv.Type().Elem().Size()), nil
}

// checkSliceAndGetData is a helper that combines slice validation and getting the data pointer.
func checkSliceAndGetData(data any) (ptr unsafe.Pointer, byteLen uint32, err error) {
	byteLen, err = checkSlice(data)
	if err != nil {
		return nil, 0, err
	}

	if byteLen > 0 {
		ptr = unsafe.Pointer(reflect.ValueOf(data).Index(0).Addr().Pointer())
	}

	return ptr, byteLen, nil
}
