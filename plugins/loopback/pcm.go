package loopback

import (
	"encoding/binary"
	"fmt"
	"syscall"
	"unsafe"

	"github.com/soundplug/alsa"
	"golang.org/x/sys/unix"
)

// Constraints returns the hardware constraints of loopback PCMs.
func Constraints() *alsa.PcmPluginHwConstraints {
	return &alsa.PcmPluginHwConstraints{
		Access: 1 << alsa.SNDRV_PCM_ACCESS_RW_INTERLEAVED,
		Format: 1<<alsa.SNDRV_PCM_FORMAT_S16_LE |
			1<<alsa.SNDRV_PCM_FORMAT_S24_LE |
			1<<alsa.SNDRV_PCM_FORMAT_S32_LE |
			1<<alsa.SNDRV_PCM_FORMAT_FLOAT_LE,
		BitWidth:    alsa.PcmPluginMinMax{Min: 8, Max: 32},
		Channels:    alsa.PcmPluginMinMax{Min: 1, Max: 8},
		Rate:        alsa.PcmPluginMinMax{Min: 8000, Max: 192000},
		Periods:     alsa.PcmPluginMinMax{Min: 2, Max: 16},
		PeriodBytes: alsa.PcmPluginMinMax{Min: 64, Max: 65536},
	}
}

// stream is the private data of one open loopback PCM.
type stream struct {
	ring     *ring
	card     *cardState
	capture  bool
	nonblock bool

	format     alsa.PcmFormat
	channels   uint32
	frameBytes int
	bufferSize alsa.SndPcmUframesT
	boundary   alsa.SndPcmUframesT

	// Guarded by ring.mu.
	applPtr  alsa.SndPcmUframesT
	availMin alsa.SndPcmUframesT
	stopped  bool
	tstamp   int32
}

type pcmOps struct {
	alsa.UnimplementedPcmPluginOps
}

func openPcm(node *alsa.SndNode, card, device uint, mode alsa.PcmFlag) (*alsa.PcmPlugin, error) {
	if (mode & alsa.PCM_MMAP) != 0 {
		return nil, fmt.Errorf("loopback: mmap access: %w", alsa.ErrNotSupported)
	}

	capacity := DefaultRingBytes
	if n, err := node.Int("ring_bytes"); err == nil && n > 0 {
		capacity = n
	}

	r := acquireRing(card, device, capacity)

	s := &stream{
		ring:     r,
		card:     getCard(card),
		capture:  (mode & alsa.PCM_IN) != 0,
		nonblock: (mode & alsa.PCM_NONBLOCK) != 0,
	}

	r.mu.Lock()
	busy := (s.capture && r.capture != nil) || (!s.capture && r.playback != nil)
	if !busy {
		if s.capture {
			r.capture = s
		} else {
			r.playback = s
		}
	}
	r.mu.Unlock()

	if busy {
		releaseRing(r)

		return nil, fmt.Errorf("loopback: card %d device %d: %w", card, device, syscall.EBUSY)
	}

	return &alsa.PcmPlugin{
		Ops:         pcmOps{},
		Constraints: Constraints(),
		Priv:        s,
	}, nil
}

func priv(plugin *alsa.PcmPlugin) *stream {
	return plugin.Priv.(*stream)
}

func (pcmOps) Close(plugin *alsa.PcmPlugin) error {
	s := priv(plugin)
	r := s.ring

	r.mu.Lock()
	if s.capture {
		r.capture = nil
	} else {
		r.playback = nil
	}
	s.stopped = true
	r.cond.Broadcast()
	r.mu.Unlock()

	releaseRing(r)

	return nil
}

func (pcmOps) HwParams(plugin *alsa.PcmPlugin, params *alsa.SndPcmHwParams) error {
	s := priv(plugin)

	format := params.Format()
	bits := alsa.PcmFormatToBits(format)
	if bits == 0 {
		return syscall.EINVAL
	}

	channels := params.Int(alsa.SNDRV_PCM_HW_PARAM_CHANNELS)
	periods := params.Int(alsa.SNDRV_PCM_HW_PARAM_PERIODS)
	periodSize := params.Int(alsa.SNDRV_PCM_HW_PARAM_PERIOD_SIZE)
	if channels == 0 || periods == 0 || periodSize == 0 {
		return syscall.EINVAL
	}

	frameBits := bits * channels
	periodBytes := periodSize * frameBits / 8

	limit := params.Interval(alsa.SNDRV_PCM_HW_PARAM_PERIOD_BYTES)
	if periodBytes < limit.MinVal || periodBytes > limit.MaxVal {
		return syscall.EINVAL
	}

	params.SetMask(alsa.SNDRV_PCM_HW_PARAM_FORMAT, uint32(format))
	params.SetMask(alsa.SNDRV_PCM_HW_PARAM_ACCESS, alsa.SNDRV_PCM_ACCESS_RW_INTERLEAVED)
	params.SetInt(alsa.SNDRV_PCM_HW_PARAM_SAMPLE_BITS, bits)
	params.SetInt(alsa.SNDRV_PCM_HW_PARAM_FRAME_BITS, frameBits)
	params.SetInt(alsa.SNDRV_PCM_HW_PARAM_CHANNELS, channels)
	params.SetInt(alsa.SNDRV_PCM_HW_PARAM_RATE, params.Int(alsa.SNDRV_PCM_HW_PARAM_RATE))
	params.SetInt(alsa.SNDRV_PCM_HW_PARAM_PERIODS, periods)
	params.SetInt(alsa.SNDRV_PCM_HW_PARAM_PERIOD_SIZE, periodSize)
	params.SetInt(alsa.SNDRV_PCM_HW_PARAM_PERIOD_BYTES, periodBytes)
	params.SetInt(alsa.SNDRV_PCM_HW_PARAM_BUFFER_SIZE, periodSize*periods)
	params.SetInt(alsa.SNDRV_PCM_HW_PARAM_BUFFER_BYTES, periodBytes*periods)

	s.ring.mu.Lock()
	defer s.ring.mu.Unlock()

	s.format = format
	s.channels = channels
	s.frameBytes = int(frameBits / 8)
	s.bufferSize = alsa.SndPcmUframesT(periodSize * periods)
	s.boundary = boundary(s.bufferSize)

	return nil
}

// boundary returns the wrap point of the stream pointers.
func boundary(bufferSize alsa.SndPcmUframesT) alsa.SndPcmUframesT {
	if bufferSize == 0 {
		return 0
	}

	limit := ^alsa.SndPcmUframesT(0) >> 1

	b := bufferSize
	for b <= (limit-bufferSize)/2 {
		b *= 2
	}

	return b
}

func (pcmOps) SwParams(plugin *alsa.PcmPlugin, params *alsa.SndPcmSwParams) error {
	s := priv(plugin)

	s.ring.mu.Lock()
	defer s.ring.mu.Unlock()

	s.availMin = params.AvailMin
	params.Boundary = s.boundary

	return nil
}

func (pcmOps) SyncPtr(plugin *alsa.PcmPlugin, sp *alsa.SndPcmSyncPtr) error {
	s := priv(plugin)

	s.ring.mu.Lock()
	defer s.ring.mu.Unlock()

	// Read and write transfers own the application pointer, so it is only reported.
	sp.C.ApplPtr = s.applPtr

	if (sp.Flags & alsa.SNDRV_PCM_SYNC_PTR_AVAIL_MIN) == 0 {
		s.availMin = sp.C.AvailMin
	} else {
		sp.C.AvailMin = s.availMin
	}

	sp.S.HwPtr = s.hwPtr()

	clock := unix.CLOCK_REALTIME
	if s.tstamp == 1 {
		clock = unix.CLOCK_MONOTONIC
	}

	_ = unix.ClockGettime(int32(clock), &sp.S.Tstamp)

	return nil
}

// hwPtr derives the hardware pointer from the frames held by the ring: ahead of the
// application pointer for capture, behind it for playback. The caller holds ring.mu.
func (s *stream) hwPtr() alsa.SndPcmUframesT {
	if s.frameBytes == 0 || s.boundary == 0 {
		return s.applPtr
	}

	queued := alsa.SndPcmUframesT(s.ring.size / s.frameBytes)
	if !s.capture && s.ring.capture == nil {
		queued = 0
	}

	if s.capture {
		return (s.applPtr + queued) % s.boundary
	}

	return (s.applPtr + s.boundary - queued) % s.boundary
}

func (pcmOps) Ttstamp(plugin *alsa.PcmPlugin, tstamp *int32) error {
	s := priv(plugin)

	s.ring.mu.Lock()
	defer s.ring.mu.Unlock()

	s.tstamp = *tstamp

	return nil
}

func (pcmOps) Prepare(plugin *alsa.PcmPlugin) error {
	s := priv(plugin)

	s.ring.mu.Lock()
	defer s.ring.mu.Unlock()

	s.applPtr = 0
	s.stopped = false

	return nil
}

func (pcmOps) Drop(plugin *alsa.PcmPlugin) error {
	s := priv(plugin)

	s.ring.mu.Lock()
	defer s.ring.mu.Unlock()

	s.stopped = true
	if s.capture {
		s.ring.reset()
	}

	s.ring.cond.Broadcast()

	return nil
}

// advance moves the application pointer by frames, wrapping at the boundary. The caller holds ring.mu.
func (s *stream) advance(frames alsa.SndPcmUframesT) {
	s.applPtr += frames
	if s.boundary > 0 && s.applPtr >= s.boundary {
		s.applPtr -= s.boundary
	}
}

func (pcmOps) WriteiFrames(plugin *alsa.PcmPlugin, x *alsa.SndXferi) error {
	s := priv(plugin)
	r := s.ring

	if s.frameBytes == 0 {
		return unix.EBADFD
	}

	plugin.CompareAndSwapState(alsa.SNDRV_PCM_STATE_PREPARED, alsa.SNDRV_PCM_STATE_RUNNING)

	data := x.Data(int(x.Frames) * s.frameBytes)
	volume, mode := s.card.settings()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Nobody listens: the frames are consumed right away.
	if r.capture == nil {
		s.advance(x.Frames)
		x.Result = alsa.SndPcmSframesT(x.Frames)

		return nil
	}

	for r.free() < s.frameBytes && !s.stopped && r.capture != nil {
		if s.nonblock {
			return syscall.EAGAIN
		}

		r.cond.Wait()
	}

	if s.stopped {
		return unix.EBADFD
	}

	frames := min(len(data), r.free()) / s.frameBytes
	chunk := make([]byte, frames*s.frameBytes)
	copy(chunk, data)
	s.apply(chunk, volume, mode)

	if r.capture != nil {
		r.put(chunk)
	}

	s.advance(alsa.SndPcmUframesT(frames))
	x.Result = alsa.SndPcmSframesT(frames)

	r.cond.Broadcast()

	return nil
}

func (pcmOps) ReadiFrames(plugin *alsa.PcmPlugin, x *alsa.SndXferi) error {
	s := priv(plugin)
	r := s.ring

	if s.frameBytes == 0 {
		return unix.EBADFD
	}

	plugin.CompareAndSwapState(alsa.SNDRV_PCM_STATE_PREPARED, alsa.SNDRV_PCM_STATE_RUNNING)

	data := x.Data(int(x.Frames) * s.frameBytes)

	r.mu.Lock()
	defer r.mu.Unlock()

	for r.size < s.frameBytes && !s.stopped {
		if s.nonblock {
			return syscall.EAGAIN
		}

		r.cond.Wait()
	}

	if s.stopped {
		return unix.EBADFD
	}

	frames := min(len(data), r.size) / s.frameBytes
	r.get(data[:frames*s.frameBytes])

	s.advance(alsa.SndPcmUframesT(frames))
	x.Result = alsa.SndPcmSframesT(frames)

	r.cond.Broadcast()

	return nil
}

func (pcmOps) Ioctl(plugin *alsa.PcmPlugin, cmd uintptr, arg unsafe.Pointer) error {
	s := priv(plugin)
	r := s.ring

	switch cmd {
	case alsa.SNDRV_PCM_IOCTL_DRAIN:
		r.mu.Lock()
		defer r.mu.Unlock()

		for r.size > 0 && r.capture != nil && !s.stopped {
			r.cond.Wait()
		}

		return nil
	case alsa.SNDRV_PCM_IOCTL_PAUSE:
		return nil
	default:
		return syscall.ENOTTY
	}
}

// apply runs the mixer settings over interleaved playback frames.
func (s *stream) apply(frames []byte, volume [2]int32, mode int32) {
	switch mode {
	case ModeMute:
		clear(frames)

		return
	case ModeSwap:
		if s.channels >= 2 {
			sample := s.frameBytes / int(s.channels)
			tmp := make([]byte, sample)
			for off := 0; off+s.frameBytes <= len(frames); off += s.frameBytes {
				l := frames[off : off+sample]
				r := frames[off+sample : off+2*sample]
				copy(tmp, l)
				copy(l, r)
				copy(r, tmp)
			}
		}
	}

	if s.format != alsa.SNDRV_PCM_FORMAT_S16_LE || (volume[0] == 100 && volume[1] == 100) {
		return
	}

	for off, ch := 0, 0; off+2 <= len(frames); off, ch = off+2, (ch+1)%int(s.channels) {
		v := volume[min(ch, 1)]
		sample := int32(int16(binary.LittleEndian.Uint16(frames[off:])))
		binary.LittleEndian.PutUint16(frames[off:], uint16(int16(sample*v/100)))
	}
}
