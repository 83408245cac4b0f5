package alsa

import (
	"errors"
	"fmt"
	"syscall"
	"time"
	"unsafe"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// pcmPlugin is the plugin backend. It emulates the PCM ioctls of the kernel on top of
// the operations of a registered plugin.
type pcmPlugin struct {
	card   uint
	device uint
	flags  PcmFlag
	name   string
	node   *SndNode
	plugin *PcmPlugin

	bufferSize SndPcmUframesT
	boundary   SndPcmUframesT
	closed     bool
}

func openPcmPlugin(node *SndNode, card, device uint, flags PcmFlag) (*pcmPlugin, error) {
	name, err := node.PluginName()
	if err != nil {
		node.close()

		return nil, err
	}

	open, err := lookupPcmPlugin(name)
	if err != nil {
		node.close()

		return nil, fmt.Errorf("card %d device %d: %w", card, device, err)
	}

	plugin, err := open(node, card, device, flags)
	if err != nil {
		node.close()

		return nil, fmt.Errorf("failed to open pcm plugin %s: %w", name, err)
	}

	if plugin == nil || plugin.Ops == nil {
		node.close()

		return nil, fmt.Errorf("pcm plugin %s returned no operations", name)
	}

	if plugin.Constraints == nil {
		_ = plugin.Ops.Close(plugin)
		node.close()

		return nil, fmt.Errorf("pcm plugin %s has no hardware constraints", name)
	}

	plugin.Card = card
	plugin.Node = node
	plugin.Mode = flags
	plugin.SetState(SNDRV_PCM_STATE_OPEN)

	logger().WithFields(logrus.Fields{
		"card":    card,
		"device":  device,
		"plugin":  name,
		"capture": (flags & PCM_IN) != 0,
	}).Debug("Opened PCM plugin")

	return &pcmPlugin{
		card:   card,
		device: device,
		flags:  flags,
		name:   name,
		node:   node,
		plugin: plugin,
	}, nil
}

func (pp *pcmPlugin) capture() bool {
	return (pp.flags & PCM_IN) != 0
}

func (pp *pcmPlugin) state() PcmState {
	return pp.plugin.State()
}

func (pp *pcmPlugin) setState(s PcmState) {
	pp.plugin.SetState(s)
}

func (pp *pcmPlugin) ioctl(cmd uintptr, arg unsafe.Pointer) error {
	if pp.closed {
		return syscall.EBADF
	}

	ops := pp.plugin.Ops

	switch cmd {
	case SNDRV_PCM_IOCTL_PVERSION:
		*(*int32)(arg) = SNDRV_PCM_VERSION

		return nil
	case SNDRV_PCM_IOCTL_INFO:
		pp.info((*SndPcmInfo)(arg))

		return nil
	case SNDRV_PCM_IOCTL_TTSTAMP:
		return ops.Ttstamp(pp.plugin, (*int32)(arg))
	case SNDRV_PCM_IOCTL_HW_REFINE:
		return refineHwParams(pp.plugin.Constraints, (*SndPcmHwParams)(arg))
	case SNDRV_PCM_IOCTL_HW_PARAMS:
		return pp.hwParams((*SndPcmHwParams)(arg))
	case SNDRV_PCM_IOCTL_HW_FREE:
		switch pp.state() {
		case SNDRV_PCM_STATE_OPEN, SNDRV_PCM_STATE_SETUP, SNDRV_PCM_STATE_PREPARED:
		default:
			return unix.EBADFD
		}

		pp.setState(SNDRV_PCM_STATE_OPEN)

		return nil
	case SNDRV_PCM_IOCTL_SW_PARAMS:
		return pp.swParams((*SndPcmSwParams)(arg))
	case SNDRV_PCM_IOCTL_SYNC_PTR:
		return pp.syncPtr((*SndPcmSyncPtr)(arg))
	case SNDRV_PCM_IOCTL_HWSYNC:
		if pp.state() == SNDRV_PCM_STATE_XRUN {
			return syscall.EPIPE
		}

		var sp SndPcmSyncPtr
		sp.Flags = SNDRV_PCM_SYNC_PTR_HWSYNC | SNDRV_PCM_SYNC_PTR_APPL | SNDRV_PCM_SYNC_PTR_AVAIL_MIN

		return pp.syncPtr(&sp)
	case SNDRV_PCM_IOCTL_STATUS:
		return pp.status((*sndPcmStatus)(arg))
	case SNDRV_PCM_IOCTL_DELAY:
		return pp.delay((*SndPcmSframesT)(arg))
	case SNDRV_PCM_IOCTL_PREPARE:
		switch pp.state() {
		case SNDRV_PCM_STATE_SETUP, SNDRV_PCM_STATE_PREPARED, SNDRV_PCM_STATE_XRUN, SNDRV_PCM_STATE_RUNNING:
		default:
			return unix.EBADFD
		}

		if err := ops.Prepare(pp.plugin); err != nil {
			return err
		}

		pp.setState(SNDRV_PCM_STATE_PREPARED)

		return nil
	case SNDRV_PCM_IOCTL_START:
		if pp.state() != SNDRV_PCM_STATE_PREPARED {
			return unix.EBADFD
		}

		if err := ops.Start(pp.plugin); err != nil {
			return err
		}

		pp.setState(SNDRV_PCM_STATE_RUNNING)

		return nil
	case SNDRV_PCM_IOCTL_DROP:
		if pp.state() == SNDRV_PCM_STATE_OPEN {
			return unix.EBADFD
		}

		if err := ops.Drop(pp.plugin); err != nil {
			return err
		}

		pp.setState(SNDRV_PCM_STATE_SETUP)

		return nil
	case SNDRV_PCM_IOCTL_DRAIN:
		return pp.drain()
	case SNDRV_PCM_IOCTL_WRITEI_FRAMES:
		if pp.capture() {
			return syscall.EINVAL
		}

		if err := pp.checkTransfer(); err != nil {
			return err
		}

		return ops.WriteiFrames(pp.plugin, (*SndXferi)(arg))
	case SNDRV_PCM_IOCTL_READI_FRAMES:
		if !pp.capture() {
			return syscall.EINVAL
		}

		if err := pp.checkTransfer(); err != nil {
			return err
		}

		return ops.ReadiFrames(pp.plugin, (*SndXferi)(arg))
	case SNDRV_PCM_IOCTL_UNLINK:
		return ErrNotSupported
	default:
		return ops.Ioctl(pp.plugin, cmd, arg)
	}
}

func (pp *pcmPlugin) ioctlValue(cmd, arg uintptr) error {
	if pp.closed {
		return syscall.EBADF
	}

	switch cmd {
	case SNDRV_PCM_IOCTL_LINK:
		return ErrNotSupported
	case SNDRV_PCM_IOCTL_PAUSE:
		enable := int32(arg)

		want, next := SNDRV_PCM_STATE_PAUSED, SNDRV_PCM_STATE_RUNNING
		if enable != 0 {
			want, next = SNDRV_PCM_STATE_RUNNING, SNDRV_PCM_STATE_PAUSED
		}

		if pp.state() != want {
			return unix.EBADFD
		}

		if err := pp.plugin.Ops.Ioctl(pp.plugin, cmd, unsafe.Pointer(&enable)); err != nil {
			return err
		}

		pp.setState(next)

		return nil
	default:
		v := arg

		return pp.plugin.Ops.Ioctl(pp.plugin, cmd, unsafe.Pointer(&v))
	}
}

// fd returns an invalid descriptor; plugin PCMs are not backed by a file.
func (pp *pcmPlugin) fd() uintptr {
	return ^uintptr(0)
}

func (pp *pcmPlugin) mmap(int64, int, int, int) ([]byte, error) {
	return nil, fmt.Errorf("mmap on pcm plugin %s: %w", pp.name, ErrNotSupported)
}

// setupPollInterval is how often a waiting SETUP stream looks for a state change.
const setupPollInterval = 5 * time.Millisecond

// poll reports readiness from the plugin state. Transfers block in the plugin itself.
// A SETUP stream is never ready: poll waits out the timeout, or returns early once
// another goroutine prepares the stream.
func (pp *pcmPlugin) poll(events int16, timeoutMs int) (int16, error) {
	if pp.closed {
		return unix.POLLNVAL, nil
	}

	switch pp.state() {
	case SNDRV_PCM_STATE_XRUN:
		return unix.POLLERR, nil
	case SNDRV_PCM_STATE_OPEN, SNDRV_PCM_STATE_DISCONNECTED:
		return unix.POLLNVAL, nil
	case SNDRV_PCM_STATE_SETUP:
		if !pp.waitSetupLeft(timeoutMs) {
			return 0, nil
		}

		return pp.poll(events, 0)
	}

	if pp.capture() {
		return events & unix.POLLIN, nil
	}

	return events & unix.POLLOUT, nil
}

// waitSetupLeft sleeps until the stream leaves SETUP or timeoutMs runs out, and reports
// whether it left. A negative timeout waits for as long as it takes.
func (pp *pcmPlugin) waitSetupLeft(timeoutMs int) bool {
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)

	for pp.state() == SNDRV_PCM_STATE_SETUP {
		wait := setupPollInterval
		if timeoutMs >= 0 {
			left := time.Until(deadline)
			if left <= 0 {
				return false
			}

			wait = min(wait, left)
		}

		time.Sleep(wait)
	}

	return true
}

func (pp *pcmPlugin) close() error {
	if pp.closed {
		return nil
	}

	pp.closed = true

	err := pp.plugin.Ops.Close(pp.plugin)
	pp.node.close()

	logger().WithFields(logrus.Fields{
		"card":   pp.card,
		"device": pp.device,
		"plugin": pp.name,
	}).Debug("Closed PCM plugin")

	return err
}

func (pp *pcmPlugin) info(info *SndPcmInfo) {
	*info = SndPcmInfo{}
	info.Card = int32(pp.card)
	info.Device = uint32(pp.device)
	info.Stream = SNDRV_PCM_STREAM_PLAYBACK
	if pp.capture() {
		info.Stream = SNDRV_PCM_STREAM_CAPTURE
	}

	name, err := pp.node.Str("name")
	if err != nil || name == "" {
		name = pp.name
	}

	copy(info.Id[:len(info.Id)-1], pp.name)
	copy(info.Name[:len(info.Name)-1], name)
	copy(info.Subname[:len(info.Subname)-1], "subdevice #0")
	info.SubdevicesCount = 1
	info.SubdevicesAvail = 1
}

func (pp *pcmPlugin) hwParams(params *SndPcmHwParams) error {
	switch pp.state() {
	case SNDRV_PCM_STATE_OPEN, SNDRV_PCM_STATE_SETUP:
	default:
		return unix.EBADFD
	}

	if err := refineHwParams(pp.plugin.Constraints, params); err != nil {
		return err
	}

	if err := pp.plugin.Ops.HwParams(pp.plugin, params); err != nil {
		return err
	}

	periodSize := params.Int(SNDRV_PCM_HW_PARAM_PERIOD_SIZE)
	periods := params.Int(SNDRV_PCM_HW_PARAM_PERIODS)

	pp.bufferSize = SndPcmUframesT(periodSize) * SndPcmUframesT(periods)
	pp.setState(SNDRV_PCM_STATE_SETUP)

	logger().WithFields(logrus.Fields{
		"plugin":      pp.name,
		"format":      params.Format(),
		"channels":    params.Int(SNDRV_PCM_HW_PARAM_CHANNELS),
		"rate":        params.Int(SNDRV_PCM_HW_PARAM_RATE),
		"period_size": periodSize,
		"periods":     periods,
	}).Debug("PCM plugin hardware parameters set")

	return nil
}

func (pp *pcmPlugin) swParams(params *SndPcmSwParams) error {
	if pp.state() == SNDRV_PCM_STATE_OPEN {
		return unix.EBADFD
	}

	if err := pp.plugin.Ops.SwParams(pp.plugin, params); err != nil {
		return err
	}

	if params.Boundary == 0 {
		params.Boundary = pcmBoundary(pp.bufferSize)
	}

	pp.boundary = params.Boundary

	return nil
}

// pcmBoundary returns the largest power-of-two multiple of the buffer size that fits in a signed long.
func pcmBoundary(bufferSize SndPcmUframesT) SndPcmUframesT {
	if bufferSize == 0 {
		return 0
	}

	limit := ^SndPcmUframesT(0) >> 1

	boundary := bufferSize
	for boundary <= (limit-bufferSize)/2 {
		boundary *= 2
	}

	return boundary
}

func (pp *pcmPlugin) syncPtr(sp *SndPcmSyncPtr) error {
	if err := pp.plugin.Ops.SyncPtr(pp.plugin, sp); err != nil {
		return err
	}

	sp.S.State = pp.state()

	return nil
}

func (pp *pcmPlugin) checkTransfer() error {
	switch pp.state() {
	case SNDRV_PCM_STATE_PREPARED, SNDRV_PCM_STATE_RUNNING:
		return nil
	case SNDRV_PCM_STATE_XRUN:
		return syscall.EPIPE
	default:
		return unix.EBADFD
	}
}

// pointers returns the hardware and application pointers reported by the plugin.
func (pp *pcmPlugin) pointers() (hw, appl SndPcmUframesT, sp *SndPcmSyncPtr, err error) {
	sp = &SndPcmSyncPtr{}
	sp.Flags = SNDRV_PCM_SYNC_PTR_HWSYNC | SNDRV_PCM_SYNC_PTR_APPL | SNDRV_PCM_SYNC_PTR_AVAIL_MIN

	if err := pp.syncPtr(sp); err != nil {
		return 0, 0, nil, err
	}

	return sp.S.HwPtr, sp.C.ApplPtr, sp, nil
}

// filled returns the frames queued for playback or ready for capture.
func (pp *pcmPlugin) filled(hw, appl SndPcmUframesT) SndPcmSframesT {
	var n SndPcmSframesT
	if pp.capture() {
		n = SndPcmSframesT(hw) - SndPcmSframesT(appl)
	} else {
		n = SndPcmSframesT(appl) - SndPcmSframesT(hw)
	}

	if n < 0 {
		n += SndPcmSframesT(pp.boundary)
	}

	return n
}

func (pp *pcmPlugin) status(st *sndPcmStatus) error {
	hw, appl, sp, err := pp.pointers()
	if err != nil {
		return err
	}

	*st = sndPcmStatus{}
	st.State = pp.state()
	st.HwPtr = hw
	st.ApplPtr = appl
	st.Tstamp = sp.S.Tstamp
	st.Delay = pp.filled(hw, appl)

	if pp.capture() {
		st.Avail = SndPcmUframesT(st.Delay)
	} else if SndPcmUframesT(st.Delay) <= pp.bufferSize {
		st.Avail = pp.bufferSize - SndPcmUframesT(st.Delay)
	}

	st.AvailMax = st.Avail

	return nil
}

func (pp *pcmPlugin) delay(d *SndPcmSframesT) error {
	switch pp.state() {
	case SNDRV_PCM_STATE_XRUN:
		return syscall.EPIPE
	case SNDRV_PCM_STATE_OPEN, SNDRV_PCM_STATE_SETUP:
		return unix.EBADFD
	}

	hw, appl, _, err := pp.pointers()
	if err != nil {
		return err
	}

	*d = pp.filled(hw, appl)

	return nil
}

// drain lets the plugin play out pending frames. Plugins that do not handle the DRAIN
// ioctl are dropped instead.
func (pp *pcmPlugin) drain() error {
	switch pp.state() {
	case SNDRV_PCM_STATE_OPEN, SNDRV_PCM_STATE_SETUP:
		return unix.EBADFD
	}

	ops := pp.plugin.Ops

	if !pp.capture() && pp.state() == SNDRV_PCM_STATE_RUNNING {
		err := ops.Ioctl(pp.plugin, SNDRV_PCM_IOCTL_DRAIN, nil)
		if err == nil {
			pp.setState(SNDRV_PCM_STATE_SETUP)

			return nil
		}

		if !errors.Is(err, syscall.ENOTTY) {
			return err
		}
	}

	if err := ops.Drop(pp.plugin); err != nil {
		return err
	}

	pp.setState(SNDRV_PCM_STATE_SETUP)

	return nil
}

// refineHwParams narrows params to the constraints of a plugin. Masks are intersected,
// intervals clamped. A parameter left without any valid value is EINVAL.
func refineHwParams(c *PcmPluginHwConstraints, params *SndPcmHwParams) error {
	if c == nil {
		return syscall.EINVAL
	}

	access := params.Mask(SNDRV_PCM_HW_PARAM_ACCESS)
	access.bits[0] &= uint32(c.Access)
	for i := 1; i < len(access.bits); i++ {
		access.bits[i] = 0
	}

	if access.Empty() {
		return syscall.EINVAL
	}

	format := params.Mask(SNDRV_PCM_HW_PARAM_FORMAT)
	format.bits[0] &= uint32(c.Format)
	format.bits[1] &= uint32(c.Format >> 32)
	for i := 2; i < len(format.bits); i++ {
		format.bits[i] = 0
	}

	if format.Empty() {
		return syscall.EINVAL
	}

	subformat := params.Mask(SNDRV_PCM_HW_PARAM_SUBFORMAT)
	if !subformat.Test(SNDRV_PCM_SUBFORMAT_STD) {
		return syscall.EINVAL
	}

	params.SetMask(SNDRV_PCM_HW_PARAM_SUBFORMAT, SNDRV_PCM_SUBFORMAT_STD)

	intervals := []struct {
		param PcmParam
		limit PcmPluginMinMax
	}{
		{SNDRV_PCM_HW_PARAM_SAMPLE_BITS, c.BitWidth},
		{SNDRV_PCM_HW_PARAM_CHANNELS, c.Channels},
		{SNDRV_PCM_HW_PARAM_RATE, c.Rate},
		{SNDRV_PCM_HW_PARAM_PERIODS, c.Periods},
		{SNDRV_PCM_HW_PARAM_PERIOD_BYTES, c.PeriodBytes},
	}

	for _, iv := range intervals {
		if err := refineInterval(params.Interval(iv.param), iv.limit); err != nil {
			return fmt.Errorf("%s: %w", pcmParamName(iv.param), err)
		}
	}

	params.Rmask = 0

	return nil
}

// refineInterval clamps i to limit. A zero limit leaves the interval unconstrained.
func refineInterval(i *SndInterval, limit PcmPluginMinMax) error {
	if limit.Min > limit.Max {
		return syscall.EINVAL
	}

	if limit.Max == 0 {
		return nil
	}

	if i.MinVal < limit.Min {
		i.MinVal = limit.Min
		i.Flags &^= SNDRV_PCM_INTERVAL_OPENMIN
	}

	if i.MaxVal > limit.Max {
		i.MaxVal = limit.Max
		i.Flags &^= SNDRV_PCM_INTERVAL_OPENMAX
	}

	if i.MinVal > i.MaxVal {
		i.Flags |= SNDRV_PCM_INTERVAL_EMPTY

		return syscall.EINVAL
	}

	return nil
}

func pcmParamName(p PcmParam) string {
	switch p {
	case SNDRV_PCM_HW_PARAM_SAMPLE_BITS:
		return "sample bits"
	case SNDRV_PCM_HW_PARAM_CHANNELS:
		return "channels"
	case SNDRV_PCM_HW_PARAM_RATE:
		return "rate"
	case SNDRV_PCM_HW_PARAM_PERIODS:
		return "periods"
	case SNDRV_PCM_HW_PARAM_PERIOD_BYTES:
		return "period bytes"
	default:
		return fmt.Sprintf("param %d", p)
	}
}
