package alsa

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// MixerPlugin is the state shared between the host and a mixer plugin.
type MixerPlugin struct {
	// Card number of the mixer.
	Card uint
	// Operations registered by the plugin.
	Ops MixerPluginOps
	// Private data of the plugin.
	Priv any
	// Controls exposed by the plugin. The numid of a control is its index plus one.
	Controls []SndControl

	mu         sync.Mutex
	eventFd    int
	subscribed bool
	eventCnt   int
}

// notify queues one event notification. It is the MixerEventCallback handed to plugins.
func (mp *MixerPlugin) notify(*MixerPlugin) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if !mp.subscribed {
		return
	}

	mp.eventCnt++

	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)

	if _, err := unix.Write(mp.eventFd, buf[:]); err != nil {
		logger().WithError(err).WithField("card", mp.Card).Warn("Failed to signal mixer plugin event")
	}
}

// PendingEvents returns the number of events the plugin has signalled but the host has not read yet.
func (mp *MixerPlugin) PendingEvents() int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	return mp.eventCnt
}

// drainEventFd resets the eventfd counter. The caller holds mp.mu.
func (mp *MixerPlugin) drainEventFd() {
	var buf [8]byte
	_, _ = unix.Read(mp.eventFd, buf[:])
}

// ControlByID returns the control with the given numid.
func (mp *MixerPlugin) ControlByID(numid uint32) (*SndControl, error) {
	if numid == 0 || int(numid) > len(mp.Controls) {
		return nil, syscall.EINVAL
	}

	return &mp.Controls[numid-1], nil
}

// mixerPlugin is the plugin backend of a mixer.
type mixerPlugin struct {
	card   uint
	name   string
	node   *SndNode
	plugin *MixerPlugin
	closed bool
}

func openMixerPlugin(node *SndNode, card uint) (*mixerPlugin, error) {
	name, err := node.PluginName()
	if err != nil {
		node.close()

		return nil, err
	}

	open, err := lookupMixerPlugin(name)
	if err != nil {
		node.close()

		return nil, fmt.Errorf("card %d mixer: %w", card, err)
	}

	plugin, err := open(node, card)
	if err != nil {
		node.close()

		return nil, fmt.Errorf("failed to open mixer plugin %s: %w", name, err)
	}

	if plugin == nil || plugin.Ops == nil {
		node.close()

		return nil, fmt.Errorf("mixer plugin %s returned no operations", name)
	}

	efd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		plugin.Ops.Close(plugin)
		node.close()

		return nil, fmt.Errorf("eventfd for mixer plugin %s: %w", name, err)
	}

	plugin.Card = card
	plugin.eventFd = efd

	logger().WithFields(logrus.Fields{
		"card":     card,
		"plugin":   name,
		"controls": len(plugin.Controls),
	}).Debug("Opened mixer plugin")

	return &mixerPlugin{
		card:   card,
		name:   name,
		node:   node,
		plugin: plugin,
	}, nil
}

func (mp *mixerPlugin) ioctl(cmd uintptr, arg unsafe.Pointer) error {
	if mp.closed {
		return syscall.EBADF
	}

	switch cmd {
	case SNDRV_CTL_IOCTL_PVERSION:
		*(*int32)(arg) = SNDRV_CTL_VERSION

		return nil
	case SNDRV_CTL_IOCTL_CARD_INFO:
		mp.cardInfo((*SndCtlCardInfo)(arg))

		return nil
	case SNDRV_CTL_IOCTL_ELEM_LIST:
		return mp.elemList((*sndCtlElemList)(arg))
	case SNDRV_CTL_IOCTL_ELEM_INFO:
		return mp.elemInfo((*SndCtlElemInfo)(arg))
	case SNDRV_CTL_IOCTL_ELEM_READ:
		return mp.elemValue((*SndCtlElemValue)(arg), false)
	case SNDRV_CTL_IOCTL_ELEM_WRITE:
		return mp.elemValue((*SndCtlElemValue)(arg), true)
	case SNDRV_CTL_IOCTL_TLV_READ:
		return mp.tlv(arg, false)
	case SNDRV_CTL_IOCTL_TLV_WRITE, SNDRV_CTL_IOCTL_TLV_COMMAND:
		return mp.tlv(arg, true)
	case SNDRV_CTL_IOCTL_SUBSCRIBE_EVENTS:
		return mp.subscribe(*(*int32)(arg))
	default:
		return syscall.ENOTTY
	}
}

func (mp *mixerPlugin) cardInfo(info *SndCtlCardInfo) {
	*info = SndCtlCardInfo{}
	info.Card = int32(mp.card)

	name, err := mp.node.Str("name")
	if err != nil || name == "" {
		name = mp.name
	}

	copy(info.Id[:len(info.Id)-1], "plugin")
	copy(info.Driver[:len(info.Driver)-1], "plugin")
	copy(info.Name[:len(info.Name)-1], name)
	copy(info.Longname[:len(info.Longname)-1], name)
	copy(info.Mixername[:len(info.Mixername)-1], name)
}

func (mp *mixerPlugin) elemID(numid uint32, id *SndCtlElemId) {
	ctl := &mp.plugin.Controls[numid-1]

	*id = SndCtlElemId{}
	id.Numid = numid
	id.Iface = int32(ctl.Iface)
	copy(id.Name[:len(id.Name)-1], ctl.Name)
}

func (mp *mixerPlugin) elemList(list *sndCtlElemList) error {
	count := uint32(len(mp.plugin.Controls))

	list.Count = count
	list.Used = 0

	if list.Space == 0 || list.Offset >= count {
		return nil
	}

	if list.Pids == 0 {
		return syscall.EFAULT
	}

	ids := unsafe.Slice((*SndCtlElemId)(unsafe.Pointer(list.Pids)), list.Space)
	for i := list.Offset; i < count && list.Used < list.Space; i++ {
		mp.elemID(i+1, &ids[list.Used])
		list.Used++
	}

	return nil
}

// lookup finds the control addressed by id, by numid or else by name.
func (mp *mixerPlugin) lookup(id *SndCtlElemId) (uint32, *SndControl, error) {
	if id.Numid != 0 {
		ctl, err := mp.plugin.ControlByID(id.Numid)
		if err != nil {
			return 0, nil, err
		}

		return id.Numid, ctl, nil
	}

	name := cString(id.Name[:])
	for i := range mp.plugin.Controls {
		ctl := &mp.plugin.Controls[i]
		if ctl.Name == name && int32(ctl.Iface) == id.Iface {
			return uint32(i + 1), ctl, nil
		}
	}

	return 0, nil, syscall.ENOENT
}

func (mp *mixerPlugin) elemInfo(info *SndCtlElemInfo) error {
	numid, ctl, err := mp.lookup(&info.Id)
	if err != nil {
		return err
	}

	mp.elemID(numid, &info.Id)
	info.Typ = int32(ctl.Type)
	info.Access = uint32(ctl.Access)

	switch v := ctl.Value.(type) {
	case *SndValueEnum:
		e := (*sndCtlEnum)(unsafe.Pointer(&info.Value[0]))
		if e.Item >= v.Items || int(e.Item) >= len(v.Texts) {
			return syscall.EINVAL
		}

		info.Count = 1
		e.Items = v.Items
		e.Name = [64]byte{}
		copy(e.Name[:len(e.Name)-1], v.Texts[e.Item])
	case *SndValueInt:
		info.Count = v.Count

		i := (*integer)(unsafe.Pointer(&info.Value[0]))
		i.Min = clong(v.Min)
		i.Max = clong(v.Max)
		i.Step = clong(v.Step)
	case *SndValueBytes:
		info.Count = v.Size
	case *SndValueTlvBytes:
		info.Count = v.Size
	default:
		return fmt.Errorf("control %q has no value description: %w", ctl.Name, syscall.EINVAL)
	}

	return nil
}

func (mp *mixerPlugin) elemValue(ev *SndCtlElemValue, write bool) error {
	numid, ctl, err := mp.lookup(&ev.Id)
	if err != nil {
		return err
	}

	mp.elemID(numid, &ev.Id)

	cb := ctl.Get
	if write {
		cb = ctl.Put
	}

	if cb == nil {
		return syscall.EPERM
	}

	return cb(mp.plugin, ctl, ev)
}

// tlv serves TLV transfers. arg points to an SndCtlTlv header followed by Length bytes.
func (mp *mixerPlugin) tlv(arg unsafe.Pointer, write bool) error {
	hdr := (*SndCtlTlv)(arg)

	ctl, err := mp.plugin.ControlByID(hdr.Numid)
	if err != nil {
		return err
	}

	v, ok := ctl.Value.(*SndValueTlvBytes)
	if !ok {
		return syscall.ENXIO
	}

	cb := v.Get
	if write {
		cb = v.Put
	}

	if cb == nil {
		return syscall.EPERM
	}

	var data []byte
	if hdr.Length > 0 {
		data = unsafe.Slice((*byte)(unsafe.Add(arg, unsafe.Sizeof(*hdr))), hdr.Length)
	}

	return cb(mp.plugin, ctl, hdr, data)
}

func (mp *mixerPlugin) subscribe(val int32) error {
	if val != 0 && val != 1 {
		return syscall.EINVAL
	}

	enable := val == 1
	plugin := mp.plugin

	plugin.mu.Lock()
	already := plugin.subscribed == enable
	plugin.mu.Unlock()

	if already {
		return nil
	}

	var cb MixerEventCallback
	if enable {
		cb = plugin.notify
	}

	// The notifier must be live before the plugin can call it.
	if enable {
		plugin.mu.Lock()
		plugin.subscribed = true
		plugin.mu.Unlock()
	}

	if err := plugin.Ops.SubscribeEvents(plugin, cb); err != nil {
		if enable {
			plugin.mu.Lock()
			plugin.subscribed = false
			plugin.mu.Unlock()
		}

		return err
	}

	if !enable {
		plugin.mu.Lock()
		plugin.subscribed = false
		plugin.eventCnt = 0
		plugin.drainEventFd()
		plugin.mu.Unlock()
	}

	logger().WithFields(logrus.Fields{
		"card":   mp.card,
		"plugin": mp.name,
		"enable": enable,
	}).Debug("Mixer plugin event subscription changed")

	return nil
}

func (mp *mixerPlugin) readEvent(ev *SndCtlEvent) error {
	if mp.closed {
		return syscall.EBADF
	}

	plugin := mp.plugin

	plugin.mu.Lock()
	pending := plugin.eventCnt
	plugin.mu.Unlock()

	if pending == 0 {
		return syscall.EAGAIN
	}

	evs := []SndCtlEvent{{}}

	n, err := plugin.Ops.ReadEvent(plugin, evs)
	if err != nil {
		return err
	}

	if n <= 0 {
		return syscall.EAGAIN
	}

	*ev = evs[0]

	plugin.mu.Lock()
	plugin.eventCnt -= n
	if plugin.eventCnt <= 0 {
		plugin.eventCnt = 0
		plugin.drainEventFd()
	}
	plugin.mu.Unlock()

	return nil
}

func (mp *mixerPlugin) fd() uintptr {
	return uintptr(mp.plugin.eventFd)
}

func (mp *mixerPlugin) close() error {
	if mp.closed {
		return nil
	}

	mp.closed = true

	plugin := mp.plugin

	plugin.mu.Lock()
	wasSubscribed := plugin.subscribed
	plugin.mu.Unlock()

	if wasSubscribed {
		if err := plugin.Ops.SubscribeEvents(plugin, nil); err != nil && !errors.Is(err, syscall.ENOSYS) {
			logger().WithError(err).WithField("plugin", mp.name).Debug("Failed to unsubscribe mixer plugin events")
		}
	}

	plugin.Ops.Close(plugin)

	plugin.mu.Lock()
	plugin.subscribed = false
	plugin.eventCnt = 0
	err := unix.Close(plugin.eventFd)
	plugin.eventFd = -1
	plugin.mu.Unlock()

	mp.node.close()

	logger().WithFields(logrus.Fields{
		"card":   mp.card,
		"plugin": mp.name,
	}).Debug("Closed mixer plugin")

	return err
}
