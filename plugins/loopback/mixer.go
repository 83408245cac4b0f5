package loopback

import (
	"bytes"
	"sync"
	"syscall"

	"github.com/soundplug/alsa"
)

// Control names exposed by the loopback mixer.
const (
	VolumeControl       = "Loopback Volume"
	ModeControl         = "Loopback Mode"
	CoefficientsControl = "Loopback Coefficients"
	FilterControl       = "Loopback Filter"
)

const (
	coeffBytes  = 16
	filterBytes = 32
)

// ModeNames are the items of the mode control, indexed by mode.
var ModeNames = []string{"Normal", "Mute", "Swap"}

// mixerState is the private data of one open loopback mixer.
type mixerState struct {
	card *cardState

	mu     sync.Mutex
	notify alsa.MixerEventCallback
	queue  []alsa.SndCtlEvent
}

type mixerOps struct{}

func openMixer(_ *alsa.SndNode, card uint) (*alsa.MixerPlugin, error) {
	m := &mixerState{card: getCard(card)}

	return &alsa.MixerPlugin{
		Ops:  mixerOps{},
		Priv: m,
		Controls: []alsa.SndControl{
			alsa.NewIntegerControl(VolumeControl, getVolume, putVolume, alsa.NewSndValueInt(2, 0, 100, 1), 0, nil),
			alsa.NewEnumControl(ModeControl, getMode, putMode, alsa.NewSndValueEnum(ModeNames...), 0, nil),
			alsa.NewBytesControl(CoefficientsControl, getCoeffs, putCoeffs, alsa.NewSndValueBytes(coeffBytes), 0, nil),
			alsa.NewTlvBytesControl(FilterControl, alsa.NewSndValueTlvBytes(filterBytes, getFilter, putFilter), 0, nil),
		},
	}, nil
}

func state(plugin *alsa.MixerPlugin) *mixerState {
	return plugin.Priv.(*mixerState)
}

func (mixerOps) Close(plugin *alsa.MixerPlugin) {
	m := state(plugin)
	m.card.subscribe(plugin, false)

	m.mu.Lock()
	m.notify = nil
	m.queue = nil
	m.mu.Unlock()
}

func (mixerOps) SubscribeEvents(plugin *alsa.MixerPlugin, cb alsa.MixerEventCallback) error {
	m := state(plugin)

	m.mu.Lock()
	m.notify = cb
	if cb == nil {
		m.queue = nil
	}
	m.mu.Unlock()

	m.card.subscribe(plugin, cb != nil)

	return nil
}

func (mixerOps) ReadEvent(plugin *alsa.MixerPlugin, ev []alsa.SndCtlEvent) (int, error) {
	m := state(plugin)

	m.mu.Lock()
	defer m.mu.Unlock()

	n := copy(ev, m.queue)
	m.queue = m.queue[n:]

	return n, nil
}

// changed queues a value event for control on every subscribed handle of the card, like
// the kernel does for all open control devices, and signals each host.
func changed(plugin *alsa.MixerPlugin, control *alsa.SndControl) {
	var ev alsa.SndCtlEvent
	ev.Typ = alsa.SNDRV_CTL_EVENT_ELEM
	ev.Elem.Mask = uint32(alsa.SNDRV_CTL_EVENT_MASK_VALUE)
	ev.Elem.Id.Iface = int32(control.Iface)
	copy(ev.Elem.Id.Name[:], control.Name)

	for i := range plugin.Controls {
		if &plugin.Controls[i] == control {
			ev.Elem.Id.Numid = uint32(i + 1)
		}
	}

	for _, sub := range state(plugin).card.subscribers() {
		post(sub, ev)
	}
}

// post queues ev on one handle. Handles all expose the same controls, so numids match.
func post(plugin *alsa.MixerPlugin, ev alsa.SndCtlEvent) {
	m := state(plugin)

	m.mu.Lock()
	cb := m.notify
	if cb != nil {
		m.queue = append(m.queue, ev)
	}
	m.mu.Unlock()

	if cb != nil {
		cb(plugin)
	}
}

func getVolume(plugin *alsa.MixerPlugin, _ *alsa.SndControl, ev *alsa.SndCtlElemValue) error {
	c := state(plugin).card

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, v := range c.volume {
		ev.SetInteger(uint32(i), int64(v))
	}

	return nil
}

func putVolume(plugin *alsa.MixerPlugin, control *alsa.SndControl, ev *alsa.SndCtlElemValue) error {
	c := state(plugin).card
	limits := control.Value.(*alsa.SndValueInt)

	var vol [2]int32
	for i := range vol {
		v := ev.Integer(uint32(i))
		if v < int64(limits.Min) || v > int64(limits.Max) {
			return syscall.EINVAL
		}

		vol[i] = int32(v)
	}

	c.mu.Lock()
	diff := c.volume != vol
	c.volume = vol
	c.mu.Unlock()

	if diff {
		changed(plugin, control)
	}

	return nil
}

func getMode(plugin *alsa.MixerPlugin, _ *alsa.SndControl, ev *alsa.SndCtlElemValue) error {
	c := state(plugin).card

	c.mu.Lock()
	defer c.mu.Unlock()

	ev.SetEnumerated(0, uint32(c.mode))

	return nil
}

func putMode(plugin *alsa.MixerPlugin, control *alsa.SndControl, ev *alsa.SndCtlElemValue) error {
	c := state(plugin).card

	item := ev.Enumerated(0)
	if item >= control.Value.(*alsa.SndValueEnum).Items {
		return syscall.EINVAL
	}

	c.mu.Lock()
	diff := c.mode != int32(item)
	c.mode = int32(item)
	c.mu.Unlock()

	if diff {
		changed(plugin, control)
	}

	return nil
}

func getCoeffs(plugin *alsa.MixerPlugin, _ *alsa.SndControl, ev *alsa.SndCtlElemValue) error {
	c := state(plugin).card

	c.mu.Lock()
	defer c.mu.Unlock()

	copy(ev.Bytes(), c.coeffs[:])

	return nil
}

func putCoeffs(plugin *alsa.MixerPlugin, control *alsa.SndControl, ev *alsa.SndCtlElemValue) error {
	c := state(plugin).card

	c.mu.Lock()
	diff := !bytes.Equal(c.coeffs[:], ev.Bytes()[:coeffBytes])
	copy(c.coeffs[:], ev.Bytes())
	c.mu.Unlock()

	if diff {
		changed(plugin, control)
	}

	return nil
}

func getFilter(plugin *alsa.MixerPlugin, _ *alsa.SndControl, tlv *alsa.SndCtlTlv, data []byte) error {
	c := state(plugin).card

	c.mu.Lock()
	defer c.mu.Unlock()

	if tlv.Length < uint32(len(c.filter)) {
		return syscall.ENOSPC
	}

	tlv.Length = uint32(copy(data, c.filter))

	return nil
}

func putFilter(plugin *alsa.MixerPlugin, control *alsa.SndControl, tlv *alsa.SndCtlTlv, data []byte) error {
	c := state(plugin).card

	if tlv.Length > filterBytes {
		return syscall.EINVAL
	}

	c.mu.Lock()
	diff := !bytes.Equal(c.filter[:len(data)], data)
	copy(c.filter, data)
	c.mu.Unlock()

	if diff {
		changed(plugin, control)
	}

	return nil
}
