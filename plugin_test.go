package alsa

import (
	"errors"
	"fmt"
	"sync"
	"syscall"
	"unsafe"
)

// testNode is a node handle served by testNodeOps.
type testNode struct {
	typ    int
	plugin string
	name   string
	ints   map[string]int
}

// testNodeOps serves nodes built in memory by the tests.
type testNodeOps struct {
	pcm   map[uint]*testNode
	mixer *testNode

	mu     sync.Mutex
	closed int
}

func (o *testNodeOps) OpenCard(card uint) (any, error) {
	if o.pcm == nil && o.mixer == nil {
		return nil, fmt.Errorf("card %d: %w", card, ErrNoCardDefinition)
	}

	return o, nil
}

func (o *testNodeOps) CloseCard(any) {
	o.mu.Lock()
	o.closed++
	o.mu.Unlock()
}

func (o *testNodeOps) GetPcm(_ any, id uint) (any, error) {
	n, ok := o.pcm[id]
	if !ok {
		return nil, ErrNoCardDefinition
	}

	return n, nil
}

func (o *testNodeOps) GetMixer(any) (any, error) {
	if o.mixer == nil {
		return nil, ErrNoCardDefinition
	}

	return o.mixer, nil
}

func (o *testNodeOps) GetInt(node any, prop string) (int, error) {
	n := node.(*testNode)
	if prop == "type" {
		return n.typ, nil
	}

	v, ok := n.ints[prop]
	if !ok {
		return 0, fmt.Errorf("property %q not found", prop)
	}

	return v, nil
}

func (o *testNodeOps) GetStr(node any, prop string) (string, error) {
	n := node.(*testNode)

	switch prop {
	case "plugin":
		return n.plugin, nil
	case "name":
		return n.name, nil
	}

	return "", fmt.Errorf("property %q not found", prop)
}

func (o *testNodeOps) closeCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.closed
}

// pluginNode returns a plugin node for card 0 served by a fresh testNodeOps.
func pluginNode(plugin string) (*SndNode, *testNodeOps) {
	n := &testNode{typ: SND_NODE_TYPE_PLUGIN, plugin: plugin, name: "Test Card"}
	ops := &testNodeOps{pcm: map[uint]*testNode{0: n}, mixer: n}

	return &SndNode{ops: ops, cardHandle: ops, handle: n}, ops
}

const (
	testPcmPlugin      = "test-pcm"
	testPcmNoConstr    = "test-pcm-noconstraints"
	testPcmFailing     = "test-pcm-failing"
	testPcmStalled     = "test-pcm-stalled"
	testMixerPlugin    = "test-mixer"
	testMixerNoOps     = "test-mixer-noops"
	testMixerTlvLength = 8
)

var errTestOpen = errors.New("test open failure")

func init() {
	RegisterPcmPlugin(testPcmPlugin, func(_ *SndNode, _, _ uint, _ PcmFlag) (*PcmPlugin, error) {
		return &PcmPlugin{
			Ops:         &fakePcm{ioctlErr: syscall.ENOTTY},
			Constraints: testConstraints(),
		}, nil
	})

	RegisterPcmPlugin(testPcmNoConstr, func(*SndNode, uint, uint, PcmFlag) (*PcmPlugin, error) {
		return &PcmPlugin{Ops: &fakePcm{}}, nil
	})

	RegisterPcmPlugin(testPcmFailing, func(*SndNode, uint, uint, PcmFlag) (*PcmPlugin, error) {
		return nil, errTestOpen
	})

	RegisterPcmPlugin(testPcmStalled, func(*SndNode, uint, uint, PcmFlag) (*PcmPlugin, error) {
		return &PcmPlugin{Ops: &stalledPcm{}, Constraints: testConstraints()}, nil
	})

	RegisterMixerPlugin(testMixerPlugin, func(*SndNode, uint) (*MixerPlugin, error) {
		return newFakeMixerPlugin(), nil
	})

	RegisterMixerPlugin(testMixerNoOps, func(*SndNode, uint) (*MixerPlugin, error) {
		return &MixerPlugin{}, nil
	})
}

func testConstraints() *PcmPluginHwConstraints {
	return &PcmPluginHwConstraints{
		Access:      1 << SNDRV_PCM_ACCESS_RW_INTERLEAVED,
		Format:      1<<SNDRV_PCM_FORMAT_S16_LE | 1<<SNDRV_PCM_FORMAT_S32_LE,
		BitWidth:    PcmPluginMinMax{Min: 16, Max: 32},
		Channels:    PcmPluginMinMax{Min: 1, Max: 2},
		Rate:        PcmPluginMinMax{Min: 8000, Max: 48000},
		Periods:     PcmPluginMinMax{Min: 2, Max: 8},
		PeriodBytes: PcmPluginMinMax{Min: 128, Max: 16384},
	}
}

// fakePcm records the operations called by the host.
type fakePcm struct {
	UnimplementedPcmPluginOps

	calls    []string
	closed   int
	ioctlErr error
	pause    []int32

	hwPtr   SndPcmUframesT
	applPtr SndPcmUframesT
}

func (f *fakePcm) Close(*PcmPlugin) error {
	f.closed++

	return nil
}

func (f *fakePcm) HwParams(_ *PcmPlugin, params *SndPcmHwParams) error {
	f.calls = append(f.calls, "hw_params")

	params.SetInt(SNDRV_PCM_HW_PARAM_PERIOD_SIZE, params.Int(SNDRV_PCM_HW_PARAM_PERIOD_SIZE))

	return nil
}

func (f *fakePcm) SyncPtr(_ *PcmPlugin, sp *SndPcmSyncPtr) error {
	sp.S.HwPtr = f.hwPtr
	sp.C.ApplPtr = f.applPtr

	return nil
}

func (f *fakePcm) WriteiFrames(_ *PcmPlugin, x *SndXferi) error {
	f.calls = append(f.calls, "writei")
	x.Result = SndPcmSframesT(x.Frames)

	return nil
}

func (f *fakePcm) ReadiFrames(_ *PcmPlugin, x *SndXferi) error {
	f.calls = append(f.calls, "readi")
	x.Result = SndPcmSframesT(x.Frames)

	return nil
}

func (f *fakePcm) Prepare(*PcmPlugin) error {
	f.calls = append(f.calls, "prepare")

	return nil
}

func (f *fakePcm) Start(*PcmPlugin) error {
	f.calls = append(f.calls, "start")

	return nil
}

func (f *fakePcm) Drop(*PcmPlugin) error {
	f.calls = append(f.calls, "drop")

	return nil
}

func (f *fakePcm) Ioctl(_ *PcmPlugin, cmd uintptr, arg unsafe.Pointer) error {
	if cmd == SNDRV_PCM_IOCTL_PAUSE {
		f.pause = append(f.pause, *(*int32)(arg))

		return nil
	}

	return f.ioctlErr
}

// stalledPcm accepts every transfer without moving a frame.
type stalledPcm struct {
	fakePcm
}

func (s *stalledPcm) WriteiFrames(_ *PcmPlugin, x *SndXferi) error {
	x.Result = 0

	return nil
}

func (s *stalledPcm) ReadiFrames(_ *PcmPlugin, x *SndXferi) error {
	x.Result = 0

	return nil
}

// fakeMixer queues one event per Put and hands them out in order.
type fakeMixer struct {
	mu         sync.Mutex
	cb         MixerEventCallback
	events     []SndCtlEvent
	subscribes int
	closed     int

	volume [2]int64
	mode   uint32
	data   [4]byte
	tlv    [testMixerTlvLength]byte
}

func newFakeMixerPlugin() *MixerPlugin {
	f := &fakeMixer{}

	return &MixerPlugin{
		Ops:  f,
		Priv: f,
		Controls: []SndControl{
			NewIntegerControl("Master Volume", f.getVolume, f.putVolume, NewSndValueInt(2, 0, 31, 1), 0, nil),
			NewEnumControl("Route", f.getMode, f.putMode, NewSndValueEnum("Speaker", "Headphone", "Off"), 0, nil),
			NewBytesControl("Blob", f.getData, f.putData, NewSndValueBytes(4), 0, nil),
			NewTlvBytesControl("Filter", NewSndValueTlvBytes(testMixerTlvLength, f.getTlv, f.putTlv), 0, nil),
			{
				Iface:  SNDRV_CTL_ELEM_IFACE_MIXER,
				Access: SNDRV_CTL_ELEM_ACCESS_READ,
				Type:   SNDRV_CTL_ELEM_TYPE_INTEGER,
				Name:   "Read Only",
				Value:  NewSndValueInt(1, 0, 1, 1),
				Get:    f.getVolume,
			},
		},
	}
}

func (f *fakeMixer) Close(*MixerPlugin) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed++
}

func (f *fakeMixer) SubscribeEvents(_ *MixerPlugin, cb MixerEventCallback) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.subscribes++
	f.cb = cb
	if cb == nil {
		f.events = nil
	}

	return nil
}

func (f *fakeMixer) ReadEvent(_ *MixerPlugin, ev []SndCtlEvent) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := copy(ev, f.events)
	f.events = f.events[n:]

	return n, nil
}

func (f *fakeMixer) changed(plugin *MixerPlugin, numid uint32) {
	f.mu.Lock()
	cb := f.cb
	if cb != nil {
		var ev SndCtlEvent
		ev.Typ = SNDRV_CTL_EVENT_ELEM
		ev.Elem.Mask = uint32(SNDRV_CTL_EVENT_MASK_VALUE)
		ev.Elem.Id.Numid = numid
		f.events = append(f.events, ev)
	}
	f.mu.Unlock()

	if cb != nil {
		cb(plugin)
	}
}

func (f *fakeMixer) getVolume(_ *MixerPlugin, _ *SndControl, ev *SndCtlElemValue) error {
	ev.SetInteger(0, f.volume[0])
	ev.SetInteger(1, f.volume[1])

	return nil
}

func (f *fakeMixer) putVolume(plugin *MixerPlugin, _ *SndControl, ev *SndCtlElemValue) error {
	f.volume[0] = ev.Integer(0)
	f.volume[1] = ev.Integer(1)
	f.changed(plugin, 1)

	return nil
}

func (f *fakeMixer) getMode(_ *MixerPlugin, _ *SndControl, ev *SndCtlElemValue) error {
	ev.SetEnumerated(0, f.mode)

	return nil
}

func (f *fakeMixer) putMode(plugin *MixerPlugin, _ *SndControl, ev *SndCtlElemValue) error {
	f.mode = ev.Enumerated(0)
	f.changed(plugin, 2)

	return nil
}

func (f *fakeMixer) getData(_ *MixerPlugin, _ *SndControl, ev *SndCtlElemValue) error {
	copy(ev.Bytes(), f.data[:])

	return nil
}

func (f *fakeMixer) putData(plugin *MixerPlugin, _ *SndControl, ev *SndCtlElemValue) error {
	copy(f.data[:], ev.Bytes())
	f.changed(plugin, 3)

	return nil
}

func (f *fakeMixer) getTlv(_ *MixerPlugin, _ *SndControl, tlv *SndCtlTlv, data []byte) error {
	tlv.Length = uint32(copy(data, f.tlv[:]))

	return nil
}

func (f *fakeMixer) putTlv(plugin *MixerPlugin, _ *SndControl, _ *SndCtlTlv, data []byte) error {
	copy(f.tlv[:], data)
	f.changed(plugin, 4)

	return nil
}
