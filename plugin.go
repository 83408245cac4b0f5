package alsa

import (
	"sync/atomic"
	"syscall"
	"unsafe"
)

// PcmPluginOps is the set of operations a PCM plugin must implement.
// The host calls these instead of issuing the corresponding ioctls on a kernel device.
// Errors should be syscall.Errno values wherever the kernel would return one
// (EBADFD, EPIPE, EAGAIN, EINVAL...), so the PCM error handling behaves the same for
// plugins and hardware.
type PcmPluginOps interface {
	// Close closes the PCM plugin.
	Close(plugin *PcmPlugin) error
	// HwParams sets the PCM hardware parameters. The plugin narrows every interval it
	// supports to the value it will use.
	HwParams(plugin *PcmPlugin, params *SndPcmHwParams) error
	// SwParams sets the PCM software parameters.
	SwParams(plugin *PcmPlugin, params *SndPcmSwParams) error
	// SyncPtr synchronizes the application and hardware pointers.
	SyncPtr(plugin *PcmPlugin, syncPtr *SndPcmSyncPtr) error
	// WriteiFrames writes interleaved frames to be rendered to output.
	// The plugin stores the number of frames consumed in x.Result.
	WriteiFrames(plugin *PcmPlugin, x *SndXferi) error
	// ReadiFrames reads interleaved frames captured from input.
	// The plugin stores the number of frames produced in x.Result.
	ReadiFrames(plugin *PcmPlugin, x *SndXferi) error
	// Ttstamp selects the timestamp type for the PCM.
	Ttstamp(plugin *PcmPlugin, tstamp *int32) error
	// Prepare prepares the plugin for data transfer.
	Prepare(plugin *PcmPlugin) error
	// Start starts data transfer from/to the plugin.
	Start(plugin *PcmPlugin) error
	// Drop drops pending frames.
	Drop(plugin *PcmPlugin) error
	// Ioctl handles any custom or ALSA-specific ioctl the host does not handle itself.
	Ioctl(plugin *PcmPlugin, cmd uintptr, arg unsafe.Pointer) error
}

// UnimplementedPcmPluginOps can be embedded by plugins that only implement part of PcmPluginOps.
type UnimplementedPcmPluginOps struct{}

func (UnimplementedPcmPluginOps) Close(*PcmPlugin) error                     { return nil }
func (UnimplementedPcmPluginOps) HwParams(*PcmPlugin, *SndPcmHwParams) error { return syscall.ENOSYS }
func (UnimplementedPcmPluginOps) SwParams(*PcmPlugin, *SndPcmSwParams) error { return nil }
func (UnimplementedPcmPluginOps) SyncPtr(*PcmPlugin, *SndPcmSyncPtr) error   { return nil }
func (UnimplementedPcmPluginOps) WriteiFrames(*PcmPlugin, *SndXferi) error   { return syscall.ENOSYS }
func (UnimplementedPcmPluginOps) ReadiFrames(*PcmPlugin, *SndXferi) error    { return syscall.ENOSYS }
func (UnimplementedPcmPluginOps) Ttstamp(*PcmPlugin, *int32) error           { return nil }
func (UnimplementedPcmPluginOps) Prepare(*PcmPlugin) error                   { return nil }
func (UnimplementedPcmPluginOps) Start(*PcmPlugin) error                     { return nil }
func (UnimplementedPcmPluginOps) Drop(*PcmPlugin) error                      { return nil }

func (UnimplementedPcmPluginOps) Ioctl(*PcmPlugin, uintptr, unsafe.Pointer) error {
	return syscall.ENOTTY
}

// PcmPluginMinMax holds the minimum and maximum values for a hardware parameter constraint.
type PcmPluginMinMax struct {
	Min uint32
	Max uint32
}

// PcmPluginHwConstraints encapsulates the hardware parameter constraints of a plugin.
type PcmPluginHwConstraints struct {
	// Bitmask of SNDRV_PCM_ACCESS_* values.
	Access uint64
	// Bitmask of SNDRV_PCM_FORMAT_* values.
	// As of this implementation ALSA supports 52 formats, so 64 bits are enough.
	Format uint64
	// Value for SNDRV_PCM_HW_PARAM_SAMPLE_BITS.
	BitWidth PcmPluginMinMax
	// Value for SNDRV_PCM_HW_PARAM_CHANNELS.
	Channels PcmPluginMinMax
	// Value for SNDRV_PCM_HW_PARAM_RATE.
	Rate PcmPluginMinMax
	// Value for SNDRV_PCM_HW_PARAM_PERIODS.
	Periods PcmPluginMinMax
	// Value for SNDRV_PCM_HW_PARAM_PERIOD_BYTES.
	PeriodBytes PcmPluginMinMax
}

// PcmPlugin is the state shared between the host and a PCM plugin.
type PcmPlugin struct {
	// Card number for the PCM device.
	Card uint
	// Operations registered by the plugin.
	Ops PcmPluginOps
	// Constraints registered by the plugin, used to refine hardware parameters.
	Constraints *PcmPluginHwConstraints
	// PCM node under the card definition.
	Node *SndNode
	// Open mode (PCM_IN, PCM_NONBLOCK...).
	Mode PcmFlag
	// Private data of the plugin.
	Priv any

	// State of the stream. The host moves it through OPEN, SETUP, PREPARED and RUNNING;
	// the plugin may set RUNNING, XRUN or DRAINING itself. It is reported to the
	// application on every pointer sync. Use the accessors below from any goroutine.
	state atomic.Int32
}

// State returns the current stream state.
func (p *PcmPlugin) State() PcmState {
	return PcmState(p.state.Load())
}

// SetState moves the stream to s.
func (p *PcmPlugin) SetState(s PcmState) {
	p.state.Store(int32(s))
}

// CompareAndSwapState moves the stream from old to s, and reports whether it was in old.
func (p *PcmPlugin) CompareAndSwapState(old, s PcmState) bool {
	return p.state.CompareAndSwap(int32(old), int32(s))
}

// MixerEventCallback is handed to a mixer plugin when events are subscribed.
// The plugin calls it once for every event it queues.
type MixerEventCallback func(plugin *MixerPlugin)

// MixerPluginOps is the set of operations a mixer plugin must implement.
type MixerPluginOps interface {
	// Close releases the plugin. The host drops its reference afterwards.
	Close(plugin *MixerPlugin)
	// SubscribeEvents installs the event callback, or removes it when cb is nil.
	SubscribeEvents(plugin *MixerPlugin, cb MixerEventCallback) error
	// ReadEvent dequeues up to len(ev) pending events and returns how many were stored.
	ReadEvent(plugin *MixerPlugin, ev []SndCtlEvent) (int, error)
}

// CtlValueFunc reads or writes the value of a control.
type CtlValueFunc func(plugin *MixerPlugin, control *SndControl, ev *SndCtlElemValue) error

// CtlTlvFunc reads or writes TLV data of a control. data holds tlv.Length bytes.
type CtlTlvFunc func(plugin *MixerPlugin, control *SndControl, tlv *SndCtlTlv, data []byte) error

// SndControl describes a single control exposed by a mixer plugin.
type SndControl struct {
	Iface  CtlElemIface
	Access CtlAccessFlag
	Name   string
	Type   MixerCtlType
	// One of *SndValueEnum, *SndValueBytes, *SndValueInt or *SndValueTlvBytes.
	Value        any
	Get          CtlValueFunc
	Put          CtlValueFunc
	PrivateValue uint32
	PrivateData  any
}

// SndValueEnum describes the items of an ENUMERATED control.
type SndValueEnum struct {
	Items uint32
	Texts []string
}

// SndValueBytes describes a BYTES control.
type SndValueBytes struct {
	Size uint32
}

// SndValueTlvBytes describes a BYTES control accessed through TLV reads and writes.
type SndValueTlvBytes struct {
	Size uint32
	Get  CtlTlvFunc
	Put  CtlTlvFunc
}

// SndValueInt describes an INTEGER control.
type SndValueInt struct {
	Count uint32
	Min   int32
	Max   int32
	Step  int32
}

// NewSndValueEnum returns an enum descriptor with one item per text.
func NewSndValueEnum(texts ...string) *SndValueEnum {
	return &SndValueEnum{Items: uint32(len(texts)), Texts: texts}
}

// NewSndValueBytes returns a descriptor for size bytes of control data.
func NewSndValueBytes(size uint32) *SndValueBytes {
	return &SndValueBytes{Size: size}
}

// NewSndValueInt returns a descriptor for count integers in [min, max] moving by step.
func NewSndValueInt(count uint32, min, max, step int32) *SndValueInt {
	return &SndValueInt{Count: count, Min: min, Max: max, Step: step}
}

// NewSndValueTlvBytes returns a descriptor for size bytes reachable through the TLV callbacks.
func NewSndValueTlvBytes(size uint32, get, put CtlTlvFunc) *SndValueTlvBytes {
	return &SndValueTlvBytes{Size: size, Get: get, Put: put}
}

// NewEnumControl returns a read-write ENUMERATED mixer control.
func NewEnumControl(name string, get, put CtlValueFunc, value *SndValueEnum, privValue uint32, privData any) SndControl {
	return SndControl{
		Iface:        SNDRV_CTL_ELEM_IFACE_MIXER,
		Access:       SNDRV_CTL_ELEM_ACCESS_READWRITE,
		Type:         SNDRV_CTL_ELEM_TYPE_ENUMERATED,
		Name:         name,
		Value:        value,
		Get:          get,
		Put:          put,
		PrivateValue: privValue,
		PrivateData:  privData,
	}
}

// NewBytesControl returns a read-write BYTES mixer control.
func NewBytesControl(name string, get, put CtlValueFunc, value *SndValueBytes, privValue uint32, privData any) SndControl {
	return SndControl{
		Iface:        SNDRV_CTL_ELEM_IFACE_MIXER,
		Access:       SNDRV_CTL_ELEM_ACCESS_READWRITE,
		Type:         SNDRV_CTL_ELEM_TYPE_BYTES,
		Name:         name,
		Value:        value,
		Get:          get,
		Put:          put,
		PrivateValue: privValue,
		PrivateData:  privData,
	}
}

// NewIntegerControl returns a read-write INTEGER mixer control.
func NewIntegerControl(name string, get, put CtlValueFunc, value *SndValueInt, privValue uint32, privData any) SndControl {
	return SndControl{
		Iface:        SNDRV_CTL_ELEM_IFACE_MIXER,
		Access:       SNDRV_CTL_ELEM_ACCESS_READWRITE,
		Type:         SNDRV_CTL_ELEM_TYPE_INTEGER,
		Name:         name,
		Value:        value,
		Get:          get,
		Put:          put,
		PrivateValue: privValue,
		PrivateData:  privData,
	}
}

// NewTlvBytesControl returns a BYTES mixer control whose data is only reachable through TLV.
func NewTlvBytesControl(name string, value *SndValueTlvBytes, privValue uint32, privData any) SndControl {
	return SndControl{
		Iface:        SNDRV_CTL_ELEM_IFACE_MIXER,
		Access:       SNDRV_CTL_ELEM_ACCESS_TLV_READWRITE,
		Type:         SNDRV_CTL_ELEM_TYPE_BYTES,
		Name:         name,
		Value:        value,
		PrivateValue: privValue,
		PrivateData:  privData,
	}
}

// SndNodeOps is implemented by card definition providers.
// Handles returned by OpenCard, GetPcm and GetMixer are opaque to the host.
type SndNodeOps interface {
	// OpenCard returns the definition of a card, or an error wrapping ErrNoCardDefinition.
	OpenCard(card uint) (any, error)
	// CloseCard releases a card definition.
	CloseCard(card any)
	// GetPcm returns the definition of PCM device id.
	GetPcm(card any, id uint) (any, error)
	// GetMixer returns the definition of the card mixer.
	GetMixer(card any) (any, error)
	// GetInt returns an integer property of a node.
	GetInt(node any, prop string) (int, error)
	// GetStr returns a string property of a node.
	GetStr(node any, prop string) (string, error)
}

// Data returns the transfer buffer as a byte slice of n bytes.
// It is only valid for the duration of the WriteiFrames or ReadiFrames call.
func (x *SndXferi) Data(n int) []byte {
	if x.Buf == nil || n <= 0 {
		return nil
	}

	return unsafe.Slice((*byte)(x.Buf), n)
}
