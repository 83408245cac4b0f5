package alsa

import (
	"encoding/binary"
	"unsafe"
)

// SndMask is a bitmask for hardware parameters.
type SndMask struct {
	Bits [8]uint32
}

// SndInterval represents a range of values for a hardware parameter.
type SndInterval struct {
	MinVal uint32
	MaxVal uint32
	Flags  uint32
}

// SndPcmInfo contains general information about a PCM device.
type SndPcmInfo struct {
	Device          uint32
	Subdevice       uint32
	Stream          int32
	Card            int32
	Id              [64]byte
	Name            [80]byte
	Subname         [32]byte
	DevClass        int32
	DevSubclass     int32
	SubdevicesCount uint32
	SubdevicesAvail uint32
	Sync            [16]byte // snd_sync_id_t
	Reserved        [64]byte
}

// SndCtlCardInfo contains general information about a sound card.
type SndCtlCardInfo struct {
	Card       int32
	Pad        int32
	Id         [16]byte
	Driver     [16]byte
	Name       [32]byte
	Longname   [80]byte
	Reserved_  [16]byte
	Mixername  [80]byte
	Components [128]byte
}

// SndCtlElemId identifies a single control element.
type SndCtlElemId struct {
	Numid     uint32
	Iface     int32 // snd_ctl_elem_iface_t
	Device    uint32
	Subdevice uint32
	Name      [44]byte
	Index     uint32
}

// SndCtlElemInfo contains metadata about a control element.
type SndCtlElemInfo struct {
	Id     SndCtlElemId
	Typ    int32 // snd_ctl_elem_type_t
	Access uint32
	Count  uint32
	Owner  int32
	// This represents the C union, sized to the largest member.
	// The largest member is `unsigned char reserved[128]` for TLV.
	Value [128]byte
	// Reserved field size to match modern kernel expectations
	Reserved [64]byte
}

// SndCtlEvent represents a notification from the control interface.
type SndCtlEvent struct {
	Typ  int32
	Elem SndCtlEventElement
}

// SndCtlEventElement mirrors the C union member for element-related events.
type SndCtlEventElement struct {
	Mask uint32
	Id   SndCtlElemId
}

type integer struct {
	Min  clong
	Max  clong
	Step clong
}
type integer64 struct {
	Min  int64
	Max  int64
	Step int64
}

// sndCtlEnum represents the `enumerated` member of the `snd_ctl_elem_info.value` union.
// It is used for accessing enumerated control metadata.
type sndCtlEnum struct {
	Items       uint32
	Item        uint32
	Name        [64]byte
	NamesPtr    uint64
	NamesLength uint32
}

// SndCtlTlv represents the header for a Type-Length-Value data structure.
// Length bytes of data follow this header in memory.
type SndCtlTlv struct {
	Numid  uint32
	Length uint32
}

// SndAesEbu is the Go representation of the C struct for IEC958 (S/PDIF) data.
// It is part of the sndCtlElemValue union.
type SndAesEbu struct {
	Status      [24]byte
	Subcode     [147]byte
	Pad         byte
	DigSubframe [4]byte
}

const (
	ctlElemValueBytes = 512
	clongSize         = int(unsafe.Sizeof(clong(0)))
)

// Integer returns the i-th value of an INTEGER or BOOLEAN element (stored as C long).
func (v *SndCtlElemValue) Integer(i uint32) int64 {
	off := int(i) * clongSize
	if off+clongSize > len(v.Value) {
		return 0
	}

	if clongSize == 8 {
		return int64(binary.NativeEndian.Uint64(v.Value[off:]))
	}

	return int64(int32(binary.NativeEndian.Uint32(v.Value[off:])))
}

// SetInteger stores the i-th value of an INTEGER or BOOLEAN element.
func (v *SndCtlElemValue) SetInteger(i uint32, val int64) {
	off := int(i) * clongSize
	if off+clongSize > len(v.Value) {
		return
	}

	if clongSize == 8 {
		binary.NativeEndian.PutUint64(v.Value[off:], uint64(val))
	} else {
		binary.NativeEndian.PutUint32(v.Value[off:], uint32(int32(val)))
	}
}

// Integer64 returns the i-th value of an INTEGER64 element.
func (v *SndCtlElemValue) Integer64(i uint32) int64 {
	off := int(i) * 8
	if off+8 > len(v.Value) {
		return 0
	}

	return int64(binary.NativeEndian.Uint64(v.Value[off:]))
}

// SetInteger64 stores the i-th value of an INTEGER64 element.
func (v *SndCtlElemValue) SetInteger64(i uint32, val int64) {
	off := int(i) * 8
	if off+8 > len(v.Value) {
		return
	}

	binary.NativeEndian.PutUint64(v.Value[off:], uint64(val))
}

// Enumerated returns the selected item of the i-th value of an ENUMERATED element.
func (v *SndCtlElemValue) Enumerated(i uint32) uint32 {
	off := int(i) * 4
	if off+4 > len(v.Value) {
		return 0
	}

	return binary.NativeEndian.Uint32(v.Value[off:])
}

// SetEnumerated selects an item for the i-th value of an ENUMERATED element.
func (v *SndCtlElemValue) SetEnumerated(i uint32, item uint32) {
	off := int(i) * 4
	if off+4 > len(v.Value) {
		return
	}

	binary.NativeEndian.PutUint32(v.Value[off:], item)
}

// Bytes returns the data area of a BYTES element. The slice aliases the value.
func (v *SndCtlElemValue) Bytes() []byte {
	return v.Value[:ctlElemValueBytes]
}
