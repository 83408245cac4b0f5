package alsa

import (
	"fmt"
	"unsafe"
)

// Name returns the name of the control.
func (ctl *MixerCtl) Name() string {
	if ctl == nil {
		return ""
	}

	return cString(ctl.info.Id.Name[:])
}

// ID returns the numeric ID (numid) of the control.
func (ctl *MixerCtl) ID() uint32 {
	if ctl == nil {
		return ^uint32(0)
	}

	return ctl.info.Id.Numid
}

// Device returns the device number the control belongs to.
func (ctl *MixerCtl) Device() uint32 {
	if ctl == nil {
		return 0
	}

	return ctl.info.Id.Device
}

// Subdevice returns the subdevice number the control belongs to.
func (ctl *MixerCtl) Subdevice() uint32 {
	if ctl == nil {
		return 0
	}

	return ctl.info.Id.Subdevice
}

// Iface returns the interface of the control.
func (ctl *MixerCtl) Iface() CtlElemIface {
	if ctl == nil {
		return 0
	}

	return CtlElemIface(ctl.info.Id.Iface)
}

// Type returns the value type of the control.
func (ctl *MixerCtl) Type() MixerCtlType {
	if ctl == nil {
		return MIXER_CTL_TYPE_UNKNOWN
	}

	return MixerCtlType(ctl.info.Typ)
}

// TypeString returns the value type of the control as a string.
func (ctl *MixerCtl) TypeString() string {
	switch ctl.Type() {
	case SNDRV_CTL_ELEM_TYPE_BOOLEAN:
		return "BOOL"
	case SNDRV_CTL_ELEM_TYPE_INTEGER:
		return "INT"
	case SNDRV_CTL_ELEM_TYPE_ENUMERATED:
		return "ENUM"
	case SNDRV_CTL_ELEM_TYPE_BYTES:
		return "BYTE"
	case SNDRV_CTL_ELEM_TYPE_IEC958:
		return "IEC958"
	case SNDRV_CTL_ELEM_TYPE_INTEGER64:
		return "INT64"
	default:
		return "UNKNOWN"
	}
}

// Access returns the SNDRV_CTL_ELEM_ACCESS_* flags of the control.
func (ctl *MixerCtl) Access() uint32 {
	if ctl == nil {
		return 0
	}

	return ctl.info.Access
}

// IsAccessTlvRw reports whether the data of the control is transferred with TLV reads and writes.
func (ctl *MixerCtl) IsAccessTlvRw() bool {
	return (CtlAccessFlag(ctl.Access()) & SNDRV_CTL_ELEM_ACCESS_TLV_READWRITE) != 0
}

// NumValues returns the number of values of the control (e.g. one per channel).
func (ctl *MixerCtl) NumValues() uint32 {
	if ctl == nil {
		return 0
	}

	return ctl.info.Count
}

// Update re-reads the control information, e.g. after an INFO event.
func (ctl *MixerCtl) Update() error {
	if err := ctl.check(); err != nil {
		return err
	}

	info := SndCtlElemInfo{}
	info.Id = ctl.info.Id

	if err := ctl.mixer.t.ioctl(SNDRV_CTL_IOCTL_ELEM_INFO, unsafe.Pointer(&info)); err != nil {
		return fmt.Errorf("ioctl ELEM_INFO failed: %w", err)
	}

	ctl.info = info
	ctl.ename = nil

	return nil
}

func (ctl *MixerCtl) check() error {
	if ctl == nil || ctl.mixer == nil || ctl.mixer.t == nil {
		return fmt.Errorf("mixer control is not valid")
	}

	return nil
}

func (ctl *MixerCtl) checkIndex(id uint) error {
	if id >= uint(ctl.NumValues()) {
		return fmt.Errorf("index %d out of range for control %s (%d values)", id, ctl.Name(), ctl.NumValues())
	}

	return nil
}

func (ctl *MixerCtl) integerInfo() *integer {
	return (*integer)(unsafe.Pointer(&ctl.info.Value[0]))
}

func (ctl *MixerCtl) integer64Info() *integer64 {
	return (*integer64)(unsafe.Pointer(&ctl.info.Value[0]))
}

func (ctl *MixerCtl) enumInfo() *sndCtlEnum {
	return (*sndCtlEnum)(unsafe.Pointer(&ctl.info.Value[0]))
}

// RangeMin returns the minimum value of an INTEGER control.
func (ctl *MixerCtl) RangeMin() (int, error) {
	if ctl.Type() != SNDRV_CTL_ELEM_TYPE_INTEGER {
		return 0, fmt.Errorf("control %s is not an integer control", ctl.Name())
	}

	return int(ctl.integerInfo().Min), nil
}

// RangeMax returns the maximum value of an INTEGER control.
func (ctl *MixerCtl) RangeMax() (int, error) {
	if ctl.Type() != SNDRV_CTL_ELEM_TYPE_INTEGER {
		return 0, fmt.Errorf("control %s is not an integer control", ctl.Name())
	}

	return int(ctl.integerInfo().Max), nil
}

// RangeMin64 returns the minimum value of an INTEGER64 control.
func (ctl *MixerCtl) RangeMin64() (int64, error) {
	if ctl.Type() != SNDRV_CTL_ELEM_TYPE_INTEGER64 {
		return 0, fmt.Errorf("control %s is not an integer64 control", ctl.Name())
	}

	return ctl.integer64Info().Min, nil
}

// RangeMax64 returns the maximum value of an INTEGER64 control.
func (ctl *MixerCtl) RangeMax64() (int64, error) {
	if ctl.Type() != SNDRV_CTL_ELEM_TYPE_INTEGER64 {
		return 0, fmt.Errorf("control %s is not an integer64 control", ctl.Name())
	}

	return ctl.integer64Info().Max, nil
}

func (ctl *MixerCtl) read() (*SndCtlElemValue, error) {
	if err := ctl.check(); err != nil {
		return nil, err
	}

	ev := &SndCtlElemValue{}
	ev.Id = ctl.info.Id

	if err := ctl.mixer.t.ioctl(SNDRV_CTL_IOCTL_ELEM_READ, unsafe.Pointer(ev)); err != nil {
		return nil, fmt.Errorf("ioctl ELEM_READ failed: %w", err)
	}

	return ev, nil
}

func (ctl *MixerCtl) write(ev *SndCtlElemValue) error {
	ev.Id = ctl.info.Id

	if err := ctl.mixer.t.ioctl(SNDRV_CTL_IOCTL_ELEM_WRITE, unsafe.Pointer(ev)); err != nil {
		return fmt.Errorf("ioctl ELEM_WRITE failed: %w", err)
	}

	return nil
}

// Value returns the id-th value of a BOOLEAN, INTEGER, ENUMERATED or BYTES control.
func (ctl *MixerCtl) Value(id uint) (int, error) {
	if err := ctl.checkIndex(id); err != nil {
		return 0, err
	}

	ev, err := ctl.read()
	if err != nil {
		return 0, err
	}

	switch ctl.Type() {
	case SNDRV_CTL_ELEM_TYPE_BOOLEAN, SNDRV_CTL_ELEM_TYPE_INTEGER:
		return int(ev.Integer(uint32(id))), nil
	case SNDRV_CTL_ELEM_TYPE_ENUMERATED:
		return int(ev.Enumerated(uint32(id))), nil
	case SNDRV_CTL_ELEM_TYPE_BYTES:
		return int(ev.Bytes()[id]), nil
	case SNDRV_CTL_ELEM_TYPE_INTEGER64:
		return int(ev.Integer64(uint32(id))), nil
	default:
		return 0, fmt.Errorf("unsupported control type %s", ctl.TypeString())
	}
}

// SetValue sets the id-th value of a BOOLEAN, INTEGER, ENUMERATED or BYTES control.
func (ctl *MixerCtl) SetValue(id uint, value int) error {
	if err := ctl.checkIndex(id); err != nil {
		return err
	}

	ev, err := ctl.read()
	if err != nil {
		return err
	}

	switch ctl.Type() {
	case SNDRV_CTL_ELEM_TYPE_BOOLEAN:
		if value != 0 && value != 1 {
			return fmt.Errorf("invalid boolean value %d", value)
		}

		ev.SetInteger(uint32(id), int64(value))
	case SNDRV_CTL_ELEM_TYPE_INTEGER:
		i := ctl.integerInfo()
		if value < int(i.Min) || value > int(i.Max) {
			return fmt.Errorf("value %d out of range [%d, %d]", value, i.Min, i.Max)
		}

		ev.SetInteger(uint32(id), int64(value))
	case SNDRV_CTL_ELEM_TYPE_ENUMERATED:
		if value < 0 || uint32(value) >= ctl.enumInfo().Items {
			return fmt.Errorf("enum item %d out of range", value)
		}

		ev.SetEnumerated(uint32(id), uint32(value))
	case SNDRV_CTL_ELEM_TYPE_BYTES:
		if value < 0 || value > 0xff {
			return fmt.Errorf("byte value %d out of range", value)
		}

		ev.Bytes()[id] = byte(value)
	case SNDRV_CTL_ELEM_TYPE_INTEGER64:
		ev.SetInteger64(uint32(id), int64(value))
	default:
		return fmt.Errorf("unsupported control type %s", ctl.TypeString())
	}

	return ctl.write(ev)
}

// Value64 returns the id-th value of an INTEGER64 control.
func (ctl *MixerCtl) Value64(id uint) (int64, error) {
	if ctl.Type() != SNDRV_CTL_ELEM_TYPE_INTEGER64 {
		return 0, fmt.Errorf("control %s is not an integer64 control", ctl.Name())
	}

	if err := ctl.checkIndex(id); err != nil {
		return 0, err
	}

	ev, err := ctl.read()
	if err != nil {
		return 0, err
	}

	return ev.Integer64(uint32(id)), nil
}

// SetValue64 sets the id-th value of an INTEGER64 control.
func (ctl *MixerCtl) SetValue64(id uint, value int64) error {
	if ctl.Type() != SNDRV_CTL_ELEM_TYPE_INTEGER64 {
		return fmt.Errorf("control %s is not an integer64 control", ctl.Name())
	}

	if err := ctl.checkIndex(id); err != nil {
		return err
	}

	i := ctl.integer64Info()
	if value < i.Min || value > i.Max {
		return fmt.Errorf("value %d out of range [%d, %d]", value, i.Min, i.Max)
	}

	ev, err := ctl.read()
	if err != nil {
		return err
	}

	ev.SetInteger64(uint32(id), value)

	return ctl.write(ev)
}

// Percent returns the id-th value of an INTEGER control as a percentage of its range.
func (ctl *MixerCtl) Percent(id uint) (int, error) {
	minVal, err := ctl.RangeMin()
	if err != nil {
		return 0, err
	}

	maxVal, err := ctl.RangeMax()
	if err != nil {
		return 0, err
	}

	value, err := ctl.Value(id)
	if err != nil {
		return 0, err
	}

	if maxVal <= minVal {
		return 0, fmt.Errorf("control %s has an empty range", ctl.Name())
	}

	return (value - minVal) * 100 / (maxVal - minVal), nil
}

// SetPercent sets the id-th value of an INTEGER control to a percentage of its range.
func (ctl *MixerCtl) SetPercent(id uint, percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("percent %d out of range [0, 100]", percent)
	}

	minVal, err := ctl.RangeMin()
	if err != nil {
		return err
	}

	maxVal, err := ctl.RangeMax()
	if err != nil {
		return err
	}

	if err := ctl.checkIndex(id); err != nil {
		return err
	}

	return ctl.SetValue(id, minVal+(maxVal-minVal)*percent/100)
}

// NumEnums returns the number of items of an ENUMERATED control.
func (ctl *MixerCtl) NumEnums() (uint32, error) {
	if ctl.Type() != SNDRV_CTL_ELEM_TYPE_ENUMERATED {
		return 0, fmt.Errorf("control %s is not an enumerated control", ctl.Name())
	}

	return ctl.enumInfo().Items, nil
}

// EnumString returns the name of the enum item at index.
func (ctl *MixerCtl) EnumString(index uint) (string, error) {
	names, err := ctl.AllEnumStrings()
	if err != nil {
		return "", err
	}

	if index >= uint(len(names)) {
		return "", fmt.Errorf("enum index %d out of range (%d items)", index, len(names))
	}

	return names[index], nil
}

// AllEnumStrings returns the names of all items of an ENUMERATED control.
func (ctl *MixerCtl) AllEnumStrings() ([]string, error) {
	items, err := ctl.NumEnums()
	if err != nil {
		return nil, err
	}

	if ctl.ename != nil {
		return ctl.ename, nil
	}

	if err := ctl.check(); err != nil {
		return nil, err
	}

	names := make([]string, 0, items)
	for i := uint32(0); i < items; i++ {
		info := SndCtlElemInfo{}
		info.Id = ctl.info.Id

		e := (*sndCtlEnum)(unsafe.Pointer(&info.Value[0]))
		e.Item = i

		if err := ctl.mixer.t.ioctl(SNDRV_CTL_IOCTL_ELEM_INFO, unsafe.Pointer(&info)); err != nil {
			return nil, fmt.Errorf("ioctl ELEM_INFO (enum item %d) failed: %w", i, err)
		}

		names = append(names, cString(e.Name[:]))
	}

	ctl.ename = names

	return names, nil
}

// EnumValueString returns the name of the item selected by the id-th value.
func (ctl *MixerCtl) EnumValueString(id uint) (string, error) {
	if ctl.Type() != SNDRV_CTL_ELEM_TYPE_ENUMERATED {
		return "", fmt.Errorf("control %s is not an enumerated control", ctl.Name())
	}

	item, err := ctl.Value(id)
	if err != nil {
		return "", err
	}

	return ctl.EnumString(uint(item))
}

// SetEnumByString selects the item named s for every value of an ENUMERATED control.
func (ctl *MixerCtl) SetEnumByString(s string) error {
	names, err := ctl.AllEnumStrings()
	if err != nil {
		return err
	}

	item := -1
	for i, name := range names {
		if name == s {
			item = i

			break
		}
	}

	if item < 0 {
		return fmt.Errorf("enum item %q not found for control %s", s, ctl.Name())
	}

	ev, err := ctl.read()
	if err != nil {
		return err
	}

	for i := uint32(0); i < ctl.NumValues(); i++ {
		ev.SetEnumerated(i, uint32(item))
	}

	return ctl.write(ev)
}

// Array reads all values of the control into out, which must be a *[]int32 (BOOLEAN, INTEGER,
// ENUMERATED), *[]int64 (INTEGER, INTEGER64) or *[]byte (BYTES). Controls with TLV access are
// read through TLV.
func (ctl *MixerCtl) Array(out any) error {
	count := ctl.NumValues()

	if ctl.Type() == SNDRV_CTL_ELEM_TYPE_BYTES && ctl.IsAccessTlvRw() {
		p, ok := out.(*[]byte)
		if !ok {
			return fmt.Errorf("byte control %s needs *[]byte, got %T", ctl.Name(), out)
		}

		data, err := ctl.tlvRead(count)
		if err != nil {
			return err
		}

		*p = data

		return nil
	}

	ev, err := ctl.read()
	if err != nil {
		return err
	}

	switch p := out.(type) {
	case *[]int32:
		s := make([]int32, count)
		for i := range s {
			switch ctl.Type() {
			case SNDRV_CTL_ELEM_TYPE_BOOLEAN, SNDRV_CTL_ELEM_TYPE_INTEGER:
				s[i] = int32(ev.Integer(uint32(i)))
			case SNDRV_CTL_ELEM_TYPE_ENUMERATED:
				s[i] = int32(ev.Enumerated(uint32(i)))
			default:
				return fmt.Errorf("control %s of type %s cannot be read as []int32", ctl.Name(), ctl.TypeString())
			}
		}

		*p = s
	case *[]int64:
		s := make([]int64, count)
		for i := range s {
			switch ctl.Type() {
			case SNDRV_CTL_ELEM_TYPE_INTEGER:
				s[i] = ev.Integer(uint32(i))
			case SNDRV_CTL_ELEM_TYPE_INTEGER64:
				s[i] = ev.Integer64(uint32(i))
			default:
				return fmt.Errorf("control %s of type %s cannot be read as []int64", ctl.Name(), ctl.TypeString())
			}
		}

		*p = s
	case *[]byte:
		if ctl.Type() != SNDRV_CTL_ELEM_TYPE_BYTES {
			return fmt.Errorf("control %s of type %s cannot be read as []byte", ctl.Name(), ctl.TypeString())
		}

		if int(count) > ctlElemValueBytes {
			return fmt.Errorf("byte control %s too large: %d", ctl.Name(), count)
		}

		*p = append([]byte(nil), ev.Bytes()[:count]...)
	default:
		return fmt.Errorf("unsupported array type %T", out)
	}

	return nil
}

// SetArray writes all values of the control. data must hold exactly NumValues elements of the
// types accepted by Array.
func (ctl *MixerCtl) SetArray(data any) error {
	count := ctl.NumValues()

	if ctl.Type() == SNDRV_CTL_ELEM_TYPE_BYTES && ctl.IsAccessTlvRw() {
		b, ok := data.([]byte)
		if !ok {
			return fmt.Errorf("byte control %s needs []byte, got %T", ctl.Name(), data)
		}

		if uint32(len(b)) != count {
			return fmt.Errorf("got %d bytes, control %s has %d", len(b), ctl.Name(), count)
		}

		return ctl.tlvWrite(b)
	}

	if err := ctl.check(); err != nil {
		return err
	}

	ev := &SndCtlElemValue{}

	switch s := data.(type) {
	case []int32:
		if uint32(len(s)) != count {
			return fmt.Errorf("got %d values, control %s has %d", len(s), ctl.Name(), count)
		}

		for i, v := range s {
			switch ctl.Type() {
			case SNDRV_CTL_ELEM_TYPE_BOOLEAN, SNDRV_CTL_ELEM_TYPE_INTEGER:
				ev.SetInteger(uint32(i), int64(v))
			case SNDRV_CTL_ELEM_TYPE_ENUMERATED:
				ev.SetEnumerated(uint32(i), uint32(v))
			default:
				return fmt.Errorf("control %s of type %s cannot be written from []int32", ctl.Name(), ctl.TypeString())
			}
		}
	case []int64:
		if uint32(len(s)) != count {
			return fmt.Errorf("got %d values, control %s has %d", len(s), ctl.Name(), count)
		}

		for i, v := range s {
			switch ctl.Type() {
			case SNDRV_CTL_ELEM_TYPE_INTEGER:
				ev.SetInteger(uint32(i), v)
			case SNDRV_CTL_ELEM_TYPE_INTEGER64:
				ev.SetInteger64(uint32(i), v)
			default:
				return fmt.Errorf("control %s of type %s cannot be written from []int64", ctl.Name(), ctl.TypeString())
			}
		}
	case []byte:
		if ctl.Type() != SNDRV_CTL_ELEM_TYPE_BYTES {
			return fmt.Errorf("control %s of type %s cannot be written from []byte", ctl.Name(), ctl.TypeString())
		}

		if uint32(len(s)) != count || len(s) > ctlElemValueBytes {
			return fmt.Errorf("got %d bytes, control %s has %d", len(s), ctl.Name(), count)
		}

		copy(ev.Bytes(), s)
	default:
		return fmt.Errorf("unsupported array type %T", data)
	}

	return ctl.write(ev)
}

// tlvBuffer returns a buffer holding an SndCtlTlv header followed by size data bytes.
func (ctl *MixerCtl) tlvBuffer(size uint32) ([]byte, *SndCtlTlv) {
	hdrSize := uint32(unsafe.Sizeof(SndCtlTlv{}))

	// Allocate as uint32 words to keep the header aligned.
	words := make([]uint32, (hdrSize+size+3)/4)
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(words)*4)

	hdr := (*SndCtlTlv)(unsafe.Pointer(&buf[0]))
	hdr.Numid = ctl.ID()
	hdr.Length = size

	return buf, hdr
}

func (ctl *MixerCtl) tlvRead(size uint32) ([]byte, error) {
	if err := ctl.check(); err != nil {
		return nil, err
	}

	buf, hdr := ctl.tlvBuffer(size)

	if err := ctl.mixer.t.ioctl(SNDRV_CTL_IOCTL_TLV_READ, unsafe.Pointer(hdr)); err != nil {
		return nil, fmt.Errorf("ioctl TLV_READ failed: %w", err)
	}

	n := hdr.Length
	if n > size {
		n = size
	}

	hdrSize := unsafe.Sizeof(*hdr)

	return append([]byte(nil), buf[hdrSize:hdrSize+uintptr(n)]...), nil
}

func (ctl *MixerCtl) tlvWrite(data []byte) error {
	if err := ctl.check(); err != nil {
		return err
	}

	buf, hdr := ctl.tlvBuffer(uint32(len(data)))
	copy(buf[unsafe.Sizeof(*hdr):], data)

	if err := ctl.mixer.t.ioctl(SNDRV_CTL_IOCTL_TLV_WRITE, unsafe.Pointer(hdr)); err != nil {
		return fmt.Errorf("ioctl TLV_WRITE failed: %w", err)
	}

	return nil
}
