package alsa

import (
	"fmt"
	"sort"
	"strings"
	"unsafe"
)

// PcmParams holds the hardware parameters reported for a PCM device.
type PcmParams struct {
	params *SndPcmHwParams
}

// PcmParamsGet queries the hardware parameters for a given PCM device to get its default settings.
// This function initializes the parameters and then uses the SNDRV_PCM_IOCTL_HW_PARAMS ioctl.
// The kernel (or the plugin) then fills the structure with the default or current settings.
func PcmParamsGet(card, device uint, flags PcmFlag) (*PcmParams, error) {
	return pcmParamsQuery(card, device, flags, SNDRV_PCM_IOCTL_HW_PARAMS, "HW_PARAMS")
}

// PcmParamsGetRefined queries the hardware parameters for a given PCM device to discover its full range of capabilities.
// This function initializes the parameters and then uses the SNDRV_PCM_IOCTL_HW_REFINE ioctl to ask the kernel to restrict
// the ranges to what the hardware actually supports. Plugin PCMs refine against the constraints registered by the plugin.
func PcmParamsGetRefined(card, device uint, flags PcmFlag) (*PcmParams, error) {
	return pcmParamsQuery(card, device, flags, SNDRV_PCM_IOCTL_HW_REFINE, "HW_REFINE")
}

func pcmParamsQuery(card, device uint, flags PcmFlag, cmd uintptr, name string) (*PcmParams, error) {
	// Use O_NONBLOCK on open to avoid getting stuck
	t, err := openPcmTransport(card, device, flags|PCM_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("failed to open PCM device for query: %w", err)
	}
	defer t.close()

	hwParams := &SndPcmHwParams{}
	hwParams.init()

	if err := t.ioctl(cmd, unsafe.Pointer(hwParams)); err != nil {
		return nil, fmt.Errorf("ioctl %s failed: %w", name, err)
	}

	return &PcmParams{params: hwParams}, nil
}

// Free releases the parameters. It exists for parity with tinyalsa; the garbage collector does the work.
func (pp *PcmParams) Free() {
	if pp != nil {
		pp.params = nil
	}
}

// RangeMin returns the minimum value for an interval parameter.
func (pp *PcmParams) RangeMin(param PcmParam) (uint32, error) {
	if pp == nil || pp.params == nil {
		return 0, fmt.Errorf("params not initialized")
	}

	if param < SNDRV_PCM_HW_PARAM_FIRST_INTERVAL || param > SNDRV_PCM_HW_PARAM_LAST_INTERVAL {
		return 0, fmt.Errorf("parameter %v is not an interval type", param)
	}

	return pp.params.Intervals[param-SNDRV_PCM_HW_PARAM_FIRST_INTERVAL].MinVal, nil
}

// RangeMax returns the maximum value for an interval parameter.
func (pp *PcmParams) RangeMax(param PcmParam) (uint32, error) {
	if pp == nil || pp.params == nil {
		return 0, fmt.Errorf("params not initialized")
	}

	if param < SNDRV_PCM_HW_PARAM_FIRST_INTERVAL || param > SNDRV_PCM_HW_PARAM_LAST_INTERVAL {
		return 0, fmt.Errorf("parameter %v is not an interval type", param)
	}

	return pp.params.Intervals[param-SNDRV_PCM_HW_PARAM_FIRST_INTERVAL].MaxVal, nil
}

// Mask returns the bitmask for a mask-type parameter.
func (pp *PcmParams) Mask(param PcmParam) (*PcmParamMask, error) {
	if pp == nil || pp.params == nil {
		return nil, fmt.Errorf("params not initialized")
	}

	if param < SNDRV_PCM_HW_PARAM_FIRST_MASK || param > SNDRV_PCM_HW_PARAM_LAST_MASK {
		return nil, fmt.Errorf("parameter %v is not a mask type", param)
	}

	maskPtr := &pp.params.Masks[param-SNDRV_PCM_HW_PARAM_FIRST_MASK]

	return (*PcmParamMask)(unsafe.Pointer(maskPtr)), nil
}

// FormatIsSupported checks if a given PCM format is supported.
func (pp *PcmParams) FormatIsSupported(format PcmFormat) bool {
	mask, err := pp.Mask(SNDRV_PCM_HW_PARAM_FORMAT)
	if err != nil {
		return false
	}

	return mask.Test(uint(format))
}

// String returns a human-readable representation of the PCM device's capabilities.
func (pp *PcmParams) String() string {
	if pp == nil || pp.params == nil {
		return "<nil>"
	}

	var b strings.Builder

	// Helper to print masks using a string slice for names
	printMaskSlice := func(name string, param PcmParam, names []string) {
		mask, err := pp.Mask(param)
		if err != nil {
			return
		}

		var supported []string
		for i, n := range names {
			if i < len(names) && len(n) > 0 && mask.Test(uint(i)) {
				supported = append(supported, n)
			}
		}

		if len(supported) > 0 {
			b.WriteString(fmt.Sprintf("%12s: %s\n", name, strings.Join(supported, ", ")))
		}
	}

	// Helper to print format masks using the map
	printFormatMask := func() {
		mask, err := pp.Mask(SNDRV_PCM_HW_PARAM_FORMAT)
		if err != nil {
			return
		}

		var supported []string

		// Sort keys for consistent output
		var keys []int
		for k := range PcmParamFormatNames {
			keys = append(keys, int(k))
		}

		sort.Ints(keys)

		for _, k := range keys {
			f := PcmFormat(k)
			if name, ok := PcmParamFormatNames[f]; ok && mask.Test(uint(f)) {
				supported = append(supported, name)
			}
		}

		if len(supported) > 0 {
			b.WriteString(fmt.Sprintf("%12s: %s\n", "Format", strings.Join(supported, ", ")))
		}
	}

	// Helper to print interval parameters
	printInterval := func(name string, param PcmParam, unit string) {
		rangeMin, errMin := pp.RangeMin(param)
		rangeMax, errMax := pp.RangeMax(param)

		if errMin != nil || errMax != nil {
			return
		}

		if rangeMax == 0 || rangeMax == ^uint32(0) { // Don't print meaningless ranges
			return
		}

		b.WriteString(fmt.Sprintf("%12s: min=%-6d max=%-6d %s\n", name, rangeMin, rangeMax, unit))
	}

	b.WriteString("PCM device capabilities:\n")
	printMaskSlice("Access", SNDRV_PCM_HW_PARAM_ACCESS, PcmParamAccessNames)
	printFormatMask()
	printMaskSlice("Subformat", SNDRV_PCM_HW_PARAM_SUBFORMAT, PcmParamSubformatNames)
	printInterval("Rate", SNDRV_PCM_HW_PARAM_RATE, "Hz")
	printInterval("Channels", SNDRV_PCM_HW_PARAM_CHANNELS, "")
	printInterval("Sample bits", SNDRV_PCM_HW_PARAM_SAMPLE_BITS, "")
	printInterval("Period size", SNDRV_PCM_HW_PARAM_PERIOD_SIZE, "frames")
	printInterval("Periods", SNDRV_PCM_HW_PARAM_PERIODS, "")

	return b.String()
}

// init initializes the parameters to allow all possible values.
func (p *SndPcmHwParams) init() {
	// Initialize all masks (including reserved) to all-ones.
	for n := range p.Masks {
		for i := range p.Masks[n].Bits {
			p.Masks[n].Bits[i] = ^uint32(0)
		}
	}

	for n := range p.Mres {
		for i := range p.Mres[n].Bits {
			p.Mres[n].Bits[i] = ^uint32(0)
		}
	}

	// Initialize all intervals (including reserved) to the full range.
	for n := range p.Intervals {
		p.Intervals[n].MinVal = 0
		p.Intervals[n].MaxVal = ^uint32(0)
		p.Intervals[n].Flags = 0
	}

	for n := range p.Ires {
		p.Ires[n].MinVal = 0
		p.Ires[n].MaxVal = ^uint32(0)
		p.Ires[n].Flags = 0
	}

	p.Rmask = ^uint32(0)
	p.Info = ^uint32(0)
}

// Mask returns the bitmask of a mask-type parameter, or nil for other parameters.
func (p *SndPcmHwParams) Mask(param PcmParam) *PcmParamMask {
	if param < SNDRV_PCM_HW_PARAM_FIRST_MASK || param > SNDRV_PCM_HW_PARAM_LAST_MASK {
		return nil
	}

	return (*PcmParamMask)(unsafe.Pointer(&p.Masks[param-SNDRV_PCM_HW_PARAM_FIRST_MASK]))
}

// Interval returns the range of an interval-type parameter, or nil for other parameters.
func (p *SndPcmHwParams) Interval(param PcmParam) *SndInterval {
	if param < SNDRV_PCM_HW_PARAM_FIRST_INTERVAL || param > SNDRV_PCM_HW_PARAM_LAST_INTERVAL {
		return nil
	}

	return &p.Intervals[param-SNDRV_PCM_HW_PARAM_FIRST_INTERVAL]
}

// SetMask clears a mask-type parameter and sets the single given bit.
func (p *SndPcmHwParams) SetMask(param PcmParam, bit uint32) {
	mask := p.Mask(param)
	if mask == nil {
		return
	}

	for i := range mask.bits {
		mask.bits[i] = 0
	}

	if bit >= 256 { // SNDRV_MASK_MAX
		return
	}

	mask.bits[bit>>5] |= 1 << (bit & 31)
}

// SetInt narrows an interval parameter to a single integer value.
func (p *SndPcmHwParams) SetInt(param PcmParam, val uint32) {
	interval := p.Interval(param)
	if interval == nil {
		return
	}

	interval.MinVal = val
	interval.MaxVal = val
	interval.Flags = SNDRV_PCM_INTERVAL_INTEGER
}

// SetMin raises the lower bound of an interval parameter.
func (p *SndPcmHwParams) SetMin(param PcmParam, val uint32) {
	interval := p.Interval(param)
	if interval == nil {
		return
	}

	interval.MinVal = val
}

// Int returns the value of an interval parameter.
// The driver finalizes the configuration by narrowing the interval, so this is its minimum.
func (p *SndPcmHwParams) Int(param PcmParam) uint32 {
	interval := p.Interval(param)
	if interval == nil {
		return 0
	}

	return interval.MinVal
}

// Format returns the lowest format set in the format mask, or SNDRV_PCM_FORMAT_INVALID.
func (p *SndPcmHwParams) Format() PcmFormat {
	mask := p.Mask(SNDRV_PCM_HW_PARAM_FORMAT)
	for f := uint(0); f < 64; f++ {
		if mask.Test(f) {
			return PcmFormat(f)
		}
	}

	return SNDRV_PCM_FORMAT_INVALID
}
