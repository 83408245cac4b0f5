package alsa

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// mixerTransport carries control ioctls either to a kernel device or to a mixer plugin.
type mixerTransport interface {
	ioctl(cmd uintptr, arg unsafe.Pointer) error
	readEvent(ev *SndCtlEvent) error
	// fd is polled for pending events.
	fd() uintptr
	close() error
}

// openMixerTransport resolves the mixer node of a card and opens the matching backend.
func openMixerTransport(card uint) (mixerTransport, error) {
	node, err := getSndNode(card, 0, SND_NODE_MIXER)
	if err != nil {
		return nil, err
	}

	if node != nil {
		typ, err := node.Type()
		if err != nil {
			node.close()

			return nil, err
		}

		if typ == SND_NODE_TYPE_PLUGIN {
			return openMixerPlugin(node, card)
		}
	}

	node.close()

	return openMixerHw(card)
}

// mixerHw is the kernel backend, /dev/snd/controlC<card>.
type mixerHw struct {
	file *os.File
}

func openMixerHw(card uint) (*mixerHw, error) {
	path := fmt.Sprintf("/dev/snd/controlC%d", card)

	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open mixer device %s: %w", path, err)
	}

	return &mixerHw{file: file}, nil
}

func (h *mixerHw) ioctl(cmd uintptr, arg unsafe.Pointer) error {
	return ioctlPtr(h.file.Fd(), cmd, arg)
}

func (h *mixerHw) readEvent(ev *SndCtlEvent) error {
	evSize := int(unsafe.Sizeof(*ev))
	buffer := make([]byte, evSize)

	n, err := unix.Read(int(h.file.Fd()), buffer)
	if err != nil {
		return err
	}

	if n < evSize {
		return fmt.Errorf("short read for event: got %d bytes, want %d", n, evSize)
	}

	*ev = *(*SndCtlEvent)(unsafe.Pointer(&buffer[0]))

	return nil
}

func (h *mixerHw) fd() uintptr {
	return h.file.Fd()
}

func (h *mixerHw) close() error {
	return h.file.Close()
}
