package alsa

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// pcmTransport carries PCM ioctls either to a kernel device or to a plugin.
type pcmTransport interface {
	ioctl(cmd uintptr, arg unsafe.Pointer) error
	// ioctlValue issues an ioctl whose argument is passed by value (PAUSE, LINK).
	ioctlValue(cmd, arg uintptr) error
	fd() uintptr
	mmap(offset int64, length, prot, flags int) ([]byte, error)
	// poll waits for events. It returns the received events, or 0 on timeout.
	poll(events int16, timeoutMs int) (int16, error)
	close() error
}

// openPcmTransport resolves the node of a PCM device and opens the matching backend.
func openPcmTransport(card, device uint, flags PcmFlag) (pcmTransport, error) {
	node, err := getSndNode(card, device, SND_NODE_PCM)
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
			return openPcmPlugin(node, card, device, flags)
		}
	}

	node.close()

	return openPcmHw(card, device, flags)
}

// pcmHw is the kernel backend, /dev/snd/pcmC<card>D<device><p|c>.
type pcmHw struct {
	file *os.File
}

func openPcmHw(card, device uint, flags PcmFlag) (*pcmHw, error) {
	var streamChar byte
	if (flags & PCM_IN) != 0 {
		streamChar = 'c' // Capture
	} else {
		streamChar = 'p' // Playback
	}

	path := fmt.Sprintf("/dev/snd/pcmC%dD%d%c", card, device, streamChar)

	// Always open non-blocking to avoid getting stuck
	// if the device is in use, then clear the flag if blocking I/O was requested.
	file, err := os.OpenFile(path, os.O_RDWR|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open PCM device %s: %w", path, err)
	}

	if (flags & PCM_NONBLOCK) == 0 {
		currentFlags, err := unix.FcntlInt(file.Fd(), unix.F_GETFL, 0)
		if err != nil {
			_ = file.Close()

			return nil, fmt.Errorf("fcntl F_GETFL for %s failed: %w", path, err)
		}
		if _, err = unix.FcntlInt(file.Fd(), unix.F_SETFL, currentFlags&^syscall.O_NONBLOCK); err != nil {
			_ = file.Close()

			return nil, fmt.Errorf("failed to set blocking mode on %s: %w", path, err)
		}
	}

	return &pcmHw{file: file}, nil
}

func (h *pcmHw) ioctl(cmd uintptr, arg unsafe.Pointer) error {
	return ioctlPtr(h.file.Fd(), cmd, arg)
}

func (h *pcmHw) ioctlValue(cmd, arg uintptr) error {
	return ioctl(h.file.Fd(), cmd, arg)
}

func (h *pcmHw) fd() uintptr {
	return h.file.Fd()
}

func (h *pcmHw) mmap(offset int64, length, prot, flags int) ([]byte, error) {
	return unix.Mmap(int(h.file.Fd()), offset, length, prot, flags)
}

func (h *pcmHw) poll(events int16, timeoutMs int) (int16, error) {
	pfd := []unix.PollFd{
		{
			Fd:     int32(h.file.Fd()),
			Events: events,
		},
	}

	// Loop to handle EINTR (interrupted system call)
	for {
		n, err := unix.Poll(pfd, timeoutMs)
		if errors.Is(err, syscall.EINTR) {
			continue
		}

		if err != nil || n == 0 {
			return 0, err
		}

		return pfd[0].Revents, nil
	}
}

func (h *pcmHw) close() error {
	return h.file.Close()
}
