package alsa

import (
	"syscall"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// pollEventFd reports whether fd is readable within timeoutMs.
func pollEventFd(fd uintptr, timeoutMs int) (bool, error) {
	pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}

	n, err := unix.Poll(pfd, timeoutMs)
	if err != nil {
		return false, err
	}

	return n > 0 && (pfd[0].Revents&unix.POLLIN) != 0, nil
}

func openTestMixerPlugin(t *testing.T) (*mixerPlugin, *fakeMixer) {
	t.Helper()

	node, _ := pluginNode(testMixerPlugin)

	mp, err := openMixerPlugin(node, 2)
	require.NoError(t, err)

	t.Cleanup(func() { _ = mp.close() })

	return mp, mp.plugin.Priv.(*fakeMixer)
}

func subscribe(t *testing.T, mp *mixerPlugin, val int32) error {
	t.Helper()

	return mp.ioctl(SNDRV_CTL_IOCTL_SUBSCRIBE_EVENTS, unsafe.Pointer(&val))
}

func TestMixerPluginOpen(t *testing.T) {
	t.Run("NoOps", func(t *testing.T) {
		node, defs := pluginNode(testMixerNoOps)

		_, err := openMixerPlugin(node, 0)
		assert.ErrorContains(t, err, "no operations")
		assert.Equal(t, 1, defs.closeCount())
	})

	t.Run("NotRegistered", func(t *testing.T) {
		node, _ := pluginNode("no-such-mixer")

		_, err := openMixerPlugin(node, 0)
		assert.ErrorIs(t, err, ErrPluginNotFound)
	})

	t.Run("Close", func(t *testing.T) {
		node, defs := pluginNode(testMixerPlugin)

		mp, err := openMixerPlugin(node, 0)
		require.NoError(t, err)

		fake := mp.plugin.Priv.(*fakeMixer)

		require.NoError(t, subscribe(t, mp, 1))
		require.NoError(t, mp.close())
		require.NoError(t, mp.close())

		assert.Equal(t, 1, fake.closed)
		assert.Equal(t, 2, fake.subscribes, "close unsubscribes")
		assert.Equal(t, 1, defs.closeCount())
		assert.ErrorIs(t, mp.ioctl(SNDRV_CTL_IOCTL_CARD_INFO, unsafe.Pointer(&SndCtlCardInfo{})), syscall.EBADF)
	})
}

func TestMixerPluginCardInfo(t *testing.T) {
	mp, _ := openTestMixerPlugin(t)

	var info SndCtlCardInfo
	require.NoError(t, mp.ioctl(SNDRV_CTL_IOCTL_CARD_INFO, unsafe.Pointer(&info)))
	assert.Equal(t, int32(2), info.Card)
	assert.Equal(t, "plugin", cString(info.Driver[:]))
	assert.Equal(t, "Test Card", cString(info.Name[:]))
	assert.Equal(t, "Test Card", cString(info.Mixername[:]))

	var version int32
	require.NoError(t, mp.ioctl(SNDRV_CTL_IOCTL_PVERSION, unsafe.Pointer(&version)))
	assert.Equal(t, int32(SNDRV_CTL_VERSION), version)

	assert.ErrorIs(t, mp.ioctl(SNDRV_PCM_IOCTL_DRAIN, nil), syscall.ENOTTY)
}

func TestMixerPluginElemList(t *testing.T) {
	mp, _ := openTestMixerPlugin(t)

	list := &sndCtlElemList{}
	require.NoError(t, mp.ioctl(SNDRV_CTL_IOCTL_ELEM_LIST, unsafe.Pointer(list)))
	assert.Equal(t, uint32(5), list.Count)
	assert.Zero(t, list.Used)

	ids := make([]SndCtlElemId, 2)
	list.Offset = 1
	list.Space = 2
	list.Pids = uintptr(unsafe.Pointer(&ids[0]))

	require.NoError(t, mp.ioctl(SNDRV_CTL_IOCTL_ELEM_LIST, unsafe.Pointer(list)))
	assert.Equal(t, uint32(2), list.Used)
	assert.Equal(t, uint32(2), ids[0].Numid)
	assert.Equal(t, "Route", cString(ids[0].Name[:]))
	assert.Equal(t, uint32(3), ids[1].Numid)
	assert.Equal(t, "Blob", cString(ids[1].Name[:]))
	assert.Equal(t, int32(SNDRV_CTL_ELEM_IFACE_MIXER), ids[1].Iface)

	list.Pids = 0
	assert.ErrorIs(t, mp.ioctl(SNDRV_CTL_IOCTL_ELEM_LIST, unsafe.Pointer(list)), syscall.EFAULT)
}

func TestMixerPluginElemInfo(t *testing.T) {
	mp, _ := openTestMixerPlugin(t)

	t.Run("ByNumid", func(t *testing.T) {
		var info SndCtlElemInfo
		info.Id.Numid = 1

		require.NoError(t, mp.ioctl(SNDRV_CTL_IOCTL_ELEM_INFO, unsafe.Pointer(&info)))
		assert.Equal(t, "Master Volume", cString(info.Id.Name[:]))
		assert.Equal(t, int32(SNDRV_CTL_ELEM_TYPE_INTEGER), info.Typ)
		assert.Equal(t, uint32(2), info.Count)

		i := (*integer)(unsafe.Pointer(&info.Value[0]))
		assert.Equal(t, clong(0), i.Min)
		assert.Equal(t, clong(31), i.Max)
		assert.Equal(t, clong(1), i.Step)
	})

	t.Run("ByName", func(t *testing.T) {
		var info SndCtlElemInfo
		info.Id.Iface = int32(SNDRV_CTL_ELEM_IFACE_MIXER)
		copy(info.Id.Name[:], "Route")

		e := (*sndCtlEnum)(unsafe.Pointer(&info.Value[0]))
		e.Item = 1

		require.NoError(t, mp.ioctl(SNDRV_CTL_IOCTL_ELEM_INFO, unsafe.Pointer(&info)))
		assert.Equal(t, uint32(2), info.Id.Numid)
		assert.Equal(t, uint32(1), info.Count)
		assert.Equal(t, uint32(3), e.Items)
		assert.Equal(t, "Headphone", cString(e.Name[:]))
	})

	t.Run("EnumItemOutOfRange", func(t *testing.T) {
		var info SndCtlElemInfo
		info.Id.Numid = 2
		(*sndCtlEnum)(unsafe.Pointer(&info.Value[0])).Item = 3

		assert.ErrorIs(t, mp.ioctl(SNDRV_CTL_IOCTL_ELEM_INFO, unsafe.Pointer(&info)), syscall.EINVAL)
	})

	t.Run("Bytes", func(t *testing.T) {
		var info SndCtlElemInfo
		info.Id.Numid = 4

		require.NoError(t, mp.ioctl(SNDRV_CTL_IOCTL_ELEM_INFO, unsafe.Pointer(&info)))
		assert.Equal(t, uint32(testMixerTlvLength), info.Count)
		assert.NotZero(t, CtlAccessFlag(info.Access)&SNDRV_CTL_ELEM_ACCESS_TLV_READWRITE)
	})

	t.Run("Unknown", func(t *testing.T) {
		var info SndCtlElemInfo
		info.Id.Numid = 42
		assert.ErrorIs(t, mp.ioctl(SNDRV_CTL_IOCTL_ELEM_INFO, unsafe.Pointer(&info)), syscall.EINVAL)

		info = SndCtlElemInfo{}
		copy(info.Id.Name[:], "Missing")
		assert.ErrorIs(t, mp.ioctl(SNDRV_CTL_IOCTL_ELEM_INFO, unsafe.Pointer(&info)), syscall.ENOENT)
	})
}

func TestMixerPluginElemValue(t *testing.T) {
	mp, fake := openTestMixerPlugin(t)

	var ev SndCtlElemValue
	ev.Id.Numid = 1
	ev.SetInteger(0, 7)
	ev.SetInteger(1, 9)

	require.NoError(t, mp.ioctl(SNDRV_CTL_IOCTL_ELEM_WRITE, unsafe.Pointer(&ev)))
	assert.Equal(t, [2]int64{7, 9}, fake.volume)

	ev = SndCtlElemValue{}
	copy(ev.Id.Name[:], "Master Volume")
	ev.Id.Iface = int32(SNDRV_CTL_ELEM_IFACE_MIXER)

	require.NoError(t, mp.ioctl(SNDRV_CTL_IOCTL_ELEM_READ, unsafe.Pointer(&ev)))
	assert.Equal(t, uint32(1), ev.Id.Numid)
	assert.Equal(t, int64(7), ev.Integer(0))
	assert.Equal(t, int64(9), ev.Integer(1))

	// A control without a put callback is read-only.
	ev = SndCtlElemValue{}
	ev.Id.Numid = 5
	assert.ErrorIs(t, mp.ioctl(SNDRV_CTL_IOCTL_ELEM_WRITE, unsafe.Pointer(&ev)), syscall.EPERM)
	require.NoError(t, mp.ioctl(SNDRV_CTL_IOCTL_ELEM_READ, unsafe.Pointer(&ev)))
}

func TestMixerPluginTlv(t *testing.T) {
	mp, fake := openTestMixerPlugin(t)

	buf := make([]uint32, 2+testMixerTlvLength/4)
	hdr := (*SndCtlTlv)(unsafe.Pointer(&buf[0]))
	data := unsafe.Slice((*byte)(unsafe.Pointer(&buf[2])), testMixerTlvLength)

	hdr.Numid = 4
	hdr.Length = testMixerTlvLength
	copy(data, "abcdefgh")

	require.NoError(t, mp.ioctl(SNDRV_CTL_IOCTL_TLV_WRITE, unsafe.Pointer(hdr)))
	assert.Equal(t, "abcdefgh", string(fake.tlv[:]))

	clear(data)
	require.NoError(t, mp.ioctl(SNDRV_CTL_IOCTL_TLV_READ, unsafe.Pointer(hdr)))
	assert.Equal(t, "abcdefgh", string(data))
	assert.Equal(t, uint32(testMixerTlvLength), hdr.Length)

	hdr.Numid = 1
	assert.ErrorIs(t, mp.ioctl(SNDRV_CTL_IOCTL_TLV_READ, unsafe.Pointer(hdr)), syscall.ENXIO)

	hdr.Numid = 9
	assert.ErrorIs(t, mp.ioctl(SNDRV_CTL_IOCTL_TLV_READ, unsafe.Pointer(hdr)), syscall.EINVAL)
}

func TestMixerPluginEvents(t *testing.T) {
	mp, fake := openTestMixerPlugin(t)

	var ev SndCtlEvent
	assert.ErrorIs(t, mp.readEvent(&ev), syscall.EAGAIN)

	assert.ErrorIs(t, subscribe(t, mp, 2), syscall.EINVAL)
	assert.ErrorIs(t, subscribe(t, mp, -1), syscall.EINVAL)

	require.NoError(t, subscribe(t, mp, 1))
	require.NoError(t, subscribe(t, mp, 1))
	assert.Equal(t, 1, fake.subscribes, "subscribing twice is a no-op")

	value := SndCtlElemValue{}
	value.Id.Numid = 2
	value.SetEnumerated(0, 2)
	require.NoError(t, mp.ioctl(SNDRV_CTL_IOCTL_ELEM_WRITE, unsafe.Pointer(&value)))

	value = SndCtlElemValue{}
	value.Id.Numid = 3
	require.NoError(t, mp.ioctl(SNDRV_CTL_IOCTL_ELEM_WRITE, unsafe.Pointer(&value)))

	assert.Equal(t, 2, mp.plugin.PendingEvents())

	ready, err := pollEventFd(mp.fd(), 0)
	require.NoError(t, err)
	assert.True(t, ready)

	require.NoError(t, mp.readEvent(&ev))
	assert.Equal(t, int32(SNDRV_CTL_EVENT_ELEM), ev.Typ)
	assert.Equal(t, uint32(2), ev.Elem.Id.Numid)
	assert.Equal(t, 1, mp.plugin.PendingEvents())

	require.NoError(t, mp.readEvent(&ev))
	assert.Equal(t, uint32(3), ev.Elem.Id.Numid)
	assert.Zero(t, mp.plugin.PendingEvents())

	// The eventfd is drained once every event is read.
	ready, err = pollEventFd(mp.fd(), 0)
	require.NoError(t, err)
	assert.False(t, ready)

	assert.ErrorIs(t, mp.readEvent(&ev), syscall.EAGAIN)

	// Unsubscribing drops pending events.
	value = SndCtlElemValue{}
	value.Id.Numid = 3
	require.NoError(t, mp.ioctl(SNDRV_CTL_IOCTL_ELEM_WRITE, unsafe.Pointer(&value)))
	require.Equal(t, 1, mp.plugin.PendingEvents())

	require.NoError(t, subscribe(t, mp, 0))
	assert.Zero(t, mp.plugin.PendingEvents())
	assert.Equal(t, 2, fake.subscribes)

	ready, err = pollEventFd(mp.fd(), 0)
	require.NoError(t, err)
	assert.False(t, ready)
}

func TestMixerPluginNotifyWithoutSubscription(t *testing.T) {
	mp, _ := openTestMixerPlugin(t)

	mp.plugin.notify(mp.plugin)
	assert.Zero(t, mp.plugin.PendingEvents())
}
