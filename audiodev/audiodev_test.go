package audiodev

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gen2brain/malgo"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/screenrec/types"
)

func encodeFloat32(samples ...float32) []byte {
	b := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(s))
	}
	return b
}

func TestDecodeFloat32Volume(t *testing.T) {
	out := decodeFloat32(encodeFloat32(0.25, -0.5, 0.75, -1), 2)
	require.Equal(t, []float32{0.5, -1, 1, -1}, out)

	out = decodeFloat32(encodeFloat32(0.25, -0.5), 0)
	require.Equal(t, []float32{0, 0}, out)
}

func TestDecodeFloat32IgnoresTrailingBytes(t *testing.T) {
	in := append(encodeFloat32(0.5), 0x01, 0x02)
	require.Equal(t, []float32{0.5}, decodeFloat32(in, 1))
}

func TestMatchDevice(t *testing.T) {
	devices := []types.AudioInputDevice{
		{ID: "0a0b", Name: "USB Microphone", IsDefault: true},
		{ID: "0c0d", Name: "Headset"},
	}
	require.Equal(t, 1, matchDevice(devices, "0c0d"))
	require.Equal(t, 0, matchDevice(devices, "usb microphone"))
	require.Equal(t, -1, matchDevice(devices, "Webcam"))
}

func TestDeviceTypeFor(t *testing.T) {
	dt, err := deviceTypeFor(types.AudioOriginDesktop)
	require.NoError(t, err)
	require.Equal(t, malgo.Loopback, dt)

	dt, err = deviceTypeFor(types.AudioOriginMicrophone)
	require.NoError(t, err)
	require.Equal(t, malgo.Capture, dt)

	_, err = deviceTypeFor(types.AudioOriginMixed)
	require.Error(t, err)
}
