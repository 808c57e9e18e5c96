package audiodev

import (
	"encoding/binary"
	"math"
)

// decodeFloat32 converts little-endian f32 samples and applies the volume,
// clamping the result to [-1, 1].
func decodeFloat32(in []byte, volume float64) []float32 {
	out := make([]float32, len(in)/4)
	v := float32(volume)
	for i := range out {
		s := math.Float32frombits(binary.LittleEndian.Uint32(in[i*4:])) * v
		switch {
		case s > 1:
			s = 1
		case s < -1:
			s = -1
		}
		out[i] = s
	}
	return out
}
