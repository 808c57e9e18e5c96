package synchronizer

// audioMixer keeps one pending sample track per audio origin; all tracks
// start at the same timeline position and are mixed up to the shortest one.
type audioMixer struct {
	sampleRate int
	channels   int
	pos        int64
	tracks     [][]float32
}

func newAudioMixer(sampleRate, channels, trackCount int) *audioMixer {
	return &audioMixer{
		sampleRate: sampleRate,
		channels:   channels,
		tracks:     make([][]float32, trackCount),
	}
}

func (m *audioMixer) trackEnd(idx int) int64 {
	return m.pos + int64(len(m.tracks[idx])/m.channels)
}

func (m *audioMixer) maxTrackEnd() int64 {
	end := m.pos
	for idx := range m.tracks {
		end = max(end, m.trackEnd(idx))
	}
	return end
}

func (m *audioMixer) padTo(idx int, end int64) int64 {
	missing := end - m.trackEnd(idx)
	if missing <= 0 {
		return 0
	}
	m.tracks[idx] = append(m.tracks[idx], make([]float32, missing*int64(m.channels))...)
	return missing
}

func (m *audioMixer) append(idx int, samples []float32) {
	samples = samples[:len(samples)-len(samples)%m.channels]
	m.tracks[idx] = append(m.tracks[idx], samples...)
}

// mix consumes the samples present on every track and returns their
// position and the clamped sum.
func (m *audioMixer) mix() (int64, []float32) {
	end := m.trackEnd(0)
	for idx := range m.tracks[1:] {
		end = min(end, m.trackEnd(idx+1))
	}
	count := int((end - m.pos) * int64(m.channels))
	if count <= 0 {
		return m.pos, nil
	}

	out := make([]float32, count)
	for idx, track := range m.tracks {
		for i, v := range track[:count] {
			out[i] += v
		}
		rest := track[count:]
		if len(rest) == 0 {
			m.tracks[idx] = track[:0]
		} else {
			m.tracks[idx] = append(make([]float32, 0, len(rest)), rest...)
		}
	}
	for i, v := range out {
		switch {
		case v > 1:
			out[i] = 1
		case v < -1:
			out[i] = -1
		}
	}

	pos := m.pos
	m.pos = end
	return pos, out
}
