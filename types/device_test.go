package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPreferredVideoEncoder(t *testing.T) {
	encoders := []VideoEncoder{
		{Name: "libx264", Codec: VideoCodecH264, Acceleration: AccelerationSoftware},
		{Name: "hevc_amf", Codec: VideoCodecHEVC, Acceleration: AccelerationAMF},
		{Name: "h264_qsv", Codec: VideoCodecH264, Acceleration: AccelerationQSV},
		{Name: "h264_nvenc", Codec: VideoCodecH264, Acceleration: AccelerationNVENC},
		{Name: "libsvtav1", Codec: VideoCodecAV1, Acceleration: AccelerationSoftware, Rank: 1},
		{Name: "libaom-av1", Codec: VideoCodecAV1, Acceleration: AccelerationSoftware, Rank: 2},
	}

	enc, err := PreferredVideoEncoder(encoders, VideoCodecH264)
	require.NoError(t, err)
	require.Equal(t, "h264_nvenc", enc.Name)

	enc, err = PreferredVideoEncoder(encoders, VideoCodecHEVC)
	require.NoError(t, err)
	require.Equal(t, "hevc_amf", enc.Name)

	enc, err = PreferredVideoEncoder(encoders, VideoCodecAV1)
	require.NoError(t, err)
	require.Equal(t, "libsvtav1", enc.Name)

	for codec := VideoCodecH264; codec < EndOfVideoCodec; codec++ {
		for _, enc := range VideoEncodersOfCodec(encoders, codec) {
			require.Equal(t, codec, enc.Codec)
		}
	}

	_, err = PreferredVideoEncoder(encoders[:1], VideoCodecAV1)
	require.ErrorIs(t, err, ErrEncoderNotFound)
	require.ErrorIs(t, err, ErrEncoderInitFailed)
}

func TestSortVideoEncoders(t *testing.T) {
	encoders := []VideoEncoder{
		{Name: "libx264", Codec: VideoCodecH264, Acceleration: AccelerationSoftware},
		{Name: "h264_vaapi", Codec: VideoCodecH264, Acceleration: AccelerationVAAPI},
		{Name: "h264_nvenc", Codec: VideoCodecH264, Acceleration: AccelerationNVENC},
	}
	SortVideoEncoders(encoders)
	require.Equal(t, "h264_nvenc", encoders[0].Name)
	require.Equal(t, "h264_vaapi", encoders[1].Name)
	require.Equal(t, "libx264", encoders[2].Name)
}
