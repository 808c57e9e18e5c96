//go:build with_libav
// +build with_libav

package libav

import (
	"context"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/screenrec/types"
)

var probeSize = types.Dimensions{Width: 256, Height: 144}

// videoEncoderCandidates are tried in order; only the ones that can
// actually be opened on this machine are reported.
var videoEncoderCandidates = []types.VideoEncoder{
	{Name: "h264_nvenc", Codec: types.VideoCodecH264, Acceleration: types.AccelerationNVENC},
	{Name: "h264_amf", Codec: types.VideoCodecH264, Acceleration: types.AccelerationAMF},
	{Name: "h264_qsv", Codec: types.VideoCodecH264, Acceleration: types.AccelerationQSV},
	{Name: "h264_videotoolbox", Codec: types.VideoCodecH264, Acceleration: types.AccelerationVideoToolbox},
	{Name: "h264_mediacodec", Codec: types.VideoCodecH264, Acceleration: types.AccelerationMediaCodec},
	{Name: "libx264", Codec: types.VideoCodecH264, Acceleration: types.AccelerationSoftware},
	{Name: "libopenh264", Codec: types.VideoCodecH264, Acceleration: types.AccelerationSoftware, Rank: 1},

	{Name: "hevc_nvenc", Codec: types.VideoCodecHEVC, Acceleration: types.AccelerationNVENC},
	{Name: "hevc_amf", Codec: types.VideoCodecHEVC, Acceleration: types.AccelerationAMF},
	{Name: "hevc_qsv", Codec: types.VideoCodecHEVC, Acceleration: types.AccelerationQSV},
	{Name: "hevc_videotoolbox", Codec: types.VideoCodecHEVC, Acceleration: types.AccelerationVideoToolbox},
	{Name: "hevc_mediacodec", Codec: types.VideoCodecHEVC, Acceleration: types.AccelerationMediaCodec},
	{Name: "libx265", Codec: types.VideoCodecHEVC, Acceleration: types.AccelerationSoftware},

	{Name: "av1_nvenc", Codec: types.VideoCodecAV1, Acceleration: types.AccelerationNVENC},
	{Name: "av1_amf", Codec: types.VideoCodecAV1, Acceleration: types.AccelerationAMF},
	{Name: "av1_qsv", Codec: types.VideoCodecAV1, Acceleration: types.AccelerationQSV},
	{Name: "av1_mediacodec", Codec: types.VideoCodecAV1, Acceleration: types.AccelerationMediaCodec},
	{Name: "libsvtav1", Codec: types.VideoCodecAV1, Acceleration: types.AccelerationSoftware},
	{Name: "libaom-av1", Codec: types.VideoCodecAV1, Acceleration: types.AccelerationSoftware, Rank: 1},
	{Name: "librav1e", Codec: types.VideoCodecAV1, Acceleration: types.AccelerationSoftware, Rank: 2},
}

// probeVideoEncoder checks that the encoder is compiled in and that a
// session can be opened (a GPU may be listed but missing).
func probeVideoEncoder(
	ctx context.Context,
	candidate types.VideoEncoder,
) bool {
	if astiav.FindEncoderByName(candidate.Name) == nil {
		logger.Tracef(ctx, "encoder %s is not compiled in", candidate.Name)
		return false
	}
	e, err := NewVideoEncoder(ctx, types.VideoEncoderParams{
		Encoder:          candidate,
		InputSize:        probeSize,
		OutputSize:       probeSize,
		FrameRate:        types.Rational{Num: 30, Den: 1},
		KeyframeInterval: types.DefaultConfig().KeyframeInterval,
		Config: types.EncodeVideoConfig{
			Codec:   candidate.Codec,
			Quality: types.VideoQualityConstantBitrate(1_000_000),
		},
	})
	if err != nil {
		logger.Debugf(ctx, "encoder %s cannot be opened: %v", candidate.Name, err)
		return false
	}
	if err := e.Close(); err != nil {
		logger.Warnf(ctx, "unable to close the probe of %s: %v", candidate.Name, err)
	}
	return true
}

func probeVideoEncoders(ctx context.Context) []types.VideoEncoder {
	var result []types.VideoEncoder
	for _, candidate := range videoEncoderCandidates {
		if probeVideoEncoder(ctx, candidate) {
			result = append(result, candidate)
		}
	}
	types.SortVideoEncoders(result)
	return result
}
