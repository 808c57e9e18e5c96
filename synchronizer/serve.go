package synchronizer

import (
	"context"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/screenrec/types"
)

// Serve consumes the input queues until all of them are closed, then
// flushes and closes the output channels.
func (s *Synchronizer) Serve(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Serve")
	defer func() { logger.Debugf(ctx, "/Serve: %v", _err) }()
	defer func() {
		close(s.VideoOut)
		if s.AudioOut != nil {
			close(s.AudioOut)
		}
	}()

	ticker := time.NewTicker(max(s.interval/2, time.Millisecond))
	defer ticker.Stop()

	videoC := s.VideoIn.C()
	var audioC [2]<-chan *types.AudioSample
	if len(s.AudioIn) > len(audioC) {
		return fmt.Errorf("at most %d audio inputs are supported, got %d", len(audioC), len(s.AudioIn))
	}
	for idx, q := range s.AudioIn {
		audioC[idx] = q.C()
	}
	inputsOpen := func() bool {
		return videoC != nil || audioC[0] != nil || audioC[1] != nil
	}

	for inputsOpen() {
		var units []types.Unit
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-videoC:
			if !ok {
				videoC = nil
				continue
			}
			units = s.PushVideo(ctx, frame)
		case sample, ok := <-audioC[0]:
			if !ok {
				audioC[0] = nil
				continue
			}
			units = s.PushAudio(ctx, sample)
		case sample, ok := <-audioC[1]:
			if !ok {
				audioC[1] = nil
				continue
			}
			units = s.PushAudio(ctx, sample)
		case <-ticker.C:
			units = s.Tick(ctx, s.Clock.Now())
		}
		if err := s.emit(ctx, units); err != nil {
			return err
		}
	}

	return s.emit(ctx, s.Flush(ctx))
}

func (s *Synchronizer) emit(
	ctx context.Context,
	units []types.Unit,
) error {
	for _, unit := range units {
		out := s.VideoOut
		if unit.Tag == types.StreamTagAudio {
			out = s.AudioOut
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- unit:
		}
	}
	return nil
}
