package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/facebookincubator/go-belt/tool/experimental/errmon"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/screenrec/replay"
	"github.com/xaionaro-go/screenrec/synchronizer"
	"github.com/xaionaro-go/screenrec/types"
	"github.com/xaionaro-go/xcontext"
	"golang.org/x/sync/errgroup"
)

// Pipeline moves media from the capture inputs through the synchronizer
// to the encoders, the output container and the replay buffer.
//
// The inputs, encoders and output are owned by the caller; the pipeline
// only uses them and never closes them.
type Pipeline struct {
	VideoInput   types.VideoInput
	AudioInputs  []types.AudioInput
	Synchronizer *synchronizer.Synchronizer
	VideoEncoder types.Encoder
	AudioEncoder types.Encoder
	Output       types.Output
	Replay       *replay.Buffer

	// StatsLogInterval enables periodic logging of the counters if non-zero.
	StatsLogInterval time.Duration

	stats commonsStats
}

type Stats struct {
	VideoChunks  uint64
	AudioChunks  uint64
	BytesWritten uint64
	Sync         synchronizer.Stats
}

type commonsStats struct {
	VideoChunks  atomic.Uint64
	AudioChunks  atomic.Uint64
	BytesWritten atomic.Uint64
}

func (p *Pipeline) Stats() Stats {
	return Stats{
		VideoChunks:  p.stats.VideoChunks.Load(),
		AudioChunks:  p.stats.AudioChunks.Load(),
		BytesWritten: p.stats.BytesWritten.Load(),
		Sync:         p.Synchronizer.Stats(),
	}
}

func (p *Pipeline) validate() error {
	if p.VideoInput == nil || p.VideoEncoder == nil || p.Output == nil || p.Synchronizer == nil {
		return fmt.Errorf("the pipeline is not fully configured")
	}
	if len(p.AudioInputs) > 0 && p.AudioEncoder == nil {
		return fmt.Errorf("audio inputs are provided, but there is no audio encoder")
	}
	for _, in := range p.AudioInputs {
		if p.Synchronizer.AudioQueue(in.Origin()) == nil {
			return fmt.Errorf("the synchronizer does not accept audio from %s", in.Origin())
		}
	}
	return nil
}

// Run blocks until the media flow ends: either stopCh is closed and
// everything captured so far is encoded, or a unit fails. In both cases
// the encoders are flushed and the output is finalized before returning.
func (p *Pipeline) Run(
	ctx context.Context,
	stopCh <-chan struct{},
) (_err error) {
	logger.Debugf(ctx, "Run")
	defer func() { logger.Debugf(ctx, "/Run: %v", _err) }()

	if err := p.validate(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	captureCtx, cancelCapture := context.WithCancel(gctx)
	defer cancelCapture()

	observability.Go(ctx, func(ctx context.Context) {
		select {
		case <-stopCh:
			logger.Debugf(ctx, "stop requested")
			cancelCapture()
		case <-captureCtx.Done():
		}
	})

	g.Go(func() error {
		return p.videoProducer(captureCtx)
	})
	for _, in := range p.AudioInputs {
		g.Go(func() error {
			return p.audioProducer(captureCtx, in)
		})
	}
	g.Go(func() error {
		return p.Synchronizer.Serve(gctx)
	})
	g.Go(func() error {
		return p.encodeLoop(gctx)
	})
	if p.StatsLogInterval > 0 {
		observability.Go(captureCtx, func(ctx context.Context) {
			p.logStatsLoop(ctx)
		})
	}

	runErr := g.Wait()
	if runErr != nil {
		errmon.ObserveErrorCtx(ctx, runErr)
	}

	finishErr := p.finish(xcontext.DetachDone(ctx))
	switch {
	case runErr != nil && finishErr != nil:
		logger.Errorf(ctx, "unable to finish the output after a failure: %v", finishErr)
		return runErr
	case runErr != nil:
		return runErr
	default:
		return finishErr
	}
}

func (p *Pipeline) videoProducer(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "videoProducer")
	defer func() { logger.Debugf(ctx, "/videoProducer: %v", _err) }()
	defer p.Synchronizer.VideoIn.Close()

	for {
		frame, err := p.VideoInput.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("unable to read a video frame: %w", err)
		}
		if !p.Synchronizer.VideoIn.Push(frame) {
			logger.Debugf(ctx, "the video queue is full, dropped the oldest frame")
		}
	}
}

func (p *Pipeline) audioProducer(
	ctx context.Context,
	in types.AudioInput,
) (_err error) {
	logger.Debugf(ctx, "audioProducer[%s]", in.Origin())
	defer func() { logger.Debugf(ctx, "/audioProducer[%s]: %v", in.Origin(), _err) }()
	q := p.Synchronizer.AudioQueue(in.Origin())
	defer q.Close()

	for {
		sample, err := in.ReadSamples(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("unable to read %s audio: %w", in.Origin(), err)
		}
		if !q.Push(sample) {
			logger.Debugf(ctx, "the %s audio queue is full, dropped the oldest block", in.Origin())
		}
	}
}

func (p *Pipeline) encodeLoop(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "encodeLoop")
	defer func() { logger.Debugf(ctx, "/encodeLoop: %v", _err) }()

	videoC, audioC := p.Synchronizer.VideoOut, p.Synchronizer.AudioOut
	for videoC != nil || audioC != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case unit, ok := <-videoC:
			if !ok {
				videoC = nil
				continue
			}
			if err := p.encode(ctx, p.VideoEncoder, &unit); err != nil {
				return err
			}
		case unit, ok := <-audioC:
			if !ok {
				audioC = nil
				continue
			}
			if p.AudioEncoder == nil {
				continue
			}
			if err := p.encode(ctx, p.AudioEncoder, &unit); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Pipeline) encode(
	ctx context.Context,
	encoder types.Encoder,
	unit *types.Unit,
) error {
	chunks, err := encoder.Encode(ctx, unit)
	if err != nil {
		return fmt.Errorf("unable to encode a %s unit (pts: %v): %w", unit.Tag, unit.PTS, err)
	}
	return p.writeChunks(ctx, chunks)
}

func (p *Pipeline) writeChunks(
	ctx context.Context,
	chunks []types.EncodedChunk,
) error {
	for _, chunk := range chunks {
		if err := p.Output.WriteChunk(ctx, chunk); err != nil {
			return fmt.Errorf("unable to write a %s chunk: %w", chunk.Tag, err)
		}
		switch chunk.Tag {
		case types.StreamTagVideo:
			p.stats.VideoChunks.Add(1)
		case types.StreamTagAudio:
			p.stats.AudioChunks.Add(1)
		}
		p.stats.BytesWritten.Add(uint64(len(chunk.Data)))
		if p.Replay != nil {
			p.Replay.Append(ctx, chunk)
		}
	}
	return nil
}

// finish flushes the encoders and finalizes the output; it keeps going
// after errors so that as much as possible ends up in the file.
func (p *Pipeline) finish(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "finish")
	defer func() { logger.Debugf(ctx, "/finish: %v", _err) }()

	var mErr *multierror.Error
	for _, encoder := range []types.Encoder{p.VideoEncoder, p.AudioEncoder} {
		if encoder == nil {
			continue
		}
		chunks, err := encoder.Flush(ctx)
		if err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to flush the %s encoder: %w", encoder.StreamConfig().Tag, err))
		}
		if err := p.writeChunks(ctx, chunks); err != nil {
			mErr = multierror.Append(mErr, err)
		}
	}
	if err := p.Output.Finalize(ctx); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("unable to finalize the output: %w", err))
	}
	return mErr.ErrorOrNil()
}

func (p *Pipeline) logStatsLoop(ctx context.Context) {
	t := time.NewTicker(p.StatsLogInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			logger.Debugf(ctx, "pipeline stats: %+v", p.Stats())
		}
	}
}
