package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/screenrec"
	"github.com/xaionaro-go/screenrec/types"
)

type recordFlags struct {
	Settings         string
	Output           string
	FPS              int
	Width            int
	Height           int
	NoAudio          bool
	AudioSource      string
	Microphone       string
	MicrophoneVolume float64
	SystemVolume     float64
	NoCursor         bool
	Debug            bool
	ProcessName      string
	WindowTitle      string
	VideoCodec       string
	Duration         time.Duration
	ReplayWindow     time.Duration
	ReplayEvery      time.Duration
	ReplayDir        string
}

func (f *recordFlags) register(fs *pflag.FlagSet) {
	def := types.DefaultConfig()
	fs.StringVar(&f.Settings, "settings", "", "path to a YAML settings file")
	fs.StringVarP(&f.Output, "output", "o", def.OutputPath, "output MP4 file")
	fs.IntVar(&f.FPS, "fps", def.FrameRate.Num, "frames per second")
	fs.IntVar(&f.Width, "width", 0, "output width (0: the captured size)")
	fs.IntVar(&f.Height, "height", 0, "output height (0: the captured size)")
	fs.BoolVar(&f.NoAudio, "no-audio", false, "do not capture audio")
	fs.StringVar(&f.AudioSource, "audio-source", def.AudioSource.String(), "desktop, microphone or both")
	fs.StringVar(&f.Microphone, "microphone", "", "microphone device ID or name (empty: the default one)")
	fs.Float64Var(&f.MicrophoneVolume, "microphone-volume", def.MicrophoneVolume, "microphone volume in [0, 2]")
	fs.Float64Var(&f.SystemVolume, "system-volume", def.SystemVolume, "desktop audio volume in [0, 2]")
	fs.BoolVar(&f.NoCursor, "no-cursor", false, "do not draw the mouse cursor")
	fs.BoolVar(&f.Debug, "debug", false, "log every resource and the synchronization counters")
	fs.StringVar(&f.ProcessName, "process-name", "", "capture the window of this process")
	fs.StringVar(&f.WindowTitle, "window-title", "", "capture the window with this title")
	fs.StringVar(&f.VideoCodec, "video-codec", def.Video.Codec.String(), "h264, hevc or av1")
	fs.DurationVar(&f.Duration, "duration", 10*time.Second, "how long to record (0: until interrupted)")
	fs.DurationVar(&f.ReplayWindow, "replay-window", def.ReplayWindow, "how much of the recent recording is kept for replays (0: disabled)")
	fs.DurationVar(&f.ReplayEvery, "replay-every", 0, "save a replay with this period (0: never)")
	fs.StringVar(&f.ReplayDir, "replay-dir", ".", "where to save the replays")
}

func (f *recordFlags) config(fs *pflag.FlagSet) (types.Config, types.CaptureTarget, error) {
	b := screenrec.NewConfigBuilder()
	target := types.DisplayTarget("")
	if f.Settings != "" {
		s, err := readSettings(f.Settings)
		if err != nil {
			return types.Config{}, target, err
		}
		if err := s.apply(b); err != nil {
			return types.Config{}, target, err
		}
		if t, ok := s.target(); ok {
			target = t
		}
	}

	changed := func(name string) bool {
		return f.Settings == "" || fs.Changed(name)
	}
	if changed("output") {
		b.OutputPath(f.Output)
	}
	if changed("fps") {
		b.FPS(f.FPS, 1)
	}
	if fs.Changed("width") || fs.Changed("height") {
		b.OutputDimensions(f.Width, f.Height)
	}
	if fs.Changed("no-audio") {
		b.CaptureAudio(!f.NoAudio)
	}
	if changed("audio-source") {
		var src types.AudioSource
		if err := src.UnmarshalText([]byte(f.AudioSource)); err != nil {
			return types.Config{}, target, err
		}
		b.AudioSource(src)
	}
	if fs.Changed("microphone") {
		b.MicrophoneDevice(f.Microphone).CaptureMicrophone(true)
	}
	if changed("microphone-volume") {
		b.MicrophoneVolume(f.MicrophoneVolume)
	}
	if changed("system-volume") {
		b.SystemVolume(f.SystemVolume)
	}
	if fs.Changed("no-cursor") {
		b.CaptureCursor(!f.NoCursor)
	}
	if f.Debug {
		b.DebugMode(true)
	}
	if changed("video-codec") {
		var codec types.VideoCodec
		if err := codec.UnmarshalText([]byte(f.VideoCodec)); err != nil {
			return types.Config{}, target, err
		}
		b.VideoCodec(codec)
	}
	if changed("replay-window") {
		b.ReplayWindow(f.ReplayWindow)
	}
	switch {
	case f.ProcessName != "":
		target = types.ProcessTarget(f.ProcessName)
	case f.WindowTitle != "":
		target = types.WindowTarget(f.WindowTitle)
	}

	cfg, err := b.Build()
	return cfg, target, err
}

func runRecord(ctx context.Context, args []string) (_err error) {
	fs := pflag.NewFlagSet("record", pflag.ExitOnError)
	var flags recordFlags
	flags.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, target, err := flags.config(fs)
	if err != nil {
		return err
	}

	r, err := screenrec.New(ctx, cfg, screenrec.OptionTarget(target))
	if err != nil {
		return fmt.Errorf("unable to create a recorder: %w", err)
	}
	logger.Infof(ctx, "recording %s with %s into '%s'", target, r.VideoEncoder(), cfg.OutputPath)

	if err := r.StartRecording(ctx); err != nil {
		return fmt.Errorf("unable to start recording: %w", err)
	}
	defer func() {
		// the recording must be finalized even if ctx is already cancelled
		stopCtx := context.WithoutCancel(ctx)
		if err := r.StopRecording(stopCtx); err != nil && _err == nil {
			_err = fmt.Errorf("unable to stop recording: %w", err)
		}
		stats := r.Stats(stopCtx)
		logger.Infof(ctx, "recorded %d video and %d audio chunks, %d bytes", stats.Pipeline.VideoChunks, stats.Pipeline.AudioChunks, stats.Pipeline.BytesWritten)
		if err := r.Close(stopCtx); err != nil {
			logger.Errorf(ctx, "unable to close the recorder: %v", err)
		}
	}()

	var deadline <-chan time.Time
	if flags.Duration > 0 {
		timer := time.NewTimer(flags.Duration)
		defer timer.Stop()
		deadline = timer.C
	}
	var replayTick <-chan time.Time
	if flags.ReplayEvery > 0 {
		ticker := time.NewTicker(flags.ReplayEvery)
		defer ticker.Stop()
		replayTick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			logger.Infof(ctx, "interrupted")
			return nil
		case <-deadline:
			return nil
		case <-replayTick:
			if state := r.State(ctx); state != screenrec.StateRecording {
				return fmt.Errorf("the recorder is %s: %w", state, r.Err(ctx))
			}
			path := filepath.Join(flags.ReplayDir, fmt.Sprintf("replay-%s.mp4", r.Stats(ctx).SessionID))
			written, err := r.SaveReplay(ctx, path)
			if err != nil {
				logger.Errorf(ctx, "unable to save a replay: %v", err)
				continue
			}
			fmt.Println(written)
		}
	}
}
