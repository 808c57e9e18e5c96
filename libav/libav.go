//go:build with_libav
// +build with_libav

// Package libav implements screen capture, encoding and MP4 muxing on top
// of FFmpeg (through go-astiav).
package libav

import (
	"context"
	"strings"
	"sync"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt/tool/logger"
)

var initOnce sync.Once

func initLibav(ctx context.Context) {
	initOnce.Do(func() {
		astiav.RegisterAllDevices()
		astiav.SetLogLevel(logLevelToAstiav(logger.FromCtx(ctx).Level()))
		l := logger.FromCtx(ctx)
		astiav.SetLogCallback(func(c astiav.Classer, level astiav.LogLevel, format, msg string) {
			msg = strings.TrimSpace(msg)
			if msg == "" {
				return
			}
			l.Logf(logLevelFromAstiav(level), "libav: %s", msg)
		})
	})
}

func logLevelToAstiav(level logger.Level) astiav.LogLevel {
	switch level {
	case logger.LevelTrace:
		return astiav.LogLevelTrace
	case logger.LevelDebug:
		return astiav.LogLevelVerbose
	case logger.LevelInfo:
		return astiav.LogLevelInfo
	case logger.LevelWarning:
		return astiav.LogLevelWarning
	case logger.LevelError:
		return astiav.LogLevelError
	case logger.LevelPanic, logger.LevelFatal:
		return astiav.LogLevelFatal
	}
	return astiav.LogLevelQuiet
}

func logLevelFromAstiav(level astiav.LogLevel) logger.Level {
	switch {
	case level <= astiav.LogLevelFatal:
		return logger.LevelError
	case level <= astiav.LogLevelError:
		return logger.LevelError
	case level <= astiav.LogLevelWarning:
		return logger.LevelWarning
	case level <= astiav.LogLevelInfo:
		return logger.LevelInfo
	case level <= astiav.LogLevelVerbose:
		return logger.LevelDebug
	}
	return logger.LevelTrace
}
