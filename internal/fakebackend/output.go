package fakebackend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/screenrec/types"
)

type record struct {
	Type     string               `json:"type"`
	Streams  []types.StreamConfig `json:"streams,omitempty"`
	Tag      types.StreamTag      `json:"tag,omitempty"`
	PTS      time.Duration        `json:"pts,omitempty"`
	DTS      time.Duration        `json:"dts,omitempty"`
	Duration time.Duration        `json:"duration,omitempty"`
	KeyFrame bool                 `json:"key,omitempty"`
	Size     int                  `json:"size,omitempty"`
}

type Output struct {
	*handle
	file         *os.File
	writer       *bufio.Writer
	encoder      *json.Encoder
	lastDTS      map[types.StreamTag]time.Duration
	finalizeOnce sync.Once
	finalizeErr  error
}

var _ types.Output = (*Output)(nil)

func (f *Factory) NewOutput(
	ctx context.Context,
	path string,
	streams []types.StreamConfig,
) (_ret types.Output, _err error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create '%s': %w: %w", path, types.ErrIO, err)
	}
	o := &Output{
		handle:  f.newHandle("output"),
		file:    file,
		writer:  bufio.NewWriter(file),
		lastDTS: map[types.StreamTag]time.Duration{},
	}
	defer func() {
		if _err != nil {
			_ = o.Close()
		}
	}()
	o.encoder = json.NewEncoder(o.writer)

	header := record{Type: "header"}
	for _, s := range streams {
		s.Parameters = nil
		header.Streams = append(header.Streams, s)
		o.lastDTS[s.Tag] = math.MinInt64
	}
	if err := o.encoder.Encode(header); err != nil {
		return nil, fmt.Errorf("unable to write the header: %w: %w", types.ErrIO, err)
	}
	return o, nil
}

func (o *Output) WriteChunk(
	ctx context.Context,
	chunk types.EncodedChunk,
) error {
	lastDTS, ok := o.lastDTS[chunk.Tag]
	if !ok {
		return fmt.Errorf("no %s stream in the output", chunk.Tag)
	}
	if chunk.DTS < lastDTS {
		logger.Errorf(ctx, "received a DTS from the past, ignoring the chunk: %v < %v", chunk.DTS, lastDTS)
		return nil
	}
	o.lastDTS[chunk.Tag] = chunk.DTS
	err := o.encoder.Encode(record{
		Type:     "chunk",
		Tag:      chunk.Tag,
		PTS:      chunk.PTS,
		DTS:      chunk.DTS,
		Duration: chunk.Duration,
		KeyFrame: chunk.KeyFrame,
		Size:     len(chunk.Data),
	})
	if err != nil {
		return fmt.Errorf("unable to write the chunk: %w: %w", types.ErrIO, err)
	}
	return nil
}

func (o *Output) Finalize(ctx context.Context) error {
	o.finalizeOnce.Do(func() {
		if err := o.encoder.Encode(record{Type: "trailer"}); err != nil {
			o.finalizeErr = fmt.Errorf("unable to write the trailer: %w: %w", types.ErrIO, err)
			return
		}
		if err := o.writer.Flush(); err != nil {
			o.finalizeErr = fmt.Errorf("unable to flush: %w: %w", types.ErrIO, err)
		}
	})
	return o.finalizeErr
}

func (o *Output) Close() error {
	defer o.release()
	if err := o.writer.Flush(); err != nil {
		_ = o.file.Close()
		return fmt.Errorf("unable to flush: %w", err)
	}
	return o.file.Close()
}
