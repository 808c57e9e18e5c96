package screenrec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/screenrec/types"
)

const partialSuffix = ".partial"

// uniquePath returns path itself if nothing exists there, otherwise the
// first free "<name>-N<ext>".
func uniquePath(path string) (string, error) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for n := 0; n < 10000; n++ {
		candidate := path
		if n > 0 {
			candidate = fmt.Sprintf("%s-%d%s", base, n, ext)
		}
		_, err := os.Stat(candidate)
		switch {
		case errors.Is(err, os.ErrNotExist):
			return candidate, nil
		case err != nil:
			return "", fmt.Errorf("unable to stat '%s': %w: %w", candidate, types.ErrIO, err)
		}
	}
	return "", fmt.Errorf("unable to find a free file name for '%s': %w", path, types.ErrIO)
}

func (s *session) saveReplay(
	ctx context.Context,
	factory types.Factory,
	path string,
) (_ret string, _err error) {
	snapshot := s.replay.Snapshot(ctx).Rebased()
	logger.Debugf(ctx, "replay snapshot: %d chunks, %v", len(snapshot.Chunks), snapshot.Duration())

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("unable to create directory '%s': %w: %w", dir, types.ErrIO, err)
		}
	}
	finalPath, err := uniquePath(path)
	if err != nil {
		return "", err
	}
	tmpPath := finalPath + partialSuffix

	output, err := factory.NewOutput(ctx, tmpPath, s.streams)
	if err != nil {
		if !errors.Is(err, types.ErrIO) {
			err = fmt.Errorf("%w: %w", types.ErrIO, err)
		}
		return "", fmt.Errorf("unable to open '%s': %w", tmpPath, err)
	}
	defer func() {
		if _err != nil {
			if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				logger.Errorf(ctx, "unable to remove '%s': %v", tmpPath, err)
			}
		}
	}()

	var mErr *multierror.Error
	for _, chunk := range snapshot.Chunks {
		if err := output.WriteChunk(ctx, chunk); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to write a %s chunk: %w", chunk.Tag, err))
			break
		}
	}
	if mErr == nil {
		if err := output.Finalize(ctx); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to finalize: %w", err))
		}
	}
	if err := output.Close(); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("unable to close: %w", err))
	}
	if err := mErr.ErrorOrNil(); err != nil {
		if !errors.Is(err, types.ErrIO) {
			err = fmt.Errorf("%w: %w", types.ErrIO, err)
		}
		return "", fmt.Errorf("unable to save the replay to '%s': %w", finalPath, err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("unable to rename '%s' to '%s': %w: %w", tmpPath, finalPath, types.ErrIO, err)
	}
	return finalPath, nil
}
