package fakebackend

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/xaionaro-go/screenrec/types"
)

// Container is the parsed content of a file written by Output.
type Container struct {
	Streams   []types.StreamConfig
	Chunks    []types.EncodedChunk
	Finalized bool
}

func ReadContainer(path string) (*Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open '%s': %w", path, err)
	}
	defer f.Close()

	c := &Container{}
	scanner := bufio.NewScanner(f)
	haveHeader := false
	for scanner.Scan() {
		var r record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			return nil, fmt.Errorf("unable to parse '%s': %w", scanner.Text(), err)
		}
		switch r.Type {
		case "header":
			haveHeader = true
			c.Streams = r.Streams
		case "chunk":
			c.Chunks = append(c.Chunks, types.EncodedChunk{
				Tag:      r.Tag,
				PTS:      r.PTS,
				DTS:      r.DTS,
				Duration: r.Duration,
				KeyFrame: r.KeyFrame,
				Data:     make([]byte, r.Size),
			})
		case "trailer":
			c.Finalized = true
		default:
			return nil, fmt.Errorf("unexpected record type '%s'", r.Type)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("unable to read '%s': %w", path, err)
	}
	if !haveHeader {
		return nil, fmt.Errorf("'%s' has no header", path)
	}
	return c, nil
}

func (c *Container) HasStream(tag types.StreamTag) bool {
	for _, s := range c.Streams {
		if s.Tag == tag {
			return true
		}
	}
	return false
}

func (c *Container) StreamChunks(tag types.StreamTag) []types.EncodedChunk {
	var result []types.EncodedChunk
	for _, chunk := range c.Chunks {
		if chunk.Tag == tag {
			result = append(result, chunk)
		}
	}
	return result
}

func (c *Container) Start() time.Duration {
	if len(c.Chunks) == 0 {
		return 0
	}
	start := c.Chunks[0].PTS
	for _, chunk := range c.Chunks {
		start = min(start, chunk.PTS)
	}
	return start
}

func (c *Container) End() time.Duration {
	var end time.Duration
	for _, chunk := range c.Chunks {
		end = max(end, chunk.End())
	}
	return end
}

// Duration is measured from the container start (zero) like players do.
func (c *Container) Duration() time.Duration {
	return c.End()
}
