// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/rs/zerolog"

	"github.com/Bederf/aimthelaw-sub002/internal/logging"
)

// MaxFrameSize is the maximum allowed size for a single SSE frame (64KB).
const MaxFrameSize = 64 * 1024

// =============================================================================
// DECODER
// =============================================================================

// Decoder is a lazy, pull-based reader over one logical stream. It is
// non-restartable: once a terminal chunk has been returned the sequence is
// exhausted.
type Decoder struct {
	reader    *bufio.Reader
	exhausted bool
	log       zerolog.Logger
}

// NewDecoder creates a decoder over a response body.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		reader: bufio.NewReader(r),
		log:    logging.For("stream"),
	}
}

// Next returns the next chunk. The second return is false once the sequence
// is exhausted. Next never returns an error: transport failures are folded
// into a final chunk with Error set and Done true.
func (d *Decoder) Next() (Chunk, bool) {
	if d.exhausted {
		return Chunk{}, false
	}

	for {
		data, err := d.readFrame()
		if err != nil {
			// Any transport failure, including a stream that cuts off
			// before a terminal frame, becomes one terminal error chunk.
			d.exhausted = true
			if err == io.EOF {
				return errorChunk("stream ended unexpectedly"), true
			}
			return errorChunk(err.Error()), true
		}

		chunk, ok := d.parseFrame(data)
		if !ok {
			continue // malformed frame: logged and skipped
		}

		if chunk.IsControl() {
			// Control frames are terminal single-shot messages.
			chunk.Done = true
		}
		if chunk.IsTerminal() {
			d.exhausted = true
		}
		return chunk, true
	}
}

// readFrame reads one SSE frame and returns its data payload.
// Frames are "data: <json>" lines separated by a blank line.
func (d *Decoder) readFrame() ([]byte, error) {
	var dataLines [][]byte
	var size int

	for {
		line, err := d.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF && len(dataLines) > 0 {
				// Final frame may be missing its trailing blank line.
				return bytes.Join(dataLines, []byte("\n")), nil
			}
			return nil, err
		}

		line = bytes.TrimRight(line, "\r\n")

		// Blank line ends the frame.
		if len(line) == 0 {
			if len(dataLines) > 0 {
				return bytes.Join(dataLines, []byte("\n")), nil
			}
			continue
		}

		if bytes.HasPrefix(line, []byte("data:")) {
			data := bytes.TrimSpace(line[5:])
			size += len(data)
			if size > MaxFrameSize {
				return nil, io.ErrUnexpectedEOF
			}
			dataLines = append(dataLines, data)
		}
		// Other SSE fields (id:, event:, retry:, comments) are ignored.
	}
}

// parseFrame unmarshals a frame payload. Malformed payloads are skipped
// without terminating the stream.
func (d *Decoder) parseFrame(data []byte) (Chunk, bool) {
	var chunk Chunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		d.log.Warn().Err(err).Int("bytes", len(data)).Msg("skipping malformed frame")
		return Chunk{}, false
	}
	return chunk, true
}

// =============================================================================
// CHANNEL API
// =============================================================================

// Decode reads the stream in a goroutine and delivers chunks on the returned
// channel in wire order. The channel closes after the terminal chunk.
// Cancellation is cooperative: when ctx is done the decoder stops reading and
// delivers a final error chunk.
func Decode(ctx context.Context, r io.Reader) <-chan Chunk {
	out := make(chan Chunk, 16)

	go func() {
		defer close(out)

		decoder := NewDecoder(r)
		for {
			select {
			case <-ctx.Done():
				out <- errorChunk(ctx.Err().Error())
				return
			default:
			}

			chunk, ok := decoder.Next()
			if !ok {
				return
			}

			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}

			if chunk.IsTerminal() {
				return
			}
		}
	}()

	return out
}

// Collect drains a chunk channel and accumulates content, returning the full
// text, the sources seen, and the error message from a terminal error chunk
// (empty when the stream completed cleanly).
func Collect(chunks <-chan Chunk) (string, []Source, string) {
	var content bytes.Buffer
	var sources []Source
	var errMsg string

	for chunk := range chunks {
		content.WriteString(chunk.Content)
		sources = append(sources, chunk.Sources...)
		if chunk.Error != "" {
			errMsg = chunk.Error
		}
	}

	return content.String(), sources, errMsg
}
