// Package stream reassembles agent reply frames from the raw byte chunks of
// a server-sent-event response. Transport delivery boundaries do not align
// with logical line boundaries and are never assumed to.
package stream

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/akrtake/PromoReels/internal/domain"
)

// dataPrefix marks a significant SSE line. Everything else (event names,
// ids, blank separator lines) is ignored.
const dataPrefix = "data: "

// Frame is one data-carrying fragment of a streamed agent reply.
type Frame struct {
	Content domain.Content `json:"content"`
	Partial bool           `json:"partial"`
	Author  string         `json:"author"`
}

// Text concatenates the frame's text parts in array order.
func (f *Frame) Text() string {
	return f.Content.Text()
}

// Committed reports whether the frame contributes to the visible reply: it
// must not be an interim increment and must carry at least one text part.
func (f *Frame) Committed() bool {
	return !f.Partial && f.Text() != ""
}

// Reassembler buffers network chunks and extracts complete frames in strict
// arrival order. JSON fragments that fail to parse are dropped silently: a
// fragment only ever parses when the whole object arrived within one logical
// line, and a split object will show up complete on a later line once enough
// bytes have arrived. No cross-line concatenation is attempted.
//
// A Reassembler is owned by a single goroutine and is not safe for
// concurrent use.
type Reassembler struct {
	buf         bytes.Buffer
	maxBuffered int
	logger      *slog.Logger
	dropped     int
	overflows   int
}

// NewReassembler creates a reassembler. maxBuffered bounds how many bytes
// may accumulate without a newline before the buffer is discarded; zero or
// negative means 1 MiB.
func NewReassembler(maxBuffered int, logger *slog.Logger) *Reassembler {
	if maxBuffered <= 0 {
		maxBuffered = 1 << 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reassembler{
		maxBuffered: maxBuffered,
		logger:      logger,
	}
}

// Feed appends a network chunk and returns every frame completed by it, in
// delivery order. Partial frames are returned too; filtering interim
// increments is the caller's accumulation policy.
func (r *Reassembler) Feed(chunk []byte) []*Frame {
	r.buf.Write(chunk)

	var frames []*Frame
	for {
		data := r.buf.Bytes()
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := string(data[:idx])
		r.buf.Next(idx + 1)

		if f := r.parseLine(line); f != nil {
			frames = append(frames, f)
		}
	}

	// Pathological stream guard: a sender that never terminates a line must
	// not grow the buffer without bound.
	if r.buf.Len() > r.maxBuffered {
		r.logger.Warn("stream buffer exceeded limit without a newline, discarding",
			"buffered", r.buf.Len(),
			"limit", r.maxBuffered)
		r.buf.Reset()
		r.overflows++
	}

	return frames
}

// Flush gives any non-newline-terminated remainder one final parse attempt.
// It is called once, when the stream has ended; failure is logged, not
// surfaced.
func (r *Reassembler) Flush() *Frame {
	if r.buf.Len() == 0 {
		return nil
	}
	line := r.buf.String()
	r.buf.Reset()

	f := r.parseLine(line)
	if f == nil {
		r.logger.Debug("discarding unparseable stream remainder", "bytes", len(line))
	}
	return f
}

// Dropped returns the number of data lines whose JSON failed to parse.
func (r *Reassembler) Dropped() int {
	return r.dropped
}

// Overflows returns how many times the buffer limit was breached.
func (r *Reassembler) Overflows() int {
	return r.overflows
}

func (r *Reassembler) parseLine(line string) *Frame {
	line = strings.TrimSuffix(line, "\r")
	if !strings.HasPrefix(line, dataPrefix) {
		return nil
	}

	payload := line[len(dataPrefix):]
	var frame Frame
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		// Expected mid-stream: the transport split a JSON object across
		// delivery chunks and this line carries only part of it.
		r.dropped++
		r.logger.Debug("dropping unparseable stream fragment", "error", err)
		return nil
	}
	return &frame
}
