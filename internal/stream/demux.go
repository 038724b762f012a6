package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	eventPrefix = "event:"
	dataPrefix  = "data:"
)

var recordSeparator = []byte("\n\n")

// ParseRecord parses a single SSE record (without its trailing blank line).
func ParseRecord(record []byte) Result {
	text := strings.Trim(strings.ReplaceAll(string(record), "\r\n", "\n"), "\n")

	head, rest, found := strings.Cut(text, "\n")
	if !strings.HasPrefix(head, eventPrefix) {
		return Result{Err: &InvalidChunkFormatError{Record: text, Reason: `missing "event:" line`}}
	}
	if !found || !strings.HasPrefix(rest, dataPrefix) {
		return Result{Err: &InvalidChunkFormatError{Record: text, Reason: `missing "data:" line`}}
	}
	if strings.Contains(rest, "\n") {
		return Result{Err: &InvalidChunkStructureError{Record: text, Reason: "unexpected extra lines after data"}}
	}

	name := strings.TrimSpace(strings.TrimPrefix(head, eventPrefix))
	if name == "" {
		return Result{Err: &InvalidChunkStructureError{Record: text, Reason: "empty event name"}}
	}

	payload := strings.TrimSpace(strings.TrimPrefix(rest, dataPrefix))

	var decoded any
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return Result{Err: &JSONDecodeError{Record: text, Err: err}}
	}

	data, ok := decoded.(map[string]any)
	if !ok {
		return Result{Err: &InvalidChunkStructureError{
			Record: text,
			Reason: fmt.Sprintf("data is %T, want a JSON object", decoded),
		}}
	}

	return Result{Event: &Event{Name: name, Data: data, Raw: json.RawMessage(payload)}}
}

// Demuxer splits a byte stream into SSE records. Chunks may end anywhere; an
// incomplete trailing record is held until the next Feed or Flush.
type Demuxer struct {
	buf []byte
}

// Feed appends chunk and returns the results of every record it completes.
func (d *Demuxer) Feed(chunk []byte) []Result {
	d.buf = append(d.buf, chunk...)
	d.buf = bytes.ReplaceAll(d.buf, []byte("\r\n"), []byte("\n"))

	var results []Result
	for {
		i := bytes.Index(d.buf, recordSeparator)
		if i < 0 {
			break
		}

		record := d.buf[:i]
		d.buf = d.buf[i+len(recordSeparator):]

		if res, ok := parse(record); ok {
			results = append(results, res)
		}
	}

	// compact so the held tail does not pin the whole history
	d.buf = append([]byte(nil), d.buf...)

	return results
}

// Flush parses whatever is left in the buffer as a final record.
func (d *Demuxer) Flush() []Result {
	record := d.buf
	d.buf = nil

	if res, ok := parse(record); ok {
		return []Result{res}
	}

	return nil
}

// parse skips blank records and comment-only keep-alives.
func parse(record []byte) (Result, bool) {
	trimmed := bytes.TrimSpace(record)
	if len(trimmed) == 0 {
		return Result{}, false
	}

	comment := true
	for _, line := range bytes.Split(trimmed, []byte("\n")) {
		if !bytes.HasPrefix(bytes.TrimSpace(line), []byte(":")) {
			comment = false
			break
		}
	}
	if comment {
		return Result{}, false
	}

	return ParseRecord(record), true
}

// Decode reads r until EOF and delivers every record to h in order. If h
// returns ErrStop, Decode returns nil; any other handler error is returned
// as is.
func Decode(r io.Reader, h Handler) error {
	var d Demuxer
	buf := make([]byte, 32*1024)

	deliver := func(results []Result) error {
		for _, res := range results {
			if err := h(res); err != nil {
				return err
			}
		}
		return nil
	}

	for {
		n, err := r.Read(buf)
		if n > 0 {
			if herr := deliver(d.Feed(buf[:n])); herr != nil {
				return stopped(herr)
			}
		}

		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read stream: %w", err)
		}
	}

	return stopped(deliver(d.Flush()))
}

func stopped(err error) error {
	if errors.Is(err, ErrStop) {
		return nil
	}
	return err
}
