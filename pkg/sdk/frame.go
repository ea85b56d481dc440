package sdk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const (
	dataPrefix     = "data: "
	doneSentinel   = "[DONE]"
	frameDelimiter = "\n\n"

	// DefaultMaxFrameBytes bounds the bytes buffered while waiting for a frame delimiter
	DefaultMaxFrameBytes = 1 << 20
)

// Decoder turns a chunked event stream into StreamEvents. Units are separated by a blank
// line; only units starting with "data: " carry payloads. Bytes may arrive split at any
// boundary, including inside a multi-byte character.
type Decoder struct {
	buf      []byte
	scanned  int // Bytes of buf already searched for a delimiter
	maxBytes int
	dropped  int
}

// NewDecoder creates a decoder. A maxBytes of zero or less disables the buffer limit.
func NewDecoder(maxBytes int) *Decoder {
	return &Decoder{maxBytes: maxBytes}
}

// Feed appends p to the buffer and returns every event completed by it, in stream order.
// ErrFrameTooLarge is returned alongside any events decoded before the overflow.
func (d *Decoder) Feed(p []byte) ([]StreamEvent, error) {
	d.buf = append(d.buf, p...)

	var events []StreamEvent
	consumed := 0
	from := d.scanned
	for {
		i := bytes.Index(d.buf[from:], []byte(frameDelimiter))
		if i < 0 {
			break
		}

		end := from + i
		unit := d.buf[consumed:end]
		consumed = end + len(frameDelimiter)
		from = consumed

		if ev, ok := d.decodeUnit(unit); ok {
			events = append(events, ev)
		}
	}

	// Keep only the incomplete tail
	if consumed > 0 {
		d.buf = append(d.buf[:0], d.buf[consumed:]...)
	}

	// The tail holds no delimiter, except possibly one split across the next read
	d.scanned = max(0, len(d.buf)-(len(frameDelimiter)-1))

	if d.maxBytes > 0 && len(d.buf) > d.maxBytes {
		d.buf = nil
		d.scanned = 0
		return events, ErrFrameTooLarge
	}

	return events, nil
}

// Flush decodes whatever is left in the buffer as a final unit. It is called once the
// stream has ended normally, for servers that omit the trailing blank line.
func (d *Decoder) Flush() []StreamEvent {
	unit := d.buf
	d.buf = nil
	d.scanned = 0

	if ev, ok := d.decodeUnit(unit); ok {
		return []StreamEvent{ev}
	}
	return nil
}

// Dropped returns how many data units were discarded because they failed to decode
func (d *Decoder) Dropped() int {
	return d.dropped
}

// decodeUnit parses a single delimited unit
func (d *Decoder) decodeUnit(unit []byte) (StreamEvent, bool) {
	text := strings.TrimSpace(string(unit))
	if !strings.HasPrefix(text, dataPrefix) {
		return StreamEvent{}, false
	}

	payload := text[len(dataPrefix):]
	if payload == doneSentinel {
		return StreamEvent{}, false
	}

	var ev StreamEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil || !ev.Type.Valid() {
		d.dropped++
		return StreamEvent{}, false
	}

	return ev, true
}

// WriteEvent encodes a single event frame onto w
func WriteEvent(w io.Writer, ev StreamEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode stream event: %w", err)
	}

	_, err = fmt.Fprintf(w, "%s%s%s", dataPrefix, b, frameDelimiter)
	return err
}

// WriteDone writes the stream terminator frame onto w
func WriteDone(w io.Writer) error {
	_, err := io.WriteString(w, dataPrefix+doneSentinel+frameDelimiter)
	return err
}
