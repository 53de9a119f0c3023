// Package agent manages external Claude Code processes for named agent
// slots: spawning, replacement, cancellation, and decoding of their
// stream-json output.
package agent

import (
	"bytes"
	"encoding/json"
	"strings"
)

// RecordKind distinguishes decoded stream records.
type RecordKind string

const (
	// RecordJSON indicates the line parsed as a JSON object.
	RecordJSON RecordKind = "json"
	// RecordText indicates an opaque non-JSON line passed through for display.
	RecordText RecordKind = "text"
)

// resultType is the discriminator of the terminal record emitted by the
// claude CLI at the end of a turn.
const resultType = "result"

// Record is a single decoded unit from a process's stdout stream.
type Record struct {
	// Kind indicates whether the line parsed as JSON.
	Kind RecordKind
	// Text is the raw line content.
	Text string
	// Fields holds the parsed object when Kind is RecordJSON.
	Fields map[string]interface{}
}

// Type returns the "type" field of a JSON record, or "" for text records.
func (r Record) Type() string {
	if r.Kind != RecordJSON {
		return ""
	}
	t, _ := r.Fields["type"].(string)
	return t
}

// SessionID returns the session identifier carried by a terminal result
// record, or "" if the record is not a result or has no session.
func (r Record) SessionID() string {
	if r.Type() != resultType {
		return ""
	}
	id, _ := r.Fields["session_id"].(string)
	return id
}

// ResultText returns the result payload of a terminal record, or "".
func (r Record) ResultText() string {
	if r.Type() != resultType {
		return ""
	}
	if s, ok := r.Fields["result"].(string); ok {
		return s
	}
	s, _ := r.Fields["content"].(string)
	return s
}

// AssistantText returns the text content of an assistant record. The CLI
// emits assistant messages in several shapes: a plain message string, a
// nested message object with text content blocks, or a bare content field.
func (r Record) AssistantText() string {
	if r.Type() != "assistant" {
		return ""
	}
	if s, ok := r.Fields["message"].(string); ok {
		return s
	}
	if msg, ok := r.Fields["message"].(map[string]interface{}); ok {
		if content, ok := msg["content"].([]interface{}); ok {
			var b strings.Builder
			for _, item := range content {
				block, ok := item.(map[string]interface{})
				if !ok {
					continue
				}
				if t, _ := block["type"].(string); t != "text" {
					continue
				}
				if s, ok := block["text"].(string); ok {
					b.WriteString(s)
				}
			}
			return b.String()
		}
	}
	s, _ := r.Fields["content"].(string)
	return s
}

// Decoder frames newline-delimited JSON records out of a byte stream that
// may split a record across chunks. Each Decoder is owned by exactly one
// process; it is not safe for concurrent use.
type Decoder struct {
	pending []byte
	flushed bool
}

// NewDecoder creates a Decoder with an empty pending buffer.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends a chunk to the rolling buffer and returns all records that
// are now fully terminated. The trailing fragment after the last newline
// stays pending until a later chunk completes it or Flush is called.
func (d *Decoder) Feed(chunk []byte) []Record {
	if len(chunk) == 0 {
		return nil
	}

	d.pending = append(d.pending, chunk...)

	var records []Record
	for {
		idx := bytes.IndexByte(d.pending, '\n')
		if idx < 0 {
			break
		}
		line := d.pending[:idx]
		d.pending = d.pending[idx+1:]

		if rec, ok := decodeLine(line); ok {
			records = append(records, rec)
		}
	}
	return records
}

// Flush performs the final parse attempt on any pending content and clears
// the buffer. It returns false if there was nothing pending or Flush has
// already run. Call once when the owning process closes so trailing output
// without a newline is not lost.
func (d *Decoder) Flush() (Record, bool) {
	if d.flushed {
		return Record{}, false
	}
	d.flushed = true

	line := d.pending
	d.pending = nil
	return decodeLine(line)
}

// Pending returns the number of buffered bytes awaiting a terminator.
func (d *Decoder) Pending() int {
	return len(d.pending)
}

// decodeLine attempts to parse a line as a JSON object. Non-JSON lines are
// tolerated: the claude CLI interleaves human-readable logging with
// structured records, so they pass through unchanged as display text.
// Blank lines produce no record.
func decodeLine(line []byte) (Record, bool) {
	text := strings.TrimRight(string(line), "\r")
	if strings.TrimSpace(text) == "" {
		return Record{}, false
	}

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return Record{Kind: RecordText, Text: text}, true
	}
	return Record{Kind: RecordJSON, Text: text, Fields: fields}, true
}
