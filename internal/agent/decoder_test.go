package agent

import (
	"reflect"
	"testing"
)

func TestDecoderSingleLine(t *testing.T) {
	d := NewDecoder()

	records := d.Feed([]byte(`{"type":"assistant","message":"hello"}` + "\n"))
	if len(records) != 1 {
		t.Fatalf("Feed returned %d records, want 1", len(records))
	}
	if records[0].Kind != RecordJSON {
		t.Errorf("Kind = %q, want %q", records[0].Kind, RecordJSON)
	}
	if records[0].Type() != "assistant" {
		t.Errorf("Type() = %q, want %q", records[0].Type(), "assistant")
	}
}

func TestDecoderSplitAcrossChunks(t *testing.T) {
	d := NewDecoder()

	if records := d.Feed([]byte(`{"type":"result","sess`)); records != nil {
		t.Fatalf("incomplete fragment produced records: %v", records)
	}
	if d.Pending() == 0 {
		t.Error("expected pending bytes after partial chunk")
	}

	records := d.Feed([]byte(`ion_id":"s1"}` + "\n"))
	if len(records) != 1 {
		t.Fatalf("Feed returned %d records, want 1", len(records))
	}
	if got := records[0].SessionID(); got != "s1" {
		t.Errorf("SessionID() = %q, want %q", got, "s1")
	}
	if d.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", d.Pending())
	}
}

func TestDecoderNonJSONPassthrough(t *testing.T) {
	d := NewDecoder()

	records := d.Feed([]byte("starting up...\n{\"type\":\"system\"}\n"))
	if len(records) != 2 {
		t.Fatalf("Feed returned %d records, want 2", len(records))
	}
	if records[0].Kind != RecordText || records[0].Text != "starting up..." {
		t.Errorf("record 0 = %+v, want opaque text", records[0])
	}
	if records[1].Kind != RecordJSON {
		t.Errorf("record 1 kind = %q, want json", records[1].Kind)
	}
}

func TestDecoderBlankLinesSkipped(t *testing.T) {
	d := NewDecoder()

	if records := d.Feed([]byte("\n\r\n  \n")); records != nil {
		t.Errorf("blank lines produced records: %v", records)
	}
}

func TestDecoderFlushTrailing(t *testing.T) {
	d := NewDecoder()

	d.Feed([]byte(`{"type":"result","session_id":"s9"}`)) // no trailing newline
	rec, ok := d.Flush()
	if !ok {
		t.Fatal("Flush returned no record for pending content")
	}
	if got := rec.SessionID(); got != "s9" {
		t.Errorf("SessionID() = %q, want %q", got, "s9")
	}

	// Second flush is a no-op.
	if _, ok := d.Flush(); ok {
		t.Error("second Flush returned a record")
	}
}

func TestDecoderFlushEmpty(t *testing.T) {
	d := NewDecoder()
	if _, ok := d.Flush(); ok {
		t.Error("Flush on empty decoder returned a record")
	}
}

// TestDecoderChunkSplitInvariant verifies that splitting the input at any
// chunk boundary yields the same ordered records as one delivery.
func TestDecoderChunkSplitInvariant(t *testing.T) {
	input := []byte(`log line one` + "\n" +
		`{"type":"system","message":"init"}` + "\n" +
		`{"type":"assistant","message":"working"}` + "\n" +
		`not json {{{` + "\n" +
		`{"type":"result","session_id":"abc","result":"done"}` + "\n")

	decodeAll := func(chunks [][]byte) []Record {
		d := NewDecoder()
		var all []Record
		for _, c := range chunks {
			all = append(all, d.Feed(c)...)
		}
		if rec, ok := d.Flush(); ok {
			all = append(all, rec)
		}
		return all
	}

	want := decodeAll([][]byte{input})

	for split := 1; split < len(input); split++ {
		got := decodeAll([][]byte{input[:split], input[split:]})
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("split at %d: got %d records, want %d: %+v vs %+v",
				split, len(got), len(want), got, want)
		}
	}
}

func TestRecordResultText(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"result field", `{"type":"result","result":"all done"}`, "all done"},
		{"content fallback", `{"type":"result","content":"finished"}`, "finished"},
		{"non-result", `{"type":"assistant","result":"x"}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder()
			records := d.Feed([]byte(tt.line + "\n"))
			if len(records) != 1 {
				t.Fatalf("got %d records, want 1", len(records))
			}
			if got := records[0].ResultText(); got != tt.want {
				t.Errorf("ResultText() = %q, want %q", got, tt.want)
			}
		})
	}
}
