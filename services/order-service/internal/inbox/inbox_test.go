package inbox

import "testing"

func TestSeenAfterRecord(t *testing.T) {
	r := NewRecorder()
	if r.Seen("evt-1") {
		t.Fatal("fresh id must not be seen")
	}
	r.Record("evt-1")
	if !r.Seen("evt-1") {
		t.Fatal("recorded id must be seen")
	}
	if r.Seen("evt-2") {
		t.Fatal("unrelated id must not be seen")
	}
}

func TestEmptyIDNeverDeduplicated(t *testing.T) {
	r := NewRecorder()
	r.Record("")
	if r.Seen("") {
		t.Fatal("empty ids cannot be deduplicated and must pass through")
	}
}
