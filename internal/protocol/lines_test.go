package protocol

import (
	"reflect"
	"testing"
)

const sampleStream = "OK MPD 0.19.0\nvolume: 50\nstate: play\nOK\nchanged: playlist\nchanged: player\nOK\nACK [5@0] {play} song doesn't exist\n"

func feedAll(chunks []string) []string {
	var r LineReassembler
	var out []string
	for _, c := range chunks {
		out = append(out, r.Feed(c)...)
	}
	return out
}

func TestLineReassemblerSplitInvariance(t *testing.T) {
	want := feedAll([]string{sampleStream})
	if len(want) != 8 {
		t.Fatalf("unexpected baseline line count: %d", len(want))
	}
	for i := 0; i <= len(sampleStream); i++ {
		got := feedAll([]string{sampleStream[:i], sampleStream[i:]})
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("split at %d: got=%q want=%q", i, got, want)
		}
	}
	for i := 0; i <= len(sampleStream); i++ {
		for j := i; j <= len(sampleStream); j++ {
			got := feedAll([]string{sampleStream[:i], sampleStream[i:j], sampleStream[j:]})
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("split at %d,%d: got=%q want=%q", i, j, got, want)
			}
		}
	}
}

func TestLineReassemblerByteAtATime(t *testing.T) {
	chunks := make([]string, 0, len(sampleStream))
	for i := 0; i < len(sampleStream); i++ {
		chunks = append(chunks, sampleStream[i:i+1])
	}
	want := feedAll([]string{sampleStream})
	if got := feedAll(chunks); !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%q want=%q", got, want)
	}
}

func TestLineReassemblerPendingTail(t *testing.T) {
	var r LineReassembler
	if lines := r.Feed("volume: 5"); len(lines) != 0 {
		t.Fatalf("unexpected lines: %q", lines)
	}
	if r.Pending() != "volume: 5" {
		t.Fatalf("unexpected tail: %q", r.Pending())
	}
	lines := r.Feed("0\nOK\n")
	if !reflect.DeepEqual(lines, []string{"volume: 50", "OK"}) {
		t.Fatalf("unexpected lines: %q", lines)
	}
	if r.Pending() != "" {
		t.Fatalf("expected empty tail after terminator, got %q", r.Pending())
	}
	r.Feed("partial")
	r.Reset()
	if r.Pending() != "" {
		t.Fatalf("expected reset tail")
	}
}
