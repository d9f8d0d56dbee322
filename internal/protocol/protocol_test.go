package protocol

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseGreeting(t *testing.T) {
	v, err := ParseGreeting("OK MPD 0.19.0")
	if err != nil {
		t.Fatalf("parse greeting: %v", err)
	}
	if v != (Version{Major: 0, Minor: 19, Patch: 0}) {
		t.Fatalf("unexpected version: %+v", v)
	}
	if v.String() != "0.19.0" {
		t.Fatalf("unexpected version string: %q", v.String())
	}
}

func TestParseGreetingRejectsGarbage(t *testing.T) {
	for _, line := range []string{"", "OK", "OK MPD", "OK MPD x.y.z", "HELLO 0.19.0"} {
		if _, err := ParseGreeting(line); !errors.Is(err, ErrMalformedGreeting) {
			t.Fatalf("line=%q expected ErrMalformedGreeting, got %v", line, err)
		}
	}
}

func TestVersionAtLeast(t *testing.T) {
	v := Version{Major: 0, Minor: 21, Patch: 3}
	if !v.AtLeast(0, 21, 0) || !v.AtLeast(0, 20, 9) || !v.AtLeast(0, 21, 3) {
		t.Fatalf("expected %s to satisfy lower bounds", v)
	}
	if v.AtLeast(0, 22, 0) || v.AtLeast(1, 0, 0) || v.AtLeast(0, 21, 4) {
		t.Fatalf("expected %s to fail higher bounds", v)
	}
}

func TestParseAck(t *testing.T) {
	perr, err := ParseAck("ACK [5@0] {play} song doesn't exist")
	if err != nil {
		t.Fatalf("parse ack: %v", err)
	}
	if perr.Code != 5 || perr.Message != "song doesn't exist" {
		t.Fatalf("unexpected ack: %+v", perr)
	}
	if perr.Command != "play" || perr.Position != 0 {
		t.Fatalf("unexpected ack command/position: %+v", perr)
	}
}

func TestParseAckListPosition(t *testing.T) {
	perr, err := ParseAck("ACK [50@2] {} No such directory")
	if err != nil {
		t.Fatalf("parse ack: %v", err)
	}
	if perr.Code != AckErrorNoExist || perr.Position != 2 || perr.Command != "" {
		t.Fatalf("unexpected ack: %+v", perr)
	}
	if !IsAck(perr, AckErrorNoExist) {
		t.Fatalf("expected IsAck to match code %d", AckErrorNoExist)
	}
}

func TestParseAckMalformed(t *testing.T) {
	for _, line := range []string{"ACK", "ACK [x@0] {play} nope", "ACK 5 play nope", "ACK [5@0] play"} {
		if _, err := ParseAck(line); !errors.Is(err, ErrMalformedAck) {
			t.Fatalf("line=%q expected ErrMalformedAck, got %v", line, err)
		}
	}
}

func TestClassify(t *testing.T) {
	cases := map[string]LineKind{
		"OK":                       LineOK,
		"list_OK":                  LineListOK,
		"ACK [2@0] {seek} bad":     LineAck,
		"ACK garbage":              LineAck,
		"volume: 50":               LineData,
		"Title: a: b":              LineData,
		"no separator here":        LineMalformed,
		"":                         LineMalformed,
		"OK MPD 0.19.0":            LineMalformed,
		"changed: stored_playlist": LineData,
	}
	for line, want := range cases {
		if got := Classify(line); got != want {
			t.Fatalf("line=%q got=%s want=%s", line, got, want)
		}
	}
	if !LineAck.Terminator() || !LineOK.Terminator() || LineData.Terminator() {
		t.Fatalf("unexpected terminator classification")
	}
}

func TestParseFieldSplitsOnFirstSeparator(t *testing.T) {
	f, ok := ParseField("Title: Part 1: Intro")
	if !ok {
		t.Fatalf("expected field")
	}
	if f.Key != "Title" || f.Value != "Part 1: Intro" {
		t.Fatalf("unexpected field: %+v", f)
	}
	if _, ok := ParseField(": value"); ok {
		t.Fatalf("expected empty key to be rejected")
	}
}

func TestResponseMapLastWriteWins(t *testing.T) {
	resp := Response{Fields: []Field{
		{Key: "volume", Value: "40"},
		{Key: "state", Value: "play"},
		{Key: "volume", Value: "50"},
	}}
	want := map[string]string{"volume": "50", "state": "play"}
	if got := resp.Map(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%v want=%v", got, want)
	}
	if v, ok := resp.Get("volume"); !ok || v != "50" {
		t.Fatalf("unexpected Get volume=%q ok=%v", v, ok)
	}
	if got := resp.Values("volume"); !reflect.DeepEqual(got, []string{"40", "50"}) {
		t.Fatalf("unexpected values: %v", got)
	}
}

func TestResponseRecords(t *testing.T) {
	resp := Response{Fields: []Field{
		{Key: "ignored", Value: "x"},
		{Key: "directory", Value: "music/a"},
		{Key: "Last-Modified", Value: "2015-01-01T00:00:00Z"},
		{Key: "file", Value: "music/b.mp3"},
		{Key: "Title", Value: "B"},
		{Key: "playlist", Value: "music/c.m3u"},
	}}
	recs := resp.Records("file", "directory", "playlist")
	if len(recs) != 3 {
		t.Fatalf("unexpected record count: %d", len(recs))
	}
	if recs[0]["directory"] != "music/a" || recs[0]["Last-Modified"] == "" {
		t.Fatalf("unexpected first record: %v", recs[0])
	}
	if recs[1]["file"] != "music/b.mp3" || recs[1]["Title"] != "B" {
		t.Fatalf("unexpected second record: %v", recs[1])
	}
	if _, ok := recs[0]["ignored"]; ok {
		t.Fatalf("leading field leaked into record: %v", recs[0])
	}
}

func TestEncodeBatch(t *testing.T) {
	if got := EncodeBatch([]string{"status"}); got != "status\n" {
		t.Fatalf("single got=%q", got)
	}
	want := "command_list_ok_begin\nstatus\ncurrentsong\ncommand_list_end\n"
	if got := EncodeBatch([]string{"status", "currentsong"}); got != want {
		t.Fatalf("batch got=%q want=%q", got, want)
	}
}

func TestCommandQuotesArguments(t *testing.T) {
	if got := Command("play"); got != "play" {
		t.Fatalf("got=%q", got)
	}
	if got := Command("addid", `my "song".mp3`, 3); got != `addid "my \"song\".mp3" 3` {
		t.Fatalf("got=%q", got)
	}
	if got := Command("seekcur", 12.5); got != "seekcur 12.5" {
		t.Fatalf("got=%q", got)
	}
	if got := Quote(`a\b`); got != `"a\\b"` {
		t.Fatalf("got=%q", got)
	}
}

func TestValidateCommand(t *testing.T) {
	if err := ValidateCommand("status"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, cmd := range []string{"", "  ", "status\nplay", "play\r"} {
		if err := ValidateCommand(cmd); !errors.Is(err, ErrInvalidCommand) {
			t.Fatalf("cmd=%q expected ErrInvalidCommand, got %v", cmd, err)
		}
	}
}
