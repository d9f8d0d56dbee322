package main

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/danmuck/mpdctl/internal/testutil/mpdtest"
	"github.com/danmuck/mpdctl/internal/testutil/testlog"
)

func TestFlagsOverrideConfig(t *testing.T) {
	testlog.Start(t)
	t.Setenv("MPD_HOST", "")
	t.Setenv("MPD_PORT", "")
	o, fs, err := parseFlags([]string{"--config", "", "-a", "/run/mpd/socket", "--listen", ":9700"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg, err := loadConfig(o, fs)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address != "/run/mpd/socket" || cfg.HTTP.Listen != ":9700" || o.name != "mpdwatch" {
		t.Fatalf("unexpected config: address=%q listen=%q name=%q", cfg.Address, cfg.HTTP.Listen, o.name)
	}
}

func freePort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func TestServeEndsWhenConnectionIsLost(t *testing.T) {
	testlog.Start(t)
	t.Setenv("MPD_HOST", "")
	t.Setenv("MPD_PORT", "")
	srv := mpdtest.NewServer(mpdtest.Static(map[string][]string{"status": {"state: stop"}}))
	addr := srv.ListenTCP(t)

	listen := freePort(t)
	o, fs, err := parseFlags([]string{"--config", "", "-a", addr, "-l", listen})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg, err := loadConfig(o, fs)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- serve(context.Background(), o.name, cfg) }()

	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err := http.Get("http://" + listen + "/status")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("daemon never served /status: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	srv.Close()
	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected connection loss error")
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("serve did not return after connection loss")
	}
}
