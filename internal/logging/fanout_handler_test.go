package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestNewFanoutHandlerNilHandlers(t *testing.T) {
	h := newFanoutHandler(nil, nil)
	if _, ok := h.(NoopHandler); !ok {
		t.Errorf("expected NoopHandler for all nil handlers, got %T", h)
	}
}

func TestNewFanoutHandlerSingleHandlerUnwrapped(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)

	h := newFanoutHandler(nil, inner)
	if h != inner {
		t.Error("expected single non-nil handler to be returned unwrapped")
	}
}

func TestFanoutHandlerEnabledIfAnyAccepts(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h := newFanoutHandler(
		slog.NewJSONHandler(&buf1, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&buf2, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected fanout to be enabled for debug")
	}
}

func TestFanoutHandlerRespectsPerHandlerLevel(t *testing.T) {
	var infoBuf, debugBuf bytes.Buffer
	h := newFanoutHandler(
		slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	logger := slog.New(h)

	logger.Debug("debug only message")

	if infoBuf.Len() != 0 {
		t.Error("info handler should not receive debug messages")
	}
	if debugBuf.Len() == 0 {
		t.Error("debug handler should receive debug messages")
	}
}

func TestFanoutHandlerCarriesAttrsAndGroups(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h := newFanoutHandler(slog.NewJSONHandler(&buf1, nil), slog.NewJSONHandler(&buf2, nil))

	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("key", "value")}).WithGroup("delivery"))
	logger.Info("test", slog.Int("attempt", 2))

	for name, buf := range map[string]*bytes.Buffer{"buf1": &buf1, "buf2": &buf2} {
		if !bytes.Contains(buf.Bytes(), []byte(`"key":"value"`)) {
			t.Errorf("expected key attribute in %s: %s", name, buf.String())
		}
		if !bytes.Contains(buf.Bytes(), []byte(`"delivery":{"attempt":2}`)) {
			t.Errorf("expected grouped attribute in %s: %s", name, buf.String())
		}
	}
}
