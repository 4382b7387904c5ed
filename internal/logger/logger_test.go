package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"tachyon-launcher/internal/dlevents"
)

func TestNewLoggerWritesConsoleAndFile(t *testing.T) {
	dir := t.TempDir()
	bus := dlevents.NewBroadcaster()
	var console bytes.Buffer

	log, err := New(dir, &console, bus)
	require.NoError(t, err)

	log.Info("hello world")
	require.Contains(t, console.String(), "hello world")

	data, err := os.ReadFile(filepath.Join(dir, "logs", "app.json"))
	require.NoError(t, err)
	require.Contains(t, string(data), "hello world")
}

func TestEventHandlerOnlyPublishesWarnAndAbove(t *testing.T) {
	bus := dlevents.NewBroadcaster()
	ch, unsub := bus.Subscribe(4)
	defer unsub()

	h := NewEventHandler(bus)
	require.False(t, h.Enabled(nil, slog.LevelInfo))
	require.True(t, h.Enabled(nil, slog.LevelWarn))

	require.NoError(t, h.Handle(nil, slog.Record{Level: slog.LevelWarn, Message: "careful"}))

	select {
	case ev := <-ch:
		require.Equal(t, dlevents.KindLog, ev.Kind)
		require.Equal(t, "careful", ev.LogMsg)
	default:
		t.Fatal("expected event on bus")
	}
}
