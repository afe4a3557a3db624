package logger

import (
	"io"
	"log/slog"
	"os"
)

// New создаёт текстовый slog-логгер. debug включает уровень Debug.
func New(w io.Writer, debug bool) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

// Init создаёт логгер и делает его логгером по умолчанию.
func Init(debug bool) *slog.Logger {
	l := New(os.Stdout, debug || os.Getenv("DEBUG") == "true")
	slog.SetDefault(l)
	return l
}

// OrDefault возвращает l или slog.Default(), если l == nil.
func OrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
