package config

import (
	"log/slog"
	"os"
)

// InitLogger instala um logger JSON como default; em debug inclui arquivo:linha.
func InitLogger(level slog.Level) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	})
	l := slog.New(h)
	slog.SetDefault(l) // permite usar slog.Info/Error globalmente
	return l
}
