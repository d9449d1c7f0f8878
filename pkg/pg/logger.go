package pg

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
)

// gooseLogger routes goose output through slog.
type gooseLogger struct {
	log *slog.Logger
}

func newGooseLogger(log *slog.Logger) goose.Logger {
	return &gooseLogger{log: log}
}

func (a *gooseLogger) Fatalf(format string, v ...any) {
	a.log.ErrorContext(context.Background(), fmt.Sprintf(format, v...))
}

func (a *gooseLogger) Printf(format string, v ...any) {
	a.log.InfoContext(context.Background(), fmt.Sprintf(format, v...))
}
