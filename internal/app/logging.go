package app

import (
	"io"

	"github.com/charmbracelet/log"
)

// loggerOrDiscard returns l, or a logger that drops everything when l is nil.
func loggerOrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return log.New(io.Discard)
	}
	return l
}
