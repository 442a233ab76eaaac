package main

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

// colorizeOverall wraps the aggregate status in a color suited to its
// severity when writing to a terminal.
func colorizeOverall(status string, colorize bool) string {
	if !colorize {
		return status
	}
	switch status {
	case "completed":
		return ansiGreen + status + ansiReset
	case "failed":
		return ansiRed + status + ansiReset
	case "cancelled", "partially_completed":
		return ansiYellow + status + ansiReset
	case "processing", "queued":
		return ansiBlue + status + ansiReset
	default:
		return status
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
