package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/nxadm/tail"
)

// LogTailOptions configures the game log viewer.
type LogTailOptions struct {
	LogPath string
	Follow  bool // keep streaming new lines
	Lines   int  // backlog lines to print first (0 = all in non-follow mode)
	NoColor bool // respect --no-color
}

// TailLog prints the game log, optionally following it. Follow mode uses
// github.com/nxadm/tail so log rotation by the client is handled.
func TailLog(ctx context.Context, out io.Writer, opts LogTailOptions) error {
	if opts.Follow {
		// Wait for the client to create the log file (up to 5 seconds)
		for i := 0; i < 50; i++ {
			if _, err := os.Stat(opts.LogPath); err == nil {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(100 * time.Millisecond):
			}
		}
	}

	f, err := os.Open(opts.LogPath)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	if err := printRecentLines(f, out, opts.Lines, opts.NoColor); err != nil {
		f.Close()
		return err
	}
	f.Close()

	if !opts.Follow {
		return nil
	}

	t, err := tail.TailFile(opts.LogPath, tail.Config{
		Follow:    true,
		ReOpen:    true, // handle rotation
		MustExist: false,
		Poll:      false, // inotify/kqueue
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
	})
	if err != nil {
		return fmt.Errorf("tail log: %w", err)
	}
	defer t.Cleanup()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line := <-t.Lines:
			if line == nil {
				return nil
			}
			if line.Err != nil {
				return line.Err
			}
			printLogLine(out, line.Text, opts.NoColor)
		}
	}
}

// printRecentLines emits the last maxLines of the file so the viewer isn't
// blank on start. maxLines <= 0 prints the whole file.
func printRecentLines(f *os.File, out io.Writer, maxLines int, noColor bool) error {
	scanner := bufio.NewScanner(f)
	// allow long log lines up to 512 KiB
	bufSize := 512 * 1024
	scanner.Buffer(make([]byte, bufSize), bufSize)

	var buf []string
	for scanner.Scan() {
		if maxLines > 0 && len(buf) == maxLines {
			copy(buf, buf[1:])
			buf[len(buf)-1] = scanner.Text()
		} else {
			buf = append(buf, scanner.Text())
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	for _, line := range buf {
		printLogLine(out, line, noColor)
	}
	return nil
}

func printLogLine(out io.Writer, line string, noColor bool) {
	if !noColor {
		line = colorizeLogLine(line)
	}
	fmt.Fprintln(out, line)
}

// colorizeLogLine applies ANSI color based on log level
func colorizeLogLine(line string) string {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "error") || strings.Contains(lower, "fatal") || strings.Contains(lower, "severe"):
		return "\033[31m" + line + "\033[0m"
	case strings.Contains(lower, "warn") || strings.Contains(lower, "warning"):
		return "\033[33m" + line + "\033[0m"
	case strings.Contains(lower, "info"):
		return "\033[32m" + line + "\033[0m"
	case strings.Contains(lower, "debug") || strings.Contains(lower, "trace"):
		return "\033[90m" + line + "\033[0m"
	}
	return line
}
