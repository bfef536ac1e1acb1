package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	scanBufferSize = 64 * 1024
	maxLineSize    = 1024 * 1024

	// DefaultPollInterval is how often Follow checks for new lines.
	DefaultPollInterval = 250 * time.Millisecond
)

// Filter keeps lines containing Match (case-insensitive). An empty filter
// keeps everything.
type Filter struct {
	Match string
}

func (f Filter) keep(line string) bool {
	if f.Match == "" {
		return true
	}
	return strings.Contains(strings.ToLower(line), strings.ToLower(f.Match))
}

// LastLines returns up to limit trailing lines that pass the filter, oldest
// first, plus the end-of-file offset for a later Follow. A missing file
// yields no lines and offset 0.
func LastLines(path string, limit int, filter Filter) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if info, err := file.Stat(); err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	} else if info.IsDir() {
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, fmt.Errorf("seek log file: %w", err)
		}
		return nil, end, nil
	}

	ring := make([]string, limit)
	next, count := 0, 0
	offset, err := scanLines(file, func(line string) {
		if !filter.keep(line) {
			return
		}
		ring[next] = line
		next = (next + 1) % limit
		if count < limit {
			count++
		}
	})
	if err != nil {
		return nil, 0, err
	}

	lines := make([]string, 0, count)
	start := 0
	if count == limit {
		start = next
	}
	for i := 0; i < count; i++ {
		lines = append(lines, ring[(start+i)%limit])
	}
	return lines, offset, nil
}

// Follow emits lines appended after offset until ctx is done. When the file
// shrinks below offset it was rotated, so reading restarts at the top.
func Follow(ctx context.Context, path string, offset int64, poll time.Duration, filter Filter, emit func(string)) error {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		next, err := readFrom(path, offset, filter, emit)
		if err != nil {
			return err
		}
		offset = next

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func readFrom(path string, offset int64, filter Filter, emit func(string)) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset, fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() < offset {
		offset = 0
	}
	if info.Size() == offset {
		return offset, nil
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}
	return scanLines(file, func(line string) {
		if filter.keep(line) {
			emit(line)
		}
	})
}

// scanLines feeds every complete line to fn and returns the offset just past
// the last one. A trailing partial line is left for the next read.
func scanLines(file *os.File, fn func(string)) (int64, error) {
	start, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("determine log offset: %w", err)
	}
	reader := bufio.NewReaderSize(file, scanBufferSize)
	consumed := start
	for {
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			return consumed, nil
		}
		if err != nil {
			return consumed, fmt.Errorf("read log file: %w", err)
		}
		consumed += int64(len(line))
		if len(line) > maxLineSize {
			line = line[:maxLineSize]
		}
		fn(strings.TrimRight(line, "\r\n"))
	}
}
