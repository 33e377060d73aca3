package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// LogRotator wraps a log file and truncates it to the newest maxLines lines
// whenever twice that many lines have been written.
type LogRotator struct {
	writer   io.Writer
	buffer   *RingBuffer
	filePath string
	mutex    sync.Mutex
}

// NewLogRotator creates a new LogRotator. A non-positive maxLines disables rotation.
func NewLogRotator(writer io.Writer, maxLines int, filePath string) *LogRotator {
	rotator := &LogRotator{
		writer:   writer,
		filePath: filePath,
	}

	if maxLines > 0 {
		rotator.buffer = NewRingBuffer(maxLines)
	}

	return rotator
}

// Write implements io.Writer and maintains the line buffer.
func (w *LogRotator) Write(p []byte) (int, error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	n, err := w.writer.Write(p)
	if err != nil || w.buffer == nil {
		return n, err
	}

	for line := range strings.SplitSeq(strings.TrimRight(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}

		w.buffer.Add(line)

		if w.buffer.totalSeen >= w.buffer.capacity*2 {
			if err := w.rotate(); err != nil {
				return n, fmt.Errorf("failed to rotate log file: %w", err)
			}

			w.buffer.totalSeen = w.buffer.size
		}
	}

	return n, nil
}

// rotate replaces the log file with the buffered lines.
func (w *LogRotator) rotate() error {
	lines := w.buffer.Lines()
	if len(lines) == 0 {
		return nil
	}

	temp, err := os.CreateTemp(filepath.Dir(w.filePath), "temp-log-")
	if err != nil {
		return err
	}

	tempPath := temp.Name()

	if _, err := temp.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		temp.Close()
		os.Remove(tempPath)

		return err
	}

	if err := temp.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}

	if closer, ok := w.writer.(io.Closer); ok {
		closer.Close()
	}

	// Windows refuses to rename over an existing file
	os.Remove(w.filePath)

	if err := os.Rename(tempPath, w.filePath); err != nil {
		return err
	}

	newFile, err := os.OpenFile(w.filePath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	w.writer = newFile

	return nil
}
