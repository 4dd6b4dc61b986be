// Package history appends price and spread records to CSV files.
package history

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// PrettyTimeLayout renders the time_pretty column.
const PrettyTimeLayout = "2006-01-02 15:04:05.000000"

// Writer appends rows to a CSV file, writing the header once when it creates the file.
type Writer struct {
	path   string
	header []string
	mu     sync.Mutex
}

// NewWriter returns a writer for path with the given header.
func NewWriter(path string, header []string) *Writer {
	return &Writer{path: path, header: header}
}

// Path returns the target file.
func (w *Writer) Path() string { return w.path }

// Write appends a single row.
func (w *Writer) Write(row []string) error {
	return w.WriteAll([][]string{row})
}

// WriteAll appends rows with a single open/close of the file.
func (w *Writer) WriteAll(rows [][]string) (err error) {
	for _, row := range rows {
		if len(row) != len(w.header) {
			return fmt.Errorf("history: row has %d fields, header has %d", len(row), len(w.header))
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	file, created, err := w.open()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", w.path, closeErr)
		}
	}()

	cw := csv.NewWriter(file)
	if created {
		// A created file must never exist without its header.
		_ = cw.Write(w.header)
		cw.Flush()
		if err := cw.Error(); err != nil {
			_ = os.Remove(w.path)
			return fmt.Errorf("write header to %s: %w", w.path, err)
		}
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("append to %s: %w", w.path, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", w.path, err)
	}
	return nil
}

// open creates the file exclusively so exactly one caller ever writes the header.
func (w *Writer) open() (*os.File, bool, error) {
	if dir := filepath.Dir(w.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, false, fmt.Errorf("create directory for %s: %w", w.path, err)
		}
	}

	file, err := os.OpenFile(w.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL|os.O_APPEND, 0o644)
	if err == nil {
		return file, true, nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return nil, false, fmt.Errorf("create %s: %w", w.path, err)
	}

	file, err = os.OpenFile(w.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, false, fmt.Errorf("open %s: %w", w.path, err)
	}
	return file, false, nil
}

func formatPretty(t time.Time) string {
	return t.UTC().Format(PrettyTimeLayout)
}

func formatTimestamp(ts float64) string {
	return strconv.FormatFloat(ts, 'f', 6, 64)
}
