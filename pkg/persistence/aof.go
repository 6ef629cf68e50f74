// Package persistence implements the on-disk journal for the elograph
// engine: a CRC-framed append-only file where each frame carries one
// committed transaction.
package persistence

import (
	"bufio"
	"fmt"
	"os"
	"sync"
)

// AOFWriter manages writing to the Append-Only File.
type AOFWriter struct {
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
	fw   *FrameWriter
	path string
}

// NewAOFWriter opens or creates an AOF file at the given path.
func NewAOFWriter(path string) (*AOFWriter, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open AOF file: %w", err)
	}

	buf := bufio.NewWriter(file)
	return &AOFWriter{
		file: file,
		buf:  buf,
		fw:   NewFrameWriter(buf),
		path: path,
	}, nil
}

// AppendFrame writes one framed payload and flushes it to the OS. The flush
// happens before the caller publishes the transaction in memory, so an I/O
// error here aborts the commit with nothing applied.
func (a *AOFWriter) AppendFrame(payload []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.fw.WriteFrame(payload); err != nil {
		return err
	}
	return a.buf.Flush()
}

// Sync forces a flush to disk (fsync).
func (a *AOFWriter) Sync() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.buf.Flush(); err != nil {
		return err
	}
	return a.file.Sync()
}

// Close flushes pending data and closes the underlying file.
func (a *AOFWriter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.buf.Flush(); err != nil {
		_ = a.file.Close()
		return err
	}
	if err := a.file.Sync(); err != nil {
		_ = a.file.Close()
		return err
	}
	return a.file.Close()
}

// Size returns the current size of the journal file in bytes.
func (a *AOFWriter) Size() (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.buf.Flush(); err != nil {
		return 0, err
	}
	info, err := a.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Path returns the file path.
func (a *AOFWriter) Path() string {
	return a.path
}

// Truncate drops everything after offset. Used at startup to cut a torn
// tail frame left by a crash mid-write.
func (a *AOFWriter) Truncate(offset int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.buf.Reset(a.file)
	if err := a.file.Truncate(offset); err != nil {
		return err
	}
	_, err := a.file.Seek(0, 2)
	return err
}

// ReplaceWith replaces the current AOF file with a new one atomically
// (rename) and reopens it. Used at the end of journal compaction.
func (a *AOFWriter) ReplaceWith(newFilePath string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// 1. Flush & Close old
	_ = a.buf.Flush()
	_ = a.file.Close()

	// 2. Rename
	if err := os.Rename(newFilePath, a.path); err != nil {
		return fmt.Errorf("failed to replace AOF file: %w", err)
	}

	// 3. Reopen
	file, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return fmt.Errorf("failed to reopen AOF file after replace: %w", err)
	}
	a.file = file
	a.buf.Reset(file)
	a.fw = NewFrameWriter(a.buf)
	return nil
}
