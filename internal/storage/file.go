// internal/storage/file.go
package storage

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// HistoryTimeLayout формат времени в строках history.log
const HistoryTimeLayout = "2006-01-02 15:04:05.000000"

// FileSink пишет историю в файл построчно: "[время] текст".
// Каждая запись сбрасывается на диск сразу.
type FileSink struct {
	mu       sync.Mutex
	writer   *bufio.Writer
	file     *os.File
	logger   *zap.Logger
	filePath string
	closed   bool

	writtenLines uint64
}

// NewFileSink открывает файл в режиме добавления, создавая каталог при необходимости
func NewFileSink(filePath string, logger *zap.Logger) (*FileSink, error) {
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}

	return &FileSink{
		writer:   bufio.NewWriter(file),
		file:     file,
		logger:   logger.Named("history-file"),
		filePath: filePath,
	}, nil
}

// Append implements Sink.
func (fs *FileSink) Append(_ context.Context, entry HistoryEntry) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.closed {
		return fmt.Errorf("history file %s is closed", fs.filePath)
	}

	line := fmt.Sprintf("[%s] %s\n", entry.RecordedAt.Format(HistoryTimeLayout), entry.Text)
	if _, err := fs.writer.WriteString(line); err != nil {
		return fmt.Errorf("failed to write line: %w", err)
	}
	if err := fs.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush buffer: %w", err)
	}

	fs.writtenLines++
	return nil
}

// Close сбрасывает буфер и закрывает файл
func (fs *FileSink) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.closed {
		return nil
	}
	fs.closed = true

	if err := fs.writer.Flush(); err != nil {
		fs.file.Close()
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if err := fs.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	fs.logger.Info("History file closed",
		zap.String("file", fs.filePath),
		zap.Uint64("writtenLines", fs.writtenLines))
	return nil
}

// WrittenLines returns how many entries were written since open.
func (fs *FileSink) WrittenLines() uint64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.writtenLines
}
