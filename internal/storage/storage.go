// internal/storage/storage.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// HistoryEntry одна запись журнала действий бота
type HistoryEntry struct {
	RecordedAt time.Time
	Text       string
}

// Sink определяет хранилище записей истории
type Sink interface {
	Append(ctx context.Context, entry HistoryEntry) error
}

// History раздает каждую запись во все хранилища
type History struct {
	sinks []Sink
	now   func() time.Time
}

// NewHistory создает журнал поверх sinks
func NewHistory(sinks ...Sink) *History {
	return &History{sinks: sinks, now: time.Now}
}

// Record добавляет запись с текущим временем во все хранилища.
// Ошибка одного хранилища не мешает записи в остальные.
func (h *History) Record(ctx context.Context, text string) error {
	entry := HistoryEntry{RecordedAt: h.now(), Text: text}

	var errs []error
	for _, s := range h.sinks {
		if err := s.Append(ctx, entry); err != nil {
			errs = append(errs, fmt.Errorf("history sink %T: %w", s, err))
		}
	}
	return errors.Join(errs...)
}
