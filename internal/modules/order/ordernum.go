package order

import (
	"context"
	"fmt"
	"time"
)

// NumberFor formats the human-readable order number for a day and sequence:
// ORD-YYYYMMDD-NNN. The sequence is padded to three digits but not capped,
// so day 1000+ orders remain unique.
func NumberFor(day time.Time, seq int) string {
	return fmt.Sprintf("ORD-%s-%03d", day.Format("20060102"), seq)
}

func (s *Service) nextOrderNumber(ctx context.Context, now time.Time) (string, error) {
	day := now.UTC()
	seq, err := s.store.NextSequence(ctx, day.Format("20060102"))
	if err != nil {
		return "", err
	}
	return NumberFor(day, seq), nil
}
