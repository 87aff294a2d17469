package requests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const defaultCodePrefix = "SOL"

// Counter issues per-key sequence numbers.
type Counter interface {
	Incr(ctx context.Context, key string) (int64, error)
	CounterKey(name string) string
}

// CodeIssuer assigns human-readable request codes of the form
// PREFIX-YYYY-NNNNN. The sequence restarts every calendar year; numbers
// burned by failed submissions leave gaps.
type CodeIssuer struct {
	counter Counter
	prefix  string
	now     func() time.Time
}

func NewCodeIssuer(counter Counter, prefix string) (*CodeIssuer, error) {
	if counter == nil {
		return nil, errors.New("code counter required")
	}
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = defaultCodePrefix
	}
	return &CodeIssuer{counter: counter, prefix: prefix, now: time.Now}, nil
}

// Next reserves the next code for the current year.
func (c *CodeIssuer) Next(ctx context.Context) (string, error) {
	year := c.now().UTC().Year()
	seq, err := c.counter.Incr(ctx, c.counter.CounterKey(fmt.Sprintf("request_code:%d", year)))
	if err != nil {
		return "", fmt.Errorf("reserve request code: %w", err)
	}
	return FormatCode(c.prefix, year, seq), nil
}

// FormatCode renders a request code.
func FormatCode(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%04d-%05d", prefix, year, seq)
}
