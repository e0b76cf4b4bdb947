package batch

import (
	"context"
	"errors"
	"fmt"
)

// compensation undoes one live leg of a batch.
type compensation struct {
	index int
	name  string
	undo  func(ctx context.Context) error
}

// saga is the ordered list of legs placed so far.
type saga struct {
	done []compensation
}

func (s *saga) register(c compensation) {
	s.done = append(s.done, c)
}

// rollback runs the registered compensations newest first and joins their errors.
func (s *saga) rollback(ctx context.Context) error {
	var errs []error
	for i := len(s.done) - 1; i >= 0; i-- {
		c := s.done[i]
		if err := c.undo(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s (member %d): %w", c.name, c.index+1, err))
		}
	}
	s.done = nil
	return errors.Join(errs...)
}
