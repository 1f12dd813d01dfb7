package safe

import (
	"PRelay/logger"
	"PRelay/tools/errs"
)

// Go starts a goroutine that recovers from panics so a single connection
// cannot take the whole gateway down.
func Go(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("goroutine panic recovered: %v", errs.ErrPanic(r))
			}
		}()
		f()
	}()
}
