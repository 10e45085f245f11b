package safe

import (
	"Chatty/logger"
)

// Go starts a goroutine that recovers from panic, so a bad
// connection handler cannot take the whole gateway down.
func Go(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[safe.Go] panic recovered: %v", r)
			}
		}()
		f()
	}()
}

// Run calls f in the current goroutine with panic recovery.
func Run(f func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[safe.Run] panic recovered: %v", r)
		}
	}()
	f()
}
