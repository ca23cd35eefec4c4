package common

import (
	"fmt"
	"os"
	"runtime"

	"github.com/ternarybob/arbor"
)

// SafeGo runs fn on its own goroutine and absorbs any panic. The panic and
// its stack are logged under the given name; the process keeps running.
// Worker goroutines that must not take the service down go through here.
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	go func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)

			if logger != nil {
				logger.Error().
					Str("goroutine", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(buf[:n])).
					Msg("Recovered from goroutine panic")
				return
			}
			fmt.Fprintf(os.Stderr, "panic in goroutine %s: %v\n%s\n", name, r, buf[:n])
		}()

		fn()
	}()
}
