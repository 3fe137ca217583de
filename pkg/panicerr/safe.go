package panicerr

import (
	"github.com/sourcegraph/conc/panics"
)

// Run executes fn, converting a panic into an error so callers can route it
// through the normal error path instead of crashing the process.
func Run(fn func() error) error {
	var (
		catcher panics.Catcher
		err     error
	)
	catcher.Try(func() {
		err = fn()
	})
	if err != nil {
		return err
	}
	return catcher.Recovered().AsError()
}
