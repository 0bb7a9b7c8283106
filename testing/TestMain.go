// Package testing puts the process in test mode on import, so tests that exercise
// cmd wiring never reach PostgreSQL or Redis.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"

	"github.com/phoenix-garage/garage/internal/app"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv(app.TestModeEnv, "1")
		app.RefreshTestMode()
	})
}

func init() {
	ensureTestMode()
}

// TestMain can be delegated to from a package's own TestMain.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
