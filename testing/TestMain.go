// Package testing switches binaries into test mode when blank-imported from tests,
// so main packages can be exercised without opening Postgres or Redis.
package testing

import (
	"os"
	stdtesting "testing"

	"github.com/trainops/trainops-erp/internal/app"
)

func init() {
	enable()
}

// enable sets the test mode flag unless the caller already chose a value.
func enable() {
	if _, ok := os.LookupEnv(app.TestModeEnv); !ok {
		_ = os.Setenv(app.TestModeEnv, "1")
	}
	app.RefreshTestMode()
}

// TestMain can be delegated to from a package's own TestMain.
func TestMain(m *stdtesting.M) {
	enable()
	os.Exit(m.Run())
}
