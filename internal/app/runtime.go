package app

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

// TestModeEnv switches binaries into test mode; any value strconv.ParseBool accepts
// as true enables it.
const TestModeEnv = "TRAINOPS_TEST_MODE"

var testMode atomic.Pointer[bool]

// InTestMode reports whether the application should skip runtime side effects.
func InTestMode() bool {
	if cached := testMode.Load(); cached != nil {
		return *cached
	}
	on := readTestMode()
	testMode.Store(&on)
	return on
}

// RefreshTestMode drops the cached flag so the next InTestMode call rereads the environment.
func RefreshTestMode() {
	testMode.Store(nil)
}

func readTestMode() bool {
	on, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(TestModeEnv)))
	return err == nil && on
}
