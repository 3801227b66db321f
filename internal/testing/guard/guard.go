// Package guard flips the application into test mode when imported, so
// package tests never start real servers or workers.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("PACKHOUSE_TEST_MODE") == "" {
			_ = os.Setenv("PACKHOUSE_TEST_MODE", "1")
		}
	})
}
