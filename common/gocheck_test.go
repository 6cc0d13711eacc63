package common

import (
	"testing"

	chk "gopkg.in/check.v1"
)

// Hookup to the testing framework
func Test(t *testing.T) { chk.TestingT(t) }
