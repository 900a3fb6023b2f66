package main

import (
	"os"
	"testing"

	mfsk "github.com/doismellburning/mfsk/src"
)

func runWithArgs(args ...string) func() {
	return func() {
		var oldArgs = os.Args
		defer func() { os.Args = oldArgs }()

		os.Args = append([]string{"mfsk-pack"}, args...)
		main()
	}
}

func Test_Pack(t *testing.T) {
	// From the usage text.
	mfsk.AssertOutputContains(t, runWithArgs("Hello"), "ab cd 00 05 48 65 6c 6c 6f 88 d7")
	mfsk.AssertOutputContains(t, runWithArgs("--crc32", "Hello"), "ab cd 80 05 48 65 6c 6c 6f 74 44 da a0")
}
