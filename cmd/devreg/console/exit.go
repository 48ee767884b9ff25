package console

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/devreg/device"
)

// exit codes
const (
	ExitFailure = 1
	ExitBus     = 2
	ExitCodec   = 3
)

func Exit(code int, msg string, args ...interface{}) cli.ExitCoder {
	return cli.Exit(fmt.Sprintf(msg, args...), code)
}

// Fail reports err prefixed with what, exiting with the code of its error
// kind.
func Fail(what string, err error) cli.ExitCoder {
	return Exit(ExitCode(err), "%s: %s", what, Red(err))
}

func ExitCode(err error) int {
	switch {
	case errors.Is(err, device.ErrBus):
		return ExitBus
	case errors.Is(err, device.ErrCodec):
		return ExitCodec
	default:
		return ExitFailure
	}
}
