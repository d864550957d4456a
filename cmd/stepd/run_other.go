//go:build !darwin

package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/taigrr/pedometer/sensor"
)

func run(context.Context) error {
	return fmt.Errorf("%w: stepd needs an Apple Silicon Mac, not %s/%s", sensor.ErrUnavailable, runtime.GOOS, runtime.GOARCH)
}
