//go:build darwin

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/taigrr/pedometer/sensor"
	"github.com/taigrr/pedometer/shm"
)

func run(ctx context.Context) error {
	if os.Geteuid() != 0 {
		return fmt.Errorf("stepd requires root privileges, run with: sudo stepd")
	}
	if ringName == "" {
		ringName = shm.NameAccel
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ring, err := shm.CreateRing(ringName)
	if err != nil {
		return fmt.Errorf("creating accel shm: %w", err)
	}
	defer ring.Close()
	defer ring.Unlink()

	fmt.Printf("stepd: writing accelerometer samples every %s to %s (Ctrl+C to stop)\n", interval, ringName)

	return sensor.RunHID(ctx, sensor.HIDConfig{
		Ring:     ring,
		Interval: interval,
	})
}
