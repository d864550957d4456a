//go:build darwin

package shm

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRing(t *testing.T) (*RingBuffer, *RingBuffer) {
	t.Helper()
	name := fmt.Sprintf("ped_test_%d", os.Getpid())
	w, err := CreateRing(name)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = w.Close()
		_ = w.Unlink()
	})
	r, err := OpenRing(name)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return w, r
}

func TestRingReadNew(t *testing.T) {
	w, r := testRing(t)

	samples, total := r.ReadNew(0, AccelScale)
	assert.Empty(t, samples)
	assert.Zero(t, total)

	w.Write(0, 0, 65536, 1000)
	w.Write(32768, -32768, 131072, 1100)

	samples, total = r.ReadNew(0, AccelScale)
	require.Len(t, samples, 2)
	assert.Equal(t, uint64(2), total)
	assert.Equal(t, Sample{Z: 1, TimestampMillis: 1000}, samples[0])
	assert.Equal(t, Sample{X: 0.5, Y: -0.5, Z: 2, TimestampMillis: 1100}, samples[1])

	samples, _ = r.ReadNew(total, AccelScale)
	assert.Empty(t, samples)
}

func TestRingWrapKeepsNewest(t *testing.T) {
	w, r := testRing(t)
	for i := range RingCap + 10 {
		w.Write(0, 0, 0, int64(i))
	}

	samples, total := r.ReadNew(0, AccelScale)
	assert.Equal(t, uint64(RingCap+10), total)
	require.Len(t, samples, RingCap)
	assert.Equal(t, int64(10), samples[0].TimestampMillis)
	assert.Equal(t, int64(RingCap+9), samples[len(samples)-1].TimestampMillis)
}
