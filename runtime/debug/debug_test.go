package debug

import (
	"flag"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestCPUProfileRoundTrip(t *testing.T) {
	file := filepath.Join(t.TempDir(), "cpu.prof")
	require.NoError(t, Handler.StartCPUProfile(file))
	require.Error(t, Handler.StartCPUProfile(file))
	require.NoError(t, Handler.StopCPUProfile())
	require.Error(t, Handler.StopCPUProfile())

	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.True(t, info.Size() > 0)
}

func TestGoTraceRoundTrip(t *testing.T) {
	file := filepath.Join(t.TempDir(), "trace.out")
	require.NoError(t, Handler.StartGoTrace(file))
	require.Error(t, Handler.StartGoTrace(file))
	require.NoError(t, Handler.StopGoTrace())
	require.Error(t, Handler.StopGoTrace())

	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.True(t, info.Size() > 0)
}

func TestSetupAndExitFromFlags(t *testing.T) {
	dir := t.TempDir()
	set := flag.NewFlagSet("test", 0)
	set.Int(MemProfileRateFlag.Name, runtime.MemProfileRate, "")
	set.Int(BlockProfileRateFlag.Name, 0, "")
	set.Int(MutexProfileFractionFlag.Name, 0, "")
	set.String(TraceFlag.Name, filepath.Join(dir, "trace.out"), "")
	set.String(CPUProfileFlag.Name, filepath.Join(dir, "cpu.prof"), "")
	ctx := cli.NewContext(&cli.App{}, set, nil)

	require.NoError(t, Setup(ctx))
	Exit(ctx)

	for _, name := range []string{"trace.out", "cpu.prof"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.True(t, info.Size() > 0)
	}
}
