package portforward

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenetaranov/dutexec/internal/connector"
	"github.com/eugenetaranov/dutexec/internal/testutil"
)

var testConfig = connector.Config{
	Host: "192.0.2.10",
	User: "root",
	Port: 8822,
}

func TestOpenClose(t *testing.T) {
	bin := testutil.NewBin(t)
	bin.Install("ssh", testutil.Tool{})
	bin.Install("pkill", testutil.Tool{})

	f := New(testConfig, "", 8080, 80)
	require.NoError(t, f.Open(context.Background()))

	wantArgs := []string{
		"ssh", "-4", "-N", "-f",
		"-L", "8080:localhost:80",
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
		"-p", "8822",
		"root@192.0.2.10",
	}
	assert.Equal(t, wantArgs, f.Args())
	assert.Equal(t, []string{strings.Join(wantArgs[1:], " ")}, bin.Calls("ssh"))

	require.NoError(t, f.Close())

	calls := bin.Calls("pkill")
	require.Len(t, calls, 1)
	assert.Equal(t, "-xf "+f.Pattern(), calls[0])

	// The pattern reconstructs the launch command line exactly.
	re := regexp.MustCompile("^" + f.Pattern() + "$")
	assert.True(t, re.MatchString(strings.Join(wantArgs, " ")))
	assert.False(t, re.MatchString(strings.Replace(strings.Join(wantArgs, " "), "192.0.2.10", "192x0x2x10", 1)))

	// A second Close has nothing left to terminate.
	require.NoError(t, f.Close())
	assert.Len(t, bin.Calls("pkill"), 1)
}

func TestOpenWithKey(t *testing.T) {
	bin := testutil.NewBin(t)
	bin.Install("ssh", testutil.Tool{})

	key := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(key, []byte("key"), 0o644))

	f := New(testConfig, key, 5000, 5432)
	require.NoError(t, f.Open(context.Background()))

	assert.Equal(t, []string{"ssh", "-4", "-N", "-f", "-i", key, "-L", "5000:localhost:5432"}, f.Args()[:8])

	info, err := os.Stat(key)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestOpenFailure(t *testing.T) {
	bin := testutil.NewBin(t)
	bin.Install("ssh", testutil.Tool{Stderr: "bind: Address already in use", Exit: 255})
	bin.Install("pkill", testutil.Tool{})

	f := New(testConfig, "", 8080, 80)
	err := f.Open(context.Background())

	var launchErr *LaunchError
	require.ErrorAs(t, err, &launchErr)
	assert.Equal(t, 255, launchErr.ExitCode)
	assert.Equal(t, f.Args(), launchErr.Args)

	require.NoError(t, f.Close())
	assert.Nil(t, bin.Calls("pkill"))
}

func TestOpenMissingKey(t *testing.T) {
	bin := testutil.NewBin(t)
	bin.Install("ssh", testutil.Tool{})

	f := New(testConfig, filepath.Join(t.TempDir(), "missing"), 8080, 80)
	require.Error(t, f.Open(context.Background()))
	assert.Nil(t, bin.Calls("ssh"))
}

func TestOpenCanceled(t *testing.T) {
	bin := testutil.NewBin(t)
	bin.Install("ssh", testutil.Tool{Script: "exec sleep 5"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := New(testConfig, "", 8080, 80)
	assert.ErrorIs(t, f.Open(ctx), context.Canceled)
	assert.NoError(t, f.Close())
}

func TestCloseWithoutOpen(t *testing.T) {
	bin := testutil.NewBin(t)
	bin.Install("pkill", testutil.Tool{})

	f := New(testConfig, "", 8080, 80)
	require.NoError(t, f.Close())
	assert.Nil(t, bin.Calls("pkill"))
}

func TestCloseFailure(t *testing.T) {
	bin := testutil.NewBin(t)
	bin.Install("ssh", testutil.Tool{})
	bin.Install("pkill", testutil.Tool{Exit: 1})

	f := New(testConfig, "", 8080, 80)
	require.NoError(t, f.Open(context.Background()))
	require.Error(t, f.Close())
}

func TestString(t *testing.T) {
	f := New(testConfig, "", 8080, 80)
	assert.Equal(t, "localhost:8080 -> 192.0.2.10:80", f.String())
	assert.Empty(t, f.Args())
}
