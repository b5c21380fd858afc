package setup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions(root string) Options {
	return Options{
		Host:        "graphite.example",
		Port:        "2004",
		SpoolRoot:   filepath.Join(root, "spool"),
		RunitDir:    filepath.Join(root, "sv"),
		LogDir:      filepath.Join(root, "log"),
		Parallelism: 10,
		Timeout:     120,
		RunnerPath:  "/usr/local/bin/queue-runner",
		SenderPath:  "/usr/local/bin/spool-sender",
	}
}

func TestPlan(t *testing.T) {
	l := Plan(testOptions("/x"))
	assert.Equal(t, "/x/spool/temp/graphite.example:2004", l.TempDir)
	assert.Equal(t, "/x/spool/send/graphite.example:2004", l.SendDir)
	assert.Equal(t, "/x/log/carbon-sender-graphite.example:2004", l.LogDir)
	assert.Equal(t, "/x/sv/carbon-sender-graphite.example:2004/log/run", l.LogScript)
}

func TestRunScript(t *testing.T) {
	o := testOptions("/x")
	o.Owner, o.Group = "carbon", "carbon"
	o.ConfigPath = "/etc/queue-runner.yaml"

	got, err := RunScript(o)
	require.NoError(t, err)
	assert.Equal(t, `#!/bin/sh
exec 2>&1
exec chpst -u carbon:carbon -- \
    /usr/local/bin/queue-runner --config /etc/queue-runner.yaml \
    /usr/local/bin/spool-sender \
    graphite.example \
    2004 \
    /x/spool/send/graphite.example:2004 \
    10 \
    120
`, got)
}

func TestApplyCreatesLayout(t *testing.T) {
	o := testOptions(t.TempDir())

	var created []string
	l, err := Apply(o, func(p string) { created = append(created, p) })
	require.NoError(t, err)

	for _, dir := range []string{l.TempDir, l.SendDir, l.LogDir,
		filepath.Join(l.ServiceDir, "supervise"),
		filepath.Join(l.ServiceDir, "log", "supervise")} {
		assert.DirExists(t, dir)
	}
	for _, script := range []string{l.RunScript, l.LogScript} {
		info, err := os.Stat(script)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	}
	assert.Len(t, created, 9)

	logRun, err := os.ReadFile(l.LogScript)
	require.NoError(t, err)
	assert.Contains(t, string(logRun), "svlogd -ttt "+l.LogDir)

	// Re-running is harmless.
	_, err = Apply(o, nil)
	require.NoError(t, err)
}

func TestApplyValidates(t *testing.T) {
	o := testOptions(t.TempDir())
	o.Parallelism = 0
	_, err := Apply(o, nil)
	assert.ErrorIs(t, err, ErrInvalidOptions)

	o = testOptions(t.TempDir())
	o.Owner = "no-such-user-for-setup-tests"
	_, err = Apply(o, nil)
	assert.ErrorIs(t, err, ErrInvalidOptions)
}
