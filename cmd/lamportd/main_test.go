package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lamportd/internal/journal"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestRootCommand_PrintsUsage(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"positional argument", []string{"extra"}},
		{"unknown flag", []string{"--foo"}},
		{"unknown shorthand", []string{"-x"}},
		{"malformed flag value", []string{"--local", "three"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			cmd := newRootCommand(envMap(nil))
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(tt.args)

			require.NoError(t, cmd.Execute())
			assert.Equal(t, usageLine+"\n", buf.String())
		})
	}
}

func TestRootCommand_Flags(t *testing.T) {
	cmd := newRootCommand(envMap(nil))
	for _, name := range []string{
		"config", "env-file", "node-id", "group", "listen", "peers",
		"mean-wait", "send-timeout", "codec", "journal", "verbose", "local",
	} {
		t.Run(name, func(t *testing.T) {
			assert.NotNil(t, cmd.Flags().Lookup(name))
		})
	}
	assert.Equal(t, "v", cmd.Flags().Lookup("verbose").Shorthand)
}

func TestRootCommand_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"zero mean wait", []string{"--mean-wait", "0"}, "mean wait"},
		{"bad duration", []string{"--send-timeout", "soon"}, "--send-timeout"},
		{"bad peers", []string{"--peers", "n2"}, "--peers"},
		{"unknown codec", []string{"--codec", "json"}, "codec"},
		{"negative local", []string{"--local", "-1"}, "--local"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCommand(envMap(nil))
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfig_Layering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lamportd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
node_id: from-file
group: file-group
listen: 127.0.0.1:7100
mean_wait: 2s
codec: msgpack
`), 0644))

	fv := &flagValues{}
	cmd := &cobra.Command{Use: "lamportd"}
	bindFlags(cmd, fv)
	require.NoError(t, cmd.ParseFlags([]string{
		"--config", path,
		"--listen", "127.0.0.1:7300",
		"--peers", "n2=127.0.0.1:7301",
	}))

	cfg, err := loadConfig(cmd, fv, envMap(map[string]string{
		"LAMPORT_GROUP":     "env-group",
		"LAMPORT_MEAN_WAIT": "750",
		"LAMPORT_LISTEN":    "127.0.0.1:7200",
	}))
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.NodeID)
	assert.Equal(t, "env-group", cfg.Group)
	assert.Equal(t, 750*time.Millisecond, cfg.MeanWait)
	assert.Equal(t, "127.0.0.1:7300", cfg.ListenAddr)
	assert.Equal(t, "msgpack", cfg.Codec)
	require.Len(t, cfg.Peers, 1)
	assert.Equal(t, "n2", cfg.Peers[0].ID)
}

func TestLoadConfig_UnchangedFlagsKeepFileValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lamportd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("group: file-group\n"), 0644))

	fv := &flagValues{}
	cmd := &cobra.Command{Use: "lamportd"}
	bindFlags(cmd, fv)
	require.NoError(t, cmd.ParseFlags([]string{"--config", path}))

	cfg, err := loadConfig(cmd, fv, envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, "file-group", cfg.Group)
	assert.True(t, strings.HasPrefix(cfg.NodeID, "node-"))
}

func TestRunLocal_NodesExchangeEvents(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	ctx, cancel := context.WithCancel(context.Background())
	cmd := newRootCommand(envMap(nil))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--local", "3", "--node-id", "demo", "--mean-wait", "20ms", "--journal", dbPath})

	done := make(chan error, 1)
	go func() {
		done <- cmd.ExecuteContext(ctx)
	}()

	time.Sleep(500 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("local mode did not stop on cancellation")
	}

	j, err := journal.Open(dbPath)
	require.NoError(t, err)
	defer j.Close()

	events, err := j.Events(context.Background(), "demo-1")
	require.NoError(t, err)
	kinds := make(map[journal.Kind]int)
	for _, e := range events {
		kinds[e.Kind]++
	}
	assert.Positive(t, kinds[journal.Sent])
	assert.Positive(t, kinds[journal.Received])
}
