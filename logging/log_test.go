package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFromContext(t *testing.T) {
	t.Parallel()

	require.NotNil(t, FromContext(context.Background()))

	logger := zap.NewExample()
	ctx := NewContext(context.Background(), logger)
	require.Same(t, logger, FromContext(ctx))
}

func TestNewJSON(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := New(Config{Level: zap.InfoLevel, JSON: true, Output: &buf})

	logger.Debug("hidden")
	logger.Info("issued", zap.Uint16("bits", 10))
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "issued", entry["M"])
	require.EqualValues(t, 10, entry["bits"])
}

func TestNewWithFile(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	file := filepath.Join(t.TempDir(), "hshs.log")
	logger := New(Config{Level: zap.WarnLevel, File: file, MaxFileSize: 1, MaxFiles: 1, Output: &buf})

	logger.Debug("only in file")
	require.NoError(t, logger.Sync())
	require.Empty(t, buf.String())

	content, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Contains(t, string(content), "only in file")
}
