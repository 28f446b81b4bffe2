package logging

import (
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, log.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, log.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, log.InfoLevel, ParseLevel(""))
	assert.Equal(t, log.InfoLevel, ParseLevel("chatty"))
}

func TestSetupWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spotvec.log")

	closer := Setup(Options{Level: "debug", File: path})
	require.NotNil(t, closer)
	defer func() { _ = Setup(Options{Level: "info"}).Close() }()

	assert.Equal(t, log.DebugLevel, log.GetLevel())
	log.WithField("component", "test").Info("hello")
	require.NoError(t, closer.Close())
	assert.FileExists(t, path)
}
