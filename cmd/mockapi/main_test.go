package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	var stderr bytes.Buffer
	log, err := newLogger("INFO", &stderr)
	require.NoError(t, err)
	require.NotNil(t, log.Log)
	assert.Empty(t, stderr.String())

	_, err = newLogger("loud", &stderr)
	require.Error(t, err)
	assert.Contains(t, stderr.String(), "failed to init logger")
	assert.Contains(t, stderr.String(), "loud")
}
