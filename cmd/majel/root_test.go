// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Majel Contributors

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Help(t *testing.T) {
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"--help"})

	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "majel")
	assert.Contains(t, buf.String(), "chat")
	assert.Contains(t, buf.String(), "models")
	assert.Contains(t, buf.String(), "version")
}

func TestVersionCommand(t *testing.T) {
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"version"})

	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "majel")
}

func TestModelsCommand(t *testing.T) {
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"models"})

	err := root.Execute()
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "gemini-2.5-pro")
	assert.Contains(t, out, "gemini-2.5-flash-lite")
	assert.Contains(t, out, "*")
}

func TestChatCommand_BadConfig(t *testing.T) {
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"chat", "--config", "/nonexistent/path.yaml", "hello"})

	err := root.Execute()
	assert.Error(t, err)
}
