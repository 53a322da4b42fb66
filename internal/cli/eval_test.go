package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reprove/internal/witness"
)

func TestEvalCommand(t *testing.T) {
	dir := writeModulesDir(t)

	out, err := runCommand(t, "eval", dir, "MyMod.f")
	require.NoError(t, err)
	assert.Contains(t, out, "MyMod.f = 4")
	assert.NotContains(t, out, "yield points")
}

func TestEvalCommandWithArgs(t *testing.T) {
	dir := writeModulesDir(t)

	out, err := runCommand(t, "eval", dir, "Helpers.h", "41")
	require.NoError(t, err)
	assert.Contains(t, out, "Helpers.h = 42")
}

func TestEvalCommandInstrumented(t *testing.T) {
	dir := writeModulesDir(t)

	out, err := runCommand(t, "eval", dir, "MyMod.f", "--instrumented")
	require.NoError(t, err)

	// Instrumentation must not change the value; both call sites in f's
	// body yield once each.
	assert.Contains(t, out, "MyMod.f = 4")
	assert.Contains(t, out, "yield points hit: 2")
}

func TestEvalCommandJSON(t *testing.T) {
	dir := writeModulesDir(t)

	out, err := runCommand(t, "--format", "json", "eval", dir, "MyMod.f", "--instrumented")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   EvalResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "4", resp.Data.Value)
	assert.Equal(t, int64(2), resp.Data.Yields)
}

func TestEvalCommandUnknownModule(t *testing.T) {
	dir := writeModulesDir(t)

	_, err := runCommand(t, "eval", dir, "Nope.f")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestEvalCommandUndefinedFunction(t *testing.T) {
	dir := writeModulesDir(t)

	_, err := runCommand(t, "eval", dir, "MyMod.nope")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestEvalCommandBadTarget(t *testing.T) {
	dir := writeModulesDir(t)

	_, err := runCommand(t, "eval", dir, "nodots")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestParseArg(t *testing.T) {
	assert.Equal(t, witness.Int(42), parseArg("42"))
	assert.Equal(t, witness.Bool(true), parseArg("true"))
	assert.Equal(t, witness.Null{}, parseArg("null"))
	assert.Equal(t, witness.String("hello"), parseArg("hello"))
}
