package display

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runWithOutput(t *testing.T, format string, msg Message) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := &cobra.Command{
		Use: "test",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return PrintCmd(cmd, msg)
		},
	}
	BindOutputFlag(cmd)
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--output", format})
	err := cmd.Execute()
	return buf.String(), err
}

func TestPrintCmd(t *testing.T) {
	msg := &Result{Data: map[string]int{"a": 1}, Text: "a is 1"}

	out, err := runWithOutput(t, OutputText, msg)
	require.NoError(t, err)
	assert.Equal(t, "a is 1\n", out)

	out, err = runWithOutput(t, OutputJSON, msg)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}\n", out)

	_, err = runWithOutput(t, "yaml", msg)
	assert.Error(t, err)
}

func TestPrintCmd_JSONKeepsNumbersAndFieldOrder(t *testing.T) {
	data := struct {
		Zeta  int64  `json:"zeta"`
		Alpha string `json:"alpha"`
	}{Zeta: 9007199254740993, Alpha: "x"}

	out, err := runWithOutput(t, OutputJSON, &Result{Data: data})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"zeta\": 9007199254740993,\n  \"alpha\": \"x\"\n}\n", out)
}
