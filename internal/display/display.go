// Package display renders command results as text or JSON depending on the
// --output flag.
package display

import (
	"bytes"
	"encoding"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

const (
	OutputFlag = "output"

	OutputText = "text"
	OutputJSON = "json"
)

// Message is anything a command prints.
type Message interface {
	json.Marshaler
	encoding.TextMarshaler
}

// BindOutputFlag adds the persistent --output flag to cmd.
func BindOutputFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP(OutputFlag, "o", OutputText, "output format: text|json")
}

// PrintCmd writes msg to the command's stdout in the selected format.
func PrintCmd(cmd *cobra.Command, msg Message) error {
	format, err := cmd.Flags().GetString(OutputFlag)
	if err != nil {
		format = OutputText
	}

	var out []byte
	switch format {
	case OutputJSON:
		raw, err := msg.MarshalJSON()
		if err != nil {
			return fmt.Errorf("marshal json output: %w", err)
		}
		var indented bytes.Buffer
		if err := json.Indent(&indented, raw, "", "  "); err != nil {
			return fmt.Errorf("marshal json output: %w", err)
		}
		out = indented.Bytes()
	case OutputText:
		if out, err = msg.MarshalText(); err != nil {
			return fmt.Errorf("marshal text output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}

// Result pairs a JSON payload with its text rendering.
type Result struct {
	Data any
	Text string
}

func (r *Result) MarshalJSON() ([]byte, error) { return json.Marshal(r.Data) }

func (r *Result) MarshalText() ([]byte, error) { return []byte(r.Text), nil }
