package main

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// render writes v in the format chosen with --output. text renders the
// human readable form.
func render(cmd *cobra.Command, v any, text func(w io.Writer)) error {
	format := outputText
	if f := cmd.Flag("output"); f != nil {
		format = f.Value.String()
	}

	w := cmd.OutOrStdout()
	switch format {
	case outputText, "":
		text(w)
		return nil
	case outputJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
