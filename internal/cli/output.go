package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// emit writes v as JSON, or calls text for the text format.
func emit(opts *RootOptions, w io.Writer, v any, text func(io.Writer)) error {
	if opts.Format == "json" {
		return writeJSON(w, v)
	}
	text(w)
	return nil
}

func printf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}
