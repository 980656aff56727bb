// Package cliutil holds the bits shared by every one-shot CLI subcommand:
// --text/--pretty output formatting and the --slice-file/--diary-file
// inline-or-file argument resolution.
package cliutil

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"

	"github.com/chirino/agent-memory/internal/engine"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FormatToolResult renders a ToolResult as either its first non-empty
// content text (preferText) or JSON (pretty-printed or compact). When
// preferText is set but there is no content text, it falls back to JSON.
func FormatToolResult(result engine.ToolResult, preferText, pretty bool) (string, error) {
	if preferText {
		if text, ok := ExtractPrimaryText(result); ok {
			return text, nil
		}
	}
	return formatJSON(result, pretty)
}

func formatJSON(result engine.ToolResult, pretty bool) (string, error) {
	var (
		encoded []byte
		err     error
	)
	if pretty {
		encoded, err = json.MarshalIndent(result, "", "  ")
	} else {
		encoded, err = json.Marshal(result)
	}
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(encoded), nil
}

// ExtractPrimaryText returns the first non-empty, trimmed content[].text
// entry of result.
func ExtractPrimaryText(result engine.ToolResult) (string, bool) {
	for _, item := range result.Content {
		text := strings.TrimSpace(item.Text)
		if text != "" {
			return text, true
		}
	}
	return "", false
}

// ResolveInlineOrFile returns inline if non-empty, otherwise reads and
// returns the UTF-8 contents of path (BOM stripped). name is used only
// for error messages.
func ResolveInlineOrFile(name, inline, path string) (string, error) {
	if inline != "" {
		return inline, nil
	}
	if path == "" {
		return "", fmt.Errorf("%s must not be empty", name)
	}
	return ReadUTF8FileStripBOM(path)
}

// ReadUTF8FileStripBOM reads path and strips a leading UTF-8 byte-order
// mark if present.
func ReadUTF8FileStripBOM(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return string(stripUTF8BOM(raw)), nil
}

func stripUTF8BOM(b []byte) []byte {
	if len(b) >= len(utf8BOM) && string(b[:len(utf8BOM)]) == string(utf8BOM) {
		return b[len(utf8BOM):]
	}
	return b
}
