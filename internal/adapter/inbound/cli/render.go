package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"specli/internal/usecase"
)

// OutputMode selects how responses are written to stdout.
type OutputMode string

const (
	// OutputAuto pretty-prints JSON responses and passes everything else
	// through untouched.
	OutputAuto OutputMode = "auto"
	// OutputJSON forces pretty-printed JSON, failing on non-JSON bodies.
	OutputJSON OutputMode = "json"
	// OutputRaw writes the body verbatim.
	OutputRaw OutputMode = "raw"
)

// ParseOutputMode validates an --output value.
func ParseOutputMode(s string) (OutputMode, error) {
	switch OutputMode(s) {
	case OutputAuto, OutputJSON, OutputRaw:
		return OutputMode(s), nil
	case "":
		return OutputAuto, nil
	}
	return "", fmt.Errorf("unknown output mode %q (expected auto, json, or raw)", s)
}

// Renderer writes invocation results to w according to the output mode.
type Renderer struct {
	w    io.Writer
	mode OutputMode
}

func NewRenderer(w io.Writer, mode OutputMode) *Renderer {
	return &Renderer{w: w, mode: mode}
}

// Render satisfies usecase.ResultRenderer.
func (r *Renderer) Render(result usecase.InvocationResult) error {
	if result.DryRun {
		_, err := r.w.Write(result.Body)
		return err
	}

	switch r.mode {
	case OutputRaw:
		return r.writeRaw(result.Body)
	case OutputJSON:
		pretty, err := prettyJSON(result.Body)
		if err != nil {
			return fmt.Errorf("response is not JSON: %w", err)
		}
		return r.writeRaw(pretty)
	default:
		if isJSONContent(result.ContentType) {
			if pretty, err := prettyJSON(result.Body); err == nil {
				return r.writeRaw(pretty)
			}
		}
		return r.writeRaw(result.Body)
	}
}

func (r *Renderer) writeRaw(body []byte) error {
	if len(body) == 0 {
		return nil
	}
	if _, err := r.w.Write(body); err != nil {
		return err
	}
	if body[len(body)-1] != '\n' {
		_, err := fmt.Fprintln(r.w)
		return err
	}
	return nil
}

func prettyJSON(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(body), "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isJSONContent(contentType string) bool {
	return strings.Contains(contentType, "application/json") ||
		strings.Contains(contentType, "+json")
}
