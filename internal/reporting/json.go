package reporting

import (
	"encoding/json"
	"fmt"
)

// RenderJSON renders v as indented JSON.
func RenderJSON(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("render json: %w", err)
	}
	return string(b) + "\n", nil
}

// Render renders a risk report in the named format. CSV renders the
// report's obligations.
func Render(r *RiskReport, format string) (string, error) {
	switch format {
	case FormatMarkdown, "":
		return RenderMarkdown(r), nil
	case FormatCSV:
		return RenderObligationsCSV(r.Obligations)
	case FormatJSON:
		return RenderJSON(r)
	}
	return "", fmt.Errorf("unknown format %q", format)
}
