package report

import "encoding/json"

// FormatJSON renders a report as indented JSON.
func FormatJSON(r *Report) string {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b) + "\n"
}
