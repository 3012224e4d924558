package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// OutputFormats lists the supported result formats.
var OutputFormats = []string{"text", "json", "csv", "yaml"}

func isValidFormat(format string) bool {
	return slices.Contains(OutputFormats, format)
}

type report struct {
	Files []FileResult `json:"files" yaml:"files"`
}

// FormatResults renders results as text, json, csv or yaml.
func FormatResults(results []FileResult, format string) (string, error) {
	switch format {
	case "json":
		return formatJSON(results)
	case "yaml":
		return formatYAML(results)
	case "csv":
		return formatCSV(results)
	case "text", "":
		return formatText(results), nil
	default:
		return "", fmt.Errorf("unsupported output format %q", format)
	}
}

func formatJSON(results []FileResult) (string, error) {
	if results == nil {
		results = []FileResult{}
	}
	b, err := json.MarshalIndent(report{Files: results}, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}

func formatYAML(results []FileResult) (string, error) {
	if results == nil {
		results = []FileResult{}
	}
	b, err := yaml.Marshal(report{Files: results})
	return string(b), err
}

// formatCSV writes one row per symbol; inputs without symbols get one empty row.
func formatCSV(results []FileResult) (string, error) {
	var out strings.Builder
	w := csv.NewWriter(&out)
	rows := [][]string{{"file", "page", "image", "index", "format", "text", "x", "y", "width", "height", "error"}}

	for _, r := range results {
		prefix := []string{r.File, strconv.Itoa(r.Page), strconv.Itoa(r.Image)}
		if len(r.Symbols) == 0 {
			rows = append(rows, append(prefix, "", "", "", "", "", "", "", r.Error))
			continue
		}
		for i, s := range r.Symbols {
			b := s.Box()
			rows = append(rows, append(slices.Clone(prefix),
				strconv.Itoa(i), s.Format.String(), s.Text,
				strconv.Itoa(b.X), strconv.Itoa(b.Y), strconv.Itoa(b.W), strconv.Itoa(b.H), r.Error))
		}
	}

	if err := w.WriteAll(rows); err != nil {
		return "", err
	}
	return out.String(), nil
}

// formatText lists every input with its symbols as "FORMAT<TAB>text".
func formatText(results []FileResult) string {
	var out strings.Builder
	for i, r := range results {
		if i > 0 {
			out.WriteString("\n")
		}
		out.WriteString("# " + r.File)
		if r.Page > 0 {
			fmt.Fprintf(&out, " (page %d, image %d)", r.Page, r.Image)
		}
		out.WriteString("\n")
		switch {
		case r.Error != "":
			fmt.Fprintf(&out, "error: %s\n", r.Error)
		case len(r.Symbols) == 0:
			out.WriteString("no symbols found\n")
		}
		for _, s := range r.Symbols {
			fmt.Fprintf(&out, "%s\t%s\n", s.Format, s.Text)
		}
	}
	return out.String()
}
