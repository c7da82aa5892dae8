package output

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"

	"cu-planner/internal/errors"
)

// JSONFormatter renders reports as indented JSON
type JSONFormatter struct {
	Indent string
}

// NewJSONFormatter creates a JSON formatter with two-space indentation
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{Indent: "  "}
}

// Format returns the format type
func (f *JSONFormatter) Format() Format {
	return FormatJSON
}

// Render produces output for the given report
func (f *JSONFormatter) Render(w io.Writer, report Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", f.Indent)
	if err := enc.Encode(report); err != nil {
		return errors.Wrapf(errors.TypeInternal, err, "encoding %s report as json", report.Kind())
	}
	return nil
}

// YAMLFormatter renders reports as YAML
type YAMLFormatter struct{}

// NewYAMLFormatter creates a YAML formatter
func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

// Format returns the format type
func (f *YAMLFormatter) Format() Format {
	return FormatYAML
}

// Render produces output for the given report
func (f *YAMLFormatter) Render(w io.Writer, report Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return errors.Wrapf(errors.TypeInternal, err, "encoding %s report as yaml", report.Kind())
	}
	return enc.Close()
}
