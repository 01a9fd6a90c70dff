package renderer

import (
	"encoding/json"
	"io"

	"github.com/ChainSafe/stm8dce/analyzer"
)

// JSONRenderer renders reports in JSON format.
type JSONRenderer struct{}

func NewJSONRenderer() Renderer {
	return &JSONRenderer{}
}

func (r *JSONRenderer) Render(report *analyzer.Report, output io.Writer) error {
	enc := json.NewEncoder(output)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func (r *JSONRenderer) Format() string {
	return "json"
}
