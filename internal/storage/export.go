package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/mdsim/internal/sim"
)

type ExportData struct {
	Meta    RunMetadata  `json:"meta"`
	Samples []sim.Sample `json:"samples"`
}

// ExportJSON writes the run record and every sample as one indented JSON
// document.
func ExportJSON(w io.Writer, meta RunMetadata, result *sim.Result) error {
	meta.Metrics = result.Metrics
	meta.Builds = result.Builds
	meta.Elapsed = result.Elapsed.String()

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(ExportData{Meta: meta, Samples: result.Samples})
}
