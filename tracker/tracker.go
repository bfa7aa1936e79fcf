// Package tracker records experiment artifacts and metrics produced
// by the plotters. The Tracker interface is the seam for hosted
// experiment-tracking services; Run is a local implementation that
// keeps everything under a per-run directory.
package tracker

// Tracker receives the artifacts and metrics a plotting run produces.
type Tracker interface {
	// SaveArtifact records the file at path with the run.
	SaveArtifact(path string) error

	// Log records a set of named metric values.
	Log(metrics map[string]float64) error
}

// Nop discards everything. It is the default when no tracker is
// configured.
type Nop struct{}

// SaveArtifact discards the artifact.
func (Nop) SaveArtifact(string) error { return nil }

// Log discards the metrics.
func (Nop) Log(map[string]float64) error { return nil }
