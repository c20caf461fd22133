// Package bundle implements export/import of filtered job sets as
// deflate-compressed archives (spec §4.5, §6 "Bundle archive").
//
// No library in the retrieval pack offers an archive format, so this uses
// the standard library's archive/zip, whose default compression method is
// already Deflate — the format spec §6 names directly.
package bundle

import (
	"github.com/google/uuid"

	"github.com/3leaps/sbatchman/pkg/model"
)

// ManifestVersion is bumped whenever the bundle's manifest.json shape
// changes incompatibly.
const ManifestVersion = 1

// Manifest is the root of manifest.json: schema plus the rows for the
// exported jobs and the transitive configs/clusters they reference (spec
// §4.5 Export).
type Manifest struct {
	Version  int             `json:"version"`
	BundleID string          `json:"bundle_id"`
	Clusters []model.Cluster `json:"clusters"`
	Configs  []model.Config  `json:"configs"`
	Jobs     []model.Job     `json:"jobs"`
}

// newBundleID mints a fresh archive identity, letting an operator
// correlate a reported import back to the export that produced it.
func newBundleID() string {
	return uuid.NewString()
}
