package bundle

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/3leaps/sbatchman/pkg/apperrors"
	"github.com/3leaps/sbatchman/pkg/model"
	"github.com/3leaps/sbatchman/pkg/statedir"
	"github.com/3leaps/sbatchman/pkg/store"
)

// Result summarizes an Import run.
type Result struct {
	JobsImported int
}

// Import reads a bundle archive, re-inserts its jobs under new IDs, merges
// clusters/configs by name, and materializes job directories under dir
// (spec §4.5 Import).
func Import(ctx context.Context, s *store.Store, dir *statedir.Dir, zr *zip.Reader) (Result, error) {
	manifestFile, err := zr.Open("manifest.json")
	if err != nil {
		return Result{}, apperrors.New(apperrors.KindBundleFormat, "Import", "manifest.json", err)
	}
	manifestBytes, err := io.ReadAll(manifestFile)
	_ = manifestFile.Close()
	if err != nil {
		return Result{}, apperrors.New(apperrors.KindBundleFormat, "Import", "manifest.json", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
		return Result{}, apperrors.New(apperrors.KindBundleFormat, "Import", "manifest.json", err)
	}
	if manifest.Version != ManifestVersion {
		return Result{}, apperrors.New(apperrors.KindBundleFormat, "Import", "manifest.json", fmt.Errorf("unsupported manifest version %d", manifest.Version))
	}

	// Merge clusters/configs by name identity (spec §4.5: "preserve
	// cluster_name/config_name identity — merge into existing rows if
	// names match... else create"). UpsertCluster/UpsertConfig already
	// merge-by-name, consistent with the re-import Open Question decision.
	clusterIDRemap := map[int64]int64{}
	for _, c := range manifest.Clusters {
		newC, err := s.UpsertCluster(ctx, c)
		if err != nil {
			return Result{}, err
		}
		clusterIDRemap[c.ID] = newC.ID
	}
	configIDRemap := map[int64]int64{}
	for _, c := range manifest.Configs {
		c.ClusterID = clusterIDRemap[c.ClusterID]
		newC, err := s.UpsertConfig(ctx, c)
		if err != nil {
			return Result{}, err
		}
		configIDRemap[c.ID] = newC.ID
	}

	var imported int
	for _, j := range manifest.Jobs {
		origID := j.ID
		j.ConfigID = configIDRemap[j.ConfigID]

		// Imported jobs arrive in their original terminal status; any
		// non-terminal status is coerced to failed (spec §4.5 Import).
		if !j.Status.Terminal() {
			j.Status = model.StatusFailed
		}

		newJob, err := s.ImportJob(ctx, j)
		if err != nil {
			return Result{}, err
		}
		newJob.Directory = dir.JobDir(newJob.ID)
		if err := extractJobDir(zr, origID, dir.JobDir(newJob.ID)); err != nil {
			return Result{}, err
		}
		if err := dir.WriteMetadata(newJob); err != nil {
			return Result{}, err
		}
		imported++
	}

	return Result{JobsImported: imported}, nil
}

func extractJobDir(zr *zip.Reader, origID int64, destDir string) error {
	prefix := fmt.Sprintf("jobs/%d/", origID)
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, prefix) {
			continue
		}
		rel := strings.TrimPrefix(f.Name, prefix)
		if rel == "" {
			continue
		}
		destPath := filepath.Join(destDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return apperrors.New(apperrors.KindBundleFormat, "extractJobDir", destPath, err)
		}

		rc, err := f.Open()
		if err != nil {
			return apperrors.New(apperrors.KindBundleFormat, "extractJobDir", f.Name, err)
		}
		out, err := os.Create(destPath)
		if err != nil {
			_ = rc.Close()
			return apperrors.New(apperrors.KindBundleFormat, "extractJobDir", destPath, err)
		}
		_, copyErr := io.Copy(out, rc)
		_ = rc.Close()
		_ = out.Close()
		if copyErr != nil {
			return apperrors.New(apperrors.KindBundleFormat, "extractJobDir", destPath, copyErr)
		}
	}
	return nil
}
