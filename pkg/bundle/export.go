package bundle

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/3leaps/sbatchman/pkg/apperrors"
	"github.com/3leaps/sbatchman/pkg/model"
	"github.com/3leaps/sbatchman/pkg/query"
	"github.com/3leaps/sbatchman/pkg/statedir"
	"github.com/3leaps/sbatchman/pkg/store"
)

// Export selects jobs matching f, then writes manifest.json plus each job
// directory's full contents into a zip archive at w (spec §4.5 Export).
func Export(ctx context.Context, s *store.Store, dir *statedir.Dir, f query.Filter, w io.Writer) error {
	jobs, err := query.GetJobs(ctx, s, f)
	if err != nil {
		return err
	}

	clusterSeen := map[int64]model.Cluster{}
	configSeen := map[int64]model.Config{}
	for _, j := range jobs {
		if _, ok := configSeen[j.ConfigID]; !ok {
			cfg, err := s.GetConfigByID(ctx, j.ConfigID)
			if err != nil {
				return err
			}
			configSeen[j.ConfigID] = cfg
		}
		cfg := configSeen[j.ConfigID]
		if _, ok := clusterSeen[cfg.ClusterID]; !ok {
			cl, err := s.GetClusterByName(ctx, j.ClusterName)
			if err != nil {
				return err
			}
			clusterSeen[cfg.ClusterID] = cl
		}
	}

	manifest := Manifest{Version: ManifestVersion, BundleID: newBundleID(), Jobs: jobs}
	for _, c := range clusterSeen {
		manifest.Clusters = append(manifest.Clusters, c)
	}
	for _, c := range configSeen {
		manifest.Configs = append(manifest.Configs, c)
	}

	zw := zip.NewWriter(w)

	manifestBytes, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return apperrors.New(apperrors.KindBundleFormat, "Export", "", err)
	}
	mf, err := zw.Create("manifest.json")
	if err != nil {
		return apperrors.New(apperrors.KindBundleFormat, "Export", "manifest.json", err)
	}
	if _, err := mf.Write(manifestBytes); err != nil {
		return apperrors.New(apperrors.KindBundleFormat, "Export", "manifest.json", err)
	}

	for _, j := range jobs {
		if err := addJobDir(zw, dir.JobDir(j.ID), fmt.Sprintf("jobs/%d", j.ID)); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return apperrors.New(apperrors.KindBundleFormat, "Export", "", err)
	}
	return nil
}

func addJobDir(zw *zip.Writer, srcDir, archivePrefix string) error {
	return filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		entryName := archivePrefix + "/" + filepath.ToSlash(rel)

		src, err := os.Open(path)
		if err != nil {
			return apperrors.New(apperrors.KindBundleFormat, "addJobDir", path, err)
		}
		defer src.Close()

		dst, err := zw.Create(entryName)
		if err != nil {
			return apperrors.New(apperrors.KindBundleFormat, "addJobDir", entryName, err)
		}
		if _, err := io.Copy(dst, src); err != nil {
			return apperrors.New(apperrors.KindBundleFormat, "addJobDir", entryName, err)
		}
		return nil
	})
}
