package cmd

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/3leaps/sbatchman/pkg/apperrors"
	"github.com/3leaps/sbatchman/pkg/bundle"
	"github.com/3leaps/sbatchman/pkg/model"
	"github.com/3leaps/sbatchman/pkg/query"
)

var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Export or import a job bundle archive (spec §4.5, §6)",
}

var (
	bundleName    string
	bundleStatus  string
	bundleCluster string
)

var bundleExportCmd = &cobra.Command{
	Use:   "export <dest>",
	Short: "Export matching jobs to a bundle archive",
	Long: `Export writes manifest.json plus every matched job's directory into a
deflate-compressed zip archive. dest is a local path, or s3://bucket/key to
upload directly.`,
	Args: cobra.ExactArgs(1),
	RunE: runBundleExport,
}

var bundleImportCmd = &cobra.Command{
	Use:   "import <src>",
	Short: "Import jobs from a bundle archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runBundleImport,
}

func init() {
	rootCmd.AddCommand(bundleCmd)
	bundleCmd.AddCommand(bundleExportCmd)
	bundleCmd.AddCommand(bundleImportCmd)

	bundleExportCmd.Flags().StringVar(&bundleName, "name", "", "substring match on job name")
	bundleExportCmd.Flags().StringVar(&bundleStatus, "status", "", "exact status")
	bundleExportCmd.Flags().StringVar(&bundleCluster, "cluster", "", "exact cluster name")
}

func runBundleExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	f := query.Filter{Name: bundleName, Status: model.Status(bundleStatus), Cluster: bundleCluster}

	var buf bytes.Buffer
	if err := bundle.Export(ctx, a.store, a.dir, f, &buf); err != nil {
		return err
	}

	dest := args[0]
	if strings.HasPrefix(dest, "s3://") {
		bucket, key, ok := strings.Cut(strings.TrimPrefix(dest, "s3://"), "/")
		if !ok {
			return apperrors.New(apperrors.KindBundleFormat, "bundle export", dest, fmt.Errorf("expected s3://bucket/key"))
		}
		if err := bundle.UploadBundle(ctx, bundle.S3Destination{Bucket: bucket, Key: key}, &buf); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported to %s\n", dest)
		return nil
	}

	if err := os.WriteFile(dest, buf.Bytes(), 0o644); err != nil {
		return apperrors.New(apperrors.KindBundleFormat, "bundle export", dest, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported to %s\n", dest)
	return nil
}

func runBundleImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return apperrors.New(apperrors.KindBundleFormat, "bundle import", args[0], err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return apperrors.New(apperrors.KindBundleFormat, "bundle import", args[0], err)
	}

	result, err := bundle.Import(ctx, a.store, a.dir, zr)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d job(s)\n", result.JobsImported)
	return nil
}
