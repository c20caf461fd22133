// Package rootdir resolves the sbatchman root directory exactly once, at
// process startup, so the rest of the program receives it explicitly
// instead of re-deriving it from the environment (spec §9 "no hidden
// globals").
package rootdir

import (
	"os"
	"path/filepath"

	"github.com/3leaps/sbatchman/pkg/apperrors"
)

// EnvVar overrides the default root when set.
const EnvVar = "SBATCHMAN_HOME"

// defaultDirName is the root's name under $HOME when EnvVar is unset.
const defaultDirName = ".sbatchman"

// Resolve determines the root directory: $SBATCHMAN_HOME if set, else
// $HOME/.sbatchman, creating it (and its jobs/ subdirectory) if missing.
func Resolve() (string, error) {
	root := os.Getenv(EnvVar)
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", apperrors.New(apperrors.KindConfigIO, "rootdir.Resolve", "", err)
		}
		root = filepath.Join(home, defaultDirName)
	}

	if err := os.MkdirAll(filepath.Join(root, "jobs"), 0o755); err != nil {
		return "", apperrors.New(apperrors.KindConfigIO, "rootdir.Resolve", root, err)
	}
	return root, nil
}
