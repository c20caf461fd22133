package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/3leaps/sbatchman/internal/rootdir"
	"github.com/3leaps/sbatchman/pkg/hostconfig"
	"github.com/3leaps/sbatchman/pkg/lifecycle"
	"github.com/3leaps/sbatchman/pkg/statedir"
	"github.com/3leaps/sbatchman/pkg/store"
)

// app bundles the resolved root directory, store, and lifecycle engine
// that commands open through openApp, `__set-status` included. Opened once per invocation,
// never held across commands (spec §9 "no hidden globals"). hostConfig is
// read fresh on every open, per spec §5.
type app struct {
	root       string
	store      *store.Store
	dir        *statedir.Dir
	engine     *lifecycle.Engine
	hostConfig *hostconfig.Config
}

func openApp(ctx context.Context) (*app, error) {
	root := rootHomeOverride
	if root == "" {
		r, err := rootdir.Resolve()
		if err != nil {
			return nil, err
		}
		root = r
	} else if err := os.MkdirAll(filepath.Join(root, "jobs"), 0o755); err != nil {
		return nil, err
	}

	s, err := store.Open(ctx, store.Config{Path: filepath.Join(root, "sbatchman.db")})
	if err != nil {
		return nil, err
	}

	dir := statedir.New(root)
	selfExe, err := os.Executable()
	if err != nil {
		selfExe = "sbatchman"
	}

	hc, err := hostconfig.Load(root)
	if err != nil {
		return nil, err
	}

	return &app{
		root:       root,
		store:      s,
		dir:        dir,
		engine:     lifecycle.NewEngine(s, dir, selfExe),
		hostConfig: hc,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
