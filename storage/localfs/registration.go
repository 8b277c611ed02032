package localfs

import (
	"flag"
	"fmt"

	"xdao.co/depot/storage"
	"xdao.co/depot/storage/driverregistry"
)

var flagRoot string

func init() {
	driverregistry.MustRegister(driverregistry.Backend{
		Name:        "localfs",
		Description: "Local filesystem driver (directory)",
		Usage:       driverregistry.UsageCLI | driverregistry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagRoot, "localfs-root", "", "local filesystem repository root (for --backend=localfs)")
		},
		Open: func() (storage.Driver, func() error, error) {
			if flagRoot == "" {
				return nil, nil, fmt.Errorf("missing --localfs-root")
			}
			d, err := New(flagRoot)
			return d, nil, err
		},
	})
}
