package httpdriver

import (
	"flag"
	"fmt"
	"time"

	"xdao.co/depot/storage"
	"xdao.co/depot/storage/driverregistry"
)

var (
	flagBaseURL   string
	flagUserAgent string
	flagTimeout   time.Duration
)

func init() {
	driverregistry.MustRegister(driverregistry.Backend{
		Name:        "http",
		Description: "Remote HTTP repository driver",
		Usage:       driverregistry.UsageCLI | driverregistry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagBaseURL, "http-base-url", "", "repository base URL (for --backend=http)")
			fs.StringVar(&flagUserAgent, "http-user-agent", "depotcli/1.0", "user-agent header")
			fs.DurationVar(&flagTimeout, "http-timeout", 30*time.Second, "per-request timeout")
		},
		Open: func() (storage.Driver, func() error, error) {
			if flagBaseURL == "" {
				return nil, nil, fmt.Errorf("missing --http-base-url")
			}
			return &Client{BaseURL: flagBaseURL, UserAgent: flagUserAgent, Timeout: flagTimeout}, nil, nil
		},
	})
}
