package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/shiftdesk/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   base URL of the REST API
//	-s string   websocket URL of the realtime channel
//	-l string   language tag sent as Accept-Language
//	-strict     fail hard on undecryptable response bodies
//	-m string   metrics listen address
//
// os.Args is filtered with flagx.FilterArgs first so flags owned by other
// components do not break parsing.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-s", "-l", "-strict", "-m"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.BaseURL, "a", cfg.BaseURL, "base URL of the REST API")
	fs.StringVar(&cfg.SocketURL, "s", cfg.SocketURL, "websocket URL of the realtime channel")
	fs.StringVar(&cfg.Language, "l", cfg.Language, "language sent as Accept-Language")
	fs.BoolVar(&cfg.StrictDecryption, "strict", cfg.StrictDecryption, "fail on undecryptable response bodies")
	fs.StringVar(&cfg.MetricsAddr, "m", cfg.MetricsAddr, "metrics listen address (empty disables)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
