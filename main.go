package main

import (
	"context"
	"fmt"
	"os"

	"github.com/romangluhoedov/GoogleDocsAPI/app"
	"github.com/romangluhoedov/GoogleDocsAPI/pkg/config"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration:\n%v\n", err)
		os.Exit(1)
	}

	if cfg.LogFile != "" {
		commonlog.Configure(cfg.LogVerbosity, &cfg.LogFile)
	} else {
		commonlog.Configure(cfg.LogVerbosity, nil)
	}
	log := commonlog.GetLogger("docmerge")

	server, err := app.NewServer(context.Background(), cfg)
	if err != nil {
		log.Criticalf("failed to start: %v", err)
		os.Exit(1)
	}
	defer server.Close()

	if err := server.Start(""); err != nil {
		log.Criticalf("server stopped: %v", err)
		os.Exit(1)
	}
}
