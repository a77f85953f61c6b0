// cmd/microbench/main.go
package main

import (
	"log"

	"github.com/mwiater/microbench/internal/appconfig"
	cmd "github.com/mwiater/microbench/internal/cli"
	"github.com/mwiater/microbench/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	loadConfig     = appconfig.Load
	initLogging    = logging.Init
	closeLogging   = logging.Close
	setVersionInfo = cmd.SetVersionInfo
	executeCmd     = cmd.Execute
)

// main prepares logging from the config file (so that failures before the
// command runs are still recorded) and hands over to the cobra root command.
func main() {
	cfg, err := loadConfig("")
	if err != nil {
		log.Printf("config: %v (continuing with defaults)", err)
		cfg = appconfig.Default()
	}
	if err := initLogging(cfg.LogFilePath()); err != nil {
		log.Printf("logging: %v", err)
	}
	defer func() { _ = closeLogging() }()

	setVersionInfo(version, commit, date)
	executeCmd()
}
