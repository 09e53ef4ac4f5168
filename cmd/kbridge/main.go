package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/ktedit/kbridge/internal/cmd"
)

// Populated by the linker at release build time.
var (
	version   = "dev"
	commit    = "HEAD"
	buildDate = "unknown"
)

func main() {
	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	cmd.SetVersionInfo(version, commit, buildDate)
	os.Exit(cmd.Execute())
}
