package version

// Set at build time via -ldflags "-X github.com/you/tg-harvest/internal/version.Version=...".
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)
