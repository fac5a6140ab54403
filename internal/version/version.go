package version

const APP = "postureguard"

// Set at build time with -ldflags "-X postureguard/internal/version.VERSION=...".
var (
	VERSION = "dev"
	COMMIT  = "unknown"
)
