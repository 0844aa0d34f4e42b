package translator

// Version information for mysterria-translator.
// These values can be overridden at build time using ldflags:
//
//	go build -ldflags "-X github.com/mc-mysterria/mysterria-translator-sub000.GitCommit=abc1234"
const (
	// Name is the application name.
	Name = "mysterria-translator"

	// Description is a short description of the application.
	Description = "Chat translation with backend fallback, rate-limit suspension and caching"

	// Version is the semantic version of the application.
	Version = "0.3.0"

	// Repository is the source code repository URL.
	Repository = "https://github.com/mc-mysterria/mysterria-translator"
)

// BuildInfo contains build-time information.
// These are typically set via ldflags during build.
var (
	// GitCommit is the git commit hash.
	GitCommit = "unknown"

	// BuildDate is the build timestamp.
	BuildDate = "unknown"
)

// FullVersion returns the version string with optional build info.
func FullVersion() string {
	v := Version
	if GitCommit != "unknown" && GitCommit != "" {
		short := GitCommit
		if len(short) > 7 {
			short = short[:7]
		}
		v += "+" + short
	}
	return v
}

// UserAgent returns a user agent string for HTTP requests.
func UserAgent() string {
	return Name + "/" + Version
}
