package version

var (
	// GitCommit is the current HEAD set using ldflags.
	GitCommit string

	// Version is the built softwares version.
	Version = VaultHubSemVer
)

func init() {
	if GitCommit != "" {
		Version += "-" + GitCommit
	}
}

const (
	// VaultHubSemVer is the semantic version of the node software.
	// Must be a string because release scripts read this file.
	VaultHubSemVer = "0.3.0"

	// ReportFormat names the leaf encoding of published report trees.
	// Roots built with a different format do not verify.
	ReportFormat = "standard-v1"
)
