// Package version provides version information for the oracle-relayer application.
package version

// Version is the current version of the oracle-relayer application.
const Version = "0.1.0"

// AgentString returns the full agent string with versioning.
func AgentString() string {
	return "oracle-relayer@v" + Version
}
