package version

import "fmt"

const (
	// Version is the current version of feedsieve
	Version = "0.1.0"
)

// GetVersion returns the current version string
func GetVersion() string {
	return fmt.Sprintf("feedsieve %s", Version)
}

// UserAgent is sent with every outbound request.
func UserAgent() string {
	return fmt.Sprintf("feedsieve/%s (+https://github.com/feedsieve/feedsieve)", Version)
}
