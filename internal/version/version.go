// ABOUTME: Version and product identification
// ABOUTME: Reported in client/hello, stream/info, mDNS TXT records and the TUI
package version

const (
	Version      = "0.3.0"
	Product      = "mvxplay"
	Manufacturer = "mvxplay"
)

// UserAgent identifies this build to remote peers
func UserAgent() string {
	return Product + "/" + Version
}
