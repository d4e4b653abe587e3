// ABOUTME: Version information for the sounddevice tools
// ABOUTME: Reported by the CLI version flag and startup log
package version

import "fmt"

const (
	// Version is the release version
	Version = "0.3.0"

	// Product is the product name
	Product = "sounddevice"

	// Manufacturer is the maintainer name
	Manufacturer = "Resonate Protocol"
)

// String returns "sounddevice 0.3.0 (Resonate Protocol)"
func String() string {
	return fmt.Sprintf("%s %s (%s)", Product, Version, Manufacturer)
}
