package version

import (
	_ "embed"
	"strings"
)

//go:embed version.txt
var embedded string

// Override is set at link time with -ldflags "-X .../version.Override=v1.2.3"
// and takes precedence over the embedded version file.
var Override string

func Get() string {
	if v := strings.TrimSpace(Override); v != "" {
		return v
	}
	return strings.TrimSpace(embedded)
}

// UserAgent is sent by HTTP downloads.
func UserAgent() string {
	return "amaterasu/" + Get()
}
