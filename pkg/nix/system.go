package nix

import "runtime"

// CurrentSystem returns the evaluator's platform identifier for the
// host, e.g. "x86_64-linux".
func CurrentSystem() string {
	arch := runtime.GOARCH
	switch arch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	case "386":
		arch = "i686"
	}

	os := runtime.GOOS
	if os == "darwin" {
		return arch + "-darwin"
	}
	return arch + "-" + os
}
