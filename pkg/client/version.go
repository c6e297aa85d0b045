package client

import (
	"strconv"
	"strings"
)

// versionBefore reports whether version is strictly older than "major.minor.patch".
// Malformed versions are treated as older, so the back-compat path is taken
// conservatively rather than silently skipped. Keeping this as a single
// comparison point avoids the quirk being re-checked ad hoc at each call
// site (§9).
func versionBefore(version string, major, minor, patch int) bool {
	parts := strings.SplitN(version, ".", 3)
	got := [3]int{}
	for i := 0; i < len(parts) && i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return true
		}
		got[i] = n
	}
	want := [3]int{major, minor, patch}
	for i := 0; i < 3; i++ {
		if got[i] != want[i] {
			return got[i] < want[i]
		}
	}
	return false
}

// needsHashOpenFrame reports the one-line WS back-compat policy: servers
// older than 3.6.0 expect a `{hash: session_hash}` frame immediately on
// socket open (§4.6).
func needsHashOpenFrame(serverVersion string) bool {
	return versionBefore(serverVersion, 3, 6, 0)
}
