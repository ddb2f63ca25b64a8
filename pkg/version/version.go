// Package version carries the gateway build identity.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is the firmware release, overridable at build time:
//
//	go build -ldflags "-X .../pkg/version.Version=1.4.2"
var Version = "0.1.0-dev"

// Commit is the VCS revision the build came from, if stamped.
var Commit = ""

// String returns the full build identity for logs and the status API.
func String() string {
	if Commit == "" {
		return Version
	}
	return Version + "+" + Commit
}

// Release represents a parsed "major.minor" release number.
type Release struct {
	Major uint16
	Minor uint16
}

// Parse parses a "major.minor" release string, ignoring any patch or
// pre-release suffix.
func Parse(s string) (Release, error) {
	parts := strings.SplitN(s, ".", 3)
	if len(parts) < 2 {
		return Release{}, fmt.Errorf("invalid release %q: expected major.minor", s)
	}

	major, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil || parts[0] == "" {
		return Release{}, fmt.Errorf("invalid release %q: bad major component", s)
	}

	minor, err := strconv.ParseUint(strings.SplitN(parts[1], "-", 2)[0], 10, 16)
	if err != nil {
		return Release{}, fmt.Errorf("invalid release %q: bad minor component", s)
	}

	return Release{Major: uint16(major), Minor: uint16(minor)}, nil
}

// String returns the release as "major.minor".
func (r Release) String() string {
	return fmt.Sprintf("%d.%d", r.Major, r.Minor)
}

// Compatible reports whether the other release shares the major number.
// Report consumers key parsing rules off the major version.
func (r Release) Compatible(other Release) bool {
	return r.Major == other.Major
}
