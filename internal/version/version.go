// Package version compares software versions reported by a device under test.
package version

import (
	"fmt"
	"regexp"
	"strconv"

	goversion "github.com/hashicorp/go-version"
)

// postRelease splits a post-release off a version: "1.2.post3",
// "1.2-r3", or a bare numeric package revision as in "1.2-3".
var postRelease = regexp.MustCompile(`^(.+?)(?:[-_.]?(?:post|rev|r)[-_.]?(\d*)|-(\d+))$`)

// noPost sorts a release before any of its post-releases.
const noPost = -1

// IsMinimum reports whether candidate is at least minimum.
//
// A candidate that does not parse as a version is usually a branch name
// (e.g. "master" or "feature-x") and counts as new enough. An invalid
// minimum is a caller bug and is returned as an error.
func IsMinimum(candidate, minimum string) (bool, error) {
	floor, floorPost, err := parse(minimum)
	if err != nil {
		return false, fmt.Errorf("invalid minimum version %q: %w", minimum, err)
	}

	v, post, err := parse(candidate)
	if err != nil {
		return true, nil
	}

	if c := v.Compare(floor); c != 0 {
		return c > 0, nil
	}
	return post >= floorPost, nil
}

// parse returns the release part of s and its post-release number, or
// noPost when there is none.
func parse(s string) (*goversion.Version, int, error) {
	if m := postRelease.FindStringSubmatch(s); m != nil {
		if v, err := goversion.NewVersion(m[1]); err == nil {
			post := 0
			if digits := m[2] + m[3]; digits != "" {
				if post, err = strconv.Atoi(digits); err != nil {
					return nil, 0, err
				}
			}
			return v, post, nil
		}
	}

	v, err := goversion.NewVersion(s)
	if err != nil {
		return nil, 0, err
	}
	return v, noPost, nil
}
