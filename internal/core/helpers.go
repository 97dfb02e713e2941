package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// IsLatest reports whether selector asks for the newest stable release.
func IsLatest(selector string) bool {
	s := strings.TrimSpace(selector)
	return s == "" || strings.EqualFold(s, LatestVersion)
}

// SelectVersion picks one of the available versions for selector.
//
// "latest" (or empty) returns the highest stable semantic version. An exact
// match wins over constraint parsing, so non-semver names like "24w14a" can
// still be pinned. Anything else is treated as a semver constraint.
// Versions that do not parse as semver are ignored for latest and constraints.
func SelectVersion(selector string, available []string) (string, error) {
	if len(available) == 0 {
		return "", fmt.Errorf("%w: no versions published", ErrNoMatchingVersion)
	}

	selector = strings.TrimSpace(selector)
	if !IsLatest(selector) {
		for _, v := range available {
			if v == selector {
				return v, nil
			}
		}
	}

	var constraint *semver.Constraints
	if !IsLatest(selector) {
		c, err := semver.NewConstraint(selector)
		if err != nil {
			return "", fmt.Errorf("%w: %q is neither a published version nor a valid constraint", ErrNoMatchingVersion, selector)
		}
		constraint = c
	}

	type candidate struct {
		raw string
		v   *semver.Version
	}
	var candidates []candidate
	for _, raw := range available {
		v, err := semver.NewVersion(raw)
		if err != nil {
			continue
		}
		if constraint == nil && v.Prerelease() != "" {
			continue
		}
		if constraint != nil && !constraint.Check(v) {
			continue
		}
		candidates = append(candidates, candidate{raw: raw, v: v})
	}

	if len(candidates) == 0 {
		if constraint == nil {
			return "", fmt.Errorf("%w: no stable release", ErrNoMatchingVersion)
		}
		return "", fmt.Errorf("%w: nothing satisfies %q", ErrNoMatchingVersion, selector)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].v.GreaterThan(candidates[j].v)
	})
	return candidates[0].raw, nil
}

// QualifiedBuild joins a game version and a build number into a build
// identifier. Providers that restart build numbering for every game
// version use it so equal numbers of different versions never compare equal.
func QualifiedBuild(version, number string) string {
	return version + "-" + number
}
