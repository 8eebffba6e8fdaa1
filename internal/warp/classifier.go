package warp

import (
	"regexp"
	"strings"
)

// regexMetaChars are the characters that, when present in a warp
// pattern, force regex compilation instead of the §4.2 wildcard
// shortcuts. "*" is deliberately excluded: it is the wildcard the
// shortcut rules themselves handle, not a regex escape hatch.
const regexMetaChars = `+?^$[](){}|\`

// Classifier is a pure function from an inspected container to its
// Classification (§4.2). It is built once from configuration and is
// safe for concurrent use; Classify never mutates the Classifier or
// the container it is given.
type Classifier struct {
	targetLabel            string
	networkPreferenceLabel string

	matchWarpName func(name string) bool
}

// NewClassifier compiles warpPattern once per spec.md §4.2:
//
//  1. If the pattern contains any regex metacharacter, it is compiled
//     as a regular expression and anchored to match the whole name.
//  2. Otherwise, if it contains exactly the wildcard "*", one of the
//     four shortcut rules applies (prefix*, *suffix, a*b, or literal
//     equality when "*" is absent).
func NewClassifier(warpPattern, targetLabel, networkPreferenceLabel string) (*Classifier, error) {
	c := &Classifier{
		targetLabel:            targetLabel,
		networkPreferenceLabel: networkPreferenceLabel,
	}

	if strings.ContainsAny(warpPattern, regexMetaChars) {
		re, err := regexp.Compile("^(?:" + warpPattern + ")$")
		if err != nil {
			return nil, err
		}
		c.matchWarpName = re.MatchString
		return c, nil
	}

	c.matchWarpName = literalOrWildcardMatcher(warpPattern)
	return c, nil
}

// literalOrWildcardMatcher implements the ordered §4.2 shortcut rules
// for patterns containing only the "*" wildcard (none of the other
// regex metacharacters, since NewClassifier already routed those to
// regexp.Compile).
func literalOrWildcardMatcher(pattern string) func(string) bool {
	stars := strings.Count(pattern, "*")
	switch {
	case stars == 0:
		return func(name string) bool { return name == pattern }
	case strings.HasPrefix(pattern, "*") && stars == 1:
		suffix := strings.TrimPrefix(pattern, "*")
		return func(name string) bool { return strings.HasSuffix(name, suffix) }
	case strings.HasSuffix(pattern, "*") && stars == 1:
		prefix := strings.TrimSuffix(pattern, "*")
		return func(name string) bool { return strings.HasPrefix(name, prefix) }
	case stars == 1:
		parts := strings.SplitN(pattern, "*", 2)
		prefix, suffix := parts[0], parts[1]
		return func(name string) bool {
			return strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix)
		}
	default:
		return func(name string) bool { return name == pattern }
	}
}

// Classify maps an inspected container to Warp, Target, or Ignored
// (§4.2). It never mutates container.
func (c *Classifier) Classify(container ContainerInfo) Classification {
	if c.matchWarpName(container.Name) {
		if c.validatesAsWarp(container) {
			return Classification{
				Kind:          KindWarp,
				Container:     container,
				TargetNetwork: c.networkPreference(container),
			}
		}
		// A name match that fails warp validation is Ignored, never
		// reclassified as a target (§4.2).
		return Classification{Kind: KindIgnored}
	}

	if target, ok := container.Label(c.targetLabel); ok && target != "" {
		if len(container.Networks) > 0 {
			return Classification{Kind: KindTarget, Container: container, WarpTargetName: target}
		}
	}

	return Classification{Kind: KindIgnored}
}

// validatesAsWarp checks the network-attachment requirements of §4.2
// rule 1: networks non-empty, and if a preference label is set, that
// named network is actually attached.
func (c *Classifier) validatesAsWarp(container ContainerInfo) bool {
	if len(container.Networks) == 0 {
		return false
	}
	pref := c.networkPreference(container)
	if pref == "" {
		return true
	}
	_, ok := container.NetworkByName(pref)
	return ok
}

func (c *Classifier) networkPreference(container ContainerInfo) string {
	v, _ := container.Label(c.networkPreferenceLabel)
	return v
}
