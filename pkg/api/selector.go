package api

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"

	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/util/sets"
)

// TagPredicate decides whether a set of tags is selected.
type TagPredicate func(tags sets.Set[string]) bool

// RecordPredicate decides whether a record is selected.
type RecordPredicate func(record SuiteRecord) bool

// AllOf selects tag sets holding every one of the tags.
func AllOf(tags ...string) TagPredicate {
	required := sets.New[string](tags...)
	return func(have sets.Set[string]) bool {
		return have.IsSuperset(required)
	}
}

// AnyOf selects tag sets holding at least one of the tags.
func AnyOf(tags ...string) TagPredicate {
	wanted := sets.New[string](tags...)
	return func(have sets.Set[string]) bool {
		return have.HasAny(sets.List(wanted)...)
	}
}

// NoneOf selects tag sets holding none of the tags.
func NoneOf(tags ...string) TagPredicate {
	return Not(AnyOf(tags...))
}

// Not negates a predicate.
func Not(predicate TagPredicate) TagPredicate {
	return func(have sets.Set[string]) bool {
		return !predicate(have)
	}
}

// And selects tag sets that every predicate selects. No predicates select
// everything.
func And(predicates ...TagPredicate) TagPredicate {
	return func(have sets.Set[string]) bool {
		for _, predicate := range predicates {
			if !predicate(have) {
				return false
			}
		}
		return true
	}
}

// ParseTagSelector parses a comma separated list of tag requirements. A bare
// tag must be present and a tag prefixed with `!` must be absent, so
// `tier-2,rgw,!sanity` selects records tagged tier-2 and rgw but not sanity.
// The grammar is the one of label selectors restricted to existence checks.
func ParseTagSelector(expression string) (TagPredicate, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return And(), nil
	}
	selector, err := labels.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid tag selector %q: %w", expression, err)
	}
	requirements, _ := selector.Requirements()
	for _, requirement := range requirements {
		if len(requirement.Values()) != 0 {
			return nil, fmt.Errorf("invalid tag selector %q: tags take no values, got %s", expression, requirement.String())
		}
	}
	return func(have sets.Set[string]) bool {
		set := labels.Set{}
		for tag := range have {
			set[tag] = ""
		}
		return selector.Matches(set)
	}, nil
}

// WithTags lifts a tag predicate to records.
func WithTags(predicate TagPredicate) RecordPredicate {
	return func(record SuiteRecord) bool {
		return predicate(record.Metadata.Set())
	}
}

// OnPlatform selects records built for the platform.
func OnPlatform(platform string) RecordPredicate {
	return func(record SuiteRecord) bool {
		return record.Platform == platform
	}
}

// BuildAtLeast selects records whose build version is at least the given one.
// Records with a build version that does not parse are never selected.
func BuildAtLeast(minimum string) (RecordPredicate, error) {
	floor, err := version.NewVersion(minimum)
	if err != nil {
		return nil, fmt.Errorf("invalid build version %q: %w", minimum, err)
	}
	return func(record SuiteRecord) bool {
		build, err := version.NewVersion(record.BuildVersion)
		if err != nil {
			return false
		}
		return build.GreaterThanOrEqual(floor)
	}, nil
}
