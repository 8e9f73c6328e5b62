package api

import (
	"testing"

	"k8s.io/apimachinery/pkg/util/sets"
)

func TestTagPredicates(t *testing.T) {
	tags := sets.New[string]("tier-2", "rgw", "stage-2")
	for _, tc := range []struct {
		name      string
		predicate TagPredicate
		expected  bool
	}{
		{name: "all present", predicate: AllOf("tier-2", "rgw"), expected: true},
		{name: "one missing", predicate: AllOf("tier-2", "cephfs")},
		{name: "any with one present", predicate: AnyOf("cephfs", "rgw"), expected: true},
		{name: "any with none present", predicate: AnyOf("cephfs", "rbd")},
		{name: "none of absent tags", predicate: NoneOf("cephfs", "rbd"), expected: true},
		{name: "none of with present tag", predicate: NoneOf("rgw")},
		{name: "empty and selects everything", predicate: And(), expected: true},
		{name: "and of both", predicate: And(AllOf("rgw"), NoneOf("sanity")), expected: true},
		{name: "and with one rejecting", predicate: And(AllOf("rgw"), NoneOf("stage-2"))},
		{name: "not", predicate: Not(AllOf("rgw"))},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if actual := tc.predicate(tags); actual != tc.expected {
				t.Errorf("expected %t, got %t", tc.expected, actual)
			}
		})
	}
}

func TestParseTagSelector(t *testing.T) {
	tags := sets.New[string]("tier-2", "rgw", "Stage-2")
	for _, tc := range []struct {
		name        string
		expression  string
		expected    bool
		expectedErr bool
	}{
		{name: "empty selects everything", expression: "", expected: true},
		{name: "single present tag", expression: "rgw", expected: true},
		{name: "conjunction", expression: "tier-2,rgw", expected: true},
		{name: "conjunction with absent tag", expression: "tier-2,cephfs"},
		{name: "negation of absent tag", expression: "rgw,!sanity", expected: true},
		{name: "negation of present tag", expression: "!rgw"},
		{name: "capitalized tags", expression: "Stage-2", expected: true},
		{name: "values are rejected", expression: "tier=2", expectedErr: true},
		{name: "garbage is rejected", expression: "tier-2,,(", expectedErr: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			predicate, err := ParseTagSelector(tc.expression)
			if (err != nil) != tc.expectedErr {
				t.Fatalf("expected error %t, got %v", tc.expectedErr, err)
			}
			if err != nil {
				return
			}
			if actual := predicate(tags); actual != tc.expected {
				t.Errorf("expected %t, got %t", tc.expected, actual)
			}
		})
	}
}

func TestRecordPredicates(t *testing.T) {
	record := SuiteRecord{Name: "Tier-0 Fs", Platform: "rhel-8", BuildVersion: "5.3", Metadata: Tags{"tier-1", "cephfs"}}

	if !WithTags(AllOf("cephfs"))(record) {
		t.Error("expected the record to be selected by its tags")
	}
	if !OnPlatform("rhel-8")(record) {
		t.Error("expected the record to be selected by its platform")
	}
	if OnPlatform("rhel-9")(record) {
		t.Error("expected the record not to be selected by another platform")
	}

	for _, tc := range []struct {
		minimum  string
		build    string
		expected bool
	}{
		{minimum: "5.0", build: "5.3", expected: true},
		{minimum: "5.3", build: "5.3", expected: true},
		{minimum: "5.10", build: "5.3"},
		{minimum: "6.0", build: "5.3"},
		{minimum: "5.0", build: "not-a-version"},
	} {
		predicate, err := BuildAtLeast(tc.minimum)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		record.BuildVersion = tc.build
		if actual := predicate(record); actual != tc.expected {
			t.Errorf("build %s against minimum %s: expected %t, got %t", tc.build, tc.minimum, tc.expected, actual)
		}
	}

	if _, err := BuildAtLeast("latest"); err == nil {
		t.Error("expected an invalid minimum to be rejected")
	}
}
