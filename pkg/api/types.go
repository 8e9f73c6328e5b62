package api

import (
	"encoding/json"
	"fmt"
	"sort"

	"k8s.io/apimachinery/pkg/util/sets"
)

// SuiteTable is the ordered content of a metadata file. The order of the
// records is the order in which they were authored and is never changed.
type SuiteTable []SuiteRecord

// SuiteRecord maps a named test suite to the documents needed to run it
// and to the tags used to schedule it.
type SuiteRecord struct {
	// Name identifies the suite. It is expected to be unique within a table.
	Name string `json:"name"`
	// SuitePath points at the suite definition document, relative to the
	// root of the catalogue.
	SuitePath string `json:"suite"`
	// GlobalConfPath points at the document describing the cluster topology
	// the suite runs against.
	GlobalConfPath string `json:"global-conf"`
	// Platform is the operating system / build platform identifier,
	// e.g. rhel-8.
	Platform string `json:"platform"`
	// BuildVersion is the product build the suite qualifies, e.g. 5.3.
	BuildVersion string `json:"rhbuild"`
	// Inventory maps a deployment environment to its resource allocation file.
	Inventory map[string]string `json:"inventory"`
	// Metadata holds the scheduling tags: tier, frequency, functional group.
	Metadata Tags `json:"metadata"`
}

// InventoryFor returns the inventory configured for the given environment.
func (r SuiteRecord) InventoryFor(environment string) (string, bool) {
	path, ok := r.Inventory[environment]
	return path, ok
}

// Environments lists the configured inventory environments in sorted order.
func (r SuiteRecord) Environments() []string {
	var envs []string
	for env := range r.Inventory {
		envs = append(envs, env)
	}
	sort.Strings(envs)
	return envs
}

// Tags are the scheduling tags of a suite. They keep the authored order so
// that records serialize back verbatim; use Set for membership questions.
type Tags []string

// Set returns the tags as a set.
func (t Tags) Set() sets.Set[string] {
	return sets.New[string](t...)
}

// Has determines if the tag is present.
func (t Tags) Has(tag string) bool {
	for _, item := range t {
		if item == tag {
			return true
		}
	}
	return false
}

// SuiteDefinition is the content of a suite document: the steps to hand to
// the test execution engine, in execution order.
type SuiteDefinition struct {
	Tests []TestStep `json:"tests"`
}

// TestStep is a single invocation of a module known to the test execution
// engine.
type TestStep struct {
	// Name is the human readable name of the step.
	Name string `json:"name"`
	// Module names the unit the engine invokes, e.g. test_ansible.py.
	Module string `json:"module"`
	// Config is passed to the module untouched. Each module owns its schema.
	Config map[string]interface{} `json:"config"`
	// Desc is a free form description.
	Desc string `json:"desc,omitempty"`
	// PolarionID links the step to a test case in the test management tool.
	PolarionID string `json:"polarion-id,omitempty"`
	// AbortOnFail stops the suite when this step fails.
	AbortOnFail bool `json:"abort-on-fail,omitempty"`
	// DestroyCluster asks the engine to tear the cluster down once the suite
	// is over.
	DestroyCluster *bool `json:"destroy-cluster,omitempty"`
	// TimeoutSeconds bounds the execution of the step.
	TimeoutSeconds *int `json:"timeout,omitempty"`
}

// testEntry is the conventional wrapped form of a step in suite documents:
//
//	tests:
//	  - test:
//	      name: install ceph pre-requisites
//	      module: install_prereq.py
type testEntry struct {
	Test *TestStep `json:"test,omitempty"`
}

// UnmarshalJSON accepts both the bare and the `test:` wrapped form of a step.
func (s *TestStep) UnmarshalJSON(data []byte) error {
	var wrapped testEntry
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	if wrapped.Test != nil {
		*s = *wrapped.Test
		return nil
	}
	// the alias drops the methods so we do not recurse
	type plain TestStep
	var step plain
	if err := json.Unmarshal(data, &step); err != nil {
		return err
	}
	*s = TestStep(step)
	return nil
}

// GlobalConfig is the cluster topology document a suite runs against. The
// content is owned by the execution engine; only the cluster names are
// interpreted here.
type GlobalConfig struct {
	Globals []map[string]interface{} `json:"globals"`
}

// Clusters returns the names of the clusters declared in the document, in
// the order they are declared.
func (g GlobalConfig) Clusters() []string {
	var names []string
	for _, item := range g.Globals {
		var keys []string
		for key := range item {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			cluster, ok := item[key].(map[string]interface{})
			if !ok {
				names = append(names, key)
				continue
			}
			if name, ok := cluster["name"].(string); ok && name != "" {
				names = append(names, name)
			} else {
				names = append(names, key)
			}
		}
	}
	return names
}

// String returns a short identifier of the record suitable for logs.
func (r SuiteRecord) String() string {
	return fmt.Sprintf("%s (%s, %s/%s)", r.Name, r.SuitePath, r.Platform, r.BuildVersion)
}
