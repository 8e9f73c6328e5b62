// Package polarion writes suite results in the jUnit dialect understood by
// the Polarion test management importer.
package polarion

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

const (
	// TestCaseIDProperty links a test case to its Polarion work item.
	TestCaseIDProperty = "polarion-testcase-id"
	// ProjectIDProperty names the Polarion project the run is imported into.
	ProjectIDProperty = "polarion-project-id"
	// CustomPropertyPrefix prefixes test run properties.
	CustomPropertyPrefix = "polarion-custom-"
)

type (
	// TestSuite represents polarion formatted test suite.
	TestSuite struct {
		XMLName    xml.Name   `xml:"testsuite"`
		Name       string     `xml:"name,attr"`
		Tests      int        `xml:"tests,attr"`
		Skipped    int        `xml:"skipped,attr"`
		Failures   int        `xml:"failures,attr"`
		Time       float64    `xml:"time,attr"`
		Properties Properties `xml:"properties"`
		TestCases  []TestCase `xml:"testcase"`
	}

	// TestCase represents polarion formatted test case.
	TestCase struct {
		Name           string          `xml:"name,attr"`
		Classname      string          `xml:"classname,attr,omitempty"`
		Time           float64         `xml:"time,attr"`
		Properties     Properties      `xml:"properties"`
		FailureMessage *FailureMessage `xml:"failure,omitempty"`
		Skipped        *Skipped        `xml:"skipped,omitempty"`
		SystemOut      string          `xml:"system-out,omitempty"`
	}

	// FailureMessage represents polarion fail message.
	FailureMessage struct {
		Type    string `xml:"type,attr"`
		Message string `xml:",chardata"`
	}

	// Skipped represents polarion skip message.
	Skipped struct {
		Message string `xml:"message,attr,omitempty"`
	}

	// Properties structure represents polarion test case properties.
	Properties struct {
		Property []Property `xml:"property"`
	}

	// Property represents polarion test case property.
	Property struct {
		Name  string `xml:"name,attr"`
		Value string `xml:"value,attr"`
	}
)

// NewTestSuite returns an empty suite carrying the project and the custom
// test run properties, sorted by name.
func NewTestSuite(name, projectID string, custom map[string]string) *TestSuite {
	suite := &TestSuite{Name: name}
	if projectID != "" {
		suite.Properties.Property = append(suite.Properties.Property, Property{Name: ProjectIDProperty, Value: projectID})
	}
	var keys []string
	for key := range custom {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		suite.Properties.Property = append(suite.Properties.Property, Property{Name: CustomPropertyPrefix + key, Value: custom[key]})
	}
	return suite
}

// Add appends a test case and keeps the counters of the suite current.
func (s *TestSuite) Add(testCase TestCase) {
	s.TestCases = append(s.TestCases, testCase)
	s.Tests++
	s.Time += testCase.Time
	if testCase.FailureMessage != nil {
		s.Failures++
	}
	if testCase.Skipped != nil {
		s.Skipped++
	}
}

// ID returns the property linking a test case to a Polarion work item.
func ID(id string) Property {
	return Property{Name: TestCaseIDProperty, Value: id}
}

// Write serializes the suite to path, creating the parent directory.
func Write(fs afero.Fs, path string, suite *TestSuite) error {
	buf := bytes.NewBufferString(xml.Header)
	encoder := xml.NewEncoder(buf)
	encoder.Indent("  ", "    ")
	if err := encoder.Encode(suite); err != nil {
		return fmt.Errorf("failed to generate Polarion report: %w", err)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := afero.WriteFile(fs, path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to create Polarion report file %s: %w", path, err)
	}
	return nil
}
