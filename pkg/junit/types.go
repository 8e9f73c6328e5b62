// Package junit holds the jUnit report model written for every suite run.
package junit

import (
	"encoding/xml"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// TestSuites is the top-level element of a jUnit report.
type TestSuites struct {
	XMLName xml.Name     `xml:"testsuites"`
	Suites  []*TestSuite `xml:"testsuite"`
}

// TestSuite groups the test cases of a single suite run.
type TestSuite struct {
	XMLName    xml.Name             `xml:"testsuite"`
	Name       string               `xml:"name,attr"`
	NumTests   uint                 `xml:"tests,attr"`
	NumSkipped uint                 `xml:"skipped,attr"`
	NumFailed  uint                 `xml:"failures,attr"`
	Duration   float64              `xml:"time,attr"`
	Properties []*TestSuiteProperty `xml:"properties,omitempty>property,omitempty"`
	TestCases  []*TestCase          `xml:"testcase"`
	Children   []*TestSuite         `xml:"testsuite"`
}

// TestSuiteProperty is a name/value pair attached to a suite.
type TestSuiteProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// TestCase is the outcome of a single step.
type TestCase struct {
	XMLName       xml.Name       `xml:"testcase"`
	Name          string         `xml:"name,attr"`
	Classname     string         `xml:"classname,attr,omitempty"`
	Duration      float64        `xml:"time,attr"`
	SkipMessage   *SkipMessage   `xml:"skipped"`
	FailureOutput *FailureOutput `xml:"failure"`
	SystemOut     string         `xml:"system-out,omitempty"`
	SystemErr     string         `xml:"system-err,omitempty"`
}

// SkipMessage marks a test case as skipped.
type SkipMessage struct {
	Message string `xml:"message,attr"`
}

// FailureOutput marks a test case as failed.
type FailureOutput struct {
	Message string `xml:"message,attr"`
	Output  string `xml:",chardata"`
}

// Write serializes the suites to path, creating the parent directory.
func Write(fs afero.Fs, path string, suites *TestSuites) error {
	raw, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal jUnit report: %w", err)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := afero.WriteFile(fs, path, append([]byte(xml.Header), raw...), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
