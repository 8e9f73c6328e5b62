package junit

import "sigs.k8s.io/prow/pkg/secretutil"

// NewCensorer returns a censorer hiding the given secrets. Empty values are
// ignored.
func NewCensorer(secrets ...string) secretutil.Censorer {
	censorer := secretutil.NewCensorer()
	var values []string
	for _, secret := range secrets {
		if secret != "" {
			values = append(values, secret)
		}
	}
	censorer.Refresh(values...)
	return censorer
}

// CensorTestSuites censors every suite of a report.
func CensorTestSuites(censor secretutil.Censorer, suites *TestSuites) {
	if suites == nil {
		return
	}
	for _, suite := range suites.Suites {
		CensorTestSuite(censor, suite)
	}
}

// CensorTestSuite censors secret data in the fields of a jUnit test suite
// that carry step names and step output.
func CensorTestSuite(censor secretutil.Censorer, testSuite *TestSuite) {
	if testSuite == nil {
		return
	}
	testSuite.Name = censored(censor, testSuite.Name)
	for i := range testSuite.Properties {
		testSuite.Properties[i].Value = censored(censor, testSuite.Properties[i].Value)
	}
	for _, testCase := range testSuite.TestCases {
		testCase.Name = censored(censor, testCase.Name)
		if testCase.SkipMessage != nil {
			testCase.SkipMessage.Message = censored(censor, testCase.SkipMessage.Message)
		}
		if testCase.FailureOutput != nil {
			testCase.FailureOutput.Output = censored(censor, testCase.FailureOutput.Output)
			testCase.FailureOutput.Message = censored(censor, testCase.FailureOutput.Message)
		}
		testCase.SystemOut = censored(censor, testCase.SystemOut)
		testCase.SystemErr = censored(censor, testCase.SystemErr)
	}
	for i := range testSuite.Children {
		CensorTestSuite(censor, testSuite.Children[i])
	}
}

func censored(censor secretutil.Censorer, value string) string {
	raw := []byte(value)
	censor.Censor(&raw)
	return string(raw)
}
