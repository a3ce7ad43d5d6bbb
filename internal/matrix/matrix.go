// Package matrix enumerates the test cases of a run.
package matrix

import "github.com/ibeckermayer/shotgrid/internal/types"

// Generate returns every (url, browser, device) combination, url outer,
// browser middle and device inner. An empty input yields no cases.
func Generate(urls []string, browsers []types.Browser, devices []types.DeviceProfile) []types.TestCase {
	cases := make([]types.TestCase, 0, len(urls)*len(browsers)*len(devices))
	for _, u := range urls {
		for _, b := range browsers {
			for _, d := range devices {
				cases = append(cases, types.TestCase{URL: u, Browser: b, Device: d})
			}
		}
	}
	return cases
}
