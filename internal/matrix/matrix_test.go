package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ibeckermayer/shotgrid/internal/types"
)

var (
	desktop = types.DeviceProfile{Name: "desktop", Width: 1920, Height: 1080}
	mobile  = types.DeviceProfile{Name: "mobile", Width: 375, Height: 812}
)

func TestGenerate_CountAndUniqueness(t *testing.T) {
	urls := []string{"https://a.example", "https://b.example", "https://c.example"}
	browsers := []types.Browser{types.BrowserChrome, types.BrowserFirefox}
	devices := []types.DeviceProfile{desktop, mobile}

	cases := Generate(urls, browsers, devices)
	assert.Len(t, cases, len(urls)*len(browsers)*len(devices))

	seen := make(map[types.TestCase]bool)
	for _, tc := range cases {
		assert.False(t, seen[tc], "duplicate case %+v", tc)
		seen[tc] = true
	}
}

func TestGenerate_Order(t *testing.T) {
	cases := Generate(
		[]string{"https://a.example", "https://b.example"},
		[]types.Browser{types.BrowserChrome, types.BrowserEdge},
		[]types.DeviceProfile{desktop, mobile},
	)

	want := []types.TestCase{
		{URL: "https://a.example", Browser: types.BrowserChrome, Device: desktop},
		{URL: "https://a.example", Browser: types.BrowserChrome, Device: mobile},
		{URL: "https://a.example", Browser: types.BrowserEdge, Device: desktop},
		{URL: "https://a.example", Browser: types.BrowserEdge, Device: mobile},
		{URL: "https://b.example", Browser: types.BrowserChrome, Device: desktop},
		{URL: "https://b.example", Browser: types.BrowserChrome, Device: mobile},
		{URL: "https://b.example", Browser: types.BrowserEdge, Device: desktop},
		{URL: "https://b.example", Browser: types.BrowserEdge, Device: mobile},
	}
	assert.Equal(t, want, cases)
}

func TestGenerate_EmptyInputs(t *testing.T) {
	browsers := []types.Browser{types.BrowserChrome}
	devices := []types.DeviceProfile{desktop}

	assert.Empty(t, Generate(nil, browsers, devices))
	assert.Empty(t, Generate([]string{"https://a.example"}, nil, devices))
	assert.Empty(t, Generate([]string{"https://a.example"}, browsers, nil))
}
