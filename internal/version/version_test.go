package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseComponents(t *testing.T) {
	cases := []struct {
		raw               string
		major, minor, rev int64
		build, prerelease string
	}{
		{"10.1.5", 10, 1, 5, "", ""},
		{"v2.3", 2, 3, 0, "", ""},
		{"1.2.3-beta.2+456", 1, 2, 3, "456", "beta.2"},
		{"16.89.24091630", 16, 89, 24091630, "", ""},
		{"7.1.2.1045", 7, 1, 2, "1045", ""},
		{"Build _4180", 0, 0, 0, "4180", ""},
		{"2024.R2", 2024, 0, 0, "", ""},
		{"nightly", 0, 0, 0, "", ""},
		{"", 0, 0, 0, "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			v := Parse(tc.raw)
			assert.Equal(t, tc.major, v.Major)
			assert.Equal(t, tc.minor, v.Minor)
			assert.Equal(t, tc.rev, v.Revision)
			assert.Equal(t, tc.build, v.Build)
			assert.Equal(t, tc.prerelease, v.Prerelease)
			assert.Equal(t, tc.raw, v.String())
		})
	}
}

func TestCompare(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0", "1.0.0", 0},
		{"1.0.1", "1.0.0", 1},
		{"1.10.0", "1.9.9", 1},
		{"2.0.0-rc.1", "2.0.0", -1},
		{"2.0.0-rc.2", "2.0.0-rc.10", -1},
		{"2.0.0-alpha", "2.0.0-beta", -1},
		{"2.0.0-rc", "2.0.0-rc.1", -1},
		{"1.2.3+9", "1.2.3+10", -1},
		{"1.2.3", "1.2.3+1", -1},
		{"7.1.2.1045", "7.1.2.999", 1},
		{"Build _4180", "Build _4179", 1},
		{"Build _4180", "0.0+4180", 0},
		{"Build _4180", "0.1", -1},
		{"nightly", "nightly", 0},
		// unparsed strings degrade to zero and compare structurally equal
		{"nightly", "weekly", 0},
	}
	for _, tc := range cases {
		t.Run(tc.a+" vs "+tc.b, func(t *testing.T) {
			a, b := Parse(tc.a), Parse(tc.b)
			assert.Equal(t, tc.want, a.Compare(b))
			assert.Equal(t, -tc.want, b.Compare(a))
		})
	}
}

func TestOperatorsAgree(t *testing.T) {
	raws := []string{"1.0", "1.0.1", "2.0.0-rc.1", "2.0.0", "2.0.0+5", "Build _12", "odd"}
	for _, x := range raws {
		for _, y := range raws {
			a, b := Parse(x), Parse(y)
			assert.Equal(t, a.Lt(b), b.Gt(a), "%s < %s", x, y)
			assert.Equal(t, a.Eq(b), b.Eq(a), "%s == %s", x, y)
			assert.Equal(t, a.Gte(b), !a.Lt(b), "%s >= %s", x, y)
		}
	}
}

func TestRawEqualityShortCircuit(t *testing.T) {
	v := Parse("Build _ abc")
	assert.True(t, v.Eq(Parse("Build _ abc")))
	assert.True(t, v.IsZero())
}
