// Package version parses and compares application version strings.
//
// Parsing never fails. Strings that are not dotted numbers degrade to zero
// components, and identical raw strings always compare equal, so vendor
// identifiers like "Build _1234" or "2024.R2" still gate upgrades sensibly.
package version

import (
	"regexp"
	"strconv"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// Version is an immutable parsed version.
type Version struct {
	raw        string
	Major      int64
	Minor      int64
	Revision   int64
	Build      string
	Prerelease string
}

var (
	buildOnly     = regexp.MustCompile(`^Build\s*_?\s*(\d+)$`)
	leadingNumber = regexp.MustCompile(`^v?(\d+(?:\.\d+){0,3})`)
)

// Parse reads raw into a Version. "Build _<n>" reads as 0.0.0 with build n.
func Parse(raw string) Version {
	v := Version{raw: raw}
	s := strings.TrimSpace(raw)
	if s == "" {
		return v
	}

	if m := buildOnly.FindStringSubmatch(s); m != nil {
		v.Build = m[1]
		return v
	}

	if gv, err := goversion.NewVersion(s); err == nil {
		v.fill(gv)
		return v
	}

	if m := leadingNumber.FindStringSubmatch(s); m != nil {
		if gv, err := goversion.NewVersion(m[1]); err == nil {
			v.fill(gv)
		}
	}
	return v
}

func (v *Version) fill(gv *goversion.Version) {
	seg := gv.Segments64()
	v.Major, v.Minor, v.Revision = seg[0], seg[1], seg[2]
	v.Prerelease = gv.Prerelease()
	v.Build = gv.Metadata()
	if v.Build == "" && len(seg) > 3 {
		v.Build = strconv.FormatInt(seg[3], 10)
	}
}

// String returns the string Parse was given.
func (v Version) String() string { return v.raw }

// Compare returns -1, 0 or 1.
func (v Version) Compare(o Version) int {
	if v.raw == o.raw {
		return 0
	}
	if c := cmpInt(v.Major, o.Major); c != 0 {
		return c
	}
	if c := cmpInt(v.Minor, o.Minor); c != 0 {
		return c
	}
	if c := cmpInt(v.Revision, o.Revision); c != 0 {
		return c
	}
	if c := comparePrerelease(v.Prerelease, o.Prerelease); c != 0 {
		return c
	}
	return compareBuild(v.Build, o.Build)
}

// Eq reports whether v and o are the same version.
func (v Version) Eq(o Version) bool { return v.Compare(o) == 0 }

// Lt reports whether v is older than o.
func (v Version) Lt(o Version) bool { return v.Compare(o) < 0 }

// Gt reports whether v is newer than o.
func (v Version) Gt(o Version) bool { return v.Compare(o) > 0 }

// Gte reports whether v is o or newer.
func (v Version) Gte(o Version) bool { return v.Compare(o) >= 0 }

// IsZero reports whether nothing numeric could be read from the raw string.
func (v Version) IsZero() bool {
	return v.Major == 0 && v.Minor == 0 && v.Revision == 0 && v.Build == "" && v.Prerelease == ""
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// A release ranks above any prerelease of the same version.
func comparePrerelease(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == "":
		return 1
	case b == "":
		return -1
	}
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := compareIdent(as[i], bs[i]); c != 0 {
			return c
		}
	}
	return cmpInt(int64(len(as)), int64(len(bs)))
}

// An empty build ranks below any build.
func compareBuild(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == "":
		return -1
	case b == "":
		return 1
	}
	return compareIdent(a, b)
}

func compareIdent(a, b string) int {
	an, aerr := strconv.ParseInt(a, 10, 64)
	bn, berr := strconv.ParseInt(b, 10, 64)
	if aerr == nil && berr == nil {
		return cmpInt(an, bn)
	}
	return strings.Compare(a, b)
}
