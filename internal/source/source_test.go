package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	bundle := Entry{Name: "Foo.app", IsDir: true, HasBundleDescriptor: true}
	cases := []struct {
		name    string
		entries []Entry
		dest    string
		want    Resolved
		wantErr bool
	}{
		{
			name:    "bundle wins over pkg",
			entries: []Entry{{Name: "Foo.pkg"}, bundle},
			dest:    "/Applications/Foo.app",
			want:    Resolved{Kind: ApplicationBundle, Path: "Foo.app"},
		},
		{
			name:    "single pkg",
			entries: []Entry{{Name: "Install Foo.pkg"}, {Name: ".background", IsDir: true}},
			dest:    "/Applications/Foo.app",
			want:    Resolved{Kind: PackageInstaller, Path: "Install Foo.pkg"},
		},
		{
			name:    "directory named like destination without descriptor is a plain file",
			entries: []Entry{{Name: "Foo.app", IsDir: true}},
			dest:    "/Applications/Foo.app",
			want:    Resolved{Kind: PlainFile, Path: "Foo.app"},
		},
		{
			name:    "plain file",
			entries: []Entry{{Name: "README"}, {Name: "gh"}},
			dest:    "/usr/local/bin/gh",
			want:    Resolved{Kind: PlainFile, Path: "gh"},
		},
		{
			name:    "two pkgs and no match",
			entries: []Entry{{Name: "A.pkg"}, {Name: "B.pkg"}},
			dest:    "/Applications/Foo.app",
			wantErr: true,
		},
		{
			name:    "two pkgs but a matching bundle",
			entries: []Entry{{Name: "A.pkg"}, {Name: "B.pkg"}, bundle},
			dest:    "/Applications/Foo.app",
			want:    Resolved{Kind: ApplicationBundle, Path: "Foo.app"},
		},
		{
			name:    "nothing matches",
			entries: []Entry{{Name: "Bar.app", IsDir: true, HasBundleDescriptor: true}},
			dest:    "/Applications/Foo.app",
			wantErr: true,
		},
		{
			name:    "empty",
			dest:    "/Applications/Foo.app",
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Classify(tc.entries, tc.dest)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrNotFound)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Classify() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolveOnDisk(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Foo.app", "Contents"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Foo.app", "Contents", "Info.plist"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Foo.pkg"), nil, 0644))

	got, err := Resolve(dir, "/Applications/Foo.app")
	require.NoError(t, err)
	assert.Equal(t, ApplicationBundle, got.Kind)
	assert.Equal(t, filepath.Join(dir, "Foo.app"), got.Path)

	_, err = Resolve(dir, "/Applications/Bar.app")
	require.NoError(t, err, "falls back to the single pkg")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Other.pkg"), nil, 0644))
	_, err = Resolve(dir, "/Applications/Bar.app")
	require.ErrorIs(t, err, ErrNotFound)
}
