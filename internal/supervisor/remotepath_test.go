package supervisor

import (
	"testing"

	"smbsyncd/internal/model"

	"github.com/stretchr/testify/require"
)

func TestTranslateRemotePath(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		scenario string
		user     string
		logical  string
		want     string
		wantErr  bool
	}{
		{
			scenario: "absolute data path",
			user:     "alice-smb",
			logical:  "/projects/data/reports/q1",
			want:     "/alice-projects-data/reports/q1",
		},
		{
			scenario: "relative repo path",
			user:     "bob-smb",
			logical:  "media/repo",
			want:     "bob-media-repo",
		},
		{
			scenario: "dot segments are skipped, not resolved",
			user:     "alice-smb",
			logical:  "/./projects/data/../x",
			want:     "/alice-projects-data/x",
		},
		{
			scenario: "missing smb suffix",
			user:     "alice",
			logical:  "/projects/data",
			wantErr:  true,
		},
		{
			scenario: "only one component",
			user:     "alice-smb",
			logical:  "/data",
			wantErr:  true,
		},
		{
			scenario: "second component not data or repo",
			user:     "alice-smb",
			logical:  "/projects/stuff/x",
			wantErr:  true,
		},
		{
			scenario: "empty path",
			user:     "alice-smb",
			logical:  "",
			wantErr:  true,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()

			got, err := TranslateRemotePath(tc.user, tc.logical)
			if tc.wantErr {
				require.Error(t, err)
				require.Equal(t, model.KindBadRequest, model.KindOf(err))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestTranslateRemotePathDeterministic(t *testing.T) {
	t.Parallel()

	first, err := TranslateRemotePath("alice-smb", "/projects/data/x")
	require.NoError(t, err)
	second, err := TranslateRemotePath("alice-smb", "/projects/data/x")
	require.NoError(t, err)
	require.Equal(t, first, second)

	// The wire path's second component is no longer data/repo, so feeding
	// the output back in must fail.
	_, err = TranslateRemotePath("alice-smb", first)
	require.Error(t, err)
}
