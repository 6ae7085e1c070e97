package supervisor

import (
	"strings"

	"smbsyncd/internal/model"
)

const smbUserSuffix = "-smb"

// TranslateRemotePath turns a logical SMB folder into the wire path handed
// to the sync binary. The SMB user must carry the "-smb" suffix; the folder
// needs at least <scope>/<kind> components with kind "data" or "repo". The
// wire path's first segment becomes "<user>-<scope>-<kind>".
func TranslateRemotePath(smbUser, logical string) (string, error) {
	user, ok := strings.CutSuffix(smbUser, smbUserSuffix)
	if !ok || user == "" {
		return "", model.BadRequest("SMB user %q does not end with %q", smbUser, smbUserSuffix)
	}

	comps := normalComponents(logical)
	if len(comps) < 2 {
		return "", errBadFolder()
	}

	scope, kind := comps[0], comps[1]
	if kind != "data" && kind != "repo" {
		return "", errBadFolder()
	}

	segs := append([]string{user + "-" + scope + "-" + kind}, comps[2:]...)
	wire := strings.Join(segs, "/")
	if strings.HasPrefix(logical, "/") {
		wire = "/" + wire
	}
	return wire, nil
}

// normalComponents drops root, current-directory and parent-directory
// markers and empty segments.
func normalComponents(p string) []string {
	var out []string
	for _, c := range strings.Split(p, "/") {
		switch c {
		case "", ".", "..":
			continue
		}
		out = append(out, c)
	}
	return out
}

func errBadFolder() error {
	return model.BadRequest("You did not correctly put in the SMB folder!")
}
