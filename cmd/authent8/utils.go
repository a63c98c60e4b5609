package authent8

import (
	"fmt"
	"os"

	semver3 "github.com/blang/semver"
	semver "github.com/blang/semver/v4"
	"github.com/rhysd/go-github-selfupdate/selfupdate"
)

// selfUpdate replaces the running binary with the latest GitHub release,
// reporting what it did. A version string that fails to parse (dev builds)
// is treated as 0.0.0 so any release wins.
func selfUpdate() error {
	ver, err := semver.ParseTolerant(version)
	if err != nil {
		ver = semver.MustParse("0.0.0")
	}
	latest, err := selfupdate.UpdateSelf(semver3.MustParse(ver.String()), "authent8/authent8")
	if err != nil {
		return fmt.Errorf("self-update: %w", err)
	}
	if latest.Version.String() == ver.String() {
		fmt.Fprintf(os.Stderr, "authent8 %s is already the latest version\n", version)
	} else {
		fmt.Fprintf(os.Stderr, "updated to authent8 %s\n", latest.Version)
	}
	return nil
}

func pickString(cli string, local, global *string) string {
	if cli != "" {
		return cli
	}
	if local != nil && *local != "" {
		return *local
	}
	if global != nil && *global != "" {
		return *global
	}
	return ""
}

func pickInt(cli int, local, global *int) int {
	if cli != 0 {
		return cli
	}
	if local != nil && *local != 0 {
		return *local
	}
	if global != nil && *global != 0 {
		return *global
	}
	return 0
}

func pickBool(cli bool, local, global *bool) bool {
	if cli {
		return true
	}
	if local != nil {
		return *local
	}
	if global != nil {
		return *global
	}
	return false
}
