package session

import (
	"sort"
	"sync"
)

// Version is reported in the default User-Agent. Binaries overwrite it at
// startup through SetVersion.
var Version = "dev"

var (
	registerOnce sync.Once
	catalog      []KindInfo
	userAgent    string
)

// KindInfo describes one entry of the error catalog.
type KindInfo struct {
	Kind    Kind
	Name    string
	Parents []string
}

// SetVersion overrides Version. It has no effect after Register has run.
func SetVersion(v string) {
	if v != "" {
		Version = v
	}
}

// Register publishes the error catalog and the default User-Agent. It runs
// once per process; later calls are no-ops. New calls it implicitly.
func Register() {
	registerOnce.Do(func() {
		userAgent = "sesh/" + Version

		catalog = make([]KindInfo, 0, len(kinds))
		for k, info := range kinds {
			parents := make([]string, len(info.parents))
			for i, p := range info.parents {
				parents[i] = p.String()
			}
			catalog = append(catalog, KindInfo{Kind: k, Name: info.name, Parents: parents})
		}
		sort.Slice(catalog, func(i, j int) bool { return catalog[i].Kind < catalog[j].Kind })
	})
}

// Kinds returns the error catalog ordered by kind.
func Kinds() []KindInfo {
	Register()
	return append([]KindInfo(nil), catalog...)
}

// DefaultUserAgent returns the User-Agent sent when none is configured.
func DefaultUserAgent() string {
	Register()
	return userAgent
}
