package domain

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/spaolacci/murmur3"
)

// DefaultInstanceStem names instances whose locator has no usable basename.
const DefaultInstanceStem = "default"

// DeriveInstanceID maps an environment locator to its pool key.
//
// The key is the locator's basename up to the first dot, reduced to
// [a-z0-9_-], followed by the murmur3 hash of the whole locator. Equal
// locators always map to the same key; locators that only share a basename
// do not collide.
func DeriveInstanceID(locator string) string {
	return fmt.Sprintf("%s-%08x", instanceStem(locator), murmur3.Sum32([]byte(locator)))
}

func instanceStem(locator string) string {
	p := locator
	if u, err := url.Parse(locator); err == nil && u.Scheme != "" {
		p = u.Path
		if p == "" {
			p = u.Opaque
		}
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}

	base := path.Base(strings.TrimRight(p, "/"))
	if base == "." || base == "/" {
		base = ""
	}
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}

	var b strings.Builder
	for _, r := range strings.ToLower(base) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return DefaultInstanceStem
	}
	return b.String()
}
