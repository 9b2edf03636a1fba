package domain

import (
	"strings"
	"testing"
)

func TestDeriveInstanceID_Stem(t *testing.T) {
	tests := []struct {
		locator string
		stem    string
	}{
		{"http://host/a.tar.gz", "a"},
		{"https://host/openapi/browserbox/v1/archives/upl_01h.tar.gz?x=1", "upl_01h"},
		{"s3://bucket/envs/Shop-Login.tar.gz", "shop-login"},
		{"file:///tmp/bb_env.tar.gz", "bb_env"},
		{"relative/dir/env.tgz#frag", "env"},
		{"http://host/", DefaultInstanceStem},
		{"", DefaultInstanceStem},
		{"http://host/.hidden", DefaultInstanceStem},
	}

	for _, tt := range tests {
		t.Run(tt.locator, func(t *testing.T) {
			id := DeriveInstanceID(tt.locator)
			if !strings.HasPrefix(id, tt.stem+"-") {
				t.Errorf("DeriveInstanceID(%q) = %q, want stem %q", tt.locator, id, tt.stem)
			}
			if len(id) != len(tt.stem)+9 {
				t.Errorf("DeriveInstanceID(%q) = %q, want 8 hex suffix", tt.locator, id)
			}
		})
	}
}

func TestDeriveInstanceID_Deterministic(t *testing.T) {
	a := DeriveInstanceID("http://host/a.tar.gz")
	if b := DeriveInstanceID("http://host/a.tar.gz"); a != b {
		t.Errorf("same locator gave %q and %q", a, b)
	}
	if c := DeriveInstanceID("http://other/a.tar.gz"); a == c {
		t.Errorf("different locators with the same basename collided on %q", a)
	}
}
