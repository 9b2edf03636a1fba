package domain

import (
	"encoding/json"
	"slices"
	"strings"
)

// Descriptor defaults applied when the stored descriptor omits a field.
const (
	DefaultViewportWidth  = 1920
	DefaultViewportHeight = 1080

	MaxUserAgentLength = 1024
)

// DefaultLaunchArgs are the engine flags every captured or restored browser
// starts with.
var DefaultLaunchArgs = []string{
	"--no-sandbox",
	"--disable-setuid-sandbox",
	"--disable-blink-features=AutomationControlled",
}

// Viewport is the window size of a captured environment.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// FingerprintDescriptor holds the identity attributes of a captured
// environment. It is treated as immutable once built; use Clone before
// modifying a shared value.
type FingerprintDescriptor struct {
	UserAgent string   `json:"user_agent"`
	Viewport  Viewport `json:"viewport"`

	// LaunchArgs is serialized as browser_args and keeps its order.
	LaunchArgs []string `json:"browser_args"`

	// Supplementary attributes captured when the engine reports them.
	Language string `json:"language,omitempty"`
	Timezone string `json:"timezone,omitempty"`
	Platform string `json:"platform,omitempty"`
}

// NewFingerprintDescriptor returns a descriptor with defaults applied.
func NewFingerprintDescriptor(userAgent string, viewport Viewport, launchArgs []string) FingerprintDescriptor {
	d := FingerprintDescriptor{
		UserAgent:  userAgent,
		Viewport:   viewport,
		LaunchArgs: slices.Clone(launchArgs),
	}
	d.applyDefaults()
	return d
}

// ParseDescriptor decodes a descriptor file. Missing fields fall back to the
// documented defaults; unknown fields are ignored.
func ParseDescriptor(data []byte) (FingerprintDescriptor, error) {
	var d FingerprintDescriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return FingerprintDescriptor{}, ErrSnapshotInvalid.WithDetails("descriptor is not valid JSON").WithCause(err)
	}
	d.applyDefaults()
	return d, nil
}

// Marshal encodes the descriptor with the stable key set.
func (d FingerprintDescriptor) Marshal() ([]byte, error) {
	out := d.Clone()
	out.applyDefaults()
	return json.MarshalIndent(out, "", "  ")
}

func (d *FingerprintDescriptor) applyDefaults() {
	if d.Viewport.Width <= 0 || d.Viewport.Height <= 0 {
		d.Viewport = Viewport{Width: DefaultViewportWidth, Height: DefaultViewportHeight}
	}
	if d.LaunchArgs == nil {
		d.LaunchArgs = []string{}
	}
}

// Validate checks the descriptor against its constraints.
func (d FingerprintDescriptor) Validate() error {
	var violations []string

	if len(d.UserAgent) > MaxUserAgentLength {
		violations = append(violations, "user_agent exceeds 1024 characters")
	}
	if d.Viewport.Width <= 0 || d.Viewport.Height <= 0 {
		violations = append(violations, "viewport must be positive")
	}
	for _, arg := range d.LaunchArgs {
		if !strings.HasPrefix(arg, "--") {
			violations = append(violations, "browser_args entries must start with --")
			break
		}
	}

	if len(violations) > 0 {
		return ErrSnapshotInvalid.WithDetails(strings.Join(violations, "; "))
	}
	return nil
}

// Equal reports whether two descriptors carry the same attributes.
func (d FingerprintDescriptor) Equal(other FingerprintDescriptor) bool {
	return d.UserAgent == other.UserAgent &&
		d.Viewport == other.Viewport &&
		slices.Equal(d.LaunchArgs, other.LaunchArgs) &&
		d.Language == other.Language &&
		d.Timezone == other.Timezone &&
		d.Platform == other.Platform
}

// Clone returns a deep copy.
func (d FingerprintDescriptor) Clone() FingerprintDescriptor {
	c := d
	c.LaunchArgs = slices.Clone(d.LaunchArgs)
	return c
}
