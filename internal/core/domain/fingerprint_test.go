package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseDescriptor_Defaults(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		viewport Viewport
		args     int
	}{
		{"empty object", `{}`, Viewport{1920, 1080}, 0},
		{"missing viewport", `{"user_agent":"UA","browser_args":["--a"]}`, Viewport{1920, 1080}, 1},
		{"zero viewport", `{"viewport":{"width":0,"height":720}}`, Viewport{1920, 1080}, 0},
		{"explicit viewport", `{"viewport":{"width":1280,"height":720}}`, Viewport{1280, 720}, 0},
		{"unknown fields", `{"cookies":[],"viewport":{"width":800,"height":600}}`, Viewport{800, 600}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDescriptor([]byte(tt.input))
			if err != nil {
				t.Fatalf("ParseDescriptor() error = %v", err)
			}
			if d.Viewport != tt.viewport {
				t.Errorf("Viewport = %+v, want %+v", d.Viewport, tt.viewport)
			}
			if d.LaunchArgs == nil {
				t.Error("LaunchArgs should default to an empty slice")
			}
			if len(d.LaunchArgs) != tt.args {
				t.Errorf("len(LaunchArgs) = %d, want %d", len(d.LaunchArgs), tt.args)
			}
		})
	}
}

func TestParseDescriptor_Invalid(t *testing.T) {
	_, err := ParseDescriptor([]byte(`{"user_agent":`))
	if !errors.Is(err, ErrSnapshotInvalid) {
		t.Errorf("ParseDescriptor() error = %v, want ErrSnapshotInvalid", err)
	}
}

func TestFingerprintDescriptor_MarshalKeys(t *testing.T) {
	d := NewFingerprintDescriptor("Mozilla/5.0", Viewport{1366, 768}, DefaultLaunchArgs)
	data, err := d.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for _, key := range []string{"user_agent", "viewport", "browser_args"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("marshaled descriptor missing key %q", key)
		}
	}
	if _, ok := raw["language"]; ok {
		t.Error("empty language should be omitted")
	}

	back, err := ParseDescriptor(data)
	if err != nil {
		t.Fatalf("ParseDescriptor() error = %v", err)
	}
	if !back.Equal(d) {
		t.Errorf("round trip = %+v, want %+v", back, d)
	}
}

func TestNewFingerprintDescriptor_CopiesArgs(t *testing.T) {
	args := []string{"--a", "--b"}
	d := NewFingerprintDescriptor("UA", Viewport{}, args)
	args[0] = "--changed"

	if d.LaunchArgs[0] != "--a" {
		t.Error("descriptor should not alias the caller's slice")
	}
	if d.Viewport.Width != DefaultViewportWidth {
		t.Errorf("Viewport.Width = %d, want default", d.Viewport.Width)
	}
}

func TestFingerprintDescriptor_Validate(t *testing.T) {
	valid := NewFingerprintDescriptor("UA", Viewport{800, 600}, []string{"--x"})
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	bad := valid.Clone()
	bad.Viewport.Height = -1
	bad.LaunchArgs = append(bad.LaunchArgs, "positional")
	if err := bad.Validate(); !errors.Is(err, ErrSnapshotInvalid) {
		t.Errorf("Validate() error = %v, want ErrSnapshotInvalid", err)
	}
}

func TestFingerprintDescriptor_Equal(t *testing.T) {
	a := NewFingerprintDescriptor("UA", Viewport{800, 600}, []string{"--x", "--y"})
	b := a.Clone()
	if !a.Equal(b) {
		t.Error("clone should be equal")
	}
	b.LaunchArgs = []string{"--y", "--x"}
	if a.Equal(b) {
		t.Error("launch arg order is significant")
	}
}
