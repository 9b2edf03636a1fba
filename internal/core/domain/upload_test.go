package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestNewUpload(t *testing.T) {
	u, err := NewUpload("bb_env.tar.gz", 3*ChunkSize)
	if err != nil {
		t.Fatalf("NewUpload() error = %v", err)
	}
	if !strings.HasPrefix(u.ID, UploadIDPrefix) {
		t.Errorf("ID = %q, want prefix %q", u.ID, UploadIDPrefix)
	}
	if !IsValidUploadID(u.ID) {
		t.Errorf("IsValidUploadID(%q) = false", u.ID)
	}
	if u.State != UploadPending || u.IsComplete() {
		t.Errorf("State = %q, want pending", u.State)
	}
	if u.Remaining() != 3*ChunkSize {
		t.Errorf("Remaining() = %d", u.Remaining())
	}

	if _, err := NewUpload("x", -1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("NewUpload(-1) error = %v, want ErrInvalidArgument", err)
	}
}

func TestIsValidUploadID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"upl_01arz3ndektsv4rrffq69g5fav", true},
		{"upl_", false},
		{"01arz3ndektsv4rrffq69g5fav", false},
		{"upl_../../etc/passwd", false},
		{"upl_01arz3ndektsv4rrffq69g5fa!", false},
	}
	for _, tt := range tests {
		if got := IsValidUploadID(tt.id); got != tt.valid {
			t.Errorf("IsValidUploadID(%q) = %v, want %v", tt.id, got, tt.valid)
		}
	}
}

func TestUpload_Clone(t *testing.T) {
	u, _ := NewUpload("a", 10)
	c := u.Clone()
	c.Offset = 5
	if u.Offset != 0 {
		t.Error("Clone should not share state")
	}
}
