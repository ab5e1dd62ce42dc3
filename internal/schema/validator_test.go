package schema

import (
	"testing"

	"github.com/RegistryAccord/registryaccord-reels-go/internal/model"
)

func TestValidateVideo(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator failed: %v", err)
	}

	ok := model.SubmitVideoRequest{Title: "Clip", MediaRef: "s3://bucket/clip.mp4"}
	if err := v.Validate(KindVideo, ok); err != nil {
		t.Errorf("valid video rejected: %v", err)
	}

	tests := map[string]model.SubmitVideoRequest{
		"missing title": {MediaRef: "https://example.com/a.mp4"},
		"bad media ref": {Title: "Clip", MediaRef: "ftp://example.com/a.mp4"},
		"missing media": {Title: "Clip"},
	}
	for name, req := range tests {
		if err := v.Validate(KindVideo, req); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestValidateUnknownKind(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator failed: %v", err)
	}
	if err := v.Validate("profile", map[string]interface{}{}); err == nil {
		t.Errorf("expected error for unknown kind")
	}
}
