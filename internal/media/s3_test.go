package media

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		ref    string
		bucket string
		key    string
		ok     bool
	}{
		{"s3://media/videos/u1/a.mp4", "media", "videos/u1/a.mp4", true},
		{"https://www.w3schools.com/html/movie.mp4", "", "", false},
		{"s3://media", "", "", false},
		{"s3:///key", "", "", false},
	}
	for _, tt := range tests {
		bucket, key, ok := ParseRef(tt.ref)
		if bucket != tt.bucket || key != tt.key || ok != tt.ok {
			t.Errorf("ParseRef(%q) = (%q, %q, %v)", tt.ref, bucket, key, ok)
		}
	}
}

func TestNewKeyKeepsExtension(t *testing.T) {
	key := NewKey("u1", "Holiday.MP4")
	if !strings.HasPrefix(key, "videos/u1/") || !strings.HasSuffix(key, ".mp4") {
		t.Errorf("NewKey = %q", key)
	}
}

func TestPresign(t *testing.T) {
	ctx := context.Background()
	c, err := NewS3Client(ctx, "http://localhost:9000", "us-east-1", "media", "access", "secret")
	if err != nil {
		t.Fatalf("NewS3Client failed: %v", err)
	}

	up, err := c.PresignUpload(ctx, "videos/u1/a.mp4", "video/mp4", 15*time.Minute)
	if err != nil {
		t.Fatalf("PresignUpload failed: %v", err)
	}
	if !strings.Contains(up, "/media/videos/u1/a.mp4") || !strings.Contains(up, "X-Amz-Signature") {
		t.Errorf("unexpected upload URL %q", up)
	}

	play, err := c.PlaybackURL(ctx, c.Ref("videos/u1/a.mp4"), time.Hour)
	if err != nil {
		t.Fatalf("PlaybackURL failed: %v", err)
	}
	if !strings.Contains(play, "X-Amz-Signature") {
		t.Errorf("playback URL not presigned: %q", play)
	}

	external := "https://www.w3schools.com/html/mov_bbb.mp4"
	if got, _ := c.PlaybackURL(ctx, external, time.Hour); got != external {
		t.Errorf("external ref rewritten to %q", got)
	}
}
