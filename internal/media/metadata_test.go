package media

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPhotoMetadata_Hint(t *testing.T) {
	tests := []struct {
		name string
		m    *PhotoMetadata
		want string
	}{
		{"nil", nil, ""},
		{"empty", &PhotoMetadata{}, ""},
		{"date only", &PhotoMetadata{DateTaken: time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC), HasDate: true}, "taken March 2025"},
		{"camera only", &PhotoMetadata{CameraMake: "Samsung", CameraModel: "SM-A515F"}, "with a Samsung SM-A515F"},
		{
			"both, gps omitted",
			&PhotoMetadata{DateTaken: time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC), HasDate: true, CameraModel: "Pixel 7", HasGPS: true, Latitude: 26.9},
			"taken November 2024 with a Pixel 7",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.Hint(); got != tt.want {
				t.Errorf("Hint() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPhotoHint_NoMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.jpg")
	if err := os.WriteFile(path, []byte("no exif here"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := PhotoHint(path); got != "" {
		t.Errorf("expected empty hint, got %q", got)
	}
	if got := PhotoHint(filepath.Join(t.TempDir(), "missing.jpg")); got != "" {
		t.Errorf("expected empty hint for missing file, got %q", got)
	}
}
