package imagehost

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/kalaasaarathi/shopbot/internal/chat"
	"github.com/kalaasaarathi/shopbot/internal/media"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	err     error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[key] = body
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

type fakeRemover struct {
	calls int
	out   []byte
	err   error
}

func (f *fakeRemover) RemoveBackground(context.Context, []byte, string) (*chat.ImageResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &chat.ImageResult{Data: f.out, MIMEType: "image/png"}, nil
}

func writePhoto(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 60, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 60; x++ {
			img.Set(x, y, color.RGBA{R: 120, G: 60, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "photo.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestS3Uploader_UploadImage(t *testing.T) {
	photo := writePhoto(t)
	edited, _ := os.ReadFile(photo)
	fs := newFakeS3()
	remover := &fakeRemover{out: edited}
	u := NewS3Uploader(fs, S3Config{ImageBucket: "imgs", Region: "ap-south-1"}, remover)

	urls, err := u.UploadImage(context.Background(), photo)
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if len(urls) != media.RenditionCount {
		t.Fatalf("expected %d URLs, got %d", media.RenditionCount, len(urls))
	}
	if remover.calls != 1 {
		t.Errorf("expected one background removal, got %d", remover.calls)
	}
	if len(fs.objects) != media.RenditionCount {
		t.Errorf("expected %d objects, got %d", media.RenditionCount, len(fs.objects))
	}
	for i, name := range []string{"main", "square", "display", "thumb"} {
		if !strings.HasPrefix(urls[i], "https://imgs.s3.ap-south-1.amazonaws.com/products/") || !strings.HasSuffix(urls[i], "/"+name+".jpg") {
			t.Errorf("url[%d] = %s", i, urls[i])
		}
	}
	for key, ct := range fs.types {
		if ct != "image/jpeg" {
			t.Errorf("%s uploaded as %s", key, ct)
		}
	}
}

func TestS3Uploader_RemovalFailureUsesOriginal(t *testing.T) {
	tests := []struct {
		name    string
		remover *fakeRemover
	}{
		{"error", &fakeRemover{err: errors.New("quota")}},
		{"undecodable output", &fakeRemover{out: []byte("garbage")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := NewS3Uploader(newFakeS3(), S3Config{ImageBucket: "imgs"}, tt.remover)
			urls, err := u.UploadImage(context.Background(), writePhoto(t))
			if err != nil {
				t.Fatalf("UploadImage: %v", err)
			}
			if len(urls) != media.RenditionCount {
				t.Errorf("got %d URLs", len(urls))
			}
		})
	}
}

func TestS3Uploader_Errors(t *testing.T) {
	fs := newFakeS3()
	fs.err = errors.New("access denied")
	u := NewS3Uploader(fs, S3Config{ImageBucket: "imgs"}, nil)
	if _, err := u.UploadImage(context.Background(), writePhoto(t)); err == nil {
		t.Error("expected upload error")
	}

	bad := filepath.Join(t.TempDir(), "x.jpg")
	_ = os.WriteFile(bad, []byte("not a photo"), 0o644)
	if _, err := NewS3Uploader(newFakeS3(), S3Config{ImageBucket: "imgs"}, nil).UploadImage(context.Background(), bad); err == nil {
		t.Error("expected decode error")
	}
}

func TestS3Uploader_UploadVideo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.MP4")
	_ = os.WriteFile(path, []byte("mp4 bytes"), 0o644)
	fs := newFakeS3()
	u := NewS3Uploader(fs, S3Config{ImageBucket: "imgs", VideoBucket: "vids", BaseURL: "https://cdn.example.com"}, nil)

	url, err := u.UploadVideo(context.Background(), path)
	if err != nil {
		t.Fatalf("UploadVideo: %v", err)
	}
	if !strings.HasPrefix(url, "https://cdn.example.com/reels/") || !strings.HasSuffix(url, ".mp4") {
		t.Errorf("unexpected url %s", url)
	}
	for key, ct := range fs.types {
		if !strings.HasPrefix(key, "vids/reels/") || ct != "video/mp4" {
			t.Errorf("unexpected object %s (%s)", key, ct)
		}
	}
}

func TestDirUploader(t *testing.T) {
	site := t.TempDir()
	u := NewDirUploader(site, "https://shop.example.com/", nil)

	urls, err := u.UploadImage(context.Background(), writePhoto(t))
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	for _, url := range urls {
		rel := strings.TrimPrefix(url, "https://shop.example.com/")
		if rel == url {
			t.Fatalf("url not rooted at base: %s", url)
		}
		if _, err := os.Stat(filepath.Join(site, filepath.FromSlash(rel))); err != nil {
			t.Errorf("missing file for %s: %v", url, err)
		}
	}

	video := filepath.Join(t.TempDir(), "reel.mov")
	_ = os.WriteFile(video, []byte("mov"), 0o644)
	url, err := u.UploadVideo(context.Background(), video)
	if err != nil {
		t.Fatalf("UploadVideo: %v", err)
	}
	if !strings.HasPrefix(url, "https://shop.example.com/media/reels/") {
		t.Errorf("unexpected video url %s", url)
	}
}

func TestFallbackUploader(t *testing.T) {
	urls, err := FallbackUploader{}.UploadImage(context.Background(), "ignored")
	if err != nil || len(urls) != 4 {
		t.Fatalf("got %v, %v", urls, err)
	}
	stamp := urls[0][strings.Index(urls[0], "?t="):]
	for i, u := range urls {
		want := "https://storage.googleapis.com/craftlink-images/fallback" + string(rune('1'+i)) + ".jpg" + stamp
		if u != want {
			t.Errorf("url[%d] = %s, want %s", i, u, want)
		}
	}
	if len(stamp) != len("?t=")+8 {
		t.Errorf("unexpected stamp %q", stamp)
	}

	v, _ := FallbackUploader{}.UploadVideo(context.Background(), "ignored")
	if v != FallbackVideoURL {
		t.Errorf("video = %s", v)
	}
}
