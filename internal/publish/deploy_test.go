package publish

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"
)

type fakeS3 struct {
	mu   sync.Mutex
	puts map[string]*s3.PutObjectInput
	body map[string][]byte
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, _ := io.ReadAll(in.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts[aws.ToString(in.Key)] = in
	f.body[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func TestS3Deployer(t *testing.T) {
	site := t.TempDir()
	page := []byte("<html>hello</html>")
	_ = os.MkdirAll(filepath.Join(site, "product"), 0o755)
	_ = os.WriteFile(filepath.Join(site, "product", "p1.html"), page, 0o644)
	_ = os.WriteFile(filepath.Join(site, ProductsFile), []byte(`{"products":[]}`), 0o644)

	fs := &fakeS3{puts: map[string]*s3.PutObjectInput{}, body: map[string][]byte{}}
	d := NewS3Deployer(fs, "site-bucket", site)
	if err := d.Deploy(context.Background(), []string{filepath.Join("product", "p1.html"), ProductsFile}); err != nil {
		t.Fatalf("Deploy: %v", err)
	}

	in, ok := fs.puts["product/p1.html"]
	if !ok {
		t.Fatalf("page not uploaded, got keys %v", fs.puts)
	}
	if aws.ToString(in.ContentEncoding) != "gzip" || aws.ToString(in.ContentType) != "text/html; charset=utf-8" {
		t.Errorf("unexpected headers: %s %s", aws.ToString(in.ContentEncoding), aws.ToString(in.ContentType))
	}
	zr, err := gzip.NewReader(bytes.NewReader(fs.body["product/p1.html"]))
	if err != nil {
		t.Fatalf("body is not gzip: %v", err)
	}
	plain, _ := io.ReadAll(zr)
	if !bytes.Equal(plain, page) {
		t.Errorf("round trip mismatch: %q", plain)
	}
	if aws.ToString(fs.puts[ProductsFile].ContentType) != "application/json" {
		t.Error("expected JSON content type for snapshot")
	}

	if err := d.Deploy(context.Background(), []string{"missing.html"}); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCommandDeployer(t *testing.T) {
	if _, err := exec.LookPath("touch"); err != nil {
		t.Skip("touch not available")
	}
	dir := t.TempDir()

	if err := NewCommandDeployer("touch deployed.marker", dir).Deploy(context.Background(), nil); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "deployed.marker")); err != nil {
		t.Errorf("command did not run in site dir: %v", err)
	}

	if err := NewCommandDeployer("false", dir).Deploy(context.Background(), nil); err == nil {
		t.Error("expected error from failing command")
	}
	if err := NewCommandDeployer("  ", dir).Deploy(context.Background(), nil); err == nil {
		t.Error("expected error for empty command")
	}
	if err := NewCommandDeployer("sleep 5", dir).WithTimeout(50*time.Millisecond).Deploy(context.Background(), nil); err == nil {
		t.Error("expected timeout error")
	}
}
