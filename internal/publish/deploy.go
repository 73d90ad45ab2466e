package publish

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/kalaasaarathi/shopbot/internal/s3util"
)

// Deployer makes rendered site files live. files are paths relative to the
// site directory that changed; a deployer may ship the whole site instead.
type Deployer interface {
	Deploy(ctx context.Context, files []string) error
	Name() string
}

// NoopDeployer leaves files in the site directory, for a site served
// straight from disk.
type NoopDeployer struct{}

func (NoopDeployer) Deploy(context.Context, []string) error { return nil }
func (NoopDeployer) Name() string                           { return "none" }

// DefaultDeployTimeout bounds one run of the hosting CLI.
const DefaultDeployTimeout = 5 * time.Minute

// CommandDeployer runs a hosting CLI such as "firebase deploy" in the site
// directory. The command line is split on whitespace and run without a
// shell. Runs are serialized because hosting CLIs do not tolerate
// concurrent deploys of one site.
type CommandDeployer struct {
	args    []string
	dir     string
	timeout time.Duration
	mu      sync.Mutex
}

// NewCommandDeployer returns a deployer for commandLine run in dir.
func NewCommandDeployer(commandLine, dir string) *CommandDeployer {
	return &CommandDeployer{args: strings.Fields(commandLine), dir: dir, timeout: DefaultDeployTimeout}
}

// WithTimeout overrides DefaultDeployTimeout.
func (d *CommandDeployer) WithTimeout(t time.Duration) *CommandDeployer {
	d.timeout = t
	return d
}

func (d *CommandDeployer) Name() string { return "command:" + strings.Join(d.args, " ") }

// Deploy implements Deployer. The file list is ignored; the CLI ships the
// whole directory.
func (d *CommandDeployer) Deploy(ctx context.Context, _ []string) error {
	if len(d.args) == 0 {
		return fmt.Errorf("deploy command is empty")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, d.args[0], d.args[1:]...)
	cmd.Dir = d.dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("deploy timed out after %s", d.timeout)
		}
		return fmt.Errorf("deploy command failed: %w: %s", err, tail(string(out), 500))
	}
	log.Info().Str("command", d.args[0]).Dur("duration", time.Since(start)).Msg("Site deployed")
	return nil
}

// S3Deployer uploads changed site files to a bucket configured for static
// website hosting. HTML and JSON are stored gzip-encoded.
type S3Deployer struct {
	client  s3util.PutObjectAPI
	bucket  string
	siteDir string
}

// NewS3Deployer returns a deployer uploading from siteDir to bucket.
func NewS3Deployer(client s3util.PutObjectAPI, bucket, siteDir string) *S3Deployer {
	return &S3Deployer{client: client, bucket: bucket, siteDir: siteDir}
}

func (d *S3Deployer) Name() string { return "s3:" + d.bucket }

// Deploy implements Deployer.
func (d *S3Deployer) Deploy(ctx context.Context, files []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, rel := range files {
		g.Go(func() error {
			data, err := os.ReadFile(filepath.Join(d.siteDir, rel))
			if err != nil {
				return fmt.Errorf("read %s: %w", rel, err)
			}
			body, err := gzipBytes(data)
			if err != nil {
				return fmt.Errorf("compress %s: %w", rel, err)
			}
			return s3util.Put(gctx, d.client, d.bucket, s3util.Object{
				Key:             filepath.ToSlash(rel),
				Body:            body,
				ContentType:     siteContentType(rel),
				ContentEncoding: "gzip",
				// Pages and snapshots change on every edit.
				CacheControl: "public, max-age=60",
			})
		})
	}
	return g.Wait()
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func siteContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html":
		return "text/html; charset=utf-8"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// tail returns the last n bytes of s, where CLI errors usually are.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
