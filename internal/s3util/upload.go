// Package s3util holds the S3 helpers shared by the image host and the
// static-site deployer.
package s3util

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// PutObjectAPI is the subset of *s3.Client used for uploads.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Object describes one upload.
type Object struct {
	Key             string
	Body            []byte
	ContentType     string
	ContentEncoding string // "gzip" when Body is pre-compressed
	CacheControl    string
}

// Put uploads obj to bucket with the project cost-allocation tag.
func Put(ctx context.Context, client PutObjectAPI, bucket string, obj Object) error {
	start := time.Now()
	in := &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(obj.Key),
		Body:        bytes.NewReader(obj.Body),
		ContentType: aws.String(obj.ContentType),
		Tagging:     ProjectTagging(),
	}
	if obj.ContentEncoding != "" {
		in.ContentEncoding = aws.String(obj.ContentEncoding)
	}
	if obj.CacheControl != "" {
		in.CacheControl = aws.String(obj.CacheControl)
	}

	if _, err := client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("S3 PutObject %s/%s: %w", bucket, obj.Key, err)
	}

	log.Debug().
		Str("bucket", bucket).
		Str("key", obj.Key).
		Int("bytes", len(obj.Body)).
		Str("content_type", obj.ContentType).
		Dur("duration", time.Since(start)).
		Msg("Uploaded object to S3")
	return nil
}

// PublicURL returns the browser URL for key. baseURL (a CDN or website
// origin) wins when set; otherwise the virtual-hosted S3 URL is used.
func PublicURL(baseURL, bucket, region, key string) string {
	escaped := escapeKey(key)
	if baseURL != "" {
		return strings.TrimRight(baseURL, "/") + "/" + escaped
	}
	if region == "" || region == "us-east-1" {
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", bucket, escaped)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, escaped)
}

// escapeKey path-escapes each key segment, keeping the slashes.
func escapeKey(key string) string {
	parts := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
