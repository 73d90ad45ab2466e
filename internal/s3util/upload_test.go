package s3util

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakePut struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakePut) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.err
}

func TestPut(t *testing.T) {
	f := &fakePut{}
	err := Put(context.Background(), f, "site", Object{
		Key:             "index.html",
		Body:            []byte("<html>"),
		ContentType:     "text/html; charset=utf-8",
		ContentEncoding: "gzip",
		CacheControl:    "no-cache",
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if aws.ToString(f.in.Bucket) != "site" || aws.ToString(f.in.Key) != "index.html" {
		t.Errorf("unexpected target %s/%s", aws.ToString(f.in.Bucket), aws.ToString(f.in.Key))
	}
	if aws.ToString(f.in.ContentEncoding) != "gzip" || aws.ToString(f.in.CacheControl) != "no-cache" {
		t.Errorf("headers not set: %+v", f.in)
	}
	if aws.ToString(f.in.Tagging) != "Project=kalaasaarathi" {
		t.Errorf("missing project tag: %q", aws.ToString(f.in.Tagging))
	}
	if string(f.body) != "<html>" {
		t.Errorf("body = %q", f.body)
	}
}

func TestPut_Error(t *testing.T) {
	f := &fakePut{err: errors.New("denied")}
	if err := Put(context.Background(), f, "b", Object{Key: "k", ContentType: "image/jpeg"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestPublicURL(t *testing.T) {
	tests := []struct {
		name, base, bucket, region, key, want string
	}{
		{"cdn", "https://cdn.example.com/", "b", "ap-south-1", "products/a b.jpg", "https://cdn.example.com/products/a%20b.jpg"},
		{"regional", "", "craft-images", "ap-south-1", "products/x.jpg", "https://craft-images.s3.ap-south-1.amazonaws.com/products/x.jpg"},
		{"us-east-1", "", "craft-images", "us-east-1", "/x.jpg", "https://craft-images.s3.amazonaws.com/x.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PublicURL(tt.base, tt.bucket, tt.region, tt.key); got != tt.want {
				t.Errorf("PublicURL = %q, want %q", got, tt.want)
			}
		})
	}
}
