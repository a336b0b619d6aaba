// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/olegiv/folio-go/internal/media"
	"github.com/olegiv/folio-go/internal/model"
)

// S3Config configures an S3-compatible bucket.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	// CreateBucket makes the bucket when it does not exist.
	CreateBucket bool
}

// S3 is a bucket on an S3-compatible object store.
type S3 struct {
	client   *minio.Client
	name     string
	resolver *media.Resolver
}

var _ Bucket = (*S3)(nil)

// NewS3 connects to the object store and checks the bucket. Public URLs
// are built by resolver, which must be configured for the same bucket.
func NewS3(ctx context.Context, cfg S3Config, resolver *media.Resolver) (*S3, error) {
	name := resolver.Bucket()
	if name == "" {
		return nil, fmt.Errorf("s3 bucket: empty bucket name")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating s3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, name)
	if err != nil {
		return nil, mapS3Error("bucket exists", err)
	}
	if !exists {
		if !cfg.CreateBucket {
			return nil, fmt.Errorf("s3 bucket %q does not exist", name)
		}
		if err := client.MakeBucket(ctx, name, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, mapS3Error("make bucket", err)
		}
	}

	return &S3{client: client, name: name, resolver: resolver}, nil
}

// Name implements Bucket.
func (s *S3) Name() string {
	return s.name
}

// PublicURL implements Bucket.
func (s *S3) PublicURL(key string) string {
	return s.resolver.PublicURL(key)
}

// Upload implements Bucket.
func (s *S3) Upload(ctx context.Context, key string, data []byte, opts UploadOptions) error {
	k, err := CleanKey(key)
	if err != nil {
		return err
	}
	if !opts.Upsert {
		_, err := s.client.StatObject(ctx, s.name, k, minio.StatObjectOptions{})
		if err == nil {
			return fmt.Errorf("%s: %w", key, ErrObjectExists)
		}
		if minio.ToErrorResponse(err).Code != "NoSuchKey" {
			return mapS3Error("stat object", err)
		}
	}
	_, err = s.client.PutObject(ctx, s.name, k, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
	})
	if err != nil {
		return mapS3Error("put object", err)
	}
	return nil
}

// Remove implements Bucket with one batched delete request.
func (s *S3) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	var errs []error
	objects := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		k, err := CleanKey(key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		objects <- minio.ObjectInfo{Key: k}
	}
	close(objects)

	for rerr := range s.client.RemoveObjects(ctx, s.name, objects, minio.RemoveObjectsOptions{}) {
		if minio.ToErrorResponse(rerr.Err).Code == "NoSuchKey" {
			continue
		}
		errs = append(errs, fmt.Errorf("removing %s: %w", rerr.ObjectName, mapS3Error("remove objects", rerr.Err)))
	}
	return errors.Join(errs...)
}

// mapS3Error marks network failures as transient.
func mapS3Error(op string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &model.TransientError{Op: op, Err: err}
	}
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode >= 500 || resp.Code == "SlowDown" {
		return &model.TransientError{Op: op, Err: err}
	}
	return err
}
