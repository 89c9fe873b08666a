// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package blob is the content-addressed byte store behind attachments.
//
// With BLOB_ENDPOINT_URL set it talks to any S3-compatible backend through
// minio-go, including presigned download URLs. Without an endpoint it falls
// back to the local filesystem for dev and test, where presigning is
// unsupported and callers transfer bytes inline instead.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianMemory/services/memory/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store reads and writes attachment bytes by key.
//
// Thread Safety: Store is safe for concurrent use.
type Store struct {
	s3       *minio.Client // nil in local mode
	bucket   string
	localDir string
	logger   *slog.Logger
}

// New builds the store in S3 or local mode depending on settings.
func New(settings config.Settings, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if settings.BlobEndpointURL == "" {
		if err := os.MkdirAll(settings.BlobLocalDir, 0o755); err != nil {
			return nil, fmt.Errorf("create local blob dir: %w", err)
		}
		logger.Info("Blob store: local filesystem", slog.String("dir", settings.BlobLocalDir))
		return &Store{localDir: settings.BlobLocalDir, logger: logger}, nil
	}

	endpoint, secure, err := splitEndpoint(settings.BlobEndpointURL)
	if err != nil {
		return nil, err
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(settings.BlobAccessKey, settings.BlobSecretKey, ""),
		Secure: secure,
		Region: settings.BlobRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	logger.Info("Blob store: S3",
		slog.String("endpoint", endpoint),
		slog.String("bucket", settings.BlobBucket))
	return &Store{s3: client, bucket: settings.BlobBucket, logger: logger}, nil
}

// splitEndpoint turns an endpoint URL into the host[:port] form minio wants
// plus the TLS flag.
func splitEndpoint(endpointURL string) (string, bool, error) {
	u, err := url.Parse(endpointURL)
	if err != nil || u.Host == "" {
		return "", false, fmt.Errorf("invalid BLOB_ENDPOINT_URL %q", endpointURL)
	}
	return u.Host, u.Scheme != "http", nil
}

// Put uploads bytes under key and returns the key.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if s.s3 != nil {
		_, err := s.s3.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
			minio.PutObjectOptions{ContentType: contentType})
		if err != nil {
			return "", fmt.Errorf("put blob %s: %w", key, err)
		}
	} else {
		dest := filepath.Join(s.localDir, filepath.FromSlash(key))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return "", fmt.Errorf("create blob dirs: %w", err)
		}
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return "", fmt.Errorf("write blob %s: %w", key, err)
		}
	}

	s.logger.Info("Blob uploaded", slog.String("key", key), slog.Int("bytes", len(data)))
	return key, nil
}

// Get downloads the bytes of a key. Returns (nil, nil) when the blob is
// absent: a missing blob is not an error at this layer.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if s.s3 != nil {
		obj, err := s.s3.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return nil, fmt.Errorf("get blob %s: %w", key, err)
		}
		defer obj.Close()
		data, err := io.ReadAll(obj)
		if err != nil {
			if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
				return nil, nil
			}
			return nil, fmt.Errorf("read blob %s: %w", key, err)
		}
		return data, nil
	}

	data, err := os.ReadFile(filepath.Join(s.localDir, filepath.FromSlash(key)))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", key, err)
	}
	return data, nil
}

// Presign returns a time-limited download URL, or "" when the backend does
// not support presigning (local mode); callers then fall back to inline
// base64 transfer.
func (s *Store) Presign(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if s.s3 == nil {
		return "", nil
	}
	u, err := s.s3.PresignedGetObject(ctx, s.bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign blob %s: %w", key, err)
	}
	return u.String(), nil
}

// MakeKey builds the canonical blob key "{tenant}/{memory}/{filename}" with
// path separators in the filename flattened to underscores.
func MakeKey(tenantID, memoryID, filename string) string {
	safe := strings.ReplaceAll(filename, "/", "_")
	safe = strings.ReplaceAll(safe, "\\", "_")
	return tenantID + "/" + memoryID + "/" + safe
}
