// Package filestore keeps uploaded submission files in an S3 compatible
// bucket under submissions/{id}/{filename}.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"negotiate/api/internal/util"
)

var ErrNotFound = errors.New("file not found")

const (
	collection     = "submissions"
	maxBaseLength  = 100
	suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	suffixLength   = 10
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type ObjectInfo struct {
	Size        int64
	ContentType string
}

type Store struct {
	client *minio.Client
	bucket string
}

// New connects to the bucket, creating it when missing.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// ObjectKey is the bucket key of a submission file.
func ObjectKey(submissionID, filename string) string {
	return path.Join(collection, submissionID, filename)
}

// StoredName turns an uploaded filename into the name the file is stored and
// served under: unsafe characters replaced and a random suffix added so a
// replacement never reuses the old URL.
func StoredName(original string) string {
	base := path.Base(strings.ReplaceAll(original, "\\", "/"))
	ext := path.Ext(base)
	name := strings.TrimSuffix(base, ext)

	name = strings.Trim(unsafeChars.ReplaceAllString(name, "_"), "_.")
	ext = strings.ToLower(unsafeChars.ReplaceAllString(ext, ""))
	if ext == "." {
		ext = ""
	}
	if name == "" {
		name = "file"
	}
	if len(name) > maxBaseLength {
		name = name[:maxBaseLength]
	}
	return name + "_" + util.RandomString(suffixAlphabet, suffixLength) + ext
}

func (s *Store) Put(ctx context.Context, submissionID, filename string, body io.Reader, size int64, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, ObjectKey(submissionID, filename), body, size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// Open streams a stored file. The caller closes the reader.
func (s *Store) Open(ctx context.Context, submissionID, filename string) (io.ReadCloser, ObjectInfo, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, ObjectKey(submissionID, filename), minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("get object: %w", err)
	}
	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ObjectInfo{}, ErrNotFound
		}
		return nil, ObjectInfo{}, fmt.Errorf("stat object: %w", err)
	}
	return obj, ObjectInfo{Size: stat.Size, ContentType: stat.ContentType}, nil
}

func (s *Store) Remove(ctx context.Context, submissionID, filename string) error {
	err := s.client.RemoveObject(ctx, s.bucket, ObjectKey(submissionID, filename), minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}
