// Package storage holds the object-storage collaborators consumed through
// narrow interfaces. The service only needs avatar upload and removal;
// everything else about the object store stays behind the interface.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/platinummonkey/taskhub/pkg/config"
)

// AvatarStore is the narrow contract for avatar object storage
type AvatarStore interface {
	// Put stores the avatar for a user and returns its public URL.
	Put(ctx context.Context, userID string, content io.Reader, contentType string) (string, error)

	// Delete removes the avatar; deleting an absent avatar is not an
	// error.
	Delete(ctx context.Context, userID string) error
}

// S3AvatarStore implements AvatarStore on S3-compatible object storage
type S3AvatarStore struct {
	client   *s3.Client
	bucket   string
	endpoint string
	region   string
}

// NewS3AvatarStore creates an avatar store from the storage configuration,
// using static credentials when provided and the default chain otherwise.
func NewS3AvatarStore(cfg config.StorageConfig) (*S3AvatarStore, error) {
	ctx := context.Background()

	var awsCfg aws.Config
	var err error

	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.S3AccessKey,
				cfg.S3SecretKey,
				"",
			)),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		if cfg.S3UsePathStyle {
			o.UsePathStyle = true
		}
	})

	return &S3AvatarStore{
		client:   client,
		bucket:   cfg.S3Bucket,
		endpoint: cfg.S3Endpoint,
		region:   cfg.S3Region,
	}, nil
}

func avatarKey(userID string) string {
	return "avatars/" + userID
}

// Put stores the avatar and returns its public URL
func (s *S3AvatarStore) Put(ctx context.Context, userID string, content io.Reader, contentType string) (string, error) {
	key := avatarKey(userID)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        content,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload avatar: %w", err)
	}

	return s.publicURL(key), nil
}

// Delete removes the avatar
func (s *S3AvatarStore) Delete(ctx context.Context, userID string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(avatarKey(userID)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete avatar: %w", err)
	}
	return nil
}

func (s *S3AvatarStore) publicURL(key string) string {
	if s.endpoint != "" {
		// MinIO or other custom endpoint
		return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(s.endpoint, "/"), s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// MemoryAvatarStore is an in-memory AvatarStore for dev mode and tests
type MemoryAvatarStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryAvatarStore creates an empty in-memory avatar store
func NewMemoryAvatarStore() *MemoryAvatarStore {
	return &MemoryAvatarStore{objects: make(map[string][]byte)}
}

// Put stores the avatar bytes and returns a synthetic URL
func (s *MemoryAvatarStore) Put(ctx context.Context, userID string, content io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.objects[avatarKey(userID)] = data
	s.mu.Unlock()

	return "/uploads/" + avatarKey(userID), nil
}

// Delete removes the avatar
func (s *MemoryAvatarStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	delete(s.objects, avatarKey(userID))
	s.mu.Unlock()
	return nil
}

// Get returns the stored bytes; test helper
func (s *MemoryAvatarStore) Get(userID string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[avatarKey(userID)]
	return data, ok
}
