package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"sacraltrack/core/audio"
	"sacraltrack/logger"
	"sacraltrack/model"
)

// ErrMissingConfig is returned when the storage endpoint or bucket is not
// configured. Raised before any network I/O is attempted.
var ErrMissingConfig = errors.New("missing required storage configuration")

// objectPrefix is where uploaded files live inside the bucket.
const objectPrefix = "files/"

// Client wraps a MinIO connection for one bucket. Constructed explicitly and
// passed in so tests can substitute fakes.
type Client struct {
	client         *minio.Client
	bucket         string
	region         string
	publicEndpoint string
}

// NewClient builds a storage client. It fails fast on missing configuration
// and does not dial the endpoint; connectivity is checked by EnsureBucket.
func NewClient(endpoint, publicEndpoint, accessKey, secretKey, bucket, region string, useSSL bool) (*Client, error) {
	if endpoint == "" || bucket == "" {
		return nil, ErrMissingConfig
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &Client{
		client:         client,
		bucket:         bucket,
		region:         region,
		publicEndpoint: publicEndpoint,
	}, nil
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

// EnsureBucket verifies the bucket exists, creating it when absent.
func (c *Client) EnsureBucket(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", c.bucket, err)
	}
	if exists {
		return nil
	}

	if err := c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{Region: c.region}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", c.bucket, err)
	}
	logger.Info("created storage bucket", logger.String("bucket", c.bucket))
	return nil
}

// FileURL templates the retrieval URL for a stored file ID.
func (c *Client) FileURL(id string) string {
	return fmt.Sprintf("%s/storage/buckets/%s/files/%s/view", c.publicEndpoint, c.bucket, id)
}

// UploadSegment persists one audio chunk and returns its Segment reference.
// The backend assigns the opaque ID; the declared duration is the nominal
// constant, not measured from the content. Not retried internally.
func (c *Client) UploadSegment(ctx context.Context, trackID string, index int, data []byte) (model.Segment, error) {
	if c == nil || c.bucket == "" {
		return model.Segment{}, ErrMissingConfig
	}

	id := uuid.New().String()
	filename := fmt.Sprintf("segment-%d.mp3", index)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	opts := minio.PutObjectOptions{
		ContentType:      "audio/mpeg",
		DisableMultipart: true,
		UserMetadata: map[string]string{
			"filename": filename,
			"track-id": trackID,
		},
	}

	info, err := c.client.PutObject(ctx, c.bucket, objectPrefix+id, bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		return model.Segment{}, fmt.Errorf("failed to upload segment %d to storage: %w", index, err)
	}
	if info.Size == 0 && len(data) > 0 {
		return model.Segment{}, fmt.Errorf("failed to upload segment %d to storage: empty result", index)
	}

	return model.Segment{
		ID:       id,
		URL:      c.FileURL(id),
		Index:    index,
		Duration: model.SegmentDuration,
	}, nil
}

// UploadManifest persists a playlist file and returns its retrieval URL.
func (c *Client) UploadManifest(ctx context.Context, trackID string, file audio.ManifestFile) (string, error) {
	if c == nil || c.bucket == "" {
		return "", ErrMissingConfig
	}

	id := uuid.New().String()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	opts := minio.PutObjectOptions{
		ContentType:      file.MimeType,
		DisableMultipart: true,
		UserMetadata: map[string]string{
			"filename": file.Name,
			"track-id": trackID,
		},
	}

	_, err := c.client.PutObject(ctx, c.bucket, objectPrefix+id, bytes.NewReader(file.Data), int64(len(file.Data)), opts)
	if err != nil {
		return "", fmt.Errorf("failed to upload manifest to storage: %w", err)
	}

	return c.FileURL(id), nil
}

// GetFile opens a stored file by ID for streaming. The caller closes the
// returned reader.
func (c *Client) GetFile(ctx context.Context, id string) (io.ReadCloser, string, error) {
	stat, err := c.client.StatObject(ctx, c.bucket, objectPrefix+id, minio.StatObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("file %s not found: %w", id, err)
	}

	object, err := c.client.GetObject(ctx, c.bucket, objectPrefix+id, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("failed to get file %s: %w", id, err)
	}

	return object, stat.ContentType, nil
}

// BucketStats summarizes bucket usage for the storage CLI.
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
	TypeCounts   map[string]int64
}

// Stats walks the bucket and aggregates object counts and sizes.
func (c *Client) Stats(ctx context.Context) (*BucketStats, error) {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", c.bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", c.bucket)
	}

	stats := &BucketStats{TypeCounts: make(map[string]int64)}
	objectCh := c.client.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{Recursive: true})
	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		stats.TotalObjects++
		stats.TotalSize += object.Size
		if object.LastModified.After(stats.LastModified) {
			stats.LastModified = object.LastModified
		}
		contentType := object.ContentType
		if contentType == "" {
			contentType = "unknown"
		}
		stats.TypeCounts[contentType]++
	}

	return stats, nil
}

// FormatSize renders a byte count for CLI output.
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
