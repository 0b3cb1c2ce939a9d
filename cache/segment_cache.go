package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"sacraltrack/logger"
)

// FileCacheTTL is how long served file bytes stay hot in Redis.
const FileCacheTTL = 30 * time.Minute

// FileCache keeps recently served segment and manifest bytes in Redis so the
// view route does not hit object storage for every player request.
type FileCache struct {
	rdb *redis.Client
}

// NewFileCache creates a FileCache on the given Redis client.
func NewFileCache(rdb *redis.Client) *FileCache {
	return &FileCache{rdb: rdb}
}

func fileKey(id string) string {
	return "file:" + id
}

// Set stores file bytes under the file ID.
func (c *FileCache) Set(id string, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.rdb.Set(ctx, fileKey(id), data, FileCacheTTL).Err(); err != nil {
		logger.Error("failed to set file cache",
			logger.String("id", id),
			logger.Int("dataSize", len(data)),
			logger.ErrorField(err))
		return err
	}

	logger.Debug("file cached",
		logger.String("id", id),
		logger.Int("dataSize", len(data)))
	return nil
}

// Get returns cached bytes, or (nil, nil) on a miss so the caller falls
// through to object storage. Transient Redis errors are retried once with
// backoff and then treated as a miss.
func (c *FileCache) Get(id string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	maxRetries := 2
	retryDelay := 100 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		data, err := c.rdb.Get(ctx, fileKey(id)).Bytes()
		if err != nil {
			if err == redis.Nil {
				return nil, nil
			}

			if attempt < maxRetries-1 {
				logger.Warn("file cache read failed, retrying",
					logger.String("id", id),
					logger.Int("attempt", attempt+1),
					logger.ErrorField(err))
				time.Sleep(retryDelay)
				retryDelay *= 2
				continue
			}

			logger.Error("file cache read failed, falling back to storage",
				logger.String("id", id),
				logger.ErrorField(err))
			return nil, nil
		}

		return data, nil
	}

	return nil, nil
}

// Delete evicts a cached file.
func (c *FileCache) Delete(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.rdb.Del(ctx, fileKey(id)).Err(); err != nil {
		logger.Error("failed to delete file cache",
			logger.String("id", id),
			logger.ErrorField(err))
		return err
	}
	return nil
}
