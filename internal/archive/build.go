package archive

import (
	"encoding/json"
	"log/slog"
)

// Build picks the uploader for the configured archive backend. Returns nil
// when no bucket is configured (uploads disabled); falls back to the
// simulator when the S3 client cannot be constructed, so a bad key file
// degrades instead of blocking scrapes.
func Build(log *slog.Logger, endpoint, bucket, keysRaw string) Uploader {
	if bucket == "" {
		return nil
	}

	var keys map[string]string
	if keysRaw != "" {
		if err := json.Unmarshal([]byte(keysRaw), &keys); err != nil {
			log.Warn("archive_keys_invalid", "error", err)
		}
	}

	if endpoint != "" && keys != nil {
		client, err := NewS3Client(S3Config{
			Endpoint:        endpoint,
			AccessKeyID:     keys["access_key_id"],
			SecretAccessKey: keys["secret_access_key"],
			Bucket:          bucket,
			PublicURL:       keys["public_url"],
			Region:          "auto",
		})
		if err == nil {
			log.Info("using_s3_archive", "endpoint", endpoint, "bucket", bucket)
			return client
		}
		log.Warn("s3_archive_init_failed", "error", err)
	}

	log.Info("using_archive_simulator", "bucket", bucket)
	return NewSimulator(bucket, endpoint)
}
