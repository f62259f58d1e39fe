package archive

import "context"

// Uploader ships finished export files to durable object storage.
type Uploader interface {
	UploadExport(ctx context.Context, name string, data []byte, contentType string) (string, error)
}
