package storage

import (
	"bytes"
	"context"
	"io"
	"strconv"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Mehdi856/Chat-Project/tools/errs"
)

// MaxBlobSize caps uploaded attachments and profile images.
const MaxBlobSize = 50 << 20 // 50 MiB

var allowedBlobTypes = map[string]bool{
	"image/jpeg":               true,
	"image/png":                true,
	"image/gif":                true,
	"image/webp":               true,
	"application/pdf":          true,
	"application/octet-stream": true,
}

// Blobs stores uploaded files in GridFS and hands back gateway-served URLs.
type Blobs struct {
	bucket  *gridfs.Bucket
	baseURL string
}

func NewBlobs(m *Mongo, baseURL string) (*Blobs, error) {
	bucket, err := gridfs.NewBucket(m.DB())
	if err != nil {
		return nil, err
	}
	return &Blobs{bucket: bucket, baseURL: baseURL}, nil
}

// Store validates the payload against the size cap and MIME allow-list, then
// writes it to GridFS. The returned URL is served by the /files route.
func (b *Blobs) Store(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", errs.ErrArgs.WithDetail("empty blob")
	}
	if len(data) > MaxBlobSize {
		return "", errs.ErrBlobTooLarge.WithDetail("size " + strconv.Itoa(len(data)))
	}
	if !allowedBlobTypes[contentType] {
		return "", errs.ErrBlobType.WithDetail(contentType)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = b.bucket.SetWriteDeadline(deadline)
	}
	name := uuid.NewString()
	id, err := b.bucket.UploadFromStream(name, bytes.NewReader(data),
		options.GridFSUpload().SetMetadata(bson.M{"contentType": contentType}))
	if err != nil {
		return "", err
	}
	return b.baseURL + "/files/" + id.Hex(), nil
}

// Open streams a stored blob back out, returning its content type.
func (b *Blobs) Open(ctx context.Context, hexID string) (io.ReadCloser, string, error) {
	id, err := primitive.ObjectIDFromHex(hexID)
	if err != nil {
		return nil, "", errs.ErrArgs.WithDetail("bad blob id " + hexID)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = b.bucket.SetReadDeadline(deadline)
	}
	stream, err := b.bucket.OpenDownloadStream(id)
	if err != nil {
		if err == gridfs.ErrFileNotFound {
			return nil, "", errs.ErrRecordNotFind.WithDetail("blob " + hexID)
		}
		return nil, "", err
	}

	contentType := "application/octet-stream"
	if file := stream.GetFile(); file != nil && file.Metadata != nil {
		if v, err := file.Metadata.LookupErr("contentType"); err == nil {
			if s, ok := v.StringValueOK(); ok {
				contentType = s
			}
		}
	}
	return stream, contentType, nil
}
