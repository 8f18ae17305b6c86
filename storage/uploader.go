package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
)

// Uploader pushes export dumps to a Google Cloud Storage bucket.
type Uploader struct {
	cl         *storage.Client
	bucketName string
	uploadPath string
}

func NewUploader(ctx context.Context, bucketName string) (*Uploader, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %v", err)
	}
	return &Uploader{
		cl:         client,
		bucketName: bucketName,
		uploadPath: "exports/",
	}, nil
}

// UploadObject writes data to the bucket under uploadPath and returns the
// public URL.
func (u *Uploader) UploadObject(ctx context.Context, object string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*50)
	defer cancel()

	objectPath := u.uploadPath + object

	wc := u.cl.Bucket(u.bucketName).Object(objectPath).NewWriter(ctx)
	if _, err := io.Copy(wc, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("io.Copy: %v", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("Writer.Close: %v", err)
	}

	url := fmt.Sprintf("https://storage.googleapis.com/%s/%s", u.bucketName, objectPath)
	return url, nil
}

func (u *Uploader) Close() error {
	return u.cl.Close()
}
