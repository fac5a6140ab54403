package alert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"postureguard/internal/camera"
)

type S3Config struct {
	Bucket          string `yaml:"bucket" json:"bucket"`
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	AccessKeyID     string `yaml:"accessKeyID" json:"accessKeyID"`
	SecretAccessKey string `yaml:"secretAccessKey" json:"secretAccessKey"`
	UseSSL          bool   `yaml:"useSSL" json:"useSSL"`
	Region          string `yaml:"region" json:"region"`
}

func NewMinioClient(conf S3Config) (*minio.Client, error) {
	region := conf.Region
	if region == "" {
		region = "us-east-1"
	}
	minioCli, err := minio.New(conf.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.AccessKeyID, conf.SecretAccessKey, ""),
		Secure: conf.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client failed: %w", err)
	}
	return minioCli, nil
}

type ObjectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64,
		opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

var _ ObjectPutter = (*minio.Client)(nil)

// Encoder turns a raw frame into a JPEG.
type Encoder func(f *camera.Frame) ([]byte, error)

// SnapshotSink uploads the frame that triggered an alert.
type SnapshotSink struct {
	cli    ObjectPutter
	bucket string
	encode Encoder
}

func NewSnapshotSink(cli ObjectPutter, bucket string, encode Encoder) *SnapshotSink {
	return &SnapshotSink{cli: cli, bucket: bucket, encode: encode}
}

func (s *SnapshotSink) PlayAlert(ctx context.Context, ev Event) error {
	if ev.Frame == nil {
		return nil
	}
	img, err := s.encode(ev.Frame)
	if err != nil {
		return fmt.Errorf("encode snapshot failed: %w", err)
	}
	_, err = s.cli.PutObject(
		ctx,
		s.bucket,
		strings.TrimPrefix(ev.SnapshotKey(), "/"),
		bytes.NewReader(img),
		int64(len(img)),
		minio.PutObjectOptions{
			ContentType: "image/jpeg",
		},
	)
	if err != nil {
		return fmt.Errorf("put object to minio failed: %w", err)
	}
	return nil
}
