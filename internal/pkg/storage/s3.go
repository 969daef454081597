package storage

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/fotohosting/fotohost/internal/pkg/config"
)

// S3Context - context to upload backup artifacts to an S3 compatible store.
type S3Context struct {
	session *session.Session
	config  *config.Config
}

// InitS3Context - creates and inits session for s3
func InitS3Context(cfg *config.Config) (*S3Context, error) {
	var ctx = &S3Context{
		config: cfg,
	}
	var err error
	ctx.session, err = session.NewSession(&aws.Config{
		Endpoint: aws.String(cfg.S3Endpoint),
		Region:   aws.String(cfg.S3Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.S3AccessKeyID,
			cfg.S3SecretAccessKey,
			"",
		),
	})
	return ctx, err
}

// UploadFile - uploads the file with objectKey key
func (ctx *S3Context) UploadFile(file io.Reader, objectKey string) (string, error) {
	return ctx.UploadFileWithContext(context.Background(), file, objectKey)
}

// UploadFileWithContext - uploads the file with objectKey key with context
func (ctx *S3Context) UploadFileWithContext(cctx context.Context, file io.Reader, objectKey string) (string, error) {

	manager := s3manager.NewUploader(ctx.session)
	out, err := manager.UploadWithContext(cctx, &s3manager.UploadInput{
		Bucket:      aws.String(ctx.config.S3Bucket),
		Body:        file,
		Key:         aws.String(objectKey),
		ContentType: aws.String("application/octet-stream"),
	})

	if err != nil {
		return "", err
	}

	return out.Location, nil
}
