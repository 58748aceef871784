package filestorage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gabriel-vasile/mimetype"

	"github.com/cozy-creator/bg-remover/internal/config"
)

type S3FileStorage struct {
	client *s3.Client
	cfg    *config.S3Config
}

func NewS3FileStorage(ctx context.Context, cfg *config.S3Config) (*S3FileStorage, error) {
	if cfg == nil || cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 config is not set")
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	credentialsProvider := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	awsCfg, err := awsConfig.LoadDefaultConfig(
		ctx,
		awsConfig.WithRegion(region),
		awsConfig.WithCredentialsProvider(credentialsProvider),
	)
	if err != nil {
		return nil, err
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointUrl != "" {
			o.BaseEndpoint = &cfg.EndpointUrl
		}
	})

	return &S3FileStorage{
		client: s3Client,
		cfg:    cfg,
	}, nil
}

func (u *S3FileStorage) key(filename string) string {
	folder := strings.Trim(u.cfg.Folder, "/")
	if folder == "" {
		return filename
	}
	return path.Join(folder, filename)
}

func (u *S3FileStorage) Upload(ctx context.Context, file FileInfo) (string, error) {
	key := u.key(file.Filename())
	mtype := mimetype.Detect(file.Content).String()

	// Archived images are private; they are served back through /file.
	input := s3.PutObjectInput{
		Key:         &key,
		ContentType: &mtype,
		Bucket:      &u.cfg.Bucket,
		Body:        bytes.NewReader(file.Content),
		ACL:         types.ObjectCannedACLPrivate,
	}
	if _, err := u.client.PutObject(ctx, &input); err != nil {
		return "", err
	}

	if u.cfg.VanityUrl != "" {
		vanityUrl := strings.TrimSuffix(u.cfg.VanityUrl, "/")
		return fmt.Sprintf("%s/%s", vanityUrl, key), nil
	}

	return fmt.Sprintf("s3://%s/%s", u.cfg.Bucket, key), nil
}

func (u *S3FileStorage) GetFile(ctx context.Context, filename string) (*FileInfo, error) {
	key := u.key(filename)
	params := &s3.GetObjectInput{
		Bucket: &u.cfg.Bucket,
		Key:    &key,
	}

	object, err := u.client.GetObject(ctx, params)
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	defer object.Body.Close()

	content, err := io.ReadAll(object.Body)
	if err != nil {
		return nil, err
	}

	ext := path.Ext(filename)
	return &FileInfo{
		Name:      strings.TrimSuffix(path.Base(filename), ext),
		Extension: ext,
		Folder:    path.Dir(filename),
		Content:   content,
	}, nil
}
