package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	cfg "github.com/maheshrc27/reelflow/configs"
)

// R2Scheme marks video URLs that point into the R2 bucket rather than at a
// public location.
const R2Scheme = "r2://"

var ErrR2NotConfigured = errors.New("r2 storage is not configured")

type R2Service struct {
	config cfg.Config

	once    sync.Once
	client  *s3.Client
	initErr error
}

func NewR2Service(cfg cfg.Config) *R2Service {
	return &R2Service{config: cfg}
}

func (r *R2Service) R2Client(ctx context.Context) (*s3.Client, error) {
	r.once.Do(func() {
		if r.config.R2.AccountID == "" || r.config.R2.BucketName == "" {
			r.initErr = ErrR2NotConfigured
			return
		}

		awsCfg, err := config.LoadDefaultConfig(ctx,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(r.config.R2.AccessKey, r.config.R2.SecretKey, "")),
			config.WithRegion("auto"),
		)
		if err != nil {
			slog.Info(err.Error())
			r.initErr = err
			return
		}

		r.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", r.config.R2.AccountID))
		})
	})
	return r.client, r.initErr
}

// PresignVideo returns a time-limited GET URL for an object key.
func (r *R2Service) PresignVideo(ctx context.Context, key string) (string, error) {
	client, err := r.R2Client(ctx)
	if err != nil {
		return "", err
	}

	ttl := r.config.R2.PresignTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	req, err := s3.NewPresignClient(client).PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.config.R2.BucketName),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	return req.URL, nil
}

// ResolveURL turns r2://<key> into a presigned URL; anything else is
// returned unchanged.
func (r *R2Service) ResolveURL(ctx context.Context, raw string) (string, error) {
	key, ok := strings.CutPrefix(raw, R2Scheme)
	if !ok {
		return raw, nil
	}
	if key == "" {
		return "", fmt.Errorf("empty r2 object key in %q", raw)
	}
	return r.PresignVideo(ctx, key)
}
