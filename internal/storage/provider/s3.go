package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
)

// S3API — подмножество *s3.Client, используемое провайдером.
// Включает методы multipart upload, нужные manager.Uploader.
type S3API interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config — параметры S3-провайдера.
type S3Config struct {
	Bucket string
	Region string
	// Endpoint — S3-совместимый endpoint (MinIO); пусто — AWS
	Endpoint  string
	AccessKey string
	SecretKey string
	// UsePathStyle — path-style адресация bucket
	UsePathStyle bool
	// CDNURL — origin CDN; если задан, URL строятся через CDN
	CDNURL string
}

// S3Provider — хранение в S3: <category>/<YYYY-MM-DD>/<random8>-<fileName>.
type S3Provider struct {
	cfg      S3Config
	client   S3API
	uploader *manager.Uploader
	presign  *s3.PresignClient

	now      func() time.Time
	randomID func() string
}

// NewS3 создаёт S3-провайдер с клиентом из aws-sdk-go-v2.
// Статические credentials используются, если задан AccessKey;
// иначе — стандартная цепочка AWS (env, профиль, IAM role).
func NewS3(ctx context.Context, cfg S3Config) (*S3Provider, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("загрузка конфигурации AWS: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	p := NewS3WithClient(client, cfg)
	p.presign = s3.NewPresignClient(client)
	return p, nil
}

// NewS3WithClient создаёт провайдер поверх готового клиента.
// Presigned URL в этом режиме недоступны.
func NewS3WithClient(client S3API, cfg S3Config) *S3Provider {
	cfg.CDNURL = strings.TrimRight(cfg.CDNURL, "/")
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &S3Provider{
		cfg:      cfg,
		client:   client,
		uploader: manager.NewUploader(client),
		now:      time.Now,
		randomID: func() string { return uuid.New().String()[:8] },
	}
}

// Kind возвращает model.ProviderS3.
func (p *S3Provider) Kind() model.StorageProvider {
	return model.ProviderS3
}

// Upload записывает объект через manager.Uploader (multipart для больших файлов).
// Ключ шардируется по дате загрузки и случайному префиксу.
func (p *S3Provider) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if !isSafeSegment(in.Category) || !isSafeSegment(in.FileName) {
		return nil, fmt.Errorf("%w: %s/%s", ErrInvalidPath, in.Category, in.FileName)
	}

	key := fmt.Sprintf("%s/%s/%s-%s",
		in.Category,
		p.now().UTC().Format(time.DateOnly),
		p.randomID(),
		in.FileName,
	)

	input := &s3.PutObjectInput{
		Bucket:        aws.String(p.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(in.Data),
		ContentLength: aws.Int64(int64(len(in.Data))),
	}
	if in.ContentType != "" {
		input.ContentType = aws.String(in.ContentType)
	}

	if _, err := p.uploader.Upload(ctx, input); err != nil {
		return nil, fmt.Errorf("загрузка объекта %s в S3: %w", key, err)
	}

	result := &UploadResult{
		Path: key,
		URL:  p.URL(in.FileID, key),
	}
	if cdn, ok := p.CDNURL(key); ok {
		result.CDNURL = &cdn
	}
	return result, nil
}

// Download читает объект целиком.
func (p *S3Provider) Download(ctx context.Context, key string) ([]byte, error) {
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("чтение объекта %s из S3: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("чтение тела объекта %s: %w", key, err)
	}
	return data, nil
}

// Delete удаляет объект. S3 не возвращает ошибку для отсутствующего ключа;
// NoSuchKey от S3-совместимых хранилищ тоже не считается ошибкой.
func (p *S3Provider) Delete(ctx context.Context, key string) error {
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isS3NotFound(err) {
		return fmt.Errorf("удаление объекта %s из S3: %w", key, err)
	}
	return nil
}

// URL возвращает CDN URL, если он сконфигурирован, иначе прямой URL объекта.
// Для собственного endpoint адресация следует UsePathStyle:
// <endpoint>/<bucket>/<key> или <scheme>://<bucket>.<host>/<key>.
func (p *S3Provider) URL(_, key string) string {
	if cdn, ok := p.CDNURL(key); ok {
		return cdn
	}
	if p.cfg.Endpoint == "" {
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.cfg.Bucket, p.cfg.Region, key)
	}
	if !p.cfg.UsePathStyle {
		if u, err := url.Parse(p.cfg.Endpoint); err == nil && u.Host != "" {
			u.Host = p.cfg.Bucket + "." + u.Host
			return strings.TrimRight(u.String(), "/") + "/" + key
		}
	}
	return fmt.Sprintf("%s/%s/%s", p.cfg.Endpoint, p.cfg.Bucket, key)
}

// CDNURL возвращает URL через CDN.
func (p *S3Provider) CDNURL(key string) (string, bool) {
	if p.cfg.CDNURL == "" {
		return "", false
	}
	return p.cfg.CDNURL + "/" + key, true
}

// PresignedURL возвращает временную подписанную ссылку на GET объекта.
func (p *S3Provider) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error) {
	if p.presign == nil {
		return "", time.Time{}, fmt.Errorf("%w: presign-клиент S3", ErrNotConfigured)
	}

	req, err := p.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("подпись URL для %s: %w", key, err)
	}
	return req.URL, p.now().Add(ttl), nil
}

// isS3NotFound распознаёт отсутствие объекта.
func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	return errors.As(err, &nf)
}

var (
	_ Provider    = (*S3Provider)(nil)
	_ CDNProvider = (*S3Provider)(nil)
	_ Presigner   = (*S3Provider)(nil)
)
