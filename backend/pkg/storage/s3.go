package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"couple-app/backend/config"
)

// 便于测试替换的 SDK 构造函数
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
)

// PresignedUpload 预签名上传结果
type PresignedUpload struct {
	UploadURL string
	ObjectKey string
	PublicURL string
	ExpiresAt time.Time
}

// Presigner S3 兼容对象存储的预签名上传器（头像等用户文件）
type Presigner struct {
	client        *s3.PresignClient
	bucket        string
	endpoint      string
	publicBaseURL string
	ttl           time.Duration
}

// NewPresigner 根据存储配置创建预签名上传器
// endpoint 非空时走 path-style，兼容 MinIO 等自建服务
func NewPresigner(ctx context.Context, cfg *config.StorageConfig) (*Presigner, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("加载对象存储配置失败: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &Presigner{
		client:        s3.NewPresignClient(client),
		bucket:        cfg.Bucket,
		endpoint:      cfg.Endpoint,
		publicBaseURL: cfg.PublicBaseURL,
		ttl:           ttl,
	}, nil
}

// PresignPut 为指定对象键生成限时 PUT 上传地址
func (p *Presigner) PresignPut(ctx context.Context, key, contentType string) (*PresignedUpload, error) {
	in := &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	req, err := presignPutObject(p.client, ctx, in, s3.WithPresignExpires(p.ttl))
	if err != nil {
		return nil, fmt.Errorf("生成上传地址失败: %w", err)
	}

	return &PresignedUpload{
		UploadURL: req.URL,
		ObjectKey: key,
		PublicURL: p.PublicURL(key),
		ExpiresAt: time.Now().Add(p.ttl),
	}, nil
}

// PublicURL 对象上传完成后的公开访问地址
func (p *Presigner) PublicURL(key string) string {
	if p.publicBaseURL != "" {
		return strings.TrimRight(p.publicBaseURL, "/") + "/" + key
	}
	if p.endpoint != "" {
		return strings.TrimRight(p.endpoint, "/") + "/" + p.bucket + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", p.bucket, key)
}
