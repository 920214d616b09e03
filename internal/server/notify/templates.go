package notify

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const (
	VerificationTemplate  = "verification-email.html"
	ResetPasswordTemplate = "reset-password-email.html"
)

//go:embed templates/*.html
var embedded embed.FS

// ErrTemplateNotFound is returned by a TemplateSource that does not hold the
// requested template.
var ErrTemplateNotFound = errors.New("template not found")

// TemplateSource loads raw template text by name.
type TemplateSource interface {
	Load(ctx context.Context, name string) ([]byte, error)
}

// EmbeddedSource serves the templates compiled into the binary.
type EmbeddedSource struct{}

func (EmbeddedSource) Load(_ context.Context, name string) ([]byte, error) {
	b, err := embedded.ReadFile(path.Join("templates", name))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return b, nil
}

// S3Config points at the bucket holding template overrides.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
}

type s3GetObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3GetObjectAPI {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3Source reads templates from <bucket>/<prefix><name>.
type S3Source struct {
	client s3GetObjectAPI
	bucket string
	prefix string
}

// NewS3Source builds a client for an S3-compatible endpoint with static
// credentials.
func NewS3Source(ctx context.Context, c S3Config) (*S3Source, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Source{client: client, bucket: c.Bucket, prefix: c.Prefix}, nil
}

func (s *S3Source) Load(ctx context.Context, name string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + name),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
		}
		return nil, fmt.Errorf("s3 get %s: %w", name, err)
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}

// Renderer executes templates from the first source that has them.
type Renderer struct {
	sources []TemplateSource
}

// NewRenderer tries sources in order. The embedded templates are always
// consulted last.
func NewRenderer(sources ...TemplateSource) *Renderer {
	return &Renderer{sources: append(sources, EmbeddedSource{})}
}

func (r *Renderer) Render(ctx context.Context, name string, data any) (string, error) {
	text, err := r.load(ctx, name)
	if err != nil {
		return "", err
	}

	tmpl, err := template.New(name).Parse(string(text))
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return body.String(), nil
}

func (r *Renderer) load(ctx context.Context, name string) ([]byte, error) {
	var lastErr error
	for _, src := range r.sources {
		text, err := src.Load(ctx, name)
		if err == nil {
			return text, nil
		}
		// an unreachable bucket falls through to the next source as well
		lastErr = err
	}
	return nil, lastErr
}
