package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// Source is somewhere an artifact bundle can be read from.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	String() string
}

// FileSource reads a bundle from the local filesystem.
type FileSource string

func (f FileSource) Open(context.Context) (io.ReadCloser, error) {
	return os.Open(string(f))
}

func (f FileSource) String() string { return string(f) }

// S3Client is the subset of the S3 API used to fetch artifacts.
// The [s3.Client] type satisfies this interface.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads a bundle from an S3 (or S3-compatible) object.
type S3Source struct {
	Client S3Client
	Bucket string
	Key    string
}

func (s *S3Source) Open(ctx context.Context) (io.ReadCloser, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("artifact: %s: %w", s, os.ErrNotExist)
		}
		return nil, fmt.Errorf("artifact: %s: %w", s, err)
	}
	return out.Body, nil
}

func (s *S3Source) String() string { return "s3://" + s.Bucket + "/" + s.Key }

/*
SourceFor parses an artifact location. "s3://bucket/key" needs a client;
anything else is treated as a local path.
*/
func SourceFor(location string, client S3Client) (Source, error) {
	rest, ok := strings.CutPrefix(location, "s3://")
	if !ok {
		if location == "" {
			return nil, errors.New("artifact: empty location")
		}
		return FileSource(location), nil
	}

	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return nil, fmt.Errorf("artifact: malformed s3 location %q", location)
	}
	if client == nil {
		return nil, fmt.Errorf("artifact: no s3 client for %q", location)
	}
	return &S3Source{Client: client, Bucket: bucket, Key: key}, nil
}

func isS3NotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
