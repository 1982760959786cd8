package snapshot

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/vango-dev/vreconcile/internal/errors"
	"github.com/vango-dev/vreconcile/pkg/protocol"
)

// S3API is the subset of *s3.Client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	s3.ListObjectsV2APIClient
}

// S3Store keeps one object per record under prefix/mount/seq.
//
// Example usage:
//
//	client := snapshot.NewS3Client("eu-west-1", "")
//	store := snapshot.NewS3Store(client, "my-bucket", "vreconcile/")
type S3Store struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Store creates a store over client. prefix may be empty.
func NewS3Store(client S3API, bucket, prefix string) *S3Store {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

// NewS3Client builds an S3 client from the standard AWS environment
// credentials. A non-empty endpoint selects an S3-compatible service with
// path-style addressing.
func NewS3Client(region, endpoint string) *s3.Client {
	opts := s3.Options{
		Region: region,
		Credentials: aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			creds := aws.Credentials{
				AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
				SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
				SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
				Source:          "environment",
			}
			if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
				return aws.Credentials{}, stderrors.New("snapshot: AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")
			}
			return creds, nil
		})),
	}
	if endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
		opts.UsePathStyle = true
	}
	return s3.New(opts)
}

func (s *S3Store) mountPrefix(mount string) string {
	return s.prefix + mount + "/"
}

func (s *S3Store) key(mount string, seq uint64) string {
	// Zero-padded so lexical listing order is pass order.
	return fmt.Sprintf("%s%020d", s.mountPrefix(mount), seq)
}

// Put implements Store.
func (s *S3Store) Put(ctx context.Context, rec *protocol.PassRecord) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(rec.Mount, rec.Seq)),
		Body:        bytes.NewReader(protocol.EncodeRecord(rec)),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"changes": strconv.Itoa(len(rec.Changes)),
		},
	})
	if err != nil {
		return errors.New("R302").WithDetailf("put %s pass %d", rec.Mount, rec.Seq).Wrap(err)
	}
	return nil
}

// Get implements Store.
func (s *S3Store) Get(ctx context.Context, mount string, seq uint64) (*protocol.PassRecord, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(mount, seq)),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if stderrors.As(err, &missing) {
			return nil, errors.New("R404").WithDetailf("mount %q pass %d", mount, seq)
		}
		return nil, errors.New("R302").WithDetailf("get %s pass %d", mount, seq).Wrap(err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.New("R302").WithDetailf("read %s pass %d", mount, seq).Wrap(err)
	}
	return protocol.DecodeRecord(data)
}

// List implements Store.
func (s *S3Store) List(ctx context.Context, mount string) ([]uint64, error) {
	prefix := s.mountPrefix(mount)
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	var seqs []uint64
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.New("R302").WithDetailf("list %s", mount).Wrap(err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			seq, err := strconv.ParseUint(strings.TrimPrefix(*obj.Key, prefix), 10, 64)
			if err != nil {
				continue // not a record
			}
			seqs = append(seqs, seq)
		}
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	return seqs, nil
}

// Mounts implements Store.
func (s *S3Store) Mounts(ctx context.Context) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(s.prefix),
		Delimiter: aws.String("/"),
	})

	var mounts []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.New("R302").WithDetail("list mounts").Wrap(err)
		}
		for _, p := range page.CommonPrefixes {
			if p.Prefix == nil {
				continue
			}
			mounts = append(mounts, strings.TrimSuffix(strings.TrimPrefix(*p.Prefix, s.prefix), "/"))
		}
	}
	sort.Strings(mounts)
	return mounts, nil
}

// Close implements Store. The client needs no cleanup.
func (s *S3Store) Close() error {
	return nil
}
