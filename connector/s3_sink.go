/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package connector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rulego/streamflow/codec"
	"github.com/rulego/streamflow/types"
)

// S3SinkConfig configures an S3Sink.
type S3SinkConfig struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	UsePathStyle    bool
	AccessKeyID     string
	SecretAccessKey string
	// BatchSize is the number of records per object.
	BatchSize int
}

// objectPutter is the part of the S3 client the sink uses.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink batches encoded records into newline-delimited objects. Objects
// are named <prefix><first event time>-<sequence>.jsonl so a listing
// returns them in time order.
type S3Sink struct {
	client objectPutter
	cfg    S3SinkConfig
	codec  codec.Codec

	mu      sync.Mutex
	buf     bytes.Buffer
	count   int
	firstTs int64
	seq     int
}

// NewS3Sink creates an S3 client from cfg and the default AWS credential
// chain, using static credentials when both keys are set.
func NewS3Sink(ctx context.Context, cfg S3SinkConfig, c codec.Codec) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		})
	}
	return newS3Sink(s3.NewFromConfig(awsCfg, s3Opts...), cfg, c), nil
}

func newS3Sink(client objectPutter, cfg S3SinkConfig, c codec.Codec) *S3Sink {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if c == nil {
		c = codec.NewJSONCodec()
	}
	return &S3Sink{client: client, cfg: cfg, codec: c}
}

func newS3SinkFromConfig(cfg Config) (Sink, error) {
	return NewS3Sink(context.Background(), S3SinkConfig{
		Bucket:          cfg.String("bucket", ""),
		Prefix:          cfg.String("prefix", ""),
		Region:          cfg.String("region", ""),
		Endpoint:        cfg.String("endpoint", ""),
		UsePathStyle:    cfg.Bool("usePathStyle", false),
		AccessKeyID:     cfg.String("accessKeyId", ""),
		SecretAccessKey: cfg.String("secretAccessKey", ""),
		BatchSize:       cfg.Int("batchSize", 0),
	}, cfg.Codec)
}

func (s *S3Sink) Push(ctx context.Context, rec *types.Record) error {
	body, err := s.codec.Encode(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == 0 {
		s.firstTs = rec.Timestamp
	}
	s.buf.Write(body)
	s.buf.WriteByte('\n')
	s.count++
	if s.count >= s.cfg.BatchSize {
		return s.flushLocked(ctx)
	}
	return nil
}

// Flush writes the pending batch, if any.
func (s *S3Sink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(ctx)
}

func (s *S3Sink) flushLocked(ctx context.Context) error {
	if s.count == 0 {
		return nil
	}
	key := fmt.Sprintf("%s%020d-%06d.jsonl", s.cfg.Prefix, s.firstTs, s.seq)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(append([]byte(nil), s.buf.Bytes()...)),
	})
	if err != nil {
		return fmt.Errorf("S3 put object failed: %w", err)
	}
	s.seq++
	s.count = 0
	s.buf.Reset()
	return nil
}

// Close writes the last partial batch.
func (s *S3Sink) Close() error {
	return s.Flush(context.Background())
}
