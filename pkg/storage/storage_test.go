package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockUploader struct {
	mock.Mock
}

func (m *mockUploader) Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*manager.UploadOutput), args.Error(1)
}

func TestS3PublisherPublish(t *testing.T) {
	uploader := new(mockUploader)
	p := newS3Publisher(uploader, S3Options{Bucket: "certs", Prefix: "/ceue/2024/"}, zap.NewNop())

	uploader.On("Upload", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		body, _ := io.ReadAll(in.Body)
		return aws.ToString(in.Bucket) == "certs" &&
			aws.ToString(in.Key) == "ceue/2024/run-1/João.pdf" &&
			aws.ToString(in.ContentType) == "application/pdf" &&
			string(body) == "%PDF"
	})).Return(&manager.UploadOutput{Location: "https://certs.s3.amazonaws.com/ceue/2024/run-1/João.pdf"}, nil)

	loc, err := p.Publish(context.Background(), "run-1/João.pdf", strings.NewReader("%PDF"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://certs.s3.amazonaws.com/ceue/2024/run-1/João.pdf", loc)
	uploader.AssertExpectations(t)
}

func TestS3PublisherWrapsUploadError(t *testing.T) {
	uploader := new(mockUploader)
	p := newS3Publisher(uploader, S3Options{Bucket: "certs"}, zap.NewNop())

	boom := errors.New("access denied")
	uploader.On("Upload", mock.Anything, mock.Anything).Return(nil, boom)

	_, err := p.Publish(context.Background(), "a.pdf", strings.NewReader(""), "application/pdf")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "s3://certs/a.pdf")
}

func TestObjectKeyWithoutPrefix(t *testing.T) {
	p := newS3Publisher(nil, S3Options{Bucket: "b"}, zap.NewNop())
	assert.Equal(t, "run/x.pdf", p.ObjectKey("/run/x.pdf"))
}

func TestNewS3PublisherRequiresBucket(t *testing.T) {
	_, err := NewS3Publisher(context.Background(), S3Options{}, zap.NewNop())
	assert.Error(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"João Paulo", "João Paulo"},
		{"a/b\\c:d", "a_b_c_d"},
		{"what?*<>|\"", "what______"},
		{"tab\tname\n", "tabname"},
		{"   ", "unnamed"},
		{"", "unnamed"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), tt.in)
	}
}

func TestOutputPath(t *testing.T) {
	got := OutputPath("out", "Declaração de Créditos Complementares - {name}.pdf", "joão/paulo")
	assert.Equal(t, filepath.Join("out", "Declaração de Créditos Complementares - joão_paulo.pdf"), got)
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
