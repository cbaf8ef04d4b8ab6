package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/honeynil/KudosClassroom/internal/config"
	pkgerrors "github.com/honeynil/KudosClassroom/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePresigner struct {
	input *s3.PutObjectInput
	err   error
}

func (f *fakePresigner) PresignPutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = params
	return &v4.PresignedHTTPRequest{URL: "https://signed.example/" + *params.Key, Method: "PUT"}, nil
}

func TestS3Signer_SignUpload(t *testing.T) {
	fake := &fakePresigner{}
	signer := newS3Signer(fake, config.S3Config{Bucket: "kudos", Region: "us-east-1", URLTTL: 5 * time.Minute})
	signer.newKey = func(name string) string { return "k-" + name }

	t.Run("Success", func(t *testing.T) {
		upload, err := signer.SignUpload(context.Background(), "cat.png", "image/png")
		require.NoError(t, err)
		assert.Equal(t, "https://signed.example/k-cat.png", upload.SignedRequest)
		assert.Equal(t, "https://kudos.s3.us-east-1.amazonaws.com/k-cat.png", upload.URL)
		assert.Equal(t, "image/png", *fake.input.ContentType)
		assert.Equal(t, "kudos", *fake.input.Bucket)
	})

	t.Run("RejectsNonImages", func(t *testing.T) {
		_, err := signer.SignUpload(context.Background(), "run.sh", "text/x-shellscript")
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
	})

	t.Run("PresignError", func(t *testing.T) {
		failing := newS3Signer(&fakePresigner{err: fmt.Errorf("no credentials")}, config.S3Config{Bucket: "kudos"})
		_, err := failing.SignUpload(context.Background(), "cat.png", "image/png")
		assert.Error(t, err)
	})
}

func TestDisabledSigner(t *testing.T) {
	_, err := DisabledSigner{}.SignUpload(context.Background(), "cat.png", "image/png")
	assert.ErrorIs(t, err, pkgerrors.ErrUnavailable)
}
