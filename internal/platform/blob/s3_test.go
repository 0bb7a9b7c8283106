package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"

	"github.com/phoenix-garage/garage/internal/shared"
)

type fakePutter struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakePutter) PutObject(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(params.Body)
	f.inputs = append(f.inputs, params)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

// Minimal PNG signature followed by an IHDR chunk header.
var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R', 0, 0, 0, 1, 0, 0, 0, 1, 8, 2, 0, 0, 0}

func TestUploadStoresImageWithSniffedType(t *testing.T) {
	putter := &fakePutter{}
	u := NewUploaderWithClient(putter, Config{Bucket: "garage", PublicURL: "https://cdn.example.com/"})

	obj, err := u.Upload(context.Background(), pngBytes, "front view.png", "")
	require.NoError(t, err)
	require.NotEmpty(t, obj.FileID)
	require.True(t, strings.HasPrefix(obj.URL, "https://cdn.example.com/vehicle-images/"+obj.FileID))
	require.True(t, strings.HasSuffix(obj.URL, ".png"))

	require.Len(t, putter.inputs, 1)
	require.Equal(t, "garage", *putter.inputs[0].Bucket)
	require.Equal(t, "image/png", *putter.inputs[0].ContentType)
	require.Equal(t, pngBytes, putter.bodies[0])
}

func TestUploadRejectsNonImages(t *testing.T) {
	u := NewUploaderWithClient(&fakePutter{}, Config{Bucket: "garage", PublicURL: "https://cdn.example.com"})

	_, err := u.Upload(context.Background(), []byte("plain text, not a picture"), "notes.txt", "image/png")
	require.ErrorIs(t, err, shared.ErrUpload)

	_, err = u.Upload(context.Background(), nil, "empty.png", "image/png")
	require.ErrorIs(t, err, shared.ErrUpload)
}

func TestUploadEnforcesSizeAndWrapsClientErrors(t *testing.T) {
	u := NewUploaderWithClient(&fakePutter{}, Config{Bucket: "garage", PublicURL: "https://cdn.example.com", MaxBytes: 8})
	_, err := u.Upload(context.Background(), pngBytes, "big.png", "image/png")
	require.ErrorIs(t, err, shared.ErrUpload)

	failing := NewUploaderWithClient(&fakePutter{err: errors.New("access denied")}, Config{Bucket: "garage", PublicURL: "https://cdn.example.com"})
	_, err = failing.Upload(context.Background(), pngBytes, "car.png", "image/png")
	require.ErrorIs(t, err, shared.ErrUpload)
}
