package mirror

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"videoarchive/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	headBucketErr error
	headErr       error
	putErr        error

	headCalls int
	putCalls  int
	lastPut   *s3.PutObjectInput
	putBody   []byte
}

func (f *fakeS3) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.headBucketErr != nil {
		return nil, f.headBucketErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.headCalls++
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.putCalls++
	f.lastPut = params
	if params.Body != nil {
		f.putBody, _ = io.ReadAll(params.Body)
	}
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &s3.PutObjectOutput{}, nil
}

func testMirror(client s3API) *S3Mirror {
	return &S3Mirror{
		client: client,
		cfg: model.MirrorConfig{
			Enabled:    true,
			Bucket:     "archive",
			PathPrefix: "videos",
			SourceTag:  "videoarchive",
		},
	}
}

func writeLocalFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "video_1_720p.mp4")
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestUploadNewObject(t *testing.T) {
	fake := &fakeS3{headErr: &types.NotFound{}}
	m := testMirror(fake)
	local := writeLocalFile(t, "mp4-bytes")

	out := m.Upload(context.Background(), "alice", "video_1_720p.mp4", local)

	assert.True(t, out.Attempted)
	assert.True(t, out.Success)
	assert.Equal(t, model.MirrorUploaded, out.Reason)
	assert.Equal(t, "videos/alice/video_1_720p.mp4", out.RemotePath)

	require.Equal(t, 1, fake.putCalls)
	require.NotNil(t, fake.lastPut)
	assert.Equal(t, "archive", aws.ToString(fake.lastPut.Bucket))
	assert.Equal(t, "videos/alice/video_1_720p.mp4", aws.ToString(fake.lastPut.Key))
	assert.Equal(t, "video/mp4", aws.ToString(fake.lastPut.ContentType))
	assert.Equal(t, []byte("mp4-bytes"), fake.putBody)

	assert.Equal(t, "alice", fake.lastPut.Metadata["owner"])
	assert.Equal(t, "videoarchive", fake.lastPut.Metadata["source"])
	assert.NotEmpty(t, fake.lastPut.Metadata["uploaded-at"])
}

func TestUploadSkipsWhenAlreadyPresent(t *testing.T) {
	fake := &fakeS3{} // HeadObject succeeds
	m := testMirror(fake)
	local := writeLocalFile(t, "mp4-bytes")

	out := m.Upload(context.Background(), "alice", "video_1_720p.mp4", local)

	assert.True(t, out.Attempted)
	assert.True(t, out.Success)
	assert.Equal(t, model.MirrorAlreadyPresent, out.Reason)
	assert.Equal(t, "videos/alice/video_1_720p.mp4", out.RemotePath)
	assert.Zero(t, fake.putCalls, "present objects are never re-uploaded")
}

func TestUploadReportsHeadFailure(t *testing.T) {
	fake := &fakeS3{headErr: errors.New("access denied")}
	m := testMirror(fake)
	local := writeLocalFile(t, "mp4-bytes")

	out := m.Upload(context.Background(), "alice", "video_1_720p.mp4", local)

	assert.True(t, out.Attempted)
	assert.False(t, out.Success)
	assert.Equal(t, model.MirrorError, out.Reason)
	assert.Contains(t, out.Detail, "access denied")
	assert.Zero(t, fake.putCalls, "unknown head errors must not trigger an upload")
}

func TestUploadReportsPutFailure(t *testing.T) {
	fake := &fakeS3{headErr: &types.NotFound{}, putErr: errors.New("slow down")}
	m := testMirror(fake)
	local := writeLocalFile(t, "mp4-bytes")

	out := m.Upload(context.Background(), "alice", "video_1_720p.mp4", local)

	assert.False(t, out.Success)
	assert.Equal(t, model.MirrorError, out.Reason)
	assert.Contains(t, out.Detail, "slow down")
	assert.Equal(t, 1, fake.putCalls)
}

func TestUploadReportsMissingLocalFile(t *testing.T) {
	fake := &fakeS3{headErr: &types.NotFound{}}
	m := testMirror(fake)

	out := m.Upload(context.Background(), "alice", "video_1_720p.mp4", filepath.Join(t.TempDir(), "missing.mp4"))

	assert.False(t, out.Success)
	assert.Equal(t, model.MirrorError, out.Reason)
	assert.Contains(t, out.Detail, "open local file")
	assert.Zero(t, fake.putCalls)
}

func TestVerify(t *testing.T) {
	ok := testMirror(&fakeS3{})
	assert.NoError(t, ok.Verify(context.Background()))

	bad := testMirror(&fakeS3{headBucketErr: errors.New("forbidden")})
	err := bad.Verify(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive")
}
