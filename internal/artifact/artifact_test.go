package artifact

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelforge/internal/codegen"
)

func TestLocalStore_CreateOnly(t *testing.T) {
	ctx := context.Background()
	s := &LocalStore{Root: t.TempDir()}

	ok, err := s.Exists(ctx, "app/Models/Post.php")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.WriteText(ctx, "app/Models/Post.php", "<?php\n"))
	ok, err = s.Exists(ctx, "app/Models/Post.php")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.ErrorIs(t, s.WriteText(ctx, "app/Models/Post.php", "other"), ErrExists)

	text, found, err := s.ReadText(ctx, "app/Models/Post.php")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "<?php\n", text)

	_, found, err = s.ReadText(ctx, "app/Models/Nope.php")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLocalStore_List(t *testing.T) {
	ctx := context.Background()
	s := &LocalStore{Root: t.TempDir()}

	names, err := s.List(ctx, "app/Models")
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, s.WriteText(ctx, "app/Models/User.php", "x"))
	require.NoError(t, s.WriteText(ctx, "app/Models/Concerns/HasX.php", "x"))
	require.NoError(t, s.WriteText(ctx, "app/Models/Account.php", "x"))

	names, err = s.List(ctx, "app/Models")
	require.NoError(t, err)
	assert.Equal(t, []string{"Account.php", "User.php"}, names)
}

func TestAnyExists(t *testing.T) {
	ctx := context.Background()
	s := &LocalStore{Root: t.TempDir()}
	require.NoError(t, s.WriteText(ctx, "b.php", "x"))

	p, err := AnyExists(ctx, s, "a.php", "b.php")
	require.NoError(t, err)
	assert.Equal(t, "b.php", p)

	p, err = AnyExists(ctx, s, "a.php", "c.php")
	require.NoError(t, err)
	assert.Empty(t, p)
}

func pair() []codegen.Artifact {
	return []codegen.Artifact{
		{Kind: codegen.KindModel, Path: "app/Models/Post.php", Content: "model"},
		{Kind: codegen.KindMigration, Path: "database/migrations/2024_01_01_000000_create_posts_table.php", Content: "migration"},
	}
}

func TestWriteAll_SequentialLeavesFirstOnFailure(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := &LocalStore{Root: root}
	arts := pair()
	require.NoError(t, s.WriteText(ctx, arts[1].Path, "already here"))

	err := WriteAll(ctx, s, arts, false)
	assert.ErrorIs(t, err, ErrExists)

	ok, _ := s.Exists(ctx, arts[0].Path)
	assert.True(t, ok, "model stays when the migration write fails")
}

func TestWriteAll_TwoPhaseRemovesPublishedOnFailure(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := &LocalStore{Root: root}
	arts := pair()
	require.NoError(t, s.WriteText(ctx, arts[1].Path, "already here"))

	err := WriteAll(ctx, s, arts, true)
	assert.ErrorIs(t, err, ErrExists)

	ok, _ := s.Exists(ctx, arts[0].Path)
	assert.False(t, ok)

	text, _, _ := s.ReadText(ctx, arts[1].Path)
	assert.Equal(t, "already here", text)

	// no temp files left behind
	for _, dir := range []string{"app/Models", "database/migrations"} {
		entries, err := os.ReadDir(filepath.Join(root, dir))
		require.NoError(t, err)
		for _, e := range entries {
			assert.False(t, strings.HasPrefix(e.Name(), "."), e.Name())
		}
	}
}

func TestWriteAll_TwoPhaseSuccess(t *testing.T) {
	ctx := context.Background()
	s := &LocalStore{Root: t.TempDir()}
	require.NoError(t, WriteAll(ctx, s, pair(), true))

	for _, a := range pair() {
		text, ok, err := s.ReadText(ctx, a.Path)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, a.Content, text)
	}
}

// ===== S3 =====

type fakeS3 struct {
	objects map[string]string
	puts    []*s3.PutObjectInput
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[aws.ToString(in.Key)]; ok {
		return &s3.HeadObjectOutput{}, nil
	}
	return nil, &types.NotFound{}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, in)
	key := aws.ToString(in.Key)
	if _, ok := f.objects[key]; ok && aws.ToString(in.IfNoneMatch) == "*" {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "At least one of the pre-conditions you specified did not hold"}
	}
	b, _ := io.ReadAll(in.Body)
	f.objects[key] = string(b)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	v, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(v))}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(in.Prefix)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for k := range f.objects {
		rest, ok := strings.CutPrefix(k, prefix)
		if ok && !strings.Contains(rest, "/") {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
		}
	}
	return out, nil
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string]string{}}
	s := &S3Store{Client: fake, Bucket: "b", Prefix: "laravel"}

	ok, err := s.Exists(ctx, "app/Models/Post.php")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.WriteText(ctx, "app/Models/Post.php", "<?php"))
	assert.Equal(t, "<?php", fake.objects["laravel/app/Models/Post.php"])
	assert.Equal(t, "*", aws.ToString(fake.puts[0].IfNoneMatch))

	assert.ErrorIs(t, s.WriteText(ctx, "app/Models/Post.php", "again"), ErrExists)

	text, found, err := s.ReadText(ctx, "app/Models/Post.php")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "<?php", text)

	_, found, err = s.ReadText(ctx, "app/Models/Missing.php")
	require.NoError(t, err)
	assert.False(t, found)

	fake.objects["laravel/app/Models/Deep/X.php"] = "x"
	names, err := s.List(ctx, "app/Models")
	require.NoError(t, err)
	assert.Equal(t, []string{"Post.php"}, names)

}

func TestS3Store_TwoPhaseFallsBackToSequential(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string]string{}}
	s := &S3Store{Client: fake, Bucket: "b"}

	require.NoError(t, WriteAll(ctx, s, pair(), true))
	require.Len(t, fake.puts, 2)
	assert.Equal(t, "model", fake.objects["app/Models/Post.php"])
	assert.Equal(t, "migration", fake.objects["database/migrations/2024_01_01_000000_create_posts_table.php"])

	// a second pair collides on the model and writes nothing else
	assert.ErrorIs(t, WriteAll(ctx, s, pair(), true), ErrExists)
	assert.Len(t, fake.puts, 3)
}

func TestS3Store_OtherErrors(t *testing.T) {
	boom := &smithy.GenericAPIError{Code: "AccessDenied"}
	assert.False(t, isNotFound(boom))
	assert.False(t, isPreconditionFailed(boom))
	assert.False(t, isNotFound(errors.New(http.StatusText(http.StatusNotFound))))
}
