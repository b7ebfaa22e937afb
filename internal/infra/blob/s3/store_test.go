package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"ledgercore/internal/blob/core"
)

func TestStoreLifecycleAgainstFakeBucket(t *testing.T) {
	ctx := context.Background()
	store, bucket := newMock(Config{Bucket: "snap", PathStyle: true, Endpoint: "https://s3.mock.local", Prefix: "ledger"}, 0)

	info, err := store.Put(ctx, "h1.json", bytes.NewReader([]byte(`{"height":1}`)), core.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"height": "1"},
	})
	require.NoError(t, err)
	require.Equal(t, "h1.json", info.Key)
	require.Equal(t, int64(12), info.Size)
	require.Equal(t, "1", info.Metadata["height"])
	require.Contains(t, bucket.objects, "ledger/h1.json")

	_, rc, err := store.Get(ctx, "h1.json")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, `{"height":1}`, string(body))

	_, err = store.Put(ctx, "h1.json", bytes.NewReader([]byte("x")), core.PutOptions{})
	require.True(t, errors.Is(err, core.ErrExists), "got %v", err)

	infos, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, "h1.json", infos[0].Key)

	ok, err := store.Delete(ctx, "h1.json")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = store.Delete(ctx, "h1.json")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStoreMapsMissingObjects(t *testing.T) {
	ctx := context.Background()
	store, _ := newMock(Config{Bucket: "snap", PathStyle: true, Endpoint: "https://s3.mock.local"}, 0)

	_, err := store.Head(ctx, "absent")
	require.ErrorIs(t, err, core.ErrNotFound)
	_, _, err = store.Get(ctx, "absent")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestStoreListFollowsContinuation(t *testing.T) {
	ctx := context.Background()
	store, _ := newMock(Config{Bucket: "snap", PathStyle: true, Endpoint: "https://s3.mock.local"}, 2)
	for _, key := range []string{"s/3", "s/1", "s/5", "s/2", "s/4", "t/1"} {
		_, err := store.Put(ctx, key, bytes.NewReader([]byte(key)), core.PutOptions{})
		require.NoError(t, err)
	}
	infos, err := store.List(ctx, "s/")
	require.NoError(t, err)
	keys := make([]string, 0, len(infos))
	for _, info := range infos {
		keys = append(keys, info.Key)
	}
	require.Equal(t, []string{"s/1", "s/2", "s/3", "s/4", "s/5"}, keys)
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}

func TestDecodeAWSChunked(t *testing.T) {
	framed := []byte("5;chunk-signature=abc\r\nhello\r\n3\r\n\r\nx\r\n0\r\nx-amz-checksum-crc32:AAAA\r\n\r\n")
	require.Equal(t, "hello\r\nx", string(decodeAWSChunked(framed)))
}
