package store

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 keeps objects in memory, keyed by bucket/key.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	getErr  error
	putErr  error
	puts    int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)] = data
	f.puts++
	return &s3.PutObjectOutput{}, nil
}

func TestS3Store_MissingObjectIsEmpty(t *testing.T) {
	st := NewS3Store(newFakeS3(), "hq-bucket", "entitlements/orders.json", zerolog.Nop())

	orders, err := st.LoadAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
	assert.Equal(t, BackendS3, st.Backend())
}

func TestS3Store_RoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	st := NewS3Store(client, "hq-bucket", "entitlements/orders.json", zerolog.Nop())

	want := sampleOrders()
	require.NoError(t, st.SaveAll(ctx, want))
	assert.Equal(t, 1, client.puts)
	assert.Contains(t, client.objects, "hq-bucket/entitlements/orders.json")

	got, err := st.LoadAll(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LoadAll() mismatch (-want +got):\n%s", diff)
	}
}

func TestS3Store_Failures(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	client.getErr = errors.New("access denied")
	client.putErr = errors.New("service unavailable")
	st := NewS3Store(client, "hq-bucket", "orders.json", zerolog.Nop())

	_, err := st.LoadAll(ctx)
	pe, ok := AsPersistenceError(err)
	require.True(t, ok)
	assert.Equal(t, OpLoad, pe.Op)
	assert.Equal(t, BackendS3, pe.Backend)

	err = st.SaveAll(ctx, sampleOrders())
	pe, ok = AsPersistenceError(err)
	require.True(t, ok)
	assert.Equal(t, OpSave, pe.Op)
	assert.Contains(t, err.Error(), "service unavailable")
}

func TestS3Store_CorruptObject(t *testing.T) {
	client := newFakeS3()
	client.objects["hq-bucket/orders.json"] = []byte("<html>")
	st := NewS3Store(client, "hq-bucket", "orders.json", zerolog.Nop())

	_, err := st.LoadAll(context.Background())
	assert.ErrorIs(t, err, ErrPersistence)
}
