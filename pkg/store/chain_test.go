package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFirstAuth(t *testing.T) {
	ctx := context.Background()
	unavailable := &fakeStore{kind: KindSecretTool, label: "a", available: false, record: sampleRecord()}
	empty := &fakeStore{kind: KindPass, label: "b", available: true}
	withRecord := &fakeStore{kind: KindFile, label: "c", available: true, record: sampleRecord()}
	after := &fakeStore{kind: KindFile, label: "d", available: true, record: sampleRecord()}

	sel, err := GetFirstAuth(ctx, []Store{unavailable, empty, withRecord, after})
	require.NoError(t, err)
	require.NotNil(t, sel)
	assert.Same(t, withRecord, sel.Store)
	assert.Equal(t, sampleRecord(), sel.Record)

	assert.Equal(t, 0, unavailable.getCalls)
	assert.Equal(t, 1, empty.getCalls)
	assert.Equal(t, 0, after.probeCalled)
	assert.Equal(t, 0, after.getCalls)
}

func TestGetFirstAuth_None(t *testing.T) {
	sel, err := GetFirstAuth(context.Background(), []Store{
		&fakeStore{kind: KindPass, available: true},
		&fakeStore{kind: KindFile, available: false},
	})
	require.NoError(t, err)
	assert.Nil(t, sel)

	sel, err = GetFirstAuth(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, sel)
}

func TestGetFirstAuth_CorruptEntryPropagates(t *testing.T) {
	bad := &fakeStore{kind: KindPass, label: "pass", available: true, getErr: errBoom}
	later := &fakeStore{kind: KindFile, available: true, record: sampleRecord()}

	_, err := GetFirstAuth(context.Background(), []Store{bad, later})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errBoom))
	assert.Equal(t, 0, later.getCalls)
}

func TestSetWithFallback(t *testing.T) {
	ctx := context.Background()
	failing := &fakeStore{kind: KindSecretTool, label: "secret-tool", available: true, setErr: errBoom}
	ok := &fakeStore{kind: KindFile, label: "file", available: true}

	res, err := SetWithFallback(ctx, []Store{failing, ok}, sampleRecord())
	require.NoError(t, err)
	assert.Same(t, ok, res.Store)
	assert.True(t, res.UsedFallback)
	require.Len(t, res.Failures, 1)
	assert.Same(t, failing, res.Failures[0].Store)
	assert.Equal(t, "secret-tool: boom", res.Failures[0].String())
	assert.Equal(t, sampleRecord(), ok.record)
}

func TestSetWithFallback_FirstAvailableIsNotFallback(t *testing.T) {
	unavailable := &fakeStore{kind: KindSecretTool, available: false}
	ok := &fakeStore{kind: KindPass, available: true}

	res, err := SetWithFallback(context.Background(), []Store{unavailable, ok}, sampleRecord())
	require.NoError(t, err)
	assert.Same(t, ok, res.Store)
	assert.False(t, res.UsedFallback)
	assert.Empty(t, res.Failures)
	assert.Equal(t, 0, unavailable.setCalls)
}

func TestSetWithFallback_AllFail(t *testing.T) {
	unavailable := &fakeStore{kind: KindSecretTool, label: "secret-tool", available: false}
	first := &fakeStore{kind: KindPass, label: "pass", available: true, setErr: errBoom}
	second := &fakeStore{kind: KindFile, label: "file (/x)", available: true, setErr: errors.New("disk full")}

	_, err := SetWithFallback(context.Background(), []Store{unavailable, first, second}, sampleRecord())
	require.Error(t, err)
	assert.Equal(t, "failed to store auth using pass", err.Error())

	var setErr *SetError
	require.True(t, errors.As(err, &setErr))
	assert.Same(t, first, setErr.Preferred)
	assert.Len(t, setErr.Failures, 2)
	assert.Equal(t, "pass: boom; file: disk full", setErr.Detail())
}

func TestSetWithFallback_NoneAvailable(t *testing.T) {
	_, err := SetWithFallback(context.Background(), []Store{
		&fakeStore{kind: KindSecretTool},
		&fakeStore{kind: KindPass},
	}, sampleRecord())
	assert.True(t, errors.Is(err, ErrNoAvailableStores))
}

func TestClearAllAvailable(t *testing.T) {
	ok := &fakeStore{kind: KindSecretTool, available: true, record: sampleRecord()}
	failing := &fakeStore{kind: KindPass, available: true, clearErr: errBoom}
	unavailable := &fakeStore{kind: KindFile, available: false}
	later := &fakeStore{kind: KindFile, available: true, record: sampleRecord()}

	res := ClearAllAvailable(context.Background(), []Store{ok, failing, unavailable, later})

	assert.Equal(t, []Store{ok, later}, res.Cleared)
	require.Len(t, res.Failed, 1)
	assert.Same(t, failing, res.Failed[0].Store)
	assert.Equal(t, 0, unavailable.clearCalls)
	assert.Equal(t, 1, later.clearCalls)
	assert.Nil(t, ok.record)
}

func TestClearAllAvailable_UnavailableExcluded(t *testing.T) {
	ok := &fakeStore{kind: KindSecretTool, available: true}
	failing := &fakeStore{kind: KindPass, available: true, clearErr: errBoom}
	unavailable := &fakeStore{kind: KindFile, available: false}

	res := ClearAllAvailable(context.Background(), []Store{ok, failing, unavailable})
	assert.Equal(t, []Store{ok}, res.Cleared)
	require.Len(t, res.Failed, 1)
	assert.Same(t, failing, res.Failed[0].Store)
}
