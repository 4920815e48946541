package tasks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunasat/fsw-core"
	"github.com/lunasat/fsw-core/transport"
)

type fakeDownlinkStore struct {
	path        string
	requestErr  error
	fileData    []byte
	readErr     error
	notifiedTag string
	notifiedPath string
	notifiedOK  bool
}

func (f *fakeDownlinkStore) RequestTMPath(tag string, latest bool) (string, error) {
	return f.path, f.requestErr
}

func (f *fakeDownlinkStore) NotifyTMPath(tag, path string, success bool) error {
	f.notifiedTag, f.notifiedPath, f.notifiedOK = tag, path, success
	return nil
}

func (f *fakeDownlinkStore) ReadFile(path string) ([]byte, error) {
	return f.fileData, f.readErr
}

type fakeSender struct {
	sent *transport.Message
	err  error
}

func (f *fakeSender) SendMessage(ctx context.Context, msg *transport.Message) error {
	f.sent = msg
	return f.err
}

func TestDownlinkSendsLeasedFileAndNotifiesSuccess(t *testing.T) {
	store := &fakeDownlinkStore{path: "/sd/log/log_1.dat", fileData: []byte("hello world")}
	sender := &fakeSender{}
	dl := NewDownlink(store, sender, "log", 0x01, nil, nil)

	require.NoError(t, dl.MainTask(context.Background()))

	require.NotNil(t, sender.sent)
	assert.Equal(t, uint8(0x01), sender.sent.Type)
	assert.Equal(t, "log", store.notifiedTag)
	assert.Equal(t, "/sd/log/log_1.dat", store.notifiedPath)
	assert.True(t, store.notifiedOK)
}

func TestDownlinkNotifiesFailureWhenSendFails(t *testing.T) {
	store := &fakeDownlinkStore{path: "/sd/log/log_1.dat", fileData: []byte("hello")}
	sender := &fakeSender{err: fsw.NewError("fakeSender", fsw.ErrTransport, "link down")}
	dl := NewDownlink(store, sender, "log", 0x01, nil, nil)

	err := dl.MainTask(context.Background())
	assert.Error(t, err)
	assert.False(t, store.notifiedOK)
}

func TestDownlinkNoopWhenNothingQueued(t *testing.T) {
	store := &fakeDownlinkStore{requestErr: fsw.NewError("fake", fsw.ErrIO, "no file available for transmit")}
	sender := &fakeSender{}
	dl := NewDownlink(store, sender, "log", 0x01, nil, nil)

	require.NoError(t, dl.MainTask(context.Background()))
	assert.Nil(t, sender.sent)
}
