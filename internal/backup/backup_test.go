package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"user-accounts/internal/domain"
	"user-accounts/internal/repository/sqlite"
	"user-accounts/internal/storage"
)

type fakeStorage struct {
	uploads  map[string][]byte
	listed   []storage.ObjectInfo
	prefix   string
	fail     error
	lastPath string
}

func (f *fakeStorage) UploadFile(_ context.Context, localPath, name string, opts storage.UploadOptions) (string, error) {
	if f.fail != nil {
		return "", f.fail
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", err
	}
	if f.uploads == nil {
		f.uploads = map[string][]byte{}
	}
	key := storage.ObjectKey(opts.KeyPrefix, name)
	f.uploads[key] = data
	f.lastPath = localPath
	return "s3://" + opts.Bucket + "/" + key, nil
}

func (f *fakeStorage) ListObjects(_ context.Context, _, prefix string) ([]storage.ObjectInfo, error) {
	f.prefix = prefix
	return f.listed, f.fail
}

func newRunner(t *testing.T, store storage.Service) *Runner {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.Migrate(ctx, db, nil))

	_, err = sqlite.NewUserRepository(db).Create(ctx, &domain.User{
		Username:     "alice",
		Password:     "p1",
		Token:        "tok",
		Status:       domain.UserStatusOnline,
		CreationDate: time.Now(),
	})
	require.NoError(t, err)

	logger, _ := logtest.NewNullLogger()
	r := NewRunner(db, store, Config{
		UploadOptions: storage.UploadOptions{Bucket: "snapshots", KeyPrefix: "user-backups"},
		Logger:        logger,
	})
	r.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 5, 0, time.UTC) }
	return r
}

func TestRunner_Run(t *testing.T) {
	store := &fakeStorage{}
	r := newRunner(t, store)

	location, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s3://snapshots/user-backups/users-20240301T120005Z.db", location)

	data := store.uploads["user-backups/users-20240301T120005Z.db"]
	require.NotEmpty(t, data)
	assert.Equal(t, "SQLite format 3\x00", string(data[:16]))

	_, err = os.Stat(store.lastPath)
	assert.True(t, os.IsNotExist(err), "temporary snapshot must be removed")
}

func TestRunner_RunUploadError(t *testing.T) {
	boom := errors.New("access denied")
	r := newRunner(t, &fakeStorage{fail: boom})

	_, err := r.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRunner_List(t *testing.T) {
	store := &fakeStorage{listed: []storage.ObjectInfo{
		{Key: "user-backups/users-20240101T000000Z.db"},
		{Key: "user-backups/users-20240301T000000Z.db"},
		{Key: "user-backups/users-notes.txt"},
	}}
	r := newRunner(t, store)

	got, err := r.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "user-backups/users-", store.prefix)
	require.Len(t, got, 2)
	assert.Equal(t, "user-backups/users-20240301T000000Z.db", got[0].Key)
}

func TestSnapshotName(t *testing.T) {
	at := time.Date(2024, 12, 31, 23, 59, 59, 0, time.FixedZone("CET", 3600))
	assert.Equal(t, "users-20241231T225959Z.db", SnapshotName(at))
}
