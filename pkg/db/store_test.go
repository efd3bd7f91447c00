package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "merge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateAndGetJob(t *testing.T) {
	store := openTestStore(t)

	job, err := store.CreateJob("template-1", "Contract for Alice", "folder-9")
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "template-1", job.TemplateID)
	assert.Equal(t, "Contract for Alice", job.Title)
	assert.Equal(t, "folder-9", job.FolderID)
	assert.Equal(t, StatusPending, job.Status)
	assert.Zero(t, job.Operations)
	assert.False(t, job.CreatedAt.IsZero())

	got, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, job.Title, got.Title)

	_, err = store.GetJob("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestUpdateJob(t *testing.T) {
	store := openTestStore(t)

	job, err := store.CreateJob("template-1", "Offer", "")
	require.NoError(t, err)

	docID := "doc-42"
	status := StatusApplied
	ops := 7
	updated, err := store.UpdateJob(job.ID, &MergeJobUpdate{DocumentID: &docID, Status: &status, Operations: &ops})
	require.NoError(t, err)
	assert.Equal(t, "doc-42", updated.DocumentID)
	assert.Equal(t, StatusApplied, updated.Status)
	assert.Equal(t, 7, updated.Operations)
	assert.Empty(t, updated.Error)
	assert.False(t, updated.UpdatedAt.Before(job.UpdatedAt))

	unchanged, err := store.UpdateJob(job.ID, &MergeJobUpdate{})
	require.NoError(t, err)
	assert.Equal(t, updated.Status, unchanged.Status)

	_, err = store.UpdateJob("missing", &MergeJobUpdate{Status: &status})
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestDeleteJob(t *testing.T) {
	store := openTestStore(t)

	job, err := store.CreateJob("template-1", "Offer", "")
	require.NoError(t, err)

	require.NoError(t, store.DeleteJob(job.ID))
	assert.ErrorIs(t, store.DeleteJob(job.ID), ErrJobNotFound)

	_, err = store.GetJob(job.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestListJobs(t *testing.T) {
	store := openTestStore(t)

	jobs, err := store.ListJobs()
	require.NoError(t, err)
	assert.Empty(t, jobs)

	first, err := store.CreateJob("t", "first", "")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := store.CreateJob("t", "second", "")
	require.NoError(t, err)

	jobs, err = store.ListJobs()
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, second.ID, jobs[0].ID)
	assert.Equal(t, first.ID, jobs[1].ID)
}

func TestTokens(t *testing.T) {
	store := openTestStore(t)

	_, err := store.LoadToken("default")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	expiry := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, store.SaveToken("default", &oauth2.Token{
		AccessToken:  "access-1",
		TokenType:    "Bearer",
		RefreshToken: "refresh-1",
		Expiry:       expiry,
	}))
	require.NoError(t, store.SaveToken("default", &oauth2.Token{
		AccessToken:  "access-2",
		TokenType:    "Bearer",
		RefreshToken: "refresh-1",
		Expiry:       expiry,
	}))

	token, err := store.LoadToken("default")
	require.NoError(t, err)
	assert.Equal(t, "access-2", token.AccessToken)
	assert.Equal(t, "refresh-1", token.RefreshToken)
	assert.True(t, token.Expiry.Equal(expiry))
}

func TestNewStore_UnsupportedDriver(t *testing.T) {
	_, err := NewStore("mysql", "")
	assert.Error(t, err)
}

func TestSQLiteRebind(t *testing.T) {
	assert.Equal(t, "WHERE a = ?1 AND b = ?12", sqliteDialect.rebind("WHERE a = $1 AND b = $12"))
	assert.Equal(t, "WHERE a = $1", postgresDialect.rebind("WHERE a = $1"))
}
