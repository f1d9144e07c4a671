package archiver

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidfetch/vidfetch/server/archive"
	_ "modernc.org/sqlite"
)

func newService(t *testing.T) *archive.Service {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, s, err := archive.Container(db)
	require.NoError(t, err)
	return s
}

func TestArchiver_Publish(t *testing.T) {
	s := newService(t)
	a := New(s, true)

	a.Publish(&Message{Title: "one", Source: "https://youtu.be/1", Kind: "video", Success: true})
	a.Publish(&Message{Title: "two", Source: "https://youtu.be/2", Kind: "audio", Reason: "boom"})
	a.Close()

	res, err := s.List(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "two", res.Data[0].Title)
	assert.Equal(t, "boom", res.Data[0].Reason)
}

func TestArchiver_Disabled(t *testing.T) {
	s := newService(t)
	a := New(s, false)

	a.Publish(&Message{Title: "ignored", Source: "u", Kind: "video"})
	a.Close()

	res, err := s.List(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Empty(t, res.Data)
}

func TestArchiver_NilIsNoop(t *testing.T) {
	var a *Archiver
	assert.NotPanics(t, func() { a.Publish(&Message{}) })
}

func TestArchiver_PublishAfterClose(t *testing.T) {
	a := New(newService(t), true)
	a.Close()
	a.Close()

	assert.NotPanics(t, func() { a.Publish(&Message{Title: "late"}) })
}
