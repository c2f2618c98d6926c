package bundle_test

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/flowvault/pkg/internal/bundle"
	"github.com/yeisme/flowvault/pkg/internal/model"
)

var target = bundle.Target{VersionID: 7, FlowCode: "TI-001", Version: 2}

func TestIngestStoresEveryEntry(t *testing.T) {
	gw := newFakeGateway()
	rec := &memRecorder{}
	ing := bundle.NewIngester(gw, rec, bundle.WithKeyPrefix("/flows/"))

	data := buildZip(t,
		zipEntry{name: "libs/"},
		zipEntry{name: "index.html", body: `<html><link href="./libs/app.css"></html>`},
		zipEntry{name: "libs/app.css", body: "body{}"},
		zipEntry{name: "img/Logo.PNG", body: "png"},
	)

	report, err := ing.Ingest(context.Background(), data, target)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 0, report.Skipped)
	require.Len(t, report.Files, 3)
	require.Len(t, rec.files, 3)
	assert.Len(t, gw.objects, 3)

	keyPattern := regexp.MustCompile(`^flows/TI-001/v2/[^/]+_[0-9a-z]{26}\.[A-Za-z]+$`)

	byPath := map[string]model.File{}
	for _, f := range rec.files {
		byPath[f.OriginalPath] = f

		assert.Equal(t, uint(7), f.VersionID)
		assert.Regexp(t, keyPattern, f.StorageKey)
		assert.Contains(t, gw.objects, f.StorageKey)
	}

	index := byPath["index.html"]
	assert.Equal(t, bundle.KindMarkup, index.Kind)
	assert.Equal(t, "text/html", index.MimeType)
	assert.Contains(t, index.Snapshot, "./libs/app.css")
	assert.True(t, strings.HasPrefix(index.StorageKey, "flows/TI-001/v2/index_"))

	css := byPath["libs/app.css"]
	assert.Equal(t, bundle.KindStylesheet, css.Kind)
	assert.Empty(t, css.Snapshot)
	assert.Equal(t, int64(6), css.Size)
	assert.Equal(t, "app.css", css.Name)

	logo := byPath["img/Logo.PNG"]
	assert.Equal(t, "image/png", gw.mimes[logo.StorageKey])
	assert.True(t, strings.HasSuffix(logo.StorageKey, ".PNG"))
}

func TestIngestSkipsPlatformNoise(t *testing.T) {
	gw := newFakeGateway()
	rec := &memRecorder{}
	ing := bundle.NewIngester(gw, rec)

	data := buildZip(t,
		zipEntry{name: "__MACOSX/._index.html", body: "junk"},
		zipEntry{name: "libs/.DS_Store", body: "junk"},
		zipEntry{name: "Thumbs.db", body: "junk"},
		zipEntry{name: "index.html", body: "<p>hi</p>"},
	)

	report, err := ing.Ingest(context.Background(), data, target)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 3, report.Skipped)
	require.Len(t, rec.files, 1)
	assert.Equal(t, "index.html", rec.files[0].OriginalPath)
}

func TestIngestCorruptEntryIsIsolated(t *testing.T) {
	gw := newFakeGateway()
	rec := &memRecorder{}
	ing := bundle.NewIngester(gw, rec)

	data := buildZip(t,
		zipEntry{name: "index.html", body: "<p>ok</p>"},
		zipEntry{name: "broken.css", body: "CORRUPT-PAYLOAD-0123456789", stored: true},
		zipEntry{name: "a.js", body: "var a;"},
		zipEntry{name: "b.js", body: "var b;"},
	)
	data = corrupt(t, data, "CORRUPT-PAYLOAD-0123456789")

	report, err := ing.Ingest(context.Background(), data, target)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Len(t, rec.files, 3)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "broken.css", report.Errors[0].Path)
	assert.ErrorIs(t, report.Errors[0], bundle.ErrEntryProcessingFailed)
}

func TestIngestUnreadableArchive(t *testing.T) {
	ing := bundle.NewIngester(newFakeGateway(), &memRecorder{})

	_, err := ing.Ingest(context.Background(), []byte("definitely not a zip"), target)
	require.ErrorIs(t, err, bundle.ErrArchiveUnreadable)
}

func TestIngestUploadFailure(t *testing.T) {
	gw := newFakeGateway()
	gw.uploadErr = func(key string) error {
		if strings.Contains(key, "/app_") {
			return bundle.ErrUploadFailed
		}

		return nil
	}

	rec := &memRecorder{}
	ing := bundle.NewIngester(gw, rec)

	data := buildZip(t,
		zipEntry{name: "index.html", body: "<p>ok</p>"},
		zipEntry{name: "libs/app.css", body: "body{}"},
	)

	report, err := ing.Ingest(context.Background(), data, target)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.ErrorIs(t, report.Errors[0], bundle.ErrUploadFailed)
	assert.False(t, report.AllFailed())
}

func TestIngestRecordFailureRemovesObject(t *testing.T) {
	gw := newFakeGateway()
	rec := &memRecorder{fail: func(*model.File) error { return errors.New("db down") }}
	ing := bundle.NewIngester(gw, rec)

	data := buildZip(t, zipEntry{name: "index.html", body: "<p>ok</p>"})

	report, err := ing.Ingest(context.Background(), data, target)
	require.NoError(t, err)

	assert.True(t, report.AllFailed())
	assert.Empty(t, gw.objects)
	assert.Len(t, gw.deleted, 1)
}

func TestIngestDuplicatePathKeepsFirst(t *testing.T) {
	gw := newFakeGateway()
	rec := &memRecorder{}
	ing := bundle.NewIngester(gw, rec)

	data := buildZip(t,
		zipEntry{name: "libs/app.css", body: "first"},
		zipEntry{name: "./libs/app.css", body: "second"},
	)

	report, err := ing.Ingest(context.Background(), data, target)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, rec.files, 1)
	assert.Equal(t, "first", string(gw.objects[rec.files[0].StorageKey]))
}

func TestIngestCaseVariantPathsAreDistinct(t *testing.T) {
	gw := newFakeGateway()
	rec := &memRecorder{}
	ing := bundle.NewIngester(gw, rec)

	data := buildZip(t,
		zipEntry{name: "Index.html", body: "upper"},
		zipEntry{name: "index.html", body: "lower"},
		zipEntry{name: "index.html ", body: "trailing"},
	)

	report, err := ing.Ingest(context.Background(), data, target)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Succeeded)
	assert.Zero(t, report.Skipped)
	require.Len(t, rec.files, 3)

	bodies := map[string]string{}
	for _, f := range rec.files {
		bodies[f.OriginalPath] = string(gw.objects[f.StorageKey])
	}

	assert.Equal(t, map[string]string{
		"Index.html":  "upper",
		"index.html":  "lower",
		"index.html ": "trailing",
	}, bodies)
}

func TestIngestEntryTooLarge(t *testing.T) {
	rec := &memRecorder{}
	ing := bundle.NewIngester(newFakeGateway(), rec, bundle.WithMaxEntryBytes(4))

	data := buildZip(t,
		zipEntry{name: "small.js", body: "a;"},
		zipEntry{name: "big.js", body: "0123456789"},
	)

	report, err := ing.Ingest(context.Background(), data, target)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.ErrorIs(t, report.Errors[0], bundle.ErrEntryTooLarge)
}

func TestIngestInvalidUTF8Snapshot(t *testing.T) {
	rec := &memRecorder{}
	ing := bundle.NewIngester(newFakeGateway(), rec)

	data := buildZip(t, zipEntry{name: "index.html", body: "<p>caf\xe9</p>"})

	_, err := ing.Ingest(context.Background(), data, target)
	require.NoError(t, err)

	require.Len(t, rec.files, 1)
	assert.Equal(t, "<p>caf�</p>", rec.files[0].Snapshot)
}
