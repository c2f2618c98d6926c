package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/flowvault/pkg/configs"
	"github.com/yeisme/flowvault/pkg/internal/bundle"
	"github.com/yeisme/flowvault/pkg/internal/model"
	"github.com/yeisme/flowvault/pkg/internal/service"
	"github.com/yeisme/flowvault/pkg/internal/types"
	"github.com/yeisme/flowvault/pkg/queue"
)

func TestPublish_Archive(t *testing.T) {
	e := newEnv(t)

	resp := e.publish(t, "  Onboarding  ", siteArchive(t))

	assert.Equal(t, "TI-001", resp.Flow.Code)
	assert.Equal(t, "Onboarding", resp.Flow.Title)
	assert.Equal(t, model.FlowStatusDraft, resp.Flow.Status)
	assert.Equal(t, 1, resp.Flow.CurrentVersion)
	assert.Equal(t, owner, resp.Flow.PublishedBy)
	assert.Equal(t, 1, resp.Version.Number)
	assert.Equal(t, "initial version", resp.Version.Notes)

	assert.Equal(t, 4, resp.Report.Succeeded)
	assert.Equal(t, 0, resp.Report.Failed)
	assert.Equal(t, 2, resp.Report.Skipped)
	assert.Equal(t, 4, e.srv.Len())

	index := e.fileByPath(t, resp.Version.ID, "index.html")
	assert.Equal(t, bundle.KindMarkup, index.Kind)
	assert.Equal(t, indexHTML, index.Snapshot)
	assert.Contains(t, index.StorageKey, "flowvault/flows/TI-001/v1/index_")

	css := e.fileByPath(t, resp.Version.ID, "css/app.css")
	assert.Equal(t, "text/css", css.MimeType)
	assert.Empty(t, css.Snapshot)
}

func TestPublish_SingleFile(t *testing.T) {
	e := newEnv(t)

	resp, err := e.flows().Publish(context.Background(),
		&types.PublishFlowRequest{Title: "Manual", SectorCode: "rh", Tags: " a, ,b "},
		service.Upload{Name: "manual.pdf", Data: []byte("%PDF-1.7")},
		service.Actor{Email: owner},
	)
	require.NoError(t, err)

	assert.Equal(t, "RH-001", resp.Flow.Code)
	assert.Equal(t, "a,b", resp.Flow.Tags)
	assert.Equal(t, 1, resp.Report.Succeeded)

	f := e.fileByPath(t, resp.Version.ID, "manual.pdf")
	assert.Equal(t, bundle.KindDocument, f.Kind)
	assert.Equal(t, "application/pdf", f.MimeType)
}

func TestPublish_CodeSequence(t *testing.T) {
	e := newEnv(t)

	first := e.publish(t, "first", siteArchive(t))
	second := e.publish(t, "second", siteArchive(t))

	assert.Equal(t, "TI-001", first.Flow.Code)
	assert.Equal(t, "TI-002", second.Flow.Code)

	// 已删除的流程编号不会被复用.
	require.NoError(t, e.flows().Delete(context.Background(), second.Flow.ID, service.Actor{Email: owner}))

	third := e.publish(t, "third", siteArchive(t))
	assert.Equal(t, "TI-003", third.Flow.Code)
}

func TestPublish_Failures(t *testing.T) {
	tests := []struct {
		name   string
		sector string
		upload service.Upload
		want   error
	}{
		{
			name:   "unreadable archive",
			sector: "TI",
			upload: service.Upload{Name: "broken.zip", Data: []byte("definitely not a zip")},
			want:   bundle.ErrArchiveUnreadable,
		},
		{
			name:   "only ignored entries",
			sector: "TI",
			upload: service.Upload{Name: "junk.zip", Data: buildZip(t, map[string]string{".DS_Store": "x", "Thumbs.db": "y"})},
			want:   service.ErrNothingIngested,
		},
		{
			name:   "unknown sector",
			sector: "XX",
			upload: service.Upload{Name: "a.pdf", Data: []byte("%PDF")},
			want:   service.ErrSectorNotFound,
		},
		{
			name:   "empty upload",
			sector: "TI",
			upload: service.Upload{Name: "a.pdf"},
			want:   service.ErrEmptyUpload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)

			_, err := e.flows().Publish(context.Background(),
				&types.PublishFlowRequest{Title: "x", SectorCode: tt.sector},
				tt.upload, service.Actor{Email: owner})
			require.ErrorIs(t, err, tt.want)

			var flows, versions int64
			require.NoError(t, e.db.Unscoped().Model(&model.Flow{}).Count(&flows).Error)
			require.NoError(t, e.db.Unscoped().Model(&model.Version{}).Count(&versions).Error)
			assert.Zero(t, flows)
			assert.Zero(t, versions)
		})
	}
}

func TestPublish_UploadFailureRollsBack(t *testing.T) {
	e := newEnv(t)
	e.srv.FailNext("upload", 500)

	_, err := e.flows().Publish(context.Background(),
		&types.PublishFlowRequest{Title: "x", SectorCode: "TI"},
		service.Upload{Name: "a.pdf", Data: []byte("%PDF")},
		service.Actor{Email: owner})
	require.ErrorIs(t, err, service.ErrNothingIngested)

	var files int64
	require.NoError(t, e.db.Unscoped().Model(&model.File{}).Count(&files).Error)
	assert.Zero(t, files)
}

func TestPublishVersion(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	first := e.publish(t, "flow", siteArchive(t))
	v2 := buildZip(t, map[string]string{"index.html": "<p>v2</p>"})

	_, err := e.flows().PublishVersion(ctx, first.Flow.ID, service.Upload{Name: "v2.zip", Data: v2}, "", service.Actor{Email: other})
	require.ErrorIs(t, err, service.ErrForbidden)

	resp, err := e.flows().PublishVersion(ctx, first.Flow.ID, service.Upload{Name: "v2.zip", Data: v2}, "fix typo", service.Actor{Email: owner})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Version.Number)
	assert.Equal(t, "fix typo", resp.Version.Notes)
	assert.Equal(t, 2, resp.Flow.CurrentVersion)
	assert.Contains(t, e.fileByPath(t, resp.Version.ID, "index.html").StorageKey, "/TI-001/v2/")

	resp, err = e.flows().PublishVersion(ctx, first.Flow.ID, service.Upload{Name: "v3.zip", Data: v2}, "", service.Actor{Email: other, Admin: true})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Version.Number)

	_, err = e.flows().PublishVersion(ctx, first.Flow.ID, service.Upload{Name: "bad.zip", Data: []byte("PK\x03\x04 truncated")}, "", service.Actor{Email: owner})
	require.ErrorIs(t, err, bundle.ErrArchiveUnreadable)

	var flow model.Flow
	require.NoError(t, e.db.First(&flow, first.Flow.ID).Error)
	assert.Equal(t, 3, flow.CurrentVersion)

	_, err = e.flows().PublishVersion(ctx, 999, service.Upload{Name: "v.zip", Data: v2}, "", service.Actor{Email: owner})
	require.ErrorIs(t, err, service.ErrFlowNotFound)
}

func TestIngestIntoExistingVersion(t *testing.T) {
	e := newEnv(t)

	resp := e.publish(t, "flow", buildZip(t, map[string]string{"index.html": "<p>hi</p>"}))

	report, err := e.flows().Ingest(context.Background(), buildZip(t, map[string]string{"extra/notes.txt": "n"}), resp.Version)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	require.Len(t, report.Files, 1)
	assert.Equal(t, "extra/notes.txt", report.Files[0].OriginalPath)

	_, err = e.flows().Ingest(context.Background(), []byte("nope"), resp.Version)
	require.ErrorIs(t, err, bundle.ErrArchiveUnreadable)
}

func TestListAndGet(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := e.publish(t, "Onboarding guide", siteArchive(t))
	e.publish(t, "Payroll", buildZip(t, map[string]string{"doc.pdf": "%PDF"}))

	_, err := e.flows().Publish(ctx,
		&types.PublishFlowRequest{Title: "Hiring", SectorCode: "RH"},
		service.Upload{Name: "hiring.pdf", Data: []byte("%PDF")}, service.Actor{Email: owner})
	require.NoError(t, err)

	_, err = e.flows().UpdateStatus(ctx, a.Flow.ID, "published", service.Actor{Email: owner})
	require.NoError(t, err)

	list, err := e.flows().List(ctx, &types.ListFlowsRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, list.Total)
	assert.Equal(t, 20, list.Size)

	list, err = e.flows().List(ctx, &types.ListFlowsRequest{Sector: "ti"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, list.Total)

	list, err = e.flows().List(ctx, &types.ListFlowsRequest{Status: "published"})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, a.Flow.ID, list.Items[0].ID)
	require.NotNil(t, list.Items[0].Sector)
	assert.Equal(t, "TI", list.Items[0].Sector.Code)

	list, err = e.flows().List(ctx, &types.ListFlowsRequest{Query: "payroll", Page: 1, Size: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 1, list.Total)

	detail, err := e.flows().Get(ctx, a.Flow.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, detail.Flow.Views)
	assert.Len(t, detail.Versions, 1)
	assert.Len(t, detail.Files, 4)
	require.NotNil(t, detail.Primary)
	assert.Equal(t, "index.html", detail.Primary.OriginalPath)
	assert.Contains(t, detail.Primary.URL, e.srv.URL+"/storage/v1/object/sign/flows/")

	detail, err = e.flows().Get(ctx, a.Flow.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, detail.Flow.Views)

	_, err = e.flows().Get(ctx, 404)
	require.ErrorIs(t, err, service.ErrFlowNotFound)
}

func TestUpdateStatusAndDelete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	resp := e.publish(t, "flow", siteArchive(t))

	_, err := e.flows().UpdateStatus(ctx, resp.Flow.ID, "gone", service.Actor{Email: owner})
	require.ErrorIs(t, err, service.ErrInvalidStatus)

	_, err = e.flows().UpdateStatus(ctx, resp.Flow.ID, "archived", service.Actor{Email: other})
	require.ErrorIs(t, err, service.ErrForbidden)

	flow, err := e.flows().UpdateStatus(ctx, resp.Flow.ID, "archived", service.Actor{Email: owner})
	require.NoError(t, err)
	assert.Equal(t, model.FlowStatusArchived, flow.Status)

	require.ErrorIs(t, e.flows().Delete(ctx, resp.Flow.ID, service.Actor{Email: other}), service.ErrForbidden)
	require.NoError(t, e.flows().Delete(ctx, resp.Flow.ID, service.Actor{Email: other, Admin: true}))

	_, err = e.flows().Get(ctx, resp.Flow.ID)
	require.ErrorIs(t, err, service.ErrFlowNotFound)

	var live, all int64
	require.NoError(t, e.db.Model(&model.File{}).Count(&live).Error)
	require.NoError(t, e.db.Unscoped().Model(&model.File{}).Count(&all).Error)
	assert.Zero(t, live)
	assert.EqualValues(t, 4, all)

	// 对象保留到清理任务执行.
	assert.Equal(t, 4, e.srv.Len())
}

func TestPublishEmitsEvents(t *testing.T) {
	e := newEnv(t)

	ps := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 8}, watermill.NopLogger{})
	defer ps.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	published, err := ps.Subscribe(ctx, queue.TopicFlowPublished)
	require.NoError(t, err)

	ingested, err := ps.Subscribe(ctx, queue.TopicBundleIngested)
	require.NoError(t, err)

	e.deps.Events = queue.NewPublisher(ps, configs.EventsConfig{
		Enabled: true,
		Flow:    configs.FlowEventsConfig{Published: true, Ingested: true},
	})

	resp := e.publish(t, "flow", siteArchive(t))

	select {
	case msg := <-ingested:
		msg.Ack()

		env, err := queue.ParseBundleIngested(msg)
		require.NoError(t, err)
		assert.Equal(t, resp.Version.ID, env.Payload.VersionID)
		assert.Equal(t, 4, env.Payload.Succeeded)
		assert.Equal(t, 2, env.Payload.Skipped)
	case <-ctx.Done():
		t.Fatal("no ingest event")
	}

	select {
	case msg := <-published:
		msg.Ack()

		env, err := queue.ParseFlowPublished(msg)
		require.NoError(t, err)
		assert.Equal(t, "TI-001", env.Payload.Flow.Code)
		assert.Equal(t, "TI", env.Payload.Sector)
		assert.Equal(t, 4, env.Payload.Files)
	case <-ctx.Done():
		t.Fatal("no publish event")
	}
}

func TestUploadIsArchive(t *testing.T) {
	assert.True(t, service.Upload{Name: "a.ZIP"}.IsArchive())
	assert.True(t, service.Upload{Name: "upload", Data: []byte("PK\x03\x04rest")}.IsArchive())
	assert.False(t, service.Upload{Name: "a.pdf", Data: []byte("%PDF")}.IsArchive())
}
