package db

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"

	"github.com/yeisme/flowvault/pkg/configs"
	"github.com/yeisme/flowvault/pkg/internal/model"
)

func TestJoinParams(t *testing.T) {
	got := joinParams(
		map[string]string{"sslmode": "disable", "TimeZone": "UTC", "empty": ""},
		map[string]string{"sslmode": "require", "connect_timeout": "3"},
		" ",
	)

	assert.Equal(t, "TimeZone=UTC connect_timeout=3 sslmode=require", got)
	assert.Empty(t, joinParams(nil, nil, "&"))
}

func TestRegisteredTypes(t *testing.T) {
	types := GetRegisteredDBTypes()

	for _, want := range []configs.DBType{configs.SQLite, configs.MySQL, configs.MariaDB, configs.PostgreSQL, configs.Pg} {
		assert.Contains(t, types, want)
	}
}

func TestNew_SQLiteMemory(t *testing.T) {
	require.NoError(t, configs.InitConfig(t.TempDir()))

	ctx := context.Background()
	cfg := configs.GetConfig().DB
	cfg.Type = configs.SQLite
	cfg.Database = ":memory:"
	cfg.MaxOpenConns = 1

	client, err := New(ctx, &cfg)
	require.NoError(t, err)

	defer client.Close()

	require.NoError(t, client.Migrate(ctx, model.Models()...))

	for _, m := range model.Models() {
		assert.True(t, client.Migrator().HasTable(m))
	}
}

func TestNew_UnknownType(t *testing.T) {
	require.NoError(t, configs.InitConfig(t.TempDir()))

	_, err := New(context.Background(), &configs.DBConfig{Type: "oracle"})
	assert.ErrorContains(t, err, "unsupported database type")
}

func TestFilePathIndexDefinition(t *testing.T) {
	sch, err := schema.Parse(&model.File{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)

	pathKey := sch.LookUpField("PathKey")
	require.NotNil(t, pathKey)
	assert.Equal(t, 64, pathKey.Size)
	assert.Contains(t, strings.ToUpper(pathKey.Tag.Get("gorm")), "UNIQUEINDEX:IDX_VERSION_PATH")

	original := sch.LookUpField("OriginalPath")
	require.NotNil(t, original)
	assert.NotContains(t, strings.ToUpper(original.Tag.Get("gorm")), "UNIQUEINDEX")
}

func TestFilePathUniquePerVersion(t *testing.T) {
	require.NoError(t, configs.InitConfig(t.TempDir()))

	ctx := context.Background()
	cfg := configs.GetConfig().DB
	cfg.Type = configs.SQLite
	cfg.Database = ":memory:"
	cfg.MaxOpenConns = 1

	client, err := New(ctx, &cfg)
	require.NoError(t, err)

	defer client.Close()

	require.NoError(t, client.Migrate(ctx, model.Models()...))
	require.True(t, client.Migrator().HasIndex(&model.File{}, "idx_version_path"))

	var cols []string
	require.NoError(t, client.Raw("SELECT name FROM pragma_index_info('idx_version_path') ORDER BY seqno").Scan(&cols).Error)
	assert.Equal(t, []string{"version_id", "path_key"}, cols)

	for _, p := range []string{"Index.html", "index.html", "index.html "} {
		f := &model.File{VersionID: 1, OriginalPath: p, Name: p, Kind: model.KindMarkup}
		require.NoError(t, client.WithContext(ctx).Create(f).Error, p)
		assert.Equal(t, model.PathKeyOf(p), f.PathKey)
		assert.Len(t, f.PathKey, 64)
	}

	dup := &model.File{VersionID: 1, OriginalPath: "index.html", Name: "index.html"}
	assert.Error(t, client.WithContext(ctx).Create(dup).Error)

	other := &model.File{VersionID: 2, OriginalPath: "index.html", Name: "index.html"}
	assert.NoError(t, client.WithContext(ctx).Create(other).Error)
}
