package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "0.0.0.0:8081", cfg.AdminServer.Addr())
	assert.NotEmpty(t, cfg.MySQL.DSN)
	assert.NotEmpty(t, cfg.JWT.Secret)
	assert.NotEmpty(t, cfg.Auth.Nodes)
	// 后台流转的审计归属必须有默认操作者
	assert.NotZero(t, cfg.Admin.OperatorID)
}

// 配置文件缺失时回落到默认值，不报错
func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Admin.OperatorID, cfg.Admin.OperatorID)
	assert.Equal(t, DefaultConfig().MySQL.DSN, cfg.MySQL.DSN)
}
