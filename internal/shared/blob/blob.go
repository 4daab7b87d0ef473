// Package blob 文档 blob 存储抽象
//
// 元数据（model.File）与 blob 分离存储：blob 由本包管理，
// 默认落本地磁盘（按线索建目录），也可配置为 MinIO 对象存储。
// 写入顺序约定：先写 blob、后提交元数据；元数据提交失败时由调用方
// 删除孤儿 blob。
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
)

// ErrNotExist blob 不存在
//
// 元数据存在而 blob 缺失（存储漂移）时由 Open 返回，调用方应以 404 暴露。
var ErrNotExist = errors.New("blob: object does not exist")

// Store blob 存储接口
type Store interface {
	// Save 写入对象；key 已存在时覆盖
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Open 打开对象读取流，调用方负责关闭；不存在返回 ErrNotExist
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Exists 检查对象是否存在
	Exists(ctx context.Context, key string) (bool, error)
	// Delete 删除对象；不存在不视为错误
	Delete(ctx context.Context, key string) error
}

// NewKey 生成按线索分目录的存储 key
//
// 格式：<leadID>/<field>-<纳秒时间戳>-<随机后缀><原扩展名>，
// 高精度时间戳 + 随机后缀避免同名冲突。
func NewKey(leadID, field, ext string) string {
	suffix := uuid.NewString()[:8]
	return path.Join(leadID, fmt.Sprintf("%s-%d-%s%s", field, time.Now().UnixNano(), suffix, ext))
}
