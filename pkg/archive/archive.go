package archive

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "node-monitor/internal/errors"
)

// Store 归档存储，S3Client 实现了该接口
type Store interface {
	Upload(ctx context.Context, key string, data []byte) error
}

// Archiver 将报告行按时间归档
type Archiver struct {
	store   Store
	prefix  string
	timeout time.Duration
}

func New(store Store, prefix string, timeout time.Duration) *Archiver {
	return &Archiver{
		store:   store,
		prefix:  strings.Trim(prefix, "/"),
		timeout: timeout,
	}
}

// Key 归档对象键: <prefix>/YYYY/MM/DD/HHMMSS.txt，时间取 UTC
func Key(prefix string, at time.Time) string {
	at = at.UTC()
	name := at.Format("2006/01/02/150405") + ".txt"
	if prefix = strings.Trim(prefix, "/"); prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// Archive 上传一行报告，返回对象键
func (a *Archiver) Archive(ctx context.Context, line string, at time.Time) (string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	key := Key(a.prefix, at)
	if err := a.store.Upload(ctx, key, []byte(line+"\n")); err != nil {
		return key, &apperrors.MetricsError{
			Code:    apperrors.ErrArchive,
			Message: fmt.Sprintf("archive report %s", key),
			Err:     err,
		}
	}
	log.Debug().Str("key", key).Int("bytes", len(line)+1).Msg("[Archive] report uploaded")
	return key, nil
}
