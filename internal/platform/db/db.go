package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// New 创建 pgx 连接池；统计消费者是唯一的写入方
func New(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	return pgxpool.NewWithConfig(ctx, cfg)
}
