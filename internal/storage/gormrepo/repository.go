package gormrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/taoyao-code/xbee-digimesh/internal/protocol/xbee"
	"github.com/taoyao-code/xbee-digimesh/internal/storage/models"
)

// ErrNodeNotFound 目录中没有该地址
var ErrNodeNotFound = errors.New("node not found")

// Repository 基于 GORM 的节点目录
type Repository struct {
	db *gorm.DB
}

// New 返回一个使用给定 *gorm.DB 的目录实例
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Open 连接 PostgreSQL 并按需建表
func Open(dsn string, autoMigrate bool) (*Repository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open directory: %w", err)
	}
	repo := New(db)
	if autoMigrate {
		if err := repo.Migrate(context.Background()); err != nil {
			return nil, err
		}
	}
	return repo, nil
}

// Migrate 建表/补列
func (r *Repository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&models.Node{})
}

// Ping 连通性检查
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭底层连接池
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// NodeFromDescriptor 将发现结果转换为目录记录
func NodeFromDescriptor(n xbee.NodeDescriptor, seenAt time.Time) models.Node {
	return models.Node{
		Address:           n.Address.String(),
		NetworkAddr:       int32(n.NetworkAddress),
		NodeIdentifier:    n.NodeIdentifier,
		ParentNetworkAddr: int32(n.ParentNetworkAddress),
		DeviceType:        int16(n.DeviceType),
		DeviceTypeName:    n.DeviceType.String(),
		ProfileID:         int32(n.ProfileID),
		ManufacturerID:    int32(n.ManufacturerID),
		SeenCount:         1,
		LastSeenAt:        seenAt,
	}
}

// upsert 按地址冲突更新，累加 seen_count
func upsert(tx *gorm.DB, rows []models.Node) *gorm.DB {
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "address"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"network_addr":        gorm.Expr("excluded.network_addr"),
			"node_identifier":     gorm.Expr("excluded.node_identifier"),
			"parent_network_addr": gorm.Expr("excluded.parent_network_addr"),
			"device_type":         gorm.Expr("excluded.device_type"),
			"device_type_name":    gorm.Expr("excluded.device_type_name"),
			"profile_id":          gorm.Expr("excluded.profile_id"),
			"manufacturer_id":     gorm.Expr("excluded.manufacturer_id"),
			"last_seen_at":        gorm.Expr("excluded.last_seen_at"),
			"seen_count":          gorm.Expr("xbee_nodes.seen_count + 1"),
			"updated_at":          gorm.Expr("NOW()"),
		}),
	}).Create(&rows)
}

// UpsertNodes 写入一次发现的结果（同一批内重复地址以最后一条为准）
func (r *Repository) UpsertNodes(ctx context.Context, nodes []xbee.NodeDescriptor, seenAt time.Time) error {
	if len(nodes) == 0 {
		return nil
	}
	rows := dedupe(nodes, seenAt)
	return upsert(r.db.WithContext(ctx), rows).Error
}

// ON CONFLICT 不允许同一语句内两次命中同一行
func dedupe(nodes []xbee.NodeDescriptor, seenAt time.Time) []models.Node {
	index := make(map[xbee.Address]int, len(nodes))
	rows := make([]models.Node, 0, len(nodes))
	for _, n := range nodes {
		if i, ok := index[n.Address]; ok {
			rows[i] = NodeFromDescriptor(n, seenAt)
			continue
		}
		index[n.Address] = len(rows)
		rows = append(rows, NodeFromDescriptor(n, seenAt))
	}
	return rows
}

// GetNode 通过地址查询
func (r *Repository) GetNode(ctx context.Context, addr xbee.Address) (*models.Node, error) {
	var n models.Node
	err := r.db.WithContext(ctx).Where("address = ?", addr.String()).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNodeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// ListNodes 按最近出现时间倒序
func (r *Repository) ListNodes(ctx context.Context, limit, offset int) ([]models.Node, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []models.Node
	err := r.db.WithContext(ctx).
		Order("last_seen_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	return out, err
}
