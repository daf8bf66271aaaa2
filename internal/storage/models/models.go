package models

import (
	"time"
)

// 注意：
// - 不使用 gorm.Model，显式声明每个字段，避免隐式 DeletedAt
// - 64 位地址以 16 位小写十六进制文本存储，便于人工查询

// Node 映射 xbee_nodes 表：发现到的网络节点目录
type Node struct {
	// 主键
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// 64 位 MAC 地址（十六进制文本），唯一
	Address string `gorm:"column:address;type:varchar(16);not null;uniqueIndex"`
	// 16 位网络地址
	NetworkAddr int32 `gorm:"column:network_addr;not null"`
	// NI 字符串
	NodeIdentifier    string `gorm:"column:node_identifier;type:varchar(32);not null;default:''"`
	ParentNetworkAddr int32  `gorm:"column:parent_network_addr;not null"`
	DeviceType        int16  `gorm:"column:device_type;not null"`
	DeviceTypeName    string `gorm:"column:device_type_name;type:varchar(16);not null"`
	ProfileID         int32  `gorm:"column:profile_id;not null"`
	ManufacturerID    int32  `gorm:"column:manufacturer_id;not null"`
	// 累计被发现次数
	SeenCount int64 `gorm:"column:seen_count;not null;default:1"`
	// 最近一次出现在发现结果中
	LastSeenAt time.Time `gorm:"column:last_seen_at;not null"`
	// 审计字段
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Node) TableName() string { return "xbee_nodes" }
