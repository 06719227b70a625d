package sql

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"opsdash/backend/internal/domain"
	"opsdash/backend/internal/storage"
)

// emailRow 邮件记录的数据库行。
//
// 记录本身是开放 map，无法映射为固定列，整体存入 jsonb；
// id 与接收时间提出为独立列用于主键和排序索引。
type emailRow struct {
	ID         string `gorm:"primaryKey;type:varchar(255)"`
	ReceivedAt *time.Time
	Payload    []byte    `gorm:"type:jsonb;not null"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定表名。
func (emailRow) TableName() string {
	return "emails"
}

// Store PostgreSQL 存储实现（对接 Supabase 托管的 Postgres）。
type Store struct {
	db *gorm.DB
}

// NewStore 创建 PostgreSQL 存储并执行自动迁移。
func NewStore(dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime time.Duration) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	if err := Migrate(db); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// Migrate 执行数据库自动迁移。
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&emailRow{})
}

// Upsert 在事务内逐条读取-合并-写入，保证并发下的合并语义。
func (s *Store) Upsert(records []domain.EmailRecord) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, rec := range records {
			id := rec.ID()
			if id == "" {
				continue
			}

			merged := rec
			var existing emailRow
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ?", id).First(&existing).Error
			switch {
			case err == nil:
				current, decodeErr := decodeRecord(existing.Payload)
				if decodeErr != nil {
					return decodeErr
				}
				current.Merge(rec)
				merged = current
			case errors.Is(err, gorm.ErrRecordNotFound):
				// 新记录
			default:
				return err
			}

			row, err := encodeRow(merged)
			if err != nil {
				return err
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// List 返回全部记录，按 received_date 从新到旧排序。
//
// 排序在内存中完成，复用 domain 的比较语义，保证无效日期的
// 排序行为与内存存储完全一致。
func (s *Store) List() ([]domain.EmailRecord, error) {
	var rows []emailRow
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]domain.EmailRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := decodeRecord(row.Payload)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	domain.SortByReceivedDesc(records)
	return records, nil
}

// Get 按 id 获取记录。
func (s *Store) Get(id string) (domain.EmailRecord, error) {
	var row emailRow
	if err := s.db.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrRecordNotFound
		}
		return nil, err
	}
	return decodeRecord(row.Payload)
}

// Update 将字段浅合并到已有记录上；id 不存在时静默无操作。
func (s *Store) Update(id string, fields domain.EmailRecord) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var existing emailRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		current, err := decodeRecord(existing.Payload)
		if err != nil {
			return err
		}
		current.Merge(fields)

		row, err := encodeRow(current)
		if err != nil {
			return err
		}
		return tx.Model(&emailRow{}).Where("id = ?", id).
			Updates(map[string]any{
				"payload":     row.Payload,
				"received_at": row.ReceivedAt,
			}).Error
	})
}

// Delete 删除记录，幂等。
func (s *Store) Delete(id string) error {
	return s.db.Where("id = ?", id).Delete(&emailRow{}).Error
}

// Count 返回记录数量。
func (s *Store) Count() (int, error) {
	var count int64
	if err := s.db.Model(&emailRow{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// Close 关闭数据库连接。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 检查数据库连接状态。
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// encodeRow 将记录编码为数据库行。
func encodeRow(rec domain.EmailRecord) (emailRow, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return emailRow{}, fmt.Errorf("failed to encode email record: %w", err)
	}

	row := emailRow{ID: rec.ID(), Payload: payload}
	if t, ok := rec.ReceivedTime(); ok {
		utc := t.UTC()
		row.ReceivedAt = &utc
	}
	return row, nil
}

// decodeRecord 将 jsonb 载荷还原为记录。
//
// 使用 UseNumber 解码，避免把未知数字字段降级为 float64
// 后在响应里变成科学计数法。
func decodeRecord(payload []byte) (domain.EmailRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var rec domain.EmailRecord
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode email record: %w", err)
	}
	return rec, nil
}
