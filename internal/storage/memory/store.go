package memory

import (
	"sync"

	"opsdash/backend/internal/domain"
	"opsdash/backend/internal/storage"
)

// Store 使用内存保存邮件记录，是默认的存储实现。
//
// 进程重启后数据丢失（有意为之，见仓库说明）。所有操作持锁执行，
// 因为 HTTP 请求由多个 goroutine 并发处理，必须避免同一 id 上的
// 丢失更新。
type Store struct {
	mu      sync.RWMutex
	records map[string]domain.EmailRecord
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		records: make(map[string]domain.EmailRecord),
	}
}

// Upsert 逐条按 id 插入或浅合并记录。
func (s *Store) Upsert(records []domain.EmailRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		id := rec.ID()
		if id == "" {
			continue
		}
		if existing, ok := s.records[id]; ok {
			existing.Merge(rec)
			continue
		}
		s.records[id] = rec.Clone()
	}
	return nil
}

// List 返回全部记录的快照，按 received_date 从新到旧排序。
func (s *Store) List() ([]domain.EmailRecord, error) {
	s.mu.RLock()
	result := make([]domain.EmailRecord, 0, len(s.records))
	for _, rec := range s.records {
		result = append(result, rec.Clone())
	}
	s.mu.RUnlock()

	domain.SortByReceivedDesc(result)
	return result, nil
}

// Get 按 id 获取记录快照。
func (s *Store) Get(id string) (domain.EmailRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, storage.ErrRecordNotFound
	}
	return rec.Clone(), nil
}

// Update 将字段浅合并到已有记录上；id 不存在时静默无操作。
func (s *Store) Update(id string, fields domain.EmailRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil
	}
	rec.Merge(fields)
	return nil
}

// Delete 删除记录，幂等。
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, id)
	return nil
}

// Count 返回当前记录数量。
func (s *Store) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records), nil
}

// Close 关闭存储连接。内存存储无需关闭。
func (s *Store) Close() error {
	return nil
}

// Health 健康检查。内存存储总是健康的。
func (s *Store) Health() error {
	return nil
}
