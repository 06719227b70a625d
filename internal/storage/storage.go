package storage

import (
	"errors"

	"opsdash/backend/internal/domain"
)

// ErrRecordNotFound 邮件记录未找到错误
var ErrRecordNotFound = errors.New("email record not found")

// EmailRepository 定义邮件记录的存取操作。
//
// 语义约束（对所有实现生效）：
//   - Upsert 按 id 浅合并，新字段覆盖旧值，保证每个 id 至多一条记录
//   - List 按 received_date 从新到旧返回，无效日期排在最后
//   - Update 对不存在的 id 静默无操作，不会创建新记录
//   - Delete 幂等，删除不存在的 id 不报错
type EmailRepository interface {
	Upsert(records []domain.EmailRecord) error
	List() ([]domain.EmailRecord, error)
	Get(id string) (domain.EmailRecord, error)
	Update(id string, fields domain.EmailRecord) error
	Delete(id string) error
	Count() (int, error)
	Close() error
	Health() error
}
