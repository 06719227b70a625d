package service

import (
	"errors"

	"go.uber.org/zap"

	"opsdash/backend/internal/domain"
	"opsdash/backend/internal/storage"
)

var (
	// ErrReplyBodyRequired reply 动作缺少回复内容
	ErrReplyBodyRequired = errors.New("reply body is required")
	// ErrUnknownAction 未知动作（正常情况下被请求校验拦截，到不了这里）
	ErrUnknownAction = errors.New("unknown email action")
)

// 邮件动作
const (
	ActionReply   = "reply"
	ActionArchive = "archive"
	ActionDelete  = "delete"
)

// EmailNotifier 邮件事件通知接口（WebSocket 推送等）。
type EmailNotifier interface {
	EmailsReceived(records []domain.EmailRecord)
	EmailUpdated(record domain.EmailRecord)
	EmailDeleted(id string)
}

// EmailService 封装邮件的摄取、查询与动作处理逻辑。
type EmailService struct {
	repo     storage.EmailRepository
	notifier EmailNotifier // 可选
	log      *zap.Logger
}

// NewEmailService 创建邮件业务服务。
func NewEmailService(repo storage.EmailRepository, log *zap.Logger) *EmailService {
	if log == nil {
		log = zap.NewNop()
	}
	return &EmailService{repo: repo, log: log}
}

// SetNotifier 设置事件通知器。
func (s *EmailService) SetNotifier(notifier EmailNotifier) {
	s.notifier = notifier
}

// Ingest 规范化入站载荷并写入存储。
//
// 返回规范化后的记录列表；载荷形状非法时返回 InvalidPayloadError，
// 载荷合法但为空数组时返回空列表（由调用方决定如何响应）。
func (s *EmailService) Ingest(raw any) ([]domain.EmailRecord, error) {
	records, err := domain.Normalize(raw)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return records, nil
	}

	if err := s.repo.Upsert(records); err != nil {
		return nil, err
	}

	s.log.Info("emails ingested", zap.Int("count", len(records)))
	if s.notifier != nil {
		s.notifier.EmailsReceived(records)
	}
	return records, nil
}

// List 返回全部邮件，按接收时间从新到旧排序。
func (s *EmailService) List() ([]domain.EmailRecord, error) {
	return s.repo.List()
}

// Get 按 id 获取单条邮件。
func (s *EmailService) Get(id string) (domain.EmailRecord, error) {
	return s.repo.Get(id)
}

// ApplyActionInput 定义动作请求的输入。
type ApplyActionInput struct {
	Action    string
	EmailID   string
	ReplyBody string
	Email     map[string]any // 随动作携带的内联邮件载荷（可选）
}

// ApplyAction 对指定邮件应用状态转换。
//
// 若请求携带内联邮件载荷，先将其规范化并 upsert（缺少 id 时以
// EmailID 为准），使记录反映调用方已知的最新数据，再应用动作本身；
// 内联载荷校验失败时静默忽略，动作照常执行。
//
// archive/reply 对不存在的 id 是容忍的空操作（幂等的 webhook 重放），
// 返回 nil 记录而不是错误。delete 恒返回 nil。
func (s *EmailService) ApplyAction(input ApplyActionInput) (domain.EmailRecord, error) {
	// reply 的前置校验必须先于一切存储写入
	if input.Action == ActionReply && input.ReplyBody == "" {
		return nil, ErrReplyBodyRequired
	}

	targetID := input.EmailID
	if input.Email != nil {
		payload := input.Email
		// 显式的 null id 与缺失同等对待，都回退到路由里的 EmailID，
		// 否则 null 会在规范化时变成生成的 id，动作落到一条新记录上
		if v, ok := payload["id"]; !ok || v == nil {
			payload = make(map[string]any, len(input.Email)+1)
			for k, field := range input.Email {
				payload[k] = field
			}
			payload["id"] = input.EmailID
		}

		records, err := domain.Normalize(payload)
		if err == nil && len(records) == 1 {
			if err := s.repo.Upsert(records); err != nil {
				return nil, err
			}
			targetID = records[0].ID()
		} else if err != nil {
			s.log.Warn("inline email payload ignored",
				zap.String("email_id", input.EmailID),
				zap.Error(err),
			)
		}
	}

	switch input.Action {
	case ActionArchive:
		if err := s.repo.Update(targetID, domain.EmailRecord{
			"is_archived": true,
			"is_read":     true,
		}); err != nil {
			return nil, err
		}
		return s.finishAction(input.Action, targetID)

	case ActionReply:
		if err := s.repo.Update(targetID, domain.EmailRecord{
			"is_read":         true,
			"last_reply_body": input.ReplyBody,
		}); err != nil {
			return nil, err
		}
		return s.finishAction(input.Action, targetID)

	case ActionDelete:
		if err := s.repo.Delete(targetID); err != nil {
			return nil, err
		}
		s.log.Info("email action applied",
			zap.String("action", input.Action),
			zap.String("email_id", targetID),
		)
		if s.notifier != nil {
			s.notifier.EmailDeleted(targetID)
		}
		return nil, nil

	default:
		return nil, ErrUnknownAction
	}
}

// finishAction 读取动作后的记录状态并发出更新通知。
func (s *EmailService) finishAction(action, id string) (domain.EmailRecord, error) {
	rec, err := s.repo.Get(id)
	if errors.Is(err, storage.ErrRecordNotFound) {
		// 目标不存在：容忍的空操作
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("email action applied",
		zap.String("action", action),
		zap.String("email_id", id),
	)
	if s.notifier != nil {
		s.notifier.EmailUpdated(rec)
	}
	return rec, nil
}
