package domain

import (
	"sort"
	"strings"
	"time"
)

// ISODateFormat 邮件 received_date 的统一输出格式（UTC，毫秒精度）。
//
// 与前端 SPA 期望的 Date.toISOString() 形式保持一致。
const ISODateFormat = "2006-01-02T15:04:05.000Z07:00"

// EmailRecord 表示一条规范化后的邮件记录。
//
// 入站自动化工具（n8n）的载荷形状不固定，除规范化字段外的未知字段
// 必须原样保留，因此记录是开放的 map 而不是封闭结构体。
type EmailRecord map[string]any

// ID 返回记录标识，规范化之后保证非空。
func (r EmailRecord) ID() string {
	id, _ := r["id"].(string)
	return id
}

// GetString 按键读取字符串字段，不存在或类型不符时返回空字符串。
func (r EmailRecord) GetString(key string) string {
	s, _ := r[key].(string)
	return s
}

// GetBool 按键读取布尔字段，不存在或类型不符时返回 false。
func (r EmailRecord) GetBool(key string) bool {
	b, _ := r[key].(bool)
	return b
}

// Clone 返回记录的浅拷贝。
func (r EmailRecord) Clone() EmailRecord {
	out := make(EmailRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Merge 将 fields 中的字段浅合并到记录上，新字段覆盖旧值。
func (r EmailRecord) Merge(fields EmailRecord) {
	for k, v := range fields {
		r[k] = v
	}
}

// ReceivedTime 解析记录的 received_date。
// 第二个返回值为 false 表示日期缺失或无法解析。
func (r EmailRecord) ReceivedTime() (time.Time, bool) {
	raw, ok := r["received_date"].(string)
	if !ok {
		return time.Time{}, false
	}
	return ParseReceivedDate(raw)
}

// receivedDateLayouts 入站日期允许的格式，按尝试顺序排列。
var receivedDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// ParseReceivedDate 宽松解析日期字符串。
func ParseReceivedDate(value string) (time.Time, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range receivedDateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SortByReceivedDesc 按 received_date 从新到旧稳定排序。
//
// 日期无法解析的记录排在所有有效日期之后；两条都无效时保持原有顺序，
// 与前端列表对 NaN 时间戳的比较行为一致。
func SortByReceivedDesc(records []EmailRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		ti, iok := records[i].ReceivedTime()
		tj, jok := records[j].ReceivedTime()
		switch {
		case iok && jok:
			return ti.After(tj)
		case iok:
			return true
		default:
			return false
		}
	})
}
