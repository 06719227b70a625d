package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FieldIssue 描述载荷校验失败的单个字段问题。
type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// InvalidPayloadError 表示入站载荷不符合任何可接受的信封形状。
//
// 携带字段级别的问题列表，由调用方直接返回给自动化工具，便于排查。
type InvalidPayloadError struct {
	Issues []FieldIssue
}

func (e *InvalidPayloadError) Error() string {
	return fmt.Sprintf("invalid email payload: %d issue(s)", len(e.Issues))
}

// invalidPayload 构造单字段的校验错误。
func invalidPayload(field, message string) *InvalidPayloadError {
	return &InvalidPayloadError{Issues: []FieldIssue{{Field: field, Message: message}}}
}

// Normalize 将任意形状的入站载荷规范化为邮件记录列表。
//
// 可接受的信封形状：
//   - 单个邮件对象（所有字段可选，未知字段原样保留）
//   - 邮件对象数组
//   - {"email": {...}}
//   - {"emails": [...]}
//   - {"data": [...]}
//
// 只有当 email 键是对象、emails/data 键是数组时才按信封拆包，
// 否则整个对象视为一条邮件记录。其余任何形状返回 InvalidPayloadError。
func Normalize(raw any) ([]EmailRecord, error) {
	switch v := raw.(type) {
	case []any:
		return normalizeList(v, "")
	case map[string]any:
		if single, ok := v["email"].(map[string]any); ok {
			return []EmailRecord{NormalizeRecord(single)}, nil
		}
		if list, ok := v["emails"].([]any); ok {
			return normalizeList(list, "emails")
		}
		if list, ok := v["data"].([]any); ok {
			return normalizeList(list, "data")
		}
		return []EmailRecord{NormalizeRecord(v)}, nil
	default:
		return nil, invalidPayload("(root)", "expected an email object, an array of emails, or an {email|emails|data} envelope")
	}
}

// normalizeList 规范化数组信封，prefix 用于错误定位（"" 表示顶层数组）。
func normalizeList(items []any, prefix string) ([]EmailRecord, error) {
	var issues []FieldIssue
	records := make([]EmailRecord, 0, len(items))
	for i, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			field := fmt.Sprintf("[%d]", i)
			if prefix != "" {
				field = fmt.Sprintf("%s[%d]", prefix, i)
			}
			issues = append(issues, FieldIssue{Field: field, Message: "expected an email object"})
			continue
		}
		records = append(records, NormalizeRecord(entry))
	}
	if len(issues) > 0 {
		return nil, &InvalidPayloadError{Issues: issues}
	}
	return records, nil
}

// NormalizeRecord 将单个宽松对象规范化为一条邮件记录。
//
// 步骤顺序与字段依赖有关：先解析标识，再处理日期、布尔默认值、
// 正文、标签，最后是 thread/resume 的双键别名和 return-path。
// 输入不被修改，返回新的记录。
func NormalizeRecord(src map[string]any) EmailRecord {
	rec := make(EmailRecord, len(src)+4)
	for k, v := range src {
		rec[k] = v
	}

	// 标识：id → message_id（字符串化）→ 生成
	id := strings.TrimSpace(scalarString(rec["id"]))
	if id == "" {
		id = strings.TrimSpace(scalarString(rec["message_id"]))
	}
	if id == "" {
		id = GenerateID()
	}
	rec["id"] = id

	if v, ok := rec["message_id"]; ok {
		if v == nil {
			delete(rec, "message_id")
		} else {
			rec["message_id"] = scalarString(v)
		}
	}

	// 日期：解析失败或缺失时回退为当前时间，统一输出 ISO-8601
	if t, ok := parseDateValue(rec["received_date"]); ok {
		rec["received_date"] = t.UTC().Format(ISODateFormat)
	} else {
		rec["received_date"] = time.Now().UTC().Format(ISODateFormat)
	}

	// 布尔标志默认 false，只接受真正的 JSON 布尔值
	for _, key := range []string{"is_read", "is_archived", "is_starred"} {
		b, _ := rec[key].(bool)
		rec[key] = b
	}

	rec["body"] = normalizeBody(rec["body"])
	normalizeLabels(rec)
	normalizeAlias(rec, "thread_id", "threadId", scalarString)
	normalizeAlias(rec, "resume_url", "resumeUrl", jsonString)

	// return-path：与 resume_url 相同的 JSON 序列化兜底，单键不做别名
	if s := strings.TrimSpace(jsonString(rec["return-path"])); s != "" {
		rec["return-path"] = s
	} else {
		delete(rec, "return-path")
	}

	return rec
}

// GenerateID 生成唯一的回退标识。
func GenerateID() string {
	return fmt.Sprintf("generated-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// normalizeBody 将任意类型的正文归一为展示字符串。
//
// 看起来像 JSON 的字符串（首尾是匹配的 {}/[]/"" 对）解析后重新
// 以两空格缩进输出；解析失败保留原始字符串。
func normalizeBody(v any) string {
	switch body := v.(type) {
	case nil:
		return ""
	case string:
		if looksLikeJSON(body) {
			var parsed any
			if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &parsed); err == nil {
				if pretty, err := json.MarshalIndent(parsed, "", "  "); err == nil {
					return string(pretty)
				}
			}
		}
		return body
	case json.Number:
		return body.String()
	case bool:
		return strconv.FormatBool(body)
	case float64:
		return strconv.FormatFloat(body, 'f', -1, 64)
	default:
		// 对象/数组正文直接美化输出，避免把 Go 语法泄露给前端
		if pretty, err := json.MarshalIndent(body, "", "  "); err == nil {
			return string(pretty)
		}
		return fmt.Sprint(body)
	}
}

// looksLikeJSON 检查去除空白后的首尾字符是否为匹配的括号或引号对。
func looksLikeJSON(s string) bool {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) < 2 {
		return false
	}
	first, last := trimmed[0], trimmed[len(trimmed)-1]
	switch {
	case first == '{' && last == '}':
		return true
	case first == '[' && last == ']':
		return true
	case first == '"' && last == '"':
		return true
	}
	return false
}

// normalizeLabels 合并 labels 与旧版 labelIds，过滤空白项。
// 结果为空时整个字段删除，而不是保留空数组。
func normalizeLabels(rec EmailRecord) {
	source := rec["labels"]
	if source == nil {
		source = rec["labelIds"]
	}

	var items []any
	switch v := source.(type) {
	case nil:
	case []any:
		items = v
	case string, json.Number, bool, float64:
		items = []any{v}
	}

	labels := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(scalarString(item)); s != "" {
			labels = append(labels, s)
		}
	}

	delete(rec, "labelIds")
	if len(labels) == 0 {
		delete(rec, "labels")
		return
	}
	rec["labels"] = labels
}

// normalizeAlias 处理 snake_case/camelCase 双键字段：
// 任一键有值时两个键都写入，否则两个键都删除。
func normalizeAlias(rec EmailRecord, snakeKey, camelKey string, coerce func(any) string) {
	value := rec[snakeKey]
	if value == nil {
		value = rec[camelKey]
	}
	s := strings.TrimSpace(coerce(value))
	if s == "" {
		delete(rec, snakeKey)
		delete(rec, camelKey)
		return
	}
	rec[snakeKey] = s
	rec[camelKey] = s
}

// scalarString 标量字符串化：字符串原样，数字与布尔按字面输出，
// 其余类型（对象、数组、nil）返回空字符串。
func scalarString(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case json.Number:
		return value.String()
	case bool:
		return strconv.FormatBool(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return ""
	}
}

// jsonString 与 scalarString 相同，但非标量值用 JSON 序列化兜底。
func jsonString(v any) string {
	switch v.(type) {
	case nil:
		return ""
	case string, json.Number, bool, float64:
		return scalarString(v)
	default:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
		return ""
	}
}

// parseDateValue 解析任意类型的日期值：字符串走宽松解析，
// 数字视为 Unix 毫秒时间戳。
func parseDateValue(v any) (time.Time, bool) {
	switch value := v.(type) {
	case string:
		return ParseReceivedDate(value)
	case json.Number:
		if ms, err := value.Int64(); err == nil {
			return time.UnixMilli(ms), true
		}
		return time.Time{}, false
	case float64:
		return time.UnixMilli(int64(value)), true
	default:
		return time.Time{}, false
	}
}
