// Package message renders TrendMiner monitor payloads into the plain-text alert
// body delivered to chat webhooks.
package message

import (
	"strings"
	"time"
	_ "time/tzdata" // Asia/Shanghai must resolve on minimal images
)

const (
	// Title is the first line of every alert.
	Title = "TrendMiner 监控告警"

	// WarningPrefix is prepended to the alert when it is sent to a chat group.
	WarningPrefix = "请注意有问题"

	// Unknown replaces absent text fields.
	Unknown = "未知"

	// NoLink replaces an absent result URL.
	NoLink = "无链接"

	receivedAtLabel  = "本地接收时间："
	receivedAtLayout = "2006/01/02 15:04:05"
)

// ReceiptZone is the timezone used for the receipt timestamp.
var ReceiptZone = loadReceiptZone()

func loadReceiptZone() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}

type line struct {
	label       string
	value       func(Payload) string
	placeholder string
}

// lines lists the template rows in their rendered order.
var lines = []line{
	{"监控ID", func(p Payload) string { return p.MonitorID }, Unknown},
	{"搜索ID", func(p Payload) string { return p.SearchID }, Unknown},
	{"结果ID", func(p Payload) string { return p.ResultID }, Unknown},
	{"结果分数", func(p Payload) string { return p.ResultScore }, Unknown},
	{"搜索名称", func(p Payload) string { return p.SearchName }, Unknown},
	{"搜索类型", func(p Payload) string { return p.SearchType }, Unknown},
	{"创建人", func(p Payload) string { return p.SearchCreator }, Unknown},
	{"搜索描述", func(p Payload) string { return p.SearchDescription }, Unknown},
	{"事件类型", func(p Payload) string { return p.WebhookCallEvent }, Unknown},
	{"结果开始时间", func(p Payload) string { return p.ResultStart }, Unknown},
	{"结果结束时间", func(p Payload) string { return p.ResultEnd }, Unknown},
	{"触发时间", func(p Payload) string { return p.WebhookCallTime }, Unknown},
	{"查看详情", func(p Payload) string { return p.ResultURL }, NoLink},
}

// Format renders the alert body for p, ending with the local receipt time.
func Format(p Payload, receivedAt time.Time) string {
	var b strings.Builder
	b.WriteString(Title)
	for _, l := range lines {
		value := l.value(p)
		if value == "" {
			value = l.placeholder
		}
		b.WriteByte('\n')
		b.WriteString(l.label)
		b.WriteString(": ")
		b.WriteString(value)
	}
	b.WriteByte('\n')
	b.WriteString(receivedAtLabel)
	b.WriteString(FormatReceivedAt(receivedAt))
	return b.String()
}

// FormatReceivedAt renders t as a zh-CN style local timestamp, e.g. 2025/01/02 08:03:04.
func FormatReceivedAt(t time.Time) string {
	return t.In(ReceiptZone).Format(receivedAtLayout)
}

// WithWarning prefixes content with the warning line used for group alerts.
func WithWarning(content string) string {
	return WarningPrefix + "\n" + content
}
