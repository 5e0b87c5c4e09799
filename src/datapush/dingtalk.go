package datapush

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"RideGap/src/processor"
)

// 常量定义
const (
	RETRY_TIMES    = 5
	RETRY_INTERVAL = 2 * time.Second
)

// 钉钉 API 响应结构体
type DingTalkResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// DingTalk 钉钉群机器人
type DingTalk struct {
	Webhook  string
	Client   *http.Client
	Retries  int
	Interval time.Duration
}

// NewDingTalk 使用默认重试参数
func NewDingTalk(webhook string) *DingTalk {
	return &DingTalk{
		Webhook:  webhook,
		Client:   &http.Client{Timeout: 10 * time.Second},
		Retries:  RETRY_TIMES,
		Interval: RETRY_INTERVAL,
	}
}

// PushReport 将报表摘要以markdown消息推送到群
func (d *DingTalk) PushReport(ctx context.Context, r *Report) error {
	title, text := ReportMarkdown(r)
	return retry(ctx, func() error {
		return d.sendMarkdown(ctx, title, text)
	}, d.Retries, d.Interval)
}

// 发送markdown消息
func (d *DingTalk) sendMarkdown(ctx context.Context, title, text string) error {
	payload := map[string]interface{}{
		"msgtype": "markdown",
		"markdown": map[string]string{
			"title": title,
			"text":  text,
		},
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化请求体失败: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Webhook, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return fmt.Errorf("创建请求失败: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("发送消息失败: HTTP %d", resp.StatusCode)
	}

	var result DingTalkResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("解析响应失败: %v", err)
	}
	if result.ErrCode != 0 {
		return fmt.Errorf("发送消息失败: %s", result.ErrMsg)
	}
	return nil
}

// ReportMarkdown 汇总指标加每个查询计数最高的几组，返回标题和正文
func ReportMarkdown(r *Report) (string, string) {
	const topN = 3
	title := "打车供需缺口报表"
	s := r.Summary

	var b strings.Builder
	fmt.Fprintf(&b, "### %s\n\n", title)
	fmt.Fprintf(&b, "- 请求总数: %d\n", s.TotalRequests)
	fmt.Fprintf(&b, "- 完成/取消/无车: %d/%d/%d\n", s.Completed, s.Cancelled, s.NoCarsAvailable)
	fmt.Fprintf(&b, "- 供需缺口比例: %.1f%%\n", s.GapRate*100)
	if s.WorstSlot != "" {
		fmt.Fprintf(&b, "- 缺口最大时段: %s (%d)\n", s.WorstSlot, s.WorstSlotCount)
	}

	for _, t := range r.Tables {
		q, ok := processor.Lookup(t.Name)
		if !ok || t.Len() == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n#### %s\n\n", q.Title)
		for _, row := range topRows(t, topN) {
			fmt.Fprintf(&b, "- %s: %d\n", strings.Join(row.Key, " / "), row.Count)
		}
	}
	fmt.Fprintf(&b, "\n> 数据时间 %s\n", s.LoadedAt.Format("2006-01-02 15:04:05"))
	return title, b.String()
}

// topRows 计数从高到低，相同计数保持自然顺序
func topRows(t processor.CountTable, n int) []processor.CountRow {
	rows := t.Sorted().Rows
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && rows[j].Count > rows[j-1].Count; j-- {
			rows[j], rows[j-1] = rows[j-1], rows[j]
		}
	}
	if len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

// 重试函数
func retry(ctx context.Context, fn func() error, times int, interval time.Duration) error {
	if times < 1 {
		times = 1
	}
	var err error
	for i := 0; i < times; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < times-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}
	}
	return fmt.Errorf("重试 %d 次后失败: %v", times, err)
}
