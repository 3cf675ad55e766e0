package notifier

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"equity-screener/internal/strategy/engine"
	"equity-screener/pkg/types"
)

// DingTalkNotifier 钉钉通知器，发送失败时降级为控制台输出
type DingTalkNotifier struct {
	webhookURL string
	secret     string
	httpClient *http.Client
	fallback   Interface
	now        func() time.Time
}

// DingTalkMessage 钉钉消息结构
type DingTalkMessage struct {
	MsgType  string            `json:"msgtype"`
	Markdown *DingTalkMarkdown `json:"markdown,omitempty"`
	At       *DingTalkAt       `json:"at,omitempty"`
}

type DingTalkMarkdown struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type DingTalkAt struct {
	AtAll bool `json:"isAtAll"`
}

// DingTalkResponse 钉钉API响应
type DingTalkResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// New 根据配置创建通知器，未配置钉钉时使用控制台
func New(config types.NotifierConfig) Interface {
	if config.DingTalkWebhook == "" {
		zap.L().Info("🔧 未配置钉钉Webhook URL，使用控制台输出模式")
		return NewConsoleNotifier()
	}
	return NewDingTalkNotifier(config.DingTalkWebhook, config.DingTalkSecret)
}

func NewDingTalkNotifier(webhookURL, secret string) *DingTalkNotifier {
	if secret != "" {
		zap.L().Info("✅ 已配置钉钉通知服务（含加签验证）")
	} else {
		zap.L().Warn("⚠️ 钉钉通知已配置，但未设置secret（建议配置加签验证）")
	}

	return &DingTalkNotifier{
		webhookURL: webhookURL,
		secret:     secret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		fallback: NewConsoleNotifier(),
		now:      time.Now,
	}
}

func (dtn *DingTalkNotifier) SendReport(report *engine.RunReport, topN int) error {
	if report == nil {
		return nil
	}

	title := fmt.Sprintf("🎯 %s筛选 - %d个信号", strategyTitle(report.Strategy), report.Stats.Signals)
	content := dtn.buildMarkdownContent(report, topN)

	if err := dtn.sendDingTalkMessage(title, content); err != nil {
		zap.L().Error("❌ 钉钉发送失败，降级为控制台输出", zap.Error(err))
		return dtn.fallback.SendReport(report, topN)
	}

	zap.L().Info("✅ 钉钉通知已发送",
		zap.String("strategy", string(report.Strategy)),
		zap.Int("signals", report.Stats.Signals))
	return nil
}

// generateSignature 生成钉钉加签
func (dtn *DingTalkNotifier) generateSignature(timestamp int64) string {
	// 按照文档要求: timestamp + "\n" + secret
	stringToSign := fmt.Sprintf("%d\n%s", timestamp, dtn.secret)

	// HMAC-SHA256签名
	h := hmac.New(sha256.New, []byte(dtn.secret))
	h.Write([]byte(stringToSign))
	return url.QueryEscape(base64.StdEncoding.EncodeToString(h.Sum(nil)))
}

// buildSignedURL 构建带签名的URL
func (dtn *DingTalkNotifier) buildSignedURL() string {
	if dtn.secret == "" {
		return dtn.webhookURL
	}

	timestamp := dtn.now().UnixMilli()
	separator := "&"
	if !strings.Contains(dtn.webhookURL, "?") {
		separator = "?"
	}

	return fmt.Sprintf("%s%stimestamp=%d&sign=%s",
		dtn.webhookURL, separator, timestamp, dtn.generateSignature(timestamp))
}

// buildMarkdownContent 构建筛选结果的Markdown内容
func (dtn *DingTalkNotifier) buildMarkdownContent(report *engine.RunReport, topN int) string {
	var b strings.Builder
	s := report.Stats

	fmt.Fprintf(&b, "## 🎯 %s筛选结果 (%s)\n\n", strategyTitle(report.Strategy), report.Exchange)
	fmt.Fprintf(&b, "**统计**: 共%d个 / 信号<font color=\"green\">%d</font> / 失败<font color=\"red\">%d</font>  \n",
		s.Total, s.Signals, s.Failed)
	fmt.Fprintf(&b, "**时间**: %s  \n\n", report.StartedAt.Format("2006-01-02 15:04:05"))

	ranked := Rank(report.Results, report.Strategy)
	shown := Top(ranked, topN)
	if len(shown) == 0 {
		b.WriteString("> 未发现符合条件的标的")
		return b.String()
	}

	b.WriteString("**详细列表**:  \n")
	for i, r := range shown {
		fmt.Fprintf(&b, "%d. %s\n", i+1, summaryLine(r))
	}
	if len(ranked) > len(shown) {
		fmt.Fprintf(&b, "- ... 还有%d个标的\n", len(ranked)-len(shown))
	}
	return b.String()
}

// sendDingTalkMessage 发送钉钉消息
func (dtn *DingTalkNotifier) sendDingTalkMessage(title, content string) error {
	message := &DingTalkMessage{
		MsgType: "markdown",
		Markdown: &DingTalkMarkdown{
			Title: title,
			Text:  content,
		},
		At: &DingTalkAt{
			AtAll: false,
		},
	}

	jsonData, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	resp, err := dtn.httpClient.Post(dtn.buildSignedURL(), "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	var dingResp DingTalkResponse
	if err := json.NewDecoder(resp.Body).Decode(&dingResp); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}

	if dingResp.ErrCode != 0 {
		return fmt.Errorf("钉钉API错误 [%d]: %s", dingResp.ErrCode, dingResp.ErrMsg)
	}

	return nil
}
