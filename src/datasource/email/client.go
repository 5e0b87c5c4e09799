// client.go
package email

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"RideGap/src/storage"
)

const (
	MaxFetchMessages   = 100            // 单次最多检查的未读邮件数
	FetchBufferSize    = 10             // 邮件获取通道缓冲区大小
	RecentMailDuration = 24 * time.Hour // 只看这段时间内的未读邮件
)

// MailService 数据邮件来源
type MailService interface {
	Connect() error
	Disconnect()
	// FetchLatest 返回主题包含keyword的最新未读邮件(含附件)，没有时返回nil
	FetchLatest(keyword string) (*Email, error)
}

// Email 一封数据邮件，From/Subject 已解码
type Email struct {
	UID         uint32
	Date        time.Time
	From        string
	Subject     string
	Attachments []*Attachment
}

// Attachment 邮件附件
type Attachment struct {
	Filename string
	Content  []byte
}

// EmailClient IMAP邮件客户端
type EmailClient struct {
	server    string // 含端口，如 "imap.qq.com:993"
	username  string
	password  string // 密码或授权码
	client    *client.Client
	mu        sync.Mutex
	connected bool
}

func NewEmailClient(server, username, password string) *EmailClient {
	return &EmailClient{
		server:   server,
		username: username,
		password: password,
	}
}

// Connect 建立TLS连接并登录，已有连接可用时直接复用
func (s *EmailClient) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		if _, err := s.client.Capability(); err == nil {
			return nil
		}
		s.client.Logout()
		s.client = nil
		s.connected = false
	}

	c, err := client.DialTLS(s.server, nil)
	if err != nil {
		return fmt.Errorf("连接服务器失败: %w", err)
	}
	if err := c.Login(s.username, s.password); err != nil {
		c.Logout()
		return fmt.Errorf("登录失败: %w", err)
	}

	s.client = c
	s.connected = true
	return nil
}

func (s *EmailClient) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		s.client.Logout()
		s.client = nil
	}
	s.connected = false
}

// FetchLatest 先只取未读邮件的信封挑出目标邮件，再下载这一封的正文和附件
func (s *EmailClient) FetchLatest(keyword string) (*Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil, fmt.Errorf("未连接到邮件服务器")
	}
	if _, err := s.client.Select("INBOX", false); err != nil {
		return nil, fmt.Errorf("选择邮箱失败: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	criteria.Since = time.Now().Add(-RecentMailDuration)
	ids, err := s.client.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("搜索邮件失败: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxFetchMessages {
		ids = ids[len(ids)-MaxFetchMessages:]
	}

	headers, err := s.fetchEnvelopes(ids)
	if err != nil {
		return nil, err
	}
	target := filterLatestTargetEmail(headers, keyword)
	if target == nil {
		return nil, nil
	}
	return s.fetchBody(target)
}

func (s *EmailClient) fetchEnvelopes(ids []uint32) ([]*Email, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	messages := make(chan *imap.Message, FetchBufferSize)
	done := make(chan error, 1)
	go func() {
		done <- s.client.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, imap.FetchInternalDate, imap.FetchUid}, messages)
	}()

	var headers []*Email
	for msg := range messages {
		headers = append(headers, envelopeEmail(msg))
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("获取邮件信封失败: %w", err)
	}
	return headers, nil
}

// fetchBody 按UID下载正文，下载后服务器将邮件标为已读
func (s *EmailClient) fetchBody(target *Email) (*Email, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(target.UID)
	section := &imap.BodySectionName{}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.client.UidFetch(seqset, []imap.FetchItem{imap.FetchUid, section.FetchItem()}, messages)
	}()

	var (
		full     *Email
		parseErr error
	)
	for msg := range messages {
		if full != nil {
			continue
		}
		full, parseErr = parseEmail(msg, section)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("获取邮件内容失败: %w", err)
	}
	if parseErr != nil {
		return nil, parseErr
	}
	if full == nil {
		return nil, fmt.Errorf("邮件(UID:%d)已不存在", target.UID)
	}
	// 信封里的日期和主题更可靠
	full.UID = target.UID
	full.Date = target.Date
	if full.Subject == "" {
		full.Subject = target.Subject
	}
	return full, nil
}

// envelopeEmail 只含信封信息，没有附件
func envelopeEmail(msg *imap.Message) *Email {
	e := &Email{UID: msg.Uid, Date: msg.InternalDate}
	if env := msg.Envelope; env != nil {
		if !env.Date.IsZero() {
			e.Date = env.Date
		}
		e.Subject = decodeHeader(env.Subject)
		if len(env.From) > 0 {
			from := env.From[0]
			e.From = decodeHeader(strings.TrimSpace(fmt.Sprintf("%s <%s@%s>", from.PersonalName, from.MailboxName, from.HostName)))
		}
	}
	return e
}

// parseEmail 解析完整邮件，读出所有附件
func parseEmail(msg *imap.Message, section *imap.BodySectionName) (*Email, error) {
	r := msg.GetBody(section)
	if r == nil {
		return nil, fmt.Errorf("邮件正文为空")
	}

	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("创建邮件阅读器失败: %w", err)
	}

	date, _ := mr.Header.Date()
	if date.IsZero() {
		date = msg.InternalDate
	}
	email := &Email{
		UID:     msg.Uid,
		Date:    date,
		From:    decodeHeader(mr.Header.Get("From")),
		Subject: decodeHeader(mr.Header.Get("Subject")),
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break // 残缺的部分之后不再读取
		}
		h, ok := p.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}
		filename, err := h.Filename()
		if err != nil || filename == "" {
			continue
		}
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, p.Body); err != nil {
			return nil, fmt.Errorf("读取附件 %s 失败: %w", filename, err)
		}
		email.Attachments = append(email.Attachments, &Attachment{
			Filename: decodeHeader(filename),
			Content:  buf.Bytes(),
		})
	}
	return email, nil
}

// decodeHeader 解码 =?charset?encoding?text?= 形式的邮件头，失败返回原文
func decodeHeader(header string) string {
	decoder := mime.WordDecoder{CharsetReader: charsetReader}
	decoded, err := decoder.DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}

// charsetReader GBK/GB2312/GB18030 转 UTF-8
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "gbk", "gb2312":
		return transform.NewReader(input, simplifiedchinese.GBK.NewDecoder()), nil
	case "gb18030":
		return transform.NewReader(input, simplifiedchinese.GB18030.NewDecoder()), nil
	default:
		return input, nil
	}
}

// CheckAndProcessEmails 连接邮箱取目标邮件，没有时返回nil
func CheckAndProcessEmails(mailService MailService, keyword string, logger *storage.Logger) (*Email, error) {
	startTime := time.Now()
	logger.Info("开始检查邮箱...")

	if err := mailService.Connect(); err != nil {
		return nil, fmt.Errorf("连接失败: %w", err)
	}
	defer mailService.Disconnect()

	target, err := mailService.FetchLatest(keyword)
	if err != nil {
		return nil, fmt.Errorf("获取邮件失败: %w", err)
	}
	if target == nil {
		logger.Info("没有目标邮件")
		return nil, nil
	}

	logger.Info(fmt.Sprintf("找到目标邮件(UID:%d, %d 个附件)，耗时: %v",
		target.UID, len(target.Attachments), time.Since(startTime)))
	return target, nil
}

// filterLatestTargetEmail 主题包含关键词的邮件中日期最新的一封
func filterLatestTargetEmail(emails []*Email, keyword string) *Email {
	var latest *Email
	for _, e := range emails {
		if !strings.Contains(e.Subject, keyword) {
			continue
		}
		if latest == nil || e.Date.After(latest.Date) {
			latest = e
		}
	}
	return latest
}

