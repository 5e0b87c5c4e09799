package email

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
	"os"
	"strings"

	mailer "github.com/jordan-wright/email"

	"RideGap/src/config"
)

// SendReport 通过SMTP(SSL)发送报表，附件不存在时跳过
func SendReport(c *config.Config, body string, attachments ...string) error {
	e, err := buildReport(c, body, attachments...)
	if err != nil {
		return err
	}

	// 确保服务器地址包含端口
	smtpAddr := c.SendEmail.Server
	if !strings.Contains(smtpAddr, ":") {
		smtpAddr += ":465" // 默认 SSL 端口
	}
	host := strings.Split(smtpAddr, ":")[0]

	err = e.SendWithTLS(
		smtpAddr,
		smtp.PlainAuth("", c.SendEmail.Username, c.SendEmail.Password, host),
		&tls.Config{ServerName: host},
	)
	if err != nil {
		return fmt.Errorf("邮件发送失败: %w (Server: %s)", err, smtpAddr)
	}
	return nil
}

func buildReport(c *config.Config, body string, attachments ...string) (*mailer.Email, error) {
	if len(c.SendEmail.To) == 0 {
		return nil, fmt.Errorf("未配置收件人")
	}

	e := mailer.NewEmail()
	e.From = fmt.Sprintf("RideGap <%s>", c.SendEmail.Username)
	e.To = c.SendEmail.To
	e.Subject = c.SendEmail.Subject
	e.Text = []byte(body)

	for _, path := range attachments {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if _, err := e.AttachFile(path); err != nil {
			return nil, fmt.Errorf("附件添加失败: %w", err)
		}
	}
	return e, nil
}
