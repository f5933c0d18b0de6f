package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"bugmarket/config"
	"bugmarket/models"

	"gopkg.in/gomail.v2"
)

// EmailService 邮件服务，用于超期告警
type EmailService struct {
	cfg *config.EmailConfig
}

// NewEmailService 创建邮件服务
func NewEmailService(cfg *config.EmailConfig) *EmailService {
	return &EmailService{cfg: cfg}
}

// NotifyExpired 向告警收件人发送新超期订单清单
func (s *EmailService) NotifyExpired(ctx context.Context, rule models.TimeRule, bugs []models.Bug) error {
	if !s.cfg.Enabled {
		return fmt.Errorf("邮件服务未启用，请配置 BUGMARKET_EMAIL_ENABLED=true")
	}
	if len(s.cfg.AlertTo) == 0 {
		return fmt.Errorf("未配置告警收件人 email.alert_to")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := fmt.Sprintf("【Bug 市场】%d 个订单已超期（%s）", len(bugs), rule.RuleName)
	body := s.generateExpiryAlertBody(rule, bugs, time.Now())
	return s.sendEmail(s.cfg.AlertTo, subject, body)
}

// generateExpiryAlertBody 生成超期告警邮件内容
func (s *EmailService) generateExpiryAlertBody(rule models.TimeRule, bugs []models.Bug, now time.Time) string {
	var rows strings.Builder
	for _, b := range bugs {
		ref := b.LastUpdateTime
		if rule.StatusType == models.BugStatusTaken && b.TakeTime != nil {
			ref = *b.TakeTime
		}
		fmt.Fprintf(&rows, `
                <tr>
                    <td>#%d</td>
                    <td>%s</td>
                    <td>%s</td>
                    <td>%s</td>
                    <td>%.1f 小时</td>
                </tr>`,
			b.ID,
			html.EscapeString(b.Title),
			b.Status.Label(),
			ref.Format("2006-01-02 15:04:05"),
			now.Sub(ref).Hours(),
		)
	}

	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: 'Microsoft YaHei', Arial, sans-serif; background: #f5f5f5; margin: 0; padding: 20px; }
        .container { max-width: 720px; margin: 0 auto; background: #fff; border-radius: 12px; overflow: hidden; box-shadow: 0 4px 20px rgba(0,0,0,0.1); }
        .header { background: linear-gradient(135deg, #dc2626, #b91c1c); color: white; padding: 30px; text-align: center; }
        .header h1 { margin: 0; font-size: 22px; }
        .content { padding: 30px; }
        .content p { color: #333; line-height: 1.8; margin: 0 0 16px; }
        table { width: 100%%; border-collapse: collapse; font-size: 14px; }
        th, td { border: 1px solid #e5e7eb; padding: 8px 10px; text-align: left; }
        th { background: #f9fafb; }
        .footer { background: #f8f9fa; padding: 20px 30px; text-align: center; color: #6c757d; font-size: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>⏰ 订单超期告警</h1>
        </div>
        <div class="content">
            <p>规则 <strong>%s</strong>（%s 状态，预警 %d 小时 / 超期 %d 小时）下有 <strong>%d</strong> 个订单新进入已超期：</p>
            <table>
                <tr><th>订单</th><th>标题</th><th>状态</th><th>参考时间</th><th>已停留</th></tr>%s
            </table>
            <p>请尽快在后台跟进或人工介入。</p>
        </div>
        <div class="footer">
            <p>此邮件由系统自动发送，请勿回复</p>
        </div>
    </div>
</body>
</html>
`, html.EscapeString(rule.RuleName), rule.StatusType.Label(), rule.WarnHour, rule.ExpireHour, len(bugs), rows.String())
}

// sendEmail 发送邮件
func (s *EmailService) sendEmail(to []string, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.cfg.Username, s.cfg.From))
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("发送邮件失败: %w", err)
	}

	return nil
}
