package mail

import (
	"fmt"
	"time"
)

const footer = `<hr style="border:none;border-top:1px solid #e2e8f0;margin:24px 0;">
<p style="color:#94a3b8;font-size:12px;text-align:center;">Regulatory Compliance Monitoring System</p>`

// OTPMessage renders the signup verification email.
func OTPMessage(to, name, otp string, ttl time.Duration) Message {
	greeting := "Hello,"
	if name != "" {
		greeting = fmt.Sprintf("Hello %s,", name)
	}
	body := fmt.Sprintf(`<div style="font-family:Arial,sans-serif;max-width:480px;margin:auto;padding:24px;border:1px solid #e2e8f0;border-radius:8px;">
<h2 style="color:#1e3a5f;margin-bottom:8px;">RCMS Email Verification</h2>
<p>%s</p>
<p>Your one-time password (OTP) is:</p>
<div style="text-align:center;margin:24px 0;">
<span style="font-size:32px;font-weight:bold;letter-spacing:8px;color:#1e3a5f;background:#f1f5f9;padding:12px 24px;border-radius:8px;">%s</span>
</div>
<p style="color:#64748b;font-size:14px;">This code expires in <strong>%d minutes</strong>.</p>
<p style="color:#64748b;font-size:14px;">If you didn't request this, please ignore this email.</p>
%s</div>`, greeting, otp, int(ttl.Minutes()), footer)

	return Message{
		To:       to,
		ToName:   name,
		Subject:  fmt.Sprintf("RCMS – Your Verification Code: %s", otp),
		HTMLBody: body,
	}
}

// NotificationMessage renders a platform notification as an email.
func NotificationMessage(to, name, title, text, frontendURL string) Message {
	body := fmt.Sprintf(`<div style="font-family:Arial,sans-serif;max-width:480px;margin:auto;padding:24px;border:1px solid #e2e8f0;border-radius:8px;">
<h2 style="color:#1e3a5f;margin-bottom:8px;">%s</h2>
<p>Hello %s,</p>
<p>%s</p>
<div style="margin:24px 0;text-align:center;">
<a href="%s/dashboard" style="background:#1e3a5f;color:#fff;padding:10px 24px;border-radius:6px;text-decoration:none;font-weight:bold;">Open RCMS Dashboard</a>
</div>
%s</div>`, title, name, text, frontendURL, footer)

	return Message{
		To:       to,
		ToName:   name,
		Subject:  fmt.Sprintf("RCMS – %s", title),
		HTMLBody: body,
	}
}
