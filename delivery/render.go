package delivery

import (
	"fmt"
	"strings"
	"time"
)

// Content is the human-readable form of a message.
type Content struct {
	Subject string
	Text    string
	HTML    string
}

// Render produces minimal plain content for msg. Deployments that need
// branded templates render their own and wrap the transport.
func Render(product string, msg Message) Content {
	if product == "" {
		product = "your account"
	}
	var c Content
	switch msg.Kind {
	case KindVerificationCode:
		c.Subject = "Verify your " + describe(msg.Channel)
		c.Text = fmt.Sprintf("Your %s verification code is %s.%s", product, msg.Code, validity(msg.ExpiresIn))
	case KindPasswordResetCode:
		c.Subject = "Reset your password"
		c.Text = fmt.Sprintf("Your %s password reset code is %s.%s If you did not ask for it, ignore this message.",
			product, msg.Code, validity(msg.ExpiresIn))
	default:
		c.Subject = "Account update"
		event := strings.ReplaceAll(msg.Event, "_", " ")
		if event == "" {
			event = "account updated"
		}
		c.Text = fmt.Sprintf("This confirms a change to %s: %s.", product, event)
	}
	if msg.Channel == ChannelEmail {
		c.HTML = "<p>" + c.Text + "</p>"
	}
	return c
}

func describe(ch Channel) string {
	if ch == ChannelSMS {
		return "phone number"
	}
	return "email address"
}

func validity(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	return fmt.Sprintf(" It expires in %d minutes.", int(d.Round(time.Minute)/time.Minute))
}
