package utils

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"strconv"
	"time"

	"github.com/badoux/checkmail"
	"gopkg.in/gomail.v2"
)

type EmailData struct {
	Subject   string
	To        []string
	Template  string
	Data      interface{}
	Year      int
	FromName  string
	FromEmail string
}

// Embedded email templates
var emailTemplates = map[string]string{
	"invite": `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { color: #2c3e50; border-bottom: 1px solid #eee; padding-bottom: 10px; }
        .content { margin: 20px 0; }
        .button { display: inline-block; padding: 10px 20px; background-color: #3498db; color: white; text-decoration: none; border-radius: 4px; }
        .footer { margin-top: 30px; font-size: 12px; color: #7f8c8d; text-align: center; }
    </style>
</head>
<body>
    <div class="header">
        <h2>You've been invited to {{.TeamName}}</h2>
    </div>

    <div class="content">
        <p>Hello,</p>
        <p>You've been invited to join the <strong>{{.TeamName}}</strong> workspace on Dispatch. Click the button below to accept:</p>

        <p style="text-align: center;">
            <a href="{{.InviteLink}}" class="button">Join Workspace</a>
        </p>

        <p>Or copy and paste this link into your browser:<br>
        <small>{{.InviteLink}}</small></p>

        <p>This invitation expires in 7 days.</p>
    </div>

    <div class="footer">
        <p>If you weren't expecting this invitation, you can safely ignore this email.</p>
        <p>&copy; {{.Year}} Dispatch. All rights reserved.</p>
    </div>
</body>
</html>`,

	"password_reset": `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { color: #2c3e50; border-bottom: 1px solid #eee; padding-bottom: 10px; }
        .content { margin: 20px 0; }
        .button { display: inline-block; padding: 10px 20px; background-color: #3498db; color: white; text-decoration: none; border-radius: 4px; }
        .footer { margin-top: 30px; font-size: 12px; color: #7f8c8d; text-align: center; }
    </style>
</head>
<body>
    <div class="header">
        <h2>Password Reset Request</h2>
    </div>

    <div class="content">
        <p>Hello,</p>
        <p>We received a request to reset your password. Click the button below to proceed:</p>

        <p style="text-align: center;">
            <a href="{{.ResetLink}}" class="button">Reset Password</a>
        </p>

        <p>If you didn't request a password reset, please ignore this email. This link will expire in 1 hour.</p>

        <p>Or copy and paste this link into your browser:<br>
        <small>{{.ResetLink}}</small></p>
    </div>

    <div class="footer">
        <p>For security reasons, don't share this link with anyone.</p>
        <p>&copy; {{.Year}} Dispatch. All rights reserved.</p>
    </div>
</body>
</html>`,
}

// ValidateEmailAddress checks the syntactic format of an address before
// we persist or send anything to it.
func ValidateEmailAddress(email string) error {
	return checkmail.ValidateFormat(email)
}

func SendEmail(data EmailData) error {
	// Set default from email if not provided
	if data.FromEmail == "" {
		data.FromEmail = os.Getenv("SMTP_FROM_EMAIL")
	}
	if data.FromName == "" {
		data.FromName = os.Getenv("SMTP_FROM_NAME")
	}
	if data.Year == 0 {
		data.Year = time.Now().Year()
	}

	tmplContent, ok := emailTemplates[data.Template]
	if !ok {
		return fmt.Errorf("template '%s' not found", data.Template)
	}

	tmpl, err := template.New("email").Parse(tmplContent)
	if err != nil {
		return fmt.Errorf("error parsing template: %v", err)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data.Data); err != nil {
		return fmt.Errorf("error executing template: %v", err)
	}

	smtpPort, err := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if err != nil {
		return fmt.Errorf("invalid SMTP_PORT: %v", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", data.FromName, data.FromEmail))
	m.SetHeader("To", data.To...)
	m.SetHeader("Subject", data.Subject)
	m.SetBody("text/html", body.String())

	d := gomail.NewDialer(
		os.Getenv("SMTP_HOST"),
		smtpPort,
		os.Getenv("SMTP_USERNAME"),
		os.Getenv("SMTP_PASSWORD"),
	)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("error sending email: %v", err)
	}

	return nil
}

func SendInviteEmail(email, teamName, inviteID, captoken string) error {
	inviteLink := fmt.Sprintf("%s/invite/%s?token=%s", os.Getenv("APP_URL"), inviteID, captoken)
	data := EmailData{
		Subject:  fmt.Sprintf("You've been invited to %s", teamName),
		To:       []string{email},
		Template: "invite",
		Data: struct {
			Subject    string
			TeamName   string
			InviteLink string
			Year       int
		}{
			Subject:    fmt.Sprintf("You've been invited to %s", teamName),
			TeamName:   teamName,
			InviteLink: inviteLink,
			Year:       time.Now().Year(),
		},
	}

	return SendEmail(data)
}

func SendPasswordResetEmail(email, token string) error {
	resetLink := fmt.Sprintf("%s/auth/reset?token=%s", os.Getenv("APP_URL"), token)
	data := EmailData{
		Subject:  "Password Reset Request",
		To:       []string{email},
		Template: "password_reset",
		Data: struct {
			Subject   string
			ResetLink string
			Year      int
		}{
			Subject:   "Password Reset Request",
			ResetLink: resetLink,
			Year:      time.Now().Year(),
		},
	}

	return SendEmail(data)
}
