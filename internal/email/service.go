package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var funcs = template.FuncMap{
	"egp": FormatEGP,
}

// Service handles email composition and sending
type Service struct {
	sender      Sender
	fromAddress string
	fromName    string
	templates   map[string]*template.Template
}

// NewService parses the embedded order templates. Each kind gets its own
// template set so the "content" blocks do not collide.
func NewService(sender Sender, fromAddress, fromName string) (*Service, error) {
	templates := make(map[string]*template.Template)
	for _, kind := range []string{KindOrderConfirmed, KindOrderShipped, KindOrderDelivered} {
		name := OrderEmail{Kind: kind}.TemplateName()
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse email template %s: %w", name, err)
		}
		templates[name] = tmpl
	}

	return &Service{
		sender:      sender,
		fromAddress: fromAddress,
		fromName:    fromName,
		templates:   templates,
	}, nil
}

// SendOrderEmail renders and sends one order notification.
func (s *Service) SendOrderEmail(ctx context.Context, data OrderEmail) (string, error) {
	if strings.TrimSpace(data.Email) == "" {
		return "", ErrNoRecipient
	}

	htmlBody, textBody, err := s.renderTemplate(data.TemplateName(), data)
	if err != nil {
		return "", fmt.Errorf("failed to render %s template: %w", data.Kind, err)
	}

	email := &Email{
		To:       []string{data.Email},
		From:     fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress),
		Subject:  data.Subject(),
		HTMLBody: htmlBody,
		TextBody: textBody,
		Headers: map[string]string{
			"X-Dar-Order": data.OrderNumber,
		},
	}

	messageID, err := s.sender.Send(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to send %s email: %w", data.Kind, err)
	}

	return messageID, nil
}

// Helper method to render a template
func (s *Service) renderTemplate(templateName string, data any) (string, string, error) {
	tmpl, ok := s.templates[templateName]
	if !ok {
		return "", "", ErrTemplateNotFound(templateName)
	}

	var htmlBuf bytes.Buffer
	err := tmpl.ExecuteTemplate(&htmlBuf, "email_layout", data)
	if err != nil {
		return "", "", fmt.Errorf("failed to execute template %s: %w", templateName, err)
	}

	htmlBody := htmlBuf.String()

	plainText := generatePlainText(htmlBody)

	return htmlBody, plainText, nil
}

// generatePlainText creates a simple plain text version from HTML
func generatePlainText(html string) string {
	text := html

	text = strings.ReplaceAll(text, "<br>", "\n")
	text = strings.ReplaceAll(text, "<br/>", "\n")
	text = strings.ReplaceAll(text, "<br />", "\n")
	text = strings.ReplaceAll(text, "</p>", "\n\n")
	text = strings.ReplaceAll(text, "</div>", "\n")
	text = strings.ReplaceAll(text, "</tr>", "\n")
	text = strings.ReplaceAll(text, "</td>", " ")
	text = strings.ReplaceAll(text, "</h1>", "\n\n")
	text = strings.ReplaceAll(text, "</h2>", "\n\n")
	text = strings.ReplaceAll(text, "</h3>", "\n\n")

	for strings.Contains(text, "<") && strings.Contains(text, ">") {
		start := strings.Index(text, "<")
		end := strings.Index(text, ">")
		if start >= 0 && end > start {
			text = text[:start] + text[end+1:]
		} else {
			break
		}
	}

	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", "\"")
	text = strings.ReplaceAll(text, "&#39;", "'")

	lines := strings.Split(text, "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}

	return strings.Join(cleaned, "\n")
}
