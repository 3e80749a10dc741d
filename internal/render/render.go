package render

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"
)

// DefaultCTAPath is appended to the application base URL when an item carries no asset link.
const DefaultCTAPath = "/groove-in-45-seconds"

// Branding holds the sender identity shown in the HTML signature block.
type Branding struct {
	SenderName  string
	SenderEmail string
	BaseURL     string
}

// Content is one message in both formats. Text is the body as queued.
type Content struct {
	HTML string
	Text string
}

type paragraph struct {
	Lines []string
}

type emailView struct {
	Paragraphs  []paragraph
	CTALink     string
	SenderName  string
	SenderEmail string
}

var emailTemplate = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin: 0; padding: 0; background-color: #f4f4f5; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" border="0" style="background-color: #f4f4f5;">
    <tr>
      <td align="center" style="padding: 24px 16px;">
        <table role="presentation" width="600" cellspacing="0" cellpadding="0" border="0" style="max-width: 600px; background-color: #ffffff; border-radius: 8px;">
          <tr>
            <td style="padding: 32px;">
{{- range .Paragraphs}}
              <p style="margin: 0 0 16px 0; color: #333333; font-size: 16px; line-height: 1.6;">{{range $i, $line := .Lines}}{{if $i}}<br>{{end}}{{$line}}{{end}}</p>
{{- end}}
              <table role="presentation" cellspacing="0" cellpadding="0" border="0" style="margin: 24px 0;">
                <tr>
                  <td style="border-radius: 6px; background-color: #0f766e;">
                    <a href="{{.CTALink}}" target="_blank" style="display: inline-block; padding: 14px 28px; font-size: 15px; font-weight: 600; color: #ffffff; text-decoration: none; border-radius: 6px;">Take a look</a>
                  </td>
                </tr>
              </table>
{{- if .SenderName}}
              <p style="margin: 24px 0 4px 0; font-size: 16px; font-weight: 600; color: #333333;">{{.SenderName}}</p>
{{- end}}
{{- if .SenderEmail}}
              <p style="margin: 0; font-size: 14px;"><a href="mailto:{{.SenderEmail}}" style="color: #0f766e; text-decoration: none;">{{.SenderEmail}}</a></p>
{{- end}}
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>
`))

// Renderer wraps plain-text bodies in the branded HTML layout.
type Renderer struct {
	branding   Branding
	defaultCTA string
}

func NewRenderer(branding Branding) (*Renderer, error) {
	base := strings.TrimSuffix(strings.TrimSpace(branding.BaseURL), "/")
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid app base url %q", branding.BaseURL)
	}

	return &Renderer{
		branding:   branding,
		defaultCTA: base + DefaultCTAPath,
	}, nil
}

// Render builds the HTML and text parts. An empty assetLink falls back to the default CTA.
func (r *Renderer) Render(body, assetLink string) (Content, error) {
	cta := strings.TrimSpace(assetLink)
	if cta == "" {
		cta = r.defaultCTA
	}

	view := emailView{
		Paragraphs:  splitParagraphs(body),
		CTALink:     cta,
		SenderName:  strings.TrimSpace(r.branding.SenderName),
		SenderEmail: strings.TrimSpace(r.branding.SenderEmail),
	}

	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, view); err != nil {
		return Content{}, fmt.Errorf("render html: %w", err)
	}

	return Content{HTML: buf.String(), Text: body}, nil
}

func splitParagraphs(body string) []paragraph {
	normalized := strings.ReplaceAll(body, "\r\n", "\n")
	blocks := strings.Split(normalized, "\n\n")

	paragraphs := make([]paragraph, 0, len(blocks))
	for _, block := range blocks {
		block = strings.Trim(block, "\n")
		if strings.TrimSpace(block) == "" {
			continue
		}
		paragraphs = append(paragraphs, paragraph{Lines: strings.Split(block, "\n")})
	}
	return paragraphs
}
