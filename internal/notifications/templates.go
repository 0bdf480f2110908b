package notifications

import (
	"bytes"
	"text/template"
)

type content struct {
	subject *template.Template
	body    *template.Template
}

func mustContent(subject, body string) content {
	return content{
		subject: template.Must(template.New("subject").Parse(subject)),
		body:    template.Must(template.New("body").Parse(body)),
	}
}

func (c content) render(data any) (string, string, error) {
	var subject, body bytes.Buffer
	if err := c.subject.Execute(&subject, data); err != nil {
		return "", "", err
	}
	if err := c.body.Execute(&body, data); err != nil {
		return "", "", err
	}
	return subject.String(), body.String(), nil
}

var (
	verificationEmail = mustContent(
		"Your Otithi verification code",
		`Hi {{.Name}},

Your verification code is {{.Code}}. It expires at {{.ExpiresAt}}.

If you did not create an Otithi account you can ignore this email.
`)

	bookingRequestEmail = mustContent(
		"New booking request for {{.Listing}}",
		`Hi {{.Name}},

{{.Other}} has requested to stay at {{.Listing}} from {{.CheckIn}} to {{.CheckOut}}.
Total: BDT {{.Total}}

Confirm or reject the request from your host dashboard.
`)

	bookingStatusEmail = mustContent(
		"Your booking at {{.Listing}} is {{.Status}}",
		`Hi {{.Name}},

Your booking at {{.Listing}} from {{.CheckIn}} to {{.CheckOut}} is now {{.Status}}.
`)

	reviewEmail = mustContent(
		"New {{.Rating}}-star review for {{.Listing}}",
		`Hi {{.Name}},

{{.Other}} left a {{.Rating}}-star review for {{.Listing}}.
`)
)
