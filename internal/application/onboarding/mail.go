package onboarding

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/go-storefront-auth/internal/infrastructure/smtp"
)

type approvalRequest struct {
	Reference  string
	Username   string
	Email      string
	Phone      string
	Address    string
	ConfirmURL string
	RejectURL  string
	ExpiresIn  time.Duration
}

var approvalTmpl = template.Must(template.New("approval").Parse(`<html>
<body>
    <h2>New Admin Registration Request</h2>
    <p>A new admin registration request has been submitted (ref {{.Reference}}).</p>
    <table border="1" cellpadding="10">
        <tr><td><strong>Name:</strong></td><td>{{.Username}}</td></tr>
        <tr><td><strong>Email:</strong></td><td>{{.Email}}</td></tr>
        <tr><td><strong>Phone:</strong></td><td>{{.Phone}}</td></tr>
        <tr><td><strong>Address:</strong></td><td>{{.Address}}</td></tr>
    </table>
    <br>
    <p>
        <a href="{{.ConfirmURL}}" style="background-color: #4CAF50; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">APPROVE</a>
        &nbsp;&nbsp;
        <a href="{{.RejectURL}}" style="background-color: #f44336; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">REJECT</a>
    </p>
    {{if .ExpiresIn}}<p>These links expire in {{.ExpiresIn}}.</p>{{end}}
</body>
</html>
`))

func approvalRequestMessage(to string, data approvalRequest) (smtp.Message, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return smtp.Message{}, fmt.Errorf("render approval mail: empty approver address")
	}
	var buf bytes.Buffer
	if err := approvalTmpl.Execute(&buf, data); err != nil {
		return smtp.Message{}, fmt.Errorf("render approval mail: %w", err)
	}
	return smtp.Message{
		To:      to,
		Subject: "Admin Registration Approval Needed",
		Body:    buf.String(),
		HTML:    true,
	}, nil
}

func receivedMessage(to, username, ref string) smtp.Message {
	return smtp.Message{
		To:      to,
		Subject: "Admin Registration Received",
		Body: fmt.Sprintf(`Hi %s,

Your request to become an admin (ref %s) has been received and is awaiting approval.
You will get another email once it has been reviewed.

Regards,
Admin Team
`, username, ref),
	}
}

func approvedMessage(to, username, phone string) smtp.Message {
	return smtp.Message{
		To:      to,
		Subject: "Admin Registration Approved",
		Body: fmt.Sprintf(`Hi %s,

Your request to become an admin has been approved.

You can now log in using your registered email: %s
Phone: %s

Thank you and welcome aboard!

Regards,
Admin Team
`, username, to, phone),
	}
}

func rejectedMessage(to, username string) smtp.Message {
	return smtp.Message{
		To:      to,
		Subject: "Admin Registration Rejected",
		Body: fmt.Sprintf(`Hi %s,

We regret to inform you that your admin registration request has been rejected.

If you believe this is a mistake or have any questions, please contact us.

Regards,
Admin Team
`, username),
	}
}
