package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/BKHilton/Ember/pkg/domain"
)

// DigestEmailData holds data for digest email templates.
type DigestEmailData struct {
	ChurchName string
	Digest     domain.ReportDigest
	ReportPath string
}

// BuildDigestEmail creates a digest email with both HTML and text bodies.
func BuildDigestEmail(data DigestEmailData) Email {
	return Email{
		Subject:  fmt.Sprintf("%s: %s", data.ChurchName, data.Digest.Label),
		TextBody: buildDigestText(data),
		HTMLBody: render(digestHTML, data),
	}
}

func buildDigestText(data DigestEmailData) string {
	d := data.Digest
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s for %s\n", d.Label, data.ChurchName)
	fmt.Fprintf(&buf, "%s to %s\n\n", d.WindowStart.Format("Jan 2"), d.WindowEnd.Add(-time.Second).Format("Jan 2, 2006"))
	fmt.Fprintf(&buf, "Activities logged:        %d\n", d.TotalActivities)
	fmt.Fprintf(&buf, "Assignments completed:    %d\n", d.CompletedAssignments)
	fmt.Fprintf(&buf, "Assignments rescheduled:  %d\n", d.RescheduledAssignments)
	fmt.Fprintf(&buf, "Tasks past due:           %d\n", d.PastDueTasks)
	fmt.Fprintf(&buf, "New contacts:             %d\n", d.NewContacts)
	fmt.Fprintf(&buf, "Converts:                 %d\n", d.Converts)
	if data.ReportPath != "" {
		fmt.Fprintf(&buf, "\nFull report: %s\n", data.ReportPath)
	}
	return buf.String()
}

// AssignmentEmailData holds data for the task assignment email.
type AssignmentEmailData struct {
	ChurchName   string
	AssigneeName string
	ContactName  string
	TaskTitle    string
	DueDate      time.Time
}

// BuildAssignmentEmail creates the email sent to a user who was assigned a task.
func BuildAssignmentEmail(data AssignmentEmailData) Email {
	var text bytes.Buffer
	fmt.Fprintf(&text, "Hi %s,\n\n", data.AssigneeName)
	fmt.Fprintf(&text, "You have a new follow-up assignment with %s: %s.\n", data.ContactName, data.TaskTitle)
	fmt.Fprintf(&text, "Due %s.\n", data.DueDate.Format("Mon Jan 2, 2006"))
	return Email{
		Subject:  fmt.Sprintf("New assignment: %s", data.ContactName),
		TextBody: text.String(),
		HTMLBody: render(assignmentHTML, data),
	}
}

var (
	digestHTML = template.Must(template.New("digest").Funcs(template.FuncMap{
		"day":     func(t time.Time) string { return t.Format("Jan 2") },
		"lastDay": func(t time.Time) string { return t.Add(-time.Second).Format("Jan 2, 2006") },
	}).Parse(digestHTMLTemplate))
	assignmentHTML = template.Must(template.New("assignment").Funcs(template.FuncMap{
		"due": func(t time.Time) string { return t.Format("Mon Jan 2, 2006") },
	}).Parse(assignmentHTMLTemplate))
)

func render(tmpl *template.Template, data any) string {
	var buf bytes.Buffer
	_ = tmpl.Execute(&buf, data)
	return buf.String()
}

const digestHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Digest.Label}}</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 32px 16px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 520px; background-color: #ffffff; border-radius: 8px;">
          <tr>
            <td style="padding: 24px 32px; border-bottom: 1px solid #e5e7eb;">
              <h1 style="margin: 0; font-size: 20px; color: #1f2937;">{{.Digest.Label}}</h1>
              <p style="margin: 4px 0 0; font-size: 14px; color: #6b7280;">{{.ChurchName}} &middot; {{day .Digest.WindowStart}} to {{lastDay .Digest.WindowEnd}}</p>
            </td>
          </tr>
          <tr>
            <td style="padding: 24px 32px;">
              <table role="presentation" width="100%" cellspacing="0" cellpadding="6" style="font-size: 15px; color: #374151;">
                <tr><td>Activities logged</td><td align="right"><strong>{{.Digest.TotalActivities}}</strong></td></tr>
                <tr><td>Assignments completed</td><td align="right"><strong>{{.Digest.CompletedAssignments}}</strong></td></tr>
                <tr><td>Assignments rescheduled</td><td align="right"><strong>{{.Digest.RescheduledAssignments}}</strong></td></tr>
                <tr><td>Tasks past due</td><td align="right"><strong>{{.Digest.PastDueTasks}}</strong></td></tr>
                <tr><td>New contacts</td><td align="right"><strong>{{.Digest.NewContacts}}</strong></td></tr>
                <tr><td>Converts</td><td align="right"><strong>{{.Digest.Converts}}</strong></td></tr>
              </table>
            </td>
          </tr>
          {{if .ReportPath}}
          <tr>
            <td style="padding: 16px 32px; background-color: #f9fafb; border-top: 1px solid #e5e7eb; font-size: 12px; color: #9ca3af;">
              Full report saved to {{.ReportPath}}
            </td>
          </tr>
          {{end}}
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`

const assignmentHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>New assignment</title>
</head>
<body style="margin: 0; padding: 24px; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; color: #374151;">
  <p>Hi {{.AssigneeName}},</p>
  <p>You have a new follow-up assignment with <strong>{{.ContactName}}</strong>: {{.TaskTitle}}.</p>
  <p style="color: #6b7280;">Due {{due .DueDate}} &middot; {{.ChurchName}}</p>
</body>
</html>`
