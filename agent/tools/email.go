package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HildaM/logs/slog"
	"github.com/cloudwego/eino/schema"
	"github.com/hildam/harvey-go/entity/consts"
	"github.com/hildam/harvey-go/entity/model"
	"github.com/hildam/harvey-go/repo/hr"
	"github.com/hildam/harvey-go/repo/mailer"
)

func sendEmail(d *Deps) Tool {
	return newTool(consts.ToolSendEmail,
		"Send an email to a recipient.\nResolves usernames or names to email addresses within the organization and appends the sender's signature.",
		map[string]*schema.ParameterInfo{
			"recipient": param(schema.String, "Email address or name of the recipient", true),
			"subject":   param(schema.String, "Email subject", true),
			"body":      param(schema.String, "Email body, markdown allowed, without signature", true),
		},
		func(ctx context.Context, actor *model.Actor, args map[string]any) (*Result, error) {
			recipient := str(args, "recipient")
			subject := str(args, "subject")
			body := str(args, "body")
			if recipient == "" {
				return fail("Please tell me who the email should go to."), nil
			}

			emails, err := d.HR.ResolveEmails(ctx, actor.OrgID, recipient)
			if err != nil {
				return nil, err
			}
			if len(emails) == 0 {
				return fail("Could not resolve recipient '%s' to a valid email. Please provide a valid email address or a known user name.", recipient), nil
			}
			if len(emails) > 1 {
				return fail("Multiple users found matching '%s': %s. Please provide a more specific name or the exact email address.",
					recipient, strings.Join(emails, ", ")), nil
			}
			to := emails[0]
			if !mailer.ValidAddress(to) {
				return fail("Resolved email '%s' is invalid.", to), nil
			}

			finalBody := strings.TrimRight(body, " \n")
			if sig := signature(d.Mail.Signature, actor); sig != "" {
				finalBody += "\n\n" + sig
			}

			msg := &mailer.Message{From: d.Mail.From, To: []string{to}, Subject: subject, Body: finalBody}
			if err := d.Mailer.Send(ctx, msg); err != nil {
				_ = d.HR.LogEmail(ctx, &hr.EmailLog{OrgID: actor.OrgID, Recipient: to, Subject: subject, Body: finalBody, Status: "failed"})
				return nil, fmt.Errorf("could not deliver the email: %w", err)
			}
			if err := d.HR.LogEmail(ctx, &hr.EmailLog{OrgID: actor.OrgID, Recipient: to, Subject: subject, Body: finalBody, Status: "sent"}); err != nil {
				slog.Error("sendEmail failed, log email, err = %v", err)
			}

			return &Result{
				OK:      true,
				Message: fmt.Sprintf("Email sent to %s", to),
				Data:    map[string]any{"recipient": to, "subject": subject},
			}, nil
		})
}

// signature 渲染签名模板，%s 替换为发送人姓名
func signature(tmpl string, actor *model.Actor) string {
	if !strings.Contains(tmpl, "%s") {
		return tmpl
	}
	return strings.Replace(tmpl, "%s", actorName(actor), 1)
}
