package reasoner

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/hildam/harvey-go/agent/comm"
	"github.com/hildam/harvey-go/entity/model"
	"github.com/hildam/harvey-go/repo/template"
)

// isDraftRequest 只要草稿、不要发送的邮件请求
func isDraftRequest(text string) bool {
	lower := strings.ToLower(text)
	if !strings.Contains(lower, "draft") || strings.Contains(lower, "send") {
		return false
	}
	return strings.Contains(lower, "mail") || strings.Contains(lower, "@")
}

// draft 生成邮件草稿并暂存，回复中展示的就是之后发送的内容
func (r *Reasoner) draft(ctx context.Context, state *model.State) (*model.Update, error) {
	history := comm.ForModel(ctx, state.Messages, r.chatWindow, r.maxLimit)
	vars := r.contextVars(state)
	msgs, err := r.prompts.Format(ctx, template.Drafter, vars, history)
	if err != nil {
		return nil, err
	}

	resp, err := r.models.Drafter.Generate(ctx, msgs)
	if err != nil {
		return nil, err
	}
	comm.LogUsage("Drafter", resp)

	var d model.Draft
	if err := comm.ExtractJSON(resp.Content, &d); err != nil {
		return nil, fmt.Errorf("parse draft: %w", err)
	}
	d.Recipient = strings.TrimSpace(d.Recipient)
	d.Subject = strings.TrimSpace(d.Subject)
	d.Body = strings.TrimSpace(d.Body)
	if d.Body == "" {
		return nil, fmt.Errorf("empty draft body")
	}

	staged := &model.DraftEmail{Recipient: d.Recipient, Subject: d.Subject, Body: d.Body}
	return model.NewUpdate(
		model.AppendMessages(schema.AssistantMessage(renderDraft(staged), nil)),
		model.SetDraft(staged),
		model.ClearPending(),
	).Decide("draft", true), nil
}

// renderDraft 展示给用户的草稿
func renderDraft(d *model.DraftEmail) string {
	var sb strings.Builder
	sb.WriteString("Here's a draft:\n\n")
	if d.Recipient != "" {
		fmt.Fprintf(&sb, "To: %s\n", d.Recipient)
	}
	fmt.Fprintf(&sb, "Subject: %s\n\n%s\n\n", d.Subject, d.Body)
	if d.Recipient == "" {
		sb.WriteString(`Tell me who it should go to, then say "send" to send it as is.`)
	} else {
		sb.WriteString(`Say "send" to send it as is.`)
	}
	return sb.String()
}
