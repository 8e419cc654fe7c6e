package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/HildaM/logs/slog"
	"github.com/hildam/harvey-go/biz/chat"
	"github.com/hildam/harvey-go/entity/conf"
	"github.com/hildam/harvey-go/entity/model"
	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	var (
		actor model.Actor
		trace bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := conf.GetCfg()
			if actor.OrgID == "" {
				actor.OrgID = cfg.HR.OrgID
			}

			app, err := chat.Build(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			if trace {
				out := make(chan string, 64)
				app.Service.Trace = out
				defer close(out)
				go func() {
					for s := range out {
						fmt.Fprint(cmd.ErrOrStderr(), s)
					}
				}()
			}
			return runConsole(cmd, app.Service, &actor)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&actor.UserID, "user", "console", "acting user id")
	flags.StringVar(&actor.OrgID, "org", "", "acting organization id, defaults to hr.org_id")
	flags.StringVar(&actor.DisplayName, "name", "", "display name used in email signatures")
	flags.StringVar(&actor.Email, "email", "", "acting user email")
	flags.BoolVar(&trace, "trace", false, "print graph node trace to stderr")
	return cmd
}

// runConsole 逐行读取输入，空行跳过，exit 退出
func runConsole(cmd *cobra.Command, svc *chat.Service, actor *model.Actor) error {
	in := bufio.NewScanner(cmd.InOrStdin())
	out := cmd.OutOrStdout()
	conversationID := ""

	fmt.Fprint(out, "你: ")
	for in.Scan() {
		text := strings.TrimSpace(in.Text())
		switch text {
		case "":
			fmt.Fprint(out, "你: ")
			continue
		case "exit", "quit":
			return nil
		}

		res, err := svc.Reply(cmd.Context(), text, actor, conversationID)
		if err != nil {
			slog.Error("runConsole failed, err: %v", err)
			return err
		}
		if conversationID == "" {
			conversationID = res.ConversationID
			fmt.Fprintf(out, "[%s]\n", res.Title)
		}
		fmt.Fprintf(out, "Harvey: %s\n\n你: ", res.Response)
	}
	if err := in.Err(); err != nil && err != io.EOF {
		return err
	}
	return nil
}
