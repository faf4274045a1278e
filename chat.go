package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/cupogo/andvari/utils/zlog"

	"github.com/lionbot/lionbot/pkg/chatbox"
	"github.com/lionbot/lionbot/pkg/settings"
)

var (
	userStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	botStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	infoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

const chatHelp = `/attach PATH   add a file to the next message
/remove N      drop the N-th pending file
/clear         drop all pending files
/new           start a conversation
/list          list conversations
/switch N      activate the N-th conversation
/quit          leave`

var errQuit = errors.New("quit")

func chatCommand() *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "talk to a running lionbot from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "endpoint",
				Value:   "http://localhost:3000/api/chat",
				EnvVars: []string{"LIONBOT_ENDPOINT"},
			},
			&cli.IntFlag{
				Name:  "max-files",
				Usage: "pending file cap, 1 replaces the previous pick, 0 is unlimited",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 3 * time.Minute,
			},
		},
		Action: chatAction,
	}
}

func chatAction(c *cli.Context) error {
	if settings.InDevelop() {
		setupLogger()
	} else {
		zlog.Set(zap.NewNop().Sugar())
	}

	sd := chatbox.NewHTTPSender(c.String("endpoint"), nil)
	st := chatbox.New(chatbox.WithSender(sd), chatbox.WithMaxAttachments(c.Int("max-files")))

	md, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))
	if err != nil {
		md = nil
	}
	t := &terminal{st: st, md: md, out: os.Stdout, timeout: c.Duration("timeout")}

	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	defer line.Close()

	t.printMessage(st.Active().Messages[0])
	fmt.Fprintln(t.out, infoStyle.Render("type /help for commands"))
	for {
		input, err := line.Prompt("> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				return nil
			}
			return err
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}
		if err = t.handle(c.Context, input); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintln(t.out, errStyle.Render(err.Error()))
		}
	}
}

type terminal struct {
	st      *chatbox.Store
	md      *glamour.TermRenderer
	out     io.Writer
	timeout time.Duration
}

func (t *terminal) handle(ctx context.Context, input string) error {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(input), " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/help":
		fmt.Fprintln(t.out, infoStyle.Render(chatHelp))
	case "/quit", "/exit":
		return errQuit
	case "/attach":
		return t.attach(ctx, arg)
	case "/remove":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("bad index %q", arg)
		}
		if err = t.st.RemoveAttachment(n - 1); err != nil {
			return err
		}
		t.printPending()
	case "/clear":
		t.st.ClearAttachments()
	case "/new":
		conv := t.st.NewConversation()
		fmt.Fprintln(t.out, infoStyle.Render(conv.Title))
		t.printMessage(conv.Messages[0])
	case "/list":
		for i, sm := range t.st.Conversations() {
			mark := " "
			if sm.Active {
				mark = "*"
			}
			fmt.Fprintf(t.out, "%s %d. %s  %s\n", mark, i+1, sm.Title, infoStyle.Render(sm.Subtitle))
		}
	case "/switch":
		n, err := strconv.Atoi(arg)
		list := t.st.Conversations()
		if err != nil || n < 1 || n > len(list) {
			return chatbox.ErrConversationNotFound
		}
		if err = t.st.Switch(list[n-1].ID); err != nil {
			return err
		}
		for _, m := range t.st.Active().Messages {
			t.printMessage(m)
		}
	default:
		if strings.HasPrefix(cmd, "/") {
			return fmt.Errorf("unknown command %s", cmd)
		}
		return t.send(ctx, input)
	}
	return nil
}

func (t *terminal) attach(ctx context.Context, path string) error {
	if len(path) == 0 {
		return errors.New("missing path")
	}
	rd, err := t.st.AttachFile(ctx, path)
	if err != nil {
		return err
	}
	<-rd.Done()
	if err = rd.Err(); err != nil {
		return err
	}
	t.printPending()
	return nil
}

func (t *terminal) send(ctx context.Context, input string) error {
	convID := t.st.Active().ID
	t.st.SetText(input)
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	done, ok := t.st.Send(ctx)
	if !ok {
		return nil
	}
	fmt.Fprint(t.out, infoStyle.Render("LIONBOT กำลังพิมพ์..."))
	<-done
	fmt.Fprint(t.out, "\r\033[K")

	conv, err := t.st.Get(convID)
	if err != nil {
		return err
	}
	t.printMessage(conv.Messages[len(conv.Messages)-1])
	return nil
}

func (t *terminal) printPending() {
	for i, item := range t.st.Composer().Items {
		label := item.Attachment.Label()
		if item.Loading {
			label = "..."
		}
		fmt.Fprintf(t.out, "  [%d] %s %s\n", i+1, infoStyle.Render(label), item.Name)
	}
}

func (t *terminal) printMessage(m chatbox.Message) {
	if m.Role == chatbox.RoleUser {
		fmt.Fprintln(t.out, userStyle.Render("you:"), m.Text)
		for _, a := range m.Attachments {
			fmt.Fprintf(t.out, "  %s %s\n", infoStyle.Render(a.Label()), a.Name)
		}
		return
	}
	fmt.Fprintln(t.out, botStyle.Render("LIONBOT:"))
	fmt.Fprintln(t.out, t.render(m.Text))
}

func (t *terminal) render(text string) string {
	if t.md == nil {
		return text
	}
	out, err := t.md.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}
