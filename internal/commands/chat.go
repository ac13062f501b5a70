package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"neurochat/internal/conversation"
	"neurochat/internal/interact"
	"neurochat/internal/output"
	"neurochat/internal/storage"
)

const defaultHistory = 20

// HistoryCommand prints the transcript.
type HistoryCommand struct{}

func (c *HistoryCommand) Name() string { return "history" }

func (c *HistoryCommand) Usage() string { return "/history [n]" }

func (c *HistoryCommand) Description() string {
	return fmt.Sprintf("Show the last n messages (default %d, 0 for all)", defaultHistory)
}

func (c *HistoryCommand) Execute(_ context.Context, env *Env, in Input) error {
	chat, err := requireChat(env)
	if err != nil {
		return err
	}
	n := defaultHistory
	switch len(in.Args) {
	case 0:
	case 1:
		n, err = strconv.Atoi(in.Args[0])
		if err != nil || n < 0 {
			return usageError(c)
		}
	default:
		return usageError(c)
	}
	if len(chat.Doc.Messages) == 0 {
		env.Out.Comment("No messages yet")
		return nil
	}
	env.Out.Transcript(chat.Doc.Messages, n)
	return nil
}

// CopyCommand copies a message or attempt to the clipboard.
type CopyCommand struct{}

func (c *CopyCommand) Name() string { return "copy" }

func (c *CopyCommand) Usage() string { return "/copy <hex|last>" }

func (c *CopyCommand) Description() string { return "Copy a message or retry attempt to the clipboard" }

func (c *CopyCommand) Execute(_ context.Context, env *Env, in Input) error {
	if len(in.Args) != 1 {
		return usageError(c)
	}
	if env.Clipboard == nil {
		return fmt.Errorf("clipboard not available")
	}
	text, err := lookupText(env, in.Args[0])
	if err != nil {
		return err
	}
	if err := env.Clipboard.WriteText(text); err != nil {
		return err
	}
	env.Out.Success("Copied " + output.Preview(text, 40))
	return nil
}

// OpenCommand switches to another chat file.
type OpenCommand struct{}

func (c *OpenCommand) Name() string { return "open" }

func (c *OpenCommand) Usage() string { return "/open <path>" }

func (c *OpenCommand) Description() string {
	return "Open a chat file; bare names are looked up in the chat directory"
}

func (c *OpenCommand) Execute(_ context.Context, env *Env, in Input) error {
	if in.Raw == "" {
		return usageError(c)
	}
	return switchChat(env, ResolveChatPath(env.ChatDir, in.Raw))
}

// NewCommand starts a fresh chat in the chat directory.
type NewCommand struct{}

func (c *NewCommand) Name() string { return "new" }

func (c *NewCommand) Usage() string { return "/new" }

func (c *NewCommand) Description() string { return "Start a new chat" }

func (c *NewCommand) Execute(_ context.Context, env *Env, _ Input) error {
	return switchChat(env, storage.NewChatPath(env.ChatDir, env.TestMode))
}

// ResolveChatPath maps a bare chat name into dir and adds a .json extension when missing.
func ResolveChatPath(dir, name string) string {
	if filepath.Ext(name) == "" {
		name += ".json"
	}
	if !strings.ContainsRune(name, filepath.Separator) && !strings.ContainsRune(name, '/') && dir != "" {
		return filepath.Join(dir, name)
	}
	return name
}

func switchChat(env *Env, path string) error {
	if rs := env.Orch.State().Retry(); rs != nil && len(rs.AttemptIDs()) > 0 {
		ok, err := interact.Confirm(env.UI, fmt.Sprintf("Discard %d retry attempts?", len(rs.AttemptIDs())))
		if err != nil {
			return err
		}
		if !ok {
			return ErrCancelled
		}
	}
	if err := env.Orch.Open(path); err != nil {
		return err
	}
	doc := env.Orch.Chat().Doc
	env.Out.Success(fmt.Sprintf("Opened %s (%d messages)", path, len(doc.Messages)))
	return nil
}

// StatusCommand shows session and chat state.
type StatusCommand struct{}

func (c *StatusCommand) Name() string { return "status" }

func (c *StatusCommand) Usage() string { return "/status" }

func (c *StatusCommand) Description() string { return "Show the session state" }

func (c *StatusCommand) Execute(_ context.Context, env *Env, _ Input) error {
	state := env.Orch.State()
	out := env.Out

	if chat := env.Orch.Chat(); chat != nil {
		title := chat.Doc.Metadata.Title
		if title == "" {
			title = "(untitled)"
		}
		out.Println(fmt.Sprintf("chat     %s  %s", chat.Path, title))
		out.Println(fmt.Sprintf("messages %d", len(chat.Doc.Messages)))
		if chat.Doc.HasPendingError() {
			out.Warning("The last turn failed")
		}
		if span, ok := lastTurn(env); ok {
			out.Println("last     " + span)
		}
	} else {
		out.Println("chat     none")
	}
	out.Println("mode     " + out.Styled(output.SemanticMode, env.Orch.Mode().String()))
	out.Println("model    " + describeTarget(state.Current()))
	out.Println("helper   " + describeTarget(state.Helper()))
	out.Println("timeout  " + state.Timeout().String())
	out.Println(fmt.Sprintf("secret   %s  search %s", onOff(state.SecretMode()), onOff(state.SearchMode())))
	if rs := state.Retry(); rs != nil {
		out.Println(fmt.Sprintf("retry    %s, %d attempts", rs.TargetHexID(), len(rs.AttemptIDs())))
	}
	return nil
}

func lastTurn(env *Env) (string, bool) {
	doc := env.Orch.Chat().Doc
	target, err := conversation.Resolve(doc, conversation.KeywordTurn)
	if err != nil {
		return "", false
	}
	ids := make([]string, 0, 2)
	for _, i := range target.Indices() {
		ids = append(ids, doc.Messages[i].HexID)
	}
	return strings.Join(ids, " "), true
}
