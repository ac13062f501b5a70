package commands

import (
	"context"

	"neurochat/pkg/chattypes"
)

// TitleCommand shows or sets the chat title.
type TitleCommand struct{}

func (c *TitleCommand) Name() string { return "title" }

func (c *TitleCommand) Usage() string { return "/title [text]" }

func (c *TitleCommand) Description() string { return "Show or set the chat title" }

func (c *TitleCommand) Execute(_ context.Context, env *Env, in Input) error {
	chat, err := requireChat(env)
	if err != nil {
		return err
	}
	if in.Raw == "" {
		title := chat.Doc.Metadata.Title
		if title == "" {
			title = "(untitled)"
		}
		env.Out.Info("Title: " + title)
		return nil
	}
	now := env.Orch.State().Now()
	changed, err := env.Orch.UpdateMetadata(func(doc *chattypes.ChatDocument) bool {
		return doc.SetTitle(in.Raw, now)
	})
	if err != nil {
		return err
	}
	if changed {
		env.Out.Success("Title set")
	}
	return nil
}

// SystemCommand shows, sets or clears the system prompt.
type SystemCommand struct{}

func (c *SystemCommand) Name() string { return "system" }

func (c *SystemCommand) Usage() string { return "/system [text|--clear]" }

func (c *SystemCommand) Description() string { return "Show, set or clear the system prompt" }

func (c *SystemCommand) Execute(_ context.Context, env *Env, in Input) error {
	chat, err := requireChat(env)
	if err != nil {
		return err
	}
	if in.Raw == "" {
		if chat.Doc.Metadata.SystemPrompt == "" {
			env.Out.Info("No system prompt")
		} else {
			env.Out.Info("System prompt: " + chat.Doc.Metadata.SystemPrompt)
		}
		return nil
	}

	prompt := in.Raw
	if prompt == "--clear" {
		prompt = ""
	}
	now := env.Orch.State().Now()
	changed, err := env.Orch.UpdateMetadata(func(doc *chattypes.ChatDocument) bool {
		return doc.SetSystemPrompt(prompt, now)
	})
	if err != nil {
		return err
	}
	switch {
	case !changed:
	case prompt == "":
		env.Out.Success("System prompt cleared")
	default:
		env.Out.Success("System prompt set")
	}
	return nil
}

// SummarizeCommand stores a helper-model summary of the chat.
type SummarizeCommand struct{}

func (c *SummarizeCommand) Name() string { return "summarize" }

func (c *SummarizeCommand) Usage() string { return "/summarize" }

func (c *SummarizeCommand) Description() string {
	return "Summarize the chat with the helper model (also titles untitled chats)"
}

func (c *SummarizeCommand) Execute(ctx context.Context, env *Env, _ Input) error {
	if _, err := requireChat(env); err != nil {
		return err
	}
	summary, err := env.Orch.Summarize(ctx)
	if err != nil {
		return err
	}
	env.Out.Info("Summary: " + summary)
	return nil
}
