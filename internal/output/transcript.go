package output

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"neurochat/pkg/chattypes"
)

// PreviewWidth is the default width of one-line message previews.
const PreviewWidth = 72

// Preview collapses text to a single line no wider than width cells.
func Preview(text string, width int) string {
	flat := strings.Join(strings.Fields(text), " ")
	if width <= 0 {
		return flat
	}
	return ansi.Truncate(flat, width, "…")
}

func roleSemantic(r chattypes.Role) SemanticType {
	switch r {
	case chattypes.RoleUser:
		return SemanticUser
	case chattypes.RoleAssistant:
		return SemanticAssistant
	default:
		return SemanticErrorRole
	}
}

// MessageHeader formats the "[hex] role model" line that precedes a message.
func (p *Printer) MessageHeader(m chattypes.ChatMessage) string {
	var b strings.Builder
	if m.HexID != "" {
		b.WriteString(p.Styled(SemanticHex, m.HexID))
		b.WriteString(" ")
	}
	b.WriteString(p.Styled(roleSemantic(m.Role), string(m.Role)))
	if m.Model != "" {
		b.WriteString(" ")
		b.WriteString(p.Styled(SemanticComment, m.Model))
	}
	return b.String()
}

// Message writes a full transcript entry.
func (p *Printer) Message(m chattypes.ChatMessage) {
	p.Println(p.MessageHeader(m))
	switch m.Role {
	case chattypes.RoleAssistant:
		p.Markdown(m.Text())
		for i, c := range m.Citations {
			label := c.Title
			if label == "" {
				label = c.URL
			}
			p.Comment(fmt.Sprintf("[%d] %s %s", i+1, label, c.URL))
		}
	case chattypes.RoleError:
		p.Error(m.Text())
		if m.Details != nil && len(m.Details.Prompt) > 0 {
			p.Comment("prompt: " + Preview(chattypes.LinesToText(m.Details.Prompt), PreviewWidth))
		}
	default:
		p.Println(m.Text())
	}
}

// MessageLine writes a one-line preview of m.
func (p *Printer) MessageLine(m chattypes.ChatMessage) {
	p.Println(p.MessageHeader(m) + "  " + Preview(m.Text(), PreviewWidth))
}

// Transcript writes the last n messages, or all of them when n <= 0.
func (p *Printer) Transcript(msgs []chattypes.ChatMessage, n int) {
	if n > 0 && n < len(msgs) {
		p.Comment(fmt.Sprintf("… %d earlier messages", len(msgs)-n))
		msgs = msgs[len(msgs)-n:]
	}
	for i, m := range msgs {
		if i > 0 {
			p.Println("")
		}
		p.Message(m)
	}
}
