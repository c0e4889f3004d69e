// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/deepchat/internal/config"
	"github.com/jeranaias/deepchat/internal/model"
	"github.com/jeranaias/deepchat/internal/util"
)

// =============================================================================
// TRANSCRIPT EXPORT
// =============================================================================

// exportCmd writes the current conversation as a Markdown file under
// the data directory and reports the result asynchronously.
func (m Model) exportCmd() tea.Cmd {
	sess := m.store.CurrentSession()
	if sess == nil || len(sess.Messages) == 0 {
		return m.setStatusCmd("nothing to export")
	}

	transcript := buildTranscript(sess)
	name := fmt.Sprintf("chat-%s.md", time.Now().Format("20060102-150405"))

	return func() tea.Msg {
		dir, err := config.EnsureDataDir()
		if err != nil {
			return exportDoneMsg{err: err}
		}
		exportDir := filepath.Join(dir, "exports")
		if err := os.MkdirAll(exportDir, 0o755); err != nil {
			return exportDoneMsg{err: err}
		}

		path := filepath.Join(exportDir, name)
		if err := util.AtomicWriteFile(path, []byte(transcript), 0o644); err != nil {
			return exportDoneMsg{err: err}
		}
		return exportDoneMsg{path: path}
	}
}

// setStatusCmd wraps a status line as a command for paths that cannot
// mutate the model directly.
func (m Model) setStatusCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return exportDoneMsg{err: fmt.Errorf("%s", text)}
	}
}

// buildTranscript renders a session as portable Markdown.
func buildTranscript(sess *model.Session) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", sess.Title)
	fmt.Fprintf(&b, "Model: %s\n\n", sess.Model)

	for _, msg := range sess.Messages {
		if msg.Content == "" && msg.ThinkContent == "" {
			continue
		}

		fmt.Fprintf(&b, "## %s\n\n", msg.Role.DisplayName())

		if msg.ThinkContent != "" {
			b.WriteString("<details><summary>Thinking")
			if msg.ThinkingTime > 0 {
				fmt.Fprintf(&b, " (%ds)", msg.ThinkingTime)
			}
			b.WriteString("</summary>\n\n")
			b.WriteString(strings.TrimSpace(msg.ThinkContent))
			b.WriteString("\n\n</details>\n\n")
		}

		if msg.WebSearch != nil {
			fmt.Fprintf(&b, "Web search: %s\n\n", msg.WebSearch.Query)
			for _, page := range msg.WebSearch.Pages {
				fmt.Fprintf(&b, "- [%s](%s)\n", page.Title, page.URL)
			}
			b.WriteString("\n")
		}

		if msg.Content != "" {
			b.WriteString(msg.Content)
			b.WriteString("\n\n")
		}
	}

	return b.String()
}
