// This file implements the interactive chat loop: a plain read-eval loop
// with glamour-rendered answers. One session ID spans the whole run so turns
// share history in the store.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("6")).
			Bold(true)
	traceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1"))
)

func runChat(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	sessionID := uuid.NewString()
	fmt.Println(promptStyle.Render("K9 " + version))
	fmt.Println("Pregunta sobre riesgos, evidencia operacional o la ontologia. Ctrl+D para salir.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(promptStyle.Render("> "))
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "/quit" || question == "/exit" {
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		res, err := rt.orch.Answer(ctx, sessionID, question, nil)
		cancel()
		if err != nil {
			fmt.Println(errorStyle.Render(fmt.Sprintf("error: %v", err)))
			continue
		}

		fmt.Println(renderAnswer(res.Answer))
		if verbose && res.State != nil {
			for _, line := range res.State.Reasoning {
				fmt.Println(traceStyle.Render("  " + line))
			}
		}
		fmt.Println()
	}
}

// renderAnswer formats markdown for the terminal, falling back to plain text
// when the renderer is unavailable.
func renderAnswer(answer string) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return answer
	}
	out, err := renderer.Render(answer)
	if err != nil {
		return answer
	}
	return strings.TrimRight(out, "\n")
}
