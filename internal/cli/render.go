package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/mark3labs/postai/internal/pipeline"
)

var (
	assistantLabel = color.New(color.FgGreen, color.Bold)
	userLabel      = color.New(color.FgBlue, color.Bold)
	codeText       = color.New(color.FgCyan)
	warnText       = color.New(color.FgYellow)
)

const indent = "        "

// printMessages writes assistant messages as labelled text, with code
// blocks fenced so they can be copied as is.
func printMessages(w io.Writer, msgs []pipeline.Message) {
	for _, m := range msgs {
		if m.CodeBlock {
			fmt.Fprintf(w, "%s```%s\n", indent, m.Language)
			for _, line := range strings.Split(m.Content, "\n") {
				codeText.Fprintln(w, indent+line)
			}
			fmt.Fprintf(w, "%s```\n", indent)
			continue
		}
		lines := strings.Split(m.Content, "\n")
		assistantLabel.Fprint(w, "postai> ")
		fmt.Fprintln(w, lines[0])
		for _, line := range lines[1:] {
			fmt.Fprintln(w, indent+line)
		}
	}
}

func printPrompt(w io.Writer) {
	userLabel.Fprint(w, "you> ")
}
