package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mark3labs/postai/internal/pipeline"
)

const confirmTurn = "execute"

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <turn>...",
		Short: "Handle turns non-interactively, one argument per turn",
		Example: `  postai run https://petstore.swagger.io/v2/swagger.json "GET /pet/findByStatus status=available" execute
  postai run --yes --base-url http://localhost:8080 "GET /health"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			yes, err := cmd.Flags().GetBool("yes")
			if err != nil {
				return err
			}
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			session := &pipeline.Session{}
			for _, turn := range args {
				userLabel.Fprint(out, "you> ")
				fmt.Fprintln(out, turn)
				printMessages(out, a.pipeline.Handle(cmd.Context(), session, turn))
				if yes && session.Pending != nil {
					printMessages(out, a.pipeline.Handle(cmd.Context(), session, confirmTurn))
				}
			}
			if session.Pending != nil {
				warnText.Fprintf(out, "A request is still pending: %s\n", session.Pending.Summary())
			}
			return nil
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "Execute each built request without waiting for confirmation")
	return cmd
}
