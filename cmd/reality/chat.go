package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/becomeliminal/nim-reality/engine"
	"github.com/becomeliminal/nim-reality/reality"
)

func chatCmd(flags *globalFlags) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat interactively on stdin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			a, err := buildApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			return runChat(cmd.Context(), a.engine, a.sessions, userID, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "User ID (default: generated from the current time)")
	return cmd
}

// runChat reads one utterance per line until EOF or "exit".
func runChat(ctx context.Context, e *engine.Engine, sessions *reality.Sessions, userID string, in io.Reader, out io.Writer) error {
	sess := sessions.Start(userID)
	defer sessions.End(sess.ID())

	fmt.Fprintf(out, "Chatting as %s. Type \"exit\" to quit.\n", sess.OwnerID())

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "exit" || text == "quit" {
			break
		}

		result, err := e.Run(ctx, &engine.Input{Text: text, Session: sess})
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		printTurn(out, result)
	}
	fmt.Fprintln(out)
	printSummary(out, sess)
	return scanner.Err()
}

func printTurn(out io.Writer, o *engine.Output) {
	fmt.Fprintln(out, o.Reply)

	label := "continuation"
	if o.IsNewReality {
		label = "new reality"
	}
	fmt.Fprintf(out, "  [%s] emotion=%s need=%s beliefs=%s\n", label,
		o.Attributes.EmotionalState, o.Attributes.CognitiveNeed, strings.Join(o.Attributes.Beliefs, ","))
	if len(o.Attributes.ShiftIndicators) > 0 {
		fmt.Fprintf(out, "  shifts: %s\n", strings.Join(o.Attributes.ShiftIndicators, ", "))
	}
	if o.Shift != "" {
		fmt.Fprintf(out, "  %s\n", o.Shift)
	}
	for _, n := range o.Neighbors {
		fmt.Fprintf(out, "  similar (%.2f): %s\n", n.Similarity(), reality.TextSample(n.Text))
	}
}

func printSummary(out io.Writer, s *reality.Session) {
	fmt.Fprintf(out, "Session %s: %d realities\n", s.ID(), s.Len())
	for _, ec := range s.EmotionDistribution() {
		fmt.Fprintf(out, "  %-10s %d\n", ec.Emotion, ec.Count)
	}
}
