package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
)

var (
	chatTopK  int
	chatTurns int
	chatRepo  string
	chatLang  string
	chatType  string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask follow-up questions in an interactive session",
	Long: `Starts an interactive session. Recent turns are sent with each
question so follow-ups can refer to earlier answers.

Commands:
  /clear    forget the conversation so far
  /sources  repeat the sources of the last answer
  /stats    summarise the index
  /quit     leave the session (Ctrl-D works too)`,
	Args:        cobra.NoArgs,
	Annotations: needs(NeedsLLM),
	RunE:        runChat,
}

func init() {
	chatCmd.Flags().IntVarP(&chatTopK, "top-k", "k", 0, "chunks to retrieve per question")
	chatCmd.Flags().IntVar(&chatTurns, "history", domain.DefaultConversationTurns, "prior turns sent with each question")
	addFilterFlags(chatCmd, &chatRepo, &chatLang, &chatType)
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	if ragService == nil {
		return fmt.Errorf("chat: %w", errNotConfigured)
	}

	st := newStyles(cmd.OutOrStdout())
	conv := domain.NewConversation(uuid.NewString())
	conv.MaxTurns = chatTurns
	filter := buildFilter(chatRepo, chatLang, chatType)

	cmd.Println(st.Title.Render("devrag chat"))
	cmd.Println(st.Muted.Render("Type a question, /clear to start over, /quit to leave."))

	reader := bufio.NewReader(cmd.InOrStdin())
	for {
		if err := cmd.Context().Err(); err != nil {
			return nil
		}
		cmd.Print("\n> ")
		line, readErr := reader.ReadString('\n')
		input := strings.TrimSpace(line)

		switch input {
		case "":
			if readErr != nil {
				cmd.Println()
				return nil
			}
			continue
		case "/exit", "/quit":
			return nil
		case "/clear", "/reset":
			conv.Reset()
			cmd.Println(st.Muted.Render("Conversation cleared."))
			continue
		case "/sources":
			if last := conv.LastCitations(); len(last) > 0 {
				printCitations(cmd, st, last)
			} else {
				cmd.Println(st.Muted.Render("No sources yet."))
			}
			continue
		case "/stats":
			if err := chatStats(cmd, st); err != nil {
				cmd.Println(st.Error.Render(err.Error()))
			}
			continue
		}

		req := domain.QueryRequest{Question: input, TopK: chatTopK, Filter: filter}
		ans, err := ragService.Ask(cmd.Context(), req, conv)
		if rerr := renderAnswer(cmd, ans, err, false); rerr != nil {
			if cmd.Context().Err() != nil {
				return nil
			}
			cmd.Println(st.Error.Render(rerr.Error()))
		}

		if readErr != nil {
			return nil
		}
	}
}

func chatStats(cmd *cobra.Command, st *Styles) error {
	if statsService == nil {
		return fmt.Errorf("stats: %w", errNotConfigured)
	}
	stats, err := statsService.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read index stats: %w", err)
	}
	printStats(cmd, st, stats)
	return nil
}
