package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"thinkr-chatbot/internal/chatbot"
	"thinkr-chatbot/internal/conversation"
	"thinkr-chatbot/internal/service"
)

var (
	flagAskOutput    string
	flagAskFormat    string
	flagAskNoContext bool
	flagAskK         int
	flagRecCount     int
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var recommendCmd = &cobra.Command{
	Use:   "recommend <topic>",
	Short: "Suggest course pages to review for a topic",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRecommend,
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show configuration and index statistics",
	Args:  cobra.NoArgs,
	RunE:  runInfo,
}

func init() {
	askCmd.Flags().StringVarP(&flagAskOutput, "output", "o", "", "Write the answer to a file instead of stdout")
	askCmd.Flags().StringVar(&flagAskFormat, "format", conversation.FormatText, "Output format: json or text")
	askCmd.Flags().BoolVar(&flagAskNoContext, "no-context", false, "Answer without searching the course material")
	askCmd.Flags().IntVarP(&flagAskK, "top-k", "k", 0, "Number of course chunks to retrieve (default TOP_K)")
	recommendCmd.Flags().IntVarP(&flagRecCount, "count", "n", 3, "Number of recommendations")
	rootCmd.AddCommand(askCmd, recommendCmd, infoCmd)
}

// askOutput is the JSON form of an answer written by ask --format json.
type askOutput struct {
	Question    string                   `json:"question"`
	Response    string                   `json:"response"`
	References  []conversation.Reference `json:"references"`
	ContextUsed bool                     `json:"context_used"`
	Model       string                   `json:"model"`
	Timestamp   time.Time                `json:"timestamp"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	format := strings.ToLower(flagAskFormat)
	if format != conversation.FormatText && format != conversation.FormatJSON {
		return &service.ValidationError{Field: "format", Message: fmt.Sprintf("must be json or text, got %q", flagAskFormat)}
	}

	a, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	question := strings.Join(args, " ")
	ans, err := a.Chatbot.Ask(cmd.Context(), a.History, chatbot.AskRequest{
		Question:   question,
		UseContext: !flagAskNoContext,
		K:          flagAskK,
	})
	if err != nil {
		return errors.New(describeError(err))
	}

	if flagAskOutput == "" {
		return writeAnswer(cmd.OutOrStdout(), question, ans, format)
	}
	f, err := os.Create(flagAskOutput)
	if err != nil {
		return fmt.Errorf("cannot create output file: %w", err)
	}
	if err := writeAnswer(f, question, ans, format); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	printOK(cmd.OutOrStdout(), "answer written to "+flagAskOutput)
	return nil
}

// writeAnswer renders ans as plain text or JSON.
func writeAnswer(w io.Writer, question string, ans *chatbot.Answer, format string) error {
	if format == conversation.FormatJSON {
		refs := ans.References
		if refs == nil {
			refs = []conversation.Reference{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(askOutput{
			Question:    question,
			Response:    ans.Response,
			References:  refs,
			ContextUsed: ans.ContextUsed,
			Model:       ans.Model,
			Timestamp:   ans.Timestamp,
		})
	}
	_, err := fmt.Fprintln(w, ans.Response)
	return err
}

func runRecommend(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	topic := strings.Join(args, " ")
	recs, err := a.Chatbot.Recommend(cmd.Context(), topic, flagRecCount)
	if err != nil {
		return errors.New(describeError(err))
	}
	printRecommendations(cmd.OutOrStdout(), topic, recs)
	return nil
}

func runInfo(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	printSystemInfo(cmd.OutOrStdout(), a.Chatbot.SystemInfo(cmd.Context(), a.History))
	return nil
}
