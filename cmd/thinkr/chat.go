package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"thinkr-chatbot/internal/chatbot"
	"thinkr-chatbot/internal/conversation"
	"thinkr-chatbot/internal/service"
	"thinkr-chatbot/internal/vectorstore"
)

var flagChatNoContext bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat about the course",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&flagChatNoContext, "no-context", false, "Answer without searching the course material")
	rootCmd.AddCommand(chatCmd)
}

// chatSession is the part of the chatbot the interactive loop uses.
type chatSession interface {
	Ask(ctx context.Context, hist *conversation.History, req chatbot.AskRequest) (*chatbot.Answer, error)
	SystemInfo(ctx context.Context, hist *conversation.History) *chatbot.SystemInfo
}

func runChat(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	return chatLoop(cmd.Context(), a.Chatbot, a.History, cmd.InOrStdin(), cmd.OutOrStdout(), !flagChatNoContext)
}

// chatLoop reads questions line by line until EOF or a quit command.
// Failed questions are reported and the loop carries on.
func chatLoop(ctx context.Context, bot chatSession, hist *conversation.History, in io.Reader, out io.Writer, useContext bool) error {
	chatBanner(out)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		promptColor.Fprint(out, "\nYou: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit", "q":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case "help":
			fmt.Fprintln(out, chatHelp)
			continue
		case "clear":
			if err := hist.Clear(ctx); err != nil {
				printErr(out, describeError(err))
				continue
			}
			printOK(out, "conversation cleared")
			continue
		case "stats":
			printSystemInfo(out, bot.SystemInfo(ctx, hist))
			continue
		}

		if ctx.Err() != nil {
			return nil
		}
		ans, err := bot.Ask(ctx, hist, chatbot.AskRequest{Question: line, UseContext: useContext})
		if err != nil {
			printErr(out, describeError(err))
			continue
		}
		printAnswer(out, ans)
	}
}

// describeError turns a chatbot error into a message for the terminal.
func describeError(err error) string {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return fmt.Sprintf("%s %s", verr.Field, verr.Message)
	case errors.Is(err, vectorstore.ErrNotIndexed):
		return "No course material indexed yet. Run 'thinkr index-pdfs' first."
	case errors.Is(err, service.ErrMissingCredential):
		return "OPENAI_API_KEY is not set."
	case errors.Is(err, service.ErrIndexInProgress):
		return "An index run is already in progress, try again when it finishes."
	default:
		return err.Error()
	}
}
