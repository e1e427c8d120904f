package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"thinkr-chatbot/internal/chatbot"
	"thinkr-chatbot/internal/indexer"
)

var (
	okColor     = color.New(color.FgGreen)
	errColor    = color.New(color.FgRed)
	warnColor   = color.New(color.FgYellow)
	promptColor = color.New(color.FgCyan, color.Bold)
	botColor    = color.New(color.FgBlue, color.Bold)
	dimColor    = color.New(color.Faint)
)

func printOK(w io.Writer, msg string) {
	okColor.Fprintf(w, "  ✓  %s\n", msg)
}

func printErr(w io.Writer, msg string) {
	errColor.Fprintf(w, "  ✗  %s\n", msg)
}

func printWarn(w io.Writer, msg string) {
	warnColor.Fprintf(w, "  ⚠  %s\n", msg)
}

func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "\n=== %s ===\n", title)
}

// newProgressBar renders per-file indexing progress on w.
func newProgressBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(color.BlueString("Indexing PDFs")),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowCount(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
}

// printIndexResult prints the summary of an index run.
func printIndexResult(w io.Writer, res *indexer.Result) {
	printSection(w, "Index")
	if res.Status == indexer.StatusSuccess {
		printOK(w, res.Message)
	} else {
		printWarn(w, res.Message)
	}
	fmt.Fprintf(w, "  scanned %d · indexed %d · skipped %d · removed %d · chunks %d\n",
		res.Scanned, res.Indexed, res.Skipped, res.Removed, res.Chunks)
	fmt.Fprintf(w, "  total entries: %d (%s)\n", res.TotalEntries, res.Duration().Round(time.Millisecond))
	for _, f := range res.Failed {
		printErr(w, fmt.Sprintf("[%s] %s", f.File, f.Error))
	}
}

// printAnswer prints an answer in the interactive style.
func printAnswer(w io.Writer, ans *chatbot.Answer) {
	botColor.Fprint(w, "\nAssistant: ")
	fmt.Fprintln(w, ans.Response)
	if !ans.ContextUsed {
		dimColor.Fprintln(w, "(answered without course material)")
	}
	fmt.Fprintln(w)
}

// printSystemInfo prints the system-info report.
func printSystemInfo(w io.Writer, info *chatbot.SystemInfo) {
	printSection(w, "Model")
	fmt.Fprintf(w, "  model:        %s\n", info.Model)
	fmt.Fprintf(w, "  temperature:  %.2f\n", info.Temperature)
	fmt.Fprintf(w, "  max tokens:   %d\n", info.MaxTokens)

	printSection(w, "Vector store")
	vs := info.VectorStore
	fmt.Fprintf(w, "  backend:      %s (%s)\n", vs.Backend, vs.Collection)
	fmt.Fprintf(w, "  entries:      %d\n", vs.TotalEntries)
	fmt.Fprintf(w, "  documents:    %d\n", vs.Documents)
	fmt.Fprintf(w, "  embeddings:   %s (dim %d)\n", vs.EmbeddingModel, vs.Dimension)
	fmt.Fprintf(w, "  path:         %s\n", info.VectorDBPath)
	if vs.Error != "" {
		printErr(w, vs.Error)
	}

	if s := info.IndexStats; s != nil {
		printSection(w, "Index")
		fmt.Fprintf(w, "  pages:        %d\n", s.Pages)
		fmt.Fprintf(w, "  chunks:       %d (%d with code)\n", s.Chunks, s.CodeChunks)
		fmt.Fprintf(w, "  chunk tokens: min %d · max %d · mean %.1f · p95 %d\n",
			s.ChunkTokenStats.Min, s.ChunkTokenStats.Max, s.ChunkTokenStats.Mean, s.ChunkTokenStats.P95)
		if s.DocumentsWith0Chunks > 0 {
			printWarn(w, fmt.Sprintf("%d PDF(s) produced no text", s.DocumentsWith0Chunks))
		}
		fmt.Fprintf(w, "  version:      %s (%s)\n", s.IndexVersion, s.ChunkerVersion)
	}

	printSection(w, "Session")
	fmt.Fprintf(w, "  PDF directory: %s\n", info.PDFDirectory)
	fmt.Fprintf(w, "  history:       %d exchanges\n", info.ConversationHistory)
	if info.Indexing {
		printWarn(w, "indexing in progress")
	}
}

// printRecommendations prints one line per recommendation.
func printRecommendations(w io.Writer, topic string, recs []chatbot.Recommendation) {
	printSection(w, "Recommendations for "+topic)
	if len(recs) == 0 {
		printWarn(w, "no matching course material found")
		return
	}
	for i, r := range recs {
		fmt.Fprintf(w, "  %d. %s ", i+1, r.Suggestion)
		dimColor.Fprintf(w, "(%s, score %.2f)\n", r.Source, r.RelevanceScore)
	}
}

const chatHelp = `Commands:
  quit, exit, q   leave the chat
  clear           forget the conversation so far
  stats           show system information
  help            show this message
Anything else is sent as a question.`

func chatBanner(w io.Writer) {
	promptColor.Fprintln(w, "ThinkR R course assistant")
	fmt.Fprintln(w, `Type a question, or "help" for commands.`)
}
