package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"quizbuilder"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

func main() {
	var (
		configPath   = flag.String("config", "", "Path to config file")
		topic        = flag.String("topic", "", "Quiz topic (required)")
		numQuestions = flag.Int("questions", 1, "Number of questions to generate (1-10)")
		difficulty   = flag.String("difficulty", "", "Difficulty level (easy, medium, hard)")
		outputFile   = flag.String("output", "", "Output file for quiz JSON (default: stdout)")
		playMode     = flag.Bool("play", false, "Play the quiz interactively")
		archivePath  = flag.String("archive", "", "SQLite file to archive the generated quiz in")
		verbose      = flag.Bool("verbose", false, "Enable verbose debugging output")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] file.pdf [file.pdf ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := quizbuilder.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	quizbuilder.SetupLogging(os.Stderr, cfg.Logging.Level, *verbose)

	if *topic == "" {
		log.Fatal().Msg("Topic is required. Use -topic flag.")
	}
	if flag.NArg() == 0 {
		log.Fatal().Msg("At least one PDF file is required.")
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}
		log.Fatal().Int("errors", len(errs)).Msg("Invalid configuration")
	}
	if *archivePath != "" {
		cfg.Archive.Path = *archivePath
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Generation.Timeout)
	defer cancel()

	dp := quizbuilder.NewDocumentProcessor()
	if err := dp.IngestFiles(flag.Args()); err != nil {
		log.Fatal().Err(err).Msg("Failed to read documents")
	}

	pipeline, err := quizbuilder.NewPipeline(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise model clients")
	}

	color.Blue("Generating %d question(s) on %q from %d page(s)\n", *numQuestions, *topic, len(dp.Pages()))

	var bar *progressbar.ProgressBar
	quiz, store, err := pipeline.Build(ctx, dp.Pages(), quizbuilder.GenerationRequest{
		Topic:        *topic,
		NumQuestions: *numQuestions,
		Difficulty:   *difficulty,
	}, func(done, total int) {
		if bar == nil {
			bar = getProgressBar(total, "Embedding chunks")
		}
		bar.Set(done)
	})
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		log.Fatal().Err(err).Msg(quizbuilder.UserMessage(err))
	}
	defer store.Reset()

	color.Green("✓ Generated %d question(s)\n", len(quiz.Questions))

	if cfg.Archive.Path != "" {
		if err := archiveQuiz(cfg.Archive.Path, quiz); err != nil {
			log.Error().Err(err).Msg("Failed to archive quiz")
		} else {
			color.Green("✓ Archived as %s\n", quiz.ID)
		}
	}

	if *playMode {
		session := quizbuilder.NewQuizSession(quiz.ID)
		if err := session.Start(quiz); err != nil {
			log.Fatal().Err(err).Msg("Failed to start quiz")
		}
		playQuiz(session, os.Stdin, os.Stdout)
		return
	}

	output, err := json.MarshalIndent(quiz, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to marshal quiz")
	}

	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, output, 0644); err != nil {
			log.Fatal().Err(err).Msg("Failed to write output file")
		}
		log.Info().Str("file", *outputFile).Msg("Quiz saved")
	} else {
		fmt.Println(string(output))
	}
}

func archiveQuiz(path string, quiz *quizbuilder.Quiz) error {
	archive, err := quizbuilder.OpenArchive(path)
	if err != nil {
		return err
	}
	defer archive.Close()
	return archive.SaveQuiz(quiz)
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("chunks"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// playQuiz runs the session in the terminal until the user ends it
func playQuiz(session *quizbuilder.QuizSession, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	prompt := func(text string) (string, bool) {
		fmt.Fprint(out, text)
		if !scanner.Scan() {
			return "", false
		}
		return strings.TrimSpace(scanner.Text()), true
	}

	for {
		view := session.View()
		switch view.Mode {
		case quizbuilder.ModeQuiz:
			printQuestion(out, view)
			input, ok := prompt(navHint(view))
			if !ok {
				return
			}
			handleQuizInput(session, strings.ToLower(input), out)

		case quizbuilder.ModeResults:
			fmt.Fprintln(out)
			color.New(color.Bold).Fprintf(out, "You answered %d out of %d correct\n", view.Score, view.Total)
			input, ok := prompt("[r]estart or [e]nd: ")
			if !ok {
				return
			}
			switch strings.ToLower(input) {
			case "r", "restart":
				session.Restart()
			case "e", "end":
				session.End()
			}

		default:
			return
		}
	}
}

func handleQuizInput(session *quizbuilder.QuizSession, input string, out io.Writer) {
	switch input {
	case "n", "next":
		session.Next()
	case "p", "prev", "previous":
		session.Previous()
	case "f", "finish":
		session.Finish()
	case "q", "quit":
		session.End()
	default:
		result, err := session.SubmitAnswer(input)
		if err != nil {
			color.New(color.FgYellow).Fprintln(out, quizbuilder.UserMessage(err))
			return
		}
		if result.Correct {
			color.New(color.FgGreen).Fprintln(out, "✅ Correct!")
		} else {
			color.New(color.FgRed).Fprintf(out, "❌ Incorrect. The correct answer is %s\n", result.CorrectKey)
		}
		if result.AlreadyAnswered {
			fmt.Fprintln(out, "(already answered, score unchanged)")
		}
		if result.Explanation != "" {
			fmt.Fprintf(out, "💡 Explanation: %s\n", result.Explanation)
		}
	}
}

func printQuestion(out io.Writer, view quizbuilder.View) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("─", 50))
	color.New(color.FgCyan).Fprintf(out, "Question %d/%d\n", view.Number, view.Total)
	fmt.Fprintf(out, "%s\n\n", view.Question)
	for _, c := range view.Choices {
		marker := "  "
		if c.Selected {
			marker = "> "
		}
		fmt.Fprintf(out, "%s%s\n", marker, c.Label)
	}
	fmt.Fprintln(out)
}

func navHint(view quizbuilder.View) string {
	var opts []string
	if view.ShowPrevious {
		opts = append(opts, "[p]revious")
	}
	if view.ShowNext {
		opts = append(opts, "[n]ext")
	}
	if view.ShowFinish {
		opts = append(opts, "[f]inish")
	}
	opts = append(opts, "[q]uit")
	return fmt.Sprintf("Answer key, or %s: ", strings.Join(opts, ", "))
}
