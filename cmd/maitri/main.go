package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	cli "github.com/spf13/pflag"

	"maitri/internal/bootstrap"
	"maitri/internal/domain"
)

const usage = `usage: maitri [flags] <command> [args]

commands:
  talk              record questions and hear replies (default)
  schemes           list every known scheme
  scheme <id>       show one scheme in full
  transcribe <wav>  transcribe a recording
  say <text>        synthesize text and print the cached audio path

flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags := cli.NewFlagSet("maitri", cli.ContinueOnError)
	flags.SetOutput(stderr)
	envFile := flags.StringP("env", "e", "", "Env file path (default ./.env)")
	api := flags.StringP("api", "a", "", "Scheme service base URL")
	socks := flags.StringP("proxy", "p", "", "SOCKS5 proxy address")
	logLevel := flags.StringP("log", "l", "", "Log level (debug, info, warn, error)")
	flags.Usage = func() {
		fmt.Fprint(stderr, usage)
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, cli.ErrHelp) {
			return 0
		}
		return 2
	}

	overrides := map[string]string{
		"MAITRI_ENV_FILE":    *envFile,
		"MAITRI_API_BASE":    *api,
		"MAITRI_SOCKS_PROXY": *socks,
		"MAITRI_LOG_LEVEL":   *logLevel,
	}
	for key, value := range overrides {
		if value != "" {
			_ = os.Setenv(key, value)
		}
	}

	command, rest := "talk", []string(nil)
	if positional := flags.Args(); len(positional) > 0 {
		command, rest = positional[0], positional[1:]
	}

	console := newConsole(stdout)
	services, err := bootstrap.Build(console)
	if err != nil {
		fmt.Fprintf(stderr, "maitri: %v\n", err)
		return 1
	}
	defer services.Controller.Close()

	client := services.Client
	switch command {
	case "talk":
		err = talk(ctx, services.Controller, stdin, console)
	case "schemes":
		schemes, listErr := client.ListSchemes(ctx)
		if listErr == nil {
			console.schemes(schemes, false)
		}
		err = listErr
	case "scheme":
		if len(rest) != 1 {
			fmt.Fprintln(stderr, "usage: maitri scheme <id>")
			return 2
		}
		scheme, getErr := client.GetScheme(ctx, rest[0])
		if getErr == nil {
			console.schemes([]domain.SchemeSummary{scheme}, true)
		}
		err = getErr
	case "transcribe":
		if len(rest) != 1 {
			fmt.Fprintln(stderr, "usage: maitri transcribe <file.wav>")
			return 2
		}
		text, sttErr := client.SpeechToText(ctx, rest[0])
		if sttErr == nil {
			console.printf("%s\n", text)
		}
		err = sttErr
	case "say":
		text := strings.TrimSpace(strings.Join(rest, " "))
		if text == "" {
			fmt.Fprintln(stderr, "usage: maitri say <text>")
			return 2
		}
		path, ttsErr := client.TextToSpeech(ctx, text)
		if ttsErr == nil {
			console.printf("%s\n", path)
		}
		err = ttsErr
	default:
		fmt.Fprintf(stderr, "maitri: unknown command %q\n", command)
		flags.Usage()
		return 2
	}

	if err != nil {
		services.Logger.Debug("command failed", "command", command, "err", err)
		fmt.Fprintf(stderr, "maitri: %v\n", err)
		return 1
	}
	return 0
}

// controller is the part of the conversation controller the talk loop drives.
type controller interface {
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) (domain.ConversationTurn, error)
	CancelRecording() error
	PlayReply(ctx context.Context) error
	Status() domain.Status
}

func talk(ctx context.Context, c controller, in io.Reader, console *console) error {
	console.printf("%s\n", domain.ReasonMessage(domain.TurnReasonMicCold))
	console.printf("Enter: start/stop recording   r: replay reply   c: cancel   q: quit\n")

	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()

	for {
		var line string
		select {
		case <-ctx.Done():
			return nil
		case next, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(next)
		}

		var err error
		switch strings.ToLower(line) {
		case "q", "quit", "exit":
			return nil
		case "r", "replay":
			err = c.PlayReply(ctx)
		case "c", "cancel":
			err = c.CancelRecording()
		case "":
			if c.Status().State == domain.TurnStatusRecording {
				var turn domain.ConversationTurn
				turn, err = c.StopRecording(ctx)
				console.turn(turn)
			} else {
				err = c.StartRecording(ctx)
			}
		default:
			console.printf("unknown input %q\n", line)
			continue
		}
		if err != nil {
			console.printf("! %s\n", domain.ErrorMessage(domain.CodeOf(err), err.Error()))
		}
	}
}
