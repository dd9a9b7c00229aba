// eduvia-chat is a terminal client for the Eduvia chat server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	flag "github.com/spf13/pflag"

	"eduvia/internal/client"
	"eduvia/internal/models"
)

type options struct {
	server   string
	mode     string
	userID   string
	window   int
	markdown bool
	debug    bool
}

func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("eduvia-chat", flag.ContinueOnError)
	var opts options
	fs.StringVarP(&opts.server, "server", "s", envOr("EDUVIA_SERVER", "http://localhost:8090"), "chat server base URL")
	fs.StringVarP(&opts.mode, "mode", "m", "normal", "answer style: normal or academic")
	fs.StringVar(&opts.userID, "user", os.Getenv("EDUVIA_USER"), "profile id credited with coins")
	fs.IntVar(&opts.window, "history", client.DefaultHistoryWindow, "number of prior turns sent with each message")
	fs.BoolVar(&opts.markdown, "markdown", false, "render finished answers as markdown")
	fs.BoolVar(&opts.debug, "debug", false, "log requests to stderr")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if _, ok := models.ParseMode(opts.mode); !ok {
		return options{}, fmt.Errorf("unknown mode %q", opts.mode)
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.debug {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	var md *markdownRenderer
	if opts.markdown {
		if md, err = newMarkdownRenderer(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	tr := client.NewTranscript()
	out := newPrinter(os.Stdout, md)
	tr.OnChange(out.onChange)

	c := client.New(opts.server, tr,
		client.WithHistoryWindow(opts.window),
		client.WithLogger(logger),
		client.WithUserID(opts.userID),
	)
	mode, _ := models.ParseMode(opts.mode)
	c.SetMode(mode)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt(mode),
		HistoryFile:     historyPath(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing readline: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Println("Eduvia - your thinking environment")
	fmt.Printf("Server: %s | Mode: %s\n", opts.server, mode)
	fmt.Println("Type /help for commands, /quit to exit.")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt || err == io.EOF {
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := runCommand(line, c, rl); quit {
				return
			}
			continue
		}
		if _, err := c.Send(ctx, line); err != nil {
			logger.Debug("send failed", slog.Any("error", err))
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func runCommand(line string, c *client.Client, rl *readline.Instance) bool {
	switch strings.ToLower(strings.Fields(line)[0]) {
	case "/quit", "/exit":
		return true
	case "/academic":
		c.SetMode(models.ModeAcademic)
		rl.SetPrompt(prompt(models.ModeAcademic))
		fmt.Println("Academic mode on.")
	case "/normal":
		c.SetMode(models.ModeNormal)
		rl.SetPrompt(prompt(models.ModeNormal))
		fmt.Println("Normal mode on.")
	case "/history":
		for _, e := range c.Transcript().Entries() {
			fmt.Printf("[%s] %s\n", models.WireRole(e.Role), e.Content)
		}
	case "/help":
		fmt.Println("/academic  formal, structured answers")
		fmt.Println("/normal    friendly answers")
		fmt.Println("/history   show the conversation")
		fmt.Println("/quit      exit")
	default:
		fmt.Printf("Unknown command %s. Type /help.\n", line)
	}
	return false
}

func prompt(mode models.Mode) string {
	if mode == models.ModeAcademic {
		return "eduvia[academic]> "
	}
	return "eduvia> "
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	dir := filepath.Join(home, ".eduvia")
	_ = os.MkdirAll(dir, 0o755)
	return filepath.Join(dir, "history")
}
