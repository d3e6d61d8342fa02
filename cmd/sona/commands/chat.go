package commands

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lumenkind/sona/pkg/audiosink"
	"github.com/lumenkind/sona/pkg/cli"
	"github.com/lumenkind/sona/pkg/concierge"
	"github.com/lumenkind/sona/pkg/history"
)

var (
	chatText     string
	chatFile     string
	chatSession  string
	chatAudioOut string
	chatMemory   bool
	chatTimeout  time.Duration
)

// chatRequest is the request-file shape accepted by --file.
type chatRequest struct {
	Query    string `json:"query" yaml:"query"`
	Mode     string `json:"mode,omitempty" yaml:"mode,omitempty"`
	Session  string `json:"session,omitempty" yaml:"session,omitempty"`
	AudioOut string `json:"audio_out,omitempty" yaml:"audio_out,omitempty"`
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Converse with a concierge",
	Long: `Start a conversation over a streaming session.

Without --text, chat runs interactively: type a message, watch the answer
stream in, type the next one. Use /stop to abandon an answer mid-stream and
/quit to leave.

With --text, chat sends a single query, waits for the full answer, and
exits. Combine with --audio-out to capture the spoken answer. --file reads
the query (and optional mode, session, and audio_out overrides) from a
YAML or JSON request file, or from stdin with "-".

Examples:
  sona chat
  sona chat --session 4f1f3a2e-... # resume an earlier session
  sona chat --text "summarize my day" --audio-out answer.pcm
  sona chat -f request.yaml`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatText, "text", "", "send one query and exit")
	chatCmd.Flags().StringVarP(&chatFile, "file", "f", "", "request file (YAML or JSON), or - for stdin")
	chatCmd.Flags().StringVar(&chatSession, "session", "", "session id to resume (default: new session)")
	chatCmd.Flags().StringVar(&chatAudioOut, "audio-out", "", "write response audio frames to this file")
	chatCmd.Flags().BoolVar(&chatMemory, "memory", false, "keep history in memory only")
	chatCmd.Flags().DurationVar(&chatTimeout, "timeout", 5*time.Minute, "per-answer wait limit")
}

func runChat(cmd *cobra.Command, args []string) error {
	cfgCtx, err := getContext()
	if err != nil {
		return err
	}

	mode := cfgCtx.Mode
	if chatFile != "" {
		req, err := loadChatRequest(chatFile)
		if err != nil {
			return err
		}
		chatText = req.Query
		if req.Mode != "" {
			mode = req.Mode
		}
		if req.Session != "" {
			chatSession = req.Session
		}
		if req.AudioOut != "" {
			chatAudioOut = req.AudioOut
		}
	}

	store, closeStore, err := openHistory(chatSession, chatMemory)
	if err != nil {
		return err
	}
	defer closeStore()

	player, reportAudio, err := openPlayer(chatAudioOut)
	if err != nil {
		return err
	}

	styles := cli.NewStyles(cli.DefaultTheme)
	turnDone := make(chan error, 4)

	opts := []concierge.Option{
		concierge.WithConciergeName(cfgCtx.ConciergeName),
		concierge.WithUserID(cfgCtx.UserID),
		concierge.WithHistory(store),
		concierge.WithPlayer(player, audiosink.Config{SampleRate: 24000, Channels: 1, Format: "pcm"}),
		concierge.WithHandlers(concierge.Handlers{
			OnTranscription: func(text string) {
				fmt.Print(styles.Assistant.Render(text))
			},
			OnHeaderMessage: func(text string) {
				fmt.Fprintln(os.Stderr, styles.RenderStatus(text))
			},
			OnStreamEnded: func() {
				fmt.Println()
				turnDone <- nil
			},
			OnError: func(err error) {
				if _, ok := err.(*concierge.ServerError); ok {
					cli.PrintWarning("server: %v", err)
				}
			},
			OnReconnectFailed: func(err error) {
				turnDone <- err
			},
			OnStateChange: func(from, to concierge.State) {
				cli.PrintVerbose(verbose, "session %s -> %s", from, to)
			},
		}),
	}
	if mode != "" {
		opts = append(opts, concierge.WithMode(mode))
	}
	if cfgCtx.HistoryDepth > 0 {
		opts = append(opts, concierge.WithHistoryDepth(cfgCtx.HistoryDepth))
	}
	if cfgCtx.MaxReconnects > 0 {
		opts = append(opts, concierge.WithMaxReconnects(cfgCtx.MaxReconnects))
	}
	if cfgCtx.KeepAliveSeconds > 0 {
		opts = append(opts, concierge.WithKeepAlive(time.Duration(cfgCtx.KeepAliveSeconds)*time.Second))
	}
	if cfgCtx.APIKey != "" {
		opts = append(opts, concierge.WithHTTPHeader(http.Header{
			"Authorization": []string{"Bearer " + cfgCtx.APIKey},
		}))
	}

	var client *concierge.Client
	if chatSession != "" {
		client, err = concierge.NewClientWithID(cfgCtx.Endpoint, chatSession, opts...)
	} else {
		client, err = concierge.NewClient(cfgCtx.Endpoint, opts...)
	}
	if err != nil {
		return err
	}
	defer client.Close()

	if chatText != "" {
		if err := askAndWait(client, chatText, turnDone); err != nil {
			return err
		}
		reportAudio()
		return nil
	}

	fmt.Println(styles.RenderTitle("sona", "session "+client.SessionID()))
	fmt.Println(styles.Help.Render("/stop abandons the current answer, /quit exits"))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(styles.RenderPrompt())
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			reportAudio()
			return nil
		case line == "/stop":
			if err := client.Stop(context.Background()); err != nil {
				cli.PrintError("stop: %v", err)
			}
			drainTurns(turnDone)
			continue
		}
		if err := askAndWait(client, line, turnDone); err != nil {
			cli.PrintError("%v", err)
		}
	}
	reportAudio()
	return scanner.Err()
}

// loadChatRequest reads a query request from a file, or stdin for "-".
func loadChatRequest(path string) (*chatRequest, error) {
	var req chatRequest
	var err error
	if path == "-" {
		err = cli.LoadRequestFromStdin(&req)
	} else {
		err = cli.LoadRequest(path, &req)
	}
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("request file must set query")
	}
	return &req, nil
}

// askAndWait sends one query and blocks until the answer finishes streaming.
func askAndWait(client *concierge.Client, text string, turnDone chan error) error {
	drainTurns(turnDone)
	start := time.Now()
	if err := client.Send(context.Background(), text); err != nil {
		return err
	}
	select {
	case err := <-turnDone:
		if err == nil {
			cli.PrintVerbose(verbose, "answer completed in %s", cli.FormatDuration(int(time.Since(start).Milliseconds())))
		}
		return err
	case <-time.After(chatTimeout):
		_ = client.Stop(context.Background())
		return fmt.Errorf("no complete answer within %s", chatTimeout)
	}
}

// drainTurns clears stale completion signals from abandoned turns.
func drainTurns(turnDone chan error) {
	for {
		select {
		case <-turnDone:
		default:
			return
		}
	}
}

// openHistory opens the per-session history store.
func openHistory(sessionID string, memoryOnly bool) (history.Store, func(), error) {
	if memoryOnly {
		store := history.NewMemoryStore()
		return store, func() {}, nil
	}

	paths, err := cli.NewPaths(appName)
	if err != nil {
		return nil, nil, err
	}
	if err := paths.EnsureHistoryDir(); err != nil {
		return nil, nil, err
	}
	name := sessionID
	if name == "" {
		name = "default"
	}
	store, err := history.OpenBadger(history.BadgerOptions{
		Dir: paths.HistoryPath(name),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open history store: %w", err)
	}
	return store, func() {
		if err := store.Close(); err != nil {
			cli.PrintVerbose(verbose, "close history store: %v", err)
		}
	}, nil
}

// openPlayer selects the playback target. With a capture file the frames go
// there; otherwise audio is discarded (this CLI has no speaker path).
func openPlayer(audioOut string) (audiosink.Player, func(), error) {
	if audioOut == "" {
		return audiosink.DiscardPlayer{}, func() {}, nil
	}
	f, err := os.Create(audioOut)
	if err != nil {
		return nil, nil, fmt.Errorf("create audio output: %w", err)
	}
	player := audiosink.NewFilePlayer(f)
	report := func() {
		f.Close()
		cli.PrintInfo("wrote %s of audio to %s", cli.FormatBytes(player.Written()), audioOut)
	}
	return player, report, nil
}
