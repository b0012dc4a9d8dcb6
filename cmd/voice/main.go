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
	"time"

	"github.com/alecthomas/kong"
	"github.com/alkime/voicepost/internal/app"
	"github.com/alkime/voicepost/internal/audio"
	"github.com/alkime/voicepost/internal/config"
	"github.com/alkime/voicepost/internal/domain"
	"github.com/alkime/voicepost/internal/keyring"
	"github.com/alkime/voicepost/internal/logger"
	"github.com/alkime/voicepost/internal/pipeline"
	"github.com/alkime/voicepost/internal/store"
	"github.com/alkime/voicepost/internal/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

// CLI defines the voice command structure.
type CLI struct {
	Debug   bool   `flag:"" help:"Log at debug level"`
	LogFile string `flag:"" default:"voice.log" help:"Where log lines go while the TUI owns the terminal"`
	Owner   string `flag:"" env:"VOICEPOST_OWNER" help:"Owner id recordings are stored under (default: $USER)"`

	// Default TUI command (runs when no subcommand given)
	Record   RecordCmd   `cmd:"" default:"withargs" help:"Record a memo and turn it into a post"`
	Process  ProcessCmd  `cmd:"" help:"Run an existing audio file through the pipeline"`
	Generate GenerateCmd `cmd:"" help:"Generate another post from a stored recording"`
	Devices  DevicesCmd  `cmd:"" help:"List available audio devices"`
	Config   ConfigCmd   `cmd:"" help:"Manage configuration"`
}

// Globals are the parsed top-level flags handed to every command.
type Globals struct {
	Debug   bool
	LogFile string
	Owner   string
}

func (g Globals) owner() string {
	if g.Owner != "" {
		return g.Owner
	}

	if u := os.Getenv("USER"); u != "" {
		return u
	}

	return "local"
}

// openLogger sends logs to the log file, or stderr when it cannot be opened.
func (g Globals) openLogger() (*slog.Logger, func()) {
	//nolint:gosec // log file path is user-provided by design
	f, err := os.OpenFile(g.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return logger.SetupCLILogger(os.Stderr, g.Debug), func() {}
	}

	return logger.SetupCLILogger(f, g.Debug), func() { _ = f.Close() }
}

// setup loads configuration and builds the pipeline.
func (g Globals) setup(ctx context.Context, log *slog.Logger) (*app.App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}

	return a, nil
}

// RecordCmd is the default command that runs the TUI.
type RecordCmd struct {
	Title       string        `flag:"" help:"Recording title (default: date and time)"`
	Platform    string        `flag:"" default:"linkedin" enum:"linkedin,twitter,facebook,instagram" help:"Target platform"`
	MaxDuration time.Duration `flag:"" default:"30m" help:"Stop recording automatically after this long (0 for no limit)"`
}

// Run executes the record command.
func (c *RecordCmd) Run(g Globals) error {
	log, closeLog := g.openLogger()
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, err := g.setup(ctx, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	recorder := audio.NewRecorder(audio.NewDevice(audio.DefaultDeviceConfig()), audio.RecorderConfig{})
	defer recorder.Close()

	if err := recorder.Start(ctx); err != nil {
		if errors.Is(err, audio.ErrPermissionDenied) {
			return fmt.Errorf("%w: allow terminal access to the microphone and retry", err)
		}

		return err
	}

	owner := g.owner()

	cfg := tui.Config{
		Cancel:   cancel,
		Controls: recordingControls(ctx, recorder, c.MaxDuration),
		Start: func(ctx context.Context, buf *domain.AudioBuffer) (<-chan pipeline.Event, error) {
			events := make(chan pipeline.Event, 16)

			_, err := deps.Pipeline.Start(ctx, pipeline.Draft{
				OwnerID:  owner,
				Title:    c.Title,
				Duration: buf.Duration,
				Audio:    buf,
				Platform: domain.Platform(c.Platform),
			}, events)

			return events, err
		},
		Load: func(ctx context.Context, id uuid.UUID) (*domain.Post, error) {
			return store.GetOwnedPost(ctx, deps.Store, owner, id)
		},
	}

	var outcome tui.Outcome

	p := tea.NewProgram(tui.New(ctx, cfg, &outcome))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to start TUI: %w", err)
	}

	switch {
	case outcome.Cancelled:
		fmt.Println("recording discarded")
	case outcome.Post != nil && outcome.Post.Err != nil:
		return outcome.Post.Err
	case outcome.Post != nil:
		fmt.Printf("\n%s\n", outcome.Post.Post.Content)
	}

	return nil
}

// ProcessCmd runs an audio file through upload, transcription and
// generation without the TUI.
type ProcessCmd struct {
	File     string `arg:"" required:"" type:"existingfile" help:"Audio file (mp3, wav, m4a, webm)"`
	Title    string `flag:"" help:"Recording title (default: file name)"`
	Platform string `flag:"" default:"linkedin" enum:"linkedin,twitter,facebook,instagram" help:"Target platform"`
	Duration int    `flag:"" default:"0" help:"Duration in seconds, if known"`
}

// Run executes the process command.
func (c *ProcessCmd) Run(g Globals) error {
	log := logger.SetupCLILogger(os.Stderr, g.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	data, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("failed to read audio: %w", err)
	}

	deps, err := g.setup(ctx, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	title := c.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(c.File), filepath.Ext(c.File))
	}

	draft := pipeline.Draft{
		OwnerID:  g.owner(),
		Title:    title,
		Duration: c.Duration,
		Platform: domain.Platform(c.Platform),
		Audio: &domain.AudioBuffer{
			Data:        data,
			ContentType: contentTypeFor(c.File),
			FileName:    filepath.Base(c.File),
			Duration:    c.Duration,
		},
	}

	post, err := processDraft(ctx, deps.Pipeline, deps.Store, draft, os.Stderr)
	if err != nil {
		return err
	}

	fmt.Println(post.Content)

	return nil
}

// processDraft runs draft to completion, reporting progress to w, and loads
// the resulting post. Progress is only followed once the run has started.
func processDraft(
	ctx context.Context,
	orch *pipeline.Orchestrator,
	posts store.Posts,
	draft pipeline.Draft,
	w io.Writer,
) (*domain.Post, error) {
	events := make(chan pipeline.Event, 16)

	run, err := orch.Start(ctx, draft, events)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})

	go func() {
		defer close(done)
		printEvents(w, events)
	}()

	res, err := run.Wait(context.Background())

	// The run has closed its broadcaster, so nothing sends on events now.
	close(events)
	<-done

	if err != nil {
		return nil, err
	}

	post, err := store.GetOwnedPost(ctx, posts, draft.OwnerID, res.PostID)
	if err != nil {
		return nil, fmt.Errorf("failed to load post: %w", err)
	}

	return post, nil
}

// printEvents writes one line per event until the terminal event or until
// events is closed.
func printEvents(w io.Writer, events <-chan pipeline.Event) {
	for ev := range events {
		switch ev.Kind {
		case pipeline.EventProgress:
			fmt.Fprintf(w, "[%3d%%] %s\n", ev.Progress, ev.Stage)
		case pipeline.EventDone:
			fmt.Fprintf(w, "[%3d%%] done\n", ev.Progress)
		case pipeline.EventFailed:
			fmt.Fprintf(w, "failed: %s\n", ev.Error)
		}

		if ev.Terminal() {
			return
		}
	}
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	case ".webm":
		return "audio/webm"
	default:
		return "audio/mpeg"
	}
}

// GenerateCmd regenerates a post from a recording's stored transcript.
type GenerateCmd struct {
	RecordingID string `arg:"" required:"" help:"Recording id"`
	Platform    string `flag:"" default:"linkedin" enum:"linkedin,twitter,facebook,instagram" help:"Target platform"`
}

// Run executes the generate command.
func (c *GenerateCmd) Run(g Globals) error {
	log := logger.SetupCLILogger(os.Stderr, g.Debug)

	id, err := uuid.Parse(c.RecordingID)
	if err != nil {
		return fmt.Errorf("invalid recording id: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	deps, err := g.setup(ctx, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	res, err := deps.Generator.Generate(ctx, id, g.owner(), domain.Platform(c.Platform))
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "post %s (%s)\n", res.PostID, res.Outcome)
	fmt.Println(res.Post.Content)

	return nil
}

// DevicesCmd lists available audio devices.
type DevicesCmd struct{}

// Run executes the devices command.
func (dcmd *DevicesCmd) Run() error {
	adev := audio.NewDevice(nil)

	devices, err := adev.EnumerateDevices(context.Background())
	if err != nil {
		return fmt.Errorf("failed to enumerate audio devices: %w", err)
	}

	for _, dev := range devices {
		marker := " "
		if dev.IsDefault {
			marker = "*"
		}

		fmt.Printf("%s %s (%d formats)\n", marker, dev.Name, dev.FormatCount)
	}

	return nil
}

// ConfigCmd groups configuration-related subcommands.
type ConfigCmd struct {
	SetKey    SetKeyCmd    `cmd:"" help:"Store an API key in system keychain"`
	DeleteKey DeleteKeyCmd `cmd:"" name:"delete-key" help:"Remove an API key from system keychain"`
	ListKeys  ListKeysCmd  `cmd:"" name:"list-keys" help:"Show which API keys are configured"`
}

// SetKeyCmd stores an API key in the system keychain.
type SetKeyCmd struct {
	Service string `arg:"" enum:"assemblyai,openai,anthropic,aws-secret" help:"Service name"`
	Secret  string `arg:"" help:"API key value"`
}

// Run executes the set-key command.
func (c *SetKeyCmd) Run() error {
	if strings.TrimSpace(c.Secret) == "" {
		return errors.New("API key cannot be empty")
	}

	apiKey, err := keyring.APIKeyFromServiceName(c.Service)
	if err != nil {
		return fmt.Errorf("invalid service: %w", err)
	}

	if err := keyring.Set(apiKey, c.Secret); err != nil {
		return fmt.Errorf("failed to store API key: %w", err)
	}

	fmt.Printf("%s API key stored in keychain\n", c.Service)

	return nil
}

// DeleteKeyCmd removes an API key from the system keychain.
type DeleteKeyCmd struct {
	Service string `arg:"" enum:"assemblyai,openai,anthropic,aws-secret" help:"Service name"`
}

// Run executes the delete-key command.
func (c *DeleteKeyCmd) Run() error {
	apiKey, err := keyring.APIKeyFromServiceName(c.Service)
	if err != nil {
		return fmt.Errorf("invalid service: %w", err)
	}

	if err := keyring.Delete(apiKey); err != nil {
		return fmt.Errorf("failed to delete API key: %w", err)
	}

	fmt.Printf("%s API key removed from keychain\n", c.Service)

	return nil
}

// ListKeysCmd shows which API keys are configured.
type ListKeysCmd struct{}

// Run executes the list-keys command.
//
//nolint:unparam // error return required by Kong interface
func (c *ListKeysCmd) Run() error {
	allSet := true

	for _, apiKey := range keyring.AllAPIKeys() {
		if keyring.IsSet(apiKey) {
			fmt.Printf("%s: configured\n", apiKey.DisplayName())
		} else {
			fmt.Printf("%s: not set\n", apiKey.DisplayName())
			allSet = false
		}
	}

	if !allSet {
		fmt.Println("\nRun 'voice config set-key <service> <key>' to configure.")
	}

	return nil
}

func main() {
	cli := &CLI{} //nolint:exhaustruct // Kong fills in command fields
	ctx := kong.Parse(cli,
		kong.Name("voice"),
		kong.Description("Record a voice memo and turn it into a social post."),
	)

	err := ctx.Run(Globals{Debug: cli.Debug, LogFile: cli.LogFile, Owner: cli.Owner})
	ctx.FatalIfErrorf(err)
	os.Exit(0)
}
