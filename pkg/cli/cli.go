package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime/debug"
	"strings"

	"github.com/peterbourgon/ff/ffyaml"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/sunomix/sunomix"
	"github.com/sunomix/sunomix/pkg/cmd/web"
	"github.com/sunomix/sunomix/pkg/lyrics"
	"github.com/sunomix/sunomix/pkg/minimax"
	"github.com/sunomix/sunomix/pkg/suno"
)

func New(version, commit, date string) *ffcli.Command {
	fs := flag.NewFlagSet("sunomix", flag.ExitOnError)

	return &ffcli.Command{
		ShortUsage: "sunomix [flags] <subcommand>",
		FlagSet:    fs,
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
		Subcommands: []*ffcli.Command{
			newVersionCommand(version, commit, date),
			newServeCommand(),
			newDownloadCommand(),
			newPolishCommand(),
			newGenerateCommand(),
			newSeparateCommand(),
		},
	}
}

func newVersionCommand(version, commit, date string) *ffcli.Command {
	return &ffcli.Command{
		Name:       "version",
		ShortUsage: "sunomix version",
		ShortHelp:  "print version",
		Exec: func(ctx context.Context, args []string) error {
			v := version
			if v == "" {
				if buildInfo, ok := debug.ReadBuildInfo(); ok {
					v = buildInfo.Main.Version
				}
			}
			if v == "" {
				v = "dev"
			}
			versionFields := []string{v}
			if commit != "" {
				versionFields = append(versionFields, commit)
			}
			if date != "" {
				versionFields = append(versionFields, date)
			}
			fmt.Println(strings.Join(versionFields, " "))
			return nil
		},
	}
}

// commonFlags registers the flags shared by every pipeline command.
func commonFlags(fs *flag.FlagSet, cfg *sunomix.Config) {
	_ = fs.String("config", "", "config file (optional)")

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.Proxy, "proxy", "", "proxy to use")
	fs.BoolVar(&cfg.Impersonate, "impersonate", false, "download with a browser tls fingerprint")

	fs.StringVar(&cfg.Output, "output", "generated", "folder for generated songs")
	fs.StringVar(&cfg.Downloads, "downloads", "downloads", "folder for downloaded reference songs")

	fs.StringVar(&cfg.MinimaxKey, "minimax-key", "", "minimax api key (defaults to MINIMAX_API_KEY)")
	fs.StringVar(&cfg.MinimaxGroup, "minimax-group", "", "minimax group id (defaults to MINIMAX_GROUP_ID)")
	fs.StringVar(&cfg.MinimaxURL, "minimax-url", minimax.DefaultBaseURL, "minimax api base url")
	fs.StringVar(&cfg.ChatModel, "chat-model", lyrics.DefaultModel, "chat model used to polish lyrics")
	fs.StringVar(&cfg.MusicModel, "music-model", minimax.DefaultMusicModel, "music generation model")

	fs.DurationVar(&cfg.Timeout, "timeout", minimax.DefaultTimeout, "timeout of each minimax attempt")
	fs.DurationVar(&cfg.DownloadTimeout, "download-timeout", suno.DefaultTimeout, "timeout of each download attempt")
	fs.IntVar(&cfg.Retries, "retries", 3, "total attempts of each upstream call")
	fs.DurationVar(&cfg.RetryWait, "retry-wait", 0, "wait before the first retry, doubled on each retry")
	fs.BoolVar(&cfg.RetryTransient, "retry-transient", false, "also retry 429 and 5xx responses")

	fs.StringVar(&cfg.CDN, "cdn", suno.DefaultCDN, "suno cdn base url")
	fs.BoolVar(&cfg.Resolve, "resolve", false, "resolve share links through the share page")
}

func options() []ff.Option {
	return []ff.Option{
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ffyaml.Parser),
		ff.WithEnvVarPrefix("SUNOMIX"),
	}
}

func newServeCommand() *ffcli.Command {
	cmd := "serve"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)

	cfg := &sunomix.Config{}
	commonFlags(fs, cfg)
	fs.StringVar(&cfg.Addr, "addr", ":5000", "address to listen on")
	fs.DurationVar(&cfg.ServerTimeout, "server-timeout", web.DefaultTimeout, "timeout of each http request")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("sunomix %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  fmt.Sprintf("sunomix %s action", cmd),
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return sunomix.Serve(ctx, cfg)
		},
	}
}

func newDownloadCommand() *ffcli.Command {
	cmd := "download"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)

	cfg := &sunomix.Config{}
	commonFlags(fs, cfg)
	var shareURL string
	fs.StringVar(&shareURL, "url", "", "suno share link")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("sunomix %s [flags] <url>", cmd),
		Options:    options(),
		ShortHelp:  fmt.Sprintf("sunomix %s action", cmd),
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			u, err := firstOf(shareURL, args, "url")
			if err != nil {
				return err
			}
			return sunomix.Download(ctx, cfg, u)
		},
	}
}

func newPolishCommand() *ffcli.Command {
	cmd := "polish"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)

	cfg := &sunomix.Config{}
	commonFlags(fs, cfg)
	var text, file string
	fs.StringVar(&text, "lyrics", "", "lyrics to polish")
	fs.StringVar(&file, "lyrics-file", "", "file with the lyrics to polish")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("sunomix %s [flags]", cmd),
		Options:    options(),
		ShortHelp:  fmt.Sprintf("sunomix %s action", cmd),
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			l, err := readLyrics(text, file, true)
			if err != nil {
				return err
			}
			return sunomix.Polish(ctx, cfg, l)
		},
	}
}

func newGenerateCommand() *ffcli.Command {
	cmd := "generate"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)

	cfg := &sunomix.Config{}
	commonFlags(fs, cfg)
	var shareURL, text, file string
	fs.StringVar(&shareURL, "url", "", "suno share link used as reference")
	fs.StringVar(&text, "lyrics", "", "lyrics of the new song (optional)")
	fs.StringVar(&file, "lyrics-file", "", "file with the lyrics of the new song")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("sunomix %s [flags] <url>", cmd),
		Options:    options(),
		ShortHelp:  fmt.Sprintf("sunomix %s action", cmd),
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			u, err := firstOf(shareURL, args, "url")
			if err != nil {
				return err
			}
			l, err := readLyrics(text, file, false)
			if err != nil {
				return err
			}
			return sunomix.Generate(ctx, cfg, u, l)
		},
	}
}

func newSeparateCommand() *ffcli.Command {
	cmd := "separate"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)

	cfg := &sunomix.Config{}
	commonFlags(fs, cfg)
	var fileID string
	fs.StringVar(&fileID, "file-id", "", "id of a file uploaded to minimax")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("sunomix %s [flags] <file-id>", cmd),
		Options:    options(),
		ShortHelp:  fmt.Sprintf("sunomix %s action", cmd),
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			id, err := firstOf(fileID, args, "file-id")
			if err != nil {
				return err
			}
			return sunomix.Separate(ctx, cfg, id)
		},
	}
}

func firstOf(value string, args []string, name string) (string, error) {
	if value != "" {
		return value, nil
	}
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	return "", fmt.Errorf("missing %s", name)
}

// readLyrics returns the lyrics given by flag or file. Optional lyrics may be
// empty.
func readLyrics(text, file string, required bool) (string, error) {
	if text != "" && file != "" {
		return "", errors.New("lyrics and lyrics-file can't be used together")
	}
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("couldn't read lyrics file: %w", err)
		}
		text = string(b)
	}
	if strings.TrimSpace(text) == "" {
		if !required {
			return "", nil
		}
		return "", errors.New("missing lyrics")
	}
	return text, nil
}
