// Command voiceclient asks the voice tutor a question over the websocket API
// and saves the spoken answer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	server    string
	username  string
	password  string
	register  bool
	audioPath string
	text      string
	encoding  string
	rate      int
	chunkSize int
	outDir    string
	timeout   time.Duration
}

func main() {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "voiceclient",
		Short:        "Ask the voice tutor a question and save the spoken answer",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (opts.audioPath == "") == (opts.text == "") {
				return fmt.Errorf("exactly one of --audio or --text is required")
			}
			logger, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, opts.timeout)
			defer cancel()

			return run(ctx, opts, cmd.OutOrStdout(), logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.server, "server", "http://localhost:8080", "server base URL")
	flags.StringVarP(&opts.username, "user", "u", "", "username")
	flags.StringVarP(&opts.password, "password", "p", "", "password")
	flags.BoolVar(&opts.register, "register", false, "register the account before logging in")
	flags.StringVar(&opts.audioPath, "audio", "", "recorded question to send")
	flags.StringVar(&opts.text, "text", "", "typed question to send")
	flags.StringVar(&opts.encoding, "encoding", "", "audio encoding, e.g. LINEAR16 or wav")
	flags.IntVar(&opts.rate, "sample-rate", 0, "audio sample rate in Hz")
	flags.IntVar(&opts.chunkSize, "chunk-size", 32*1024, "bytes per binary frame")
	flags.StringVar(&opts.outDir, "out", "audio_responses", "directory for received answers")
	flags.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "give up after this long")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("password")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
