package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"flowshare/internal/config"
	"flowshare/internal/peer"
	"flowshare/internal/protocol"
)

var (
	sendText  string
	sendTitle string
	sendTo    []string
	sendWait  time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send [path/to/file]",
	Short: "share a file or a text note with peers on the hub",
	Long: `connects to the hub as a fresh anonymous peer, uploads the given file
			(or the note passed with --text) and fans it out. Without --to the share
			goes to every peer currently online.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 && sendText == "" {
			cobra.CheckErr(fmt.Errorf("nothing to share: pass a file path or --text"))
		}

		cfg, err := config.LoadClient()
		cobra.CheckErr(err)

		log := newClientLogger(cfg.LogLevel)
		client := peer.NewClient(peer.Config{
			ServerURL:      cfg.ServerURL,
			Logger:         log,
			ReconnectDelay: cfg.ReconnectDelay,
		})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = client.Run(ctx) }()
		defer client.Close()

		waitFor(log, "identity", sendWait, func() bool { return client.Character() != "" })

		recipients := sendTo
		if len(recipients) == 0 {
			waitFor(log, "peers", sendWait, func() bool { return len(client.Users()) > 0 })
			for _, u := range client.Users() {
				recipients = append(recipients, u.UserID)
			}
		}

		var data protocol.ShareData
		if len(args) == 1 {
			data, err = client.UploadFile(ctx, args[0])
		} else {
			data, err = client.CreateTextShare(ctx, sendTitle, sendText)
		}
		cobra.CheckErr(err)

		cobra.CheckErr(client.Share(recipients, data))

		// The hub answers every fan-out with exactly one outcome message.
		deadline := time.After(sendWait)
		for {
			select {
			case msg := <-client.Events():
				switch m := msg.(type) {
				case *protocol.ShareSuccess:
					log.Info(m.Message)
					return
				case *protocol.ShareFailed:
					log.Fatal(m.Message)
					return
				}
			case <-deadline:
				log.Fatal("Timed out waiting for the share outcome")
				return
			}
		}
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendText, "text", "", "share a text note instead of a file")
	sendCmd.Flags().StringVar(&sendTitle, "title", "", "title for a text note")
	sendCmd.Flags().StringSliceVar(&sendTo, "to", nil, "peer ids to share with (default: everyone online)")
	sendCmd.Flags().DurationVar(&sendWait, "wait", 10*time.Second, "how long to wait for peers and for the outcome")
}

func newClientLogger(level string) *logrus.Logger {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(lvl)
	}
	return log
}

func waitFor(log *logrus.Logger, what string, timeout time.Duration, ready func() bool) {
	deadline := time.Now().Add(timeout)
	for !ready() {
		if time.Now().After(deadline) {
			log.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(50 * time.Millisecond)
	}
}
