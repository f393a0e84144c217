package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"flowshare/internal/config"
	"flowshare/internal/peer"
	"flowshare/internal/protocol"
)

var (
	listenDownloadDir string
	listenAcceptChats bool
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "stay connected to the hub and receive shares",
	Long: `connects to the hub as a fresh anonymous peer and stays online, printing
			presence changes and incoming shares. File shares are downloaded into
			--download-dir as they arrive.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadClient()
		cobra.CheckErr(err)

		log := newClientLogger(cfg.LogLevel)
		client := peer.NewClient(peer.Config{
			ServerURL:      cfg.ServerURL,
			Logger:         log,
			ReconnectDelay: cfg.ReconnectDelay,
		})

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		go func() { _ = client.Run(ctx) }()
		defer client.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-client.Events():
				handleEvent(ctx, client, log, msg)
			}
		}
	},
}

func init() {
	listenCmd.Flags().StringVar(&listenDownloadDir, "download-dir", ".", "directory incoming file shares are saved to")
	listenCmd.Flags().BoolVar(&listenAcceptChats, "accept-chats", false, "automatically accept incoming chat requests")
}

func handleEvent(ctx context.Context, client *peer.Client, log *logrus.Logger, msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.UserListUpdate:
		log.Infof("%d peer(s) online", len(m.Users))
	case *protocol.IncomingShare:
		switch m.ShareData.Kind {
		case protocol.ShareKindText:
			log.Infof("Note from %s: %s", m.FromCharacter, m.ShareData.Content)
		case protocol.ShareKindFile:
			log.Infof("File from %s: %s (%d bytes)", m.FromCharacter, m.ShareData.Filename, m.ShareData.Size)
			path, err := client.DownloadShare(ctx, m.ShareData, listenDownloadDir)
			if err != nil {
				log.Warnf("Download failed: %v", err)
				return
			}
			log.Infof("Saved to %s", path)
		}
	case *protocol.ChatRequest:
		if listenAcceptChats {
			log.Infof("Accepting chat with %s", m.FromCharacter)
			if err := client.AcceptChat(m.FromUserID); err != nil {
				log.Warnf("Accept failed: %v", err)
			}
			return
		}
		log.Infof("%s wants to chat; declining (run with --accept-chats to accept)", m.FromCharacter)
		_ = client.DeclineChat(m.FromUserID)
	case *protocol.PrivateMessage:
		log.Infof("[chat] %s: %s", m.FromUserID, m.Content)
	}
}
