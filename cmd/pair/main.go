// Command pair is the administrative entry point that redeems a pairing
// code. It takes one positional argument, the code shown by the bot in
// the requesting room.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/bot-gateway-go/internal/config"
	"github.com/openclaw/bot-gateway-go/internal/service"
	"github.com/openclaw/bot-gateway-go/internal/store"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	st, err := store.NewFileStore(cfg.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open data dir: %v\n", err)
		os.Exit(1)
	}

	pairing := service.NewPairingService(st, cfg.DataDir, config.PairingCodeTTL)

	if len(os.Args) < 2 {
		printStatus(pairing)
		os.Exit(1)
	}
	code := os.Args[1]

	if owner, _ := pairing.Owner(); owner != nil {
		fmt.Fprintf(os.Stderr, "already paired with %s (main room %s, since %s)\n",
			owner.UserID, owner.MainRoomID, owner.PairedAt.Format("2006-01-02 15:04"))
		os.Exit(1)
	}

	owner, err := pairing.ApproveAndRegister(code)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pairing failed: %v\n", err)
		os.Exit(1)
	}
	if owner == nil {
		fmt.Fprintln(os.Stderr, "invalid or expired pairing code")
		os.Exit(1)
	}

	fmt.Printf("paired with %s\nmain room: %s\n", owner.UserID, owner.MainRoomID)
}

func printStatus(pairing *service.PairingService) {
	owner, err := pairing.Owner()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read pairing state: %v\n", err)
		return
	}
	if owner != nil {
		fmt.Fprintf(os.Stderr, "paired with %s (main room %s)\n", owner.UserID, owner.MainRoomID)
		return
	}

	pending, err := pairing.GetPendingPairing()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read pairing state: %v\n", err)
		return
	}
	if pending == nil {
		fmt.Fprintln(os.Stderr, "not paired; no pending pairing request")
		fmt.Fprintln(os.Stderr, "message the bot in a room to request a pairing code")
		return
	}

	fmt.Fprintf(os.Stderr, "pending pairing request from %s in %s (created %s)\n",
		pending.RequesterID, pending.RoomID, pending.CreatedAt.Format("15:04:05"))
	fmt.Fprintln(os.Stderr, "usage: pair <code>")
}
