package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"frequency/config"
	"frequency/logger"
	"frequency/voice"
)

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List ElevenLabs voices available to the account",
	RunE:  runVoices,
}

func runVoices(cmd *cobra.Command, args []string) error {
	log, err := logger.New(config.GetLogMode())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := voice.New(voice.Config{APIKey: config.GetElevenLabsAPIKey()}, log, nil)
	voices, err := client.ListVoices(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VOICE ID\tNAME\tCATEGORY")
	for _, v := range voices {
		fmt.Fprintf(w, "%s\t%s\t%s\n", v.VoiceID, v.Name, v.Category)
	}
	return w.Flush()
}
