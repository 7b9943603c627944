package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"frequency/morse"
)

var morseCmd = &cobra.Command{
	Use:   "morse",
	Short: "Author Morse signal content",
}

var morseEncodeCmd = &cobra.Command{
	Use:   "encode TEXT...",
	Short: "Encode text as dots and dashes",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), morse.Encode(strings.Join(args, " ")))
	},
}

var morseDecodeCmd = &cobra.Command{
	Use:   "decode CODE",
	Short: "Decode dots and dashes back to text",
	Long:  "Decode Morse. Letters are separated by one space and words by three. Put -- before codes that start with a dash.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), morse.Decode(strings.Join(args, " ")))
	},
}

var morseTimingsCmd = &cobra.Command{
	Use:   "timings TEXT...",
	Short: "Print playback timings in milliseconds (negative is silence)",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		text := strings.Join(args, " ")
		timings := morse.Timings(morse.Encode(text))
		parts := make([]string, len(timings))
		for i, t := range timings {
			parts[i] = fmt.Sprint(t)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, strings.Join(parts, " "))
		fmt.Fprintf(out, "total %d ms\n", morse.TotalDuration(text))
	},
}

func init() {
	morseCmd.AddCommand(morseEncodeCmd, morseDecodeCmd, morseTimingsCmd)
}
