package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/engine"
)

var display = engine.DefaultConfig()

var (
	windowed     bool
	noVSync      bool
	bgColorStr   string
	textColorStr string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Present one block to a participant",
	Long: `Runs a session: instructions, the trials of block_<session>.csv and a
thank-you screen. Responses are the left and right arrow keys; Escape aborts
and still saves what was recorded. Data go to <data_dir>/<participant>_<date>.tsv.`,
	RunE: runSession,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&display.Participant, "participant", "", "participant id")
	f.StringVar(&display.Session, "session", display.Session, "session number, selects block_<session>.csv")
	f.BoolVar(&display.Dialog, "dialog", false, "ask for participant and session in a dialog")
	f.StringVar(&display.FontFile, "font", "", "TTF font file")
	f.StringVar(&display.DLPDevice, "dlp", "", "DLP-IO8-G device for TTL triggers")
	f.IntVar(&display.DLPBaud, "dlp-baud", display.DLPBaud, "DLP-IO8-G baud rate")
	f.IntVar(&display.ScreenWidth, "width", display.ScreenWidth, "screen width")
	f.IntVar(&display.ScreenHeight, "height", display.ScreenHeight, "screen height")
	f.BoolVar(&windowed, "windowed", false, "run in a window instead of fullscreen")
	f.BoolVar(&noVSync, "no-vsync", false, "disable VSync")
	f.StringVar(&bgColorStr, "bg-color", "128,128,128,255", "background color (R,G,B,A)")
	f.StringVar(&textColorStr, "text-color", "255,255,255,255", "text color (R,G,B,A)")
}

func runSession(cmd *cobra.Command, args []string) error {
	var err error
	if display.BGColor, err = engine.ParseColor(bgColorStr); err != nil {
		return err
	}
	if display.TextColor, err = engine.ParseColor(textColorStr); err != nil {
		return err
	}
	display.Fullscreen = !windowed
	display.VSync = !noVSync
	display.ProjectFile = configPath
	if display.Participant == "" {
		display.Dialog = true
	}

	res, err := engine.Run(cmd.Context(), display, proj, logger)
	if res != nil && res.DataFile != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "\nResults saved to %s\n", res.DataFile)
	}
	if err != nil {
		return err
	}
	if res.Message != "" {
		fmt.Fprintln(cmd.OutOrStdout(), res.Message)
	}
	return nil
}
