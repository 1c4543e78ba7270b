// Copyright (C) 2026 Mentora Labs (dev@mentora.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"time"

	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	gatewayURL    string
	attachPaths   []string
	learningStyle string
	exampleDomain string
	difficulty    string
	idleTimeout   time.Duration
	showDeltas    bool

	rootCmd = &cobra.Command{
		Use:   "mentora",
		Short: "A cli for the Mentora AI tutoring gateway",
		Long: `Mentora is a personalized AI tutor. This cli talks to a running
				gateway: one-shot questions, interactive chat sessions, and
				file attachments (images and PDFs).`,
	}

	chatCmd = &cobra.Command{
		Use:   "chat [question]",
		Short: "Chat with the tutor (interactive when no question is given)",
		Run:   runChatCommand, // Defined in cmd_chat.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&gatewayURL, "gateway",
		"http://localhost:8080", "Base URL of the Mentora gateway")

	chatCmd.Flags().StringSliceVarP(&attachPaths, "file", "f", nil,
		"Attach a file (image or PDF); repeatable")
	chatCmd.Flags().StringVar(&learningStyle, "style", "",
		"Preferred learning style (e.g. visual, verbal)")
	chatCmd.Flags().StringVar(&exampleDomain, "domain", "",
		"Domain to draw examples from (e.g. soccer, music)")
	chatCmd.Flags().StringVar(&difficulty, "difficulty", "",
		"Difficulty tier: easy, medium or hard")
	chatCmd.Flags().DurationVar(&idleTimeout, "idle-timeout", 0,
		"Fail the stream if the tutor goes silent for this long (0 disables)")
	chatCmd.Flags().BoolVar(&showDeltas, "stream", true,
		"Print tokens as they arrive (forced off when stdout is not a terminal)")

	rootCmd.AddCommand(chatCmd)
}
