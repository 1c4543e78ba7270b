// Copyright (C) 2026 Mentora Labs (dev@mentora.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/mentora-ai/mentora/pkg/attach"
	"github.com/mentora-ai/mentora/pkg/streamclient"
)

func runChatCommand(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	opts := []streamclient.Option{streamclient.WithBaseURL(gatewayURL)}
	if idleTimeout > 0 {
		opts = append(opts, streamclient.WithIdleTimeout(idleTimeout))
	}
	client := streamclient.New(opts...)

	files, err := loadAttachments(ctx)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	prefs := buildPreferences()

	if len(args) > 0 {
		question := strings.Join(args, " ")
		history := []streamclient.Message{{Role: "user", Content: question}}
		if _, err := askOnce(ctx, client, history, files, prefs); err != nil {
			log.Fatalf("Error: %v", err)
		}
		return
	}

	runInteractive(ctx, client, files, prefs)
}

// runInteractive loops over stdin turns, carrying the conversation
// history forward. Attachments ride on the first turn only.
func runInteractive(ctx context.Context, client *streamclient.Client,
	files []attach.File, prefs *streamclient.Preferences) {

	fmt.Println("Chatting with Mentora. Type 'exit' or press Ctrl+C to quit.")
	var history []streamclient.Message

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nyou> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}

		history = append(history, streamclient.Message{Role: "user", Content: line})
		answer, err := askOnce(ctx, client, history, files, prefs)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			// Drop the failed turn so a retry does not double it.
			history = history[:len(history)-1]
			continue
		}
		history = append(history, streamclient.Message{Role: "assistant", Content: answer})
		files = nil
	}
}

// askOnce streams one answer, printing deltas live on a terminal and
// buffered otherwise, and reports the confidence tier.
func askOnce(ctx context.Context, client *streamclient.Client,
	history []streamclient.Message, files []attach.File,
	prefs *streamclient.Preferences) (string, error) {

	req := streamclient.Request{
		Messages:        history,
		Files:           files,
		UserPreferences: prefs,
	}

	events, err := client.Stream(ctx, req)
	if err != nil {
		return "", err
	}

	live := showDeltas && isatty.IsTerminal(os.Stdout.Fd())
	var spin *spinner
	if live {
		spin = newSpinner("thinking...")
		spin.Start()
		defer spin.Stop()
	}
	printed := 0
	for ev := range events {
		if spin != nil {
			spin.Stop()
		}
		switch e := ev.(type) {
		case streamclient.Delta:
			if live {
				// Deltas are cumulative; print only the new suffix.
				fmt.Print(e.Text[printed:])
				printed = len(e.Text)
			}
		case streamclient.Done:
			if live {
				fmt.Print(e.Text[printed:])
				fmt.Println()
			} else {
				fmt.Println(e.Text)
			}
			fmt.Printf("[confidence: %s]\n", e.Confidence)
			return e.Text, nil
		case streamclient.Failed:
			if live && printed > 0 {
				fmt.Println()
			}
			return "", e.Err
		}
	}
	// Channel closed without a terminal event: the stream was abandoned.
	return "", ctx.Err()
}

// loadAttachments converts --file paths into wire attachments. PDFs are
// text-extracted; everything else is base64-inlined.
func loadAttachments(ctx context.Context) ([]attach.File, error) {
	var files []attach.File
	for _, path := range attachPaths {
		f, err := loadAttachment(ctx, path)
		if err != nil {
			return nil, err
		}
		files = append(files, *f)
	}
	return files, nil
}

func loadAttachment(ctx context.Context, path string) (*attach.File, error) {
	name := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(path))

	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open attachment %q: %w", path, err)
	}
	defer fh.Close()

	if ext == ".pdf" {
		info, err := fh.Stat()
		if err != nil {
			return nil, fmt.Errorf("could not stat attachment %q: %w", path, err)
		}
		return attach.ExtractPDF(ctx, name, fh, info.Size(), attach.DefaultMaxPages)
	}

	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return attach.FromReader(name, mimeType, fh)
}

func buildPreferences() *streamclient.Preferences {
	if learningStyle == "" && exampleDomain == "" && difficulty == "" {
		return nil
	}
	return &streamclient.Preferences{
		LearningStyle: learningStyle,
		ExampleDomain: exampleDomain,
		Difficulty:    difficulty,
	}
}
