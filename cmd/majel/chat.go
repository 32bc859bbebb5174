// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Majel Contributors

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Guffawaffle/majel/internal/engine"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with Majel",
		Long:  "Send a message to Majel. Starts an interactive session if no message is provided.",
		RunE:  runChat,
	}

	cmd.Flags().StringP("user", "u", "", "user id for trust and proposal scoping")
	cmd.Flags().StringP("session", "s", "", "session id to continue")

	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	eng, st, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = eng.Close()
		_ = st.Close()
	}()

	user, _ := cmd.Flags().GetString("user")
	session, _ := cmd.Flags().GetString("session")
	opts := engine.ChatOptions{UserID: user, SessionID: session}

	if len(args) > 0 {
		return oneTurn(ctx, cmd.OutOrStdout(), eng, strings.Join(args, " "), opts)
	}

	return interactive(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), eng, opts)
}

func oneTurn(ctx context.Context, out io.Writer, eng *engine.Engine, message string, opts engine.ChatOptions) error {
	result, err := eng.Chat(ctx, message, opts)
	if err != nil {
		return err
	}
	printResult(out, result)
	return nil
}

// interactive runs the REPL until EOF or an exit command. Turn errors are
// printed, not fatal: the session survives them.
func interactive(ctx context.Context, in io.Reader, out io.Writer, eng *engine.Engine, opts engine.ChatOptions) error {
	fmt.Fprintf(out, "Majel online. Awaiting input. (Type 'exit' to quit)\n\n")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "Admiral > ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "exit", "quit", "q":
			fmt.Fprintln(out, "Majel offline. Live long and prosper.")
			return nil
		}

		result, err := eng.Chat(ctx, input, opts)
		if err != nil {
			fmt.Fprintf(out, "\nError: %v\n\n", err)
			continue
		}

		printResult(out, result)
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	fmt.Fprintln(out, "\nMajel offline. Live long and prosper.")
	return nil
}

func printResult(out io.Writer, result *engine.ChatResult) {
	fmt.Fprintf(out, "\nMajel > %s\n\n", result.Text)

	for _, proposal := range result.Proposals {
		fmt.Fprintf(out, "Staged for approval (proposal %s, expires %s):\n",
			proposal.ID, proposal.ExpiresAt.Format("15:04:05"))
		for _, item := range proposal.Items {
			fmt.Fprintf(out, "  - %s\n", item.Preview)
		}
		fmt.Fprintln(out)
	}
}
