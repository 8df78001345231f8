package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"medportal/internal/auth"
	"medportal/internal/chat"
	"medportal/internal/session"
	"medportal/internal/transcript"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	historyLocal bool
	historyList  bool
)

// historyCmd prints the conversation history
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the conversation history",
	Long: `Fetches the persisted conversation from the server, merged and ordered
the way the chat view shows it. With --local, prints the transcript archived
on this machine instead. With --list, prints the store key of every archived
transcript.`,
	RunE: runHistory,
}

// askCmd sends one chat message
var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send one message to the assistant",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	historyCmd.Flags().BoolVar(&historyLocal, "local", false, "Show the locally archived transcript")
	historyCmd.Flags().BoolVar(&historyList, "list", false, "List every archived transcript")
}

func currentIdentity() (auth.Identity, auth.Role, error) {
	rec, err := rt.Reconciler()
	if err != nil {
		return auth.NoIdentity, auth.RoleNone, err
	}
	res, err := rec.Reconcile()
	if err != nil {
		return auth.NoIdentity, auth.RoleNone, err
	}
	return res.Identity, res.Role, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyList {
		archive, err := rt.Archive()
		if err != nil {
			return err
		}
		return listArchived(os.Stdout, archive)
	}

	id, role, err := currentIdentity()
	if err != nil {
		return err
	}

	var t transcript.Transcript
	if historyLocal {
		archive, err := rt.Archive()
		if err != nil {
			return err
		}
		if t, err = archive.Load(id); err != nil {
			return err
		}
		if len(t) == 0 {
			fmt.Printf("No local transcript for %s.\n", id)
			return nil
		}
	} else {
		token := session.Value(rt.store, session.KeyAuthToken)
		if t, err = rt.Fetcher().Load(cmd.Context(), token, role); err != nil {
			return err
		}
	}
	printTranscript(t)
	return nil
}

// listArchived writes one line per archived transcript: key and message count.
func listArchived(w io.Writer, archive *transcript.Archive) error {
	keys := archive.Keys()
	if len(keys) == 0 {
		_, err := fmt.Fprintln(w, "No archived transcripts.")
		return err
	}
	for _, key := range keys {
		if _, err := fmt.Fprintln(w, key); err != nil {
			return err
		}
	}
	return nil
}

func printTranscript(t transcript.Transcript) {
	for _, m := range t {
		if m.IsDivider() {
			fmt.Printf("──── %s ────\n", m.Text)
			continue
		}
		who := "assistant"
		if m.Sender == transcript.SenderUser {
			who = "you"
		}
		fmt.Printf("[%s] %s: %s\n", m.Timestamp.Local().Format("2006-01-02 15:04"), who, m.Text)
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	s, err := rt.Chat()
	if err != nil {
		return err
	}
	if err := s.Load(cmd.Context()); err != nil {
		return err
	}

	msg, err := s.Send(cmd.Context(), strings.Join(args, " "))
	if errors.Is(err, chat.ErrEmptyMessage) {
		return err
	}
	if err != nil {
		// The apology is the answer; the cause only goes to the log.
		logger.Warn("chat query failed", zap.Error(err))
	}
	fmt.Println(msg.Text)
	return nil
}
