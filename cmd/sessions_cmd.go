package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/tsagent/internal/store"
)

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect persisted sessions",
	}
	cmd.AddCommand(sessionsListCmd(), sessionsShowCmd())
	return cmd
}

func openStore() store.Store {
	cfg := loadConfig()
	s, err := store.New(cfg.Sessions.Backend, cfg.Sessions.Dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	return s
}

func sessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List persisted sessions, newest first",
		Run: func(cmd *cobra.Command, args []string) {
			s := openStore()
			ids, err := s.List()
			if err != nil {
				fmt.Fprintln(os.Stderr, "Error:", err)
				os.Exit(1)
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "SESSION\tTURNS\tARTIFACTS\n")
			for _, id := range ids {
				sess, err := s.Load(id)
				if err != nil {
					fmt.Fprintf(tw, "%s\t(unreadable: %v)\t\n", id, err)
					continue
				}
				fmt.Fprintf(tw, "%s\t%d\t%d\n", id, len(sess.Turns), len(sess.Artifacts))
			}
			tw.Flush()
		},
	}
}

func sessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Dump a persisted session record",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			s := openStore()
			sess, err := s.Load(args[0])
			if err != nil {
				fmt.Fprintln(os.Stderr, "Error:", err)
				os.Exit(1)
			}
			fmt.Println(store.MarshalDebug(sess))
		},
	}
}
