// Command indexcore is the CLI surface over the library-first core: it
// opens a badger-backed storage handle, runs a query program file
// against it, and dumps table-level stats — nothing here belongs in
// the core itself, which never reads flags, env vars, or config files.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/strusgo/indexcore/config"
	"github.com/strusgo/indexcore/queryeval/program"
	"github.com/strusgo/indexcore/statsproc"
)

var (
	dbDir      string
	aclEnabled bool
	logger     zerolog.Logger
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "indexcore",
		Short: "indexcore manages and queries an inverted-index storage core",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
			viper.SetEnvPrefix("INDEXCORE")
			viper.AutomaticEnv()
			if dbDir == "" {
				dbDir = viper.GetString("dir")
			}
			if dbDir == "" {
				return fmt.Errorf("indexcore: --dir (or INDEXCORE_DIR) is required")
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&dbDir, "dir", "", "badger database directory")
	root.PersistentFlags().BoolVar(&aclEnabled, "acl", false, "enable access-control enforcement")
	_ = viper.BindPFlag("dir", root.PersistentFlags().Lookup("dir"))

	root.AddCommand(newOpenCmd(), newStatsCmd(), newQueryCmd(), newPeerMsgCmd())
	return root
}

func openHandle() (*config.Handle, error) {
	return config.Open(config.Options{Dir: dbDir, AclEnabled: aclEnabled}, logger)
}

func newOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open",
		Short: "open the database and report basic health",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openHandle()
			if err != nil {
				return err
			}
			defer h.Close()
			n, err := h.NofDocs()
			if err != nil {
				return err
			}
			fmt.Printf("opened %s: %d documents\n", dbDir, n)
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "dump storage-level counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openHandle()
			if err != nil {
				return err
			}
			defer h.Close()
			n, err := h.NofDocs()
			if err != nil {
				return err
			}
			desc := h.MetaDataDescription()
			fmt.Printf("NofDocs: %d\n", n)
			fmt.Printf("MetaData columns: %d\n", len(desc.Columns))
			for _, col := range desc.Columns {
				fmt.Printf("  %s (%s)\n", col.Name, col.Type)
			}
			return nil
		},
	}
}

func newQueryCmd() *cobra.Command {
	var programPath string
	var username string
	cmd := &cobra.Command{
		Use:   "query",
		Short: "compile and run a query program file",
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(programPath)
			if err != nil {
				return err
			}
			prog, err := program.Parse(string(src))
			if err != nil {
				return err
			}
			h, err := openHandle()
			if err != nil {
				return err
			}
			defer h.Close()

			qp, err := program.Compile(prog, h.Storage)
			if err != nil {
				return err
			}
			qp.Username = username

			results, err := qp.Evaluate(h.Storage)
			if err != nil {
				return err
			}
			for rank, r := range results {
				fmt.Printf("%d: docno=%d weight=%f\n", rank, r.Docno, r.Weight)
				for _, elem := range r.Summary {
					fmt.Printf("    %s=%s\n", elem.Name, elem.Value)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&programPath, "program", "", "path to a query program file")
	cmd.Flags().StringVar(&username, "user", "", "username for ACL-filtered queries")
	_ = cmd.MarkFlagRequired("program")
	return cmd
}

// newPeerMsgCmd opens the database with a fresh statsproc.MessageBuilder
// installed as its stats sink and drains whatever df/NofDocs deltas are
// staged, printing each framed message's header and entry count. The
// builder only receives deltas from commits made through this handle
// after it is installed, and the command commits nothing, so a run
// prints "no staged peer messages".
func newPeerMsgCmd() *cobra.Command {
	var maxBlockSize int
	cmd := &cobra.Command{
		Use:   "peermsg",
		Short: "drain staged peer statistics messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openHandle()
			if err != nil {
				return err
			}
			defer h.Close()

			builder := statsproc.NewMessageBuilder()
			h.SetStatsSink(builder)

			n := 0
			for {
				msg, ok, err := builder.FetchMessage(maxBlockSize)
				if err != nil {
					return err
				}
				if !ok {
					break
				}
				v, err := statsproc.NewMessageViewer(msg)
				if err != nil {
					return err
				}
				fmt.Printf("message %d: nofdocs=%+d entries=%d\n", n, v.NofDocumentsInsertedChange(), v.Count())
				n++
			}
			if n == 0 {
				fmt.Println("no staged peer messages")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxBlockSize, "max-block-size", 1<<16, "maximum bytes of df changes per fetched message")
	return cmd
}
