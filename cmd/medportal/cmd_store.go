package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// storeCmd inspects the raw session store
var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect or edit the raw session store",
	Long: `Low-level access to the persisted session keys, for debugging.

Subcommands:
  list   - List keys with a prefix
  get    - Print one value
  set    - Write one value
  rm     - Delete keys`,
}

var storeListCmd = &cobra.Command{
	Use:   "list [prefix]",
	Short: "List keys",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := rt.Store()
		if err != nil {
			return err
		}
		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}
		keys := s.Keys(prefix)
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Println(k)
		}
		return nil
	},
}

var storeGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := rt.Store()
		if err != nil {
			return err
		}
		v, ok := s.Get(args[0])
		if !ok {
			return fmt.Errorf("%s: not set", args[0])
		}
		fmt.Println(v)
		return nil
	},
}

var storeSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write one value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := rt.Store()
		if err != nil {
			return err
		}
		return s.Set(args[0], args[1])
	},
}

var storeRmCmd = &cobra.Command{
	Use:   "rm <key>...",
	Short: "Delete keys",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := rt.Store()
		if err != nil {
			return err
		}
		return s.Delete(args...)
	},
}

func init() {
	storeCmd.AddCommand(storeListCmd)
	storeCmd.AddCommand(storeGetCmd)
	storeCmd.AddCommand(storeSetCmd)
	storeCmd.AddCommand(storeRmCmd)
}
