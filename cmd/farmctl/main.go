// Command farmctl is the operator-facing client for dispatchd's control
// API: submit a graph, cancel/pause/resume a node, retune its dispatch
// weight or quota, or adjust a pool's licence quota. Its command tree
// follows cklxx-elephant.ai's cmd/cobra_cli.go NewRootCommand shape:
// cobra.Command with PersistentFlags and AddCommand per verb.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"dispatchd/internal/cliexit"
	"dispatchd/internal/farmctl"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := newRootCommand()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return cliexit.Code(err)
	}
	return cliexit.Success
}

func newRootCommand() *cobra.Command {
	var baseURL string
	var user string

	root := &cobra.Command{
		Use:           "farmctl",
		Short:         "control client for the render-farm job dispatcher",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&baseURL, "server", "http://127.0.0.1:8080", "dispatchd base URL")
	root.PersistentFlags().StringVar(&user, "user", "", "submitting user (overrides the graph's own user field)")

	client := func() *farmctl.Client { return farmctl.New(baseURL) }

	root.AddCommand(newSubmitCommand(client, &user))
	root.AddCommand(newStatusCommand(client))
	root.AddCommand(newPatchCommand(client))
	root.AddCommand(newLicenceCommand(client))
	return root
}

func newSubmitCommand(client func() *farmctl.Client, user *string) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <graph.json>",
		Short: "submit a graph document to the dispatcher",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := os.ReadFile(args[0])
			if err != nil {
				return &cliexit.Error{Code: cliexit.UsageError, Message: err.Error()}
			}
			out, err := client().SubmitGraph(doc, *user)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func newStatusCommand(client func() *farmctl.Client) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "status <id> <CANCELED|PAUSED|READY>",
		Short: "change a folder or task's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return &cliexit.Error{Code: cliexit.UsageError, Message: "id must be an integer"}
			}
			out, err := client().SetStatus(id, kind, args[1])
			if err != nil {
				return err
			}
			if out != "" {
				fmt.Fprintln(cmd.OutOrStdout(), out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "task", `node kind: "task" or "folder"`)
	return cmd
}

func newPatchCommand(client func() *farmctl.Client) *cobra.Command {
	var kind string
	var dispatchKey float64
	var maxRN int
	var setDispatchKey, setMaxRN bool
	cmd := &cobra.Command{
		Use:   "patch <id>",
		Short: "change a node's dispatch weight or pool-share quota",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return &cliexit.Error{Code: cliexit.UsageError, Message: "id must be an integer"}
			}
			if !setDispatchKey && !setMaxRN {
				return &cliexit.Error{Code: cliexit.UsageError, Message: "specify --dispatch-key and/or --max-rn"}
			}
			var dkPtr *float64
			var maxRNPtr *int
			if setDispatchKey {
				dkPtr = &dispatchKey
			}
			if setMaxRN {
				maxRNPtr = &maxRN
			}
			_, err = client().PatchNode(id, kind, dkPtr, maxRNPtr)
			return err
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "task", `node kind: "task" or "folder"`)
	cmd.Flags().Float64Var(&dispatchKey, "dispatch-key", 0, "new dispatch weight")
	cmd.Flags().IntVar(&maxRN, "max-rn", 0, "new pool-share quota (folders) or per-task render node cap")
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		setDispatchKey = cmd.Flags().Changed("dispatch-key")
		setMaxRN = cmd.Flags().Changed("max-rn")
	}
	return cmd
}

func newLicenceCommand(client func() *farmctl.Client) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "licence <pool> <capacity>",
		Short: "set a pool's licence token capacity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			capacity, err := strconv.Atoi(args[1])
			if err != nil {
				return &cliexit.Error{Code: cliexit.UsageError, Message: "capacity must be an integer"}
			}
			_, err = client().SetLicenceQuota(args[0], token, capacity)
			return err
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "licence token name (omitted, the token name \"-\" is sent)")
	return cmd
}
