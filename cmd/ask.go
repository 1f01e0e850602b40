package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var askPlatform string

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the indexed event corpus",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if env.Pipeline == nil {
			return eris.New("retrieval is not configured: set openai and pinecone credentials")
		}

		var filter map[string]any
		if askPlatform != "" {
			filter = map[string]any{"platform": askPlatform}
		}

		answer, err := env.Pipeline.Ask(ctx, args[0], filter)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	},
}

func init() {
	askCmd.Flags().StringVar(&askPlatform, "platform", "", "restrict retrieval to one platform")
	rootCmd.AddCommand(askCmd)
}
