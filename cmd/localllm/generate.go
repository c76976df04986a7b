package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"localllm/pkg/types"
)

func newGenerateCmd(o *options) *cobra.Command {
	var (
		maxTokens   int
		temperature float64
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "generate [contents...]",
		Short: "Run one generation and print the text",
		Long:  "Run one single-turn generation. Contents are taken from the arguments, or from stdin when none are given.",
		Example: "  localllm generate --temperature 0 \"Write a haiku about the ocean.\"\n" +
			"  echo 'Hello' | localllm generate --json",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.resolve(cmd)
			if err != nil {
				return err
			}
			contents := strings.Join(args, " ")
			if len(args) == 0 {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				contents = strings.TrimRight(string(b), "\n")
			}

			var gc types.GenerationConfig
			if cmd.Flags().Changed("max-output-tokens") {
				gc.MaxOutputTokens = types.Int(maxTokens)
			}
			if cmd.Flags().Changed("temperature") {
				gc.Temperature = types.Float64(temperature)
			}

			log := newLogger(cfg, cmd.ErrOrStderr())
			rt, err := newRuntime(cfg, log)
			if err != nil {
				return err
			}
			defer closeRuntime(rt, log)
			client, err := newClient(cfg, rt, log)
			if err != nil {
				return err
			}
			res, err := client.GenerateContent(cmd.Context(), "", contents, gc)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !asJSON {
				_, err = fmt.Fprintln(out, res.Text)
				return err
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(types.GenerateResponse{
				ID:            uuid.NewString(),
				ModelVersion:  client.ModelID(),
				Text:          res.Text,
				UsageMetadata: res.UsageMetadata,
			})
		},
	}
	fs := cmd.Flags()
	fs.IntVar(&maxTokens, "max-output-tokens", types.DefaultMaxOutputTokens, "Maximum number of new tokens")
	fs.Float64Var(&temperature, "temperature", types.DefaultTemperature, "Sampling temperature (0 = greedy)")
	fs.BoolVar(&asJSON, "json", false, "Print the full response with usage metadata as JSON")
	addModelFlags(cmd, o)
	return cmd
}
