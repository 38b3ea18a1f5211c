package cli

import (
    "fmt"
    "strings"

    "github.com/spf13/cobra"
)

// Execute runs the oapi-typegen CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd constructs the root command so tests can exercise the CLI easily.
func NewRootCmd() *cobra.Command {
    cmd := &cobra.Command{
        Use:   "oapi-typegen",
        Short: "Resolve OpenAPI schemas into a language-neutral type catalog",
        Long: strings.TrimSpace(`
oapi-typegen reads a Swagger 2.0 or OpenAPI 3.x document, follows every $ref,
flattens allOf, turns oneOf/anyOf into sum types and wrappers, and maps each
schema and operation onto a language-neutral type model for code generators.

Output (in --out):
  types.json       named types in document order
  operations.json  operations with parameter, request and response types
  summary.md       counts, case-insensitive name collisions and warnings
  warnings.json    only when the run produced warnings`),
        Example: strings.TrimSpace(`
  oapi-typegen init
  oapi-typegen --config oapi-typegen.yaml generate
  oapi-typegen generate --input https://example.com/openapi.yaml --methods get --paths '^/pets'
  oapi-typegen --log-format json generate --input spec.yaml --fail-on-warnings`),
        SilenceErrors: true,
        SilenceUsage:  true,
        RunE: func(cmd *cobra.Command, args []string) error {
            return cmd.Help()
        },
    }

    // Flag errors (like unknown flags) become usage errors carrying the help text.
    flagErr := func(c *cobra.Command, err error) error {
        return newUsageError(fmt.Sprintf("%v\n\n%s", err, c.UsageString()))
    }
    cmd.SetFlagErrorFunc(flagErr)

    cmd.PersistentFlags().StringP("config", "c", "", "Config file path (YAML or JSON)")
    cmd.PersistentFlags().BoolP("verbose", "v", false, "Log resolution details (debug level)")
    cmd.PersistentFlags().String("log-format", logFormatText, "Log output format on stderr: text or json")

    for _, sub := range []*cobra.Command{newGenerateCmd(), newInitCmd()} {
        sub.SetFlagErrorFunc(flagErr)
        cmd.AddCommand(sub)
    }

    return cmd
}
