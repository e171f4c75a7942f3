package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/turtacn/LoreKit/internal/app"
	"github.com/turtacn/LoreKit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LoreKit/internal/intelligence/lore_parser"
	"github.com/turtacn/LoreKit/pkg/errors"
)

type parseOptions struct {
	project string
	noFuzzy bool
	kinds   string
}

// NewParseCmd creates the parse command.
func NewParseCmd() *cobra.Command {
	opts := &parseOptions{}

	cmd := &cobra.Command{
		Use:   "parse [text|-]",
		Short: "Annotate text with lore entities",
		Long: "Annotate text with the configured rules.  The text is read from stdin\n" +
			"when the argument is \"-\" or omitted.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.project, "project", "p", "", "project id whose rule overlays apply")
	cmd.Flags().BoolVar(&opts.noFuzzy, "no-fuzzy", false, "disable fuzzy capitalised-phrase detection")
	cmd.Flags().StringVar(&opts.kinds, "kinds", "", "comma-separated kinds to keep (e.g. Person,Place)")
	return cmd
}

// NewExtractCmd creates the extract command.
func NewExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract [text|-]",
		Short: "Rule-free entity candidate extraction",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if cliCtx.Server == "" {
				return PrintResult(cmd, extractResult{Candidates: lore_parser.QuickExtract(text)})
			}

			c, err := newAPIClient(cliCtx)
			if err != nil {
				return err
			}
			remote, err := c.Extract(cmd.Context(), text)
			if err != nil {
				return err
			}
			res := extractResult{Candidates: make([]lore_parser.EntityCandidate, 0, len(remote))}
			for _, cand := range remote {
				res.Candidates = append(res.Candidates, lore_parser.EntityCandidate{Text: cand.Text, Kind: cand.Kind})
			}
			return PrintResult(cmd, res)
		},
	}
}

func runParse(cmd *cobra.Command, args []string, opts *parseOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	if cliCtx.Server != "" {
		return runRemoteParse(cmd, cliCtx, opts, text)
	}

	req := lore_parser.ParseRequest{Text: text, Kinds: parseKinds(opts.kinds)}
	if opts.project != "" {
		req.ProjectID = &opts.project
	}
	if opts.noFuzzy {
		off := false
		req.Fuzzy = &off
	}

	ctx := cmd.Context()
	source, err := app.NewRuleSource(cliCtx.Config, cliCtx.Logger)
	if err != nil {
		return err
	}
	stack, err := app.BuildStack(ctx, cliCtx.Config, source, nil, cliCtx.Logger)
	if err != nil {
		return err
	}

	resp, err := stack.Service.Parse(ctx, req)
	if err != nil {
		return err
	}
	cliCtx.Logger.Debug("parse completed",
		logging.String("project", opts.project),
		logging.Int("hits", len(resp.Hits)))

	if resp.Hits == nil {
		resp.Hits = []lore_parser.EntityHit{}
	}
	if resp.Tokens == nil {
		resp.Tokens = []string{}
	}
	return PrintResult(cmd, parseResult(resp))
}

// readInput returns args[0], or stdin when it is "-" or absent.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeBadRequest, "read stdin")
	}
	return string(data), nil
}

func parseKinds(list string) []lore_parser.Kind {
	var kinds []lore_parser.Kind
	for _, part := range strings.Split(list, ",") {
		if label := strings.TrimSpace(part); label != "" {
			kinds = append(kinds, lore_parser.ParseKind(label))
		}
	}
	return kinds
}

// parseResult renders a ParseResponse as a table of hits.
type parseResult lore_parser.ParseResponse

func (r parseResult) TableHeaders() []string {
	return []string{"#", "Text", "Kind", "Source", "Score", "Span", "Link"}
}

func (r parseResult) TableRows() [][]string {
	rows := make([][]string, 0, len(r.Hits))
	for i, h := range r.Hits {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			h.Span.Text,
			h.Kind.String(),
			colorizeSource(h.Source.String()),
			fmt.Sprintf("%.2f", h.Score),
			fmt.Sprintf("%d-%d", h.Span.Start, h.Span.End),
			formatLink(h.Link),
		})
	}
	return rows
}

func colorizeSource(s string) string {
	switch s {
	case "dictionary":
		return color.GreenString(s)
	case "pattern":
		return color.CyanString(s)
	case "fuzzy":
		return color.YellowString(s)
	default:
		return s
	}
}

func formatLink(l *lore_parser.Link) string {
	if l == nil {
		return "-"
	}
	switch {
	case l.Slug != nil:
		return *l.Slug
	case l.ID != nil:
		return *l.ID
	default:
		return l.Name
	}
}

type extractResult struct {
	Candidates []lore_parser.EntityCandidate `json:"candidates"`
}

func (r extractResult) TableHeaders() []string { return []string{"Text", "Kind"} }

func (r extractResult) TableRows() [][]string {
	rows := make([][]string, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		rows = append(rows, []string{c.Text, c.Kind})
	}
	return rows
}
