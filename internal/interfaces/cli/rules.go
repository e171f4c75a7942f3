package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/LoreKit/internal/app"
	"github.com/turtacn/LoreKit/internal/config"
	"github.com/turtacn/LoreKit/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/LoreKit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LoreKit/pkg/errors"
)

// rulesPublisher announces rule changes to the serving replicas.
type rulesPublisher interface {
	PublishRuleChange(ctx context.Context, change kafka.RuleChange) error
	Close() error
}

// newRulesPublisher is replaced in tests.
var newRulesPublisher = func(cfg config.KafkaConfig, logger logging.Logger) (rulesPublisher, error) {
	return kafka.NewProducer(cfg, cfg.RulesTopic, kafka.EventTypeRuleChange, logger)
}

// NewRulesCmd creates the rules command group.
func NewRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Validate and publish rule documents",
	}
	cmd.AddCommand(newRulesValidateCmd(), newRulesNotifyCmd())
	return cmd
}

func newRulesValidateCmd() *cobra.Command {
	var projects []string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Build the base parser and the given project parsers",
		Long: "Build every parser the server would build and report its size.  Any\n" +
			"unreadable document, malformed YAML or non-compiling pattern fails the run.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRulesValidate(cmd, projects)
		},
	}
	cmd.Flags().StringSliceVarP(&projects, "project", "p", nil, "project ids to validate (repeatable)")
	return cmd
}

// RulesReport summarises the parsers built by rules validate.
type RulesReport struct {
	Source  string        `json:"source"`
	Parsers []ParserStats `json:"parsers"`
}

// ParserStats is the size of one built parser.
type ParserStats struct {
	Project           string `json:"project"`
	DictionaryEntries int    `json:"dictionaryEntries"`
	PatternRules      int    `json:"patternRules"`
}

func (r RulesReport) TableHeaders() []string {
	return []string{"Project", "Entities", "Rules"}
}

func (r RulesReport) TableRows() [][]string {
	rows := make([][]string, 0, len(r.Parsers))
	for _, p := range r.Parsers {
		name := p.Project
		if name == "" {
			name = "(base)"
		}
		rows = append(rows, []string{name, fmt.Sprintf("%d", p.DictionaryEntries), fmt.Sprintf("%d", p.PatternRules)})
	}
	return rows
}

func runRulesValidate(cmd *cobra.Command, projects []string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	cfg := cliCtx.Config

	source, err := app.NewRuleSource(cfg, cliCtx.Logger)
	if err != nil {
		return err
	}
	stack, err := app.BuildStack(ctx, cfg, source, nil, cliCtx.Logger)
	if err != nil {
		return err
	}

	report := RulesReport{Source: describeSource(cfg)}
	base := stack.Service.Base().Stats()
	report.Parsers = append(report.Parsers, ParserStats{
		DictionaryEntries: base.DictionaryEntries,
		PatternRules:      base.PatternRules,
	})
	for _, project := range projects {
		p, err := stack.Cache.Get(ctx, project)
		if err != nil {
			return err
		}
		st := p.Stats()
		report.Parsers = append(report.Parsers, ParserStats{
			Project:           project,
			DictionaryEntries: st.DictionaryEntries,
			PatternRules:      st.PatternRules,
		})
	}
	return PrintResult(cmd, report)
}

func describeSource(cfg *config.Config) string {
	if cfg.Rules.Source == "minio" {
		return fmt.Sprintf("minio://%s/%s", cfg.MinIO.Bucket, cfg.MinIO.Prefix)
	}
	return cfg.Rules.Dir
}

func newRulesNotifyCmd() *cobra.Command {
	var (
		project string
		all     bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Tell serving replicas that rule documents changed",
		Long: "Publish a rule-change message on the rules topic.  --all reloads the base\n" +
			"parser everywhere; --project drops one cached project parser.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if all == (project != "") {
				return errors.New(errors.ErrCodeValidation, "exactly one of --all or --project is required")
			}
			change := kafka.RuleChange{Project: project, All: all, ChangedAt: time.Now().UTC()}
			if err := change.Validate(); err != nil {
				return err
			}
			kcfg := cliCtx.Config.Kafka
			if !kcfg.Enabled {
				return errors.New(errors.ErrCodeFeatureDisabled, "kafka is not enabled")
			}

			pub, err := newRulesPublisher(kcfg, cliCtx.Logger)
			if err != nil {
				return err
			}
			defer pub.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := pub.PublishRuleChange(ctx, change); err != nil {
				return err
			}
			PrintSuccess(cmd, fmt.Sprintf("rule change %q published to %s", change.Key(), kcfg.RulesTopic))
			return nil
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "project whose rules changed")
	cmd.Flags().BoolVar(&all, "all", false, "base rules changed; reload everything")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "publish timeout")
	return cmd
}
