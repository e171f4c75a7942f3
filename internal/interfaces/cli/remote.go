package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/LoreKit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LoreKit/pkg/client"
	"github.com/turtacn/LoreKit/pkg/errors"
)

// sdkLogger routes SDK log lines into the CLI logger.
type sdkLogger struct{ logging.Logger }

func (l sdkLogger) Debugf(format string, args ...interface{}) { l.Debug(fmt.Sprintf(format, args...)) }
func (l sdkLogger) Infof(format string, args ...interface{})  { l.Info(fmt.Sprintf(format, args...)) }
func (l sdkLogger) Errorf(format string, args ...interface{}) { l.Error(fmt.Sprintf(format, args...)) }

// newAPIClient returns an SDK client for --server.
func newAPIClient(cliCtx *CLIContext) (*client.Client, error) {
	if cliCtx.Server == "" {
		return nil, errors.New(errors.ErrCodeValidation, "--server is required")
	}
	return client.NewClient(cliCtx.Server,
		client.WithLogger(sdkLogger{cliCtx.Logger.Named("sdk")}),
		client.WithUserAgent("lorekit-cli/"+Version))
}

func runRemoteParse(cmd *cobra.Command, cliCtx *CLIContext, opts *parseOptions, text string) error {
	c, err := newAPIClient(cliCtx)
	if err != nil {
		return err
	}
	req := client.ParseRequest{Text: text}
	if opts.project != "" {
		req.ProjectID = &opts.project
	}
	for _, k := range parseKinds(opts.kinds) {
		if k.IsCustom() {
			req.Kinds = append(req.Kinds, client.CustomKind(k.CustomName()))
		} else {
			req.Kinds = append(req.Kinds, client.Kind{Label: k.String()})
		}
	}
	if opts.noFuzzy {
		off := false
		req.Fuzzy = &off
	}

	resp, err := c.Parse(cmd.Context(), req)
	if err != nil {
		return err
	}
	if resp.Hits == nil {
		resp.Hits = []client.Hit{}
	}
	if resp.Tokens == nil {
		resp.Tokens = []string{}
	}
	return PrintResult(cmd, remoteParseResult(*resp))
}

// remoteParseResult renders a server ParseResponse with the same columns as
// the local one.
type remoteParseResult client.ParseResponse

func (r remoteParseResult) TableHeaders() []string { return parseResult{}.TableHeaders() }

func (r remoteParseResult) TableRows() [][]string {
	rows := make([][]string, 0, len(r.Hits))
	for i, h := range r.Hits {
		link := "-"
		if h.Link != nil {
			switch {
			case h.Link.Slug != nil:
				link = *h.Link.Slug
			case h.Link.ID != nil:
				link = *h.Link.ID
			default:
				link = h.Link.Name
			}
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			h.Span.Text,
			h.Kind.String(),
			colorizeSource(h.Source),
			fmt.Sprintf("%.2f", h.Score),
			fmt.Sprintf("%d-%d", h.Span.Start, h.Span.End),
			link,
		})
	}
	return rows
}

// NewProjectsCmd creates the projects command group.  It always talks to
// --server.
func NewProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Inspect and drop a server's cached project parsers",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List projects with a cached parser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			c, err := newAPIClient(cliCtx)
			if err != nil {
				return err
			}
			projects, err := c.Projects(cmd.Context())
			if err != nil {
				return err
			}
			if projects == nil {
				projects = []string{}
			}
			return PrintResult(cmd, projectList{Projects: projects})
		},
	}

	invalidate := &cobra.Command{
		Use:   "invalidate <project>",
		Short: "Drop one cached project parser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			c, err := newAPIClient(cliCtx)
			if err != nil {
				return err
			}
			if err := c.InvalidateProject(cmd.Context(), args[0]); err != nil {
				return err
			}
			PrintSuccess(cmd, fmt.Sprintf("project %q invalidated", args[0]))
			return nil
		},
	}

	cmd.AddCommand(list, invalidate)
	return cmd
}

type projectList struct {
	Projects []string `json:"projects"`
}

func (p projectList) TableHeaders() []string { return []string{"Project"} }

func (p projectList) TableRows() [][]string {
	rows := make([][]string, 0, len(p.Projects))
	for _, name := range p.Projects {
		rows = append(rows, []string{name})
	}
	return rows
}

// NewDirectoryCmd creates the directory command group.
func NewDirectoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "directory",
		Short: "Manage a server's entity directory cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Empty the directory lookup cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			c, err := newAPIClient(cliCtx)
			if err != nil {
				return err
			}
			n, err := c.PurgeDirectoryCache(cmd.Context())
			if err != nil {
				return err
			}
			PrintSuccess(cmd, fmt.Sprintf("%d directory cache entries purged", n))
			return nil
		},
	})
	return cmd
}
