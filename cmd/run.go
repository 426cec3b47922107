package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/sagespace/council/internal/council"
)

// RunCommand runs one council session from the terminal and prints the
// outcome.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run a council session over a query",
		ArgsUsage: "QUERY",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "agent",
				Aliases: []string{"a"},
				Usage:   "Agent id to include (repeatable; default: all agents)",
			},
			&cli.StringFlag{
				Name:  "type",
				Usage: "Query type (technical, creative, moral, ...)",
			},
			&cli.Float64Flag{
				Name:    "threshold",
				Aliases: []string{"t"},
				Usage:   "Consensus threshold (overrides config)",
				Value:   -1,
			},
			&cli.StringFlag{
				Name:  "policy",
				Usage: "Weight policy: flat or harmony (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the full session detail as JSON",
			},
		},
		Action: runCouncil,
	}
}

func runCouncil(c *cli.Context) error {
	query := c.Args().First()
	if query == "" {
		return errors.New("a query is required: sagespace run \"...\"")
	}

	svcs, err := buildServices(c)
	if err != nil {
		return err
	}
	defer svcs.Close()

	participants, err := resolveAgents(c, svcs.directory, c.StringSlice("agent"))
	if err != nil {
		return err
	}

	threshold := svcs.cfg.Council.DefaultThreshold
	if c.Float64("threshold") >= 0 {
		threshold = c.Float64("threshold")
	}

	detail, err := svcs.council.RunSession(c.Context, council.SessionParams{
		Query:              query,
		QueryType:          c.String("type"),
		Agents:             participants,
		ConsensusThreshold: threshold,
		WeightPolicy:       council.WeightPolicy(c.String("policy")),
	})
	if err != nil {
		return err
	}

	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(detail)
	}

	fmt.Printf("Session:  %s\n", detail.Session.ID)
	fmt.Printf("Status:   %s\n", detail.Session.Status)
	if detail.Result != nil {
		fmt.Printf("Votes:    %d approve / %d reject / %d abstain / %d conditional\n",
			detail.Result.Approvals, detail.Result.Rejections,
			detail.Result.Abstentions, detail.Result.Conditionals)
		fmt.Printf("Approval: %.2f (threshold %.2f)\n", detail.Result.WeightedApproval, threshold)
	}
	fmt.Printf("\n%s\n", detail.Session.FinalRecommendation)

	return nil
}
