package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// CollabCommand runs the auto-collaboration flow from the terminal.
func CollabCommand() *cli.Command {
	return &cli.Command{
		Name:      "collab",
		Usage:     "Detect and run an agent-to-agent collaboration over a query",
		ArgsUsage: "QUERY",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "primary",
				Aliases:  []string{"p"},
				Usage:    "Primary agent id",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the full result as JSON",
			},
		},
		Action: runCollab,
	}
}

func runCollab(c *cli.Context) error {
	query := c.Args().First()
	if query == "" {
		return errors.New("a query is required: sagespace collab -p AGENT \"...\"")
	}

	svcs, err := buildServices(c)
	if err != nil {
		return err
	}
	defer svcs.Close()

	primary, err := svcs.directory.GetAgent(c.Context, c.String("primary"))
	if err != nil {
		return err
	}

	available, err := svcs.directory.ListAgents(c.Context)
	if err != nil {
		return err
	}

	result, err := svcs.collab.Run(c.Context, query, *primary, available)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if !result.Collaborated {
		fmt.Println("No collaboration needed; the primary agent can answer alone.")
		return nil
	}

	fmt.Printf("Collaboration: %s\n", result.CollaborationID)
	fmt.Printf("Messages:      %d\n", len(result.Messages))
	fmt.Printf("Confidence:    %.2f (consensus: %v)\n\n", result.Confidence, result.ConsensusReached)
	fmt.Println(result.Outcome)

	return nil
}
