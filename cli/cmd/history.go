package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	lodelib "github.com/justapithecus/lode/lode"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/craneview/cli/config"
	"github.com/pithecene-io/craneview/cli/render"
	"github.com/pithecene-io/craneview/lode"
	"github.com/pithecene-io/craneview/types"
)

// HistoryCommand reads pose history and session summaries back out of the
// dataset that connect writes.
func HistoryCommand() *cli.Command {
	common := joinFlags(OutputFlags(), []cli.Flag{ConfigFlag}, StorageFlags())
	return &cli.Command{
		Name:  "history",
		Usage: "Query recorded pose history",
		Subcommands: []*cli.Command{
			{
				Name:  "poses",
				Usage: "List stored poses",
				Flags: joinFlags(common, []cli.Flag{
					&cli.StringFlag{Name: "session", Usage: "Only this session ID"},
					&cli.StringFlag{Name: "day", Usage: "Only this day partition (YYYY-MM-DD)"},
					&cli.Uint64Flag{Name: "from-revision", Usage: "Skip poses below this revision"},
					&cli.IntFlag{Name: "last", Usage: "Keep only the newest N poses"},
				}),
				Action: historyPosesAction,
			},
			{
				Name:  "summary",
				Usage: "Show the latest session summary",
				Flags: joinFlags(common, []cli.Flag{
					&cli.StringFlag{Name: "session", Usage: "Only this session ID (default: newest session)"},
				}),
				Action: historySummaryAction,
			},
		},
	}
}

// poseRow flattens a stored pose for display.
type poseRow struct {
	SessionID  string     `json:"session_id"`
	Revision   uint64     `json:"revision"`
	ReceivedAt time.Time  `json:"received_at"`
	Theta0     float64    `json:"theta0"`
	J6         types.Vec3 `json:"j6"`
	J7         types.Vec3 `json:"j7"`
}

func poseRows(recs []*types.PoseRecord) []poseRow {
	rows := make([]poseRow, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, poseRow{
			SessionID:  r.SessionID,
			Revision:   r.Revision,
			ReceivedAt: r.ReceivedAt,
			Theta0:     r.Thetas[0],
			J6:         r.Joints[5],
			J7:         r.Joints[6],
		})
	}
	return rows
}

func historyPosesAction(c *cli.Context) error {
	if c.IsSet("day") {
		if _, err := time.Parse(time.DateOnly, c.String("day")); err != nil {
			return usageError("--day must be YYYY-MM-DD: %v", err)
		}
	}
	if c.Int("last") < 0 {
		return usageError("--last must be >= 0")
	}
	ds, r, err := historyDataset(c)
	if err != nil {
		return err
	}

	recs, err := lode.QueryPoses(c.Context, ds, lode.PoseQuery{
		SessionID:    c.String("session"),
		Day:          c.String("day"),
		FromRevision: c.Uint64("from-revision"),
		Last:         c.Int("last"),
	})
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}
	return r.Render(poseRows(recs))
}

func historySummaryAction(c *cli.Context) error {
	ds, r, err := historyDataset(c)
	if err != nil {
		return err
	}
	summary, err := lode.QueryLatestSummary(c.Context, ds, c.String("session"))
	if errors.Is(err, lode.ErrNoSummaryFound) {
		return cli.Exit("no session summary found", exitError)
	}
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}
	return r.Render(summary)
}

// historyDataset opens the configured dataset for reading.
func historyDataset(c *cli.Context) (lodelib.Dataset, *render.Renderer, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, usageError("%v", err)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return nil, nil, usageError("%v", err)
	}
	ds, err := openReadDataset(c.Context, cfg.Storage)
	if err != nil {
		return nil, nil, usageError("%v", err)
	}
	return ds, r, nil
}

func openReadDataset(ctx context.Context, st config.StorageConfig) (lodelib.Dataset, error) {
	switch st.Backend {
	case "fs":
		return lode.NewReadDatasetFS(st.Dataset, st.Path)
	case "s3":
		return lode.NewReadDatasetS3(ctx, st.Dataset, s3Config(st))
	case "":
		return nil, errors.New("history needs --storage-path or a storage section in the config file")
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (must be fs or s3)", st.Backend)
	}
}
