package main

import (
	"encoding/csv"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/evaluate"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/joiner"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/joiner/validator"
	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/simjoin"
)

func (c *cli) joinCmd(bruteForce bool) *cobra.Command {
	var req joiner.JoinRequest
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Run the prefix-filtered similarity join",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.BruteForce = bruteForce
			return c.runJoin(cmd, req)
		},
	}
	if bruteForce {
		cmd.Use = "brute-force"
		cmd.Short = "Run the exhaustive reference join"
	}

	f := cmd.Flags()
	f.StringVar(&req.LeftCollection, "left", "", "left collection (table name, or CSV path with --csv)")
	f.StringVar(&req.RightCollection, "right", "", "right collection; omit for a self-join")
	f.StringVar(&req.LeftKey, "left-key", "", "key column of the left collection")
	f.StringVar(&req.RightKey, "right-key", "", "key column of the right collection")
	f.StringVar(&req.LeftAttr, "left-attr", "", "join column of the left collection")
	f.StringVar(&req.RightAttr, "right-attr", "", "join column of the right collection")
	f.StringVar(&req.Tokenizer, "tokenizer", "", `tokenizer, e.g. "qgram:3", "words+stop+stem" (default from config)`)
	f.Float64Var(&req.Threshold, "threshold", 0, "Jaccard threshold in (0, 1] (default from config)")
	f.StringVar(&req.Output, "output", "", "name of the output relation")
	f.StringVar(&req.LeftPrefix, "left-prefix", "", "prefix of the left key column in the output")
	f.StringVar(&req.RightPrefix, "right-prefix", "", "prefix of the right key column in the output")
	return cmd
}

func (c *cli) runJoin(cmd *cobra.Command, req joiner.JoinRequest) error {
	ctx := cmd.Context()
	st, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if c.csvMode {
		// Self-join only when both sides name the same file.
		self := req.RightCollection == "" || samePath(req.LeftCollection, req.RightCollection)
		right := req.RightCollection
		if req.LeftCollection, err = st.importCSV(req.LeftCollection, leftTable); err != nil {
			return err
		}
		req.RightCollection = ""
		if !self {
			if req.RightCollection, err = st.importCSV(right, rightTable); err != nil {
				return err
			}
		}
	}
	req = req.WithDefaults(c.cfg.Join)
	if err := validator.ValidateJoinRequest(&req); err != nil {
		return err
	}

	engine := simjoin.NewEngine(st.catalog, simjoin.EngineConfig{Workers: c.cfg.Join.Workers})
	resp, err := joiner.Run(ctx, engine, req)
	if err != nil {
		return err
	}
	if c.csvMode {
		return writePairs(cmd.OutOrStdout(), resp.Relation)
	}
	return writeJSON(cmd.OutOrStdout(), joiner.NewJoinResponse(resp, 0))
}

func (c *cli) evaluateCmd() *cobra.Command {
	var req joiner.EvaluateRequest
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score a computed pair relation against ground truth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			if c.csvMode {
				if req.Truth, err = st.importCSV(req.Truth, truthTable); err != nil {
					return err
				}
				if req.Computed, err = st.importCSV(req.Computed, computedTable); err != nil {
					return err
				}
			}
			if err := validator.ValidateEvaluateRequest(&req); err != nil {
				return err
			}
			result, err := evaluate.EvaluateRelations(ctx, st.pairs,
				req.Truth, evaluate.IDColumns{Left: req.TruthLeft, Right: req.TruthRight},
				req.Computed, evaluate.IDColumns{Left: req.ComputedLeft, Right: req.ComputedRight},
			)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Truth, "truth", "", "ground-truth relation")
	f.StringVar(&req.TruthLeft, "truth-left", "", "first key column of the truth relation")
	f.StringVar(&req.TruthRight, "truth-right", "", "second key column of the truth relation")
	f.StringVar(&req.Computed, "computed", "", "computed relation")
	f.StringVar(&req.ComputedLeft, "computed-left", simjoin.DefaultLeftPrefix+"id", "first key column of the computed relation")
	f.StringVar(&req.ComputedRight, "computed-right", simjoin.DefaultRightPrefix+"id", "second key column of the computed relation")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writePairs(w io.Writer, rel simjoin.Relation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rel.Columns[:]); err != nil {
		return err
	}
	for _, p := range rel.Pairs {
		if err := cw.Write([]string{p.Left, p.Right}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
