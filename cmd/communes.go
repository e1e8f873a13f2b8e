package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dvf-prices/internal/atomicfile"
	"github.com/sells-group/dvf-prices/internal/communes"
)

var communesCmd = &cobra.Command{
	Use:   "communes",
	Short: "Derive lookup files from the commune directory",
}

var communesMinOut string

var communesMinCmd = &cobra.Command{
	Use:   "min",
	Short: "Write code, name, department, centre and population per commune",
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := newLoader(cfg, newFetcher(cfg)).Load(cmd.Context())
		if err != nil {
			return err
		}
		_, err = writeCommunesMin(communesMinOut, idx)
		return err
	},
}

var populationOut string

var communesPopulationCmd = &cobra.Command{
	Use:   "population",
	Short: "Write the population of each commune keyed by code",
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := newLoader(cfg, newFetcher(cfg)).Load(cmd.Context())
		if err != nil {
			return err
		}
		_, err = writePopulation(populationOut, idx)
		return err
	},
}

func init() {
	communesMinCmd.Flags().StringVar(&communesMinOut, "out", "communes_min.json", "output file")
	communesPopulationCmd.Flags().StringVar(&populationOut, "out", "population.json", "output file")
	communesCmd.AddCommand(communesMinCmd, communesPopulationCmd)
	rootCmd.AddCommand(communesCmd)
}

func writeCommunesMin(path string, idx communes.Index) (int, error) {
	entries := communes.BuildMin(idx)
	if len(entries) == 0 && len(idx) > 0 {
		zap.L().Warn("no commune has a department and centre; is the cached directory missing fields?",
			zap.Int("communes", len(idx)),
			zap.String("path", path),
		)
	}
	if err := atomicfile.WriteJSON(path, entries); err != nil {
		return 0, err
	}
	zap.L().Info("wrote communes", zap.String("path", path), zap.Int("count", len(entries)))
	return len(entries), nil
}

func writePopulation(path string, idx communes.Index) (int, error) {
	pop := communes.BuildPopulation(idx)
	if len(pop) == 0 && len(idx) > 0 {
		zap.L().Warn("no commune has a population; is the cached directory missing fields?",
			zap.Int("communes", len(idx)),
			zap.String("path", path),
		)
	}
	if err := atomicfile.WriteJSON(path, pop); err != nil {
		return 0, err
	}
	zap.L().Info("wrote population", zap.String("path", path), zap.Int("count", len(pop)))
	return len(pop), nil
}
