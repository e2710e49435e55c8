package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"gesturelab/adapters/mcmc"
	"gesturelab/adapters/plot"
	"gesturelab/adapters/report"
	"gesturelab/adapters/tabular"
	"gesturelab/app"
	"gesturelab/domain/gesture"
	"gesturelab/domain/model"
	"gesturelab/internal"
	"gesturelab/internal/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gesturelab",
		Short: "Bayesian count regression for paired gesture data",
	}

	rootCmd.AddCommand(
		newDescribeCmd(),
		newFitCmd(),
		newCompareCmd(),
		newReportCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// services wires the pipeline the way every subcommand needs it
type services struct {
	cfg         *config.Config
	logger      *internal.Logger
	reader      *tabular.DataReader
	descriptive *app.DescriptiveService
	models      *app.ModelService
	reports     *report.Writer
}

func newServices() (*services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := internal.NewDefaultLogger()
	engine := mcmc.NewEngine(logger, mcmc.NewStreamFactory())
	renderer := plot.NewRenderer(logger)
	return &services{
		cfg:         cfg,
		logger:      logger,
		reader:      tabular.NewDataReader(),
		descriptive: app.NewDescriptiveService(logger),
		models:      app.NewModelService(engine, renderer, logger),
		reports:     report.NewWriter(logger),
	}, nil
}

func (s *services) loadData(cmd *cobra.Command, file string) (*gesture.Dataset, error) {
	if file == "" {
		file = s.cfg.Data.File
	}
	return s.reader.Read(cmd.Context(), file)
}

// buildSpec assembles a model spec from flag values
func buildSpec(name string, cfg *config.Config, family, random, exposure string, slopeSD float64, chains, iterations, warmup int, targetAccept float64, seed uint64) model.Spec {
	spec := model.NewSpec(name, model.Family(family), model.RandomStructure(random), model.Exposure(exposure))
	spec.Prior.SlopeSD = slopeSD
	spec.Controls.Chains = chains
	spec.Controls.Iterations = iterations
	spec.Controls.Warmup = warmup
	spec.Controls.TargetAccept = targetAccept
	spec.Controls.Cores = cfg.Sampler.Cores
	if seed != 0 {
		spec.Controls.Seed = seed
	} else {
		spec.Controls.Seed = cfg.Sampler.Seed
	}
	return spec
}

func newDescribeCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Print grouped means of counts and row-wise rates",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newServices()
			if err != nil {
				return err
			}
			data, err := svc.loadData(cmd, file)
			if err != nil {
				return err
			}
			summaries, err := svc.descriptive.Summarize(data)
			if err != nil {
				return err
			}

			fmt.Printf("%-12s %4s %14s %14s\n", "condition", "n", "mean gestures", "mean rate/s")
			for _, row := range summaries {
				fmt.Printf("%-12s %4d %14.2f %14.4f\n", row.Condition, row.N, row.MeanCount, row.MeanRate)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "input csv/xlsx file (default from GESTURELAB_DATA_FILE)")
	return cmd
}

func newFitCmd() *cobra.Command {
	var (
		file, family, random, exposure string
		slopeSD, targetAccept          float64
		chains, iterations, warmup     int
		seed                           uint64
	)

	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit one count regression and print coefficient summaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newServices()
			if err != nil {
				return err
			}
			data, err := svc.loadData(cmd, file)
			if err != nil {
				return err
			}

			spec := buildSpec("m_"+family, svc.cfg, family, random, exposure,
				slopeSD, chains, iterations, warmup, targetAccept, seed)
			fit, err := svc.models.Fit(cmd.Context(), spec, data)
			if err != nil {
				return err
			}

			fmt.Printf("formula: %s\n\n", spec)
			fmt.Printf("%-34s %9s %9s %9s %9s %7s %7s\n",
				"coefficient", "estimate", "error", "2.5%", "97.5%", "rhat", "ess")
			for _, s := range fit.Summaries {
				fmt.Printf("%-34s %9.3f %9.3f %9.3f %9.3f %7.3f %7.0f\n",
					s.Name, s.Estimate, s.EstError, s.Lower, s.Upper, s.RHat, s.ESS)
			}
			if len(fit.Warnings) > 0 {
				fmt.Printf("\nwarnings:\n  %s\n", strings.Join(fit.Warnings, "\n  "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "input csv/xlsx file")
	cmd.Flags().StringVar(&family, "family", string(model.FamilyPoisson), "poisson or negbinomial")
	cmd.Flags().StringVar(&random, "random", string(model.RandomIntercept), "none, intercept, or intercept_slope")
	cmd.Flags().StringVar(&exposure, "exposure", string(model.ExposureNone), "none, log_offset, or rate")
	cmd.Flags().Float64Var(&slopeSD, "slope-sd", 0, "weakly-informative normal prior sd on the slope (0 = diffuse default)")
	cmd.Flags().IntVar(&chains, "chains", 4, "number of MCMC chains")
	cmd.Flags().IntVar(&iterations, "iter", 2000, "iterations per chain, including warmup")
	cmd.Flags().IntVar(&warmup, "warmup", 1000, "warmup iterations per chain")
	cmd.Flags().Float64Var(&targetAccept, "target-accept", 0.8, "adaptation target for the acceptance rate")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (0 = GESTURELAB_SEED)")
	return cmd
}

func newCompareCmd() *cobra.Command {
	var file string
	var seed uint64

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Fit Poisson and negative-binomial models and compare them with LOO-CV",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newServices()
			if err != nil {
				return err
			}
			data, err := svc.loadData(cmd, file)
			if err != nil {
				return err
			}

			poisson := buildSpec("m_poisson", svc.cfg, string(model.FamilyPoisson),
				string(model.RandomIntercept), string(model.ExposureLogOffset), 0, 4, 2000, 1000, 0.8, seed)
			negbinom := buildSpec("m_negbinomial", svc.cfg, string(model.FamilyNegBinomial),
				string(model.RandomIntercept), string(model.ExposureRate), 0, 4, 2000, 1000, 0.8, seed)

			fitP, err := svc.models.Fit(cmd.Context(), poisson, data)
			if err != nil {
				return err
			}
			fitNB, err := svc.models.Fit(cmd.Context(), negbinom, data)
			if err != nil {
				return err
			}

			comparison, err := svc.models.Compare(fitP, fitNB)
			if err != nil {
				return err
			}
			fmt.Printf("%-16s elpd %9.2f  se %7.2f\n", comparison.A.Name, comparison.A.ELPD, comparison.A.SE)
			fmt.Printf("%-16s elpd %9.2f  se %7.2f\n", comparison.B.Name, comparison.B.ELPD, comparison.B.SE)
			fmt.Printf("favored: %s (elpd diff %.2f, se %.2f)\n",
				comparison.Favored, comparison.ELPDDiff, comparison.SEDiff)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "input csv/xlsx file")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (0 = GESTURELAB_SEED)")
	return cmd
}

func newReportCmd() *cobra.Command {
	var file, out string
	var seed uint64

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Run the full walkthrough: describe, fit both families, charts, HTML report",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newServices()
			if err != nil {
				return err
			}
			data, err := svc.loadData(cmd, file)
			if err != nil {
				return err
			}
			if out == "" {
				out = svc.cfg.Output.Dir
			}
			if err := os.MkdirAll(out, 0o755); err != nil {
				return err
			}

			descriptives, err := svc.descriptive.Summarize(data)
			if err != nil {
				return err
			}

			poisson := buildSpec("m_poisson", svc.cfg, string(model.FamilyPoisson),
				string(model.RandomInterceptSlope), string(model.ExposureLogOffset), 1, 4, 2000, 1000, 0.8, seed)
			negbinom := buildSpec("m_negbinomial", svc.cfg, string(model.FamilyNegBinomial),
				string(model.RandomIntercept), string(model.ExposureRate), 0, 4, 2000, 1000, 0.8, seed)

			fitP, err := svc.models.Fit(cmd.Context(), poisson, data)
			if err != nil {
				return err
			}
			fitNB, err := svc.models.Fit(cmd.Context(), negbinom, data)
			if err != nil {
				return err
			}

			effects, err := svc.models.ConditionalEffects(fitP)
			if err != nil {
				return err
			}

			// Is the professor-condition gesture rate meaningfully below one per minute?
			hypothesis, err := svc.models.Hypothesis(fitP,
				fmt.Sprintf("exp(%s + %s)", model.CoefIntercept, model.CoefCondition), 1.0/60.0)
			if err != nil {
				return err
			}

			comparison, err := svc.models.Compare(fitP, fitNB)
			if err != nil {
				return err
			}

			if err := svc.models.RenderCharts(fitP, fitNB, out); err != nil {
				return err
			}

			return svc.reports.Write(report.Analysis{
				DatasetSource: data.Source,
				Descriptives:  descriptives,
				Fits:          []*model.FitResult{fitP, fitNB},
				Effects:       effects,
				Hypotheses:    []model.HypothesisResult{hypothesis},
				Comparison:    &comparison,
			}, out)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "input csv/xlsx file")
	cmd.Flags().StringVar(&out, "out", "", "output directory (default from GESTURELAB_OUTPUT_DIR)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (0 = GESTURELAB_SEED)")
	return cmd
}
