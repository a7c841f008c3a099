package main

import (
	"fmt"
	"os"

	"github.com/jszwec/csvutil"
	"github.com/seqsense/pcalign/registration"
	"github.com/seqsense/pcalign/registration/icp"
	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"
	"github.com/seqsense/pcgol/pc/filter/voxelgrid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pcalign [flags] source.pcd target.pcd",
	Short: "Align a source point cloud onto a target point cloud",
	Long: `pcalign estimates the rigid transformation aligning the source cloud onto
the target cloud by robust point-to-point ICP, prints the 4x4 transformation
matrix and optionally writes the aligned source cloud.`,
	Args: cobra.ExactArgs(2),
	RunE: run,

	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	flagConfig  string
	flagOut     string
	flagStats   string
	flagSigma   float32
	flagVoxel   float32
	flagMaxIter int
	flagVerbose bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVarP(&flagOut, "out", "o", "", "write the aligned source cloud to this PCD file")
	rootCmd.PersistentFlags().StringVar(&flagStats, "stats", "", "write per-iteration stats to this CSV file")
	rootCmd.PersistentFlags().Float32Var(&flagSigma, "sigma", -1, "initial Welsch kernel width (<=0: uniform weighting)")
	rootCmd.PersistentFlags().Float32Var(&flagVoxel, "voxel", 0, "voxel size for downsampling the clouds (0: no downsampling)")
	rootCmd.PersistentFlags().IntVar(&flagMaxIter, "max-iteration", 0, "maximum number of ICP iterations")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log every iteration")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Fatal("alignment failed")
	}
}

type statRecord struct {
	Iteration int     `csv:"iteration"`
	Pairs     int     `csv:"pairs"`
	MeanDist  float32 `csv:"mean_dist"`
	Converged bool    `csv:"converged"`
}

func run(cmd *cobra.Command, args []string) error {
	if flagVerbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	cfg := defaultConfig()
	if flagConfig != "" {
		var err error
		if cfg, err = loadConfig(flagConfig); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("sigma") {
		cfg.Sigma = flagSigma
	}
	if cmd.Flags().Changed("voxel") {
		cfg.VoxelResolution = flagVoxel
	}
	if cmd.Flags().Changed("max-iteration") {
		cfg.MaxIteration = flagMaxIter
	}
	if err := cfg.validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	source, err := readPCD(args[0])
	if err != nil {
		return err
	}
	target, err := readPCD(args[1])
	if err != nil {
		return err
	}
	logrus.Infof("source: %d points, target: %d points", source.Points, target.Points)

	alignSrc, alignTgt := source, target
	if cfg.VoxelResolution > 0 {
		r := cfg.VoxelResolution
		vg := voxelgrid.New(mat.Vec3{r, r, r})
		if alignSrc, err = vg.Filter(source); err != nil {
			return fmt.Errorf("failed to downsample source: %w", err)
		}
		if alignTgt, err = vg.Filter(target); err != nil {
			return fmt.Errorf("failed to downsample target: %w", err)
		}
		logrus.Infof("downsampled to %d/%d points (voxel: %f)", alignSrc.Points, alignTgt.Points, r)
	}

	srcPoints, err := alignSrc.Vec3Iterator()
	if err != nil {
		return err
	}
	tgtPoints, err := alignTgt.Vec3Iterator()
	if err != nil {
		return err
	}

	var sigma icp.SigmaSchedule
	if cfg.Sigma > 0 {
		sigma = icp.DecaySigmaSchedule(cfg.Sigma, cfg.SigmaDecay, cfg.SigmaMin)
	}
	var records []statRecord
	align := &icp.ICP{
		Corresponder:      icp.NewNearestPointCorresponder(tgtPoints, cfg.MaxCorrespondenceDist),
		Estimator:         registration.NewPointToPointRobust(),
		MaxIteration:      cfg.MaxIteration,
		ConvergenceThresh: cfg.ConvergenceThresh,
		MinPairs:          cfg.MinPairs,
		Sigma:             sigma,
		OnIteration: func(s icp.Stat) {
			logrus.Debugf("iteration %d: %d pairs, mean distance: %f", s.Iteration, s.Pairs, s.MeanDist)
			records = append(records, statRecord(s))
		},
	}

	trans, stat, err := align.Fit(srcPoints)
	if err != nil {
		return fmt.Errorf("registration failed: %w (stat: %+v)", err, stat)
	}
	logrus.Infof("finished at iteration %d: %d pairs, mean distance: %f, converged: %v",
		stat.Iteration, stat.Pairs, stat.MeanDist, stat.Converged)

	printMat4(trans)

	if flagStats != "" {
		if err := writeStats(flagStats, records); err != nil {
			return err
		}
	}
	if flagOut != "" {
		if err := applyTransform(source, trans); err != nil {
			return err
		}
		if err := writePCD(flagOut, source); err != nil {
			return err
		}
		logrus.Infof("wrote aligned cloud to %s", flagOut)
	}
	return nil
}

func readPCD(path string) (*pc.PointCloud, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	p, err := pc.Unmarshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return p, nil
}

func writePCD(path string, p *pc.PointCloud) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	if err := pc.Marshal(p, f); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func applyTransform(p *pc.PointCloud, trans mat.Mat4) error {
	it, err := p.Vec3Iterator()
	if err != nil {
		return err
	}
	for ; it.IsValid(); it.Incr() {
		it.SetVec3(trans.TransformAffine(it.Vec3()))
	}
	return nil
}

func printMat4(m mat.Mat4) {
	for row := 0; row < 4; row++ {
		fmt.Printf("% f % f % f % f\n", m[row], m[4+row], m[8+row], m[12+row])
	}
}

func writeStats(path string, records []statRecord) error {
	b, err := csvutil.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("failed to write stats: %w", err)
	}
	return nil
}
