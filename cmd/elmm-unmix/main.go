package main

/*
This command-line tool unmixes a hyperspectral image cube against a
set of reference endmembers, estimating per-pixel abundances, scaling
factors and endmember variants.
*/

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/jvlmdr/go-cv/rimg64"
	"github.com/jvlmdr/go-file/fileutil"
	"github.com/jvlmdr/lin-go/mat"
	"gopkg.in/gcfg.v1"

	"github.com/unmixlab/elmm/elmm"
)

func init() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, path.Base(os.Args[0]), "[flags] cube.(json|gob) endmembers.(json|gob)")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Unmixes an image cube against reference endmembers.")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Options:")
		flag.PrintDefaults()
		fmt.Fprintln(os.Stderr)
	}
}

// config mirrors the solver options in an INI file.
type config struct {
	Solver struct {
		Norm        string
		Verbose     bool
		MaxIterAnls int
		MaxIterAdmm int
		EpsS        float64
		EpsA        float64
		EpsPsi      float64
		EpsAdmmAbs  float64
		EpsAdmmRel  float64
	}
}

func defaultConfig() config {
	opt := elmm.DefaultOptions()
	var cfg config
	cfg.Solver.Norm = string(opt.Norm)
	cfg.Solver.Verbose = opt.Verbose
	cfg.Solver.MaxIterAnls = opt.MaxIterANLS
	cfg.Solver.MaxIterAdmm = opt.MaxIterADMM
	cfg.Solver.EpsS = opt.EpsS
	cfg.Solver.EpsA = opt.EpsA
	cfg.Solver.EpsPsi = opt.EpsPsi
	cfg.Solver.EpsAdmmAbs = opt.EpsADMMAbs
	cfg.Solver.EpsAdmmRel = opt.EpsADMMRel
	return cfg
}

func (cfg config) options() elmm.Options {
	return elmm.Options{
		Norm:        elmm.SpatialNorm(cfg.Solver.Norm),
		Verbose:     cfg.Solver.Verbose,
		MaxIterANLS: cfg.Solver.MaxIterAnls,
		MaxIterADMM: cfg.Solver.MaxIterAdmm,
		EpsS:        cfg.Solver.EpsS,
		EpsA:        cfg.Solver.EpsA,
		EpsPsi:      cfg.Solver.EpsPsi,
		EpsADMMAbs:  cfg.Solver.EpsAdmmAbs,
		EpsADMMRel:  cfg.Solver.EpsAdmmRel,
	}
}

// cubeFile is the on-disk form of an image cube.
// Elems holds band-interleaved pixel values, Elems[(i+Width*j)*Bands+q].
type cubeFile struct {
	Width, Height, Bands int
	Elems                []float64
}

func (c *cubeFile) image() (*rimg64.Multi, error) {
	if len(c.Elems) != c.Width*c.Height*c.Bands {
		return nil, fmt.Errorf("cube has %d elements, want %d", len(c.Elems), c.Width*c.Height*c.Bands)
	}
	f := rimg64.NewMulti(c.Width, c.Height, c.Bands)
	var idx int
	for j := 0; j < c.Height; j++ {
		for i := 0; i < c.Width; i++ {
			for q := 0; q < c.Bands; q++ {
				f.Set(i, j, q, c.Elems[idx])
				idx++
			}
		}
	}
	return f, nil
}

// matrixFile is the on-disk form of a matrix, row-major.
type matrixFile struct {
	Rows, Cols int
	Elems      []float64
}

func (m *matrixFile) matrix() (*mat.Mat, error) {
	if len(m.Elems) != m.Rows*m.Cols {
		return nil, fmt.Errorf("matrix has %d elements, want %dx%d", len(m.Elems), m.Rows, m.Cols)
	}
	x := mat.New(m.Rows, m.Cols)
	for i := 0; i < m.Rows; i++ {
		for j := 0; j < m.Cols; j++ {
			x.Set(i, j, m.Elems[i*m.Cols+j])
		}
	}
	return x, nil
}

func toMatrixFile(x *mat.Mat) matrixFile {
	rows, cols := x.Dims()
	elems := make([]float64, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			elems[i*cols+j] = x.At(i, j)
		}
	}
	return matrixFile{Rows: rows, Cols: cols, Elems: elems}
}

// resultFile is the on-disk form of an unmixing result.
type resultFile struct {
	Abundances matrixFile
	Psi        matrixFile
	Endmembers []matrixFile
	Converged  bool
	Iters      int
}

func main() {
	var (
		configFile  = flag.String("config", "", "Solver options (INI)")
		outFile     = flag.String("out", "result.json", "Result file")
		aInitFile   = flag.String("a-init", "", "Initial abundances (default uniform)")
		psiInitFile = flag.String("psi-init", "", "Initial scaling factors (default one)")
		lambdaS     = flag.Float64("lambda-s", 1, "Endmember tightness weight")
		lambdaA     = flag.String("lambda-a", "0", "Abundance smoothing weight (scalar or comma-separated per endmember)")
		lambdaPsi   = flag.String("lambda-psi", "0", "Scaling smoothing weight (scalar or comma-separated per endmember)")
	)
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}
	cubeFname, endFname := flag.Arg(0), flag.Arg(1)

	cfg := defaultConfig()
	if *configFile != "" {
		if err := gcfg.ReadFileInto(&cfg, *configFile); err != nil {
			log.Fatalf("load config: %v", err)
		}
	}

	var cube cubeFile
	if err := fileutil.LoadExt(cubeFname, &cube); err != nil {
		log.Fatalf("load cube: %v", err)
	}
	data, err := cube.image()
	if err != nil {
		log.Fatalf("load cube: %v", err)
	}
	var endFile matrixFile
	if err := fileutil.LoadExt(endFname, &endFile); err != nil {
		log.Fatalf("load endmembers: %v", err)
	}
	s0, err := endFile.matrix()
	if err != nil {
		log.Fatalf("load endmembers: %v", err)
	}
	_, numEnd := s0.Dims()
	numPix := data.Width * data.Height

	aInit, err := loadInit(*aInitFile, numEnd, numPix, 1/float64(numEnd))
	if err != nil {
		log.Fatalf("load initial abundances: %v", err)
	}
	psiInit, err := loadInit(*psiInitFile, numEnd, numPix, 1)
	if err != nil {
		log.Fatalf("load initial scaling factors: %v", err)
	}
	wA, err := parseWeight(*lambdaA)
	if err != nil {
		log.Fatalf("parse -lambda-a: %v", err)
	}
	wPsi, err := parseWeight(*lambdaPsi)
	if err != nil {
		log.Fatalf("parse -lambda-psi: %v", err)
	}

	res, err := elmm.Unmix(data, aInit, psiInit, s0, *lambdaS, wA, wPsi, cfg.options())
	if err != nil {
		log.Fatalf("unmix: %v", err)
	}
	if res.Converged {
		log.Printf("converged after %d iterations", res.Iters)
	} else {
		log.Printf("stopped at the iteration cap (%d)", res.Iters)
	}
	if len(res.Trace) > 0 {
		log.Printf("objective: %g", res.Trace[len(res.Trace)-1].Objective)
	}

	out := resultFile{
		Abundances: toMatrixFile(res.A),
		Psi:        toMatrixFile(res.Psi),
		Endmembers: make([]matrixFile, len(res.S)),
		Converged:  res.Converged,
		Iters:      res.Iters,
	}
	for k, sk := range res.S {
		out.Endmembers[k] = toMatrixFile(sk)
	}
	if err := fileutil.SaveExt(*outFile, &out); err != nil {
		log.Fatalf("save result: %v", err)
	}
}

// loadInit loads a matrix from fname, or fills a constant one if fname
// is empty.
func loadInit(fname string, rows, cols int, fill float64) (*mat.Mat, error) {
	if fname == "" {
		x := mat.New(rows, cols)
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				x.Set(i, j, fill)
			}
		}
		return x, nil
	}
	var file matrixFile
	if err := fileutil.LoadExt(fname, &file); err != nil {
		return nil, err
	}
	return file.matrix()
}

// parseWeight accepts a scalar or a comma-separated per-endmember list.
func parseWeight(s string) (elmm.Weight, error) {
	fields := strings.Split(s, ",")
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return elmm.Weight{}, err
		}
		vals[i] = v
	}
	if len(vals) == 1 {
		return elmm.Scalar(vals[0]), nil
	}
	return elmm.Vector(vals), nil
}
