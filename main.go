package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"github.com/Raimguzhinov/imgquant/imgfile"
	"github.com/Raimguzhinov/imgquant/internal/config"
	"github.com/Raimguzhinov/imgquant/internal/logging"
	"github.com/Raimguzhinov/imgquant/pixbuf"
	"github.com/Raimguzhinov/imgquant/quant"
	"github.com/Raimguzhinov/imgquant/tiles"
)

type Options struct {
	Output      string `short:"o" long:"output" description:"Output image (.png, .bmp, .pcx, .qoi, .jpg); default <input>.bmp"`
	Colors      int    `short:"c" long:"colors" description:"Palette size, 2 to 256 (default 256)"`
	Dither      string `short:"d" long:"dither" description:"Dithering: none or fs (Floyd-Steinberg)"`
	ShadeLevels int    `long:"shade-levels" description:"Reserve palette room for N brightness levels of every color"`
	ShadeLUT    string `long:"shade-lut" description:"Write the shade lookup table to this file (.zst to compress)"`
	Tiles       string `short:"t" long:"tiles" description:"Cut the output into WxH tiles (or N for NxN)"`
	Dedup       bool   `long:"dedup" description:"Drop repeated tiles"`
	Tilemap     string `long:"tilemap" description:"Write the tilemap to this file (.zst to compress)"`
	Palette     string `short:"p" long:"palette" description:"Write the palette as raw RGB triples (.zst to compress)"`
	Config      string `long:"config" description:"YAML preset with default settings"`
	Show        bool   `short:"s" long:"show" description:"Show source and result after conversion"`
	Verbose     bool   `short:"V" long:"verbose" description:"Debug logging"`
	Version     bool   `short:"v" long:"version" description:"Print the version and exit"`
	Help        bool   `short:"h" long:"help" description:"Print help and exit"`
}

// SDL wants its calls on the main thread.
func init() { runtime.LockOSThread() }

func main() {
	var opts Options

	parser := flags.NewParser(&opts, flags.IgnoreUnknown)
	args, err := parser.Parse()
	if opts.Help {
		fmt.Print(detailedHelp)
		parser.WriteHelp(os.Stdout)
		return
	}
	if opts.Version {
		fmt.Println(version)
		return
	}
	if err != nil || len(args) == 0 {
		fmt.Print(detailedHelp)
		parser.WriteHelp(os.Stderr)
		os.Exit(1)
	}

	logger := logging.Setup(opts.Verbose)
	log := logging.WithComponent(logger, logging.ComponentStartup)
	if err := loadDotenv(); err != nil {
		log.Warn("ignoring .env", "error", err)
	}

	settings, err := resolveSettings(&opts)
	if err != nil {
		log.Error("invalid settings", "error", err)
		os.Exit(1)
	}
	if len(args) > 1 && (opts.Output != "" || settings.Palette != "" || settings.ShadeLUT != "" || settings.Tilemap != "") {
		log.Error("--output, --palette, --shade-lut and --tilemap need a single input", "inputs", len(args))
		os.Exit(1)
	}

	p, err := newPipeline(settings, logger, opts.Show)
	if err != nil {
		log.Error("invalid settings", "error", err)
		os.Exit(1)
	}

	jobs := make([]*job, len(args))
	for i, in := range args {
		jobs[i] = &job{input: in, output: outputName(in, opts.Output)}
	}
	if err := p.run(jobs); err != nil {
		log.Error("conversion failed", "error", err)
		os.Exit(1)
	}

	if opts.Show {
		if err := preview(jobs, logger); err != nil {
			log.Error("preview failed", "error", err)
			os.Exit(1)
		}
	}
}

// loadDotenv reads .env (or the given files) into the environment. A
// missing file is not an error.
func loadDotenv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// resolveSettings layers the command line over the preset and environment.
func resolveSettings(opts *Options) (config.Settings, error) {
	s, err := config.Load(opts.Config)
	if err != nil {
		return s, err
	}
	flagSettings := config.Settings{
		Colors:      opts.Colors,
		Dither:      opts.Dither,
		ShadeLevels: opts.ShadeLevels,
		ShadeLUT:    opts.ShadeLUT,
		Dedup:       opts.Dedup,
		Tilemap:     opts.Tilemap,
		Palette:     opts.Palette,
	}
	if opts.Tiles != "" {
		if flagSettings.TileWidth, flagSettings.TileHeight, err = parseTileSize(opts.Tiles); err != nil {
			return s, err
		}
	}
	s.Override(flagSettings)
	return s, nil
}

// parseTileSize accepts "WxH" or a single number for square tiles.
func parseTileSize(s string) (int, int, error) {
	ws, hs, found := strings.Cut(strings.ToLower(s), "x")
	if !found {
		hs = ws
	}
	w, errW := strconv.Atoi(ws)
	h, errH := strconv.Atoi(hs)
	if err := errors.Join(errW, errH); err != nil || w < 1 || h < 1 {
		return 0, 0, fmt.Errorf("%w: %q", tiles.ErrInvalidTileSize, s)
	}
	return w, h, nil
}

func outputName(input, output string) string {
	if output != "" {
		return output
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".bmp"
}

// job is one file travelling through the pipeline.
type job struct {
	input  string
	output string

	source   *pixbuf.Buffer // unmodified copy kept for the preview
	working  *pixbuf.Buffer
	result   *pixbuf.Buffer
	palette  []pixbuf.ColorRGB
	shadeLUT []int
	tilemap  *tiles.Map
}

type pipeline struct {
	settings  config.Settings
	quantizer quant.Quantizer
	keepSrc   bool
	log       *slog.Logger
}

func newPipeline(s config.Settings, logger *slog.Logger, keepSource bool) (*pipeline, error) {
	d, err := quant.ParseDither(s.Dither)
	if err != nil {
		return nil, err
	}
	q, err := quant.New(quant.Options{
		MaxColors:   s.Colors,
		Dither:      d,
		ShadeLevels: s.ShadeLevels,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	if s.TileWidth < 0 || s.TileHeight < 0 {
		return nil, fmt.Errorf("%w: %dx%d", tiles.ErrInvalidTileSize, s.TileWidth, s.TileHeight)
	}
	return &pipeline{settings: s, quantizer: q, keepSrc: keepSource, log: logger}, nil
}

// run loads, converts and saves every job. Each stage runs in its own
// goroutine; the first failure stops the others.
func (p *pipeline) run(jobs []*job) error {
	loaded := make(chan *job)
	converted := make(chan *job)
	errCh := make(chan error, 3)
	stop := make(chan struct{})
	var once sync.Once
	fail := func(err error) {
		errCh <- err
		once.Do(func() { close(stop) })
	}

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		defer close(loaded)
		for _, j := range jobs {
			if err := p.load(j); err != nil {
				fail(err)
				return
			}
			select {
			case loaded <- j:
			case <-stop:
				return
			}
		}
	}()

	go func() {
		defer wg.Done()
		defer close(converted)
		for j := range loaded {
			if err := p.convert(j); err != nil {
				fail(fmt.Errorf("%s: %w", j.input, err))
				return
			}
			select {
			case converted <- j:
			case <-stop:
				return
			}
		}
	}()

	go func() {
		defer wg.Done()
		for j := range converted {
			if err := p.save(j); err != nil {
				fail(fmt.Errorf("%s: %w", j.output, err))
				return
			}
		}
	}()

	wg.Wait()
	close(errCh)
	return <-errCh
}

func (p *pipeline) load(j *job) error {
	img, err := imgfile.Load(j.input)
	if err != nil {
		return err
	}
	j.working = img
	if p.keepSrc {
		j.source = img.Clone()
	}
	logging.WithComponent(p.log, logging.ComponentLoad).Debug("loaded",
		"file", j.input, "width", img.Width, "height", img.Height, "bpp", img.BPP)
	return nil
}

func (p *pipeline) convert(j *job) error {
	res, err := p.quantizer.Quantize(j.working)
	if err != nil {
		return err
	}
	j.result = res.Image
	j.palette = res.Image.Colors()
	j.shadeLUT = res.ShadeLUT

	if !p.settings.Tiled() {
		return nil
	}
	tw, th := p.settings.TileWidth, p.settings.TileHeight
	if th == 0 {
		th = tw
	} else if tw == 0 {
		tw = th
	}
	strip, m, err := tiles.Split(res.Image, tw, th, p.settings.Dedup)
	if err != nil {
		return err
	}
	j.result, j.tilemap = strip, m
	logging.WithComponent(p.log, logging.ComponentTiles).Info("tiled",
		"file", j.input, "tile", fmt.Sprintf("%dx%d", tw, th),
		"cells", len(m.IDs), "unique", m.Unique())
	return nil
}

func (p *pipeline) save(j *job) error {
	log := logging.WithComponent(p.log, logging.ComponentSave)
	if err := imgfile.Save(j.output, j.result); err != nil {
		return err
	}
	log.Info("written", "file", j.output, "colors", len(j.palette), "bpp", j.result.BPP)

	if path := p.settings.Palette; path != "" {
		if err := imgfile.WritePalette(path, j.palette); err != nil {
			return err
		}
		log.Info("palette written", "file", path)
	}
	if path := p.settings.ShadeLUT; path != "" {
		if j.shadeLUT == nil {
			log.Warn("no shade table without --shade-levels", "file", path)
		} else if err := imgfile.WriteShadeLUT(path, j.shadeLUT); err != nil {
			return err
		} else {
			log.Info("shade table written", "file", path, "entries", len(j.shadeLUT))
		}
	}
	if path := p.settings.Tilemap; path != "" {
		if j.tilemap == nil {
			log.Warn("no tilemap without --tiles", "file", path)
		} else if err := imgfile.WriteTo(path, j.tilemap); err != nil {
			return err
		} else {
			log.Info("tilemap written", "file", path, "columns", j.tilemap.Columns, "rows", j.tilemap.Rows)
		}
	}
	return nil
}
