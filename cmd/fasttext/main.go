package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/screenager/fasttext/internal/fasttext"
	"github.com/screenager/fasttext/internal/ftio"
	"github.com/screenager/fasttext/internal/reload"
	"github.com/screenager/fasttext/internal/replui"
)

var (
	defaultModel     = "./model.bin"
	defaultK         = 1
	defaultThreshold = 0.0
	defaultMMap      = false
)

func main() {
	root := &cobra.Command{
		Use:   "fasttext",
		Short: "Load and query a fastText model",
		Long:  "fasttext — load a native or memory-mapped fastText model and predict, inspect, or convert it.",
	}

	var cfg struct {
		Model     string  `toml:"model"`
		K         int     `toml:"k"`
		Threshold float64 `toml:"threshold"`
		MMap      bool    `toml:"mmap"`
	}
	if b, err := os.ReadFile(".fasttextrc.toml"); err == nil {
		if err := toml.Unmarshal(b, &cfg); err == nil {
			if cfg.Model != "" {
				defaultModel = cfg.Model
			}
			if cfg.K > 0 {
				defaultK = cfg.K
			}
			if cfg.Threshold > 0 {
				defaultThreshold = cfg.Threshold
			}
			defaultMMap = cfg.MMap
		}
	}

	var modelPath string
	var mmapFlag bool
	var k int
	var threshold float64
	root.PersistentFlags().StringVar(&modelPath, "model", defaultModel, "path to a native model file, or a memory-mapped model directory when --mmap is set")
	root.PersistentFlags().BoolVar(&mmapFlag, "mmap", defaultMMap, "open model as a memory-mapped directory (model.bin/model.ftz + dict.mmap + in.mmap)")
	root.PersistentFlags().IntVarP(&k, "k", "k", defaultK, "number of predictions to return")
	root.PersistentFlags().Float64VarP(&threshold, "threshold", "t", defaultThreshold, "minimum probability a prediction must reach")

	loadFn := func(path string) (*fasttext.Predictor, error) {
		if mmapFlag {
			return fasttext.OpenMemoryMapped(path)
		}
		return fasttext.LoadModel(path)
	}

	open := func() (*fasttext.Predictor, error) {
		fmt.Fprint(os.Stderr, "Loading model… ")
		p, err := loadFn(modelPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "")
			return nil, err
		}
		fmt.Fprintln(os.Stderr, "ready.")
		return p, nil
	}

	printWordScores := func(scores []fasttext.WordScore) {
		for _, s := range scores {
			fmt.Printf("%s %.6f\n", s.Word, s.Score)
		}
	}

	// ---- fasttext predict <text>... ----------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "predict <text>...",
		Short: "Predict the top-k labels for each argument, or for each stdin line when none are given",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := open()
			if err != nil {
				return err
			}
			defer p.Close()

			predictLine := func(line string) error {
				preds, err := p.Predict(line, k, float32(threshold))
				if err != nil {
					return err
				}
				printWordScores(preds)
				return nil
			}
			if len(args) > 0 {
				for _, a := range args {
					if err := predictLine(a); err != nil {
						return err
					}
				}
				return nil
			}
			return scanLines(os.Stdin, predictLine)
		},
	})

	// ---- fasttext predict-prob <text>... -----------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "predict-prob <text>...",
		Short: "Like predict, but with no bound on the number of returned labels",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := open()
			if err != nil {
				return err
			}
			defer p.Close()

			predictLine := func(line string) error {
				preds, err := p.PredictAll(line, float32(threshold))
				if err != nil {
					return err
				}
				printWordScores(preds)
				return nil
			}
			if len(args) > 0 {
				for _, a := range args {
					if err := predictLine(a); err != nil {
						return err
					}
				}
				return nil
			}
			return scanLines(os.Stdin, predictLine)
		},
	})

	// ---- fasttext nn <word> -------------------------------------------------
	var annFlag bool
	nnCmd := &cobra.Command{
		Use:   "nn <word>",
		Short: "Print the k nearest vocabulary words to word by cosine similarity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := open()
			if err != nil {
				return err
			}
			defer p.Close()

			var neighbors []fasttext.WordScore
			if annFlag {
				neighbors, err = p.NNApprox(args[0], k)
			} else {
				neighbors, err = p.NN(args[0], k)
			}
			if err != nil {
				return err
			}
			printWordScores(neighbors)
			return nil
		},
	}
	nnCmd.Flags().BoolVar(&annFlag, "ann", false, "use the approximate HNSW index instead of an exact linear scan")
	root.AddCommand(nnCmd)

	// ---- fasttext analogies <a> <b> <c> -------------------------------------
	var analogiesANN bool
	analogiesCmd := &cobra.Command{
		Use:   "analogies <a> <b> <c>",
		Short: "Answer a:b :: c:? by vector arithmetic over the word-vector table",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := open()
			if err != nil {
				return err
			}
			defer p.Close()

			var results []fasttext.WordScore
			if analogiesANN {
				results, err = p.AnalogiesApprox(args[0], args[1], args[2], k)
			} else {
				results, err = p.Analogies(args[0], args[1], args[2], k)
			}
			if err != nil {
				return err
			}
			printWordScores(results)
			return nil
		},
	}
	analogiesCmd.Flags().BoolVar(&analogiesANN, "ann", false, "use the approximate HNSW index instead of an exact linear scan")
	root.AddCommand(analogiesCmd)

	// ---- fasttext print-word-vectors ----------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "print-word-vectors",
		Short: "Read words from stdin (one per line) and print each word's vector",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := open()
			if err != nil {
				return err
			}
			defer p.Close()

			return scanLines(os.Stdin, func(word string) error {
				vec, err := p.GetWordVector(word)
				if err != nil {
					return err
				}
				fmt.Println(formatVector(word, vec))
				return nil
			})
		},
	})

	// ---- fasttext print-sentence-vectors ------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "print-sentence-vectors",
		Short: "Read lines from stdin and print each line's sentence vector",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := open()
			if err != nil {
				return err
			}
			defer p.Close()

			return scanLines(os.Stdin, func(line string) error {
				vec, err := p.GetSentenceVector(line)
				if err != nil {
					return err
				}
				fmt.Println(formatVector(line, vec))
				return nil
			})
		},
	})

	// ---- fasttext convert <out-dir> ------------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "convert <out-dir>",
		Short: "Convert a native model into a memory-mapped model directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if mmapFlag {
				return fmt.Errorf("convert requires a native model; drop --mmap")
			}
			p, err := open()
			if err != nil {
				return err
			}
			defer p.Close()

			if err := p.SaveAsMemoryMappedModel(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Wrote memory-mapped model to %s\n", args[0])
			return nil
		},
	})

	// ---- fasttext repl -------------------------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "repl",
		Short: "Launch the interactive BubbleTea predict console",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(os.Stderr, "Loading model… ")
			w, err := reload.New(modelPath, loadFn)
			if err != nil {
				fmt.Fprintln(os.Stderr, "")
				return err
			}
			fmt.Fprintln(os.Stderr, "ready.")
			defer w.Close()

			done := make(chan struct{})
			go func() {
				if err := w.Watch(done); err != nil {
					ftio.Warnf("watch stopped: %v", err)
				}
			}()

			m := replui.New(w, k, float32(threshold))
			p := tea.NewProgram(m, tea.WithAltScreen())
			_, err = p.Run()
			close(done)
			return err
		},
	})

	// ---- fasttext watch ------------------------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Hot-reload the model on disk changes and serve predict requests from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Fprint(os.Stderr, "Loading model… ")
			w, err := reload.New(modelPath, loadFn)
			if err != nil {
				fmt.Fprintln(os.Stderr, "")
				return err
			}
			fmt.Fprintln(os.Stderr, "ready. Watching for changes… (Ctrl+C to stop)")
			defer w.Close()

			done := make(chan struct{})
			go func() {
				<-ctx.Done()
				close(done)
			}()
			go func() {
				if err := w.Watch(done); err != nil {
					ftio.Warnf("watch stopped: %v", err)
				}
			}()

			return scanLinesCtx(ctx, os.Stdin, func(line string) error {
				preds, err := w.Current().Predict(line, k, float32(threshold))
				if err != nil {
					return err
				}
				printWordScores(preds)
				return nil
			})
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// scanLines reads newline-terminated input from r, invoking fn on each
// non-empty line.
func scanLines(r *os.File, fn func(string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return sc.Err()
}

// scanLinesCtx is scanLines with early exit once ctx is cancelled, for the
// watch command's stdin loop.
func scanLinesCtx(ctx context.Context, r *os.File, fn func(string) error) error {
	lines := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			lines <- sc.Text()
		}
		errs <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errs:
					return err
				default:
					return nil
				}
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := fn(line); err != nil {
				return err
			}
		}
	}
}

func formatVector(label string, vec []float32) string {
	var b strings.Builder
	b.WriteString(label)
	for _, v := range vec {
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(float64(v), 'f', 6, 32))
	}
	return b.String()
}
