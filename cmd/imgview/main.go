// Command imgview scans image directories, maintains per-directory
// rating and viewed state, and runs a terminal slideshow over them.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"imgview/internal/catalog"
	"imgview/internal/config"
	"imgview/internal/navigation"
	"imgview/internal/service"
	"imgview/internal/slideshow"
)

// sessionFactory builds the session for a command run. Tests inject
// their own to control scanning and clocks.
type sessionFactory func(cfg *config.AppConfig, log zerolog.Logger) (*service.Session, error)

// NewRootCmd creates the root command. The newSession function is
// responsible for constructing the Session; this allows tests to inject
// test-specific instances.
func NewRootCmd(newSession sessionFactory) *cobra.Command {
	var (
		configPath   string
		sortFlag     string
		recursive    bool
		noRecursive  bool
		orderFlag    string
		loopFlag     bool
		timeFlag     float64
		perStarFlag  float64
		logLevelFlag string
		verbose      bool
		quiet        bool
	)

	rootCmd := &cobra.Command{
		Use:           "imgview",
		Short:         "imgview - scan, rate and view image collections",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// loadConfig merges the config file with whatever flags were set on
	// this invocation. Flags win.
	loadConfig := func(cmd *cobra.Command, paths []string) (*config.AppConfig, zerolog.Logger, error) {
		log := newLogger(cmd, logLevelFlag, verbose, quiet)

		path := configPath
		if path == "" {
			var err error
			if path, err = config.DefaultPath(); err != nil {
				return nil, log, err
			}
		}
		cfg, err := config.Load(path)
		if err != nil {
			log.Warn().Str("path", path).Err(err).Msg("using default configuration")
		}

		if cmd.Flags().Changed("sort") {
			cfg.Sort = sortFlag
		}
		if cmd.Flags().Changed("recursive") {
			cfg.Recursive = recursive
		}
		if noRecursive {
			cfg.Recursive = false
		}
		if cmd.Flags().Changed("order") {
			cfg.SlideshowOrder = orderFlag
		}
		if cmd.Flags().Changed("loop") {
			cfg.Loop = loopFlag
		}
		if cmd.Flags().Changed("time") {
			cfg.SlideshowTime = timeFlag
		}
		if cmd.Flags().Changed("rating-multiplier") {
			cfg.RatingMultiplier = perStarFlag
		}

		if len(paths) == 0 {
			paths = []string{"."}
		}
		for _, p := range paths {
			abs, err := filepath.Abs(p)
			if err != nil {
				return nil, log, fmt.Errorf("resolving path %s: %w", p, err)
			}
			cfg.Paths = append(cfg.Paths, abs)
		}
		return cfg, log, nil
	}

	// withSession runs fn against a loaded session and always drains
	// pending writes before returning.
	withSession := func(cmd *cobra.Command, paths []string, fn func(s *service.Session) error) error {
		cfg, log, err := loadConfig(cmd, paths)
		if err != nil {
			return err
		}
		s, err := newSession(cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.Close(ctx); err != nil {
				log.Error().Err(err).Msg("failed to flush pending writes")
			}
			if n := s.WriteFailures(); n > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %d write(s) could not be saved\n", n)
			}
		}()
		if _, err := s.ScanAndLoad(); err != nil {
			return err
		}
		return fn(s)
	}

	scanCmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Scan directories and record newly discovered images",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, args, func(s *service.Session) error {
				st := s.Stats()
				cmd.Printf("%d image(s) catalogued, %d unviewed, %d missing from disk\n",
					st.Total, st.Unviewed, st.Missing)
				return nil
			})
		},
	}
	rootCmd.AddCommand(scanCmd)

	listCmd := &cobra.Command{
		Use:   "list [paths...]",
		Short: "List catalogued images in the configured sort order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, args, func(s *service.Session) error {
				for _, rec := range s.Catalog().Records() {
					viewed := " "
					if rec.Viewed {
						viewed = "v"
					}
					cmd.Printf("%s %-5s %s\n", viewed, rec.Stars(), rec.Path)
				}
				return nil
			})
		},
	}
	rootCmd.AddCommand(listCmd)

	rateCmd := &cobra.Command{
		Use:   "rate [image] [stars]",
		Short: "Set an image's rating (0-5 stars)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			imagePath, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			target, err := strconv.Atoi(args[1])
			if err != nil || target < 0 || target > 5 {
				return fmt.Errorf("rating must be an integer between 0 and 5, got %q", args[1])
			}
			return withSession(cmd, []string{filepath.Dir(imagePath)}, func(s *service.Session) error {
				rec, ok := s.Catalog().Record(imagePath)
				if !ok {
					return fmt.Errorf("%w: %s", catalog.ErrUnknownPath, imagePath)
				}
				rating, err := s.AdjustRating(imagePath, target-rec.Rating)
				if err != nil {
					return err
				}
				cmd.Printf("%s rated %s\n", imagePath, strings.Repeat("*", rating))
				return nil
			})
		},
	}
	rootCmd.AddCommand(rateCmd)

	viewedCmd := &cobra.Command{
		Use:   "viewed [image]",
		Short: "Mark an image as viewed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imagePath, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, []string{filepath.Dir(imagePath)}, func(s *service.Session) error {
				if _, err := s.MarkViewedIfDue(imagePath, slideshow.ViewedThreshold); err != nil {
					return err
				}
				rec, _ := s.Catalog().Record(imagePath)
				cmd.Printf("%s viewed %d time(s)\n", imagePath, rec.ViewCount)
				return nil
			})
		},
	}
	rootCmd.AddCommand(viewedCmd)

	infoCmd := &cobra.Command{
		Use:   "info [image]",
		Short: "Show dimensions, format and EXIF data for an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imagePath, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			details, err := service.Inspect(imagePath)
			if err != nil {
				return err
			}
			cmd.Printf("%s\n", imagePath)
			cmd.Printf("  %dx%d %s, %d bytes, modified %s\n",
				details.Width, details.Height, details.Format,
				details.Size, details.ModTime.Format(time.RFC3339))
			for field, value := range details.EXIFData {
				cmd.Printf("  %s: %s\n", field, value)
			}
			return nil
		},
	}
	rootCmd.AddCommand(infoCmd)

	statsCmd := &cobra.Command{
		Use:   "stats [paths...]",
		Short: "Show catalog statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, args, func(s *service.Session) error {
				st := s.Stats()
				cmd.Printf("Total:    %d\n", st.Total)
				cmd.Printf("Viewed:   %d\n", st.Viewed)
				cmd.Printf("Unviewed: %d\n", st.Unviewed)
				cmd.Printf("Missing:  %d\n", st.Missing)
				for stars := 5; stars >= 0; stars-- {
					cmd.Printf("%d star:   %d\n", stars, st.ByRating[stars])
				}
				return nil
			})
		},
	}
	rootCmd.AddCommand(statsCmd)

	var stepsFlag int
	slideshowCmd := &cobra.Command{
		Use:   "slideshow [paths...]",
		Short: "Run a slideshow in the terminal",
		Long: `Run a slideshow in the terminal, printing each image path as it is
shown. Display time scales with rating; images shown long enough are
marked viewed. Order and looping follow the configuration unless
overridden by flags.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, args, func(s *service.Session) error {
				steps := stepsFlag
				if steps <= 0 {
					steps = s.Catalog().Len()
				}
				for i := 0; i < steps; i++ {
					rec, err := s.Catalog().Current()
					if err != nil {
						return err
					}
					display := s.Slideshow().DisplayTime(rec.Rating)
					cmd.Printf("[%d/%d] %-5s %s\n", s.Catalog().Cursor()+1, s.Catalog().Len(), rec.Stars(), rec.Path)
					time.Sleep(display)
					if _, err := s.MarkCurrentViewedIfDue(display); err != nil {
						return err
					}
					if _, err := s.Navigator().Advance(); err != nil {
						if errors.Is(err, navigation.ErrAtBoundary) {
							break
						}
						return err
					}
				}
				return nil
			})
		},
	}
	slideshowCmd.Flags().IntVar(&stepsFlag, "count", 0, "Number of images to show (default: one full pass)")
	rootCmd.AddCommand(slideshowCmd)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&sortFlag, "sort", "", "Sort order: alpha|directory|unviewed|viewed|rating|rating-desc")
	rootCmd.PersistentFlags().BoolVar(&recursive, "recursive", true, "Scan directories recursively")
	rootCmd.PersistentFlags().BoolVar(&noRecursive, "no-recursive", false, "Only scan the top level of each directory")
	rootCmd.PersistentFlags().StringVar(&orderFlag, "order", "", "Slideshow order: forward|backward|random")
	rootCmd.PersistentFlags().BoolVar(&loopFlag, "loop", false, "Wrap around at the ends of the catalog")
	rootCmd.PersistentFlags().Float64Var(&timeFlag, "time", 0, "Base slideshow display time in seconds")
	rootCmd.PersistentFlags().Float64Var(&perStarFlag, "rating-multiplier", 0, "Extra display seconds per rating star")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: trace|debug|info|warn|error")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only log errors")

	return rootCmd
}

// newLogger builds the console logger. An explicit --log-level wins over
// the -v and -q shorthands.
func newLogger(cmd *cobra.Command, level string, verbose, quiet bool) zerolog.Logger {
	lvl := zerolog.InfoLevel
	switch {
	case level != "":
		if parsed, err := zerolog.ParseLevel(level); err == nil {
			lvl = parsed
		}
	case verbose:
		lvl = zerolog.DebugLevel
	case quiet:
		lvl = zerolog.ErrorLevel
	}
	out := zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

func main() {
	rootCmd := NewRootCmd(service.New)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
