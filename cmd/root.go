package cmd

import (
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "miat",
	Short: "Multimedia Integrated Analysis Tool.",
	Long:  `Forensic parser and analyzer for multimedia files: reconstructs container and codec bitstream syntax and detects editing traces.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogger(logLevel, logJSON)
	},
	Version:          "v1.0.0",
	TraverseChildren: true, // parses flags on all parents before executing child command
	SilenceUsage:     true, // silence usage when an error occurs
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		return runAnalysis(cmd.Context())
	},
}

var (
	logLevel string
	logJSON  bool

	parseMode    bool
	slackCarver  bool
	inputDir     string
	outputDir    string
	exportFormat string
	appleMode    bool
)

// Execute registers the root command's flags, runs it and returns the process exit code.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() int {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "INFO", "set log level")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "set log to json format (default colorized console)")

	rootCmd.Flags().BoolVarP(&parseMode, "parse", "p", false, "parse mode")
	rootCmd.Flags().BoolVar(&slackCarver, "slack_carver", false, "slack carving mode")
	rootCmd.Flags().BoolVar(&slackCarver, "sc", false, "slack carving mode (alias)")
	rootCmd.Flags().MarkHidden("sc")
	rootCmd.Flags().StringVarP(&inputDir, "input", "i", "", "directory containing the media files")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "output", "output directory")
	rootCmd.Flags().StringVarP(&exportFormat, "export", "e", "", "export parsed data to csv or json")
	rootCmd.Flags().BoolVarP(&appleMode, "apple", "a", false, "detect tampered videos using Apple 'Photos'")

	err := rootCmd.Execute()
	if err != nil {
		return 1
	}
	return 0
}

func initLogger(logLevel string, logJSON bool) {
	// Error Logging with Stacktrace
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	// set log timestamp precise to milliseconds
	zerolog.TimeFieldFormat = "2006-01-02T15:04:05.999Z0700"

	// init log writer
	var writer io.Writer
	if !logJSON {
		// log a human-friendly, colorized output
		noColor := false
		if runtime.GOOS == "windows" {
			noColor = true
		}

		writer = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
			NoColor:    noColor,
		}
	} else {
		writer = os.Stderr
	}
	log.Logger = zerolog.New(writer).With().Timestamp().Logger()

	// Setting Global Log Level
	level := strings.ToUpper(logLevel)
	switch level {
	case "DEBUG":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "INFO":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "WARN":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "ERROR":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "FATAL":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "PANIC":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	}
}
