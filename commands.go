package postal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// NewCommand creates a Cobra command tree for libpostal data management.
// The returned command can be used as a root command or added to a parent
// CLI's command tree.
//
// Commands provided:
//   - data list [--installed]
//   - data download <version> [--force]
//   - data init [version]
//   - data path <version>
//   - data verify <version>
//   - data remove <version> [--yes]
//
// Global flags: --json, --quiet, --verbose
func NewCommand(cfg Config, opts ...ManagerOption) *cobra.Command {
	var (
		jsonOutput bool
		quiet      bool
		verbose    bool
	)

	// Manager is created in PersistentPreRunE so flag errors and help
	// don't touch the filesystem.
	var mgr Manager

	cmd := &cobra.Command{
		Use:   "data",
		Short: "Manage libpostal data models",
		Long:  "Download, verify, and manage the versioned data models required by libpostal.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}

			var err error
			mgr, err = NewManager(cfg, opts...)
			if err != nil {
				return fmt.Errorf("failed to initialize manager: %w", err)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	cmd.AddCommand(listCmd(&mgr, &jsonOutput))
	cmd.AddCommand(downloadCmd(&mgr, &quiet, &verbose))
	cmd.AddCommand(initCmd(&mgr, &quiet, &verbose))
	cmd.AddCommand(pathCmd(&mgr))
	cmd.AddCommand(verifyCmd(&mgr, &quiet))
	cmd.AddCommand(removeCmd(&mgr, &quiet))

	return cmd
}

func listCmd(mgr *Manager, jsonOutput *bool) *cobra.Command {
	var installed bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List model versions",
		Long:  "List model versions available in the manifest, or locally installed versions with --installed.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if installed {
				models, err := (*mgr).ListInstalled()
				if err != nil {
					return err
				}
				return outputInstalled(cmd.OutOrStdout(), models, *jsonOutput)
			}

			versions, err := (*mgr).ListAvailable(cmd.Context())
			if err != nil {
				return err
			}
			return outputAvailable(cmd.OutOrStdout(), versions, *jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&installed, "installed", false, "List locally installed versions")
	return cmd
}

func downloadCmd(mgr *Manager, quiet, verbose *bool) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "download <version>",
		Short: "Download a model version",
		Long:  "Download, verify, and extract a model version into the local cache.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version := args[0]

			opts := []DownloadOption{}
			if force {
				opts = append(opts, WithForce())
			}
			if !*quiet {
				opts = append(opts, WithProgress(newProgressRenderer(cmd.OutOrStdout(), *verbose).update))
			}

			path, err := (*mgr).DownloadModel(cmd.Context(), version, opts...)
			if err != nil {
				return err
			}

			if !*quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "\nModel %q ready: %s\n", version, path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Re-download all components even if already complete")
	return cmd
}

func initCmd(mgr *Manager, quiet, verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "init [version]",
		Short: "Download a model if needed and initialize libpostal with it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version := DefaultVersion
			if len(args) == 1 {
				version = args[0]
			}

			opts := []DownloadOption{}
			if !*quiet {
				opts = append(opts, WithProgress(newProgressRenderer(cmd.OutOrStdout(), *verbose).update))
			}

			if err := (*mgr).Initialize(cmd.Context(), version, opts...); err != nil {
				return err
			}

			if !*quiet {
				state := (*mgr).InitializationState()
				fmt.Fprintf(cmd.OutOrStdout(), "\nInitialized libpostal %q from %s: %s\n",
					state.Version, state.Source, state.Path)
			}
			return nil
		},
	}
}

func pathCmd(mgr *Manager) *cobra.Command {
	return &cobra.Command{
		Use:   "path <version>",
		Short: "Print the data directory of an installed model version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := (*mgr).Path(args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func verifyCmd(mgr *Manager, quiet *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <version>",
		Short: "Check that an installed model version is structurally complete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := (*mgr).Verify(args[0]); err != nil {
				return err
			}

			if !*quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Model %q is complete\n", args[0])
			}
			return nil
		},
	}
}

func removeCmd(mgr *Manager, quiet *bool) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "remove <version>",
		Short: "Remove a cached model version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version := args[0]

			if !yes {
				fmt.Fprintf(cmd.OutOrStdout(), "Remove model %q? [y/N]: ", version)
				if !confirmPrompt(cmd.InOrStdin()) {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			if err := (*mgr).Remove(version); err != nil {
				return err
			}

			if !*quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %q\n", version)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation prompt")
	return cmd
}

// confirmPrompt reads from stdin and returns true only if the user types
// 'y' or 'yes'. Returns false for empty input or any other response.
func confirmPrompt(r io.Reader) bool {
	scanner := bufio.NewScanner(r)
	if scanner.Scan() {
		response := strings.TrimSpace(strings.ToLower(scanner.Text()))
		return response == "y" || response == "yes"
	}
	return false
}

// progressRenderer aggregates per-component progress events into a single
// terminal progress line. Components download concurrently, so events arrive
// interleaved; totals grow as each component reports its content length.
type progressRenderer struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool

	totals    map[string]int64
	completed map[string]int64
	started   time.Time
	announced map[string]bool
}

func newProgressRenderer(w io.Writer, verbose bool) *progressRenderer {
	return &progressRenderer{
		w:         w,
		verbose:   verbose,
		totals:    make(map[string]int64),
		completed: make(map[string]int64),
		announced: make(map[string]bool),
	}
}

// update consumes one progress event. Safe for concurrent use.
func (r *progressRenderer) update(p DownloadProgress) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch p.Phase {
	case PhaseDownload:
		if r.started.IsZero() {
			r.started = time.Now()
		}
		if !r.announced[p.Component] {
			r.announced[p.Component] = true
			fmt.Fprintf(r.w, "\r\x1b[KDownloading %s (%s)...\n", p.Version, p.Component)
		}
		if p.BytesTotal > 0 {
			r.totals[p.Component] = p.BytesTotal
		}
		r.completed[p.Component] = p.BytesCompleted
		r.render()

	case PhaseVerify:
		if r.verbose {
			fmt.Fprintf(r.w, "\r\x1b[KVerifying %s (%s)\n", p.Version, p.Component)
			r.render()
		}

	case PhaseExtract:
		fmt.Fprintf(r.w, "\r\x1b[KExtracting %s (%s)\n", p.Version, p.Component)
		r.render()
	}
}

// render draws the aggregate progress bar. Callers hold r.mu.
func (r *progressRenderer) render() {
	var total, completed int64
	names := make([]string, 0, len(r.totals))
	for name := range r.totals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		total += r.totals[name]
		completed += r.completed[name]
	}
	if total == 0 {
		return
	}

	pct := float64(completed) / float64(total) * 100
	elapsed := time.Since(r.started)

	var speed float64
	if elapsed.Seconds() > 0 {
		speed = float64(completed) / elapsed.Seconds()
	}

	const barWidth = 30
	filled := int(pct / 100 * float64(barWidth))
	if filled > barWidth {
		filled = barWidth
	}

	var bar string
	if filled >= barWidth {
		bar = strings.Repeat("=", barWidth)
	} else if filled > 0 {
		bar = strings.Repeat("=", filled) + ">" + strings.Repeat(" ", barWidth-filled-1)
	} else {
		bar = ">" + strings.Repeat(" ", barWidth-1)
	}

	fmt.Fprintf(r.w, "\r\x1b[K[%s] %.0f%% of %s (%s)", bar, pct, formatSize(total), formatSpeed(speed))
}

// Output helpers

func outputAvailable(w io.Writer, versions []string, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(versions)
	}

	if len(versions) == 0 {
		fmt.Fprintln(w, "No model versions in manifest")
		return nil
	}

	for _, v := range versions {
		fmt.Fprintln(w, v)
	}
	return nil
}

func outputInstalled(w io.Writer, models []InstalledModel, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(models)
	}

	if len(models) == 0 {
		fmt.Fprintln(w, "No models installed")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tCOMPONENTS\tINSTALLED\tPATH")
	for _, m := range models {
		installedAt := "-"
		if !m.InstalledAt.IsZero() {
			installedAt = m.InstalledAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			m.Version,
			strings.Join(m.Components, ","),
			installedAt,
			m.Path,
		)
	}
	return tw.Flush()
}

func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// formatSpeed formats bytes per second as KB/s or MB/s.
func formatSpeed(bytesPerSec float64) string {
	const (
		KB = 1024
		MB = KB * 1024
	)

	if bytesPerSec >= MB {
		return fmt.Sprintf("%.1f MB/s", bytesPerSec/MB)
	}
	if bytesPerSec >= KB {
		return fmt.Sprintf("%.1f KB/s", bytesPerSec/KB)
	}
	return fmt.Sprintf("%.0f B/s", bytesPerSec)
}

// ExitCode maps sentinel errors to stable process exit codes. Used by the
// postal-data binary; exported so embedding CLIs can reuse the mapping.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrInvalidVersionIdentifier):
		return 2
	case errors.Is(err, ErrUnknownModelVersion):
		return 3
	case errors.Is(err, ErrDataNotFound):
		return 4
	case errors.Is(err, ErrNetwork), errors.Is(err, ErrManifestUnavailable):
		return 5
	case errors.Is(err, ErrIntegrity):
		return 6
	case errors.Is(err, ErrStorage):
		return 7
	case errors.Is(err, ErrIncompleteInstallation):
		return 8
	case errors.Is(err, ErrNativeSetup):
		return 9
	case errors.Is(err, ErrAlreadyInitialized):
		return 10
	default:
		return 1
	}
}
