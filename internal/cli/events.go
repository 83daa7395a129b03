package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/feed"
)

// NewEventsCommand creates the events command group.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Read, export and verify the notification log",
	}
	cmd.AddCommand(newEventsListCommand(rootOpts))
	cmd.AddCommand(newEventsExportCommand(rootOpts))
	cmd.AddCommand(newEventsVerifyCommand(rootOpts))
	return cmd
}

func newEventsListCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		after int64
		limit int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List events after a sequence number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			if after < 0 || limit <= 0 {
				return f.Fail(NewExitError(ExitCommandError, "--after must be >= 0 and --limit > 0"))
			}
			return withApp(rootOpts, f, func(a *app) error {
				events, err := a.ledger.Events(cmd.Context(), after, limit)
				if err != nil {
					return err
				}
				return f.Success(eventList(events))
			})
		},
	}

	cmd.Flags().Int64Var(&after, "after", 0, "only events with seq greater than this")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of events")

	return cmd
}

type exportResult struct {
	Path   string `json:"path"`
	Events int    `json:"events"`
}

func (r exportResult) String() string {
	return fmt.Sprintf("exported %d event(s) to %s", r.Events, r.Path)
}

func newEventsExportCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		output string
		after  int64
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export events as a zstd-compressed JSONL archive",
		Long: `Export the notification log to a zstd-compressed JSON Lines archive.
Archives exported from seq 0 can be checked offline with
"civbuilder events verify --archive".

Example:
  civbuilder events export -o events.jsonl.zst`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return withApp(rootOpts, f, func(a *app) error {
				file, err := os.Create(output)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to create archive", err)
				}
				defer file.Close()

				w, err := feed.NewArchiveWriter(file)
				if err != nil {
					return err
				}
				if err := feed.Export(cmd.Context(), a.ledger, w, after); err != nil {
					w.Close()
					return err
				}
				if err := w.Close(); err != nil {
					return err
				}
				if err := file.Sync(); err != nil {
					return err
				}
				return f.Success(exportResult{Path: output, Events: w.Count()})
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "events.jsonl.zst", "archive path")
	cmd.Flags().Int64Var(&after, "after", 0, "only events with seq greater than this")

	return cmd
}

type verifyResult struct {
	Source string `json:"source"`
	Events int64  `json:"events"`
	OK     bool   `json:"ok"`
	Broken int64  `json:"broken_at,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (r verifyResult) String() string {
	if r.OK {
		return fmt.Sprintf("%s: %d event(s), hash chain intact", r.Source, r.Events)
	}
	return fmt.Sprintf("%s: hash chain broken at seq %d: %s", r.Source, r.Broken, r.Reason)
}

func newEventsVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	var archive string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the event hash chain",
		Long: `Verify the hash chain of the ledger's notification log, or of an
exported archive when --archive is given. A broken chain exits with 1.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			if archive != "" {
				result, err := verifyArchive(archive)
				if err != nil {
					return f.Fail(err)
				}
				return reportVerify(f, result)
			}
			return withApp(rootOpts, f, func(a *app) error {
				report, err := a.ledger.VerifyEventChain(cmd.Context())
				if err != nil {
					return err
				}
				return reportVerify(f, verifyResult{
					Source: a.cfg.Database.Path,
					Events: int64(report.Events),
					OK:     report.OK(),
					Broken: report.BrokenAt,
					Reason: report.Reason,
				})
			})
		},
	}

	cmd.Flags().StringVar(&archive, "archive", "", "verify an exported archive instead of the database")

	return cmd
}

func verifyArchive(path string) (verifyResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return verifyResult{}, WrapExitError(ExitCommandError, "failed to open archive", err)
	}
	defer file.Close()

	events, err := feed.ReadArchive(file)
	if err != nil {
		return verifyResult{}, WrapExitError(ExitCommandError, "failed to read archive", err)
	}
	result := verifyResult{Source: path, Events: int64(len(events)), OK: true}
	if i, err := feed.VerifyEvents(events); err != nil {
		result.OK = false
		result.Broken = events[i].Seq
		result.Reason = err.Error()
	}
	return result, nil
}

func reportVerify(f *OutputFormatter, result verifyResult) error {
	if err := f.Success(result); err != nil {
		return err
	}
	if !result.OK {
		return &ExitError{Code: ExitFailure, Message: "hash chain broken", Reported: true}
	}
	return nil
}
