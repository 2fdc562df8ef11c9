package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/gradekeeper/internal/client/records"
	"github.com/dmitrijs2005/gradekeeper/internal/timex"
)

var ErrBadResult = errors.New("result must look like student_id[,name[,cat1[,cat2[,assignment[,exam]]]]]")

var resultFields = []string{"student_id", "student_name", "cat1", "cat2", "assignment", "exam"}

func newRecordCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Create, read and maintain grade records",
	}
	cmd.AddCommand(
		newRecordSaveCommand(opts),
		newRecordGetCommand(opts),
		newRecordListCommand(opts),
		newRecordUpdateCommand(opts),
		newRecordDeleteCommand(opts),
		newRecordExportCommand(opts),
		newRecordImportCommand(opts),
		newRecordCheckCommand(opts),
	)
	return cmd
}

func newRecordSaveCommand(opts *rootOptions) *cobra.Command {
	var (
		file        string
		subject     string
		kind        string
		timestamp   int64
		results     []string
		meta        []string
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save a record, replacing the one with the same subject, type and timestamp",
		Example: `  gradekeeper record save --subject Math --type CAT1 --result S1,Ann,25,20,15,80
  gradekeeper record save -f record.json
  gradekeeper record save -i`,
		Args: cobra.NoArgs,
		RunE: opts.withApp(func(ctx context.Context, cmd *cobra.Command, a *App, _ []string) error {
			var (
				in  map[string]any
				err error
			)
			switch {
			case file != "":
				in, err = readJSONObject(cmd.InOrStdin(), file)
			case interactive:
				in, err = promptRecord(opts.in(cmd), cmd.OutOrStdout())
			default:
				in, err = recordFromFlags(subject, kind, timestamp, results, meta)
			}
			if err != nil {
				return err
			}
			if _, ok := in["timestamp"]; !ok {
				in["timestamp"] = timex.NowMillis()
			}

			saved, err := a.Records.Save(ctx, records.Normalize(in))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), saved)
		}),
	}

	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "read the record as JSON from a file, - for stdin")
	f.StringVarP(&subject, "subject", "s", "", "subject name")
	f.StringVarP(&kind, "type", "t", "", "assessment type")
	f.Int64Var(&timestamp, "timestamp", 0, "assessment time in epoch ms (default now)")
	f.StringArrayVar(&results, "result", nil, "student_id,name,cat1,cat2,assignment,exam (repeatable)")
	f.StringArrayVarP(&meta, "meta", "m", nil, "name=value metadata (repeatable)")
	f.BoolVarP(&interactive, "interactive", "i", false, "prompt for every field")
	cmd.MarkFlagsMutuallyExclusive("file", "interactive")
	return cmd
}

func newRecordGetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print one record",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withApp(func(ctx context.Context, cmd *cobra.Command, a *App, args []string) error {
			rec, err := a.Records.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if rec == nil {
				return &ExitError{Code: ExitFailure, Message: args[0], Err: records.ErrNotFound}
			}
			return writeJSON(cmd.OutOrStdout(), rec)
		}),
	}
}

func newRecordListCommand(opts *rootOptions) *cobra.Command {
	var (
		subject string
		kind    string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List readable records",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(ctx context.Context, cmd *cobra.Command, a *App, _ []string) error {
			all, err := a.Records.List(ctx)
			if err != nil {
				return err
			}
			out := make([]records.Record, 0, len(all))
			for _, r := range all {
				if subject != "" && !strings.EqualFold(r.Subject, subject) {
					continue
				}
				if kind != "" && !strings.EqualFold(r.AssessmentType, kind) {
					continue
				}
				out = append(out, r)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			return printRecords(cmd.OutOrStdout(), out)
		}),
	}
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "only this subject")
	cmd.Flags().StringVarP(&kind, "type", "t", "", "only this assessment type")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printRecords(w io.Writer, recs []records.Record) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSUBJECT\tTYPE\tTIMESTAMP\tSTUDENTS\tVERSION")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n", r.ID, r.Subject, r.AssessmentType, r.Timestamp, len(r.Results), r.Version)
	}
	return tw.Flush()
}

func newRecordUpdateCommand(opts *rootOptions) *cobra.Command {
	var (
		file string
		set  []string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Merge changes into a record",
		Example: `  gradekeeper record update 0190... --set subject=Physics
  gradekeeper record update 0190... --set 'results=[{"student_id":"S1","exam":90}]'`,
		Args: cobra.ExactArgs(1),
		RunE: opts.withApp(func(ctx context.Context, cmd *cobra.Command, a *App, args []string) error {
			patch := map[string]any{}
			if file != "" {
				p, err := readJSONObject(cmd.InOrStdin(), file)
				if err != nil {
					return err
				}
				patch = p
			}
			for _, kvPair := range set {
				k, v, ok := strings.Cut(kvPair, "=")
				if !ok || strings.TrimSpace(k) == "" {
					return fmt.Errorf("--set %q: want key=value", kvPair)
				}
				patch[strings.TrimSpace(k)] = patchValue(v)
			}
			if len(patch) == 0 {
				return errors.New("nothing to update: use --set or --file")
			}

			rec, err := a.Records.Update(ctx, args[0], patch)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rec)
		}),
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON object with the fields to change, - for stdin")
	cmd.Flags().StringArrayVar(&set, "set", nil, "key=value, value parsed as JSON when possible (repeatable)")
	return cmd
}

// patchValue decodes v as JSON and falls back to the plain string.
func patchValue(v string) any {
	var out any
	if err := json.Unmarshal([]byte(v), &out); err == nil {
		return out
	}
	return v
}

func newRecordDeleteCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a record and queue the deletion",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withApp(func(ctx context.Context, cmd *cobra.Command, a *App, args []string) error {
			if err := a.Records.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		}),
	}
}

func newRecordExportCommand(opts *rootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every stored record as JSON",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(ctx context.Context, cmd *cobra.Command, a *App, _ []string) error {
			entries, err := a.Records.Export(ctx)
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			f, err := os.OpenFile(out, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
			if err != nil {
				return err
			}
			if err := writeJSON(f, entries); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d entries to %s\n", len(entries), out)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func newRecordImportCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Load entries written by export, - for stdin",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withApp(func(ctx context.Context, cmd *cobra.Command, a *App, args []string) error {
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			var entries []records.ExportEntry
			if err := json.Unmarshal(data, &entries); err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}
			rep, err := a.Records.Import(ctx, entries)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rep)
		}),
	}
}

func newRecordCheckCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify that every stored record is readable and valid",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(ctx context.Context, cmd *cobra.Command, a *App, _ []string) error {
			rep, err := a.Records.CheckIntegrity(ctx)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), rep); err != nil {
				return err
			}
			if rep.Invalid > 0 {
				return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d invalid entries", rep.Invalid)}
			}
			return nil
		}),
	}
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func readJSONObject(stdin io.Reader, path string) (map[string]any, error) {
	data, err := readInput(stdin, path)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if out == nil {
		return nil, fmt.Errorf("decode %s: not a JSON object", path)
	}
	return out, nil
}

func parseResult(s string) (map[string]any, error) {
	parts := strings.Split(s, ",")
	if len(parts) > len(resultFields) || strings.TrimSpace(parts[0]) == "" {
		return nil, fmt.Errorf("%w: %q", ErrBadResult, s)
	}
	row := make(map[string]any, len(parts))
	for i, p := range parts {
		row[resultFields[i]] = strings.TrimSpace(p)
	}
	return row, nil
}

func recordFromFlags(subject, kind string, ts int64, results, meta []string) (map[string]any, error) {
	in := map[string]any{
		"subject":        subject,
		"assessmentType": kind,
	}
	if ts != 0 {
		in["timestamp"] = ts
	}
	rows := make([]any, 0, len(results))
	for _, r := range results {
		row, err := parseResult(r)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	in["results"] = rows

	md, err := ParseMetadata(meta)
	if err != nil {
		return nil, err
	}
	if md != nil {
		m := make(map[string]any, len(md))
		for k, v := range md {
			m[k] = v
		}
		in["metadata"] = m
	}
	return in, nil
}

func promptRecord(r *bufio.Reader, w io.Writer) (map[string]any, error) {
	subject, err := GetSimpleText(r, "Subject", w)
	if err != nil {
		return nil, err
	}
	kind, err := GetSimpleText(r, "Assessment type", w)
	if err != nil {
		return nil, err
	}
	rows, err := GetLines(r, "Results, one per line: student_id,name,cat1,cat2,assignment,exam", w)
	if err != nil {
		return nil, err
	}
	meta, err := GetLines(r, "Metadata, one name=value per line", w)
	if err != nil {
		return nil, err
	}
	return recordFromFlags(subject, kind, 0, rows, meta)
}
