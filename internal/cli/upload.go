package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/your-org/udn/internal/upload"
)

func newUploadCmd() *cobra.Command {
	var (
		flags    profileFlags
		metadata string
		site     string
	)

	cmd := &cobra.Command{
		Use:   "upload <file_path> <seq_request_id> <patient_uuid>",
		Short: "Upload a single file",
		Long: `Upload a single file with explicit identifiers.

Metadata is a JSON object given inline or as @path, and must contain
non-empty "assembly" and "coverage" fields.

Examples:
  udn upload reads.bam 1042 6f1c... --metadata '{"assembly":"GRCh38","coverage":"30x"}'
  udn upload reads.bam 1042 6f1c... --metadata @reads.bam.json --test`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			md, err := upload.ParseMetadataArg(metadata)
			if err != nil {
				return err
			}
			spec, err := upload.SpecFromArgs(args[0], args[1], args[2], site, md)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			rt, err := newRuntime(ctx, "upload", flags)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			report := rt.service.Upload(ctx, spec)
			return printReports(cmd.OutOrStdout(), []upload.Report{report})
		},
	}

	cmd.Flags().StringVar(&metadata, "metadata", "", "metadata JSON object, or @file")
	cmd.Flags().StringVar(&site, "site", "", "site identifier")
	addProfileFlags(cmd, &flags)
	return cmd
}

func newMultiUploadCmd() *cobra.Command {
	var flags profileFlags

	cmd := &cobra.Command{
		Use:   "multi-upload <directory>",
		Short: "Upload every file in a directory",
		Long: `Upload every file directly under a directory. Each file needs a
"<name>.json" sidecar holding patient_uuid, seq_request_id, site and
metadata. Two files are uploaded at a time.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newRuntime(ctx, "multi-upload", flags)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			reports, err := rt.service.UploadDirectory(ctx, args[0])
			if err != nil {
				return err
			}
			return printReports(cmd.OutOrStdout(), reports)
		},
	}

	addProfileFlags(cmd, &flags)
	return cmd
}

func addProfileFlags(cmd *cobra.Command, flags *profileFlags) {
	cmd.Flags().BoolVar(&flags.test, "test", false, "use the TEST profile section")
	cmd.Flags().BoolVar(&flags.force, "force", false, "upload even if the file is already registered")
}

// printReports writes one line per report and fails when any upload failed.
func printReports(w io.Writer, reports []upload.Report) error {
	failed := 0
	for _, r := range reports {
		fmt.Fprintln(w, r.Message)
		if !r.OK() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(reports))
	}
	return nil
}
