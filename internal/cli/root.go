package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the udn command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "udn",
		Short: "Upload sequencing files to the UDN gateway",
		Long: `Register files with the UDN metadata service, transfer them to object
storage and mark them uploaded.

Credentials are read from the profile file (~/.udn/config or $UDN_CONFIG),
section PROD, or TEST with --test.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newUploadCmd())
	root.AddCommand(newMultiUploadCmd())
	return root
}
