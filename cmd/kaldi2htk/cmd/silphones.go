package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ieee0824/kaldi2htk/kaldi"
)

var silphonesNames string

var silphonesCmd = &cobra.Command{
	Use:   "silphones PHONES",
	Short: "Print the ids of the silence phones in a phone table",
	Long: `Prints the comma-separated ids of every phone whose name, without its
word-position suffix (_B, _E, _I, _S), matches one of --sil.

Example:
  kaldi2htk silphones data/lang/phones.txt --sil SIL,SPN`,
	Args: cobra.ExactArgs(1),
	RunE: runSilphones,
}

func init() {
	rootCmd.AddCommand(silphonesCmd)
	silphonesCmd.Flags().StringVar(&silphonesNames, "sil", strings.Join(kaldi.DefaultSilenceNames, ","), "silence phone names")
}

func runSilphones(cmd *cobra.Command, args []string) error {
	phones, err := kaldi.LoadPhonesFile(args[0])
	if err != nil {
		return err
	}
	ids := phones.DetectSilence(strings.Split(silphonesNames, ","))
	fmt.Fprintln(cmd.OutOrStdout(), kaldi.FormatIDs(ids))
	return nil
}
