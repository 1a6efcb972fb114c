package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/config"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/utils"
)

var encryptCmd = &cobra.Command{
	Use:     "encrypt VALUE",
	Short:   "Encrypt a credential with " + config.EncryptionKeyEnv + " for use in config",
	Example: "  NETKIT_ENCRYPTION_KEY=... netkit encrypt my-api-secret",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := utils.LoadEncryptionKey(config.EncryptionKeyEnv)
		if err != nil {
			return err
		}
		enc, err := utils.Encrypt(args[0], key)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), utils.EncryptedPrefix+enc)
		return nil
	},
}
