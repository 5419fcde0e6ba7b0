package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"transfer-core/pkg/config"
	"transfer-core/pkg/hdwallet"
	"transfer-core/pkg/keystore"
)

var (
	initOut   string
	initLight bool
	initForce bool
)

// initCmd 生成助记词并保存为加密的 keystore
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "创建本地钱包 keystore",
	Long:  `生成一个新的 BIP-39 助记词，用密码 (scrypt + AES-GCM) 加密后保存，并显示默认账户。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := initOut
		if out == "" {
			out = config.Global.Wallet.KeystorePath
		}
		if _, err := os.Stat(out); err == nil && !initForce {
			return fmt.Errorf("%s already exists, use --force to overwrite", out)
		}

		// 1. 密码
		password := config.Global.Wallet.Password
		if password == "" {
			pw, err := promptPassword("New keystore password: ")
			if err != nil {
				return err
			}
			confirm, err := promptPassword("Repeat password: ")
			if err != nil {
				return err
			}
			if pw != confirm {
				return errors.New("passwords do not match")
			}
			password = pw
		}
		if password == "" {
			return errors.New("password must not be empty")
		}

		// 2. 助记词和默认账户
		mnemonic, err := hdwallet.NewMnemonic(128)
		if err != nil {
			return err
		}
		path := config.Global.Wallet.DerivationPath
		if path == "" {
			path = hdwallet.DefaultPath
		}
		w, err := hdwallet.FromMnemonic(mnemonic, "")
		if err != nil {
			return err
		}
		account, err := w.Address(path)
		if err != nil {
			return err
		}

		// 3. 加密保存
		n, p := keystore.StandardScryptN, keystore.StandardScryptP
		if initLight {
			n, p = keystore.LightScryptN, keystore.LightScryptP
		}
		key, err := keystore.EncryptMnemonicWithParams(mnemonic, password, n, p)
		if err != nil {
			return err
		}
		key.Address = account.Hex()
		if err := key.SaveToFile(out); err != nil {
			return err
		}

		fmt.Println("---------------------------------------------------")
		fmt.Printf("Keystore: %s\n", out)
		fmt.Printf("Account [%s]: %s\n", path, account.Hex())
		fmt.Printf("助记词 (Mnemonic): \n%s\n", mnemonic)
		fmt.Println("---------------------------------------------------")
		fmt.Println("请妥善保管您的助记词！任何拥有助记词的人都可以控制该钱包的所有资产。")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVarP(&initOut, "out", "o", "", "keystore 输出路径 (默认 wallet.keystore_path)")
	initCmd.Flags().BoolVar(&initLight, "light", false, "使用轻量 scrypt 参数 (仅开发环境)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "覆盖已存在的 keystore")
}
