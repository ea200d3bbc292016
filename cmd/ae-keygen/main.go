// Command ae-keygen generates an Ed25519 keypair for an agent and
// prints it base64-encoded, or writes it to key files.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	ae "github.com/invictus-insights/aegnix-platform-sdk-ae"
)

func main() {
	name := pflag.StringP("name", "n", "", "agent name, used for key file names")
	outDir := pflag.StringP("out", "o", "", "directory to write <name>.pub and <name>.key into (prints to stdout when empty)")
	pflag.Parse()

	if err := run(*name, *outDir); err != nil {
		fmt.Fprintln(os.Stderr, "ae-keygen:", err)
		os.Exit(1)
	}
}

func run(name, outDir string) error {
	keys, err := ae.GenerateKeyMaterial()
	if err != nil {
		return err
	}

	if outDir == "" {
		fmt.Printf("public:  %s\n", keys.PublicKeyBase64())
		fmt.Printf("private: %s\n", keys.PrivateKeyBase64())
		return nil
	}

	if name == "" {
		return fmt.Errorf("--name is required when writing key files")
	}
	if err := os.MkdirAll(outDir, 0o700); err != nil {
		return err
	}

	pubPath := filepath.Join(outDir, name+".pub")
	keyPath := filepath.Join(outDir, name+".key")
	if err := os.WriteFile(pubPath, []byte(keys.PublicKeyBase64()+"\n"), 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(keyPath, []byte(keys.PrivateKeyBase64()+"\n"), 0o600); err != nil {
		return err
	}

	fmt.Printf("wrote %s and %s\n", pubPath, keyPath)
	return nil
}
