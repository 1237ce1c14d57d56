// Package main writes a development CA and a server certificate for the
// mock inventory API into a directory (default "certs").
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/atinyakov/InventarisHub/internal/certgen"
)

func main() {
	dir := flag.String("dir", "certs", "output directory")
	hosts := flag.String("hosts", "localhost,127.0.0.1", "comma-separated DNS names and IPs for the server certificate")
	flag.Parse()

	if err := run(*dir, splitHosts(*hosts)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("Certificates written to %s; pass -ca %s to the console\n",
		*dir, filepath.Join(*dir, certgen.CAFile))
}

func run(dir string, hosts []string) error {
	if len(hosts) == 0 {
		return fmt.Errorf("no hosts given")
	}
	_, err := certgen.WriteDevCerts(dir, hosts...)
	return err
}

func splitHosts(s string) []string {
	var out []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return out
}
