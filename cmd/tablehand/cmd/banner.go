package cmd

import (
	"fmt"
	"io"
)

const banner = `
  _____     _     _      _                     _ 
 |_   _|_ _| |__ | | ___| |__   __ _ _ __   __| |
   | |/ _` + "`" + ` | '_ \| |/ _ \ '_ \ / _` + "`" + ` | '_ \ / _` + "`" + ` |
   | | (_| | |_) | |  __/ | | | (_| | | | | (_| |
   |_|\__,_|_.__/|_|\___|_| |_|\__,_|_| |_|\__,_|
                                                 
`

func printBanner(w io.Writer) {
	fmt.Fprintf(w, "\x1b[34m%s\x1b[0m", banner)
	fmt.Fprintf(w, "\x1b[32m  Back-office API - Version %s\x1b[0m\n\n", Version)
}
