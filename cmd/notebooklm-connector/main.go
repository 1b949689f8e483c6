package main

import (
	"fmt"
	"os"

	"notebooklm_connector/internal/entrypoint"
)

func main() {
	code, err := entrypoint.Execute(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "notebooklm-connector:", err)
		if code == 0 {
			code = 1
		}
	}
	os.Exit(code)
}
