package main

import (
	"go-ml.dev/pkg/mlrun/cmd/mlrun/cmd"
)

func main() {
	cmd.Execute()
}
