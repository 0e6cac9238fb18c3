package main

import "spark-terminal/cmd"

func main() {
	cmd.Execute()
}
