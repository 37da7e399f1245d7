package main

import "github.com/lessonmate/lessonmate/cmd"

func main() {
	cmd.Execute()
}
